package luahost

import (
	"fmt"
	"math"
	"sort"

	lua "github.com/Shopify/go-lua"

	"github.com/erquren/xdomain/errors"
)

// globalsMapping exposes a Lua state's globals table as the domain's
// top-level namespace. Only scalar values cross the boundary; tables,
// functions and userdata are invisible to Get and Names and rejected by
// Set. Access is serialized by the domain's exclusivity discipline.
type globalsMapping struct {
	state *lua.State
}

// Get returns the global bound under name, converted to a canonical kind.
// Lua's single number type comes back as int64 when it holds an exact
// integer, float64 otherwise.
func (g *globalsMapping) Get(name string) (any, bool) {
	g.state.Global(name)
	defer g.state.Pop(1)

	switch g.state.TypeOf(-1) {
	case lua.TypeBoolean:
		return g.state.ToBoolean(-1), true
	case lua.TypeNumber:
		n, _ := g.state.ToNumber(-1)
		return numberValue(n), true
	case lua.TypeString:
		s, _ := g.state.ToString(-1)
		return s, true
	default:
		return nil, false
	}
}

// Set binds value as a global under name.
func (g *globalsMapping) Set(name string, value any) error {
	switch x := value.(type) {
	case nil:
		g.state.PushNil()
	case bool:
		g.state.PushBoolean(x)
	case int64:
		g.state.PushNumber(float64(x))
	case float64:
		g.state.PushNumber(x)
	case string:
		g.state.PushString(x)
	case []byte:
		g.state.PushString(string(x))
	default:
		return errors.NotShareable(fmt.Sprintf("no Lua rendering for %T", value))
	}
	g.state.SetGlobal(name)
	return nil
}

// Names returns the string-keyed globals holding scalar values, sorted.
func (g *globalsMapping) Names() []string {
	g.state.PushGlobalTable()
	defer g.state.Pop(1)

	var names []string
	g.state.PushNil()
	for g.state.Next(-2) {
		scalar := false
		switch g.state.TypeOf(-1) {
		case lua.TypeBoolean, lua.TypeNumber, lua.TypeString:
			scalar = true
		}
		g.state.Pop(1)

		// Keys are only read when they are already strings; converting a
		// number key in place would corrupt the traversal.
		if scalar && g.state.TypeOf(-1) == lua.TypeString {
			if s, ok := g.state.ToString(-1); ok {
				names = append(names, s)
			}
		}
	}
	sort.Strings(names)
	return names
}

// numberValue maps a Lua number to int64 when it represents an exact
// integer (within float64's exact range), float64 otherwise.
func numberValue(n float64) any {
	if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
		return int64(n)
	}
	return n
}
