package capsule

import (
	"context"
	"math"
	"reflect"

	"github.com/erquren/xdomain/domain"
	"github.com/erquren/xdomain/errors"
)

// staticType is a process-wide builtin type descriptor.
type staticType string

func (t staticType) TypeName() string { return string(t) }
func (t staticType) Static() bool     { return true }

// Builtin type descriptors. Matching is by identity, so these package-level
// values are the canonical handles for the builtin kinds.
var (
	NoneType  domain.Type = staticType("none")
	BoolType  domain.Type = staticType("bool")
	IntType   domain.Type = staticType("int")
	FloatType domain.Type = staticType("float")
	BytesType domain.Type = staticType("bytes")
	StrType   domain.Type = staticType("str")
)

// goType wraps a reflect.Type as a static type descriptor, letting hosts
// register conversions for plain Go types. reflect.Type values are canonical
// so identity matching works unchanged.
type goType struct {
	rt reflect.Type
}

func (t goType) TypeName() string { return t.rt.String() }
func (t goType) Static() bool     { return true }

// GoType returns the type descriptor for a plain Go type.
func GoType(rt reflect.Type) domain.Type {
	return goType{rt: rt}
}

// TypeOf classifies v. Values implementing domain.Typed report their own
// exact type; canonical Go scalars map to the builtin descriptors; anything
// else is keyed by its Go type.
func TypeOf(v any) domain.Type {
	if tv, ok := v.(domain.Typed); ok {
		return tv.ExactType()
	}
	switch v.(type) {
	case nil:
		return NoneType
	case bool:
		return BoolType
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return IntType
	case float32, float64:
		return FloatType
	case []byte:
		return BytesType
	case string:
		return StrType
	default:
		return goType{rt: reflect.TypeOf(v)}
	}
}

// registerBuiltins seeds the process-wide registry. Failure here is a
// programming error; there is no usable system without the builtins.
func registerBuiltins(r *Registry) {
	seed := []struct {
		t  domain.Type
		fn ConvertFunc
	}{
		{NoneType, noneShared},
		{BoolType, boolShared},
		{IntType, intShared},
		{FloatType, floatShared},
		{BytesType, bytesShared},
		{StrType, strShared},
	}
	for _, s := range seed {
		if err := r.Register(s.t, s.fn); err != nil {
			panic("capsule: could not register builtin " + s.t.TypeName() + ": " + err.Error())
		}
	}
}

func newNoneValue(any) (any, error) { return nil, nil }

func noneShared(_ context.Context, _ any, c *Capsule) error {
	c.Init(nil, nil, newNoneValue)
	return nil
}

func newBoolValue(p any) (any, error) { return p.(bool), nil }

func boolShared(_ context.Context, v any, c *Capsule) error {
	c.Init(v.(bool), nil, newBoolValue)
	return nil
}

func newIntValue(p any) (any, error) { return p.(int64), nil }

func intShared(_ context.Context, v any, c *Capsule) error {
	// Shareable integers are bounded to the signed 64-bit range; anything
	// larger goes through the bytes path instead.
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case uint:
		if uint64(x) > math.MaxInt64 {
			return overflowError()
		}
		n = int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return overflowError()
		}
		n = int64(x)
	}
	c.Init(n, nil, newIntValue)
	return nil
}

func overflowError() error {
	return errors.Overflow("integer too large to share; try sending as bytes")
}

func newFloatValue(p any) (any, error) { return p.(float64), nil }

func floatShared(_ context.Context, v any, c *Capsule) error {
	var f float64
	switch x := v.(type) {
	case float32:
		f = float64(x)
	case float64:
		f = x
	}
	c.Init(f, nil, newFloatValue)
	return nil
}

func newBytesValue(p any) (any, error) {
	src := p.([]byte)
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

func bytesShared(_ context.Context, v any, c *Capsule) error {
	src := v.([]byte)
	payload := make([]byte, len(src))
	copy(payload, src)
	c.Init(payload, nil, newBytesValue)
	return nil
}

func newStrValue(p any) (any, error) { return p.(string), nil }

func strShared(_ context.Context, v any, c *Capsule) error {
	// Go strings are immutable; the payload is already self-contained.
	c.Init(v.(string), nil, newStrValue)
	return nil
}
