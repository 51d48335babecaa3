package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	xdomain "github.com/erquren/xdomain"
	"github.com/erquren/xdomain/domain"
	"github.com/erquren/xdomain/luahost"
	"github.com/erquren/xdomain/session"
)

func main() {
	var (
		domains     = flag.Int("domains", 2, "Number of Lua domains to spawn")
		evalStr     = flag.String("eval", "", "Chunk to run in the target domain")
		shareStr    = flag.String("share", "", "Bindings shared into the target (k=v,k2=v2)")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *interactive {
		if err := runInteractive(*domains); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *evalStr == "" && *shareStr == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -eval <chunk> [-share k=v,...] [-domains n]")
		fmt.Fprintln(os.Stderr, "       run -i  (interactive mode)")
		os.Exit(1)
	}

	if err := run(*domains, *evalStr, *shareStr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(n int, chunk, shareStr string) error {
	host := luahost.New()
	defer host.Close()

	if n < 2 {
		n = 2
	}
	doms := make([]*luahost.Domain, 0, n)
	for i := 0; i < n; i++ {
		d, err := host.Spawn(fmt.Sprintf("domain-%d", i+1))
		if err != nil {
			return fmt.Errorf("spawn: %w", err)
		}
		doms = append(doms, d)
	}
	caller, target := doms[0], doms[len(doms)-1]

	fmt.Printf("Domains: %d\n", n)
	fmt.Printf("Caller: %s  Target: %s\n", caller.Name(), target.Name())

	bindings := parseBindings(shareStr)
	ctx := domain.Activate(context.Background(), caller.Core())

	s, tctx, err := session.Enter(ctx, host.System(), target.Core(), bindings)
	if err != nil {
		return fmt.Errorf("enter %s: %w", target.Name(), err)
	}

	if chunk != "" {
		fmt.Printf("\nRunning in %s: %s\n", target.Name(), chunk)
		if err := target.Eval(chunk); err != nil {
			fmt.Printf("Chunk failed; the failure will be proxied on exit.\n")
		}
	}

	s.Exit(tctx)

	if s.HasCaptured() {
		return s.ApplyCaptured(nil)
	}

	globals, err := target.Core().Globals()
	if err != nil {
		return fmt.Errorf("globals: %w", err)
	}
	fmt.Printf("\nGlobals of %s:\n", target.Name())
	for _, name := range globals.Names() {
		if name == "_VERSION" {
			continue
		}
		v, _ := globals.Get(name)
		fmt.Printf("  %s = %v\n", name, v)
	}
	return nil
}

// parseBindings parses "k=v,k2=v2" into typed bindings: integers, floats
// and booleans are recognized, anything else stays a string.
func parseBindings(s string) xdomain.Bindings {
	if s == "" {
		return nil
	}
	b := xdomain.Bindings{}
	for _, kv := range strings.Split(s, ",") {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			continue
		}
		b[parts[0]] = parseValue(parts[1])
	}
	return b
}

func parseValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
