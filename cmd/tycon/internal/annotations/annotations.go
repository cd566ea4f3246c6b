package annotations

import (
	"fmt"
	"os"
	"slices"

	"github.com/broady/tycon"
	"github.com/broady/tycon/internal/annotation"
)

type Cmd struct {
	Package string `help:"Package to scan (default: current directory)." short:"p" default:"."`
}

func (c *Cmd) Run() error {
	result, err := annotation.Load(c.Package, "")
	if err != nil {
		return fmt.Errorf("load annotations: %w", err)
	}

	r := tycon.NewResolver(Placeholder)
	failed := 0
	check := func(fn annotation.Func, what, decl string, param bool) {
		if _, err := r.Resolve(tycon.T(decl), nil, param); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %s %s: %v\n", fn.Pos, name(fn), what, err)
			failed++
		}
	}

	for _, fn := range result.Funcs {
		fmt.Printf("%s\n", name(fn))
		if fn.Return != "" {
			fmt.Printf("  return %s\n", fn.Return)
			check(fn, "return", fn.Return, false)
		}
		params := make([]string, 0, len(fn.Params))
		for p := range fn.Params {
			params = append(params, p)
		}
		slices.Sort(params)
		for _, p := range params {
			fmt.Printf("  param %s %s\n", p, fn.Params[p])
			check(fn, "param "+p, fn.Params[p], true)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d annotations do not resolve", failed)
	}
	fmt.Printf("✓ %d annotated functions in %s\n", len(result.Funcs), result.PackagePath)
	return nil
}

// Placeholder resolves every type reference to an unregistered template
// with that name, so only the declaration syntax is checked.
func Placeholder(path string) (*tycon.Template, error) {
	return &tycon.Template{Name: path}, nil
}

func name(fn annotation.Func) string {
	if fn.Recv != "" {
		return fn.Recv + "." + fn.Name
	}
	return fn.Name
}
