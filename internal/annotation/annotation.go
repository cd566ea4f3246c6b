// Package annotation reads tycon type annotations from doc comments.
//
// Annotations are comment lines in the form:
//
//	//tycon:return <decl>
//	//tycon:param <name> <decl>
//
// The prose forms "@return <decl>" and "@param <decl> <name>" are also
// accepted, with an optional "$" before the parameter name.
package annotation

import (
	"fmt"
	"go/ast"
	"go/token"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/packages"
)

// Annotation holds the declared types read from one comment.
type Annotation struct {
	Return string
	Params map[string]string
}

// IsZero reports whether no annotation was found.
func (a Annotation) IsZero() bool { return a.Return == "" && len(a.Params) == 0 }

// Parse reads annotations from comment text. Lines may keep or omit their
// leading "//".
func Parse(doc string) (Annotation, error) {
	var a Annotation
	for line := range strings.Lines(doc) {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "//"))
		if err := a.parseLine(line); err != nil {
			return Annotation{}, err
		}
	}
	return a, nil
}

func (a *Annotation) parseLine(line string) error {
	var kind string
	var fields []string
	prose := false
	switch {
	case strings.HasPrefix(line, "tycon:"):
		fields = strings.Fields(strings.TrimPrefix(line, "tycon:"))
		if len(fields) == 0 {
			return fmt.Errorf("empty annotation %q", line)
		}
		kind, fields = fields[0], fields[1:]
	case strings.HasPrefix(line, "@return"), strings.HasPrefix(line, "@param"):
		fields = strings.Fields(strings.TrimPrefix(line, "@"))
		kind, fields = fields[0], fields[1:]
		prose = true
	default:
		return nil
	}

	switch kind {
	case "return":
		if len(fields) == 0 {
			return fmt.Errorf("annotation %q: missing type", line)
		}
		if a.Return != "" {
			return fmt.Errorf("annotation %q: return type already declared as %q", line, a.Return)
		}
		a.Return = strings.Join(fields, " ")
	case "param":
		if len(fields) < 2 {
			return fmt.Errorf("annotation %q: want a parameter name and a type", line)
		}
		name, decl := fields[0], strings.Join(fields[1:], " ")
		if prose {
			name, decl = fields[len(fields)-1], strings.Join(fields[:len(fields)-1], " ")
		}
		name = strings.TrimPrefix(name, "$")
		if a.Params == nil {
			a.Params = make(map[string]string)
		}
		if _, ok := a.Params[name]; ok {
			return fmt.Errorf("annotation %q: parameter %q already declared", line, name)
		}
		a.Params[name] = decl
	default:
		if prose {
			return nil
		}
		return fmt.Errorf("unknown annotation tycon:%s", kind)
	}
	return nil
}

// Func is an annotated function or method found by Load.
type Func struct {
	Name string
	// Recv is the receiver type name for methods, without any pointer.
	Recv string
	Annotation
	Pos token.Position
}

// Result contains the annotated functions of one package.
type Result struct {
	Funcs []Func

	// PackagePath is the import path of the loaded package.
	PackagePath string

	// Dir is the directory containing the package.
	Dir string
}

// Load scans a Go package for annotated function and method doc comments.
// If dir is empty, the current directory is used.
//
// The pattern follows go command semantics and must match exactly one
// package.
func Load(pattern, dir string) (*Result, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedSyntax,
		Dir:  dir,
	}

	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("load package: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found matching %q", pattern)
	}
	if len(pkgs) > 1 {
		return nil, fmt.Errorf("multiple packages found matching %q; specify a single package", pattern)
	}

	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		return nil, fmt.Errorf("package errors: %v", pkg.Errors[0])
	}

	result := &Result{PackagePath: pkg.PkgPath}
	if len(pkg.GoFiles) > 0 {
		result.Dir = filepath.Dir(pkg.GoFiles[0])
	}

	for _, f := range pkg.Syntax {
		funcs, err := parseFile(pkg.Fset, f)
		if err != nil {
			return nil, err
		}
		result.Funcs = append(result.Funcs, funcs...)
	}
	return result, nil
}

// parseFile extracts annotated functions from a single file.
func parseFile(fset *token.FileSet, f *ast.File) ([]Func, error) {
	var funcs []Func
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Doc == nil {
			continue
		}

		// CommentGroup.Text drops directive-style lines, so read the raw list.
		var doc strings.Builder
		for _, c := range fn.Doc.List {
			doc.WriteString(c.Text)
			doc.WriteByte('\n')
		}
		a, err := Parse(doc.String())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fset.Position(fn.Doc.Pos()), err)
		}
		if a.IsZero() {
			continue
		}
		funcs = append(funcs, Func{
			Name:       fn.Name.Name,
			Recv:       recvName(fn),
			Annotation: a,
			Pos:        fset.Position(fn.Pos()),
		})
	}
	return funcs, nil
}

func recvName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return ""
	}
	expr := fn.Recv.List[0].Type
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			return id.Name
		}
	case *ast.IndexListExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			return id.Name
		}
	}
	return ""
}
