package tycon

import (
	"slices"
	"strings"
)

// primitives is the fixed, case-sensitive vocabulary of builtin type names.
var primitives = map[string]bool{
	"any":        true,
	"array":      true,
	"async":      true,
	"bigint":     true,
	"boolean":    true,
	"callable":   true,
	"date":       true,
	"dictionary": true,
	"float":      true,
	"generator":  true,
	"integer":    true,
	"map":        true,
	"number":     true,
	"object":     true,
	"parent":     true,
	"promise":    true,
	"self":       true,
	"set":        true,
	"string":     true,
	"symbol":     true,
	"typedArray": true,
	"void":       true,
	"weakmap":    true,
	"weakset":    true,
}

// iterableToken is only meaningful as a per-element marker, never as a declared type.
const iterableToken = "iterable"

// iterableFamily are builtin types whose values are iterated by CheckIterable.
var iterableFamily = map[string]bool{
	"array":      true,
	"generator":  true,
	"map":        true,
	"set":        true,
	"typedArray": true,
}

// IsPrimitive reports whether name is part of the builtin type vocabulary.
func IsPrimitive(name string) bool { return primitives[name] }

// TypeDescriptor is the resolved, comparable form of a declared type.
type TypeDescriptor struct {
	// Type is the normalized "|"-joined union when IsBuiltin is true, and
	// empty otherwise.
	Type string
	// Source is the referenced template when IsBuiltin is false.
	Source *Template

	IsBuiltin bool

	IsNullable         bool
	IsNullablePromise  bool
	IsNullableIterable bool
	CheckPromise       bool
	CheckIterable      bool
}

// Untyped reports whether no type check is performed.
func (d *TypeDescriptor) Untyped() bool {
	return d == nil || (d.Type == "" && d.Source == nil)
}

// Tokens returns the union members of a builtin type.
func (d *TypeDescriptor) Tokens() []string {
	if d == nil || !d.IsBuiltin || d.Type == "" {
		return nil
	}
	return strings.Split(d.Type, "|")
}

func (d *TypeDescriptor) clone() *TypeDescriptor {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// String renders the type the way ParseDecl reads it, e.g.
// "?Promise<?Iterable<integer|float>>".
func (d *TypeDescriptor) String() string {
	if d == nil {
		return "any"
	}
	s := "any"
	switch {
	case d.IsBuiltin && d.Type != "":
		s = d.Type
	case d.Source != nil:
		s = d.Source.QualifiedName()
	}
	if d.CheckIterable {
		s = "Iterable<" + nullMark(d.IsNullableIterable) + s + ">"
	}
	if d.CheckPromise {
		s = "Promise<" + nullMark(d.IsNullablePromise) + s + ">"
	}
	return nullMark(d.IsNullable) + s
}

func nullMark(b bool) string {
	if b {
		return "?"
	}
	return ""
}

// ParseDecl parses the textual form of a declared type:
//
//	decl  = ["?"] ( "promise<" inner ">" | "iterable<" elem ">" | union )
//	inner = ["?"] ( "iterable<" elem ">" | union )
//	elem  = ["?"] union
//
// Wrapper names are case-insensitive. An empty string is untyped.
func ParseDecl(s string) (Decl, error) {
	var d Decl
	rest := strings.TrimSpace(s)
	if rest == "" {
		return d, nil
	}

	d.Nullable, rest = cutNullable(rest)
	if inner, ok := unwrapDecl(rest, "promise"); ok {
		d.Promise = true
		d.NullablePromise, rest = cutNullable(inner)
		if elem, ok := unwrapDecl(rest, iterableToken); ok {
			d.Iterable = true
			d.NullableIterable, rest = cutNullable(elem)
		}
	} else if elem, ok := unwrapDecl(rest, iterableToken); ok {
		d.Iterable = true
		d.NullableIterable, rest = cutNullable(elem)
	}

	if rest == "" || strings.ContainsAny(rest, "<>?") {
		return Decl{}, Errorf(CodeInvalidDecl, "invalid type declaration %q", s).
			WithDetail("decl", s)
	}
	d.Type = rest
	return d, nil
}

func cutNullable(s string) (bool, string) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "?"); ok {
		return true, strings.TrimSpace(rest)
	}
	return false, s
}

func unwrapDecl(s, wrapper string) (string, bool) {
	if len(s) < len(wrapper)+2 || !strings.EqualFold(s[:len(wrapper)], wrapper) {
		return "", false
	}
	rest := strings.TrimSpace(s[len(wrapper):])
	if !strings.HasPrefix(rest, "<") || !strings.HasSuffix(rest, ">") {
		return "", false
	}
	return strings.TrimSpace(rest[1 : len(rest)-1]), true
}

// LookupFunc resolves a dotted reference path to a template.
type LookupFunc func(path string) (*Template, error)

// Resolver converts declared types into TypeDescriptors.
type Resolver struct {
	lookup LookupFunc
}

// NewResolver returns a Resolver that falls back to lookup for references
// not visible from the context template. lookup may be nil.
func NewResolver(lookup LookupFunc) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve resolves d in the context of the template declaring it.
// param reports whether d is declared in parameter position.
func (r *Resolver) Resolve(d Decl, context *Template, param bool) (*TypeDescriptor, error) {
	if d.Text != "" {
		parsed, err := ParseDecl(d.Text)
		if err != nil {
			return nil, err
		}
		d = parsed
	}

	td := &TypeDescriptor{
		IsNullable:         d.Nullable,
		IsNullablePromise:  d.NullablePromise,
		IsNullableIterable: d.NullableIterable,
		CheckPromise:       d.Promise,
		CheckIterable:      d.Iterable,
	}

	switch typ := d.Type.(type) {
	case nil:
		return td, nil
	case *Template:
		if typ == nil {
			return td, nil
		}
		td.Source = typ
		return td, nil
	case string:
		return r.resolveUnion(td, typ, context, param)
	default:
		return nil, Errorf(CodeInvalidArgument, "type must be a string or *Template, got %T", d.Type)
	}
}

func (r *Resolver) resolveUnion(td *TypeDescriptor, union string, context *Template, param bool) (*TypeDescriptor, error) {
	var tokens []string
	for _, raw := range strings.Split(union, "|") {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			return nil, Errorf(CodeInvalidDecl, "empty member in type union %q", union).
				WithDetail("decl", union)
		}
		if tok == "any" || slices.Contains(tokens, tok) {
			continue
		}
		tokens = append(tokens, tok)
	}

	if len(tokens) == 0 {
		return td, nil
	}

	if len(tokens) > 1 {
		for _, tok := range tokens {
			if tok == "self" || tok == "parent" {
				return nil, Errorf(CodeKeywordInUnion, "%q cannot be used in a type union (%s)", tok, union).
					WithDetail("keyword", tok)
			}
		}
	}

	for _, tok := range tokens {
		if tok == iterableToken {
			return nil, Errorf(CodeStandaloneIterable, "%q is only valid as an element marker", iterableToken)
		}
		if tok == "void" && param {
			return nil, Errorf(CodeInvalidDefinition, "void is not a valid parameter type").
				WithDetail("token", tok)
		}
	}

	if len(tokens) == 1 {
		switch tok := tokens[0]; tok {
		case "self":
			if context == nil {
				return nil, NewError(CodeWrongSource, `"self" used without a declaring type`).
					WithDetail("keyword", tok)
			}
			td.Source = context
			return td, nil
		case "parent":
			if context == nil || context.Parent == nil {
				return nil, NewError(CodeWrongSource, `"parent" used in a type without a supertype`).
					WithDetail("keyword", tok)
			}
			td.Source = context.Parent
			return td, nil
		default:
			if !primitives[tok] {
				src, err := r.reference(tok, context)
				if err != nil {
					return nil, err
				}
				td.Source = src
				return td, nil
			}
		}
	}

	for _, tok := range tokens {
		if !primitives[tok] {
			return nil, Errorf(CodeInvalidDefinition, "unknown type %q in union %q", tok, union).
				WithDetail("token", tok)
		}
	}
	td.IsBuiltin = true
	td.Type = strings.Join(tokens, "|")
	return td, nil
}

// reference resolves a dotted path: context imports first, then the
// context's own hierarchy, then the registry lookup.
func (r *Resolver) reference(path string, context *Template) (*Template, error) {
	if context != nil {
		for t := context; t != nil; t = t.Parent {
			if src, ok := t.Imports[path]; ok && src != nil {
				return src, nil
			}
		}
		if src := findInHierarchy(context, path, map[*Template]bool{}); src != nil {
			return src, nil
		}
	}
	if r.lookup != nil {
		src, err := r.lookup(path)
		if err != nil {
			return nil, err
		}
		if src != nil {
			return src, nil
		}
	}
	return nil, Errorf(CodeInvalidDefinition, "cannot resolve type %q", path).
		WithDetail("token", path)
}

func findInHierarchy(t *Template, path string, seen map[*Template]bool) *Template {
	if t == nil || seen[t] {
		return nil
	}
	seen[t] = true
	if t.Name == path || t.QualifiedName() == path {
		return t
	}
	if src := findInHierarchy(t.Parent, path, seen); src != nil {
		return src
	}
	for _, c := range t.Implements {
		if src := findInHierarchy(c, path, seen); src != nil {
			return src
		}
	}
	return nil
}

// isSubtype reports whether a equals b or descends from / implements b.
func isSubtype(a, b *Template) bool {
	return reaches(a, b, map[*Template]bool{})
}

func reaches(a, b *Template, seen map[*Template]bool) bool {
	if a == nil || b == nil || seen[a] {
		return false
	}
	if a == b {
		return true
	}
	seen[a] = true
	if reaches(a.Parent, b, seen) {
		return true
	}
	for _, c := range a.Implements {
		if reaches(c, b, seen) {
			return true
		}
	}
	return false
}
