package tycon

import (
	"testing"
)

var (
	compatBase    = &Template{Name: "Base"}
	compatDerived = &Template{Name: "Derived", Parent: compatBase}
	compatOwner   = &Template{Name: "Owner"}
	compatChild   = &Template{Name: "Child", Parent: compatOwner}
)

func TestCheckCompatible_Return(t *testing.T) {
	tests := []struct {
		name       string
		overridden string
		overriding string
		wantCode   ErrorCode
	}{
		{name: "untyped accepts anything", overridden: "", overriding: "?Promise<string>"},
		{name: "untyped accepts untyped", overridden: "", overriding: ""},
		{name: "derived narrows base", overridden: "Base", overriding: "Derived"},
		{name: "base widens derived", overridden: "Derived", overriding: "Base", wantCode: CodeIncompatibleReturn},
		{name: "same union", overridden: "integer|float", overriding: "float|integer"},
		{name: "narrowed union", overridden: "integer|float", overriding: "integer"},
		{name: "widened union", overridden: "integer", overriding: "integer|string", wantCode: CodeIncompatibleReturn},
		{name: "dropped nullability", overridden: "?string", overriding: "string"},
		{name: "added nullability", overridden: "string", overriding: "?string", wantCode: CodeIncompatibleNullable},
		{name: "added promise nullability", overridden: "Promise<string>", overriding: "Promise<?string>", wantCode: CodeIncompatibleNullable},
		{name: "added element nullability", overridden: "Iterable<string>", overriding: "Iterable<?string>", wantCode: CodeIncompatibleNullable},
		{name: "dropped type", overridden: "string", overriding: "", wantCode: CodeIncompatibleReturn},
		{name: "builtin vs reference", overridden: "object", overriding: "Base", wantCode: CodeIncompatibleReturn},
		{name: "promise specialization", overridden: "promise", overriding: "Promise<integer>"},
		{name: "iterable specialization", overridden: "array", overriding: "Iterable<string>"},
		{name: "generator specialization", overridden: "generator", overriding: "Iterable<Derived>"},
		{name: "dropped promise wrapping", overridden: "Promise<string>", overriding: "string", wantCode: CodeIncompatibleWrapping},
		{name: "dropped iteration", overridden: "Iterable<integer>", overriding: "integer", wantCode: CodeIncompatibleWrapping},
		{name: "added wrapping", overridden: "string", overriding: "Promise<string>"},
		{name: "number covers integer", overridden: "number", overriding: "integer"},
		{name: "number covers float union", overridden: "number", overriding: "integer|float"},
		{name: "integer does not cover number", overridden: "integer|float", overriding: "number", wantCode: CodeIncompatibleReturn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := descriptor(t, compatOwner, Method("get", ret(nil)).Returns(T(tt.overridden)))
			child := descriptor(t, compatChild, Method("get", ret(nil)).Returns(T(tt.overriding)))

			err := CheckCompatible(child, parent)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			resp := assertCode(t, err, tt.wantCode)
			if resp.Details["overriding"] != "Child" || resp.Details["overridden"] != "Owner" {
				t.Errorf("unexpected origin details: %v", resp.Details)
			}
		})
	}
}

func TestCheckCompatible_Params(t *testing.T) {
	tests := []struct {
		name       string
		overridden []Param
		overriding []Param
		wantCode   ErrorCode
	}{
		{
			name:       "wider reference accepted",
			overridden: []Param{P("p", T("Derived"))},
			overriding: []Param{P("p", T("Base"))},
		},
		{
			name:       "narrower reference rejected",
			overridden: []Param{P("p", T("Base"))},
			overriding: []Param{P("p", T("Derived"))},
			wantCode:   CodeIncompatibleParam,
		},
		{
			name:       "wider union accepted",
			overridden: []Param{P("p", T("integer"))},
			overriding: []Param{P("p", T("integer|string"))},
		},
		{
			name:       "narrower union rejected",
			overridden: []Param{P("p", T("integer|string"))},
			overriding: []Param{P("p", T("integer"))},
			wantCode:   CodeIncompatibleParam,
		},
		{
			name:       "untyped override accepts anything",
			overridden: []Param{P("p", T("integer"))},
			overriding: []Param{P("p", Decl{})},
		},
		{
			name:       "typed override of untyped rejected",
			overridden: []Param{P("p", Decl{})},
			overriding: []Param{P("p", T("integer"))},
			wantCode:   CodeIncompatibleParam,
		},
		{
			name:       "fewer params rejected",
			overridden: []Param{P("a", T("string")), P("b", T("string"))},
			overriding: []Param{P("a", T("string"))},
			wantCode:   CodeIncompatibleArity,
		},
		{
			name:       "extra param with default accepted",
			overridden: []Param{P("a", T("string"))},
			overriding: []Param{P("a", T("string")), P("b", T("integer")).WithDefault("1")},
		},
		{
			name:       "extra variadic param accepted",
			overridden: []Param{P("a", T("string"))},
			overriding: []Param{P("a", T("string")), P("rest", T("integer")).AsVariadic()},
		},
		{
			name:       "extra required param rejected",
			overridden: []Param{P("a", T("string"))},
			overriding: []Param{P("a", T("string")), P("b", T("integer"))},
			wantCode:   CodeIncompatibleArity,
		},
		{
			name:       "kept default accepted",
			overridden: []Param{P("a", T("string")).WithDefault("'x'")},
			overriding: []Param{P("a", T("string")).WithDefault("'y'")},
		},
		{
			name:       "dropped default accepted",
			overridden: []Param{P("a", T("string")).WithDefault("'x'")},
			overriding: []Param{P("a", T("string"))},
		},
		{
			name:       "introduced default rejected",
			overridden: []Param{P("p", T("integer"))},
			overriding: []Param{P("p", T("integer")).WithDefault("1")},
			wantCode:   CodeIncompatibleDefault,
		},
		{
			name:       "dropped nullability accepted",
			overridden: []Param{P("a", T("?string"))},
			overriding: []Param{P("a", T("string"))},
		},
		{
			name:       "introduced nullability rejected",
			overridden: []Param{P("p", T("integer"))},
			overriding: []Param{P("p", T("?integer"))},
			wantCode:   CodeIncompatibleNullable,
		},
		{
			name:       "introduced promise nullability rejected",
			overridden: []Param{P("p", T("Promise<integer>"))},
			overriding: []Param{P("p", T("Promise<?integer>"))},
			wantCode:   CodeIncompatibleNullable,
		},
		{
			name:       "introduced element nullability rejected",
			overridden: []Param{P("p", T("Iterable<integer>"))},
			overriding: []Param{P("p", T("Iterable<?integer>"))},
			wantCode:   CodeIncompatibleNullable,
		},
		{
			name:       "shared nullability accepted",
			overridden: []Param{P("p", T("?Promise<?Iterable<?integer>>"))},
			overriding: []Param{P("p", T("?Promise<?Iterable<?integer|float>>"))},
		},
		{
			name:       "number param covers integer",
			overridden: []Param{P("p", T("integer"))},
			overriding: []Param{P("p", T("number"))},
		},
		{
			name:       "number param covers float",
			overridden: []Param{P("p", T("float|integer"))},
			overriding: []Param{P("p", T("number"))},
		},
		{
			name:       "integer param does not cover number",
			overridden: []Param{P("p", T("number"))},
			overriding: []Param{P("p", T("integer|float"))},
			wantCode:   CodeIncompatibleParam,
		},
		{
			name:       "several extra variadic-tail params accepted",
			overridden: []Param{},
			overriding: []Param{P("a", T("string")).WithDefault("''"), P("rest", T("integer")).AsVariadic()},
		},
		{
			name:       "variadic mismatch rejected",
			overridden: []Param{P("a", T("string")).AsVariadic()},
			overriding: []Param{P("a", T("string"))},
			wantCode:   CodeIncompatibleVariadic,
		},
		{
			name:       "added wrapping rejected",
			overridden: []Param{P("a", T("string"))},
			overriding: []Param{P("a", T("Promise<string>"))},
			wantCode:   CodeIncompatibleWrapping,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := descriptor(t, compatOwner, Method("test", ret(nil)).Accepts(tt.overridden...))
			child := descriptor(t, compatChild, Method("test", ret(nil)).Accepts(tt.overriding...))

			err := CheckCompatible(child, parent)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			assertCode(t, err, tt.wantCode)
		})
	}
}

func TestCheckCompatible_Incomparable(t *testing.T) {
	method := descriptor(t, compatOwner, Method("x", ret(nil)))
	tests := []struct {
		name string
		d    *MemberDescriptor
	}{
		{"different kind", descriptor(t, compatChild, Getter("x", ret(nil)))},
		{"different name", descriptor(t, compatChild, Method("y", ret(nil)))},
		{"static vs instance", descriptor(t, compatChild, Method("x", ret(nil)).AsStatic())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertCode(t, CheckCompatible(tt.d, method), CodeIncomparable)
		})
	}

	t.Run("fields", func(t *testing.T) {
		a := descriptor(t, compatOwner, Field("f", 1))
		b := descriptor(t, compatChild, Field("f", 2))
		assertCode(t, CheckCompatible(b, a), CodeIncomparable)
	})

	t.Run("nil", func(t *testing.T) {
		assertCode(t, CheckCompatible(nil, method), CodeInvalidArgument)
	})
}

func TestCheckCompatible_ConstructorExempt(t *testing.T) {
	parent := descriptor(t, compatOwner, Method(ConstructorName, ret(nil)).Accepts(P("a", T("string")), P("b", T("string"))))
	child := descriptor(t, compatChild, Method(ConstructorName, ret(nil)).Accepts(P("x", T("integer"))))
	if err := CheckCompatible(child, parent); err != nil {
		t.Errorf("constructors should never be checked: %v", err)
	}
}

func TestCheckCompatible_Setter(t *testing.T) {
	parent := descriptor(t, compatOwner, Setter("v", ret(nil)).Returns(T("integer")))
	wider := descriptor(t, compatChild, Setter("v", ret(nil)).Returns(T("integer|string")))
	nullable := descriptor(t, compatChild, Setter("v", ret(nil)).Returns(T("?integer")))

	if err := CheckCompatible(wider, parent); err != nil {
		t.Errorf("wider setter rejected: %v", err)
	}
	assertCode(t, CheckCompatible(nullable, parent), CodeIncompatibleNullable)
	assertCode(t, CheckCompatible(parent, wider), CodeIncompatibleParam)
}

func init() {
	imports := map[string]*Template{"Base": compatBase, "Derived": compatDerived}
	compatOwner.Imports = imports
	compatChild.Imports = imports
}
