package tycon

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"testing"

	"github.com/broady/tycon/testutil"
)

func newInstance(t *testing.T, typ *Type, args ...any) *Instance {
	t.Helper()
	inst, err := typ.New(context.Background(), args...)
	if err != nil {
		t.Fatalf("new %s: %v", typ.Name(), err)
	}
	return inst
}

func TestAugment_Memoized(t *testing.T) {
	r, rec := newTestRegistry(t)
	tmpl := &Template{Name: "Point"}

	first := mustAugment(t, r, tmpl)
	second := mustAugment(t, r, tmpl)
	if first != second {
		t.Error("augmenting twice returned different types")
	}
	if first.Metadata() != r.Metadata(tmpl) {
		t.Error("type metadata differs from registry metadata")
	}
	testutil.AssertLogged(t, rec, slog.LevelDebug, "type augmented")
}

func TestAugment_RegistrationError(t *testing.T) {
	r := NewRegistry()
	_, err := r.Augment(&Template{Name: "Broken", Abstracts: []string{"run"}})
	assertCode(t, err, CodeMissingAbstract)

	defer func() {
		if recover() == nil {
			t.Error("MustAugment did not panic")
		}
	}()
	r.MustAugment(&Template{Name: "Broken", Abstracts: []string{"run"}})
}

func TestType_DynamicDispatch(t *testing.T) {
	var gets, hasCalls []string
	tmpl := &Template{
		Name:    "Bag",
		Members: []Member{Field("x", 1), Method("size", ret(2))},
		Hooks: Hooks{
			Get: func(c *Call, name string) (any, error) {
				gets = append(gets, name)
				return "hook:" + name, nil
			},
			Has: func(c *Call, name string) (bool, error) {
				hasCalls = append(hasCalls, name)
				return name == "virtual" && !c.This.HasOwn(name), nil
			},
		},
	}
	r := NewRegistry()
	inst := newInstance(t, mustAugment(t, r, tmpl))
	ctx := context.Background()

	v, err := inst.Get(ctx, "x")
	if err != nil || v != 1 {
		t.Errorf("Get(x) = %v, %v; want 1", v, err)
	}
	if len(gets) != 0 {
		t.Errorf("declared field read invoked the hook: %v", gets)
	}

	v, err = inst.Get(ctx, "y")
	if err != nil || v != "hook:y" {
		t.Errorf("Get(y) = %v, %v; want hook:y", v, err)
	}
	if !reflect.DeepEqual(gets, []string{"y"}) {
		t.Errorf("hook calls = %v, want [y]", gets)
	}

	for name, want := range map[string]bool{"x": true, "size": true, "virtual": true, "nope": false} {
		got, err := inst.Has(ctx, name)
		if err != nil || got != want {
			t.Errorf("Has(%s) = %v, %v; want %v", name, got, err, want)
		}
	}
	if len(hasCalls) != 2 {
		t.Errorf("has hook called for %v, want only virtual and nope", hasCalls)
	}
	if inst.HasOwn("virtual") {
		t.Error("HasOwn consulted the has hook")
	}
	if inst.HasOwn("__get") {
		t.Error("hook descriptors are visible as members")
	}

	t.Run("disabled", func(t *testing.T) {
		gets = nil
		quiet := &Template{Name: "Quiet", Parent: tmpl, Markers: map[string][]string{"magic": {"false"}}}
		q := newInstance(t, mustAugment(t, r, quiet))
		_, err := q.Get(ctx, "y")
		assertCode(t, err, CodeUndefinedMember)
		if len(gets) != 0 {
			t.Errorf("hook called with magic disabled: %v", gets)
		}
	})

	t.Run("inherited", func(t *testing.T) {
		gets = nil
		sub := newInstance(t, mustAugment(t, r, &Template{Name: "SubBag", Parent: tmpl}))
		if v, _ := sub.Get(ctx, "z"); v != "hook:z" {
			t.Errorf("Get(z) = %v, want hook:z", v)
		}
	})
}

func TestInstance_SetDelete(t *testing.T) {
	var sets, deletes []string
	tmpl := &Template{
		Name: "Record",
		Members: []Member{
			Field("id", 0),
			Method("save", ret(nil)),
			Getter("label", ret("record")),
		},
		Hooks: Hooks{
			Set: func(c *Call, name string, value any) error {
				sets = append(sets, fmt.Sprintf("%s=%v", name, value))
				return nil
			},
			Delete: func(c *Call, name string) (bool, error) {
				deletes = append(deletes, name)
				return true, nil
			},
		},
	}
	inst := newInstance(t, mustAugment(t, NewRegistry(), tmpl))
	ctx := context.Background()

	if err := inst.Set(ctx, "id", 7); err != nil {
		t.Fatal(err)
	}
	if v, _ := inst.Get(ctx, "id"); v != 7 {
		t.Errorf("id = %v, want 7", v)
	}
	if err := inst.Set(ctx, "extra", 1); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(sets, []string{"extra=1"}) {
		t.Errorf("set hook calls = %v", sets)
	}

	for _, name := range []string{"save", "label"} {
		err := inst.Set(ctx, name, 1)
		assertCode(t, err, CodeInvalidArgument)
	}

	if ok, _ := inst.Delete(ctx, "id"); !ok {
		t.Error("Delete(id) = false")
	}
	if ok, _ := inst.Delete(ctx, "save"); ok {
		t.Error("Delete(save) = true for a declared method")
	}
	if ok, _ := inst.Delete(ctx, "ghost"); !ok {
		t.Error("Delete(ghost) did not reach the hook")
	}
	if !reflect.DeepEqual(deletes, []string{"ghost"}) {
		t.Errorf("delete hook calls = %v", deletes)
	}

	t.Run("without hooks", func(t *testing.T) {
		plain := newInstance(t, mustAugment(t, NewRegistry(), &Template{Name: "Plain"}))
		if err := plain.Set(ctx, "note", "hi"); err != nil {
			t.Fatal(err)
		}
		if !plain.HasOwn("note") {
			t.Error("own field not created")
		}
		if v, _ := plain.Get(ctx, "note"); v != "hi" {
			t.Errorf("note = %v", v)
		}
		if ok, _ := plain.Delete(ctx, "missing"); ok {
			t.Error("Delete(missing) = true")
		}
		_, err := plain.Get(ctx, "missing")
		resp := assertCode(t, err, CodeUndefinedMember)
		testutil.AssertDetail(t, resp, "static", false)
	})
}

func TestType_NotInstantiable(t *testing.T) {
	r := NewRegistry()
	iface := &Template{Name: "Shape", Kind: KindInterface, Members: []Member{AbstractMethod("area")}}
	abstract := &Template{Name: "Polygon", Kind: KindAbstract, Implements: []*Template{iface}}
	square := &Template{Name: "Square", Parent: abstract, Members: []Member{Method("area", ret(4))}}

	for _, tmpl := range []*Template{iface, abstract} {
		_, err := mustAugment(t, r, tmpl).New(context.Background())
		resp := assertCode(t, err, CodeNotInstantiable)
		testutil.AssertDetail(t, resp, "kind", string(tmpl.Kind))
	}

	sq := newInstance(t, mustAugment(t, r, square))
	if v, err := sq.Call(context.Background(), "area"); err != nil || v != 4 {
		t.Errorf("area() = %v, %v", v, err)
	}

	shape := mustAugment(t, r, iface)
	polygon := mustAugment(t, r, abstract)
	if !shape.IsInstance(sq) || !polygon.IsInstance(sq) {
		t.Error("square is not an instance of its contracts")
	}
	other := newInstance(t, mustAugment(t, r, &Template{Name: "Circle"}))
	if shape.IsInstance(other) || polygon.IsInstance(other) || shape.IsInstance("square") {
		t.Error("unrelated value reported as instance")
	}
}

func TestType_AbstractCall(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	factory := mustAugment(t, r, &Template{Name: "Factory", Kind: KindAbstract, Abstracts: []string{"static:create"}})
	_, err := factory.Call(ctx, "create")
	resp := assertCode(t, err, CodeAbstractCall)
	testutil.AssertDetail(t, resp, "member", "create")

	iface := mustAugment(t, r, &Template{Name: "Named", Kind: KindInterface, Members: []Member{
		Method("describe", ret("named")).AsStatic(),
	}})
	_, err = iface.Call(ctx, "describe")
	assertCode(t, err, CodeAbstractCall)

	_, err = factory.Call(ctx, "missing")
	resp = assertCode(t, err, CodeUndefinedMember)
	testutil.AssertDetail(t, resp, "static", true)
}

func TestType_ConstructHooks(t *testing.T) {
	tests := []struct {
		name       string
		superFirst bool
		want       []string
	}{
		{name: "call then override", superFirst: true, want: []string{"ctor", "base", "child"}},
		{name: "override then call", superFirst: false, want: []string{"ctor", "child", "base"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			base := &Template{
				Name: "Base",
				Members: []Member{Method(ConstructorName, func(c *Call) (any, error) {
					got = append(got, "ctor")
					return nil, nil
				})},
				Hooks: Hooks{Construct: func(c *Call) (any, error) {
					got = append(got, "base")
					return c.Super()
				}},
			}
			child := &Template{
				Name:   "Child",
				Parent: base,
				Hooks: Hooks{Construct: func(c *Call) (any, error) {
					if tt.superFirst {
						if _, err := c.Super(); err != nil {
							return nil, err
						}
						got = append(got, "child")
						return nil, nil
					}
					got = append(got, "child")
					return c.Super()
				}},
			}

			newInstance(t, mustAugment(t, NewRegistry(), child))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("order = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("failure aborts construction", func(t *testing.T) {
		tmpl := &Template{Name: "Fragile", Hooks: Hooks{Construct: func(c *Call) (any, error) {
			return nil, NewError(CodeInvalidArgument, "refused")
		}}}
		_, err := mustAugment(t, NewRegistry(), tmpl).New(context.Background())
		assertCode(t, err, CodeInvalidArgument)
	})
}

func TestType_Constructor(t *testing.T) {
	tmpl := &Template{Name: "User", Members: []Member{
		Field("name", ""),
		Method(ConstructorName, func(c *Call) (any, error) {
			return nil, c.This.Set(c, "name", c.Arg(0))
		}),
	}}
	inst := newInstance(t, mustAugment(t, NewRegistry(), tmpl), "ada")
	if v, _ := inst.Get(context.Background(), "name"); v != "ada" {
		t.Errorf("name = %v, want ada", v)
	}
	_, err := inst.Call(context.Background(), ConstructorName)
	assertCode(t, err, CodeUndefinedMember)
}

func TestType_FieldInit(t *testing.T) {
	n := 0
	tmpl := &Template{Name: "Counter", Members: []Member{
		{Name: "seq", Kind: MemberField, Init: func() any { n++; return n }},
	}}
	typ := mustAugment(t, NewRegistry(), tmpl)
	a, b := newInstance(t, typ), newInstance(t, typ)
	va, _ := a.Get(context.Background(), "seq")
	vb, _ := b.Get(context.Background(), "seq")
	if va == vb {
		t.Errorf("instances share an initialized value: %v", va)
	}
}

func TestType_Constants(t *testing.T) {
	limits := &Template{Name: "Limits", Kind: KindInterface, Members: []Member{Field("MAX", 10).AsStatic()}}
	typ := mustAugment(t, NewRegistry(), &Template{Name: "Queue", Implements: []*Template{limits}})
	ctx := context.Background()

	if v, ok := typ.Constant("MAX"); !ok || v != 10 {
		t.Errorf("Constant(MAX) = %v, %v", v, ok)
	}
	if v, err := typ.Get(ctx, "MAX"); err != nil || v != 10 {
		t.Errorf("Get(MAX) = %v, %v", v, err)
	}
	if !typ.Has("MAX") {
		t.Error("Has(MAX) = false")
	}
	err := typ.Set(ctx, "MAX", 20)
	resp := assertCode(t, err, CodeConstantAssignment)
	testutil.AssertDetail(t, resp, "constant", "MAX")
	if v, _ := typ.Constant("MAX"); v != 10 {
		t.Errorf("constant changed to %v", v)
	}
}

func TestType_Statics(t *testing.T) {
	var hooked []string
	tmpl := &Template{
		Name: "Pool",
		Members: []Member{
			Field("size", 4).AsStatic(),
			Method("create", func(c *Call) (any, error) { return c.Type.New(c) }).AsStatic(),
			Getter("label", ret("pool")).AsStatic(),
			Method("secret", ret("hidden")).AsStatic().WithVisibility(Private),
			Method("reveal", func(c *Call) (any, error) {
				fn, err := c.Type.Get(c, "secret")
				if err != nil {
					return nil, err
				}
				return fn.(func(context.Context, ...any) (any, error))(c)
			}).AsStatic(),
		},
		Hooks: Hooks{
			StaticGet: func(c *Call, name string) (any, error) {
				hooked = append(hooked, "get:"+name)
				return name, nil
			},
			StaticSet: func(c *Call, name string, value any) error {
				hooked = append(hooked, "set:"+name)
				return nil
			},
		},
	}
	typ := mustAugment(t, NewRegistry(), tmpl)
	ctx := context.Background()

	if v, _ := typ.Get(ctx, "size"); v != 4 {
		t.Errorf("size = %v, want 4", v)
	}
	if err := typ.Set(ctx, "size", 8); err != nil {
		t.Fatal(err)
	}
	if v, _ := typ.Get(ctx, "size"); v != 8 {
		t.Errorf("size = %v, want 8", v)
	}
	if v, _ := typ.Get(ctx, "label"); v != "pool" {
		t.Errorf("label = %v", v)
	}

	v, err := typ.Call(ctx, "create")
	if err != nil {
		t.Fatal(err)
	}
	if !typ.IsInstance(v) {
		t.Errorf("create returned %T", v)
	}

	fn, err := typ.Get(ctx, "create")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fn.(func(context.Context, ...any) (any, error))(ctx); err != nil {
		t.Errorf("bound static method failed: %v", err)
	}

	_, err = typ.Get(ctx, "secret")
	assertCode(t, err, CodeAccessDenied)
	if v, err := typ.Call(ctx, "reveal"); err != nil || v != "hidden" {
		t.Errorf("reveal() = %v, %v; want hidden", v, err)
	}

	if v, _ := typ.Get(ctx, "other"); v != "other" {
		t.Errorf("Get(other) = %v", v)
	}
	if err := typ.Set(ctx, "other", 1); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(hooked, []string{"get:other", "set:other"}) {
		t.Errorf("static hook calls = %v", hooked)
	}
	if typ.Has("other") {
		t.Error("Has consulted the static hooks")
	}
}

func TestInstance_Access(t *testing.T) {
	base := &Template{Name: "Account", Members: []Member{
		Field("balance", 100).WithVisibility(Private),
		Method("audit", ret("audited")).WithVisibility(Protected),
		Method("read", func(c *Call) (any, error) { return c.This.Get(c, "balance") }),
	}}
	child := &Template{Name: "Savings", Parent: base, Members: []Member{
		Method("check", func(c *Call) (any, error) { return c.This.Call(c, "audit") }),
		Method("peek", func(c *Call) (any, error) { return c.This.Get(c, "balance") }),
	}}
	r := NewRegistry()
	inst := newInstance(t, mustAugment(t, r, child))
	ctx := context.Background()

	tests := []struct {
		name   string
		call   func() (any, error)
		want   any
		denied bool
	}{
		{"private from outside", func() (any, error) { return inst.Get(ctx, "balance") }, nil, true},
		{"private from declaring type", func() (any, error) { return inst.Call(ctx, "read") }, 100, false},
		{"private from subtype", func() (any, error) { return inst.Call(ctx, "peek") }, nil, true},
		{"protected from outside", func() (any, error) { return inst.Call(ctx, "audit") }, nil, true},
		{"protected from subtype", func() (any, error) { return inst.Call(ctx, "check") }, "audited", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.call()
			if tt.denied {
				resp := assertCode(t, err, CodeAccessDenied)
				if resp.Details["visibility"] == "" {
					t.Errorf("missing visibility detail: %v", resp.Details)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("got %v, %v; want %v", got, err, tt.want)
			}
		})
	}

	t.Run("access disabled", func(t *testing.T) {
		open := &Template{Name: "Open", Parent: base, Markers: map[string][]string{"access": {"false"}}}
		o := newInstance(t, mustAugment(t, r, open))
		if v, err := o.Get(ctx, "balance"); err != nil || v != 100 {
			t.Errorf("Get(balance) = %v, %v", v, err)
		}
	})
}

func TestInstance_Super(t *testing.T) {
	base := &Template{Name: "Greeter", Members: []Member{
		Method("greet", func(c *Call) (any, error) { return "hello", nil }),
		Method("solo", ret("solo")),
	}}
	mid := &Template{Name: "Polite", Parent: base, Members: []Member{
		Method("greet", func(c *Call) (any, error) {
			v, err := c.Super()
			if err != nil {
				return nil, err
			}
			return v.(string) + " please", nil
		}),
	}}
	leaf := &Template{Name: "Formal", Parent: mid}

	r := NewRegistry()
	inst := newInstance(t, mustAugment(t, r, leaf))
	ctx := context.Background()

	if v, err := inst.Call(ctx, "greet"); err != nil || v != "hello please" {
		t.Errorf("greet() = %v, %v", v, err)
	}

	solo := newInstance(t, mustAugment(t, r, &Template{Name: "Lonely", Members: []Member{
		Method("solo", func(c *Call) (any, error) { return c.Super() }),
	}}))
	_, err := solo.Call(ctx, "solo")
	assertCode(t, err, CodeUndefinedMember)
}

func TestInstance_Validation(t *testing.T) {
	tmpl := &Template{
		Name:    "Calc",
		Markers: map[string][]string{"validate": {"true"}},
		Members: []Member{
			Method("double", func(c *Call) (any, error) { return c.Arg(0).(int) * 2, nil }).
				Accepts(P("n", T("integer"))).
				Returns(T("integer")),
			Method("broken", ret("oops")).Returns(T("integer")),
			Method("later", ret(Resolve("x"))).Returns(T("Promise<integer>")),
			Method("greet", func(c *Call) (any, error) { return "hello " + c.Arg(0).(string), nil }).
				Accepts(P("name", T("string")).WithDefault("'world'")),
			Setter("limit", ret(nil)).Returns(T("integer")),
		},
	}
	inst := newInstance(t, mustAugment(t, NewRegistry(), tmpl))
	ctx := context.Background()

	if v, err := inst.Call(ctx, "double", 2); err != nil || v != 4 {
		t.Errorf("double(2) = %v, %v", v, err)
	}

	_, err := inst.Call(ctx, "double", "2")
	resp := assertCode(t, err, CodeInvalidValue)
	testutil.AssertDetail(t, resp, "member", "double")

	_, err = inst.Call(ctx, "broken")
	assertCode(t, err, CodeInvalidValue)

	p, err := inst.Call(ctx, "later")
	if err != nil {
		t.Fatal(err)
	}
	_, err = await(t, p)
	assertCode(t, err, CodeInvalidValue)

	if v, err := inst.Call(ctx, "greet"); err != nil || v != "hello world" {
		t.Errorf("greet() = %v, %v", v, err)
	}

	if err := inst.Set(ctx, "limit", 3); err != nil {
		t.Errorf("Set(limit, 3) = %v", err)
	}
	assertCode(t, inst.Set(ctx, "limit", "3"), CodeInvalidValue)

	t.Run("disabled", func(t *testing.T) {
		loose := &Template{Name: "Loose", Members: []Member{Method("broken", ret("oops")).Returns(T("integer"))}}
		l := newInstance(t, mustAugment(t, NewRegistry(), loose))
		if v, err := l.Call(ctx, "broken"); err != nil || v != "oops" {
			t.Errorf("broken() = %v, %v", v, err)
		}
	})
}

func TestInstance_Accessors(t *testing.T) {
	tmpl := &Template{Name: "Rect", Members: []Member{
		Field("w", 2),
		Field("h", 3),
		Getter("area", func(c *Call) (any, error) {
			w, _ := c.This.Get(c, "w")
			h, _ := c.This.Get(c, "h")
			return w.(int) * h.(int), nil
		}),
		Setter("width", func(c *Call) (any, error) {
			return nil, c.This.Set(c, "w", c.Arg(0))
		}),
		Method("scale", func(c *Call) (any, error) { return c.Arg(0), nil }),
	}}
	inst := newInstance(t, mustAugment(t, NewRegistry(), tmpl))
	ctx := context.Background()

	if v, _ := inst.Get(ctx, "area"); v != 6 {
		t.Errorf("area = %v, want 6", v)
	}
	if err := inst.Set(ctx, "width", 5); err != nil {
		t.Fatal(err)
	}
	if v, _ := inst.Get(ctx, "area"); v != 15 {
		t.Errorf("area = %v, want 15", v)
	}

	fn, err := inst.Get(ctx, "scale")
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := fn.(func(context.Context, ...any) (any, error))(ctx, 9); v != 9 {
		t.Errorf("bound scale(9) = %v", v)
	}

	if err := inst.Set(ctx, "callback", func(ctx context.Context, args ...any) (any, error) { return "cb", nil }); err != nil {
		t.Fatal(err)
	}
	if v, err := inst.Call(ctx, "callback"); err != nil || v != "cb" {
		t.Errorf("callback() = %v, %v", v, err)
	}
}

func TestInstance_Interceptors(t *testing.T) {
	var order []string
	trace := func(name string) Interceptor {
		return func(c *Call, next Func) (any, error) {
			order = append(order, name+":"+c.MemberID())
			return next(c)
		}
	}
	r := NewRegistry().WithInterceptor(trace("outer")).WithInterceptor(trace("inner"))
	tmpl := &Template{Name: "Svc", Members: []Member{Method("ping", func(c *Call) (any, error) {
		order = append(order, "body")
		return "pong", nil
	})}}
	inst := newInstance(t, mustAugment(t, r, tmpl))

	if v, err := inst.Call(context.Background(), "ping"); err != nil || v != "pong" {
		t.Fatalf("ping() = %v, %v", v, err)
	}
	want := []string{"outer:Svc.ping", "inner:Svc.ping", "body"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}
