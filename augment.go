package tycon

import (
	"context"
	"log/slog"
	"sync"
)

// Type is the runtime-enforcing form of a registered template. Values are
// created with New, and static members are reached through Call, Get, Set
// and Has.
type Type struct {
	reg         *Registry
	md          *Metadata
	parent      *Type
	interceptor Interceptor

	// hooks are the nearest declared dispatch hooks along the chain.
	hooks     Hooks
	construct []Func

	mu      sync.RWMutex
	statics map[string]any
}

// Augment returns the runtime type for t, registering t first when it is
// not registered yet. Augmenting the same template again returns the same
// *Type.
func (r *Registry) Augment(t *Template) (*Type, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	md, err := r.registerAtomic(t)
	if err != nil {
		return nil, err
	}
	return r.augment(md), nil
}

// MustAugment is like Augment but panics on error.
func (r *Registry) MustAugment(t *Template) *Type {
	typ, err := r.Augment(t)
	if err != nil {
		panic(err)
	}
	return typ
}

func (r *Registry) augment(md *Metadata) *Type {
	if typ, ok := r.types[md.template]; ok {
		return typ
	}
	typ := &Type{
		reg:         r,
		md:          md,
		interceptor: chainInterceptors(r.interceptors),
		statics:     make(map[string]any),
	}
	if md.parent != nil {
		typ.parent = r.augment(md.parent)
	}

	for ty := typ; ty != nil; ty = ty.parent {
		h := ty.md.template.Hooks
		if h.Construct != nil {
			typ.construct = append(typ.construct, h.Construct)
		}
		typ.hooks.inherit(h)
	}

	md.members[MemberField].each(func(key string, d *MemberDescriptor) {
		if d.Static {
			typ.statics[d.Name] = initialValue(d)
		}
	})

	r.types[md.template] = typ
	r.log().Debug("type augmented",
		slog.String("type", md.template.QualifiedName()),
		slog.String("kind", string(md.kind)))
	return typ
}

// initialValue returns a field's value for a new instance or type, read
// from the declaring template.
func initialValue(d *MemberDescriptor) any {
	for _, m := range d.source.Members {
		if m.Kind != MemberField || m.Name != d.Name || m.Static != d.Static {
			continue
		}
		if m.Init != nil {
			return m.Init()
		}
		return m.Default
	}
	return nil
}

// Name returns the type name.
func (t *Type) Name() string { return t.md.name }

// Metadata returns the registered metadata of the type.
func (t *Type) Metadata() *Metadata { return t.md }

// Parent returns the augmented supertype, or nil.
func (t *Type) Parent() *Type { return t.parent }

// Constant returns the value of a declared constant.
func (t *Type) Constant(name string) (any, bool) {
	c, ok := t.md.constants[name]
	return c.Value, ok
}

// IsInstance reports whether v is an instance of t. For interfaces, any
// instance whose type lists the interface among its contracts answers true.
func (t *Type) IsInstance(v any) bool {
	inst, ok := v.(*Instance)
	if !ok || inst == nil {
		return false
	}
	if t.md.kind == KindInterface {
		return inst.typ.md.Implements(t.md.uuid)
	}
	for ty := inst.typ; ty != nil; ty = ty.parent {
		if ty == t {
			return true
		}
	}
	return false
}

// New creates an instance. Fields are initialized, then the constructor
// runs, then the construct hook.
func (t *Type) New(ctx context.Context, args ...any) (*Instance, error) {
	if t.md.kind != KindConcrete {
		return nil, Errorf(CodeNotInstantiable, "cannot instantiate %s %s", t.md.kind, t.md.name).
			WithDetails(map[string]any{"type": t.md.name, "kind": string(t.md.kind)})
	}

	inst := &Instance{typ: t, fields: make(map[string]any)}
	t.md.members[MemberField].each(func(key string, d *MemberDescriptor) {
		if !d.Static {
			inst.fields[d.Name] = initialValue(d)
		}
	})

	if d := t.md.members[MemberMethod].get(ConstructorName); d != nil && !d.IsAbstract && d.body != nil {
		if _, err := t.invoke(ctx, inst, d, args); err != nil {
			return nil, err
		}
	}
	if len(t.construct) > 0 {
		if _, err := t.runConstruct(ctx, inst, 0, args); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// runConstruct invokes the i'th construct hook; its Super runs the next one.
func (t *Type) runConstruct(ctx context.Context, inst *Instance, i int, args []any) (any, error) {
	if i >= len(t.construct) {
		return nil, nil
	}
	d := t.md.lookup(memberKey(false, "__construct"))
	c := newCall(ctx, t, inst, d, args)
	c.super = func(args ...any) (any, error) {
		return t.runConstruct(c, inst, i+1, args)
	}
	return t.construct[i](c)
}

// Call invokes a static method.
func (t *Type) Call(ctx context.Context, name string, args ...any) (any, error) {
	d := t.md.members[MemberMethod].get(memberKey(true, name))
	if d == nil {
		return nil, t.undefined(name, true)
	}
	if err := t.checkAccess(ctx, d); err != nil {
		return nil, err
	}
	return t.invoke(ctx, nil, d, args)
}

// Get reads a static attribute: a static getter or field, then a constant,
// then the static get hook.
func (t *Type) Get(ctx context.Context, name string) (any, error) {
	key := memberKey(true, name)
	if d := t.md.members[MemberGetter].get(key); d != nil {
		if err := t.checkAccess(ctx, d); err != nil {
			return nil, err
		}
		return t.invoke(ctx, nil, d, nil)
	}
	if d := t.md.members[MemberField].get(key); d != nil {
		if err := t.checkAccess(ctx, d); err != nil {
			return nil, err
		}
		t.mu.RLock()
		defer t.mu.RUnlock()
		return t.statics[name], nil
	}
	if c, ok := t.md.constants[name]; ok {
		return c.Value, nil
	}
	if d := t.md.members[MemberMethod].get(key); d != nil {
		if err := t.checkAccess(ctx, d); err != nil {
			return nil, err
		}
		return t.bound(nil, d), nil
	}
	if t.dynamic() && t.hooks.StaticGet != nil {
		return t.hooks.StaticGet(t.hookCall(ctx, nil, "__get", true, name), name)
	}
	return nil, t.undefined(name, true)
}

// Set assigns a static attribute. Constants cannot be assigned.
func (t *Type) Set(ctx context.Context, name string, v any) error {
	if _, ok := t.md.constants[name]; ok {
		return Errorf(CodeConstantAssignment, "cannot assign constant %s::%s", t.md.name, name).
			WithDetails(map[string]any{"type": t.md.name, "constant": name})
	}
	key := memberKey(true, name)
	if d := t.md.members[MemberSetter].get(key); d != nil {
		if err := t.checkAccess(ctx, d); err != nil {
			return err
		}
		_, err := t.invoke(ctx, nil, d, []any{v})
		return err
	}
	if d := t.md.members[MemberField].get(key); d != nil {
		if err := t.checkAccess(ctx, d); err != nil {
			return err
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		t.statics[name] = v
		return nil
	}
	if t.dynamic() && t.hooks.StaticSet != nil {
		return t.hooks.StaticSet(t.hookCall(ctx, nil, "__set", true, name), name, v)
	}
	return t.undefined(name, true)
}

// Has reports whether a static member or constant exists.
func (t *Type) Has(name string) bool {
	if _, ok := t.md.constants[name]; ok {
		return true
	}
	return t.md.lookup(memberKey(true, name)) != nil
}

// dynamic reports whether dispatch hooks are active for t.
func (t *Type) dynamic() bool { return t.md.features.Has(FeatureMagic) }

func (t *Type) undefined(name string, static bool) *Error {
	kind := "member"
	if static {
		kind = "static member"
	}
	return Errorf(CodeUndefinedMember, "%s has no %s %q", t.md.name, kind, name).
		WithDetails(map[string]any{"type": t.md.name, "member": name, "static": static})
}
