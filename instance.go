package tycon

import (
	"context"
	"sync"
)

// Instance is a value of an augmented type. Attribute access goes through
// declared members first and falls through to the type's dispatch hooks.
type Instance struct {
	typ *Type

	mu     sync.RWMutex
	fields map[string]any
}

// Type returns the type the instance was created from.
func (i *Instance) Type() *Type { return i.typ }

func (i *Instance) isA(src *Template) bool {
	return isSubtype(i.typ.md.template, src)
}

// Call invokes an instance method.
func (i *Instance) Call(ctx context.Context, name string, args ...any) (any, error) {
	d := i.typ.md.members[MemberMethod].get(name)
	if d == nil || d.IsMagic || name == ConstructorName {
		if fn, ok := i.field(name); ok {
			if f, ok := fn.(func(ctx context.Context, args ...any) (any, error)); ok {
				return f(ctx, args...)
			}
		}
		return nil, i.typ.undefined(name, false)
	}
	if err := i.typ.checkAccess(ctx, d); err != nil {
		return nil, err
	}
	return i.typ.invoke(ctx, i, d, args)
}

// Get reads an attribute: a getter, a field or a method, then the get hook.
func (i *Instance) Get(ctx context.Context, name string) (any, error) {
	md := i.typ.md
	if d := md.members[MemberGetter].get(name); d != nil {
		if err := i.typ.checkAccess(ctx, d); err != nil {
			return nil, err
		}
		return i.typ.invoke(ctx, i, d, nil)
	}
	if d := md.members[MemberField].get(name); d != nil {
		if err := i.typ.checkAccess(ctx, d); err != nil {
			return nil, err
		}
	}
	if v, ok := i.field(name); ok {
		return v, nil
	}
	if d := md.members[MemberMethod].get(name); d != nil && !d.IsMagic {
		if err := i.typ.checkAccess(ctx, d); err != nil {
			return nil, err
		}
		return i.typ.bound(i, d), nil
	}
	if i.typ.dynamic() && i.typ.hooks.Get != nil {
		return i.typ.hooks.Get(i.typ.hookCall(ctx, i, "__get", false, name), name)
	}
	return nil, i.typ.undefined(name, false)
}

// Set assigns an attribute: a setter or a field, then the set hook. Without
// a set hook an undeclared name becomes an own field.
func (i *Instance) Set(ctx context.Context, name string, v any) error {
	md := i.typ.md
	if d := md.members[MemberSetter].get(name); d != nil {
		if err := i.typ.checkAccess(ctx, d); err != nil {
			return err
		}
		_, err := i.typ.invoke(ctx, i, d, []any{v})
		return err
	}
	if md.members[MemberGetter].get(name) != nil || md.members[MemberMethod].get(name) != nil {
		return Errorf(CodeInvalidArgument, "%s.%s is read-only", md.name, name).
			WithDetails(map[string]any{"type": md.name, "member": name})
	}
	d := md.members[MemberField].get(name)
	if d != nil {
		if err := i.typ.checkAccess(ctx, d); err != nil {
			return err
		}
	}
	if _, ok := i.field(name); d == nil && !ok && i.typ.dynamic() && i.typ.hooks.Set != nil {
		return i.typ.hooks.Set(i.typ.hookCall(ctx, i, "__set", false, name), name, v)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.fields[name] = v
	return nil
}

// Has reports whether an attribute exists, asking the has hook for names
// that are not declared members or fields.
func (i *Instance) Has(ctx context.Context, name string) (bool, error) {
	if i.HasOwn(name) {
		return true, nil
	}
	if i.typ.dynamic() && i.typ.hooks.Has != nil {
		return i.typ.hooks.Has(i.typ.hookCall(ctx, i, "__has", false, name), name)
	}
	return false, nil
}

// HasOwn reports whether name is a declared member or a field of the
// instance. It never calls dispatch hooks, so hooks use it to probe real
// members.
func (i *Instance) HasOwn(name string) bool {
	if _, ok := i.field(name); ok {
		return true
	}
	d := i.typ.md.lookup(name)
	return d != nil && !d.IsMagic
}

// Delete removes a field. Declared methods and accessors cannot be
// deleted; names that are not fields fall through to the delete hook.
func (i *Instance) Delete(ctx context.Context, name string) (bool, error) {
	i.mu.Lock()
	if _, ok := i.fields[name]; ok {
		delete(i.fields, name)
		i.mu.Unlock()
		return true, nil
	}
	i.mu.Unlock()

	if i.HasOwn(name) {
		return false, nil
	}
	if i.typ.dynamic() && i.typ.hooks.Delete != nil {
		return i.typ.hooks.Delete(i.typ.hookCall(ctx, i, "__delete", false, name), name)
	}
	return false, nil
}

func (i *Instance) field(name string) (any, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	v, ok := i.fields[name]
	return v, ok
}
