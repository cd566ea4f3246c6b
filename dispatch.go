package tycon

import (
	"context"
)

// invoke runs member d with this as receiver. Interceptors run first, then
// argument validation, the body and return validation when the type has
// validation enabled.
func (t *Type) invoke(ctx context.Context, this *Instance, d *MemberDescriptor, args []any) (any, error) {
	if d.IsAbstract || d.body == nil || t.md.kind == KindInterface {
		return nil, Errorf(CodeAbstractCall, "cannot call abstract %s", d.describe()).
			WithDetails(map[string]any{
				"type":   t.md.name,
				"member": d.Name,
				"source": d.SourceName,
			})
	}

	c := newCall(ctx, t, this, d, args)
	if sd := t.superOf(d); sd != nil {
		c.super = func(args ...any) (any, error) {
			return t.invoke(c, this, sd, args)
		}
	}

	handler := t.handler(d)
	if t.interceptor != nil {
		return t.interceptor(c, handler)
	}
	return handler(c)
}

// handler wraps the body of d with argument and return validation.
func (t *Type) handler(d *MemberDescriptor) Func {
	checked := t.md.features.Has(FeatureValidate)
	eval := t.reg.defaults
	return func(c *Call) (any, error) {
		var err error
		if checked {
			c.Args, err = ValidateArgs(d.SourceName, d, c.Args, eval)
		} else {
			c.Args, err = fillDefaults(d, c.Args, eval)
		}
		if err != nil {
			return nil, err
		}
		res, err := d.body(c)
		if err != nil {
			return nil, err
		}
		if checked && d.Kind != MemberSetter {
			return WrapReturn(d.SourceName, d, res)
		}
		return res, nil
	}
}

// superOf finds the implementation d overrides, searching the supertypes
// of the type that declared d.
func (t *Type) superOf(d *MemberDescriptor) *MemberDescriptor {
	owner := t
	for owner != nil && owner.md.template != d.source {
		owner = owner.parent
	}
	if owner == nil {
		return nil
	}
	for p := owner.parent; p != nil; p = p.parent {
		sd := p.md.members[d.Kind].get(d.Key())
		if sd == nil {
			continue
		}
		if sd.IsAbstract || sd.body == nil {
			return nil
		}
		return sd
	}
	return nil
}

// checkAccess enforces member visibility against the scope of the calling
// member, found in ctx. Calls from outside any member see only public
// members.
func (t *Type) checkAccess(ctx context.Context, d *MemberDescriptor) error {
	if d.Visibility == Public || d.Visibility == "" || !t.md.features.Has(FeatureAccess) {
		return nil
	}
	if caller, ok := FromContext(ctx); ok && caller.Member != nil {
		from := caller.Member.source
		switch d.Visibility {
		case Private:
			if from == d.source {
				return nil
			}
		case Protected:
			if isSubtype(from, d.source) || isSubtype(d.source, from) {
				return nil
			}
		}
	}
	return Errorf(CodeAccessDenied, "cannot access %s %s", d.Visibility, d.describe()).
		WithDetails(map[string]any{
			"type":       t.md.name,
			"member":     d.Name,
			"visibility": string(d.Visibility),
		})
}

// bound returns a method as a callable value.
func (t *Type) bound(this *Instance, d *MemberDescriptor) func(ctx context.Context, args ...any) (any, error) {
	return func(ctx context.Context, args ...any) (any, error) {
		return t.invoke(ctx, this, d, args)
	}
}

// hookCall builds the Call passed to a dispatch hook.
func (t *Type) hookCall(ctx context.Context, this *Instance, magic string, static bool, name string) *Call {
	c := newCall(ctx, t, this, t.md.lookup(memberKey(static, magic)), nil)
	c.Name = name
	return c
}
