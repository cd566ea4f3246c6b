package tycon

import (
	"context"
)

type contextKey struct {
	name string
}

var callKey = &contextKey{"call"}

// Call is the context passed to member bodies, hooks and interceptors.
// It embeds context.Context, so it can be passed to any function expecting
// one. Calls made with a *Call as context run inside the calling member's
// scope, which is what private and protected access is checked against.
type Call struct {
	context.Context

	// This is the receiver, or nil for static members.
	This *Instance
	// Type is the type the call was dispatched through.
	Type *Type
	// Member is the descriptor being invoked. For hooks it is the
	// corresponding magic descriptor.
	Member *MemberDescriptor
	// Args holds the arguments after default filling and validation.
	Args []any
	// Name is the attribute name passed to a dispatch hook.
	Name string

	super func(args ...any) (any, error)
}

func newCall(parent context.Context, typ *Type, this *Instance, d *MemberDescriptor, args []any) *Call {
	if parent == nil {
		parent = context.Background()
	}
	c := &Call{
		This:   this,
		Type:   typ,
		Member: d,
		Args:   args,
	}
	c.Context = context.WithValue(parent, callKey, c)
	return c
}

// FromContext returns the *Call the context was derived from, if any.
func FromContext(ctx context.Context) (*Call, bool) {
	if c, ok := ctx.(*Call); ok {
		return c, true
	}
	if ctx == nil {
		return nil, false
	}
	c, ok := ctx.Value(callKey).(*Call)
	return c, ok
}

// Arg returns the i'th argument, or nil when fewer were passed.
func (c *Call) Arg(i int) any {
	if i < 0 || i >= len(c.Args) {
		return nil
	}
	return c.Args[i]
}

// MemberName returns the name of the invoked member.
func (c *Call) MemberName() string {
	if c.Member == nil {
		return ""
	}
	return c.Member.Name
}

// TypeName returns the name of the type the call was dispatched through.
func (c *Call) TypeName() string {
	if c.Type == nil {
		return ""
	}
	return c.Type.md.name
}

// MemberID returns "Type.member" for the invoked member, the form used in
// logs and diagnostics.
func (c *Call) MemberID() string {
	return c.TypeName() + "." + c.MemberName()
}

// Super invokes the implementation this member overrides, with the same
// receiver. In a construct hook it invokes the inherited hook, and is a
// no-op when there is none.
func (c *Call) Super(args ...any) (any, error) {
	if c.super == nil {
		return nil, Errorf(CodeUndefinedMember, "%s has no inherited implementation", c.Member.describe()).
			WithDetails(map[string]any{"type": c.TypeName(), "member": c.MemberName()})
	}
	return c.super(args...)
}
