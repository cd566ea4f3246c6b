package tycon

import "slices"

// CheckCompatible verifies that overriding may replace overridden.
//
// Returns are covariant: an override may narrow the type and drop
// nullability but never widen either. Parameter types are contravariant: an
// override must accept at least what the overridden member accepts, but it
// may not introduce a default or nullability the overridden position lacks.
// Initializers and construct hooks are never checked.
func CheckCompatible(overriding, overridden *MemberDescriptor) error {
	if overriding == nil || overridden == nil {
		return NewError(CodeInvalidArgument, "compatibility check needs two descriptors")
	}
	if isConstructor(overriding) || isConstructor(overridden) {
		return nil
	}

	if overriding.Kind != overridden.Kind {
		return incomparable(overriding, overridden, "kinds differ: "+string(overriding.Kind)+" vs "+string(overridden.Kind))
	}
	if overriding.Kind == MemberField {
		return incomparable(overriding, overridden, "fields are not comparable")
	}
	if overriding.Name != overridden.Name {
		return incomparable(overriding, overridden, "names differ: "+overriding.Name+" vs "+overridden.Name)
	}
	if overriding.Static != overridden.Static {
		return incomparable(overriding, overridden, "static and instance members are not comparable")
	}

	switch overriding.Kind {
	case MemberMethod:
		if err := checkReturn(overriding, overridden); err != nil {
			return err
		}
		return checkParams(overriding, overridden)
	case MemberGetter:
		return checkReturn(overriding, overridden)
	case MemberSetter:
		return checkParams(overriding, overridden)
	}
	return nil
}

func isConstructor(d *MemberDescriptor) bool {
	if d.Static {
		return false
	}
	return d.Name == ConstructorName || (d.IsMagic && d.Name == "__construct")
}

func incomparable(o, p *MemberDescriptor, reason string) *Error {
	return Errorf(CodeIncomparable, "cannot compare %s with %s: %s", o.describe(), p.describe(), reason).
		WithDetails(map[string]any{
			"member":     o.Name,
			"overriding": o.SourceName,
			"overridden": p.SourceName,
		})
}

func incompatible(code ErrorCode, o, p *MemberDescriptor, format string, args ...any) *Error {
	e := Errorf(code, format, args...)
	e.Message = o.describe() + " is incompatible with " + p.describe() + ": " + e.Message
	return e.WithDetails(map[string]any{
		"member":     o.Name,
		"static":     o.Static,
		"kind":       string(o.Kind),
		"overriding": o.SourceName,
		"overridden": p.SourceName,
	})
}

func checkReturn(o, p *MemberDescriptor) error {
	or, pr := o.Return, p.Return
	if pr.Untyped() {
		return nil
	}
	if or.Untyped() {
		return incompatible(CodeIncompatibleReturn, o, p, "return type %s dropped", pr)
	}
	if or.IsNullable && !pr.IsNullable {
		return incompatible(CodeIncompatibleNullable, o, p, "return %s adds nullability to %s", or, pr)
	}
	if or.IsNullablePromise && !pr.IsNullablePromise {
		return incompatible(CodeIncompatibleNullable, o, p, "return %s adds promise nullability to %s", or, pr)
	}
	if or.IsNullableIterable && !pr.IsNullableIterable {
		return incompatible(CodeIncompatibleNullable, o, p, "return %s adds element nullability to %s", or, pr)
	}
	if specializes(or, pr) {
		return nil
	}
	if or.IsBuiltin != pr.IsBuiltin {
		return incompatible(CodeIncompatibleReturn, o, p, "return %s does not match %s", or, pr)
	}
	if (pr.CheckPromise && !or.CheckPromise) || (pr.CheckIterable && !or.CheckIterable) {
		return incompatible(CodeIncompatibleWrapping, o, p, "return %s drops the wrapping of %s", or, pr)
	}
	if or.IsBuiltin {
		if !coversAll(pr.Tokens(), or.Tokens()) {
			return incompatible(CodeIncompatibleReturn, o, p, "return %s widens %s", or, pr)
		}
		return nil
	}
	if !isSubtype(or.Source, pr.Source) {
		return incompatible(CodeIncompatibleReturn, o, p, "return %s is not a subtype of %s", or, pr)
	}
	return nil
}

func checkParams(o, p *MemberDescriptor) error {
	if len(o.Params) < len(p.Params) {
		return incompatible(CodeIncompatibleArity, o, p, "declares %d parameters, expected at least %d",
			len(o.Params), len(p.Params))
	}
	for _, extra := range o.Params[len(p.Params):] {
		if !extra.HasDefault && !extra.Variadic {
			return incompatible(CodeIncompatibleArity, o, p, "extra parameter %q has no default", extra.Name)
		}
	}

	for i, pp := range p.Params {
		op := o.Params[i]
		if op.HasDefault && !pp.HasDefault {
			return incompatible(CodeIncompatibleDefault, o, p, "parameter %q introduces a default", op.Name)
		}
		if (op.IsNullable && !pp.IsNullable) ||
			(op.IsNullablePromise && !pp.IsNullablePromise) ||
			(op.IsNullableIterable && !pp.IsNullableIterable) {
			return incompatible(CodeIncompatibleNullable, o, p, "parameter %q %s introduces nullability absent from %s",
				op.Name, op.typeOf(), pp.typeOf())
		}
		if op.Variadic != pp.Variadic {
			return incompatible(CodeIncompatibleVariadic, o, p, "parameter %q variadic mismatch", op.Name)
		}
		if err := checkParamType(o, p, op, pp); err != nil {
			return err
		}
	}
	return nil
}

func checkParamType(o, p *MemberDescriptor, op, pp *ParamDescriptor) error {
	ot, pt := op.typeOf(), pp.typeOf()
	if ot.Untyped() {
		return nil
	}
	if pt.Untyped() {
		return incompatible(CodeIncompatibleParam, o, p, "parameter %q narrows untyped input to %s", op.Name, ot)
	}
	if specializes(pt, ot) {
		return nil
	}
	if ot.IsBuiltin != pt.IsBuiltin {
		return incompatible(CodeIncompatibleParam, o, p, "parameter %q %s does not match %s", op.Name, ot, pt)
	}
	if (ot.CheckPromise && !pt.CheckPromise) || (ot.CheckIterable && !pt.CheckIterable) {
		return incompatible(CodeIncompatibleWrapping, o, p, "parameter %q %s adds wrapping to %s", op.Name, ot, pt)
	}
	if ot.IsBuiltin {
		if !coversAll(ot.Tokens(), pt.Tokens()) {
			return incompatible(CodeIncompatibleParam, o, p, "parameter %q %s does not accept %s", op.Name, ot, pt)
		}
		return nil
	}
	if !isSubtype(pt.Source, ot.Source) {
		return incompatible(CodeIncompatibleParam, o, p, "parameter %q %s does not accept %s", op.Name, ot, pt)
	}
	return nil
}

// specializes reports whether narrow is a wrapped specialization of a bare
// "promise" or iterable-family builtin.
func specializes(narrow, wide *TypeDescriptor) bool {
	if !wide.IsBuiltin {
		return false
	}
	if wide.Type == "promise" && narrow.CheckPromise {
		return true
	}
	return iterableFamily[wide.Type] && narrow.CheckIterable
}

// coversAll reports whether every token of narrow is accepted by wide.
func coversAll(wide, narrow []string) bool {
	for _, tok := range narrow {
		if !covers(wide, tok) {
			return false
		}
	}
	return true
}

func covers(wide []string, tok string) bool {
	if slices.Contains(wide, tok) {
		return true
	}
	switch tok {
	case "integer", "float":
		return slices.Contains(wide, "number")
	}
	return false
}
