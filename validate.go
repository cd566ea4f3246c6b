package tycon

import "fmt"

// site identifies where a value is checked.
type site struct {
	typeName string
	member   string
	role     string
}

func (s site) element(at any) site {
	s.role = fmt.Sprintf("element %v of %s", at, s.role)
	return s
}

func (s site) fail(td *TypeDescriptor, v any) *Error {
	expected, given := td.String(), describeValue(v)
	return Errorf(CodeInvalidValue, "%s.%s: %s must be %s, %s given", s.typeName, s.member, s.role, expected, given).
		WithDetails(map[string]any{
			"type":     s.typeName,
			"member":   s.member,
			"expected": expected,
			"given":    given,
		})
}

// WrapReturn validates the value returned by member d of typeName.
// A promise result is replaced by a promise that validates its resolution;
// a lazy iterable result is replaced by an iter.Seq2[any, error] that
// validates each element as it is pulled.
func WrapReturn(typeName string, d *MemberDescriptor, v any) (any, error) {
	return validateValue(site{typeName: typeName, member: d.Name, role: "return value"}, d.Return, v)
}

// ValidateArgs validates and coerces args against the parameters of d.
// Missing trailing arguments are filled from parameter defaults; a missing
// argument without a default is an error. Arguments beyond the declared
// parameters pass through unchecked.
func ValidateArgs(typeName string, d *MemberDescriptor, args []any, eval DefaultEvaluator) ([]any, error) {
	args, err := fillDefaults(d, args, eval)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(args))
	copy(out, args)

	for i, p := range d.Params {
		s := site{typeName: typeName, member: d.Name, role: fmt.Sprintf("parameter %q", p.Name)}
		if p.Variadic {
			for j := i; j < len(out); j++ {
				v, err := validateValue(s.element(j-i), p.typeOf(), out[j])
				if err != nil {
					return nil, err
				}
				out[j] = v
			}
			break
		}
		if i >= len(out) {
			return nil, Errorf(CodeInvalidArgument, "%s.%s: missing argument %q", typeName, d.Name, p.Name).
				WithDetails(map[string]any{"type": typeName, "member": d.Name, "param": p.Name})
		}
		v, err := validateValue(s, p.typeOf(), out[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// fillDefaults appends defaults for missing trailing arguments, stopping at
// the first parameter without one.
func fillDefaults(d *MemberDescriptor, args []any, eval DefaultEvaluator) ([]any, error) {
	if len(args) >= len(d.Params) {
		return args, nil
	}
	out := make([]any, len(args), len(d.Params))
	copy(out, args)
	for _, p := range d.Params[len(args):] {
		if p.Variadic || !p.HasDefault {
			break
		}
		v := p.DefaultValue
		if !p.defaultEvaluated {
			var err error
			if v, err = eval(p.DefaultSource); err != nil {
				return nil, AsError(err).WithDetails(map[string]any{"member": d.Name, "param": p.Name})
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// checkValue validates v against td without naming a member.
func checkValue(td *TypeDescriptor, v any) error {
	_, err := validateValue(site{typeName: "default", member: "value", role: "value"}, td, v)
	return err
}

func validateValue(s site, td *TypeDescriptor, v any) (any, error) {
	if td.Untyped() {
		return v, nil
	}
	if v == nil && td.IsNullable {
		return nil, nil
	}

	if td.CheckPromise {
		p, ok := v.(*Promise)
		if !ok || p == nil {
			return nil, s.fail(td, v)
		}
		return p.Then(func(res any) (any, error) {
			if res == nil && td.IsNullablePromise {
				return nil, nil
			}
			if td.CheckIterable {
				return validateIterable(s, td, res)
			}
			return validateDirect(s, td, res)
		}), nil
	}
	if td.CheckIterable {
		return validateIterable(s, td, v)
	}
	return validateDirect(s, td, v)
}

func validateDirect(s site, td *TypeDescriptor, v any) (any, error) {
	if v == nil {
		if acceptsVoid(td) {
			return nil, nil
		}
		return nil, s.fail(td, v)
	}
	if !matches(td, v) {
		return nil, s.fail(td, v)
	}
	return v, nil
}

func acceptsVoid(td *TypeDescriptor) bool {
	for _, tok := range td.Tokens() {
		if tok == "void" {
			return true
		}
	}
	return false
}
