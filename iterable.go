package tycon

import (
	"iter"
	"reflect"
)

// validateIterable checks each element of v against td. Slices, arrays and
// maps are checked eagerly and returned unchanged. Sequences and generator
// functions are wrapped so elements are checked as they are pulled.
func validateIterable(s site, td *TypeDescriptor, v any) (any, error) {
	check := func(at, x any) error {
		if x == nil {
			if td.IsNullableIterable || acceptsVoid(td) {
				return nil
			}
			return s.element(at).fail(td, x)
		}
		if !matches(td, x) {
			return s.element(at).fail(td, x)
		}
		return nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := range rv.Len() {
			if err := check(i, rv.Index(i).Interface()); err != nil {
				return nil, err
			}
		}
		return v, nil
	case reflect.Map:
		elem := rv.Type().Elem()
		isSet := elem.Kind() == reflect.Struct && elem.NumField() == 0
		for m := rv.MapRange(); m.Next(); {
			x := m.Value()
			if isSet {
				x = m.Key()
			}
			if err := check(m.Key().Interface(), x.Interface()); err != nil {
				return nil, err
			}
		}
		return v, nil
	}

	if seq, ok := sequence(rv); ok {
		return checkSeq(seq, check), nil
	}
	if isGeneratorFunc(rv) {
		return func() iter.Seq2[any, error] {
			seq, ok := sequence(rv.Call(nil)[0])
			if !ok {
				return func(yield func(any, error) bool) { yield(nil, s.fail(td, nil)) }
			}
			return checkSeq(seq, check)
		}, nil
	}
	return nil, s.fail(td, v)
}

var errorType = reflect.TypeFor[error]()

// sequence adapts a range-over-func iterator of any element type, or a
// receive channel, to iter.Seq2[any, error]. A two-value iterator whose
// second value is an error yields that error; other two-value iterators
// yield their values.
func sequence(rv reflect.Value) (iter.Seq2[any, error], bool) {
	switch rv.Kind() {
	case reflect.Chan:
		if rv.IsNil() || rv.Type().ChanDir()&reflect.RecvDir == 0 {
			return nil, false
		}
		return values(rv.Seq()), true
	case reflect.Func:
		if rv.IsNil() {
			return nil, false
		}
	default:
		return nil, false
	}

	t := rv.Type()
	switch {
	case t.CanSeq():
		return values(rv.Seq()), true
	case t.CanSeq2():
		if !t.In(0).In(1).Implements(errorType) {
			return func(yield func(any, error) bool) {
				for _, x := range rv.Seq2() {
					if !yield(x.Interface(), nil) {
						return
					}
				}
			}, true
		}
		return func(yield func(any, error) bool) {
			for x, e := range rv.Seq2() {
				err, _ := e.Interface().(error)
				if !yield(x.Interface(), err) {
					return
				}
			}
		}, true
	}
	return nil, false
}

func values(seq iter.Seq[reflect.Value]) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for x := range seq {
			if !yield(x.Interface(), nil) {
				return
			}
		}
	}
}

// isGeneratorFunc reports whether rv is a function taking no arguments and
// returning a sequence.
func isGeneratorFunc(rv reflect.Value) bool {
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return false
	}
	t := rv.Type()
	if t.NumIn() != 0 || t.NumOut() != 1 {
		return false
	}
	switch out := t.Out(0); out.Kind() {
	case reflect.Func:
		return out.CanSeq() || out.CanSeq2()
	case reflect.Chan:
		return out.ChanDir()&reflect.RecvDir != 0
	}
	return false
}

// checkSeq yields the elements of seq, stopping with an error at the first
// element that fails check. Errors from seq itself pass through.
func checkSeq(seq iter.Seq2[any, error], check func(at, x any) error) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		i := 0
		for v, err := range seq {
			if err == nil {
				err = check(i, v)
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(v, nil) {
				return
			}
			i++
		}
	}
}
