package tycon

import (
	"math"
	"math/big"
	"reflect"
	"sync"
	"time"
	"weak"
)

// Symbol is a unique token value. Two symbols are equal only if they are
// the same pointer.
type Symbol struct {
	desc string
}

// NewSymbol returns a new unique symbol with a description.
func NewSymbol(desc string) *Symbol { return &Symbol{desc: desc} }

func (s *Symbol) String() string { return "Symbol(" + s.desc + ")" }

// WeakMap associates values with instances without keeping them alive.
type WeakMap struct {
	mu sync.Mutex
	m  map[weak.Pointer[Instance]]any
}

// NewWeakMap returns an empty WeakMap.
func NewWeakMap() *WeakMap {
	return &WeakMap{m: make(map[weak.Pointer[Instance]]any)}
}

// Set associates v with key, replacing any previous value.
func (w *WeakMap) Set(key *Instance, v any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune()
	w.m[weak.Make(key)] = v
}

// Get returns the value associated with key.
func (w *WeakMap) Get(key *Instance) (any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.m[weak.Make(key)]
	return v, ok
}

// Delete removes key and reports whether it was present.
func (w *WeakMap) Delete(key *Instance) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	wp := weak.Make(key)
	_, ok := w.m[wp]
	delete(w.m, wp)
	return ok
}

// prune drops entries whose keys were collected. Callers hold mu.
func (w *WeakMap) prune() {
	for k := range w.m {
		if k.Value() == nil {
			delete(w.m, k)
		}
	}
}

// WeakSet is a set of instances that does not keep its members alive.
type WeakSet struct {
	m WeakMap
}

// NewWeakSet returns an empty WeakSet.
func NewWeakSet() *WeakSet {
	return &WeakSet{m: WeakMap{m: make(map[weak.Pointer[Instance]]any)}}
}

// Add inserts key into the set.
func (s *WeakSet) Add(key *Instance) { s.m.Set(key, struct{}{}) }

// Delete removes key and reports whether it was present.
func (s *WeakSet) Delete(key *Instance) bool { return s.m.Delete(key) }

// Has reports whether key is in the set.
func (s *WeakSet) Has(key *Instance) bool {
	_, ok := s.m.Get(key)
	return ok
}

var (
	promiseType = reflect.TypeFor[*Promise]()
	timeType    = reflect.TypeFor[time.Time]()
)

// matchesToken reports whether v satisfies one primitive type name.
// v is never nil here.
func matchesToken(tok string, v any) bool {
	switch tok {
	case "any":
		return true
	case "void":
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "string":
		_, ok := v.(string)
		return ok
	case "symbol":
		_, ok := v.(*Symbol)
		return ok
	case "bigint":
		_, ok := v.(*big.Int)
		return ok
	case "promise":
		_, ok := v.(*Promise)
		return ok
	case "weakmap":
		_, ok := v.(*WeakMap)
		return ok
	case "weakset":
		_, ok := v.(*WeakSet)
		return ok
	case "date":
		switch v.(type) {
		case time.Time, *time.Time:
			return true
		}
		return false
	case "generator":
		return isGenerator(v)
	}

	rv := reflect.ValueOf(v)
	switch tok {
	case "integer":
		return isInteger(rv)
	case "float":
		return isFloat(rv.Kind())
	case "number":
		return isInteger(rv) || isFloat(rv.Kind())
	case "array":
		return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
	case "typedArray":
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return false
		}
		k := rv.Type().Elem().Kind()
		return isIntKind(k) || isFloat(k)
	case "dictionary":
		return rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
	case "map":
		return rv.Kind() == reflect.Map
	case "set":
		if rv.Kind() != reflect.Map {
			return false
		}
		e := rv.Type().Elem()
		return e.Kind() == reflect.Struct && e.NumField() == 0
	case "callable":
		return rv.Kind() == reflect.Func
	case "async":
		return rv.Kind() == reflect.Func && rv.Type().NumOut() > 0 && rv.Type().Out(0) == promiseType
	case "object":
		switch rv.Kind() {
		case reflect.Pointer, reflect.Struct, reflect.Map, reflect.Slice, reflect.Array, reflect.Interface:
			return rv.Type() != timeType
		}
		return false
	}
	return false
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

// isInteger accepts integer kinds and floats holding an integral value.
func isInteger(rv reflect.Value) bool {
	if isIntKind(rv.Kind()) {
		return true
	}
	if isFloat(rv.Kind()) {
		f := rv.Float()
		return !math.IsInf(f, 0) && f == math.Trunc(f)
	}
	return false
}

func isGenerator(v any) bool {
	rv := reflect.ValueOf(v)
	if _, ok := sequence(rv); ok {
		return true
	}
	return isGeneratorFunc(rv)
}

// matches reports whether a non-nil v satisfies the type of td.
func matches(td *TypeDescriptor, v any) bool {
	if td.Untyped() {
		return true
	}
	if !td.IsBuiltin {
		inst, ok := v.(*Instance)
		return ok && inst.isA(td.Source)
	}
	for _, tok := range td.Tokens() {
		if matchesToken(tok, v) {
			return true
		}
	}
	return false
}

// describeValue names what a value is for diagnostics: a primitive kind,
// the name of its type, or "object".
func describeValue(v any) string {
	if v == nil {
		return "null"
	}
	switch v := v.(type) {
	case *Instance:
		if v == nil {
			return "null"
		}
		return v.typ.md.name
	case *Promise:
		return "Promise"
	case *Symbol:
		return "symbol"
	case *big.Int:
		return "bigint"
	case time.Time, *time.Time:
		return "date"
	}
	rv := reflect.ValueOf(v)
	switch k := rv.Kind(); {
	case k == reflect.Bool:
		return "boolean"
	case k == reflect.String:
		return "string"
	case isIntKind(k):
		return "integer"
	case isFloat(k):
		return "float"
	case k == reflect.Func:
		return "callable"
	case k == reflect.Slice || k == reflect.Array:
		return "array"
	case k == reflect.Map:
		return "map"
	}
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return "null"
	}
	if name := reflect.Indirect(rv).Type().Name(); name != "" {
		return name
	}
	return "object"
}
