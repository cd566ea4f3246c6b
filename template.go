package tycon

// Kind is the kind of a template.
type Kind string

const (
	KindConcrete  Kind = "concrete"
	KindAbstract  Kind = "abstract"
	KindInterface Kind = "interface"
)

// MemberKind identifies the category of a member.
type MemberKind string

const (
	MemberMethod MemberKind = "method"
	MemberGetter MemberKind = "getter"
	MemberSetter MemberKind = "setter"
	MemberField  MemberKind = "field"
)

// Visibility is the declared accessibility of a member.
type Visibility string

const (
	Public    Visibility = "public"
	Protected Visibility = "protected"
	Private   Visibility = "private"
)

// ConstructorName is the member name of a template's initializer.
// Initializers are never checked for override compatibility.
const ConstructorName = "constructor"

// Func is the body of a method, getter, setter or construct hook.
type Func func(c *Call) (any, error)

// Template is a type definition prior to augmentation.
// The engine only reads templates; it never mutates them.
type Template struct {
	Name      string `validate:"required,excludesall=0x7C<>?"`
	Namespace string
	ModuleID  string

	// Kind defaults to KindConcrete.
	Kind Kind `validate:"omitempty,oneof=concrete abstract interface"`

	Parent     *Template   `validate:"-"`
	Implements []*Template `validate:"-"`

	Members []Member `validate:"dive"`

	// Abstracts lists member tokens ("name" or "static:name") declared abstract
	// in addition to members flagged Abstract.
	Abstracts []string

	// Types overrides declared member types, keyed by member key.
	Types map[string]Signature `validate:"-"`

	// Markers toggles optional features for this template only,
	// e.g. {"validate": {"true"}}.
	Markers map[string][]string

	Hooks Hooks `validate:"-"`

	// Imports maps dotted reference paths to templates for type resolution.
	Imports map[string]*Template `validate:"-"`

	// NativeState marks private native state that interception cannot see.
	NativeState bool
	// Native marks a template modelling a type not authored for the engine.
	Native bool
	// OpaqueInit marks an initializer chain with side effects that make
	// field introspection unsafe.
	OpaqueInit bool
}

func (t *Template) kind() Kind {
	if t.Kind == "" {
		return KindConcrete
	}
	return t.Kind
}

// QualifiedName returns Namespace.Name, or Name when there is no namespace.
func (t *Template) QualifiedName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// Member declares one method, accessor or field.
type Member struct {
	Name string `validate:"required,excludesall=0x7C<>?:"`
	// Token is the indirection token the member was declared through.
	// It keys the member in the pending-abstracts map; empty means Name.
	Token      string
	Kind       MemberKind `validate:"required,oneof=method getter setter field"`
	Static     bool
	Visibility Visibility `validate:"omitempty,oneof=public protected private"`
	Abstract   bool

	Body Func `validate:"-"`

	// Default is a field's initial value. Init, when set, is called per
	// instance instead.
	Default any        `validate:"-"`
	Init    func() any `validate:"-"`

	Params []Param `validate:"dive"`
	Return Decl

	// Doc is the member's comment text; //tycon: annotations in it are
	// read as declared types.
	Doc string
}

// Param declares one parameter.
type Param struct {
	Name     string `validate:"required"`
	Type     Decl
	Variadic bool
	// Default is the literal source of the default value, if any.
	Default string
	// Destructured parameters are recorded but not validated.
	Destructured []Param `validate:"dive"`
}

// Decl is a declared type. Text, when set, takes precedence and is parsed
// with ParseDecl; otherwise Type and the flags are used as given.
type Decl struct {
	Text string

	// Type is nil (untyped), a "|"-joined union string or a *Template.
	Type any `validate:"-"`

	Nullable         bool
	Promise          bool
	NullablePromise  bool
	Iterable         bool
	NullableIterable bool
}

// IsZero reports whether d declares nothing.
func (d Decl) IsZero() bool {
	return d.Text == "" && d.Type == nil && !d.Nullable && !d.Promise &&
		!d.NullablePromise && !d.Iterable && !d.NullableIterable
}

// Signature overrides the declared types of one member.
type Signature struct {
	Params map[string]Decl
	Return *Decl
}

// Hooks declares the dynamic-dispatch capabilities a template implements.
type Hooks struct {
	Construct Func
	Get       func(c *Call, name string) (any, error)
	Set       func(c *Call, name string, value any) error
	Has       func(c *Call, name string) (bool, error)
	Delete    func(c *Call, name string) (bool, error)
	StaticGet func(c *Call, name string) (any, error)
	StaticSet func(c *Call, name string, value any) error
}

// inherit fills the hooks h leaves unset from an ancestor's hooks.
func (h *Hooks) inherit(from Hooks) {
	if h.Get == nil {
		h.Get = from.Get
	}
	if h.Set == nil {
		h.Set = from.Set
	}
	if h.Has == nil {
		h.Has = from.Has
	}
	if h.Delete == nil {
		h.Delete = from.Delete
	}
	if h.StaticGet == nil {
		h.StaticGet = from.StaticGet
	}
	if h.StaticSet == nil {
		h.StaticSet = from.StaticSet
	}
}

// Capabilities is the fixed set of hooks declared by a template.
type Capabilities uint8

const (
	CapConstruct Capabilities = 1 << iota
	CapGet
	CapSet
	CapHas
	CapDelete
	CapStaticGet
	CapStaticSet
)

// Has reports whether every capability in c2 is declared.
func (c Capabilities) Has(c2 Capabilities) bool { return c&c2 == c2 }

func (h Hooks) capabilities() Capabilities {
	var c Capabilities
	if h.Construct != nil {
		c |= CapConstruct
	}
	if h.Get != nil {
		c |= CapGet
	}
	if h.Set != nil {
		c |= CapSet
	}
	if h.Has != nil {
		c |= CapHas
	}
	if h.Delete != nil {
		c |= CapDelete
	}
	if h.StaticGet != nil {
		c |= CapStaticGet
	}
	if h.StaticSet != nil {
		c |= CapStaticSet
	}
	return c
}

// magicNames are the member names recorded for declared hooks.
var magicNames = []struct {
	cap    Capabilities
	name   string
	static bool
}{
	{CapConstruct, "__construct", false},
	{CapGet, "__get", false},
	{CapSet, "__set", false},
	{CapHas, "__has", false},
	{CapDelete, "__delete", false},
	{CapStaticGet, "__get", true},
	{CapStaticSet, "__set", true},
}

// T returns a textual Decl.
func T(text string) Decl { return Decl{Text: text} }

// Ref returns a Decl referencing a concrete template.
func Ref(t *Template) Decl { return Decl{Type: t} }

// P returns a Param.
func P(name string, d Decl) Param { return Param{Name: name, Type: d} }

// Method returns a method member.
func Method(name string, body Func) Member {
	return Member{Name: name, Kind: MemberMethod, Body: body}
}

// Getter returns a getter member.
func Getter(name string, body Func) Member {
	return Member{Name: name, Kind: MemberGetter, Body: body}
}

// Setter returns a setter member. The body receives the value as its only argument.
func Setter(name string, body Func) Member {
	return Member{Name: name, Kind: MemberSetter, Body: body}
}

// Field returns a field member with a default value.
func Field(name string, def any) Member {
	return Member{Name: name, Kind: MemberField, Default: def}
}

// AbstractMethod returns a method member without a body.
func AbstractMethod(name string) Member {
	return Member{Name: name, Kind: MemberMethod, Abstract: true}
}

// Returns returns a copy of m with the given return declaration.
func (m Member) Returns(d Decl) Member {
	m.Return = d
	return m
}

// Accepts returns a copy of m with the given parameters.
func (m Member) Accepts(params ...Param) Member {
	m.Params = params
	return m
}

// AsStatic returns a copy of m declared static.
func (m Member) AsStatic() Member {
	m.Static = true
	return m
}

// WithVisibility returns a copy of m with the given visibility.
func (m Member) WithVisibility(v Visibility) Member {
	m.Visibility = v
	return m
}

// WithDefault returns a copy of p with a literal default value.
func (p Param) WithDefault(src string) Param {
	p.Default = src
	return p
}

// AsVariadic returns a copy of p accepting any number of trailing arguments.
func (p Param) AsVariadic() Param {
	p.Variadic = true
	return p
}

// memberKey returns the table key for a member.
func memberKey(static bool, name string) string {
	if static {
		return "static:" + name
	}
	return name
}
