package tycon

import (
	"slices"

	"github.com/google/uuid"
)

// Constant is a static read-only binding. A constant name may appear only
// once across a type's contract and inheritance graph.
type Constant struct {
	Name       string
	Value      any
	SourceName string
	SourceUUID uuid.UUID
}

// table is an insertion-ordered descriptor map.
type table struct {
	byKey map[string]*MemberDescriptor
	order []string
}

func newTable() *table {
	return &table{byKey: make(map[string]*MemberDescriptor)}
}

func (t *table) get(key string) *MemberDescriptor { return t.byKey[key] }

func (t *table) set(key string, d *MemberDescriptor) {
	if _, ok := t.byKey[key]; !ok {
		t.order = append(t.order, key)
	}
	t.byKey[key] = d
}

func (t *table) remove(key string) {
	if _, ok := t.byKey[key]; !ok {
		return
	}
	delete(t.byKey, key)
	t.order = slices.DeleteFunc(t.order, func(k string) bool { return k == key })
}

func (t *table) each(fn func(key string, d *MemberDescriptor)) {
	for _, k := range t.order {
		fn(k, t.byKey[k])
	}
}

func (t *table) len() int { return len(t.order) }

var memberKinds = []MemberKind{MemberMethod, MemberGetter, MemberSetter, MemberField}

// Metadata is the merged record of all descriptors, contracts and constants
// of one registered type. It is frozen once registration succeeds; all
// accessors return copies.
type Metadata struct {
	uuid      uuid.UUID
	name      string
	namespace string
	moduleID  string
	kind      Kind
	features  Features
	caps      Capabilities
	implicit  bool

	template   *Template
	parent     *Metadata
	interfaces []uuid.UUID
	constants  map[string]Constant
	constOrder []string
	members    map[MemberKind]*table
	abstracts  *table
	frozen     bool
}

func newMetadata(t *Template, features Features, implicit bool) *Metadata {
	md := &Metadata{
		uuid:      uuid.New(),
		name:      t.Name,
		namespace: t.Namespace,
		moduleID:  t.ModuleID,
		kind:      t.kind(),
		features:  features,
		caps:      t.Hooks.capabilities(),
		implicit:  implicit,
		template:  t,
		constants: make(map[string]Constant),
		members:   make(map[MemberKind]*table, len(memberKinds)),
		abstracts: newTable(),
	}
	for _, k := range memberKinds {
		md.members[k] = newTable()
	}
	return md
}

// UUID returns the identity assigned at registration.
func (m *Metadata) UUID() uuid.UUID { return m.uuid }

// Name returns the bare type name.
func (m *Metadata) Name() string { return m.name }

// Namespace returns the namespace the template was declared in.
func (m *Metadata) Namespace() string { return m.namespace }

// ModuleID returns the module identifier of the template.
func (m *Metadata) ModuleID() string { return m.moduleID }

// Kind reports whether the type is concrete, abstract or an interface.
func (m *Metadata) Kind() Kind { return m.kind }

// Features returns the features resolved for this registration.
func (m *Metadata) Features() Features { return m.features }

// Template returns the template the metadata was built from.
func (m *Metadata) Template() *Template { return m.template }

// Frozen reports whether registration completed.
func (m *Metadata) Frozen() bool { return m.frozen }

// Parent returns the supertype metadata, or nil.
func (m *Metadata) Parent() *Metadata { return m.parent }

// Interfaces returns the uuids of every contract the type satisfies.
func (m *Metadata) Interfaces() []uuid.UUID { return slices.Clone(m.interfaces) }

// Capabilities returns the hooks declared anywhere in the inheritance chain.
func (m *Metadata) Capabilities() Capabilities { return m.caps }

// Implicit reports whether the type was registered only as a supertype of
// another registration.
func (m *Metadata) Implicit() bool { return m.implicit }

// Implements reports whether the contract with the given uuid is satisfied
// directly or transitively.
func (m *Metadata) Implements(id uuid.UUID) bool {
	return slices.Contains(m.interfaces, id)
}

// Constant returns the named constant.
func (m *Metadata) Constant(name string) (Constant, bool) {
	c, ok := m.constants[name]
	return c, ok
}

// Constants returns all constants in declaration order.
func (m *Metadata) Constants() []Constant {
	out := make([]Constant, 0, len(m.constOrder))
	for _, name := range m.constOrder {
		out = append(out, m.constants[name])
	}
	return out
}

// Member returns a copy of the descriptor with the given kind and key
// ("name" or "static:name"), or nil.
func (m *Metadata) Member(kind MemberKind, key string) *MemberDescriptor {
	t, ok := m.members[kind]
	if !ok {
		return nil
	}
	return t.get(key).Clone()
}

// Members returns copies of all descriptors of one kind in insertion order.
func (m *Metadata) Members(kind MemberKind) []*MemberDescriptor {
	t, ok := m.members[kind]
	if !ok {
		return nil
	}
	out := make([]*MemberDescriptor, 0, t.len())
	t.each(func(_ string, d *MemberDescriptor) {
		out = append(out, d.Clone())
	})
	return out
}

// Abstracts returns copies of the still-unresolved abstract members.
func (m *Metadata) Abstracts() []*MemberDescriptor {
	out := make([]*MemberDescriptor, 0, m.abstracts.len())
	m.abstracts.each(func(_ string, d *MemberDescriptor) {
		out = append(out, d.Clone())
	})
	return out
}

// lookup returns the live descriptor for a key in any member kind.
func (m *Metadata) lookup(key string) *MemberDescriptor {
	for _, k := range memberKinds {
		if d := m.members[k].get(key); d != nil {
			return d
		}
	}
	return nil
}

func (m *Metadata) addInterface(id uuid.UUID) {
	if !slices.Contains(m.interfaces, id) {
		m.interfaces = append(m.interfaces, id)
	}
}

func (m *Metadata) addConstant(c Constant) {
	if _, ok := m.constants[c.Name]; !ok {
		m.constOrder = append(m.constOrder, c.Name)
	}
	m.constants[c.Name] = c
}
