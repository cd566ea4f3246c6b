package tycon

import (
	"slices"
	"strings"
)

// builder assembles the Metadata of one registration pass.
type builder struct {
	reg      *Registry
	t        *Template
	md       *Metadata
	features Features
	resolver *Resolver
	// safe is false when the initializer chain is opaque; field defaults
	// are then not captured.
	safe bool
}

func abstractKey(d *MemberDescriptor) string {
	return string(d.Kind) + "#" + d.Token()
}

// addAbstract records a pending abstract member. A method and an accessor
// may not share an abstract token.
func (b *builder) addAbstract(d *MemberDescriptor) error {
	for _, k := range memberKinds {
		if k == d.Kind || k == MemberField {
			continue
		}
		accessorPair := (k == MemberGetter || k == MemberSetter) && (d.Kind == MemberGetter || d.Kind == MemberSetter)
		if accessorPair {
			continue
		}
		probe := &MemberDescriptor{Name: d.Name, OriginalName: d.OriginalName, Static: d.Static, Kind: k}
		if other := b.md.abstracts.get(abstractKey(probe)); other != nil {
			return Errorf(CodeAbstractCollision, "%s: abstract %s %q collides with abstract %s declared by %s",
				b.t.Name, d.Kind, d.Name, other.Kind, other.SourceName).
				WithDetails(map[string]any{
					"type":   b.t.Name,
					"member": d.Name,
					"kinds":  []string{string(d.Kind), string(other.Kind)},
				})
		}
	}
	b.md.abstracts.set(abstractKey(d), d)
	return nil
}

// mergeConstant adds c unless a different declaration of the same name exists.
func (b *builder) mergeConstant(c Constant) error {
	if existing, ok := b.md.constants[c.Name]; ok {
		if existing.SourceUUID == c.SourceUUID {
			return nil
		}
		return Errorf(CodeConstantOverride, "%s: constant %q from %s conflicts with %s",
			b.t.Name, c.Name, c.SourceName, existing.SourceName).
			WithDetails(map[string]any{
				"type":     b.t.Name,
				"constant": c.Name,
				"first":    existing.SourceName,
				"second":   c.SourceName,
			})
	}
	b.md.addConstant(c)
	return nil
}

// mergeContract adds a contract's interfaces, constants and members. Every
// member reached through a contract is abstract. When two contracts declare
// the same member, the narrower declaration is kept whatever the order.
func (b *builder) mergeContract(c *Metadata) error {
	b.md.addInterface(c.uuid)
	for _, id := range c.interfaces {
		b.md.addInterface(id)
	}
	for _, name := range c.constOrder {
		if err := b.mergeConstant(c.constants[name]); err != nil {
			return err
		}
	}

	for _, kind := range memberKinds {
		var err error
		c.members[kind].each(func(key string, d *MemberDescriptor) {
			if err != nil {
				return
			}
			if isConstructor(d) {
				return
			}
			cl := d.Clone()
			cl.IsAbstract = !d.IsMagic
			tbl := b.md.members[kind]
			existing := tbl.get(key)
			if existing == nil {
				tbl.set(key, cl)
				if cl.IsAbstract {
					err = b.addAbstract(cl)
				}
				return
			}
			if existing.SourceUUID == cl.SourceUUID || !b.features.Has(FeatureCompat) {
				return
			}
			if CheckCompatible(cl, existing) == nil {
				tbl.set(key, cl)
				b.md.abstracts.remove(abstractKey(existing))
				err = b.addAbstract(cl)
				return
			}
			if CheckCompatible(existing, cl) == nil {
				return
			}
			err = Errorf(CodeContractConflict, "%s: contracts %s and %s declare incompatible %s %q",
				b.t.Name, existing.SourceName, cl.SourceName, kind, cl.Name).
				WithDetails(map[string]any{
					"type":   b.t.Name,
					"member": cl.Name,
					"first":  existing.SourceName,
					"second": cl.SourceName,
				})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// inherit merges the supertype's metadata. Concrete inherited members
// satisfy abstract contract requirements.
func (b *builder) inherit(p *Metadata) error {
	for _, id := range p.interfaces {
		b.md.addInterface(id)
	}
	for _, name := range p.constOrder {
		if err := b.mergeConstant(p.constants[name]); err != nil {
			return err
		}
	}
	b.md.caps |= p.caps

	for _, kind := range memberKinds {
		var err error
		p.members[kind].each(func(key string, d *MemberDescriptor) {
			if err != nil {
				return
			}
			cl := d.Clone()
			tbl := b.md.members[kind]
			existing := tbl.get(key)
			if existing != nil && existing.SourceUUID != cl.SourceUUID {
				if cl.IsAbstract {
					return
				}
				if b.features.Has(FeatureCompat) && kind != MemberField {
					if err = CheckCompatible(cl, existing); err != nil {
						return
					}
				}
				b.md.abstracts.remove(abstractKey(existing))
			}
			tbl.set(key, cl)
			if cl.IsAbstract {
				err = b.addAbstract(cl)
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// extractOwn extracts and inserts the template's own descriptors.
func (b *builder) extractOwn() error {
	if err := b.checkTypeOverrides(); err != nil {
		return err
	}

	abstractTokens := make(map[string]bool, len(b.t.Abstracts))
	for _, tok := range b.t.Abstracts {
		abstractTokens[tok] = true
	}

	for _, m := range b.t.Members {
		d, err := b.extract(m)
		if err != nil {
			return err
		}
		if abstractTokens[d.Key()] || abstractTokens[d.Token()] {
			d.IsAbstract = true
			delete(abstractTokens, d.Key())
			delete(abstractTokens, d.Token())
		}

		if d.Kind == MemberField && d.Static && b.md.kind == KindInterface {
			if err := b.mergeConstant(Constant{
				Name:       d.Name,
				Value:      m.Default,
				SourceName: b.t.Name,
				SourceUUID: b.md.uuid,
			}); err != nil {
				return err
			}
			continue
		}
		if d.Kind == MemberField && !d.Static && b.md.kind == KindInterface {
			return Errorf(CodeInterfaceField, "interface %s cannot declare instance field %q", b.t.Name, d.Name).
				WithDetails(map[string]any{"type": b.t.Name, "member": d.Name})
		}
		if d.Kind == MemberField && d.Static {
			if c, ok := b.md.constants[d.Name]; ok {
				return Errorf(CodeConstantOverride, "%s: static field %q overrides constant declared by %s",
					b.t.Name, d.Name, c.SourceName).
					WithDetails(map[string]any{"type": b.t.Name, "constant": d.Name, "first": c.SourceName, "second": b.t.Name})
			}
		}

		if err := b.insert(d); err != nil {
			return err
		}
	}

	// Tokens naming no declared member introduce bodiless abstract methods.
	for _, tok := range b.t.Abstracts {
		if !abstractTokens[tok] {
			continue
		}
		name, static := tok, false
		if rest, ok := cutStatic(tok); ok {
			name, static = rest, true
		}
		d := b.newDescriptor(Member{Name: name, Kind: MemberMethod, Static: static, Abstract: true})
		d.Return = &TypeDescriptor{}
		if err := b.insert(d); err != nil {
			return err
		}
		delete(abstractTokens, tok)
	}

	for _, mn := range magicNames {
		if !b.t.Hooks.capabilities().Has(mn.cap) {
			continue
		}
		d := b.newDescriptor(Member{Name: mn.name, Kind: MemberMethod, Static: mn.static})
		d.IsMagic = true
		d.Return = &TypeDescriptor{}
		if err := b.insert(d); err != nil {
			return err
		}
	}
	return nil
}

func cutStatic(tok string) (string, bool) {
	return strings.CutPrefix(tok, "static:")
}

func (b *builder) checkTypeOverrides() error {
	for key := range b.t.Types {
		found := slices.ContainsFunc(b.t.Members, func(m Member) bool {
			return memberKey(m.Static, m.Name) == key
		})
		if !found {
			return Errorf(CodeInvalidArgument, "%s: type override for undeclared member %q", b.t.Name, key).
				WithDetails(map[string]any{"type": b.t.Name, "member": key})
		}
	}
	return nil
}

// insert adds an own descriptor, checking it against the inherited one.
func (b *builder) insert(d *MemberDescriptor) error {
	key := d.Key()
	compat := b.features.Has(FeatureCompat) && !d.IsMagic

	if compat && d.Kind != MemberField {
		for _, k := range memberKinds {
			if k == d.Kind || isAccessorPair(k, d.Kind) {
				continue
			}
			other := b.md.members[k].get(key)
			if other != nil && other.SourceUUID != b.md.uuid && !isConstructor(d) {
				return CheckCompatible(d, other)
			}
		}
	}

	tbl := b.md.members[d.Kind]
	if existing := tbl.get(key); existing != nil {
		if existing.SourceUUID == b.md.uuid {
			return Errorf(CodeDuplicateMember, "%s declares %s %q twice", b.t.Name, d.Kind, d.Name).
				WithDetails(map[string]any{"type": b.t.Name, "member": d.Name})
		}
		if compat && d.Kind != MemberField && !d.IsAbstract {
			if err := CheckCompatible(d, existing); err != nil {
				return err
			}
		}
		if existing.IsAbstract && !d.IsAbstract {
			b.md.abstracts.remove(abstractKey(existing))
		}
	}
	tbl.set(key, d)
	if d.IsAbstract {
		return b.addAbstract(d)
	}
	return nil
}

func isAccessorPair(a, b MemberKind) bool {
	return (a == MemberGetter && b == MemberSetter) || (a == MemberSetter && b == MemberGetter)
}

func (b *builder) newDescriptor(m Member) *MemberDescriptor {
	vis := m.Visibility
	if vis == "" {
		vis = Public
	}
	original := m.Token
	if original == "" {
		original = m.Name
	}
	return &MemberDescriptor{
		Name:            m.Name,
		OriginalName:    original,
		Kind:            m.Kind,
		Static:          m.Static,
		Visibility:      vis,
		IsAbstract:      m.Abstract,
		SourceName:      b.t.Name,
		SourceUUID:      b.md.uuid,
		SourceNamespace: b.t.Namespace,
		SourceModuleID:  b.t.ModuleID,
		source:          b.t,
		body:            m.Body,
	}
}

// extract builds the descriptor of one declared member.
func (b *builder) extract(m Member) (*MemberDescriptor, error) {
	d := b.newDescriptor(m)
	if m.Kind != MemberField && (m.Body == nil || b.md.kind == KindInterface) {
		d.IsAbstract = true
	}
	if m.Kind == MemberField && b.safe {
		d.fieldDefault = m.Default
		d.fieldInit = m.Init
		d.hasDefault = m.Default != nil || m.Init != nil
	}

	var ann Annotation
	if m.Doc != "" && b.reg.annotations != nil {
		a, err := b.reg.annotations(m.Doc)
		if err != nil {
			return nil, Errorf(CodeInvalidDecl, "%s.%s: %v", b.t.Name, m.Name, err).
				WithDetails(map[string]any{"type": b.t.Name, "member": m.Name})
		}
		ann = a
	}
	override, hasOverride := b.t.Types[memberKey(m.Static, m.Name)]

	var overrideReturn Decl
	if hasOverride && override.Return != nil {
		overrideReturn = *override.Return
	}
	returnDecl := b.pick(overrideReturn, m.Return, T(ann.Return))

	if m.Kind != MemberSetter {
		rt, err := b.resolver.Resolve(returnDecl, b.t, false)
		if err != nil {
			return nil, withMember(err, b.t.Name, m.Name)
		}
		d.Return = rt
	} else {
		d.Return = &TypeDescriptor{}
	}

	params := m.Params
	if m.Kind == MemberSetter && len(params) == 0 {
		params = []Param{{Name: "value", Type: m.Return}}
	}
	for _, p := range params {
		var overrideParam Decl
		if hasOverride {
			overrideParam = override.Params[p.Name]
		}
		decl := b.pick(overrideParam, p.Type, T(ann.Params[p.Name]))
		pd, err := b.extractParam(p, decl)
		if err != nil {
			return nil, withMember(err, b.t.Name, m.Name)
		}
		d.Params = append(d.Params, pd)
	}
	return d, nil
}

// pick returns the first non-empty declaration in priority order:
// override, declared, comment; comments come first when preferred.
func (b *builder) pick(override, declared, comment Decl) Decl {
	order := []Decl{override, declared, comment}
	if b.features.Has(FeaturePreferComments) {
		order = []Decl{comment, override, declared}
	}
	for _, d := range order {
		if !d.IsZero() {
			return d
		}
	}
	return Decl{}
}

func (b *builder) extractParam(p Param, decl Decl) (*ParamDescriptor, error) {
	td, err := b.resolver.Resolve(decl, b.t, true)
	if err != nil {
		return nil, err
	}
	pd := &ParamDescriptor{
		Name:           p.Name,
		TypeDescriptor: *td,
		Variadic:       p.Variadic,
		HasDefault:     p.Default != "",
		DefaultSource:  p.Default,
	}
	for _, dp := range p.Destructured {
		sub, err := b.extractParam(dp, dp.Type)
		if err != nil {
			return nil, err
		}
		pd.Destructured = append(pd.Destructured, sub)
	}

	if pd.HasDefault && b.features.Has(FeatureCheckDefault) {
		v, err := b.reg.evalDefault(p.Default)
		if err != nil {
			return nil, AsError(err).WithDetail("param", p.Name)
		}
		pd.DefaultValue = v
		pd.defaultEvaluated = true
		if err := checkValue(pd.typeOf(), v); err != nil {
			return nil, Errorf(CodeInvalidDefault, "default %s of parameter %q is not %s", p.Default, p.Name, pd.typeOf()).
				WithDetails(map[string]any{"param": p.Name, "expected": pd.typeOf().String()})
		}
	}
	return pd, nil
}

func withMember(err error, typeName, member string) error {
	e := AsError(err)
	return e.WithDetails(map[string]any{"type": typeName, "member": member})
}
