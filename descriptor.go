package tycon

import "github.com/google/uuid"

// MemberDescriptor is the canonical record of one declared member.
// Descriptors are never mutated once inserted into Metadata; inheritance
// and merging always work on a clone.
type MemberDescriptor struct {
	Name string
	// OriginalName is the indirection token the member was declared through.
	OriginalName string
	Kind         MemberKind
	Static       bool
	Visibility   Visibility
	IsAbstract   bool
	IsMagic      bool

	Params []*ParamDescriptor
	Return *TypeDescriptor

	SourceName      string
	SourceUUID      uuid.UUID
	SourceNamespace string
	SourceModuleID  string

	// source is the declaring template, used for runtime dispatch and
	// accessibility checks.
	source *Template
	body   Func
	// fieldDefault and fieldInit are captured only under safe extraction.
	fieldDefault any
	fieldInit    func() any
	hasDefault   bool
}

// Key returns the member's table key.
func (d *MemberDescriptor) Key() string { return memberKey(d.Static, d.Name) }

// Token returns the key used in the pending-abstracts map.
func (d *MemberDescriptor) Token() string {
	if d.OriginalName != "" && d.OriginalName != d.Name {
		return memberKey(d.Static, d.OriginalName)
	}
	return d.Key()
}

// Source returns the template that introduced this descriptor.
func (d *MemberDescriptor) Source() *Template { return d.source }

// Clone returns a deep, independent copy.
func (d *MemberDescriptor) Clone() *MemberDescriptor {
	if d == nil {
		return nil
	}
	c := *d
	c.Return = d.Return.clone()
	if d.Params != nil {
		c.Params = make([]*ParamDescriptor, len(d.Params))
		for i, p := range d.Params {
			c.Params[i] = p.clone()
		}
	}
	return &c
}

func (d *MemberDescriptor) describe() string {
	static := ""
	if d.Static {
		static = "static "
	}
	return static + string(d.Kind) + " " + d.SourceName + "." + d.Name
}

// ParamDescriptor is the resolved shape of one parameter.
type ParamDescriptor struct {
	Name string
	TypeDescriptor
	Variadic   bool
	HasDefault bool
	// DefaultSource is the literal source of the default value.
	DefaultSource string
	// DefaultValue is the evaluated default, set when DefaultSource evaluated cleanly.
	DefaultValue any
	// defaultEvaluated records whether DefaultValue holds a usable value.
	defaultEvaluated bool
	// Destructured is recorded but not validated.
	Destructured []*ParamDescriptor
}

func (p *ParamDescriptor) clone() *ParamDescriptor {
	if p == nil {
		return nil
	}
	c := *p
	if p.Destructured != nil {
		c.Destructured = make([]*ParamDescriptor, len(p.Destructured))
		for i, dp := range p.Destructured {
			c.Destructured[i] = dp.clone()
		}
	}
	return &c
}

// typeOf returns the TypeDescriptor of p.
func (p *ParamDescriptor) typeOf() *TypeDescriptor { return &p.TypeDescriptor }
