package tycon

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/broady/tycon/internal/annotation"
	"github.com/broady/tycon/internal/literal"
)

var validate = validator.New()

// Annotation is the type information read from a member's comment text.
type Annotation struct {
	Return string
	Params map[string]string
}

// AnnotationParser extracts declared types from a member's comment text.
type AnnotationParser func(doc string) (Annotation, error)

// DefaultEvaluator evaluates the literal source of a parameter default.
type DefaultEvaluator func(src string) (any, error)

// ParseAnnotation is the default AnnotationParser. It reads
// "//tycon:return <decl>" and "//tycon:param <name> <decl>" lines.
func ParseAnnotation(doc string) (Annotation, error) {
	a, err := annotation.Parse(doc)
	if err != nil {
		return Annotation{}, err
	}
	return Annotation{Return: a.Return, Params: a.Params}, nil
}

// Registry is the side table mapping templates to their metadata and
// augmented types. Registrations are serialized; a registration that fails
// leaves the registry unchanged.
type Registry struct {
	mu           sync.Mutex
	config       Config
	features     Features
	logger       *slog.Logger
	interceptors []Interceptor
	annotations  AnnotationParser
	defaults     DefaultEvaluator

	metas  map[*Template]*Metadata
	order  []*Metadata
	byUUID map[uuid.UUID]*Metadata
	names  map[string][]*Template
	types  map[*Template]*Type

	// undo reverts the writes of the registration in progress.
	undo []func()
}

// NewRegistry returns a Registry using DefaultConfig.
func NewRegistry() *Registry {
	cfg := DefaultConfig()
	return &Registry{
		config:      cfg,
		features:    cfg.Features(),
		annotations: ParseAnnotation,
		defaults:    literal.Eval,
		metas:       make(map[*Template]*Metadata),
		byUUID:      make(map[uuid.UUID]*Metadata),
		names:       make(map[string][]*Template),
		types:       make(map[*Template]*Type),
	}
}

// WithConfig sets the feature defaults applied to explicit registrations.
// It returns the registry for chaining.
func (r *Registry) WithConfig(cfg Config) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = cfg
	r.features = cfg.Features()
	return r
}

// WithLogger sets a custom logger. If not set, slog.Default() is used.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithInterceptor adds a call interceptor applied to every member invocation
// of types augmented afterwards. Interceptors run in the order added, before
// parameter validation.
func (r *Registry) WithInterceptor(i Interceptor) *Registry {
	r.interceptors = append(r.interceptors, i)
	return r
}

// WithAnnotationParser replaces the comment annotation parser. nil disables
// comment annotations.
func (r *Registry) WithAnnotationParser(p AnnotationParser) *Registry {
	r.annotations = p
	return r
}

// WithDefaultEvaluator replaces the parameter default evaluator.
func (r *Registry) WithDefaultEvaluator(e DefaultEvaluator) *Registry {
	if e == nil {
		e = literal.Eval
	}
	r.defaults = e
	return r
}

// Config returns the registry configuration.
func (r *Registry) Config() Config { return r.config }

func (r *Registry) log() *slog.Logger {
	if r.logger == nil {
		return slog.Default()
	}
	return r.logger
}

func (r *Registry) evalDefault(src string) (any, error) {
	return r.defaults(src)
}

// Metadata returns the metadata registered for t, or nil.
func (r *Registry) Metadata(t *Template) *Metadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metas[t]
}

// MetadataByUUID returns the metadata registered under id, or nil.
func (r *Registry) MetadataByUUID(id uuid.UUID) *Metadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byUUID[id]
}

// Types returns the metadata of every registered type in registration order.
func (r *Registry) Types() []*Metadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Metadata, len(r.order))
	copy(out, r.order)
	return out
}

// Lookup resolves a qualified or bare type name among registered templates.
func (r *Registry) Lookup(path string) (*Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(path)
}

func (r *Registry) lookup(path string) (*Template, error) {
	found := r.names[path]
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, Errorf(CodeAmbiguousDefinition, "type name %q matches %d registered types", path, len(found)).
			WithDetail("token", path)
	}
}

// Register builds, validates and stores the metadata of t, registering its
// contracts and supertype first. Registering the same template again
// returns the existing metadata, unless it was only registered implicitly
// as a supertype: then it is rebuilt with its own feature markers.
func (r *Registry) Register(t *Template) (*Metadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerAtomic(t)
}

// registerAtomic runs an explicit registration of t, reverting every
// metadata written during the attempt when it fails.
func (r *Registry) registerAtomic(t *Template) (*Metadata, error) {
	r.undo = r.undo[:0]
	md, err := r.register(t, false, make(map[*Template]bool))
	if err != nil {
		for i := len(r.undo) - 1; i >= 0; i-- {
			r.undo[i]()
		}
	}
	r.undo = r.undo[:0]
	return md, err
}

func (r *Registry) register(t *Template, implicit bool, visiting map[*Template]bool) (*Metadata, error) {
	if t == nil {
		return nil, NewError(CodeInvalidArgument, "template is nil")
	}
	prev, ok := r.metas[t]
	if ok && (implicit || !prev.implicit) {
		if !implicit {
			r.log().Debug("type already registered",
				slog.String("type", t.QualifiedName()),
				slog.String("uuid", prev.uuid.String()))
		}
		return prev, nil
	}
	if visiting[t] {
		return nil, Errorf(CodeCyclicDefinition, "%s inherits from itself", t.Name).
			WithDetail("type", t.Name)
	}
	visiting[t] = true
	defer delete(visiting, t)

	if err := validate.Struct(t); err != nil {
		return nil, AsError(err).WithDetail("type", t.Name)
	}

	features, err := resolveFeatures(t, r.features, implicit)
	if err != nil {
		return nil, err
	}

	var contracts []*Metadata
	seen := make(map[*Template]bool, len(t.Implements))
	for _, c := range t.Implements {
		if c == nil {
			return nil, Errorf(CodeInvalidArgument, "%s implements a nil contract", t.Name)
		}
		if seen[c] {
			return nil, Errorf(CodeDuplicateContract, "%s implements %s more than once", t.Name, c.Name).
				WithDetails(map[string]any{"type": t.Name, "contract": c.Name})
		}
		seen[c] = true
		if c.kind() != KindInterface {
			return nil, Errorf(CodeNotInterface, "%s implements %s, which is not an interface", t.Name, c.Name).
				WithDetails(map[string]any{"type": t.Name, "contract": c.Name})
		}
		cmd, err := r.register(c, false, visiting)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, cmd)
	}

	var parent *Metadata
	if p := t.Parent; p != nil {
		if p.kind() == KindInterface {
			return nil, Errorf(CodeInvalidArgument, "%s extends interface %s; list it in Implements", t.Name, p.Name).
				WithDetails(map[string]any{"type": t.Name, "parent": p.Name})
		}
		if features.Has(FeatureNativeCtor) && chainHas(p, func(t *Template) bool { return t.Native }) {
			return nil, Errorf(CodeNativeConstructor, "%s cannot extend native type %s", t.Name, p.Name).
				WithDetails(map[string]any{"type": t.Name, "parent": p.Name})
		}
		if _, ok := r.metas[p]; !ok {
			r.log().Warn("registering supertype implicitly",
				slog.String("type", p.QualifiedName()),
				slog.String("for", t.QualifiedName()))
		}
		parent, err = r.register(p, true, visiting)
		if err != nil {
			return nil, err
		}
	}

	b := &builder{
		reg:      r,
		t:        t,
		md:       newMetadata(t, features, implicit),
		features: features,
		safe:     !chainHas(t, func(t *Template) bool { return t.OpaqueInit }),
	}
	b.resolver = NewResolver(r.lookup)
	b.md.parent = parent
	if prev != nil {
		b.md.uuid = prev.uuid
	}

	for _, c := range contracts {
		if err := b.mergeContract(c); err != nil {
			return nil, err
		}
	}
	if parent != nil {
		if err := b.inherit(parent); err != nil {
			return nil, err
		}
	}
	if err := b.extractOwn(); err != nil {
		return nil, err
	}

	if b.md.kind == KindInterface && t.NativeState {
		return nil, Errorf(CodeInterfaceNativeState, "interface %s cannot carry native private state", t.Name).
			WithDetail("type", t.Name)
	}
	const dispatchCaps = CapGet | CapSet | CapHas | CapDelete | CapStaticGet | CapStaticSet
	if features.Has(FeatureMagic) && b.md.caps&dispatchCaps != 0 &&
		chainHas(t, func(t *Template) bool { return t.NativeState }) {
		return nil, Errorf(CodeMagicNativeState, "%s declares dispatch hooks alongside native private state", t.Name).
			WithDetail("type", t.Name)
	}

	if !implicit && b.md.kind == KindConcrete && b.md.abstracts.len() > 0 {
		first := b.md.abstracts.get(b.md.abstracts.order[0])
		return nil, Errorf(CodeMissingAbstract, "%s must implement %s", t.Name, first.describe()).
			WithDetails(map[string]any{
				"type":   t.Name,
				"member": first.Name,
				"static": first.Static,
				"kind":   string(first.Kind),
				"source": first.SourceName,
			})
	}

	md := b.md
	md.frozen = true
	r.commit(t, md, prev)
	r.log().Debug("type registered",
		slog.String("type", t.QualifiedName()),
		slog.String("kind", string(md.kind)),
		slog.String("uuid", md.uuid.String()),
		slog.String("features", md.features.String()),
		slog.Bool("implicit", implicit))
	return md, nil
}

// commit stores md for t. An explicit registration of a template that was
// only registered implicitly replaces the implicit metadata in place; a
// runtime type built from the implicit metadata is dropped.
func (r *Registry) commit(t *Template, md, prev *Metadata) {
	if prev != nil {
		i := slices.Index(r.order, prev)
		r.order[i] = md
		r.metas[t] = md
		r.byUUID[md.uuid] = md
		typ, augmented := r.types[t]
		delete(r.types, t)
		r.undo = append(r.undo, func() {
			r.order[i] = prev
			r.metas[t] = prev
			r.byUUID[prev.uuid] = prev
			if augmented {
				r.types[t] = typ
			}
		})
		return
	}

	r.metas[t] = md
	r.order = append(r.order, md)
	r.byUUID[md.uuid] = md
	names := []string{t.Name}
	if q := t.QualifiedName(); q != t.Name {
		names = append(names, q)
	}
	for _, n := range names {
		r.names[n] = append(r.names[n], t)
	}
	r.undo = append(r.undo, func() {
		delete(r.metas, t)
		r.order = r.order[:len(r.order)-1]
		delete(r.byUUID, md.uuid)
		for _, n := range names {
			r.names[n] = r.names[n][:len(r.names[n])-1]
			if len(r.names[n]) == 0 {
				delete(r.names, n)
			}
		}
	})
}

// chainHas reports whether pred holds for t or any of its supertypes.
func chainHas(t *Template, pred func(*Template) bool) bool {
	seen := make(map[*Template]bool)
	for ; t != nil && !seen[t]; t = t.Parent {
		seen[t] = true
		if pred(t) {
			return true
		}
	}
	return false
}
