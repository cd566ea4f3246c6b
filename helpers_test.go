package tycon

import (
	"log/slog"
	"testing"

	"github.com/broady/tycon/testutil"
)

// newTestRegistry returns a registry logging to a recorder.
func newTestRegistry(t *testing.T) (*Registry, *testutil.LogRecorder) {
	t.Helper()
	rec, logger := testutil.NewLogRecorder(slog.LevelDebug)
	return NewRegistry().WithLogger(logger), rec
}

// ret returns a body that always returns v.
func ret(v any) Func {
	return func(c *Call) (any, error) { return v, nil }
}

// echo returns a body that returns its first argument.
func echo(c *Call) (any, error) { return c.Arg(0), nil }

func mustRegister(t *testing.T, r *Registry, tmpl *Template) *Metadata {
	t.Helper()
	md, err := r.Register(tmpl)
	if err != nil {
		t.Fatalf("register %s: %v", tmpl.Name, err)
	}
	return md
}

func mustAugment(t *testing.T, r *Registry, tmpl *Template) *Type {
	t.Helper()
	typ, err := r.Augment(tmpl)
	if err != nil {
		t.Fatalf("augment %s: %v", tmpl.Name, err)
	}
	return typ
}

// assertCode checks that err is an *Error with the expected code and
// returns its decoded form.
func assertCode(t *testing.T, err error, code ErrorCode) *testutil.ErrorResponse {
	t.Helper()
	return testutil.AssertErrorCode(t, err, string(code))
}

// descriptor resolves a member declared on a throwaway template.
func descriptor(t *testing.T, owner *Template, m Member) *MemberDescriptor {
	t.Helper()
	b := &builder{
		reg:      NewRegistry(),
		t:        owner,
		md:       newMetadata(owner, DefaultConfig().Features(), false),
		features: DefaultConfig().Features(),
		resolver: NewResolver(nil),
		safe:     true,
	}
	d, err := b.extract(m)
	if err != nil {
		t.Fatalf("extract %s.%s: %v", owner.Name, m.Name, err)
	}
	return d
}
