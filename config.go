package tycon

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/gorilla/schema"
)

// Features is the set of optional contract-checking features active for a type.
type Features uint16

const (
	// FeatureAccess enforces private/protected member visibility.
	FeatureAccess Features = 1 << iota
	// FeatureValidate wraps concrete members with parameter and return validation.
	FeatureValidate
	// FeatureCompat checks override compatibility against inherited descriptors.
	FeatureCompat
	// FeatureMagic installs dynamic-dispatch hooks.
	FeatureMagic
	// FeatureNativeCtor forbids extending native templates.
	FeatureNativeCtor
	// FeatureCheckDefault evaluates and validates parameter defaults at registration.
	FeatureCheckDefault
	// FeaturePreferComments lets comment annotations win over explicit type overrides.
	FeaturePreferComments
)

// interfaceFeatures is forced on every interface regardless of markers.
const interfaceFeatures = FeatureNativeCtor | FeatureCompat | FeatureMagic | FeatureValidate | FeatureAccess

var featureNames = []struct {
	f    Features
	name string
}{
	{FeatureAccess, "access"},
	{FeatureValidate, "validate"},
	{FeatureCompat, "compat"},
	{FeatureMagic, "magic"},
	{FeatureNativeCtor, "native_ctor"},
	{FeatureCheckDefault, "check_default"},
	{FeaturePreferComments, "prefer_comments"},
}

// Has reports whether every feature in f2 is enabled.
func (f Features) Has(f2 Features) bool { return f&f2 == f2 }

// With returns f with f2 enabled.
func (f Features) With(f2 Features) Features { return f | f2 }

// Without returns f with f2 disabled.
func (f Features) Without(f2 Features) Features { return f &^ f2 }

func (f Features) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, fn := range featureNames {
		if f.Has(fn.f) {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, ",")
}

// Config holds the feature defaults applied to every explicit registration.
// It is an immutable value: a Registry copies it at construction.
type Config struct {
	Access         bool `env:"TYCON_ACCESS" envDefault:"true"`
	Validate       bool `env:"TYCON_VALIDATE" envDefault:"false"`
	Compat         bool `env:"TYCON_COMPAT" envDefault:"true"`
	Magic          bool `env:"TYCON_MAGIC" envDefault:"true"`
	NativeCtor     bool `env:"TYCON_NATIVE_CTOR" envDefault:"false"`
	CheckDefault   bool `env:"TYCON_CHECK_DEFAULT" envDefault:"false"`
	PreferComments bool `env:"TYCON_PREFER_COMMENTS" envDefault:"false"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Access: true,
		Compat: true,
		Magic:  true,
	}
}

// ConfigFromEnv loads configuration from TYCON_* environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Features returns the feature set described by c.
func (c Config) Features() Features {
	var f Features
	set := func(on bool, feat Features) {
		if on {
			f = f.With(feat)
		}
	}
	set(c.Access, FeatureAccess)
	set(c.Validate, FeatureValidate)
	set(c.Compat, FeatureCompat)
	set(c.Magic, FeatureMagic)
	set(c.NativeCtor, FeatureNativeCtor)
	set(c.CheckDefault, FeatureCheckDefault)
	set(c.PreferComments, FeaturePreferComments)
	return f
}

// markerToggles is the decoded form of Template.Markers. Nil means "keep the default".
type markerToggles struct {
	Access         *bool `schema:"access"`
	Validate       *bool `schema:"validate"`
	Compat         *bool `schema:"compat"`
	Magic          *bool `schema:"magic"`
	NativeCtor     *bool `schema:"native_ctor"`
	CheckDefault   *bool `schema:"check_default"`
	PreferComments *bool `schema:"prefer_comments"`
}

var markerDecoder = schema.NewDecoder()

func init() {
	markerDecoder.IgnoreUnknownKeys(false)
}

// resolveFeatures computes the feature set for one registration pass.
// Interfaces always receive the mandatory set; implicit supertype passes
// never gain features.
func resolveFeatures(t *Template, defaults Features, implicit bool) (Features, error) {
	if t.kind() == KindInterface {
		return interfaceFeatures | (defaults & (FeatureCheckDefault | FeaturePreferComments)), nil
	}
	if implicit {
		return 0, nil
	}
	if len(t.Markers) == 0 {
		return defaults, nil
	}

	var toggles markerToggles
	if err := markerDecoder.Decode(&toggles, t.Markers); err != nil {
		return 0, Errorf(CodeInvalidArgument, "%s: invalid feature markers: %v", t.Name, err).
			WithDetail("type", t.Name)
	}

	f := defaults
	apply := func(v *bool, feat Features) {
		if v == nil {
			return
		}
		if *v {
			f = f.With(feat)
		} else {
			f = f.Without(feat)
		}
	}
	apply(toggles.Access, FeatureAccess)
	apply(toggles.Validate, FeatureValidate)
	apply(toggles.Compat, FeatureCompat)
	apply(toggles.Magic, FeatureMagic)
	apply(toggles.NativeCtor, FeatureNativeCtor)
	apply(toggles.CheckDefault, FeatureCheckDefault)
	apply(toggles.PreferComments, FeaturePreferComments)
	return f, nil
}
