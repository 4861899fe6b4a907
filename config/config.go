// Package config holds the process-wide engine selection: which numeric
// engine runs contractions, the default precision, and the logger. Circuits
// snapshot the current settings at construction time, so the intended usage
// is to configure once before building circuits, or to use Scoped for a
// temporary override. Mutating settings while a contraction is in flight is
// undefined.
package config

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"tensorq/backend"
)

// Settings selects the numeric engine and its defaults.
type Settings struct {
	// Engine is the registry name of the numeric engine.
	Engine string `yaml:"engine"`
	// DType is the default tensor precision: "complex64" or "complex128".
	DType string `yaml:"dtype"`
	// PlanCacheSize bounds the shared contraction-plan cache. Zero disables it.
	PlanCacheSize int `yaml:"plan_cache_size"`
}

// Default returns the settings used when nothing else is configured.
func Default() Settings {
	return Settings{Engine: "native", DType: "complex128", PlanCacheSize: 64}
}

var (
	mu      sync.RWMutex
	current = Default()
	logger  = zap.NewNop()
)

// Current returns the active settings.
func Current() Settings {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Set replaces the active settings after validating them.
func Set(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	mu.Lock()
	current = s
	mu.Unlock()
	return nil
}

// Scoped installs s and returns a restore function for the previous
// settings, intended for defer:
//
//	defer config.Scoped(s)()
func Scoped(s Settings) func() {
	mu.Lock()
	prev := current
	current = s
	mu.Unlock()
	return func() {
		mu.Lock()
		current = prev
		mu.Unlock()
	}
}

// Validate checks that the settings resolve to a registered engine and a
// known dtype.
func (s Settings) Validate() error {
	if _, err := s.ResolveEngine(); err != nil {
		return err
	}
	if _, err := s.ResolveDType(); err != nil {
		return err
	}
	return nil
}

// ResolveEngine looks up the configured engine in the backend registry.
func (s Settings) ResolveEngine() (backend.Engine, error) {
	return backend.Get(s.Engine)
}

// ResolveDType maps the configured dtype name to a backend.DType.
func (s Settings) ResolveDType() (backend.DType, error) {
	switch s.DType {
	case "complex64":
		return backend.Complex64, nil
	case "complex128", "":
		return backend.Complex128, nil
	default:
		return 0, backend.NotSupportedf("config.ResolveDType", "unknown dtype %q", s.DType)
	}
}

// Load reads settings from a YAML file. Missing fields fall back to defaults.
func Load(path string) (Settings, error) {
	s := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, errors.Wrapf(err, "config: read %s", path)
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, errors.Wrapf(err, "config: parse %s", path)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Save writes settings to a YAML file.
func (s Settings) Save(path string) error {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "config: marshal settings")
	}
	return errors.Wrapf(os.WriteFile(path, raw, 0o644), "config: write %s", path)
}

// Logger returns the active logger. The default is a no-op logger so the
// engine stays silent unless the embedding program opts in.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLogger replaces the active logger. Passing nil restores the no-op logger.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// UseDevelopmentLogger installs a human-readable console logger, handy for
// the explorer and debugging sessions.
func UseDevelopmentLogger() error {
	l, err := zap.NewDevelopment()
	if err != nil {
		return errors.Wrap(err, "config: build development logger")
	}
	SetLogger(l)
	return nil
}
