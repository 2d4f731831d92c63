package integrator

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"gaugehmc/internal/parallel"
	"gaugehmc/internal/params"
)

var (
	ErrIntegratorExists   = errors.New("integrator already registered")
	ErrIntegratorNotFound = errors.New("integrator not found")
)

// Factory builds an integrator over a set of forces.
type Factory func(eng *parallel.Engine, cfg Config, forces *Forces) (Integrator, error)

var integratorRegistry = struct {
	mu sync.RWMutex
	m  map[string]Factory
}{
	m: builtinIntegrators(),
}

func single(name string, mk func(cfg Config) scheme) Factory {
	return func(eng *parallel.Engine, cfg Config, forces *Forces) (Integrator, error) {
		if err := cfg.validate(false); err != nil {
			return nil, err
		}
		return &splitting{name: name, cfg: cfg, forces: forces, eng: eng, outer: mk(cfg)}, nil
	}
}

func nested(name string, mk func(cfg Config) scheme) Factory {
	return func(eng *parallel.Engine, cfg Config, forces *Forces) (Integrator, error) {
		if err := cfg.validate(true); err != nil {
			return nil, err
		}
		inner := mk(cfg)
		return &splitting{name: name, cfg: cfg, forces: forces, eng: eng, outer: mk(cfg), inner: &inner}, nil
	}
}

func builtinIntegrators() map[string]Factory {
	lf := func(Config) scheme { return leapfrog() }
	om := func(cfg Config) scheme { return omelyan(cfg.Lambda) }
	fg := func(Config) scheme { return forceGradient() }
	return map[string]Factory{
		"leapfrog":              single("leapfrog", lf),
		"omelyan":               single("omelyan", om),
		"force_gradient":        single("force_gradient", fg),
		"nested_leapfrog":       nested("nested_leapfrog", lf),
		"nested_omelyan":        nested("nested_omelyan", om),
		"nested_force_gradient": nested("nested_force_gradient", fg),
	}
}

func RegisterIntegrator(name string, factory Factory) error {
	if name == "" {
		return errors.New("integrator name is required")
	}
	if factory == nil {
		return errors.New("integrator factory is required")
	}
	integratorRegistry.mu.Lock()
	defer integratorRegistry.mu.Unlock()

	if _, exists := integratorRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrIntegratorExists, name)
	}
	integratorRegistry.m[name] = factory
	return nil
}

// New builds the integrator named by rec.
func New(eng *parallel.Engine, rec params.IntegratorRecord, forces *Forces) (Integrator, error) {
	integratorRegistry.mu.RLock()
	factory, ok := integratorRegistry.m[rec.Name]
	integratorRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIntegratorNotFound, rec.Name)
	}
	lambda := rec.Lambda
	if lambda == 0 {
		lambda = params.OmelyanLambda
	}
	return factory(eng, Config{
		Length:      rec.Length,
		Steps:       rec.Steps,
		NestedSteps: rec.NestedSteps,
		Lambda:      lambda,
	}, forces)
}

func ListIntegrators() []string {
	integratorRegistry.mu.RLock()
	defer integratorRegistry.mu.RUnlock()

	names := make([]string, 0, len(integratorRegistry.m))
	for name := range integratorRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetIntegratorRegistryForTests() {
	integratorRegistry.mu.Lock()
	defer integratorRegistry.mu.Unlock()
	integratorRegistry.m = builtinIntegrators()
}
