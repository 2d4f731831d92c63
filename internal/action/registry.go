package action

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"gaugehmc/internal/params"
)

var (
	ErrActionExists   = errors.New("action already registered")
	ErrActionNotFound = errors.New("action not found")
)

// Factory builds an action from its parameter record.
type Factory func(env Env, rec params.ActionRecord) (Action, error)

var actionRegistry = struct {
	mu sync.RWMutex
	m  map[string]Factory
}{
	m: builtinActions(),
}

func builtinActions() map[string]Factory {
	return map[string]Factory{
		"plaquette":               NewPlaquetteFromRecord,
		"plaquette_beta_gradient": NewBetaGradientFromRecord,
		"plaquette_rotating":      NewRotatingFromRecord,
		"fermion_staggered":       NewStaggeredFermionFromRecord,
		"fermion_wilson":          NewWilsonFermionFromRecord,
	}
}

// RegisterAction adds a named action constructor.
func RegisterAction(name string, factory Factory) error {
	if name == "" {
		return errors.New("action name is required")
	}
	if factory == nil {
		return errors.New("action factory is required")
	}
	actionRegistry.mu.Lock()
	defer actionRegistry.mu.Unlock()

	if _, exists := actionRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrActionExists, name)
	}
	actionRegistry.m[name] = factory
	return nil
}

// New builds the action registered under rec.Name.
func New(env Env, rec params.ActionRecord) (Action, error) {
	actionRegistry.mu.RLock()
	factory, ok := actionRegistry.m[rec.Name]
	actionRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActionNotFound, rec.Name)
	}
	a, err := factory(env, rec)
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", rec.Name, err)
	}
	return a, nil
}

func ListActions() []string {
	actionRegistry.mu.RLock()
	defer actionRegistry.mu.RUnlock()

	names := make([]string, 0, len(actionRegistry.m))
	for name := range actionRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetActionRegistryForTests() {
	actionRegistry.mu.Lock()
	defer actionRegistry.mu.Unlock()
	actionRegistry.m = builtinActions()
}
