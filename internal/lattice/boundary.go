package lattice

import (
	"errors"
	"fmt"
	"sync"
)

// Field ids used when looking up boundary codes.
const (
	GaugeFieldID   = 1
	FermionFieldID = 2
)

// Boundary codes per direction.
const (
	Dirichlet    = 0
	Periodic     = 1
	Antiperiodic = -1
)

var (
	ErrBoundaryFrozen = errors.New("lattice: boundary condition is read-only after baking")
	ErrBoundaryCode   = errors.New("lattice: boundary code must be -1, 0 or 1")
)

// Codes holds one boundary code per direction.
type Codes [Dim]int

// BoundaryCondition resolves the per-field, per-direction boundary codes.
type BoundaryCondition interface {
	Name() string
	Codes(fieldID int) Codes
	SetFieldBC(fieldID int, codes Codes) error
	Freeze()
}

type boundary struct {
	name     string
	defaults Codes

	mu     sync.RWMutex
	frozen bool
	fields map[int]Codes
}

// NewTorus returns a boundary condition that is periodic in every direction
// unless a field overrides it.
func NewTorus() BoundaryCondition {
	return &boundary{
		name:     "torus",
		defaults: Codes{Periodic, Periodic, Periodic, Periodic},
		fields:   make(map[int]Codes),
	}
}

// NewTorusDirichlet pins x and y to a Dirichlet boundary; z and t stay periodic.
func NewTorusDirichlet() BoundaryCondition {
	return &boundary{
		name:     "torus_dirichlet",
		defaults: Codes{Dirichlet, Dirichlet, Periodic, Periodic},
		fields:   make(map[int]Codes),
	}
}

// NewBoundary picks a boundary condition by name.
func NewBoundary(name string) (BoundaryCondition, error) {
	switch name {
	case "", "torus":
		return NewTorus(), nil
	case "torus_dirichlet", "dirichlet":
		return NewTorusDirichlet(), nil
	default:
		return nil, fmt.Errorf("lattice: unsupported boundary condition: %s", name)
	}
}

func (b *boundary) Name() string { return b.name }

func (b *boundary) Codes(fieldID int) Codes {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if codes, ok := b.fields[fieldID]; ok {
		return codes
	}
	return b.defaults
}

func (b *boundary) SetFieldBC(fieldID int, codes Codes) error {
	for d, c := range codes {
		if c < -1 || c > 1 {
			return fmt.Errorf("%w: field=%d dir=%d code=%d", ErrBoundaryCode, fieldID, d, c)
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return ErrBoundaryFrozen
	}
	b.fields[fieldID] = codes
	return nil
}

func (b *boundary) Freeze() {
	b.mu.Lock()
	b.frozen = true
	b.mu.Unlock()
}
