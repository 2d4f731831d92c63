package measure

import (
	"fmt"

	"gaugehmc/internal/action"
	"gaugehmc/internal/field"
)

// ActionEnergy records the total action of each configuration. Fermion terms
// are averaged over FermionFieldCount fresh pseudo-fermion draws.
type ActionEnergy struct {
	series
	actions           []action.Action
	FermionFieldCount int
}

func NewActionEnergy(id int, actions []action.Action, fermionFieldCount int) *ActionEnergy {
	if fermionFieldCount < 1 {
		fermionFieldCount = 1
	}
	return &ActionEnergy{
		series:            series{id: id, name: "action_energy"},
		actions:           actions,
		FermionFieldCount: fermionFieldCount,
	}
}

func (m *ActionEnergy) OnConfigurationAccepted(gauge *field.Gauge) error {
	total := 0.0
	for _, a := range m.actions {
		if !a.IsFermion() {
			e, err := a.Energy(false, gauge)
			if err != nil {
				return fmt.Errorf("%s: %w", a.Name(), err)
			}
			total += e
			continue
		}
		sum := 0.0
		for k := 0; k < m.FermionFieldCount; k++ {
			if err := a.PrepareForHMC(gauge, 0); err != nil {
				return fmt.Errorf("%s: %w", a.Name(), err)
			}
			e, err := a.Energy(false, gauge)
			if err != nil {
				return fmt.Errorf("%s: %w", a.Name(), err)
			}
			sum += e
		}
		total += sum / float64(m.FermionFieldCount)
	}
	m.add(total)
	return nil
}
