package measure

import (
	"gaugehmc/internal/field"
	"gaugehmc/internal/parallel"
)

// PlaquetteEnergy records <1 - Re Tr U_p / 3> of each configuration.
type PlaquetteEnergy struct {
	series
	eng *parallel.Engine
}

func NewPlaquetteEnergy(id int, eng *parallel.Engine) *PlaquetteEnergy {
	return &PlaquetteEnergy{series: series{id: id, name: "plaquette_energy"}, eng: eng}
}

func (m *PlaquetteEnergy) OnConfigurationAccepted(gauge *field.Gauge) error {
	m.add(gauge.AveragePlaquetteEnergy(m.eng))
	return nil
}
