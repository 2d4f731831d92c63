package lattice

import (
	"errors"
	"fmt"
)

const (
	// Dim is the number of space-time dimensions.
	Dim = 4
	// Dir is the number of link directions per site.
	Dir = 4
)

var ErrBadLength = errors.New("lattice: extent must be at least 2")

// Coord is a raw site position. Components may lie outside the lattice;
// Index.Resolve folds them back according to the boundary condition.
type Coord [Dim]int

// Shift returns c moved one site along the signed direction s.
func (c Coord) Shift(s Step) Coord {
	if s.Forward() {
		c[s.Dir()]++
	} else {
		c[s.Dir()]--
	}
	return c
}

// Config is the immutable common data shared by every field and kernel.
type Config struct {
	Lengths [Dim]int
}

func (c Config) Validate() error {
	for d, l := range c.Lengths {
		if l < 2 {
			return fmt.Errorf("%w: dir=%d length=%d", ErrBadLength, d, l)
		}
	}
	return nil
}

func (c Config) Volume() int {
	v := 1
	for _, l := range c.Lengths {
		v *= l
	}
	return v
}

func (c Config) LinkCount() int {
	return c.Volume() * Dir
}

// SiteIndex maps an in-range coordinate to x*Ly*Lz*Lt + y*Lz*Lt + z*Lt + t.
func (c Config) SiteIndex(x Coord) int {
	idx := 0
	for d := 0; d < Dim; d++ {
		idx = idx*c.Lengths[d] + x[d]
	}
	return idx
}

func (c Config) Coord(site int) Coord {
	var x Coord
	for d := Dim - 1; d >= 0; d-- {
		x[d] = site % c.Lengths[d]
		site /= c.Lengths[d]
	}
	return x
}

// LinkIndex is site*Dir + dir.
func LinkIndex(site, dir int) int {
	return site*Dir + dir
}
