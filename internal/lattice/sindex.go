package lattice

// Step is a signed direction: Fwd(mu) = mu+1, Bck(mu) = -(mu+1).
type Step int8

func Fwd(mu int) Step { return Step(mu + 1) }
func Bck(mu int) Step { return -Step(mu + 1) }

func (s Step) Forward() bool { return s > 0 }

func (s Step) Dir() int {
	if s > 0 {
		return int(s) - 1
	}
	return int(-s) - 1
}

func (s Step) Reverse() Step { return -s }

type Tag uint8

const (
	// TagDagger marks a link read as its adjoint (the opposite direction view).
	TagDagger Tag = 1 << iota
	// TagDirichlet marks a site or link fixed by a Dirichlet boundary.
	TagDirichlet
	// TagNegate marks an odd number of antiperiodic crossings.
	TagNegate
)

// SIndex addresses a site or a link together with its boundary tags.
type SIndex struct {
	Site int
	Dir  int
	Tag  Tag
}

func (s SIndex) Link() int { return LinkIndex(s.Site, s.Dir) }

func (s SIndex) IsDagger() bool    { return s.Tag&TagDagger != 0 }
func (s SIndex) IsDirichlet() bool { return s.Tag&TagDirichlet != 0 }
func (s SIndex) IsNegate() bool    { return s.Tag&TagNegate != 0 }

// Dagger toggles the adjoint view without touching the stored matrix.
func (s SIndex) Dagger() SIndex {
	s.Tag ^= TagDagger
	return s
}

// Sign is -1 for antiperiodic crossings and +1 otherwise.
func (s SIndex) Sign() float64 {
	if s.IsNegate() {
		return -1
	}
	return 1
}
