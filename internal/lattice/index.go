package lattice

import "fmt"

// Margin is the number of out-of-range sites per side kept in the baked
// position table. Chair paths reach at most three sites from their anchor.
const Margin = 3

// Plaquette lists the four links U_mu(n) U_nu(n+mu) U_mu(n+nu)^+ U_nu(n)^+.
type Plaquette [4]SIndex

// Staple is the three-link complement of a link inside one plaquette.
// Anchor is the site the plaquette is anchored at (n for the upper staple,
// n-nu for the lower one).
type Staple struct {
	Links  [3]SIndex
	Anchor SIndex
	Nu     int
}

type fieldTables struct {
	codes Codes
	move  [][2 * Dim]SIndex
}

// Index holds every lookup table baked for a lattice and boundary condition.
// Tables are written once by the Bake* methods and read-only afterwards.
type Index struct {
	cfg Config
	bc  BoundaryCondition

	coords []Coord
	ext    [Dim]int
	// positions covers the lattice plus Margin sites on every side.
	positions []SIndex

	fields map[int]*fieldTables

	plaqPerSite  [][]Plaquette
	staplePerLnk [][]Staple
}

func NewIndex(cfg Config, bc BoundaryCondition) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Index{cfg: cfg, bc: bc, fields: make(map[int]*fieldTables)}, nil
}

func (ix *Index) Config() Config { return ix.cfg }

// BakeAllIndexBuffer fills the coordinate table and the extended position
// table of the gauge field.
func (ix *Index) BakeAllIndexBuffer() {
	vol := ix.cfg.Volume()
	ix.coords = make([]Coord, vol)
	for site := 0; site < vol; site++ {
		ix.coords[site] = ix.cfg.Coord(site)
	}

	size := 1
	for d := 0; d < Dim; d++ {
		ix.ext[d] = ix.cfg.Lengths[d] + 2*Margin
		size *= ix.ext[d]
	}
	codes := ix.bc.Codes(GaugeFieldID)
	ix.positions = make([]SIndex, size)
	for i := range ix.positions {
		var raw Coord
		rest := i
		for d := Dim - 1; d >= 0; d-- {
			raw[d] = rest%ix.ext[d] - Margin
			rest /= ix.ext[d]
		}
		ix.positions[i] = ix.resolve(codes, raw)
	}
}

// BakeMoveIndex fills the one-step neighbour table of a field.
func (ix *Index) BakeMoveIndex(fieldID int) {
	codes := ix.bc.Codes(fieldID)
	vol := ix.cfg.Volume()
	move := make([][2 * Dim]SIndex, vol)
	for site := 0; site < vol; site++ {
		x := ix.cfg.Coord(site)
		for mu := 0; mu < Dim; mu++ {
			move[site][2*mu] = ix.resolve(codes, x.Shift(Fwd(mu)))
			move[site][2*mu+1] = ix.resolve(codes, x.Shift(Bck(mu)))
		}
	}
	ix.fields[fieldID] = &fieldTables{codes: codes, move: move}
}

// BakePlaquettes fills the per-site plaquette table and the per-link staple
// table of the gauge field.
func (ix *Index) BakePlaquettes() {
	vol := ix.cfg.Volume()
	ix.plaqPerSite = make([][]Plaquette, vol)
	ix.staplePerLnk = make([][]Staple, vol*Dir)
	for site := 0; site < vol; site++ {
		n := ix.cfg.Coord(site)
		plaqs := make([]Plaquette, 0, Dim*(Dim-1)/2)
		for mu := 0; mu < Dim; mu++ {
			for nu := mu + 1; nu < Dim; nu++ {
				plaqs = append(plaqs, Plaquette{
					ix.Link(n, Fwd(mu)),
					ix.Link(n.Shift(Fwd(mu)), Fwd(nu)),
					ix.Link(n.Shift(Fwd(nu)), Fwd(mu)).Dagger(),
					ix.Link(n, Fwd(nu)).Dagger(),
				})
			}
		}
		ix.plaqPerSite[site] = plaqs

		for mu := 0; mu < Dir; mu++ {
			staples := make([]Staple, 0, 2*(Dim-1))
			for nu := 0; nu < Dim; nu++ {
				if nu == mu {
					continue
				}
				nmu := n.Shift(Fwd(mu))
				staples = append(staples, Staple{
					Links: [3]SIndex{
						ix.Link(nmu, Fwd(nu)),
						ix.Link(n.Shift(Fwd(nu)), Fwd(mu)).Dagger(),
						ix.Link(n, Fwd(nu)).Dagger(),
					},
					Anchor: ix.Resolve(n),
					Nu:     nu,
				})
				nmnu := n.Shift(Bck(nu))
				staples = append(staples, Staple{
					Links: [3]SIndex{
						ix.Link(nmu.Shift(Bck(nu)), Fwd(nu)).Dagger(),
						ix.Link(nmnu, Fwd(mu)).Dagger(),
						ix.Link(nmnu, Fwd(nu)),
					},
					Anchor: ix.Resolve(nmnu),
					Nu:     nu,
				})
			}
			ix.staplePerLnk[LinkIndex(site, mu)] = staples
		}
	}
}

// Resolve folds a raw coordinate into a gauge-field site index.
func (ix *Index) Resolve(raw Coord) SIndex {
	if ix.positions != nil {
		i, ok := ix.extOffset(raw)
		if ok {
			return ix.positions[i]
		}
	}
	return ix.resolve(ix.bc.Codes(GaugeFieldID), raw)
}

// ResolveField folds a raw coordinate using the codes of fieldID.
func (ix *Index) ResolveField(fieldID int, raw Coord) SIndex {
	if fieldID == GaugeFieldID {
		return ix.Resolve(raw)
	}
	return ix.resolve(ix.bc.Codes(fieldID), raw)
}

// Link returns the gauge link reached by stepping from raw along s. A
// backward step yields the dagger of the link based one site back.
func (ix *Index) Link(raw Coord, s Step) SIndex {
	if s.Forward() {
		r := ix.Resolve(raw)
		return SIndex{Site: r.Site, Dir: s.Dir(), Tag: r.Tag &^ TagNegate}
	}
	r := ix.Resolve(raw.Shift(s))
	return SIndex{Site: r.Site, Dir: s.Dir(), Tag: (r.Tag &^ TagNegate) | TagDagger}
}

// Move returns the neighbour of site along s for a baked field.
func (ix *Index) Move(fieldID, site int, s Step) SIndex {
	t := ix.fields[fieldID]
	if s.Forward() {
		return t.move[site][2*s.Dir()]
	}
	return t.move[site][2*s.Dir()+1]
}

func (ix *Index) HasMoveIndex(fieldID int) bool {
	_, ok := ix.fields[fieldID]
	return ok
}

func (ix *Index) SiteTag(site int) SIndex {
	return ix.Resolve(ix.coords[site])
}

func (ix *Index) Coord(site int) Coord { return ix.coords[site] }

func (ix *Index) PlaquettesPerSite(site int) []Plaquette { return ix.plaqPerSite[site] }

func (ix *Index) StaplesPerLink(link int) []Staple { return ix.staplePerLnk[link] }

func (ix *Index) extOffset(raw Coord) (int, bool) {
	i := 0
	for d := 0; d < Dim; d++ {
		c := raw[d] + Margin
		if c < 0 || c >= ix.ext[d] {
			return 0, false
		}
		i = i*ix.ext[d] + c
	}
	return i, true
}

func (ix *Index) resolve(codes Codes, raw Coord) SIndex {
	var x Coord
	var tag Tag
	for d := 0; d < Dim; d++ {
		l := ix.cfg.Lengths[d]
		q := floorDiv(raw[d], l)
		w := raw[d] - q*l
		x[d] = w
		switch codes[d] {
		case Dirichlet:
			if q != 0 || w == 0 || w == l-1 {
				tag |= TagDirichlet
			}
		case Antiperiodic:
			if q%2 != 0 {
				tag ^= TagNegate
			}
		}
	}
	return SIndex{Site: ix.cfg.SiteIndex(x), Tag: tag}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func (ix *Index) String() string {
	return fmt.Sprintf("index(%v, %s)", ix.cfg.Lengths, ix.bc.Name())
}
