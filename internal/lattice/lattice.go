package lattice

// Lattice bundles the configuration, boundary condition and baked index.
// It is built once per run and shared read-only by every field and action.
type Lattice struct {
	Config Config
	BC     BoundaryCondition
	Index  *Index
}

// New validates cfg, freezes bc and bakes the tables for the gauge field and
// every extra field id (fermions).
func New(cfg Config, bc BoundaryCondition, fieldIDs ...int) (*Lattice, error) {
	if bc == nil {
		bc = NewTorus()
	}
	ix, err := NewIndex(cfg, bc)
	if err != nil {
		return nil, err
	}
	bc.Freeze()
	ix.BakeAllIndexBuffer()
	ix.BakeMoveIndex(GaugeFieldID)
	for _, id := range fieldIDs {
		ix.BakeMoveIndex(id)
	}
	ix.BakePlaquettes()
	return &Lattice{Config: cfg, BC: bc, Index: ix}, nil
}

func (l *Lattice) Volume() int    { return l.Config.Volume() }
func (l *Lattice) LinkCount() int { return l.Config.LinkCount() }

// IsFixedLink reports whether a link is pinned by a Dirichlet boundary.
func (l *Lattice) IsFixedLink(link int) bool {
	return l.Index.SiteTag(link / Dir).IsDirichlet()
}
