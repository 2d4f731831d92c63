package params

type LatticeRecord struct {
	Lengths  [4]int
	Boundary string
	// FermionBC holds the per-direction codes of the fermion field.
	FermionBC [4]int
	Workers   int
}

type ActionRecord struct {
	Name   string
	ID     int
	Params Record
}

type IntegratorRecord struct {
	Name        string
	Length      float64
	Steps       int
	NestedSteps int
	Lambda      float64
}

type UpdaterRecord struct {
	Seed           int64
	InitState      string
	Equilibration  int
	Measured       int
	AutoCorrection bool
	Reunitarize    bool
	TestHdiff      bool
	// CountConfigurations reads Equilibration and Measured as accepted
	// configurations instead of trajectories.
	CountConfigurations bool
	MaxTrajectories     int
}

type MeasurementRecord struct {
	Name   string
	ID     int
	Params Record
}

type StoreRecord struct {
	Kind string
	Path string
}

type RunRecord struct {
	Lattice      LatticeRecord
	Actions      []ActionRecord
	Integrator   IntegratorRecord
	Updater      UpdaterRecord
	Measurements []MeasurementRecord
	Store        StoreRecord
}
