package params

// OmelyanLambda is the second-order minimum-norm coefficient.
const OmelyanLambda = 0.38636665500756728

func Convert(kind string, in map[string]any) (any, error) {
	switch kind {
	case "run":
		return ConvertRun(in), nil
	case "lattice":
		return ConvertLattice(in), nil
	case "action":
		return ConvertAction(in), nil
	case "integrator":
		return ConvertIntegrator(in), nil
	case "updater":
		return ConvertUpdater(in), nil
	case "measurement":
		return ConvertMeasurement(in), nil
	default:
		return nil, ErrUnsupportedKind
	}
}

func ConvertRun(in map[string]any) RunRecord {
	r := Record(in)
	out := RunRecord{
		Lattice:    ConvertLattice(r.Sub("lattice")),
		Integrator: ConvertIntegrator(r.Sub("integrator")),
		Updater:    ConvertUpdater(r.Sub("updater")),
		Store: StoreRecord{
			Kind: r.Sub("store").String("kind", "memory"),
			Path: r.Sub("store").String("path", "gaugehmc.db"),
		},
	}
	for i, a := range r.Records("actions") {
		rec := ConvertAction(a)
		if rec.ID == 0 {
			rec.ID = i + 1
		}
		out.Actions = append(out.Actions, rec)
	}
	if len(out.Actions) == 0 {
		out.Actions = []ActionRecord{defaultActionRecord()}
	}
	for _, m := range r.Records("measurements") {
		out.Measurements = append(out.Measurements, ConvertMeasurement(m))
	}
	return out
}

func defaultLatticeRecord() LatticeRecord {
	return LatticeRecord{
		Lengths:   [4]int{4, 4, 4, 4},
		Boundary:  "torus",
		FermionBC: [4]int{1, 1, 1, -1},
	}
}

func ConvertLattice(in map[string]any) LatticeRecord {
	out := defaultLatticeRecord()
	for key, val := range in {
		switch key {
		case "lengths":
			if xs, ok := asInts(val); ok && len(xs) == 4 {
				copy(out.Lengths[:], xs)
			}
		case "boundary":
			if s, ok := asString(val); ok {
				out.Boundary = s
			}
		case "fermion_bc":
			if xs, ok := asInts(val); ok && len(xs) == 4 {
				copy(out.FermionBC[:], xs)
			}
		case "workers":
			if n, ok := asInt(val); ok {
				out.Workers = n
			}
		}
	}
	return out
}

func defaultActionRecord() ActionRecord {
	return ActionRecord{Name: "plaquette", ID: 1, Params: Record{"beta": 5.0}}
}

func ConvertAction(in map[string]any) ActionRecord {
	out := ActionRecord{Name: "plaquette", Params: Record{}}
	for key, val := range in {
		switch key {
		case "name":
			if s, ok := asString(val); ok {
				out.Name = s
			}
		case "id":
			if n, ok := asInt(val); ok {
				out.ID = n
			}
		default:
			out.Params[key] = val
		}
	}
	return out
}

func defaultIntegratorRecord() IntegratorRecord {
	return IntegratorRecord{
		Name:        "omelyan",
		Length:      1,
		Steps:       10,
		NestedSteps: 4,
		Lambda:      OmelyanLambda,
	}
}

func ConvertIntegrator(in map[string]any) IntegratorRecord {
	out := defaultIntegratorRecord()
	for key, val := range in {
		switch key {
		case "name":
			if s, ok := asString(val); ok {
				out.Name = s
			}
		case "length":
			if f, ok := asFloat64(val); ok && f > 0 {
				out.Length = f
			}
		case "steps":
			if n, ok := asInt(val); ok && n > 0 {
				out.Steps = n
			}
		case "nested_steps":
			if n, ok := asInt(val); ok && n > 0 {
				out.NestedSteps = n
			}
		case "lambda":
			if f, ok := asFloat64(val); ok {
				out.Lambda = f
			}
		}
	}
	return out
}

func defaultUpdaterRecord() UpdaterRecord {
	return UpdaterRecord{
		Seed:           1,
		InitState:      "identity",
		Equilibration:  5,
		Measured:       20,
		Reunitarize:    true,
	}
}

func ConvertUpdater(in map[string]any) UpdaterRecord {
	out := defaultUpdaterRecord()
	for key, val := range in {
		switch key {
		case "seed":
			if n, ok := asInt(val); ok {
				out.Seed = int64(n)
			}
		case "init_state":
			if s, ok := asString(val); ok {
				out.InitState = s
			}
		case "equilibration":
			if n, ok := asInt(val); ok && n >= 0 {
				out.Equilibration = n
			}
		case "measured":
			if n, ok := asInt(val); ok && n >= 0 {
				out.Measured = n
			}
		case "auto_correction":
			if b, ok := asBool(val); ok {
				out.AutoCorrection = b
			}
		case "reunitarize":
			if b, ok := asBool(val); ok {
				out.Reunitarize = b
			}
		case "count_configurations":
			if b, ok := asBool(val); ok {
				out.CountConfigurations = b
			}
		case "max_trajectories":
			if n, ok := asInt(val); ok && n >= 0 {
				out.MaxTrajectories = n
			}
		case "test_hdiff":
			if b, ok := asBool(val); ok {
				out.TestHdiff = b
			}
		}
	}
	return out
}

func ConvertMeasurement(in map[string]any) MeasurementRecord {
	out := MeasurementRecord{Params: Record{}}
	for key, val := range in {
		switch key {
		case "name":
			if s, ok := asString(val); ok {
				out.Name = s
			}
		case "id":
			if n, ok := asInt(val); ok {
				out.ID = n
			}
		default:
			out.Params[key] = val
		}
	}
	return out
}
