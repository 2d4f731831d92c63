package hmc

// State is the phase of the trajectory state machine.
type State int

const (
	StateIdle State = iota
	StateMomentumRefresh
	StateIntegrating
	StateEvaluating
	StateAccepted
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMomentumRefresh:
		return "momentum_refresh"
	case StateIntegrating:
		return "integrating"
	case StateEvaluating:
		return "evaluating"
	case StateAccepted:
		return "accepted"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
