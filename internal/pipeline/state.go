package pipeline

// State is a step of one generation request.
type State string

const (
	StateValidating State = "validating"
	StateProcessing State = "processing"
	StateRendering  State = "rendering"
	StateCompiling  State = "compiling"
	StateCleaningUp State = "cleaning_up"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transition can happen from s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

var transitions = map[State][]State{
	StateValidating: {StateProcessing, StateFailed},
	StateProcessing: {StateRendering, StateFailed},
	StateRendering:  {StateCompiling, StateFailed},
	StateCompiling:  {StateCleaningUp, StateDone, StateFailed},
	StateCleaningUp: {StateDone},
}

// CanTransition reports whether the pipeline may move from s to next.
// Cleanup never leads to StateFailed.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
