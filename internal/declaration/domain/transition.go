package domain

var allowedTransitions = map[State][]State{
	StateDraft:     {StateSubmitted},
	StateSubmitted: {StateReviewed, StateDraft},
	StateReviewed:  {StateSynchronized, StateDraft},
}

// IsTransitionAllowed reports whether current may move to target.
// SYNCHRONIZED has no outgoing edges.
func IsTransitionAllowed(current, target State) bool {
	for _, next := range allowedTransitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

// IsAdjustable reports whether coordinators may edit lines in state.
func IsAdjustable(state State) bool {
	return state == StateSubmitted || state == StateReviewed
}
