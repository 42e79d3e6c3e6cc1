package domain

var allowedTransitions = map[PeriodState][]PeriodState{
	PeriodStateOpen:            {PeriodStateUnderValidation, PeriodStateClosed},
	PeriodStateReopened:        {PeriodStateUnderValidation, PeriodStateClosed},
	PeriodStateUnderValidation: {PeriodStateClosed},
	PeriodStateClosed:          {PeriodStateReopened},
}

// IsTransitionAllowed reports whether current may move to target.
func IsTransitionAllowed(current, target PeriodState) bool {
	for _, next := range allowedTransitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

// OpenFamily lists the states that accept declaration edits.
func OpenFamily() []PeriodState {
	return []PeriodState{PeriodStateOpen, PeriodStateReopened}
}
