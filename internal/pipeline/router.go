package pipeline

// Decision is the router's choice of next stage after a validation attempt.
type Decision int

const (
	DecideSuccess Decision = iota
	DecideCorrectPrimary
	DecideCorrectCompanion
	DecideBudgetExceeded
)

func (d Decision) String() string {
	switch d {
	case DecideSuccess:
		return "success"
	case DecideCorrectPrimary:
		return "correct_primary"
	case DecideCorrectCompanion:
		return "correct_companion"
	case DecideBudgetExceeded:
		return "budget_exceeded"
	default:
		return "unknown"
	}
}

// Terminal reports whether the decision ends the run.
func (d Decision) Terminal() bool {
	return d == DecideSuccess || d == DecideBudgetExceeded
}

// Route evaluates the state machine's conditional edges after a validation
// attempt. It is a pure function of the run-state snapshot: the engine owns
// the retryCount increment when a correction branch is taken, so calling
// Route twice on the same snapshot yields the same decision.
//
// An empty validation log is the only path to success; once retryCount has
// reached retryBudget a failing log terminates the run, so no more than
// retryBudget corrections can ever happen.
func Route(validationLog string, retryCount, retryBudget int, companionNames []string) Decision {
	if validationLog == "" {
		return DecideSuccess
	}
	if retryCount >= retryBudget {
		return DecideBudgetExceeded
	}
	if Classify(validationLog, companionNames) == CategoryCompanion {
		return DecideCorrectCompanion
	}
	// PRIMARY and UNKNOWN both correct the primary design.
	return DecideCorrectPrimary
}
