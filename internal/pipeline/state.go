// Package pipeline implements the generate → validate → correct orchestration
// engine: the run state, the failure classifier, the routing state machine,
// the two correctors, and the engine that drives external collaborators
// through a bounded number of correction cycles.
package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/wlmoi/chipster/internal/artifact"
)

// Terminal is the final status of a run. A run that was cancelled before
// reaching a terminal keeps TerminalRunning, preserving its last consistent
// state for audit.
type Terminal int

const (
	TerminalRunning Terminal = iota
	TerminalSucceeded
	TerminalBudgetExceeded
	TerminalUnclassifiable
)

func (t Terminal) String() string {
	switch t {
	case TerminalRunning:
		return "RUNNING"
	case TerminalSucceeded:
		return "SUCCEEDED"
	case TerminalBudgetExceeded:
		return "FAILED_BUDGET_EXCEEDED"
	case TerminalUnclassifiable:
		return "FAILED_UNCLASSIFIABLE"
	default:
		return "UNKNOWN"
	}
}

// RunState is the single mutable record for one pipeline run. It is owned
// exclusively by the engine for the duration of the run; distinct runs never
// share state, so concurrent runs need no locking.
type RunState struct {
	ID    string
	Query string

	// Artifacts is the current best-known set of generated files.
	Artifacts *artifact.Store

	// HarnessName is the companion test harness produced by the companion
	// generator. The classifier's timeout signal implicates this artifact.
	HarnessName string

	// ValidationLog holds the most recent validation output. Empty means the
	// last attempt passed, or none has run yet.
	ValidationLog string

	// RetryCount is incremented once per failed validation that triggered a
	// correction. Never exceeds RetryBudget.
	RetryCount  int
	RetryBudget int

	// Changes records every correction, no-ops included.
	Changes *artifact.ChangeLog

	Terminal Terminal

	// Failure describes why a run ended unclassifiable or was cancelled.
	Failure string

	// StorageDir is the handle returned by the last persist call.
	StorageDir string

	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRunState creates the initial state for a run. Negative budgets are
// clamped to zero, which means "single attempt, no correction".
func NewRunState(query string, retryBudget int) *RunState {
	if retryBudget < 0 {
		retryBudget = 0
	}
	return &RunState{
		ID:          uuid.NewString(),
		Query:       query,
		Artifacts:   artifact.NewStore(),
		RetryBudget: retryBudget,
		Changes:     artifact.NewChangeLog(),
		Terminal:    TerminalRunning,
		StartedAt:   time.Now(),
	}
}

// CompanionNames returns the names of all companion artifacts, the input to
// the classifier's name-match signal.
func (s *RunState) CompanionNames() []string {
	companions := s.Artifacts.Companions()
	names := make([]string, 0, len(companions))
	for _, a := range companions {
		names = append(names, a.Name)
	}
	return names
}
