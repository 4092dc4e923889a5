package pipeline

import "strings"

// Category is the artifact category a validation failure implicates.
type Category int

const (
	CategoryPrimary Category = iota
	CategoryCompanion
	CategoryUnknown
)

func (c Category) String() string {
	switch c {
	case CategoryPrimary:
		return "primary"
	case CategoryCompanion:
		return "companion"
	default:
		return "unknown"
	}
}

// timeoutMarkers are log fragments indicating the simulation hung rather than
// failed to compile. A hang points at the stimulus/harness (missing $finish,
// unclocked loop) rather than the design itself.
var timeoutMarkers = []string{
	"timed out",
	"timeout",
}

// Classify determines which artifact category a failing validation log
// implicates. Two signals are applied in order, first match wins:
//
//  1. a companion artifact's name occurs literally in the log (toolchains
//     report errors as file:line);
//  2. a timeout/hang marker, which implicates the harness.
//
// Neither firing yields CategoryUnknown. Callers route UNKNOWN to primary
// correction: companion artifacts are simpler and more likely to be blamed by
// coincidental name collision, so the design itself is the default suspect.
// That default is a policy decision, not an inference about correctness.
func Classify(validationLog string, companionNames []string) Category {
	if validationLog == "" {
		return CategoryUnknown
	}

	for _, name := range companionNames {
		if name != "" && strings.Contains(validationLog, name) {
			return CategoryCompanion
		}
	}

	lower := strings.ToLower(validationLog)
	for _, marker := range timeoutMarkers {
		if strings.Contains(lower, marker) {
			return CategoryCompanion
		}
	}

	return CategoryUnknown
}

// ImplicatedCompanion picks the specific companion artifact to correct for a
// CategoryCompanion classification: the first companion named in the log, or
// the harness when only the timeout signal fired.
func ImplicatedCompanion(validationLog string, companionNames []string, harnessName string) string {
	for _, name := range companionNames {
		if name != "" && strings.Contains(validationLog, name) {
			return name
		}
	}
	return harnessName
}
