package artifact

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Change records a single correction applied to an artifact: the full before
// and after content plus a rendered line diff. Corrections that did not alter
// content are kept and flagged NoOp rather than dropped, so the audit trail
// always matches the number of correction invocations.
type Change struct {
	Ordinal  int    // position in the run's correction sequence, from 0
	Artifact string // name of the corrected artifact
	Before   string
	After    string
	Diff     string // unified-style line diff, empty for no-ops
	NoOp     bool   // before == after
}

// ChangeLog is the append-only sequence of corrections for one run.
type ChangeLog struct {
	entries []Change
}

// NewChangeLog returns an empty change log.
func NewChangeLog() *ChangeLog {
	return &ChangeLog{}
}

// Record appends a change entry and returns it. Always appends, even for
// no-op corrections.
func (l *ChangeLog) Record(name, before, after string) Change {
	c := Change{
		Ordinal:  len(l.entries),
		Artifact: name,
		Before:   before,
		After:    after,
		NoOp:     before == after,
	}
	if !c.NoOp {
		c.Diff = renderDiff(before, after)
	}
	l.entries = append(l.entries, c)
	return c
}

// Entries returns the recorded changes in order.
func (l *ChangeLog) Entries() []Change {
	out := make([]Change, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded corrections, no-ops included.
func (l *ChangeLog) Len() int { return len(l.entries) }

// Effective returns the number of corrections that actually altered content.
func (l *ChangeLog) Effective() int {
	n := 0
	for _, c := range l.entries {
		if !c.NoOp {
			n++
		}
	}
	return n
}

// renderDiff produces a unified-style line diff between two contents.
// Line-level reduction avoids character-granularity noise in code diffs.
func renderDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range splitLines(d.Text) {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
