package domain

import "fmt"

// InvariantError marks a violated configuration or rules invariant.
// Unlike entity-scoped data problems, an invariant violation means
// automatic posting is no longer safe, so the orchestrator halts the
// whole run when it sees one.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return "invariant violation: " + e.Reason
}

// Invariantf builds an InvariantError from a format string.
func Invariantf(format string, args ...any) error {
	return &InvariantError{Reason: fmt.Sprintf(format, args...)}
}
