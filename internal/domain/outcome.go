package domain

import "fmt"

// EntityStatus classifies the result of running one pipeline stage for
// one entity.
type EntityStatus int

const (
	// EntityContinue means the stage completed (possibly with no work to
	// do) and the entity proceeds to the next stage.
	EntityContinue EntityStatus = iota
	// EntitySkipped means the entity's remaining stages are skipped for
	// this run. The run itself continues with the other entities.
	EntitySkipped
	// EntityFatal means a data-integrity failure was detected for this
	// entity. Remaining stages are skipped and the failure is surfaced
	// in the run report.
	EntityFatal
)

// EntityOutcome is the per-entity result of a stage. Entity-scoped
// failures never abort the run; run-level failures are ordinary errors
// on the orchestrator path and are kept strictly separate from this
// type.
type EntityOutcome struct {
	Status EntityStatus
	Reason string
	// Empty marks a completed stage whose dataset came out empty. The
	// stage still checkpoints; the run history records it separately.
	Empty bool
}

// Continue is the zero-value outcome for a stage that completed.
func Continue() EntityOutcome {
	return EntityOutcome{Status: EntityContinue}
}

// NoData is the outcome of a stage that completed with nothing to work
// on, the ordinary quiet-day result.
func NoData() EntityOutcome {
	return EntityOutcome{Status: EntityContinue, Empty: true}
}

// Skip marks the entity as skipped with a human-readable reason.
func Skip(format string, args ...any) EntityOutcome {
	return EntityOutcome{Status: EntitySkipped, Reason: fmt.Sprintf(format, args...)}
}

// Fatal marks the entity as failed with a human-readable reason.
func Fatal(format string, args ...any) EntityOutcome {
	return EntityOutcome{Status: EntityFatal, Reason: fmt.Sprintf(format, args...)}
}

func (o EntityOutcome) String() string {
	switch o.Status {
	case EntityContinue:
		return "continue"
	case EntitySkipped:
		return "skipped: " + o.Reason
	case EntityFatal:
		return "fatal: " + o.Reason
	}
	return "unknown"
}
