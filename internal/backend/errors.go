package backend

import "errors"

// Fault taxonomy of the automation backend. The pipeline branches on
// these with errors.Is; anything it does not recognize is treated as an
// entity failure.
var (
	// ErrConnectionLost means the backend session dropped mid-operation.
	// The ledger export retries once on this; everywhere else it is an
	// entity failure.
	ErrConnectionLost = errors.New("backend connection lost")

	// ErrNoOpenItems is the no-data outcome of the ledger export. Not a
	// failure: the entity simply has nothing to clear.
	ErrNoOpenItems = errors.New("no open items for selection")

	// ErrNoCasesFound is the no-data outcome of the case export.
	ErrNoCasesFound = errors.New("no dispute cases found")

	// ErrPostingRejected means the clearing transaction could not be
	// booked (blocked period, balance not zero, validation failure).
	ErrPostingRejected = errors.New("clearing posting rejected")

	// ErrItemSelection means the open documents of an account could not
	// be selected into the transaction.
	ErrItemSelection = errors.New("open item selection failed")

	// ErrCaseEditing means the dispute case rejected the update.
	ErrCaseEditing = errors.New("case editing failed")

	// ErrStatusTextTooLong means the case status field rejected the text
	// for length.
	ErrStatusTextTooLong = errors.New("status text exceeds field limit")

	// ErrNotificationClosed means the notification was already completed.
	// Harmless; the pipeline records it and moves on.
	ErrNotificationClosed = errors.New("notification already closed")

	// ErrNotificationSearch means the notification could not be found.
	ErrNotificationSearch = errors.New("notification not found")
)
