// Package backend defines the contract to the ERP automation backend.
// The engine never drives the ERP directly; everything flows through
// this interface so the pipeline can be exercised against a mock.
package backend

import (
	"context"

	"github.com/shopspring/decimal"
)

// EntityRef identifies the scope of an export: either a receivables
// worklist or a company code.
type EntityRef struct {
	Name string
	Kind string
	Code string
}

// LineItem is one posting line of a clearing transaction.
type LineItem struct {
	GLAccount   string
	CostCenter  string
	TaxCode     string
	Amount      decimal.Decimal
	PostingText string
	Assignment  string
}

// ClearingRequest carries everything the backend needs to post one
// currency's clearing transaction: the open documents to select per
// head-office account and the difference lines to book.
type ClearingRequest struct {
	Currency       string
	HeadOfficeDocs map[int64][]int64
	Lines          []LineItem
}

// Backend is the automation surface of the ERP system.
type Backend interface {
	// ExportLedgerItems runs the open-item report for the entity and
	// returns the raw delimited export text.
	ExportLedgerItems(ctx context.Context, entity EntityRef) (string, error)

	// ExportCaseRecords runs the dispute-case report for the entity's
	// cases and returns the raw delimited export text.
	ExportCaseRecords(ctx context.Context, entity EntityRef, caseIDs []int64) (string, error)

	// LoadAccountItems selects the given open documents of one
	// head-office account into the pending clearing transaction.
	LoadAccountItems(ctx context.Context, headOffice int64, documents []int64) error

	// PostClearing books the pending transaction and returns the posting
	// document number.
	PostClearing(ctx context.Context, req ClearingRequest) (int64, error)

	// CloseCase confirms a dispute case: status text, root cause and
	// closed state.
	CloseCase(ctx context.Context, caseID int64, statusText, rootCause string) error

	// CloseNotification completes the quality notification attached to a
	// case.
	CloseNotification(ctx context.Context, notification int64) error

	// Close releases the backend session.
	Close() error
}
