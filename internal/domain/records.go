// Package domain holds the core record types shared by the parsing,
// reconciliation and clearing packages. The types are pure data; all
// behavior lives in the packages that operate on them.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotApplicable marks output fields that carry no value for a group,
// e.g. the GL account of a group whose rest amount is zero.
const NotApplicable = "NA"

// DevaluatedCaseStatus is the dispute status code meaning the case was
// devaluated. An open item still pointing at such a case is suspicious
// and gets a warning during consolidation.
const DevaluatedCaseStatus = 4

// ItemRecord is one open item from the ledger export.
//
// ID is the primary matching identifier. After parsing it holds the case
// ID extracted from the item text (nil when the text carries none).
// Consolidation may replace it with a synthetic virtual ID when the text
// references several cases; the demoted real ID then moves to VirtualID.
type ItemRecord struct {
	DocumentNumber int64           `json:"document_number"`
	Assignment     string          `json:"assignment"`
	DocumentType   string          `json:"document_type"`
	DocumentDate   time.Time       `json:"document_date"`
	DueDate        time.Time       `json:"due_date"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	TaxCode        string          `json:"tax_code"`
	Text           string          `json:"text"`
	Branch         int64           `json:"branch"`
	HeadOffice     int64           `json:"head_office"`

	ID        *int64 `json:"id"`
	VirtualID *int64 `json:"virtual_id"`

	IDMatched     bool `json:"id_matched"`
	AmountMatched bool `json:"amount_matched"`
	TaxMatched    bool `json:"tax_matched"`

	// Warning is a single annotation slot describing an inconsistency
	// found during consolidation. Later checks overwrite earlier ones.
	Warning string `json:"warning"`
}

// CaseRecord is one dispute case from the case-management export.
// Read-only after parsing.
type CaseRecord struct {
	Debtor         int64     `json:"debtor"`
	CaseID         int64     `json:"case_id"`
	Notification   int64     `json:"notification"`
	StatusSales    string    `json:"status_sales"`
	AssignmentDisp string    `json:"assignment_disp"`
	Status         int       `json:"status"`
	CreatedOn      time.Time `json:"created_on"`
	StatusAC       string    `json:"status_ac"`
	Processor      string    `json:"processor"`
	CategoryDesc   string    `json:"category_desc"`
	RootCause      string    `json:"root_cause"`
	AutoclaimsNote string    `json:"autoclaims_note"`
	FaxNumber      string    `json:"fax_number"`
	Category       string    `json:"category"`
}

// ConsolidatedRecord is the left join of an ItemRecord to its CaseRecord.
// Case is nil for ledger items without a matching dispute case.
type ConsolidatedRecord struct {
	ItemRecord
	Case *CaseRecord `json:"case"`

	// Customer enrichment, present only when a customer directory was
	// supplied during consolidation.
	CustomerName string `json:"customer_name,omitempty"`
	Channel      string `json:"channel,omitempty"`
}

// Customer is one row of the customer master used to enrich consolidated
// data and to categorize accounts as trade or retail.
type Customer struct {
	Account int64
	Name    string
	Channel string
}

// Matched reports whether the record passed all three match checks and
// therefore belongs to the clearable set.
func (r *ConsolidatedRecord) Matched() bool {
	return r.IDMatched && r.AmountMatched && r.TaxMatched
}
