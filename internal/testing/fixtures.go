package testing

import (
	"fmt"
	"strings"
)

// LedgerRow is one open-item line of a raw ledger export fixture.
type LedgerRow struct {
	Document   int64
	Assignment string
	Type       string
	Amount     string // export notation, e.g. "1.250,00-"
	Currency   string
	TaxCode    string
	Text       string
	Branch     int64
	HeadOffice int64
}

// CaseRow is one line of a raw case export fixture.
type CaseRow struct {
	Debtor       int64
	CaseID       int64
	Notification string
	Status       int
	StatusAC     string
	RootCause    string
	Category     string
}

// NewLedgerExport renders rows as a framed delimited export the way
// the ledger report prints it, including header and totals noise.
func NewLedgerExport(rows []LedgerRow) string {
	var b strings.Builder
	b.WriteString("------------------------------------------------\n")
	b.WriteString("| Document | Assignment | Type | ... |\n")
	b.WriteString("------------------------------------------------\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "| %d | %s | %s | 01.03.2023 | 31.03.2023 | %s | %s | %s | %s | %d | %d |\n",
			r.Document, r.Assignment, r.Type, r.Amount, r.Currency, r.TaxCode, r.Text, r.Branch, r.HeadOffice)
	}
	b.WriteString("| Total      |    |    |            |            | 0,00     |     |    |   |   |   |\n")
	return b.String()
}

// NewCaseExport renders rows as a raw dispute-case export.
func NewCaseExport(rows []CaseRow) string {
	var b strings.Builder
	b.WriteString("| Debtor | Case | Notification | ... |\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "| %d | %d | %s | OPEN | AD | %d | 15.02.2023 | %s | J. Smith | desc | %s |  |  | %s |\n",
			r.Debtor, r.CaseID, r.Notification, r.Status, r.StatusAC, r.RootCause, r.Category)
	}
	return b.String()
}

// RulesYAML is a minimal single-jurisdiction rules document usable by
// pipeline tests.
const RulesYAML = `
germany:
  country: Germany
  active: true
  case_id_pattern: '\d{6}'
  base_threshold: 0.5
  difference_name: "Price difference $customer$"
  entities:
    "1000":
      active: true
      kind: worklist
      valid_taxes: ["YR", "YN", ""]
      gl_accounts:
        write_off_common:
          number: "550000"
          cost_center:
            trade: "CC100"
            retail: "CC100"
`
