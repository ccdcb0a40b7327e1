// Package clearing converts matched open items into posting-ready
// clearing instructions: tax code, GL account, cost center, root cause,
// posting text and the rounded rest amount per group, aggregated per
// document currency.
package clearing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// GroupRecord carries the posting parameters of one clearing group (all
// matched items sharing one possibly-virtual identifier within a
// currency). The three status strings start empty and are filled in by
// the posting, case-closing and notification-closing stages.
type GroupRecord struct {
	Skipped      bool            `json:"skipped"`
	Message      string          `json:"message"`
	CaseIDs      []int64         `json:"case_ids"`
	Currency     string          `json:"currency"`
	Assignment   string          `json:"assignment"`
	HeadOffice   int64           `json:"head_office"`
	TaxCode      string          `json:"tax_code"`
	RootCause    string          `json:"root_cause"`
	GLAccount    string          `json:"gl_account"`
	CostCenter   string          `json:"cost_center"`
	PostingText  string          `json:"posting_text"`
	RestAmount   decimal.Decimal `json:"rest_amount"`
	Notification int64           `json:"notification"`

	ClearingStatus            string `json:"clearing_status"`
	CaseClosingStatus         string `json:"case_closing_status"`
	NotificationClosingStatus string `json:"notification_closing_status"`
}

// CurrencyBucket aggregates the groups of one document currency.
// Posting is all-or-nothing per currency, so the cleared flag, posting
// number and bucket-level clearing status live here rather than on the
// groups.
type CurrencyBucket struct {
	Records map[int64]*GroupRecord `json:"records"`

	ClearingStatus string `json:"clearing_status"`

	// HeadOfficeDocs maps each head office to its deduplicated open
	// document numbers, unioned across all groups of the bucket.
	// Skipped groups contribute too: their items may still need to be
	// loaded for balance zeroing.
	HeadOfficeDocs map[int64][]int64 `json:"head_office_docs"`

	// CaseIDs is the union of all member case identifiers.
	CaseIDs []int64 `json:"case_ids"`

	PostingNumber *int64 `json:"posting_number"`
	Cleared       bool   `json:"cleared"`
	MatchedCount  int    `json:"matched_count"`
}

// Instruction is the full clearing input of one entity, keyed by
// document currency.
type Instruction map[string]*CurrencyBucket

// Currencies returns the bucket keys in ascending order for
// deterministic iteration.
func (in Instruction) Currencies() []string {
	out := make([]string, 0, len(in))
	for curr := range in {
		out = append(out, curr)
	}
	sort.Strings(out)
	return out
}

// GroupIDs returns the group identifiers of a bucket in descending
// order, mirroring the consolidated-data ordering.
func (b *CurrencyBucket) GroupIDs() []int64 {
	out := make([]int64, 0, len(b.Records))
	for id := range b.Records {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}

// Clearable returns the identifiers of the bucket's non-skipped groups,
// descending.
func (b *CurrencyBucket) Clearable() []int64 {
	var out []int64
	for _, id := range b.GroupIDs() {
		if !b.Records[id].Skipped {
			out = append(out, id)
		}
	}
	return out
}
