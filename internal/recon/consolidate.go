// Package recon merges the ledger and dispute-case record sets and
// evaluates which groups of open items are eligible for automatic
// clearing. All functions are pure over their inputs; the orchestrator
// owns persistence and sequencing.
package recon

import (
	"errors"
	"sort"

	"github.com/receivia/arclear/internal/domain"
	"github.com/receivia/arclear/internal/parse"
)

// VirtualIDBase seeds the synthetic group-identifier counter. It sits
// above the range of real case identifiers so that a virtual ID can
// never collide with one.
const VirtualIDBase int64 = 10_000_000

// ErrEmptyMerge reports that consolidating produced no rows. The merge
// is a left join on the ledger side, so an empty result means the input
// item set was empty, which points at a key-mismatch or sequencing bug
// upstream. The error is fatal for the entity, not for the run.
var ErrEmptyMerge = errors.New("consolidation produced no rows, check the merge key")

// ErrEnrichmentIncomplete reports that a customer directory was supplied
// but some joined row's head office has no entry in it. The entity is
// skipped for the run; sibling entities are unaffected.
var ErrEnrichmentIncomplete = errors.New("customer enrichment incomplete")

// Consolidate left-joins open items to dispute cases on the case ID,
// optionally enriches the rows from the customer directory, synthesizes
// virtual IDs for items referencing several cases, flags accounting
// inconsistencies and orders the result by ID, descending.
func Consolidate(
	items []domain.ItemRecord,
	cases []domain.CaseRecord,
	customers map[int64]domain.Customer,
	pattern *parse.CaseIDPattern,
	validTaxes []string,
) ([]domain.ConsolidatedRecord, error) {
	merged := merge(items, cases)
	if len(merged) == 0 {
		return nil, ErrEmptyMerge
	}

	if customers != nil {
		if !enrich(merged, customers) {
			return nil, ErrEnrichmentIncomplete
		}
	}

	virtualize(merged, pattern)
	flagInconsistencies(merged, validTaxes)
	orderByID(merged)

	return merged, nil
}

func merge(items []domain.ItemRecord, cases []domain.CaseRecord) []domain.ConsolidatedRecord {
	// First occurrence wins; the case set arrives ordered by case ID
	// descending and deduplicated in practice.
	byID := make(map[int64]*domain.CaseRecord, len(cases))
	for i := range cases {
		if _, ok := byID[cases[i].CaseID]; !ok {
			byID[cases[i].CaseID] = &cases[i]
		}
	}

	merged := make([]domain.ConsolidatedRecord, 0, len(items))
	for _, item := range items {
		rec := domain.ConsolidatedRecord{ItemRecord: item}
		if item.ID != nil {
			rec.Case = byID[*item.ID]
		}
		merged = append(merged, rec)
	}
	return merged
}

// enrich adds the customer name and channel by head-office account.
// Returns false when any row's head office is missing from the
// directory, which deems consolidation incomplete for the entity.
func enrich(merged []domain.ConsolidatedRecord, customers map[int64]domain.Customer) bool {
	for i := range merged {
		cust, ok := customers[merged[i].HeadOffice]
		if !ok || cust.Name == "" {
			return false
		}
		merged[i].CustomerName = cust.Name
		merged[i].Channel = cust.Channel
	}
	return true
}

// virtualize allocates a synthetic group identifier for every item whose
// free text references two or more cases, and propagates it to all rows
// keyed by any of the referenced real IDs. Reference sets that overlap
// share one synthetic identifier, so the halves of a payment/invoice
// pair citing the same cases land in one group. The synthetic ID is
// then swapped into the primary ID field so that downstream matching
// operates uniformly on one identifier column; the demoted real ID
// moves to the virtual slot.
func virtualize(merged []domain.ConsolidatedRecord, pattern *parse.CaseIDPattern) {
	next := VirtualIDBase
	assigned := make(map[int64]int64)

	for i := range merged {
		refs := pattern.Extract(merged[i].Text)
		if len(refs) < 2 {
			continue
		}

		vid, ok := int64(0), false
		for _, real := range refs {
			if v, seen := assigned[real]; seen {
				vid, ok = v, true
				break
			}
		}
		if !ok {
			vid = next
			next++
		}

		v := vid
		merged[i].VirtualID = &v

		for _, real := range refs {
			assigned[real] = vid
			for j := range merged {
				if merged[j].ID != nil && *merged[j].ID == real {
					w := vid
					merged[j].VirtualID = &w
				}
			}
		}
	}

	for i := range merged {
		if merged[i].VirtualID != nil {
			merged[i].ID, merged[i].VirtualID = merged[i].VirtualID, merged[i].ID
		}
	}
}

// flagInconsistencies validates critical accounting parameters. The
// warning field is a single slot: a later check overwrites an earlier
// one, so at most the last detected inconsistency is visible.
func flagInconsistencies(merged []domain.ConsolidatedRecord, validTaxes []string) {
	valid := make(map[string]struct{}, len(validTaxes))
	for _, tax := range validTaxes {
		valid[tax] = struct{}{}
	}

	for i := range merged {
		rec := &merged[i]

		if rec.Case != nil && rec.ID != nil && rec.Case.Debtor != rec.Branch {
			rec.Warning = "Ledger and dispute-case debtors not equal!"
		}
		if _, ok := valid[rec.TaxCode]; !ok {
			rec.Warning = "Unexpected tax code detected!"
		}
		if rec.Case != nil && rec.Case.Status == domain.DevaluatedCaseStatus {
			rec.Warning = "Devaluated case ID assigned to an open item!"
		}
	}
}

// orderByID sorts by the (possibly virtual) identifier descending, with
// unidentified rows last. This sort is the sole source of downstream
// determinism.
func orderByID(merged []domain.ConsolidatedRecord) {
	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i].ID, merged[j].ID
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})
}
