package recon

import (
	"testing"

	"github.com/receivia/arclear/internal/domain"
	"github.com/receivia/arclear/internal/parse"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pattern(t *testing.T) *parse.CaseIDPattern {
	t.Helper()
	p, err := parse.CompileCaseIDPattern(`\d{6}`)
	require.NoError(t, err)
	return p
}

func id(v int64) *int64 { return &v }

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(caseID *int64, text, tax, currency string, amnt string) domain.ItemRecord {
	return domain.ItemRecord{
		ID:       caseID,
		Text:     text,
		TaxCode:  tax,
		Currency: currency,
		Amount:   amount(amnt),
		Branch:   10001,
	}
}

func caseRec(caseID int64) domain.CaseRecord {
	return domain.CaseRecord{CaseID: caseID, Debtor: 10001, RootCause: "L01", Status: 2}
}

func TestConsolidateLeftJoin(t *testing.T) {
	items := []domain.ItemRecord{
		item(id(123456), "D123456", "YR", "EUR", "100.00"),
		item(nil, "no case here", "YR", "EUR", "-50.00"),
	}
	cases := []domain.CaseRecord{caseRec(123456)}

	merged, err := Consolidate(items, cases, nil, pattern(t), []string{"YR", ""})
	require.NoError(t, err)
	require.Len(t, merged, 2)

	// Unmatched ledger items are retained with nil case fields.
	require.NotNil(t, merged[0].Case)
	assert.Equal(t, int64(123456), merged[0].Case.CaseID)
	assert.Nil(t, merged[1].Case)
}

func TestConsolidateEmptyMergeIsFatal(t *testing.T) {
	_, err := Consolidate(nil, []domain.CaseRecord{caseRec(1)}, nil, pattern(t), nil)
	assert.ErrorIs(t, err, ErrEmptyMerge)
}

func TestConsolidateEnrichment(t *testing.T) {
	items := []domain.ItemRecord{item(id(123456), "D123456", "YR", "EUR", "100.00")}
	items[0].HeadOffice = 20001
	customers := map[int64]domain.Customer{
		20001: {Account: 20001, Name: "ACME Retail", Channel: "retail"},
	}

	merged, err := Consolidate(items, []domain.CaseRecord{caseRec(123456)}, customers, pattern(t), []string{"YR"})
	require.NoError(t, err)
	assert.Equal(t, "ACME Retail", merged[0].CustomerName)
	assert.Equal(t, "retail", merged[0].Channel)
}

func TestConsolidateEnrichmentIncomplete(t *testing.T) {
	// Enrichment configured but a joined row has no matching customer:
	// the entity is skipped, not failed.
	items := []domain.ItemRecord{item(id(123456), "D123456", "YR", "EUR", "100.00")}
	items[0].HeadOffice = 99999

	_, err := Consolidate(items, []domain.CaseRecord{caseRec(123456)},
		map[int64]domain.Customer{20001: {Name: "ACME"}}, pattern(t), []string{"YR"})
	assert.ErrorIs(t, err, ErrEnrichmentIncomplete)
}

func TestConsolidateVirtualIDs(t *testing.T) {
	// One item references two cases; itself and every record keyed by
	// either referenced ID are re-keyed to one synthetic identifier.
	items := []domain.ItemRecord{
		item(nil, "payment D123456 and D123457", "YR", "EUR", "-200.00"),
		item(id(123456), "D123456", "YR", "EUR", "120.00"),
		item(id(123457), "D123457", "YR", "EUR", "80.00"),
		item(id(123458), "D123458", "YR", "EUR", "10.00"),
	}
	cases := []domain.CaseRecord{caseRec(123456), caseRec(123457), caseRec(123458)}

	merged, err := Consolidate(items, cases, nil, pattern(t), []string{"YR"})
	require.NoError(t, err)

	var virtual []domain.ConsolidatedRecord
	for _, rec := range merged {
		if rec.ID != nil && *rec.ID >= VirtualIDBase {
			virtual = append(virtual, rec)
		}
	}
	require.Len(t, virtual, 3)

	vid := *virtual[0].ID
	for _, rec := range virtual {
		assert.Equal(t, vid, *rec.ID)
	}

	// The demoted real IDs moved to the virtual slot; the multi-case
	// item had none to demote.
	demoted := make(map[int64]bool)
	for _, rec := range virtual {
		if rec.VirtualID != nil {
			demoted[*rec.VirtualID] = true
		}
	}
	assert.Equal(t, map[int64]bool{123456: true, 123457: true}, demoted)

	// The unrelated item keeps its real ID.
	var untouched bool
	for _, rec := range merged {
		if rec.ID != nil && *rec.ID == 123458 {
			untouched = true
			assert.Nil(t, rec.VirtualID)
		}
	}
	assert.True(t, untouched)
}

func TestConsolidateSharedMultiCaseReferences(t *testing.T) {
	// Two items each referencing the same two cases must land in one
	// synthetic group; split across two groups the debit/credit pair
	// could never match.
	items := []domain.ItemRecord{
		item(nil, "invoice D 123456 D 234567", "YR", "EUR", "100.00"),
		item(nil, "credit D 123456 D 234567", "YR", "EUR", "-100.00"),
	}
	cases := []domain.CaseRecord{caseRec(123456), caseRec(234567)}

	merged, err := Consolidate(items, cases, nil, pattern(t), []string{"YR"})
	require.NoError(t, err)
	require.Len(t, merged, 2)

	require.NotNil(t, merged[0].ID)
	require.NotNil(t, merged[1].ID)
	assert.Equal(t, *merged[0].ID, *merged[1].ID)
	assert.GreaterOrEqual(t, *merged[0].ID, VirtualIDBase)

	out := EvaluateItems(merged, decimal.NewFromInt(1), nil)
	assert.Len(t, MatchedItems(out), 2)
}

func TestConsolidateWarnings(t *testing.T) {
	items := []domain.ItemRecord{
		item(id(123456), "D123456", "XX", "EUR", "100.00"),
	}
	cases := []domain.CaseRecord{{CaseID: 123456, Debtor: 77777, Status: 2}}

	merged, err := Consolidate(items, cases, nil, pattern(t), []string{"YR", ""})
	require.NoError(t, err)

	// Both the debtor mismatch and the unexpected tax code apply; the
	// single warning slot keeps only the last check's message.
	assert.Equal(t, "Unexpected tax code detected!", merged[0].Warning)
}

func TestConsolidateOrdering(t *testing.T) {
	items := []domain.ItemRecord{
		item(id(111111), "D111111", "YR", "EUR", "1.00"),
		item(nil, "none", "YR", "EUR", "1.00"),
		item(id(222222), "D222222", "YR", "EUR", "1.00"),
	}
	cases := []domain.CaseRecord{caseRec(111111), caseRec(222222)}

	merged, err := Consolidate(items, cases, nil, pattern(t), []string{"YR"})
	require.NoError(t, err)

	assert.Equal(t, int64(222222), *merged[0].ID)
	assert.Equal(t, int64(111111), *merged[1].ID)
	assert.Nil(t, merged[2].ID)
}

func consolidated(recs ...domain.ItemRecord) []domain.ConsolidatedRecord {
	out := make([]domain.ConsolidatedRecord, len(recs))
	for i, r := range recs {
		out[i] = domain.ConsolidatedRecord{ItemRecord: r}
	}
	return out
}

func TestEvaluateItemsMatchedPair(t *testing.T) {
	recs := consolidated(
		item(id(123456), "", "YR", "EUR", "100.00"),
		item(id(123456), "", "YR", "EUR", "-100.00"),
	)

	out := EvaluateItems(recs, decimal.NewFromInt(1), nil)
	for _, rec := range out {
		assert.True(t, rec.IDMatched)
		assert.True(t, rec.TaxMatched)
		assert.True(t, rec.AmountMatched)
	}
	assert.Len(t, MatchedItems(out), 2)
}

func TestEvaluateItemsOneSidedExclusion(t *testing.T) {
	// All-positive members summing under threshold must not match.
	recs := consolidated(
		item(id(123456), "", "YR", "EUR", "0.30"),
		item(id(123456), "", "YR", "EUR", "0.20"),
	)

	out := EvaluateItems(recs, decimal.NewFromInt(1), nil)
	for _, rec := range out {
		assert.True(t, rec.IDMatched)
		assert.False(t, rec.AmountMatched)
	}
	assert.Empty(t, MatchedItems(out))
}

func TestEvaluateItemsZeroBaseThreshold(t *testing.T) {
	// A base threshold of 0 behaves as 0.01: exact-zero sums match,
	// anything at or above one cent does not.
	exact := consolidated(
		item(id(123456), "", "YR", "EUR", "100.00"),
		item(id(123456), "", "YR", "EUR", "-100.00"),
	)
	out := EvaluateItems(exact, decimal.Zero, nil)
	assert.Len(t, MatchedItems(out), 2)

	offByTwo := consolidated(
		item(id(123456), "", "YR", "EUR", "100.02"),
		item(id(123456), "", "YR", "EUR", "-100.00"),
	)
	out = EvaluateItems(offByTwo, decimal.Zero, nil)
	assert.Empty(t, MatchedItems(out))
}

func TestEvaluateItemsNullTaxPairing(t *testing.T) {
	tests := []struct {
		name    string
		taxes   [2]string
		matched bool
	}{
		{"identical codes", [2]string{"YR", "YR"}, true},
		{"null with allow-listed", [2]string{"", "YR"}, true},
		{"null with unlisted", [2]string{"", "XX"}, false},
		{"two distinct codes", [2]string{"YR", "YN"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := consolidated(
				item(id(123456), "", tt.taxes[0], "EUR", "100.00"),
				item(id(123456), "", tt.taxes[1], "EUR", "-100.00"),
			)
			out := EvaluateItems(recs, decimal.NewFromInt(1), nil)
			for _, rec := range out {
				assert.Equal(t, tt.matched, rec.TaxMatched)
			}
		})
	}
}

func TestEvaluateItemsPerTaxThreshold(t *testing.T) {
	recs := consolidated(
		item(id(123456), "", "YR", "EUR", "101.50"),
		item(id(123456), "", "YR", "EUR", "-100.00"),
	)

	// Base threshold alone would reject the 1.50 difference.
	out := EvaluateItems(recs, decimal.NewFromInt(1), nil)
	assert.Empty(t, MatchedItems(out))

	// The per-tax-code threshold overrides the base.
	out = EvaluateItems(recs, decimal.NewFromInt(1),
		map[string]decimal.Decimal{"YR": decimal.NewFromInt(2)})
	assert.Len(t, MatchedItems(out), 2)
}

func TestEvaluateItemsNoDuplicates(t *testing.T) {
	recs := consolidated(
		item(id(123456), "", "YR", "EUR", "100.00"),
		item(id(123457), "", "YR", "EUR", "-100.00"),
	)

	out := EvaluateItems(recs, decimal.NewFromInt(1), nil)
	for _, rec := range out {
		assert.False(t, rec.IDMatched)
		assert.False(t, rec.TaxMatched)
		assert.False(t, rec.AmountMatched)
	}
}

func TestEvaluateItemsIdempotent(t *testing.T) {
	recs := consolidated(
		item(id(123456), "", "YR", "EUR", "100.00"),
		item(id(123456), "", "YR", "EUR", "-100.00"),
		item(id(123457), "", "YR", "EUR", "5.00"),
	)

	once := EvaluateItems(recs, decimal.NewFromInt(1), nil)
	twice := EvaluateItems(once, decimal.NewFromInt(1), nil)

	assert.Equal(t, MatchedItems(once), MatchedItems(twice))
	assert.Equal(t, once, twice)
}
