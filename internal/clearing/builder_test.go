package clearing

import (
	"strings"
	"testing"

	"github.com/receivia/arclear/internal/domain"
	"github.com/receivia/arclear/internal/rules"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id(v int64) *int64 { return &v }

func jurisdiction() *rules.Jurisdiction {
	return &rules.Jurisdiction{
		Country:        "Germany",
		DifferenceName: "Price difference $customer$",
		UnusedTaxCode:  "UU",
	}
}

func entity() *rules.Entity {
	return &rules.Entity{
		Kind:       rules.KindWorklist,
		ValidTaxes: []string{"YR", "YN", ""},
		GLAccounts: rules.GLAccounts{
			WriteOffCommon: &rules.GLAccount{
				Number:     "550000",
				CostCenter: rules.CostCenters{Trade: "CC100", Retail: "CC100"},
			},
		},
	}
}

func matchedRec(groupID int64, tax, curr, amnt, docType string) domain.ConsolidatedRecord {
	return domain.ConsolidatedRecord{
		ItemRecord: domain.ItemRecord{
			ID:             id(groupID),
			TaxCode:        tax,
			Currency:       curr,
			Amount:         decimal.RequireFromString(amnt),
			DocumentType:   docType,
			DocumentNumber: 9000000000 + groupID,
			Branch:         10001,
			HeadOffice:     20001,
			IDMatched:      true,
			AmountMatched:  true,
			TaxMatched:     true,
		},
		Case: &domain.CaseRecord{
			CaseID:       groupID,
			Notification: 400000000 + groupID,
			Category:     "002",
		},
		CustomerName: "ACME",
	}
}

func TestBuildInputSingleGroup(t *testing.T) {
	matched := []domain.ConsolidatedRecord{
		matchedRec(123456, "YR", "EUR", "100.10", "DZ"),
		matchedRec(123456, "YR", "EUR", "-100.00", "DA"),
	}

	in, err := BuildInput(matched, jurisdiction(), entity(), nil)
	require.NoError(t, err)
	require.Len(t, in, 1)

	bucket := in["EUR"]
	require.NotNil(t, bucket)
	assert.Equal(t, 2, bucket.MatchedCount)
	assert.False(t, bucket.Cleared)
	assert.Nil(t, bucket.PostingNumber)

	rec := bucket.Records[123456]
	require.NotNil(t, rec)
	assert.False(t, rec.Skipped)
	assert.Equal(t, "YR", rec.TaxCode)
	assert.Equal(t, RootCausePayment, rec.RootCause)
	assert.True(t, rec.RestAmount.Equal(decimal.RequireFromString("0.10")), "got %s", rec.RestAmount)
	assert.Equal(t, "550000", rec.GLAccount)
	assert.Equal(t, "CC100", rec.CostCenter)
	assert.Equal(t, "Price difference ACME D 123456", rec.PostingText)
	assert.Equal(t, "123456", rec.Assignment)
	assert.Equal(t, []int64{123456}, rec.CaseIDs)
	assert.Equal(t, int64(400123456), rec.Notification)

	// Document numbers aggregate per head office, deduplicated.
	assert.Equal(t, []int64{9000123456}, bucket.HeadOfficeDocs[20001])
}

func TestBuildInputZeroRestAmount(t *testing.T) {
	matched := []domain.ConsolidatedRecord{
		matchedRec(123456, "YR", "EUR", "100.00", "DZ"),
		matchedRec(123456, "YR", "EUR", "-100.00", "DA"),
	}

	in, err := BuildInput(matched, jurisdiction(), entity(), nil)
	require.NoError(t, err)

	rec := in["EUR"].Records[123456]
	assert.Equal(t, domain.NotApplicable, rec.GLAccount)
	assert.Equal(t, domain.NotApplicable, rec.CostCenter)
	assert.Equal(t, domain.NotApplicable, rec.PostingText)
}

func TestBuildInputTaxResolutionFallbacks(t *testing.T) {
	jur := jurisdiction()
	jur.CurrencyTaxes = map[string]string{"USD": "YN"}
	ent := entity()
	ent.HeadOfficeTaxes = map[int64]string{20001: "TT"}

	// Group with no tax code in USD resolves via the currency override.
	matched := []domain.ConsolidatedRecord{
		matchedRec(123456, "", "USD", "10.10", "DZ"),
		matchedRec(123456, "", "USD", "-10.00", "DA"),
	}
	in, err := BuildInput(matched, jur, ent, nil)
	require.NoError(t, err)
	assert.Equal(t, "YN", in["USD"].Records[123456].TaxCode)

	// In EUR the currency override misses and the head office wins.
	matched = []domain.ConsolidatedRecord{
		matchedRec(123456, "", "EUR", "10.10", "DZ"),
		matchedRec(123456, "", "EUR", "-10.00", "DA"),
	}
	in, err = BuildInput(matched, jur, ent, nil)
	require.NoError(t, err)
	assert.Equal(t, "TT", in["EUR"].Records[123456].TaxCode)

	// An existing group code beats every fallback.
	matched = []domain.ConsolidatedRecord{
		matchedRec(123456, "YR", "USD", "10.10", "DZ"),
		matchedRec(123456, "YR", "USD", "-10.00", "DA"),
	}
	in, err = BuildInput(matched, jur, ent, nil)
	require.NoError(t, err)
	assert.Equal(t, "YR", in["USD"].Records[123456].TaxCode)

	// The universal override beats even that.
	jur.UniversalTaxCode = "C3"
	in, err = BuildInput(matched, jur, ent, nil)
	require.NoError(t, err)
	assert.Equal(t, "C3", in["USD"].Records[123456].TaxCode)
}

func TestBuildInputNoTaxCodeSkips(t *testing.T) {
	jur := jurisdiction()
	jur.UnusedTaxCode = ""

	matched := []domain.ConsolidatedRecord{
		matchedRec(123456, "", "EUR", "10.10", "DZ"),
		matchedRec(123456, "", "EUR", "-10.00", "DA"),
	}

	in, err := BuildInput(matched, jur, entity(), nil)
	require.NoError(t, err)

	rec := in["EUR"].Records[123456]
	assert.True(t, rec.Skipped)
	assert.Contains(t, rec.Message, "No tax code used")
}

func TestBuildInputSkipListedTax(t *testing.T) {
	ent := entity()
	ent.SkippedTaxes = []string{"YR"}

	matched := []domain.ConsolidatedRecord{
		matchedRec(123456, "YR", "EUR", "10.10", "DZ"),
		matchedRec(123456, "YR", "EUR", "-10.00", "DA"),
	}

	in, err := BuildInput(matched, jurisdiction(), ent, nil)
	require.NoError(t, err)

	rec := in["EUR"].Records[123456]
	assert.True(t, rec.Skipped)
	assert.Contains(t, rec.Message, "tax exclusion")

	// Skipped groups still feed the aggregate document and case lists.
	assert.NotEmpty(t, in["EUR"].HeadOfficeDocs[20001])
	assert.Equal(t, []int64{123456}, in["EUR"].CaseIDs)
}

func TestBuildInputPenaltyAccount(t *testing.T) {
	ent := entity()
	ent.GLAccounts.Penalties = &rules.GLAccount{
		Number:     "551111",
		CostCenter: rules.CostCenters{Trade: "CCP", Retail: "CCP"},
	}

	recs := []domain.ConsolidatedRecord{
		matchedRec(123456, "YR", "EUR", "10.10", "DZ"),
		matchedRec(123456, "YR", "EUR", "-10.00", "DA"),
	}
	for i := range recs {
		recs[i].Case.Category = "010"
	}

	in, err := BuildInput(recs, jurisdiction(), ent, nil)
	require.NoError(t, err)
	assert.Equal(t, "551111", in["EUR"].Records[123456].GLAccount)
}

func TestBuildInputDebitCreditAccounts(t *testing.T) {
	ent := entity()
	ent.GLAccounts.WriteOffDebits = &rules.GLAccount{
		Number: "552222", CostCenter: rules.CostCenters{Trade: "CCD", Retail: "CCD"},
	}
	ent.GLAccounts.WriteOffCredits = &rules.GLAccount{
		Number: "553333", CostCenter: rules.CostCenters{Trade: "CCC", Retail: "CCC"},
	}

	debit := []domain.ConsolidatedRecord{
		matchedRec(123456, "YR", "EUR", "10.10", "DZ"),
		matchedRec(123456, "YR", "EUR", "-10.00", "DA"),
	}
	in, err := BuildInput(debit, jurisdiction(), ent, nil)
	require.NoError(t, err)
	assert.Equal(t, "552222", in["EUR"].Records[123456].GLAccount)

	credit := []domain.ConsolidatedRecord{
		matchedRec(123456, "YR", "EUR", "10.00", "DZ"),
		matchedRec(123456, "YR", "EUR", "-10.10", "DA"),
	}
	in, err = BuildInput(credit, jurisdiction(), ent, nil)
	require.NoError(t, err)
	assert.Equal(t, "553333", in["EUR"].Records[123456].GLAccount)
}

func TestBuildInputTradeRetailCostCenters(t *testing.T) {
	ent := entity()
	ent.GLAccounts.WriteOffCommon.CostCenter = rules.CostCenters{Trade: "CCT", Retail: "CCR"}

	matched := []domain.ConsolidatedRecord{
		matchedRec(123456, "YR", "EUR", "10.10", "DZ"),
		matchedRec(123456, "YR", "EUR", "-10.00", "DA"),
	}

	// Differing cost centers without customer data is fatal for the
	// entity.
	_, err := BuildInput(matched, jurisdiction(), ent, nil)
	require.Error(t, err)
	assert.NotErrorAs(t, err, new(*domain.InvariantError))

	customers := map[int64]domain.Customer{
		10001: {Account: 10001, Name: "ACME", Channel: "retail"},
	}
	in, err := BuildInput(matched, jurisdiction(), ent, customers)
	require.NoError(t, err)
	assert.Equal(t, "CCR", in["EUR"].Records[123456].CostCenter)
}

func TestBuildInputRootCause(t *testing.T) {
	// Sticky: a prior L06 survives document types implying L01.
	recs := []domain.ConsolidatedRecord{
		matchedRec(123456, "YR", "EUR", "10.10", "DZ"),
		matchedRec(123456, "YR", "EUR", "-10.00", "DA"),
	}
	for i := range recs {
		recs[i].Case.RootCause = RootCauseCreditNote
	}
	in, err := BuildInput(recs, jurisdiction(), entity(), nil)
	require.NoError(t, err)
	assert.Equal(t, RootCauseCreditNote, in["EUR"].Records[123456].RootCause)

	// Derived from document types: DG means credit note.
	recs = []domain.ConsolidatedRecord{
		matchedRec(123456, "YR", "EUR", "10.10", "DG"),
		matchedRec(123456, "YR", "EUR", "-10.00", "DA"),
	}
	in, err = BuildInput(recs, jurisdiction(), entity(), nil)
	require.NoError(t, err)
	assert.Equal(t, RootCauseCreditNote, in["EUR"].Records[123456].RootCause)

	// Underivable root cause is a rules invariant violation.
	recs = []domain.ConsolidatedRecord{
		matchedRec(123456, "YR", "EUR", "10.10", "XX"),
		matchedRec(123456, "YR", "EUR", "-10.00", "XX"),
	}
	_, err = BuildInput(recs, jurisdiction(), entity(), nil)
	require.Error(t, err)
	assert.ErrorAs(t, err, new(*domain.InvariantError))
}

func TestBuildInputVirtualGroup(t *testing.T) {
	vid := int64(10000000)
	recs := []domain.ConsolidatedRecord{
		matchedRec(vid, "YR", "EUR", "10.10", "DZ"),
		matchedRec(vid, "YR", "EUR", "-10.00", "DA"),
	}
	real1, real2 := int64(123456), int64(123457)
	recs[0].VirtualID = &real1
	recs[1].VirtualID = &real2

	in, err := BuildInput(recs, jurisdiction(), entity(), nil)
	require.NoError(t, err)

	rec := in["EUR"].Records[vid]
	require.NotNil(t, rec)
	assert.Equal(t, []int64{123456, 123457}, rec.CaseIDs)
	assert.True(t, strings.HasSuffix(rec.PostingText, " D 123456 D 123457"), rec.PostingText)
}

func TestBuildInputAssignmentOverride(t *testing.T) {
	jur := jurisdiction()
	jur.AssignmentOverride = "2"

	matched := []domain.ConsolidatedRecord{
		matchedRec(123456, "YR", "EUR", "10.10", "DZ"),
		matchedRec(123456, "YR", "EUR", "-10.00", "DA"),
	}
	in, err := BuildInput(matched, jur, entity(), nil)
	require.NoError(t, err)
	assert.Equal(t, "2", in["EUR"].Records[123456].Assignment)
}

func TestBuildInputCurrencyBuckets(t *testing.T) {
	matched := []domain.ConsolidatedRecord{
		matchedRec(123456, "YR", "EUR", "10.10", "DZ"),
		matchedRec(123456, "YR", "EUR", "-10.00", "DA"),
		matchedRec(123457, "YR", "USD", "5.05", "DZ"),
		matchedRec(123457, "YR", "USD", "-5.00", "DA"),
	}

	in, err := BuildInput(matched, jurisdiction(), entity(), nil)
	require.NoError(t, err)
	require.Len(t, in, 2)
	assert.Equal(t, []string{"EUR", "USD"}, in.Currencies())
	assert.Equal(t, 2, in["EUR"].MatchedCount)
	assert.Equal(t, 2, in["USD"].MatchedCount)
}

func TestNextStatusText(t *testing.T) {
	recs := []domain.ConsolidatedRecord{
		{
			ItemRecord: domain.ItemRecord{ID: id(123456)},
			Case:       &domain.CaseRecord{StatusAC: "checked"},
		},
	}

	assert.Equal(t, "checked 1400000001", NextStatusText(recs, 123456, 1400000001))
}

func TestNextStatusTextViaVirtualSlot(t *testing.T) {
	vid, real := int64(10000000), int64(123456)
	recs := []domain.ConsolidatedRecord{
		{
			ItemRecord: domain.ItemRecord{ID: &vid, VirtualID: &real},
			Case:       &domain.CaseRecord{StatusAC: "ok"},
		},
	}

	assert.Equal(t, "ok 77", NextStatusText(recs, real, 77))
}

func TestNextStatusTextLimit(t *testing.T) {
	long := strings.Repeat("x", 45)
	recs := []domain.ConsolidatedRecord{
		{
			ItemRecord: domain.ItemRecord{ID: id(123456)},
			Case:       &domain.CaseRecord{StatusAC: long},
		},
	}

	// Appending would exceed the 50-char field limit; the original text
	// is retained.
	assert.Equal(t, long, NextStatusText(recs, 123456, 1400000001))
}
