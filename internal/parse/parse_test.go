package parse

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawLedgerExport = "" +
	"------------------------------------------------\n" +
	"| Document | Assignment | Type | ... |\n" +
	"------------------------------------------------\n" +
	"| 9000000001 | A1 | DZ | 01.03.2023 | 31.03.2023 | 1.250,00- | EUR | YR | payment D 123456 | 10001 | 20001 |\n" +
	"| 9000000002 | A2 | DA | 02.03.2023 | 30.04.2023 | 1.250,00 | EUR | ** | invoice DP-123456 | 10001 | 20001 |\n" +
	"| Total      |    |    |            |            | 0,00     |     |    |                  |       |       |\n"

const rawCaseExport = "" +
	"| Debtor | Case | Notification | ... |\n" +
	"| 10001 | 123456 | 300123456 | OPEN | AD | 2 | 15.02.2023 | checked | J. Smith | Price difference | L01 |  |  | 002 |\n" +
	"| 10002 | 123457 |  | OPEN | AD | 4 | 16.02.2023 |  | J. Smith | Penalty | L06 |  |  | 010 |\n"

func mustPattern(t *testing.T) *CaseIDPattern {
	t.Helper()
	p, err := CompileCaseIDPattern(`\d{6}`)
	require.NoError(t, err)
	return p
}

func TestCompactLedgerExport(t *testing.T) {
	compacted := CompactLedgerExport(rawLedgerExport)

	// Header, frame and totals rows are dropped; only rows with a
	// leading numeric token survive.
	assert.Equal(t, 2, len(splitLines(compacted)))
	assert.NotContains(t, compacted, "Total")
	assert.NotContains(t, compacted, "Document |")
}

func TestParseLedgerItems(t *testing.T) {
	items, err := ParseLedgerItems(CompactLedgerExport(rawLedgerExport), mustPattern(t))
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, int64(9000000001), first.DocumentNumber)
	assert.Equal(t, "DZ", first.DocumentType)
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("-1250.00")), "got %s", first.Amount)
	assert.Equal(t, "EUR", first.Currency)
	assert.Equal(t, "YR", first.TaxCode)
	assert.Equal(t, int64(10001), first.Branch)
	assert.Equal(t, int64(20001), first.HeadOffice)
	require.NotNil(t, first.ID)
	assert.Equal(t, int64(123456), *first.ID)
	assert.False(t, first.IDMatched)

	// The "**" placeholder normalizes to the empty tax code, and the
	// DP marker variant is recognized too.
	second := items[1]
	assert.Equal(t, "", second.TaxCode)
	require.NotNil(t, second.ID)
	assert.Equal(t, int64(123456), *second.ID)
}

func TestParseLedgerItemsColumnMismatch(t *testing.T) {
	_, err := ParseLedgerItems("123 | only | four | columns", mustPattern(t))
	assert.ErrorContains(t, err, "expected 11 columns")
}

func TestParseCaseRecords(t *testing.T) {
	cases, err := ParseCaseRecords(CompactCaseExport(rawCaseExport))
	require.NoError(t, err)
	require.Len(t, cases, 2)

	// Ordered by case ID descending.
	assert.Equal(t, int64(123457), cases[0].CaseID)
	assert.Equal(t, int64(123456), cases[1].CaseID)

	assert.Equal(t, int64(0), cases[0].Notification)
	assert.Equal(t, 4, cases[0].Status)
	assert.Equal(t, "L06", cases[0].RootCause)
	assert.Equal(t, "010", cases[0].Category)

	assert.Equal(t, int64(300123456), cases[1].Notification)
	assert.Equal(t, "checked", cases[1].StatusAC)
	assert.Equal(t, 2, cases[1].Status)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "100,00", "100.00"},
		{"thousands", "1.234.567,89", "1234567.89"},
		{"trailing minus", "512,30-", "-512.30"},
		{"thousands trailing minus", "1.000,00-", "-1000.00"},
		{"integer", "42", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestParseAmountInvalid(t *testing.T) {
	_, err := ParseAmount("abc")
	assert.Error(t, err)
}

func TestCaseIDExtraction(t *testing.T) {
	pattern := mustPattern(t)

	tests := []struct {
		name string
		text string
		want []int64
	}{
		{"plain marker", "payment D 123456", []int64{123456}},
		{"dp marker with dash", "ref DP-123456", []int64{123456}},
		{"lowercase and slash", "d/123456 received", []int64{123456}},
		{"no marker", "payment 123456", nil},
		{"marker mid-word ignored", "REFUND123456", nil},
		{"two cases", "D123456 and D 654321", []int64{123456, 654321}},
		{"repeated case kept", "D123456 D123456", []int64{123456, 123456}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pattern.Extract(tt.text))
		})
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
