// Package parse turns the raw delimited text exported from the ledger
// and case-management transactions into typed record sets. The export
// files are treated as opaque beyond their column layout: data rows are
// selected by a structural pattern and everything else (frames, headers,
// totals) is dropped silently.
package parse

import (
	"regexp"
	"strings"
)

var (
	// A ledger data row starts with a framed numeric document number.
	ledgerRowRx = regexp.MustCompile(`(?m)^\|\s*\d+.*\|$`)

	// A case data row carries the numeric case ID in its second column.
	caseRowRx = regexp.MustCompile(`(?m)^\|[^|]*\|\s*\d+\s*\|.*$`)

	framePipeRx = regexp.MustCompile(`(?m)^\||\|$`)
)

// CompactLedgerExport extracts the data rows from a raw ledger export.
// Non-data lines are intentionally filtered, not reported as errors.
func CompactLedgerExport(text string) string {
	return compact(ledgerRowRx, text)
}

// CompactCaseExport extracts the data rows from a raw case export.
func CompactCaseExport(text string) string {
	return compact(caseRowRx, text)
}

func compact(rowRx *regexp.Regexp, text string) string {
	rows := rowRx.FindAllString(text, -1)
	joined := strings.Join(rows, "\n")
	joined = framePipeRx.ReplaceAllString(joined, "")

	// Users occasionally type double quotes into free-text fields;
	// they would be taken for quoting by downstream field splitting.
	return strings.ReplaceAll(joined, `"`, "")
}
