package backend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDropExports(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1000_items.txt"), []byte("raw items"), 0o644))

	fd := NewFileDrop(dir, zerolog.Nop())
	ref := EntityRef{Name: "1000", Kind: "worklist", Code: "DE01"}

	text, err := fd.ExportLedgerItems(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "raw items", text)

	// Missing drop files map to the no-data sentinels.
	_, err = fd.ExportCaseRecords(context.Background(), ref, []int64{123456})
	assert.ErrorIs(t, err, ErrNoCasesFound)

	_, err = fd.ExportLedgerItems(context.Background(), EntityRef{Name: "2000"})
	assert.ErrorIs(t, err, ErrNoOpenItems)
}

func TestFileDropJournalsWrites(t *testing.T) {
	dir := t.TempDir()
	fd := NewFileDrop(dir, zerolog.Nop())
	ctx := context.Background()

	first, err := fd.PostClearing(ctx, ClearingRequest{
		Currency:       "EUR",
		HeadOfficeDocs: map[int64][]int64{20001: {9000000001}},
		Lines: []LineItem{{
			GLAccount: "550000", CostCenter: "CC100", TaxCode: "YR",
			Amount: decimal.RequireFromString("0.10"),
		}},
	})
	require.NoError(t, err)

	second, err := fd.PostClearing(ctx, ClearingRequest{Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, first+1, second)

	require.NoError(t, fd.CloseCase(ctx, 123456, "checked 1400000001", "L01"))
	require.NoError(t, fd.CloseNotification(ctx, 400123456))

	postings, err := os.ReadFile(filepath.Join(dir, "postings.jsonl"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(postings)), "\n"), 2)

	cases, err := os.ReadFile(filepath.Join(dir, "cases.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(cases), `"root_cause":"L01"`)
}
