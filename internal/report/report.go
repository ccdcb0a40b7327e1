// Package report renders the per-entity run report workbook and the run
// summary consumed by the log output.
package report

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/receivia/arclear/internal/clearing"
	"github.com/receivia/arclear/internal/domain"
)

// Summary is the per-entity run outcome shown at the end of a run.
type Summary struct {
	Entity       string
	ItemCount    int
	MatchedCount int
	ClearedCount int
	Skipped      bool
	Reason       string
}

var allItemsHeader = []any{
	"Document", "Type", "Document Date", "Due Date", "Amount", "Currency",
	"Tax", "Text", "Branch", "Head Office", "Case ID", "Warning",
}

var clearedHeader = []any{
	"Currency", "Group", "Case IDs", "Rest Amount", "GL Account",
	"Cost Center", "Tax", "Root Cause", "Posting", "Clearing Status",
	"Case Status", "Notification Status",
}

// Write renders the workbook of one entity under dir and returns its
// path. A nil instruction still produces a workbook: the cleared sheet
// then carries the no-items placeholder row.
func Write(dir, entity string, items []domain.ConsolidatedRecord, in clearing.Instruction) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const allSheet = "All Items"
	const clearedSheet = "Cleared"

	idx, err := f.NewSheet(allSheet)
	if err != nil {
		return "", fmt.Errorf("failed to create report sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if _, err := f.NewSheet(clearedSheet); err != nil {
		return "", fmt.Errorf("failed to create report sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("failed to drop default sheet: %w", err)
	}

	if err := writeAllItems(f, allSheet, items); err != nil {
		return "", err
	}
	if err := writeCleared(f, clearedSheet, in); err != nil {
		return "", err
	}

	path := filepath.Join(dir, entity+"_report.xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save report workbook: %w", err)
	}
	return path, nil
}

func writeAllItems(f *excelize.File, sheet string, items []domain.ConsolidatedRecord) error {
	if err := setRow(f, sheet, 1, allItemsHeader); err != nil {
		return err
	}

	for i, it := range items {
		caseID := ""
		if it.ID != nil {
			caseID = strconv.FormatInt(*it.ID, 10)
		}
		row := []any{
			it.DocumentNumber,
			it.DocumentType,
			it.DocumentDate.Format("02.01.2006"),
			it.DueDate.Format("02.01.2006"),
			it.Amount.String(),
			it.Currency,
			it.TaxCode,
			it.Text,
			it.Branch,
			it.HeadOffice,
			caseID,
			it.Warning,
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeCleared(f *excelize.File, sheet string, in clearing.Instruction) error {
	if err := setRow(f, sheet, 1, clearedHeader); err != nil {
		return err
	}

	rowNum := 2
	for _, curr := range in.Currencies() {
		bucket := in[curr]
		for _, id := range bucket.GroupIDs() {
			rec := bucket.Records[id]

			posting := ""
			if bucket.PostingNumber != nil {
				posting = strconv.FormatInt(*bucket.PostingNumber, 10)
			}
			row := []any{
				curr,
				id,
				joinIDs(rec.CaseIDs),
				rec.RestAmount.String(),
				rec.GLAccount,
				rec.CostCenter,
				rec.TaxCode,
				rec.RootCause,
				posting,
				rec.ClearingStatus,
				rec.CaseClosingStatus,
				rec.NotificationClosingStatus,
			}
			if err := setRow(f, sheet, rowNum, row); err != nil {
				return err
			}
			rowNum++
		}
	}

	if rowNum == 2 {
		return setRow(f, sheet, 2, []any{"No items to clear"})
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to address report row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write report row %d: %w", row, err)
	}
	return nil
}

func joinIDs(ids []int64) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += strconv.FormatInt(id, 10)
	}
	return out
}
