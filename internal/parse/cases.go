package parse

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/receivia/arclear/internal/domain"
)

const caseColumns = 14

// ParseCaseRecords converts a compacted case-management export into
// CaseRecords ordered by case ID, descending.
func ParseCaseRecords(compacted string) ([]domain.CaseRecord, error) {
	if strings.TrimSpace(compacted) == "" {
		return nil, nil
	}

	lines := strings.Split(compacted, "\n")
	cases := make([]domain.CaseRecord, 0, len(lines))

	for n, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := splitFields(line)
		if len(fields) != caseColumns {
			return nil, fmt.Errorf("case row %d: expected %d columns, got %d", n+1, caseColumns, len(fields))
		}

		rec, err := parseCaseRow(fields)
		if err != nil {
			return nil, fmt.Errorf("case row %d: %w", n+1, err)
		}
		cases = append(cases, rec)
	}

	sort.SliceStable(cases, func(i, j int) bool {
		return cases[i].CaseID > cases[j].CaseID
	})

	return cases, nil
}

func parseCaseRow(fields []string) (domain.CaseRecord, error) {
	var rec domain.CaseRecord
	var err error

	if rec.Debtor, err = strconv.ParseInt(fields[0], 10, 64); err != nil {
		return rec, fmt.Errorf("debtor: %w", err)
	}
	if rec.CaseID, err = strconv.ParseInt(fields[1], 10, 64); err != nil {
		return rec, fmt.Errorf("case ID: %w", err)
	}
	if fields[2] != "" {
		if rec.Notification, err = strconv.ParseInt(fields[2], 10, 64); err != nil {
			return rec, fmt.Errorf("notification: %w", err)
		}
	}
	rec.StatusSales = fields[3]
	rec.AssignmentDisp = fields[4]
	if rec.Status, err = strconv.Atoi(fields[5]); err != nil {
		return rec, fmt.Errorf("status: %w", err)
	}
	if rec.CreatedOn, err = ParseDate(fields[6]); err != nil {
		return rec, err
	}
	rec.StatusAC = fields[7]
	rec.Processor = fields[8]
	rec.CategoryDesc = fields[9]
	rec.RootCause = fields[10]
	rec.AutoclaimsNote = fields[11]
	rec.FaxNumber = fields[12]
	rec.Category = fields[13]

	return rec, nil
}
