package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/receivia/arclear/internal/domain"
)

const ledgerColumns = 11

// ParseLedgerItems converts a compacted ledger export into ItemRecords.
// The case ID referenced by each item is extracted from its free text:
// exactly one reference assigns the ID directly, none leaves the item
// unidentified, and several are deferred to virtual-ID synthesis during
// consolidation.
func ParseLedgerItems(compacted string, pattern *CaseIDPattern) ([]domain.ItemRecord, error) {
	if strings.TrimSpace(compacted) == "" {
		return nil, nil
	}

	lines := strings.Split(compacted, "\n")
	items := make([]domain.ItemRecord, 0, len(lines))

	for n, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := splitFields(line)
		if len(fields) != ledgerColumns {
			return nil, fmt.Errorf("ledger row %d: expected %d columns, got %d", n+1, ledgerColumns, len(fields))
		}

		item, err := parseLedgerRow(fields, pattern)
		if err != nil {
			return nil, fmt.Errorf("ledger row %d: %w", n+1, err)
		}
		items = append(items, item)
	}

	return items, nil
}

func parseLedgerRow(fields []string, pattern *CaseIDPattern) (domain.ItemRecord, error) {
	var item domain.ItemRecord
	var err error

	if item.DocumentNumber, err = strconv.ParseInt(fields[0], 10, 64); err != nil {
		return item, fmt.Errorf("document number: %w", err)
	}
	item.Assignment = fields[1]
	item.DocumentType = fields[2]
	if item.DocumentDate, err = ParseDate(fields[3]); err != nil {
		return item, err
	}
	if item.DueDate, err = ParseDate(fields[4]); err != nil {
		return item, err
	}
	if item.Amount, err = ParseAmount(fields[5]); err != nil {
		return item, err
	}
	item.Currency = fields[6]
	item.TaxCode = normalizeTaxCode(fields[7])
	item.Text = fields[8]
	if item.Branch, err = strconv.ParseInt(fields[9], 10, 64); err != nil {
		return item, fmt.Errorf("branch account: %w", err)
	}

	// Head offices are normally numeric accounts. The export may carry
	// non-numeric placeholders; those cannot join the customer master
	// and stay at zero.
	if ho, err := strconv.ParseInt(fields[10], 10, 64); err == nil {
		item.HeadOffice = ho
	}

	if ids := pattern.Extract(item.Text); len(ids) == 1 {
		item.ID = &ids[0]
	}

	return item, nil
}

// normalizeTaxCode maps the "**" placeholder used by some jurisdictions
// (Switzerland, Italy) to the empty tax code.
func normalizeTaxCode(tax string) string {
	if tax == "**" {
		return ""
	}
	return tax
}

func splitFields(line string) []string {
	raw := strings.Split(line, "|")
	fields := make([]string, len(raw))
	for i, f := range raw {
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}
