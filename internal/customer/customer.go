// Package customer loads the customer master workbook used to enrich
// consolidated data and to categorize accounts as trade or retail.
package customer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/receivia/arclear/internal/domain"
)

// Channel values carried by the master data.
const (
	ChannelTrade  = "trade"
	ChannelRetail = "retail"
)

// Load reads the customer master xlsx and returns a lookup by account
// number. The first sheet must carry Account, Customer_Name and Channel
// columns; header matching is case-insensitive.
func Load(path string) (map[int64]domain.Customer, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open customer master: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("customer master has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read customer master: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("customer master is empty")
	}

	accCol, nameCol, chanCol := -1, -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "account":
			accCol = i
		case "customer_name":
			nameCol = i
		case "channel":
			chanCol = i
		}
	}
	if accCol < 0 || nameCol < 0 || chanCol < 0 {
		return nil, fmt.Errorf("customer master is missing required columns (got %v)", rows[0])
	}

	out := make(map[int64]domain.Customer, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) <= accCol || strings.TrimSpace(row[accCol]) == "" {
			continue
		}

		account, err := strconv.ParseInt(strings.TrimSpace(row[accCol]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad account number in customer master row %d: %w", i+2, err)
		}

		cust := domain.Customer{Account: account}
		if len(row) > nameCol {
			cust.Name = strings.TrimSpace(row[nameCol])
		}
		if len(row) > chanCol {
			cust.Channel = strings.ToLower(strings.TrimSpace(row[chanCol]))
		}
		if cust.Channel != ChannelTrade && cust.Channel != ChannelRetail {
			return nil, fmt.Errorf("account %d has unknown channel %q in customer master", account, cust.Channel)
		}

		out[account] = cust
	}
	return out, nil
}
