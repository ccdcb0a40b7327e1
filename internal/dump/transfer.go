package dump

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/receivia/arclear/internal/domain"
)

// itemTransfer is the msgpack shape of an item record. The amount is a
// decimal string; everything else maps directly.
type itemTransfer struct {
	DocumentNumber int64     `msgpack:"document_number"`
	Assignment     string    `msgpack:"assignment"`
	DocumentType   string    `msgpack:"document_type"`
	DocumentDate   time.Time `msgpack:"document_date"`
	DueDate        time.Time `msgpack:"due_date"`
	Amount         string    `msgpack:"amount"`
	Currency       string    `msgpack:"currency"`
	TaxCode        string    `msgpack:"tax_code"`
	Text           string    `msgpack:"text"`
	Branch         int64     `msgpack:"branch"`
	HeadOffice     int64     `msgpack:"head_office"`
	ID             *int64    `msgpack:"id"`
	VirtualID      *int64    `msgpack:"virtual_id"`
	IDMatched      bool      `msgpack:"id_matched"`
	AmountMatched  bool      `msgpack:"amount_matched"`
	TaxMatched     bool      `msgpack:"tax_matched"`
	Warning        string    `msgpack:"warning"`
}

type consolidatedTransfer struct {
	Item         itemTransfer       `msgpack:"item"`
	Case         *domain.CaseRecord `msgpack:"case"`
	CustomerName string             `msgpack:"customer_name"`
	Channel      string             `msgpack:"channel"`
}

func toItemTransfer(it domain.ItemRecord) itemTransfer {
	return itemTransfer{
		DocumentNumber: it.DocumentNumber,
		Assignment:     it.Assignment,
		DocumentType:   it.DocumentType,
		DocumentDate:   it.DocumentDate,
		DueDate:        it.DueDate,
		Amount:         it.Amount.String(),
		Currency:       it.Currency,
		TaxCode:        it.TaxCode,
		Text:           it.Text,
		Branch:         it.Branch,
		HeadOffice:     it.HeadOffice,
		ID:             it.ID,
		VirtualID:      it.VirtualID,
		IDMatched:      it.IDMatched,
		AmountMatched:  it.AmountMatched,
		TaxMatched:     it.TaxMatched,
		Warning:        it.Warning,
	}
}

func (tr itemTransfer) record() (domain.ItemRecord, error) {
	amount, err := decimal.NewFromString(tr.Amount)
	if err != nil {
		return domain.ItemRecord{}, fmt.Errorf("bad amount %q: %w", tr.Amount, err)
	}
	return domain.ItemRecord{
		DocumentNumber: tr.DocumentNumber,
		Assignment:     tr.Assignment,
		DocumentType:   tr.DocumentType,
		DocumentDate:   tr.DocumentDate,
		DueDate:        tr.DueDate,
		Amount:         amount,
		Currency:       tr.Currency,
		TaxCode:        tr.TaxCode,
		Text:           tr.Text,
		Branch:         tr.Branch,
		HeadOffice:     tr.HeadOffice,
		ID:             tr.ID,
		VirtualID:      tr.VirtualID,
		IDMatched:      tr.IDMatched,
		AmountMatched:  tr.AmountMatched,
		TaxMatched:     tr.TaxMatched,
		Warning:        tr.Warning,
	}, nil
}
