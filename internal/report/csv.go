package report

import (
	"fmt"
	"io"

	"github.com/boddenberg/fintrack-go/internal/domain"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

// CSVRow is one line of a transaction export. Imports read the same layout;
// id and category are informational there and category_id must resolve on
// the server.
type CSVRow struct {
	ID          string      `csv:"id"`
	Date        domain.Date `csv:"date"`
	Type        string      `csv:"type"`
	Amount      string      `csv:"amount"`
	CategoryID  string      `csv:"category_id"`
	Category    string      `csv:"category"`
	Description string      `csv:"description"`
}

// WriteCSV exports transactions with a header row.
func WriteCSV(w io.Writer, txs []domain.Transaction) error {
	rows := make([]CSVRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, CSVRow{
			ID:          tx.ID,
			Date:        tx.Date,
			Type:        string(tx.Type),
			Amount:      tx.Amount.StringFixed(2),
			CategoryID:  tx.CategoryID,
			Category:    categoryLabel(tx),
			Description: tx.Description,
		})
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// ReadCSV parses an export back into transaction inputs. Every row is
// validated; the first invalid row aborts the read with its line number.
func ReadCSV(r io.Reader) ([]domain.TransactionInput, error) {
	var rows []CSVRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	inputs := make([]domain.TransactionInput, 0, len(rows))
	for i, row := range rows {
		line := i + 2 // header is line 1
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid amount %q", line, row.Amount)
		}
		in := domain.TransactionInput{
			Type:        domain.TransactionType(row.Type),
			Amount:      amount,
			CategoryID:  row.CategoryID,
			Description: row.Description,
			Date:        row.Date,
		}
		in.Normalize()
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}
