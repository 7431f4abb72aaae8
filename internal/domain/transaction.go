package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of a calendar date.
const DateLayout = "2006-01-02"

var dateInputLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Date is a calendar date, stored as midnight UTC.
type Date struct {
	time.Time
}

// NewDate builds a Date from its parts.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate accepts YYYY-MM-DD and common timestamp layouts.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateInputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalYAML() (any, error) {
	return d.String(), nil
}

// MarshalCSV and UnmarshalCSV let gocsv read and write dates.
func (d Date) MarshalCSV() (string, error) {
	return d.String(), nil
}

func (d *Date) UnmarshalCSV(s string) error {
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Transaction is a single dated income or expense.
type Transaction struct {
	ID          string          `json:"id"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	CategoryID  string          `json:"category_id"`
	Category    *Category       `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`
	Date        Date            `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	// AmountMissing marks a decoded record whose amount was absent or null.
	AmountMissing bool `json:"-"`
}

// UnmarshalJSON records whether the amount was present so Check can tell a
// missing amount from an explicit zero.
func (t *Transaction) UnmarshalJSON(b []byte) error {
	type plain Transaction
	aux := struct {
		*plain
		Amount json.RawMessage `json:"amount"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	raw := bytes.TrimSpace(aux.Amount)
	if len(raw) == 0 || string(raw) == "null" {
		t.Amount = decimal.Zero
		t.AmountMissing = true
		return nil
	}
	t.AmountMissing = false
	return t.Amount.UnmarshalJSON(raw)
}

// Check reports why t cannot take part in aggregation, or nil.
func (t Transaction) Check() error {
	switch {
	case !t.Type.Valid():
		return fmt.Errorf("unknown type %q", t.Type)
	case t.Date.IsZero():
		return fmt.Errorf("missing date")
	case t.AmountMissing:
		return fmt.Errorf("missing amount")
	case t.Amount.IsNegative():
		return fmt.Errorf("negative amount %s", t.Amount)
	}
	return nil
}

// TransactionInput is the body of POST /transactions and PUT /transactions/{id}.
type TransactionInput struct {
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	CategoryID  string          `json:"category_id"`
	Description string          `json:"description,omitempty"`
	Date        Date            `json:"date"`
}

// Normalize trims free-text fields.
func (in *TransactionInput) Normalize() {
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	in.Description = strings.TrimSpace(in.Description)
}

// Validate checks the required fields. It runs on both sides of the API.
func (in TransactionInput) Validate() error {
	if !in.Type.Valid() {
		return &ErrValidation{Field: "type", Message: "must be 'income' or 'expense'"}
	}
	if !in.Amount.IsPositive() {
		return &ErrValidation{Field: "amount", Message: "must be greater than zero"}
	}
	if strings.TrimSpace(in.CategoryID) == "" {
		return &ErrValidation{Field: "category_id", Message: "required"}
	}
	if len(in.Description) > MaxDescriptionLen {
		return &ErrValidation{Field: "description", Message: "must be at most 500 characters"}
	}
	if in.Date.IsZero() {
		return &ErrValidation{Field: "date", Message: "required"}
	}
	return nil
}

// TransactionFilter narrows a transaction listing. Zero Limit means no limit.
type TransactionFilter struct {
	Skip  int
	Limit int
	Since Date
}
