package domain

import (
	"strings"
	"time"

	"github.com/boddenberg/fintrack-go/internal/color"
)

// TransactionType classifies both categories and transactions.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

const (
	MaxCategoryNameLen = 100
	MaxDescriptionLen  = 500
)

// Category is a named, colored grouping for transactions.
type Category struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Type      TransactionType `json:"type"`
	Color     string          `json:"color"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CategoryInput is the body of POST /categories and PUT /categories/{id}.
type CategoryInput struct {
	Name  string          `json:"name"`
	Type  TransactionType `json:"type"`
	Color string          `json:"color"`
}

// Normalize trims the name and uppercases the color.
func (in *CategoryInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = color.Normalize(in.Color)
}

// Validate checks the input. An empty color is accepted when allowEmptyColor
// is set; the server assigns one in that case.
func (in CategoryInput) Validate(allowEmptyColor bool) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return &ErrValidation{Field: "name", Message: "required"}
	}
	if len(name) > MaxCategoryNameLen {
		return &ErrValidation{Field: "name", Message: "must be at most 100 characters"}
	}
	if !in.Type.Valid() {
		return &ErrValidation{Field: "type", Message: "must be 'income' or 'expense'"}
	}
	if in.Color == "" && allowEmptyColor {
		return nil
	}
	if !color.Valid(strings.TrimSpace(in.Color)) {
		return &ErrValidation{Field: "color", Message: "must be a #RRGGBB hex color"}
	}
	return nil
}
