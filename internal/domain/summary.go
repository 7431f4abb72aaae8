package domain

import (
	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers; decoding accepts numbers and strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// UnknownCategory labels breakdown entries whose category no longer resolves.
const UnknownCategory = "Unknown"

// Summary holds the headline totals of a set of transactions.
type Summary struct {
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	Balance       decimal.Decimal `json:"balance"`
}

// MonthlyBucket aggregates one calendar month.
type MonthlyBucket struct {
	Period   string          `json:"period"` // YYYY-MM
	Month    string          `json:"month"`  // "Jan 2025"
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
}

// Net is income minus expenses for the month.
func (b MonthlyBucket) Net() decimal.Decimal {
	return b.Income.Sub(b.Expenses)
}

// BreakdownEntry is one category's share of total expenses.
// Percentage keeps full precision; use PercentageLabel for display.
type BreakdownEntry struct {
	CategoryID string          `json:"category_id,omitempty"`
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
	Color      string          `json:"color"`
}

// PercentageLabel renders the percentage with one decimal place.
func (e BreakdownEntry) PercentageLabel() string {
	return e.Percentage.StringFixed(1)
}

// DashboardSummary is returned by GET /dashboard.
type DashboardSummary struct {
	TotalIncome        decimal.Decimal  `json:"total_income"`
	TotalExpenses      decimal.Decimal  `json:"total_expenses"`
	Balance            decimal.Decimal  `json:"balance"`
	RecentTransactions []Transaction    `json:"recent_transactions"`
	MonthlyData        []MonthlyBucket  `json:"monthly_data"`
	CategoryBreakdown  []BreakdownEntry `json:"category_breakdown"`
	Skipped            int              `json:"skipped_records,omitempty"`
}
