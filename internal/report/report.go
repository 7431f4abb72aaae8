// Package report renders tracker data for the terminal and for files.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/boddenberg/fintrack-go/internal/domain"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

// Format selects how a report is written.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat accepts table, json or yaml in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unsupported format %q: must be table, json or yaml", s)
	}
}

type categoryView struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Type  string `json:"type" yaml:"type"`
	Color string `json:"color" yaml:"color"`
}

type transactionView struct {
	ID          string `json:"id" yaml:"id"`
	Date        string `json:"date" yaml:"date"`
	Type        string `json:"type" yaml:"type"`
	Amount      string `json:"amount" yaml:"amount"`
	Category    string `json:"category" yaml:"category"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type monthView struct {
	Month    string `json:"month" yaml:"month"`
	Income   string `json:"income" yaml:"income"`
	Expenses string `json:"expenses" yaml:"expenses"`
	Net      string `json:"net" yaml:"net"`
}

type breakdownView struct {
	Category   string `json:"category" yaml:"category"`
	Amount     string `json:"amount" yaml:"amount"`
	Percentage string `json:"percentage" yaml:"percentage"`
	Color      string `json:"color" yaml:"color"`
}

type dashboardView struct {
	TotalIncome        string            `json:"total_income" yaml:"total_income"`
	TotalExpenses      string            `json:"total_expenses" yaml:"total_expenses"`
	Balance            string            `json:"balance" yaml:"balance"`
	RecentTransactions []transactionView `json:"recent_transactions" yaml:"recent_transactions"`
	MonthlyData        []monthView       `json:"monthly_data" yaml:"monthly_data"`
	CategoryBreakdown  []breakdownView   `json:"category_breakdown" yaml:"category_breakdown"`
}

func newCategoryViews(cats []domain.Category) []categoryView {
	out := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryView{ID: c.ID, Name: c.Name, Type: string(c.Type), Color: c.Color})
	}
	return out
}

func newTransactionViews(txs []domain.Transaction) []transactionView {
	out := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		out = append(out, transactionView{
			ID:          tx.ID,
			Date:        tx.Date.String(),
			Type:        string(tx.Type),
			Amount:      tx.Amount.StringFixed(2),
			Category:    categoryLabel(tx),
			Description: tx.Description,
		})
	}
	return out
}

func newDashboardView(s *domain.DashboardSummary) dashboardView {
	v := dashboardView{
		TotalIncome:        s.TotalIncome.StringFixed(2),
		TotalExpenses:      s.TotalExpenses.StringFixed(2),
		Balance:            s.Balance.StringFixed(2),
		RecentTransactions: newTransactionViews(s.RecentTransactions),
		MonthlyData:        make([]monthView, 0, len(s.MonthlyData)),
		CategoryBreakdown:  make([]breakdownView, 0, len(s.CategoryBreakdown)),
	}
	for _, m := range s.MonthlyData {
		v.MonthlyData = append(v.MonthlyData, monthView{
			Month:    m.Month,
			Income:   m.Income.StringFixed(2),
			Expenses: m.Expenses.StringFixed(2),
			Net:      m.Net().StringFixed(2),
		})
	}
	for _, e := range s.CategoryBreakdown {
		v.CategoryBreakdown = append(v.CategoryBreakdown, breakdownView{
			Category:   e.Category,
			Amount:     e.Amount.StringFixed(2),
			Percentage: e.PercentageLabel(),
			Color:      e.Color,
		})
	}
	return v
}

func categoryLabel(tx domain.Transaction) string {
	if tx.Category != nil && tx.Category.Name != "" {
		return tx.Category.Name
	}
	return domain.UnknownCategory
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	amountStyle = cellStyle.Align(lipgloss.Right)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7F849C"))
)

// newTable builds a bordered table. Columns listed in amountCols are right
// aligned.
func newTable(headers []string, amountCols ...int) *table.Table {
	right := make(map[int]bool, len(amountCols))
	for _, c := range amountCols {
		right[c] = true
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case right[col]:
				return amountStyle
			default:
				return cellStyle
			}
		}).
		Headers(headers...)
}

// swatch renders a category color next to its hex code.
func swatch(hex string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render("■") + " " + hex
}

func writeSection(w io.Writer, title string, t *table.Table) error {
	_, err := fmt.Fprintf(w, "%s\n%s\n", titleStyle.Render(title), t.String())
	return err
}

// Dashboard writes the totals, the monthly series, the category breakdown
// and the recent transactions.
func Dashboard(w io.Writer, format Format, s *domain.DashboardSummary) error {
	v := newDashboardView(s)
	if format != FormatTable {
		return encode(w, format, v)
	}

	totals := newTable([]string{"TOTAL", "AMOUNT"}, 1).
		Row("Income", v.TotalIncome).
		Row("Expenses", v.TotalExpenses).
		Row("Balance", v.Balance)

	months := newTable([]string{"MONTH", "INCOME", "EXPENSES", "NET"}, 1, 2, 3)
	for _, m := range v.MonthlyData {
		months.Row(m.Month, m.Income, m.Expenses, m.Net)
	}

	shares := newTable([]string{"CATEGORY", "AMOUNT", "SHARE", "COLOR"}, 1, 2)
	for _, e := range v.CategoryBreakdown {
		shares.Row(e.Category, e.Amount, e.Percentage+"%", swatch(e.Color))
	}

	recent := newTable([]string{"DATE", "TYPE", "AMOUNT", "CATEGORY", "DESCRIPTION"}, 2)
	for _, tx := range v.RecentTransactions {
		recent.Row(tx.Date, tx.Type, tx.Amount, tx.Category, tx.Description)
	}

	for _, sec := range []struct {
		title string
		t     *table.Table
	}{
		{"Summary", totals},
		{"Monthly", months},
		{"Expenses by category", shares},
		{"Recent transactions", recent},
	} {
		if err := writeSection(w, sec.title, sec.t); err != nil {
			return err
		}
	}
	return nil
}

// Categories writes a category listing.
func Categories(w io.Writer, format Format, cats []domain.Category) error {
	v := newCategoryViews(cats)
	if format != FormatTable {
		return encode(w, format, v)
	}

	t := newTable([]string{"ID", "NAME", "TYPE", "COLOR"})
	for _, c := range v {
		t.Row(c.ID, c.Name, c.Type, swatch(c.Color))
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

// Transactions writes a transaction listing.
func Transactions(w io.Writer, format Format, txs []domain.Transaction) error {
	v := newTransactionViews(txs)
	if format != FormatTable {
		return encode(w, format, v)
	}

	t := newTable([]string{"ID", "DATE", "TYPE", "AMOUNT", "CATEGORY", "DESCRIPTION"}, 3)
	for _, tx := range v {
		t.Row(tx.ID, tx.Date, tx.Type, tx.Amount, tx.Category, tx.Description)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func encode(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
