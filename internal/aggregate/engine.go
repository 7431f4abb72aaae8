// Package aggregate derives dashboard metrics from snapshots of transactions
// and categories. Every operation is a pure function of its arguments: inputs
// are never mutated and results share no memory with them.
package aggregate

import (
	"sort"
	"time"

	"github.com/boddenberg/fintrack-go/internal/color"
	"github.com/boddenberg/fintrack-go/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultRecentLimit is the number of transactions shown on the dashboard.
const DefaultRecentLimit = 5

var hundred = decimal.NewFromInt(100)

// Engine computes totals, monthly series and category breakdowns.
// Malformed records are logged and left out; they never abort a computation.
type Engine struct {
	logger *zap.Logger
}

// New creates an engine. A nil logger discards warnings.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Options tune Dashboard.
type Options struct {
	RecentLimit int
	// Since bounds the monthly series; zero keeps every month.
	Since domain.Date
}

// ComputeSummary returns total income, total expenses and their difference.
func (e *Engine) ComputeSummary(txs []domain.Transaction) domain.Summary {
	clean, _ := e.clean(txs)
	return summarize(clean)
}

// RecentTransactions returns the n most recent transactions, newest first.
// Transactions on the same date keep their input order.
func (e *Engine) RecentTransactions(txs []domain.Transaction, n int) []domain.Transaction {
	clean, _ := e.clean(txs)
	return recent(clean, n)
}

// MonthlySeries buckets transactions by calendar month, oldest month first.
func (e *Engine) MonthlySeries(txs []domain.Transaction) []domain.MonthlyBucket {
	clean, _ := e.clean(txs)
	return monthly(clean)
}

// CategoryBreakdown returns each expense category's share of total expenses,
// largest first. Labels and colors come from categories, so a renamed
// category shows its current name. Transactions whose category is missing
// are grouped under domain.UnknownCategory.
func (e *Engine) CategoryBreakdown(txs []domain.Transaction, categories []domain.Category) []domain.BreakdownEntry {
	clean, _ := e.clean(txs)
	return breakdown(clean, categories)
}

// Dashboard runs every aggregation over one snapshot.
func (e *Engine) Dashboard(txs []domain.Transaction, categories []domain.Category, opts Options) domain.DashboardSummary {
	clean, skipped := e.clean(txs)
	if opts.RecentLimit == 0 {
		opts.RecentLimit = DefaultRecentLimit
	}

	s := summarize(clean)
	windowed := clean
	if !opts.Since.IsZero() {
		windowed = make([]domain.Transaction, 0, len(clean))
		for _, tx := range clean {
			if !tx.Date.Before(opts.Since.Time) {
				windowed = append(windowed, tx)
			}
		}
	}

	return domain.DashboardSummary{
		TotalIncome:        s.TotalIncome,
		TotalExpenses:      s.TotalExpenses,
		Balance:            s.Balance,
		RecentTransactions: recent(clean, opts.RecentLimit),
		MonthlyData:        monthly(windowed),
		CategoryBreakdown:  breakdown(clean, categories),
		Skipped:            skipped,
	}
}

// clean drops records that cannot be aggregated.
func (e *Engine) clean(txs []domain.Transaction) ([]domain.Transaction, int) {
	out := make([]domain.Transaction, 0, len(txs))
	skipped := 0
	for _, tx := range txs {
		if err := tx.Check(); err != nil {
			skipped++
			e.logger.Warn("skipping malformed transaction",
				zap.String("transaction_id", tx.ID),
				zap.String("reason", err.Error()),
			)
			continue
		}
		out = append(out, tx)
	}
	return out, skipped
}

func summarize(txs []domain.Transaction) domain.Summary {
	income, expenses := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		switch tx.Type {
		case domain.TypeIncome:
			income = income.Add(tx.Amount)
		case domain.TypeExpense:
			expenses = expenses.Add(tx.Amount)
		}
	}
	return domain.Summary{
		TotalIncome:   income,
		TotalExpenses: expenses,
		Balance:       income.Sub(expenses),
	}
}

func recent(txs []domain.Transaction, n int) []domain.Transaction {
	if n <= 0 || len(txs) == 0 {
		return []domain.Transaction{}
	}
	sorted := make([]domain.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date.Time)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

type monthKey struct {
	year  int
	month time.Month
}

func monthly(txs []domain.Transaction) []domain.MonthlyBucket {
	buckets := make(map[monthKey]*domain.MonthlyBucket)
	for _, tx := range txs {
		k := monthKey{tx.Date.Year(), tx.Date.Month()}
		b, ok := buckets[k]
		if !ok {
			first := time.Date(k.year, k.month, 1, 0, 0, 0, 0, time.UTC)
			b = &domain.MonthlyBucket{
				Period:   first.Format("2006-01"),
				Month:    first.Format("Jan 2006"),
				Income:   decimal.Zero,
				Expenses: decimal.Zero,
			}
			buckets[k] = b
		}
		if tx.Type == domain.TypeIncome {
			b.Income = b.Income.Add(tx.Amount)
		} else {
			b.Expenses = b.Expenses.Add(tx.Amount)
		}
	}

	keys := make([]monthKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].month < keys[j].month
	})

	out := make([]domain.MonthlyBucket, 0, len(keys))
	for _, k := range keys {
		out = append(out, *buckets[k])
	}
	return out
}

func breakdown(txs []domain.Transaction, categories []domain.Category) []domain.BreakdownEntry {
	byID := make(map[string]domain.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	// "" collects every transaction whose category did not resolve.
	sums := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Type != domain.TypeExpense {
			continue
		}
		key := tx.CategoryID
		if _, ok := byID[key]; !ok {
			key = ""
		}
		sums[key] = sums[key].Add(tx.Amount)
		total = total.Add(tx.Amount)
	}

	entries := make([]domain.BreakdownEntry, 0, len(sums))
	if total.IsZero() {
		return entries
	}

	for id, amount := range sums {
		entry := domain.BreakdownEntry{
			CategoryID: id,
			Category:   domain.UnknownCategory,
			Amount:     amount,
			Percentage: amount.Mul(hundred).Div(total),
			Color:      color.DefaultColor,
		}
		if c, ok := byID[id]; ok {
			entry.Category = c.Name
			if c.Color != "" {
				entry.Color = c.Color
			}
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if c := entries[i].Amount.Cmp(entries[j].Amount); c != 0 {
			return c > 0
		}
		if entries[i].Category != entries[j].Category {
			return entries[i].Category < entries[j].Category
		}
		// A real category may share the Unknown label; the unresolved
		// group (empty id) always goes last.
		if (entries[i].CategoryID == "") != (entries[j].CategoryID == "") {
			return entries[j].CategoryID == ""
		}
		return entries[i].CategoryID < entries[j].CategoryID
	})
	return entries
}
