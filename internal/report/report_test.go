package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/fintrack-go/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleDashboard() *domain.DashboardSummary {
	food := &domain.Category{ID: "c1", Name: "Food", Type: domain.TypeExpense, Color: "#EF4444"}
	return &domain.DashboardSummary{
		TotalIncome:   decimal.RequireFromString("3200"),
		TotalExpenses: decimal.RequireFromString("70.5"),
		Balance:       decimal.RequireFromString("3129.5"),
		RecentTransactions: []domain.Transaction{
			{ID: "t1", Type: domain.TypeExpense, Amount: decimal.RequireFromString("70.5"), CategoryID: "c1", Category: food, Description: "Groceries", Date: domain.NewDate(2025, time.January, 10)},
			{ID: "t2", Type: domain.TypeIncome, Amount: decimal.RequireFromString("3200"), CategoryID: "gone", Date: domain.NewDate(2025, time.January, 1)},
		},
		MonthlyData: []domain.MonthlyBucket{
			{Period: "2025-01", Month: "Jan 2025", Income: decimal.RequireFromString("3200"), Expenses: decimal.RequireFromString("70.5")},
		},
		CategoryBreakdown: []domain.BreakdownEntry{
			{CategoryID: "c1", Category: "Food", Amount: decimal.RequireFromString("70.5"), Percentage: decimal.NewFromInt(100), Color: "#EF4444"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatTable, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestDashboard_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dashboard(&buf, FormatTable, sampleDashboard()))

	out := buf.String()
	assert.Contains(t, out, "3200.00")
	assert.Contains(t, out, "3129.50")
	assert.Contains(t, out, "Jan 2025")
	assert.Contains(t, out, "100.0%")
	assert.Contains(t, out, "Groceries")
	assert.Contains(t, out, domain.UnknownCategory)
	assert.Contains(t, out, "#EF4444")
	for _, title := range []string{"Summary", "Monthly", "Expenses by category", "Recent transactions"} {
		assert.Contains(t, out, title)
	}
}

func TestDashboard_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dashboard(&buf, FormatJSON, sampleDashboard()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "70.50", got["total_expenses"])
	assert.Len(t, got["recent_transactions"], 2)
}

func TestDashboard_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dashboard(&buf, FormatYAML, sampleDashboard()))

	var got dashboardView
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "3129.50", got.Balance)
	require.Len(t, got.MonthlyData, 1)
	assert.Equal(t, "3129.50", got.MonthlyData[0].Net)
	require.Len(t, got.CategoryBreakdown, 1)
	assert.Equal(t, "100.0", got.CategoryBreakdown[0].Percentage)
}

func TestCategories_Table(t *testing.T) {
	var buf bytes.Buffer
	cats := []domain.Category{{ID: "c1", Name: "Food", Type: domain.TypeExpense, Color: "#EF4444"}}
	require.NoError(t, Categories(&buf, FormatTable, cats))

	out := buf.String()
	for _, want := range []string{"ID", "NAME", "TYPE", "COLOR", "c1", "Food", "expense", "#EF4444"} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "NAME"), strings.Index(out, "Food"), "header precedes rows")
}

func TestTransactions_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Transactions(&buf, FormatTable, sampleDashboard().RecentTransactions))

	out := buf.String()
	assert.Contains(t, out, "AMOUNT")
	assert.Contains(t, out, "70.50")
	assert.Contains(t, out, "3200.00")
	assert.Contains(t, out, "2025-01-10")
}

func TestTransactions_EmptyJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Transactions(&buf, FormatJSON, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestCSV_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleDashboard().RecentTransactions))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,date,type,amount,category_id,category,description", lines[0])
	assert.Equal(t, "t1,2025-01-10,expense,70.50,c1,Food,Groceries", lines[1])

	inputs, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, domain.TypeExpense, inputs[0].Type)
	assert.True(t, inputs[0].Amount.Equal(decimal.RequireFromString("70.5")))
	assert.Equal(t, domain.NewDate(2025, time.January, 10), inputs[0].Date)
	assert.Equal(t, "gone", inputs[1].CategoryID)
}

func TestReadCSV_RejectsInvalidRow(t *testing.T) {
	in := "id,date,type,amount,category_id,category,description\n" +
		",2025-01-10,expense,12.00,c1,Food,ok\n" +
		",2025-01-11,expense,-3,c1,Food,bad\n"

	_, err := ReadCSV(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}
