package domain_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/fintrack-go/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want domain.Date
		ok   bool
	}{
		{"2025-01-15", domain.NewDate(2025, time.January, 15), true},
		{"2025-01-15T10:30:00Z", domain.NewDate(2025, time.January, 15), true},
		{"2025-01-15T10:30:00", domain.NewDate(2025, time.January, 15), true},
		{" 2025-02-01 ", domain.NewDate(2025, time.February, 1), true},
		{"15/01/2025", domain.Date{}, false},
		{"", domain.Date{}, false},
	}
	for _, tc := range cases {
		got, err := domain.ParseDate(tc.in)
		if !tc.ok {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.True(t, tc.want.Equal(got.Time), "%q: got %s", tc.in, got)
	}
}

func TestDate_JSON(t *testing.T) {
	d := domain.NewDate(2025, time.March, 9)
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2025-03-09"`, string(b))

	var back domain.Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, d.Equal(back.Time))

	var empty domain.Date
	require.NoError(t, json.Unmarshal([]byte("null"), &empty))
	assert.True(t, empty.IsZero())
}

func TestTransactionInput_Validate(t *testing.T) {
	good := domain.TransactionInput{
		Type:       domain.TypeExpense,
		Amount:     decimal.RequireFromString("45.50"),
		CategoryID: "cat-1",
		Date:       domain.NewDate(2025, time.January, 15),
	}
	require.NoError(t, good.Validate())

	mutate := func(f func(*domain.TransactionInput)) domain.TransactionInput {
		in := good
		f(&in)
		return in
	}
	bads := map[string]domain.TransactionInput{
		"type":        mutate(func(in *domain.TransactionInput) { in.Type = "transfer" }),
		"amount":      mutate(func(in *domain.TransactionInput) { in.Amount = decimal.Zero }),
		"category_id": mutate(func(in *domain.TransactionInput) { in.CategoryID = "  " }),
		"date":        mutate(func(in *domain.TransactionInput) { in.Date = domain.Date{} }),
		"description": mutate(func(in *domain.TransactionInput) { in.Description = strings.Repeat("x", 501) }),
	}
	for field, in := range bads {
		err := in.Validate()
		var verr *domain.ErrValidation
		require.True(t, errors.As(err, &verr), "%s: expected validation error, got %v", field, err)
		assert.Equal(t, field, verr.Field)
	}
}

func TestCategoryInput_Validate(t *testing.T) {
	good := domain.CategoryInput{Name: "Groceries", Type: domain.TypeExpense, Color: "#FFB8B8"}
	require.NoError(t, good.Validate(false))

	noColor := good
	noColor.Color = ""
	assert.NoError(t, noColor.Validate(true))
	assert.Error(t, noColor.Validate(false))

	assert.Error(t, domain.CategoryInput{Name: " ", Type: domain.TypeIncome, Color: "#FFFFFF"}.Validate(false))
	assert.Error(t, domain.CategoryInput{Name: "X", Type: "other", Color: "#FFFFFF"}.Validate(false))
	assert.Error(t, domain.CategoryInput{Name: "X", Type: domain.TypeIncome, Color: "red"}.Validate(false))
	assert.Error(t, domain.CategoryInput{Name: strings.Repeat("n", 101), Type: domain.TypeIncome, Color: "#FFFFFF"}.Validate(false))
}

func TestTransaction_Check(t *testing.T) {
	tx := domain.Transaction{ID: "1", Type: domain.TypeIncome, Amount: decimal.NewFromInt(10), Date: domain.NewDate(2025, 1, 1)}
	assert.NoError(t, tx.Check())

	tx.Date = domain.Date{}
	assert.Error(t, tx.Check())

	tx.Date = domain.NewDate(2025, 1, 1)
	tx.Amount = decimal.NewFromInt(-1)
	assert.Error(t, tx.Check())

	tx.Amount = decimal.Zero
	tx.Type = ""
	assert.Error(t, tx.Check())
}

func TestBreakdownEntry_PercentageLabel(t *testing.T) {
	e := domain.BreakdownEntry{Percentage: decimal.RequireFromString("64.53900709219858")}
	assert.Equal(t, "64.5", e.PercentageLabel())
}

func TestMonthlyBucket_Net(t *testing.T) {
	b := domain.MonthlyBucket{Income: decimal.NewFromInt(3700), Expenses: decimal.RequireFromString("322.24")}
	assert.Equal(t, "3377.76", b.Net().String())
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "Category with this name already exists", domain.DuplicateCategoryName().Error())
	assert.Equal(t, "Transaction not found: t1", (&domain.ErrNotFound{Resource: "transaction", ID: "t1"}).Error())
	assert.Equal(t, "Category not found", (&domain.ErrNotFound{Resource: "category"}).Error())

	inUse := domain.CategoryInUse(3)
	assert.Equal(t, "Cannot delete category. It has 3 transactions.", inUse.Error())
	assert.Equal(t, 3, inUse.References)

	var conflict *domain.ErrConflict
	require.True(t, errors.As(error(inUse), &conflict))
}

func TestTransaction_JSONAmountPresence(t *testing.T) {
	var present, zero, missing domain.Transaction
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","type":"expense","amount":"12.50","date":"2025-01-01"}`), &present))
	require.NoError(t, json.Unmarshal([]byte(`{"id":"b","type":"expense","amount":0,"date":"2025-01-01"}`), &zero))
	require.NoError(t, json.Unmarshal([]byte(`{"id":"c","type":"expense","date":"2025-01-01"}`), &missing))

	assert.False(t, present.AmountMissing)
	assert.Equal(t, "12.5", present.Amount.String())
	assert.Equal(t, domain.NewDate(2025, time.January, 1), present.Date)
	assert.NoError(t, present.Check())

	assert.False(t, zero.AmountMissing)
	assert.NoError(t, zero.Check())

	assert.True(t, missing.AmountMissing)
	assert.EqualError(t, missing.Check(), "missing amount")

	out, err := json.Marshal(present)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "AmountMissing")
}
