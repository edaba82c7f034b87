package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castlemilk/pfinance-insights/internal/model"
)

func TestNormalizeDescription(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"NETFLIX.COM 1234", 20, "netflixcom"},
		{"  Spotify   Premium Family Plan ", 20, "spotify premium fami"},
		{"Café #42 Ünïcode", 20, "café ünïcode"},
		{"1234 5678", 20, ""},
		{"No Limit At All Here", 0, "no limit at all here"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeDescription(tc.in, tc.max))
		})
	}
}

func TestDetectRecurringMonthly(t *testing.T) {
	start := day(2025, 1, 1)
	txs := []model.Transaction{
		expense("n1", start, 15.99, "entertainment", "NETFLIX.COM 001"),
		expense("n2", start.AddDate(0, 0, 30), 15.99, "entertainment", "NETFLIX.COM 002"),
		expense("n3", start.AddDate(0, 0, 60), 15.99, "entertainment", "Netflix.com 003"),
		expense("noise", start.AddDate(0, 0, 3), 72.10, "groceries", "Woolworths"),
	}

	patterns := DetectRecurring(txs, RecurringOptions{})
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, 30, p.FrequencyDays)
	assert.Greater(t, p.Confidence, 0.5)
	assert.Equal(t, 3, p.Occurrences)
	assert.Equal(t, "entertainment", p.SubcategoryID)
	assert.Equal(t, 15.99, p.AverageAmount)
	assert.Equal(t, []string{"n1", "n2", "n3"}, p.TransactionIDs)
	assert.WithinDuration(t, start.AddDate(0, 0, 90), p.ExpectedNext, time.Second)
	assert.Equal(t, "entertainment|netflixcom|20", p.Signature)
}

func TestDetectRecurringRejects(t *testing.T) {
	start := day(2025, 1, 1)

	tests := []struct {
		name string
		txs  []model.Transaction
	}{
		{
			name: "two transactions 200 days apart",
			txs: []model.Transaction{
				expense("a", start, 50, "gym", "Gym"),
				expense("b", start.AddDate(0, 0, 200), 50, "gym", "Gym"),
			},
		},
		{
			name: "irregular intervals",
			txs: []model.Transaction{
				expense("a", start, 50, "gym", "Gym"),
				expense("b", start.AddDate(0, 0, 10), 50, "gym", "Gym"),
				expense("c", start.AddDate(0, 0, 50), 50, "gym", "Gym"),
			},
		},
		{
			name: "daily is too frequent",
			txs: []model.Transaction{
				expense("a", start, 5, "coffee", "Cafe"),
				expense("b", start.AddDate(0, 0, 1), 5, "coffee", "Cafe"),
				expense("c", start.AddDate(0, 0, 2), 5, "coffee", "Cafe"),
			},
		},
		{
			name: "yearly is too rare",
			txs: []model.Transaction{
				expense("a", start, 99, "insurance", "Insurer"),
				expense("b", start.AddDate(0, 0, 120), 99, "insurance", "Insurer"),
				expense("c", start.AddDate(0, 0, 240), 99, "insurance", "Insurer"),
			},
		},
		{
			name: "amounts in different buckets",
			txs: []model.Transaction{
				expense("a", start, 20, "utilities", "Power"),
				expense("b", start.AddDate(0, 0, 30), 90, "utilities", "Power"),
				expense("c", start.AddDate(0, 0, 60), 160, "utilities", "Power"),
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Empty(t, DetectRecurring(tc.txs, RecurringOptions{}))
		})
	}
}

func TestDetectRecurringCategoryFilter(t *testing.T) {
	start := day(2025, 1, 15)
	var txs []model.Transaction
	for i := 0; i < 4; i++ {
		txs = append(txs, income("pay", start.AddDate(0, 0, 14*i), 2500))
	}

	assert.Empty(t, DetectRecurring(txs, RecurringOptions{}), "income is excluded by default")

	patterns := DetectRecurring(txs, RecurringOptions{Categories: []model.Category{model.CategoryIncome}})
	require.Len(t, patterns, 1)
	assert.Equal(t, 14, patterns[0].FrequencyDays)
}

func TestDetectRecurringOrdering(t *testing.T) {
	start := day(2025, 1, 1)
	var txs []model.Transaction
	// Six weekly gym payments outrank three monthly streaming payments.
	for i := 0; i < 6; i++ {
		txs = append(txs, expense("gym", start.AddDate(0, 0, 7*i), 12, "health", "Gym"))
	}
	for i := 0; i < 3; i++ {
		txs = append(txs, expense("stream", start.AddDate(0, 0, 30*i), 10, "media", "Stream"))
	}

	patterns := DetectRecurring(txs, RecurringOptions{})
	require.Len(t, patterns, 2)
	assert.Equal(t, "Gym", patterns[0].Description)
	assert.WithinDuration(t, start.AddDate(0, 0, 42), patterns[0].ExpectedNext, time.Second)
}
