package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castlemilk/pfinance-insights/internal/config"
	"github.com/castlemilk/pfinance-insights/internal/model"
)

func patternSnapshot() *model.Snapshot {
	var txs []model.Transaction
	for m := time.January; m <= time.April; m++ {
		txs = append(txs,
			income("pay-"+m.String(), day(2025, m, 1), 4000),
			expense("rent-"+m.String(), day(2025, m, 2), 1500, "rent", "Landlord"),
			expense("food-"+m.String(), day(2025, m, 15), 400, "groceries", "Market"),
			expense("tv-"+m.String(), day(2025, m, 25), 15.99, "media", "Streamflix"),
		)
	}
	return &model.Snapshot{
		UserID:       "user-1",
		Transactions: txs,
		Budgets: []model.Budget{{
			ID:     "b1",
			Status: model.BudgetStatusActive,
			LineItems: []model.LineItem{
				{SubcategoryID: "rent", Amount: 1500, Period: model.PeriodMonthly},
				{SubcategoryID: "groceries", Amount: 300, Period: model.PeriodMonthly},
			},
		}},
	}
}

func TestAnalyzePatterns(t *testing.T) {
	now := day(2025, 4, 30)
	pa := AnalyzePatterns(patternSnapshot(), config.Engine{}, now)

	assert.Equal(t, StatusOK, pa.Status)
	assert.Equal(t, now, pa.GeneratedAt)

	// Rent, groceries and the streaming charge all recur monthly.
	require.Len(t, pa.RecurringTransactions, 3)

	assert.Equal(t, "sustainable", pa.CashflowSustainability.Status)
	assert.Equal(t, 4, pa.CashflowSustainability.PositiveMonths)
	assert.InDelta(t, 2084.01, pa.CashflowSustainability.AverageNet, 0.01)

	require.True(t, pa.BudgetEfficiency.HasBudget)
	assert.Equal(t, "2025-04", pa.BudgetEfficiency.Period)
	assert.Equal(t, 50, pa.BudgetEfficiency.Compliance.Score)

	assert.True(t, pa.Anomalies.Sufficient)
	assert.Empty(t, pa.Anomalies.Anomalies)

	assert.Equal(t, "early", pa.SpendingCycles.PeakPhase)
	assert.Equal(t, "April", pa.SeasonalPatterns.MonthOfYear[3].Label)
	assert.Len(t, pa.SeasonalPatterns.DayOfWeek, 7)
	assert.Equal(t, "Monday", pa.SeasonalPatterns.DayOfWeek[0].Label)

	var overBudget bool
	for _, r := range pa.RiskFactors {
		if r.Type == "budget" {
			overBudget = true
		}
	}
	assert.True(t, overBudget, "groceries over budget should be a risk factor")
	assert.NotEmpty(t, pa.Insights)
	assert.NotEmpty(t, pa.Opportunities)
}

func TestAnalyzePatternsEmptySnapshot(t *testing.T) {
	pa := AnalyzePatterns(&model.Snapshot{}, config.Engine{}, time.Now())
	assert.Equal(t, StatusEmpty, pa.Status)
	assert.Empty(t, pa.RecurringTransactions)
	assert.False(t, pa.Anomalies.Sufficient)
	assert.NotNil(t, pa.Insights)
}

func TestAnalyzePatternsTemplatesSuppressReview(t *testing.T) {
	snap := patternSnapshot()
	snap.Templates = []model.RecurringTemplate{
		{ID: "t1", Description: "Landlord", SubcategoryID: "rent"},
		{ID: "t2", Description: "Market", SubcategoryID: "groceries"},
		{ID: "t3", Description: "Streamflix", SubcategoryID: "media"},
	}

	pa := AnalyzePatterns(snap, config.Engine{}, time.Now())
	for _, o := range pa.Opportunities {
		assert.NotEqual(t, "subscription-review", o.Type)
	}
}
