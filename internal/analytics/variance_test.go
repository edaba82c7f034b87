package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castlemilk/pfinance-insights/internal/model"
)

func TestCalculateVariance(t *testing.T) {
	pct := func(v float64) *float64 { return &v }

	tests := []struct {
		name     string
		actual   float64
		budgeted float64
		variance float64
		pct      *float64
		status   VarianceStatus
		over     bool
	}{
		{"over budget", 150, 100, 50, pct(50), VarianceOver, true},
		{"well under budget", 75, 100, -25, pct(-25), VarianceGood, false},
		{"close to budget", 90, 100, -10, pct(-10), VarianceWarning, false},
		{"exactly on budget", 100, 100, 0, pct(0), VarianceWarning, false},
		{"no budget", 100, 0, 100, nil, VarianceNoBudget, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateVariance(tc.actual, tc.budgeted)
			assert.Equal(t, tc.variance, got.Variance)
			assert.Equal(t, tc.status, got.Status)
			assert.Equal(t, tc.over, got.IsOverBudget)
			if tc.pct == nil {
				assert.Nil(t, got.VariancePercentage)
			} else {
				require.NotNil(t, got.VariancePercentage)
				assert.InDelta(t, *tc.pct, *got.VariancePercentage, 1e-9)
			}
		})
	}
}

func TestScoreCompliance(t *testing.T) {
	variances := []Variance{
		CalculateVariance(80, 100),
		CalculateVariance(220, 200),
		CalculateVariance(50, 0),
	}

	got := ScoreCompliance(variances)
	assert.Equal(t, 50, got.Score)
	assert.Equal(t, 2, got.CategoriesWithBudget)
	assert.Equal(t, 1, got.CategoriesOnTrack)
	assert.Equal(t, 1, got.CategoriesOverBudget)
}

func TestScoreComplianceNoBudgets(t *testing.T) {
	got := ScoreCompliance([]Variance{CalculateVariance(10, 0)})
	assert.Equal(t, 100, got.Score)
	assert.Equal(t, 0, got.CategoriesWithBudget)

	assert.Equal(t, 100, ScoreCompliance(nil).Score)
}

func TestScoreComplianceRounds(t *testing.T) {
	got := ScoreCompliance([]Variance{
		CalculateVariance(10, 100),
		CalculateVariance(10, 100),
		CalculateVariance(500, 100),
	})
	assert.Equal(t, 67, got.Score)
}

func TestCategoryVariances(t *testing.T) {
	budget := &model.Budget{
		ID: "b1",
		LineItems: []model.LineItem{
			{SubcategoryID: "groceries", Amount: 150, Period: model.PeriodWeekly},
			{SubcategoryID: "rent", Amount: 6000, Period: model.PeriodQuarterly},
		},
	}
	buckets := []PeriodBucket{{
		Key:           "2025-03",
		BySubcategory: map[string]float64{"groceries": 700, "rent": 2000, "dining": 120},
	}}

	got := CategoryVariances(budget, buckets, model.PeriodMonthly)
	require.Len(t, got, 3)

	assert.Equal(t, "dining", got[0].SubcategoryID)
	assert.Equal(t, VarianceNoBudget, got[0].Status)

	assert.Equal(t, "groceries", got[1].SubcategoryID)
	assert.Equal(t, 650.0, got[1].Budgeted)
	assert.Equal(t, VarianceOver, got[1].Status)

	assert.Equal(t, "rent", got[2].SubcategoryID)
	assert.Equal(t, 2000.0, got[2].Budgeted)
	assert.Equal(t, VarianceWarning, got[2].Status)
}
