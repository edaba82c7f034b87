package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castlemilk/pfinance-insights/internal/model"
)

func TestAggregateSparse(t *testing.T) {
	txs := []model.Transaction{
		expense("1", day(2025, 3, 2), 10.10, "food", "Cafe"),
		expense("2", day(2025, 3, 20), 20.20, "food", "Cafe"),
		expense("3", day(2025, 1, 8), 5, "fuel", "Servo"),
		income("4", day(2025, 3, 1), 1000),
		{ID: "5", Date: day(2025, 2, 1), Amount: -300, Category: model.CategoryTransfer},
	}

	buckets := AggregateSparse(txs, model.GranularityMonth)
	require.Len(t, buckets, 2, "transfer-only month must not appear")

	assert.Equal(t, "2025-01", buckets[0].Key)
	assert.Equal(t, "2025-03", buckets[1].Key)
	assert.Equal(t, 30.30, buckets[1].TotalExpenses)
	assert.Equal(t, 1000.0, buckets[1].TotalIncome)
	assert.Equal(t, 3, buckets[1].TransactionCount)
	assert.Equal(t, 30.30, buckets[1].BySubcategory["food"])
}

func TestAggregateSparseKeys(t *testing.T) {
	tx := []model.Transaction{expense("1", day(2025, 1, 1), 1, "x", "y")}

	tests := []struct {
		g    model.Granularity
		want string
	}{
		{model.GranularityMonth, "2025-01"},
		{model.GranularityWeek, "2025-W01"},
		{model.GranularityDay, "2025-01-01"},
		{model.GranularityDayOfWeek, "Wednesday"},
	}
	for _, tc := range tests {
		t.Run(string(tc.g), func(t *testing.T) {
			buckets := AggregateSparse(tx, tc.g)
			require.Len(t, buckets, 1)
			assert.Equal(t, tc.want, buckets[0].Key)
		})
	}
}

func TestAggregateSparseDayOfWeekOrder(t *testing.T) {
	txs := []model.Transaction{
		expense("sun", day(2025, 1, 5), 1, "x", "y"),
		expense("mon", day(2025, 1, 6), 1, "x", "y"),
		expense("wed", day(2025, 1, 8), 1, "x", "y"),
	}
	buckets := AggregateSparse(txs, model.GranularityDayOfWeek)
	keys := []string{buckets[0].Key, buckets[1].Key, buckets[2].Key}
	assert.Equal(t, []string{"Monday", "Wednesday", "Sunday"}, keys)
}

func TestAggregateDenseFillsEveryDay(t *testing.T) {
	txs := []model.Transaction{
		expense("1", day(2025, 4, 2), 40, "food", "Cafe"),
		expense("2", day(2025, 5, 1), 99, "food", "Cafe"),
	}
	from := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC)

	buckets := AggregateDense(txs, from, to)
	require.Len(t, buckets, 30)
	assert.Equal(t, "2025-04-01", buckets[0].Key)
	assert.Equal(t, 0.0, buckets[0].TotalExpenses)
	assert.NotNil(t, buckets[0].BySubcategory)
	assert.Equal(t, 40.0, buckets[1].TotalExpenses)
	assert.Equal(t, "2025-04-30", buckets[29].Key)

	assert.Nil(t, AggregateDense(txs, to, from))
}

func TestSeriesOf(t *testing.T) {
	buckets := []PeriodBucket{{TotalExpenses: 1, TotalIncome: 5}, {TotalExpenses: 2, TotalIncome: 6}}
	assert.Equal(t, []float64{1, 2}, SeriesOf(buckets, Expenses))
	assert.Equal(t, []float64{5, 6}, SeriesOf(buckets, Income))
}
