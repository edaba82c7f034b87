// Package analytics holds the pure statistical components of the insights
// engine. Every function works over an immutable snapshot and performs no I/O.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/castlemilk/pfinance-insights/internal/model"
)

// PeriodBucket is the aggregate of every transaction that falls in one
// calendar interval. Expense totals are absolute values.
type PeriodBucket struct {
	Key              string             `json:"key"`
	Start            time.Time          `json:"start"`
	TotalIncome      float64            `json:"totalIncome"`
	TotalExpenses    float64            `json:"totalExpenses"`
	BySubcategory    map[string]float64 `json:"bySubcategory"`
	TransactionCount int                `json:"transactionCount"`
}

// Net returns income minus expenses.
func (b PeriodBucket) Net() float64 {
	return b.TotalIncome - b.TotalExpenses
}

type bucketAcc struct {
	key    string
	start  time.Time
	income decimal.Decimal
	spend  decimal.Decimal
	bySub  map[string]decimal.Decimal
	count  int
}

func newBucketAcc(key string, start time.Time) *bucketAcc {
	return &bucketAcc{key: key, start: start, bySub: make(map[string]decimal.Decimal)}
}

func (a *bucketAcc) add(t model.Transaction) {
	amount := decimal.NewFromFloat(t.Amount).Abs()
	switch t.Category {
	case model.CategoryIncome:
		a.income = a.income.Add(amount)
	case model.CategoryExpense:
		a.spend = a.spend.Add(amount)
		a.bySub[t.SubcategoryID] = a.bySub[t.SubcategoryID].Add(amount)
	default:
		return
	}
	a.count++
}

func (a *bucketAcc) bucket() PeriodBucket {
	b := PeriodBucket{
		Key:              a.key,
		Start:            a.start,
		TotalIncome:      a.income.InexactFloat64(),
		TotalExpenses:    a.spend.InexactFloat64(),
		BySubcategory:    make(map[string]float64, len(a.bySub)),
		TransactionCount: a.count,
	}
	for sub, v := range a.bySub {
		b.BySubcategory[sub] = v.InexactFloat64()
	}
	return b
}

// PeriodStart truncates t to the start of its bucket. For day-of-week the
// start is the Monday-based weekday offset from the zero date, so buckets
// sort Monday first.
func PeriodStart(t time.Time, g model.Granularity) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch g {
	case model.GranularityWeek:
		day := time.Date(y, m, d, 0, 0, 0, 0, loc)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case model.GranularityDay:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case model.GranularityDayOfWeek:
		offset := (int(t.Weekday()) + 6) % 7
		// 0001-01-01 is a Monday.
		return time.Date(1, 1, 1+offset, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	}
}

// PeriodKey returns the bucket key for t.
func PeriodKey(t time.Time, g model.Granularity) string {
	switch g {
	case model.GranularityWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case model.GranularityDay:
		return t.Format("2006-01-02")
	case model.GranularityDayOfWeek:
		return t.Weekday().String()
	default:
		return t.Format("2006-01")
	}
}

// AggregateSparse buckets transactions and returns only the periods that
// contain at least one income or expense, ordered by period start. Transfers
// are ignored entirely.
func AggregateSparse(txs []model.Transaction, g model.Granularity) []PeriodBucket {
	accs := make(map[string]*bucketAcc)
	for _, t := range txs {
		if !t.Category.IsCashflow() {
			continue
		}
		key := PeriodKey(t.Date, g)
		acc, ok := accs[key]
		if !ok {
			acc = newBucketAcc(key, PeriodStart(t.Date, g))
			accs[key] = acc
		}
		acc.add(t)
	}

	buckets := make([]PeriodBucket, 0, len(accs))
	for _, acc := range accs {
		buckets = append(buckets, acc.bucket())
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Start.Equal(buckets[j].Start) {
			return buckets[i].Key < buckets[j].Key
		}
		return buckets[i].Start.Before(buckets[j].Start)
	})
	return buckets
}

// AggregateDense returns one day bucket for every calendar day in
// [from, to], zero-valued where no transaction falls. A range with to
// before from yields nil.
func AggregateDense(txs []model.Transaction, from, to time.Time) []PeriodBucket {
	start := PeriodStart(from, model.GranularityDay)
	end := PeriodStart(to, model.GranularityDay)
	if end.Before(start) {
		return nil
	}

	accs := make(map[string]*bucketAcc)
	for _, t := range txs {
		if !t.Category.IsCashflow() {
			continue
		}
		day := PeriodStart(t.Date.In(start.Location()), model.GranularityDay)
		if day.Before(start) || day.After(end) {
			continue
		}
		key := PeriodKey(day, model.GranularityDay)
		acc, ok := accs[key]
		if !ok {
			acc = newBucketAcc(key, day)
			accs[key] = acc
		}
		acc.add(t)
	}

	var buckets []PeriodBucket
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := PeriodKey(d, model.GranularityDay)
		if acc, ok := accs[key]; ok {
			buckets = append(buckets, acc.bucket())
			continue
		}
		buckets = append(buckets, PeriodBucket{
			Key:           key,
			Start:         d,
			BySubcategory: map[string]float64{},
		})
	}
	return buckets
}

// SeriesOf extracts one value per bucket.
func SeriesOf(buckets []PeriodBucket, fn func(PeriodBucket) float64) []float64 {
	out := make([]float64, len(buckets))
	for i, b := range buckets {
		out[i] = fn(b)
	}
	return out
}

// Expenses selects a bucket's total expenses.
func Expenses(b PeriodBucket) float64 { return b.TotalExpenses }

// Income selects a bucket's total income.
func Income(b PeriodBucket) float64 { return b.TotalIncome }
