package analytics

import (
	"sort"

	"github.com/castlemilk/pfinance-insights/internal/model"
)

// VarianceStatus classifies actual spend against a budget.
type VarianceStatus string

const (
	VarianceOver     VarianceStatus = "over"
	VarianceWarning  VarianceStatus = "warning"
	VarianceGood     VarianceStatus = "good"
	VarianceNoBudget VarianceStatus = "no_budget"
)

const warningVariancePercent = -20.0

// Variance compares actual spend to a budgeted amount.
type Variance struct {
	SubcategoryID      string         `json:"subcategoryId,omitempty"`
	Budgeted           float64        `json:"budgeted"`
	Actual             float64        `json:"actual"`
	Variance           float64        `json:"variance"`
	VariancePercentage *float64       `json:"variancePercentage"`
	Status             VarianceStatus `json:"status"`
	IsOverBudget       bool           `json:"isOverBudget"`
	HasBudget          bool           `json:"hasBudget"`
}

// CalculateVariance returns actual minus budgeted. A zero budget yields
// VarianceNoBudget with a nil percentage.
func CalculateVariance(actual, budgeted float64) Variance {
	v := Variance{
		Budgeted:     budgeted,
		Actual:       actual,
		Variance:     actual - budgeted,
		IsOverBudget: actual-budgeted > 0,
		HasBudget:    budgeted != 0,
	}
	if budgeted == 0 {
		v.Status = VarianceNoBudget
		return v
	}
	pct := v.Variance / budgeted * 100
	v.VariancePercentage = &pct
	switch {
	case pct > 0:
		v.Status = VarianceOver
	case pct > warningVariancePercent:
		v.Status = VarianceWarning
	default:
		v.Status = VarianceGood
	}
	return v
}

// CategoryVariances compares each budget line item, normalized to period,
// against the subcategory spend summed across buckets. Subcategories with
// spend but no line item are reported as no_budget. Output is sorted by
// subcategory.
func CategoryVariances(budget *model.Budget, buckets []PeriodBucket, period model.Period) []Variance {
	actual := make(map[string]float64)
	for _, b := range buckets {
		for sub, v := range b.BySubcategory {
			actual[sub] += v
		}
	}

	budgeted := make(map[string]float64)
	if budget != nil {
		for _, item := range budget.LineItems {
			from := item.Period
			if from == "" {
				from = model.PeriodMonthly
			}
			amount, err := NormalizeAmount(item.Amount, from, period)
			if err != nil {
				amount = item.Amount
			}
			budgeted[item.SubcategoryID] += amount
		}
	}

	keys := make(map[string]struct{}, len(actual)+len(budgeted))
	for sub := range actual {
		keys[sub] = struct{}{}
	}
	for sub := range budgeted {
		keys[sub] = struct{}{}
	}

	out := make([]Variance, 0, len(keys))
	for sub := range keys {
		v := CalculateVariance(round2(actual[sub]), round2(budgeted[sub]))
		v.SubcategoryID = sub
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubcategoryID < out[j].SubcategoryID })
	return out
}

// Compliance summarises how many budgeted categories stayed within budget.
// The score counts categories, it is not weighted by amount.
type Compliance struct {
	Score                int `json:"score"`
	CategoriesWithBudget int `json:"categoriesWithBudget"`
	CategoriesOnTrack    int `json:"categoriesOnTrack"`
	CategoriesOverBudget int `json:"categoriesOverBudget"`
}

// ScoreCompliance scores the variances that carry a budget. With no
// budgeted category the score is 100.
func ScoreCompliance(variances []Variance) Compliance {
	var c Compliance
	for _, v := range variances {
		if !v.HasBudget {
			continue
		}
		c.CategoriesWithBudget++
		if v.Variance > 0 {
			c.CategoriesOverBudget++
		} else {
			c.CategoriesOnTrack++
		}
	}
	if c.CategoriesWithBudget == 0 {
		c.Score = 100
		return c
	}
	c.Score = int(float64(c.CategoriesOnTrack)/float64(c.CategoriesWithBudget)*100 + 0.5)
	return c
}
