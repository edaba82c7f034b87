package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/castlemilk/pfinance-insights/internal/model"
)

const (
	minRecurringOccurrences = 3
	maxIntervalStdDevDays   = 7.0
	minMeanIntervalDays     = 7.0
	maxMeanIntervalDays     = 90.0
	amountRoundingStep      = 10.0
)

// RecurringPattern is a cluster of transactions sharing a signature and a
// roughly constant interval.
type RecurringPattern struct {
	Signature             string         `json:"signature"`
	Description           string         `json:"description"`
	NormalizedDescription string         `json:"normalizedDescription"`
	SubcategoryID         string         `json:"subcategoryId"`
	Category              model.Category `json:"categoryId"`
	FrequencyDays         int            `json:"frequency"`
	MeanIntervalDays      float64        `json:"meanIntervalDays"`
	AverageAmount         float64        `json:"averageAmount"`
	Occurrences           int            `json:"occurrences"`
	Confidence            float64        `json:"confidence"`
	FirstSeen             time.Time      `json:"firstSeen"`
	LastSeen              time.Time      `json:"lastSeen"`
	ExpectedNext          time.Time      `json:"expectedNext"`
	TransactionIDs        []string       `json:"transactionIds"`
}

// RecurringOptions tunes DetectRecurring. The zero value detects expense
// patterns with a 20 character description signature.
type RecurringOptions struct {
	Categories      []model.Category
	SignatureLength int
}

func (o RecurringOptions) includes(c model.Category) bool {
	if len(o.Categories) == 0 {
		return c == model.CategoryExpense
	}
	for _, want := range o.Categories {
		if want == c {
			return true
		}
	}
	return false
}

// NormalizeDescription lowercases a description, drops everything but
// letters and single spaces, and truncates to maxLen runes.
func NormalizeDescription(desc string, maxLen int) string {
	lowered := cases.Lower(language.Und).String(desc)
	var b strings.Builder
	lastSpace := true
	for _, r := range lowered {
		switch {
		case unicode.IsLetter(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) && !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	out := []rune(strings.TrimSpace(b.String()))
	if maxLen > 0 && len(out) > maxLen {
		out = []rune(strings.TrimSpace(string(out[:maxLen])))
	}
	return string(out)
}

// RoundedAmount buckets an absolute amount to the nearest 10 units.
func RoundedAmount(amount float64) float64 {
	return math.Round(math.Abs(amount)/amountRoundingStep) * amountRoundingStep
}

// PatternSignature joins the grouping key of a recurring pattern.
func PatternSignature(subcategoryID, normalizedDesc string, rounded float64) string {
	return fmt.Sprintf("%s|%s|%.0f", subcategoryID, normalizedDesc, rounded)
}

// DetectRecurring groups transactions by signature, keeps groups whose
// intervals are regular, and scores them. Results are ordered by descending
// confidence, then description.
func DetectRecurring(txs []model.Transaction, opts RecurringOptions) []RecurringPattern {
	sigLen := opts.SignatureLength
	if sigLen <= 0 {
		sigLen = 20
	}

	groups := make(map[string][]model.Transaction)
	for _, t := range txs {
		if !opts.includes(t.Category) {
			continue
		}
		norm := NormalizeDescription(t.Description, sigLen)
		sig := PatternSignature(t.SubcategoryID, norm, RoundedAmount(t.Amount))
		groups[sig] = append(groups[sig], t)
	}

	var results []RecurringPattern
	for sig, group := range groups {
		if len(group) < minRecurringOccurrences {
			continue
		}
		if p, ok := validatePattern(sig, group, sigLen); ok {
			results = append(results, p)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].Description < results[j].Description
	})
	return results
}

func validatePattern(sig string, group []model.Transaction, sigLen int) (RecurringPattern, bool) {
	sorted := append([]model.Transaction(nil), group...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	intervals := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		intervals = append(intervals, sorted[i].Date.Sub(sorted[i-1].Date).Hours()/24)
	}
	if len(intervals) < 2 {
		return RecurringPattern{}, false
	}

	meanInterval := mean(intervals)
	intervalStd := populationStdDev(intervals)
	if intervalStd >= maxIntervalStdDevDays || meanInterval < minMeanIntervalDays || meanInterval > maxMeanIntervalDays {
		return RecurringPattern{}, false
	}

	amounts := make([]float64, len(sorted))
	ids := make([]string, len(sorted))
	var maxAbs float64
	for i, t := range sorted {
		amounts[i] = t.AbsAmount()
		ids[i] = t.ID
		maxAbs = math.Max(maxAbs, amounts[i])
	}

	intervalScore := clamp01(1 - intervalStd/30)
	amountScore := 1.0
	if maxAbs > 0 {
		amountScore = clamp01(1 - populationStdDev(amounts)/maxAbs)
	}
	frequencyScore := clamp01(float64(len(sorted)) / 6)
	confidence := (intervalScore + amountScore + frequencyScore) / 3

	first, last := sorted[0], sorted[len(sorted)-1]
	next := last.Date.Add(time.Duration(meanInterval * 24 * float64(time.Hour)))

	return RecurringPattern{
		Signature:             sig,
		Description:           first.Description,
		NormalizedDescription: NormalizeDescription(first.Description, sigLen),
		SubcategoryID:         first.SubcategoryID,
		Category:              first.Category,
		FrequencyDays:         int(math.Round(meanInterval)),
		MeanIntervalDays:      meanInterval,
		AverageAmount:         round2(mean(amounts)),
		Occurrences:           len(sorted),
		Confidence:            round2(confidence),
		FirstSeen:             first.Date,
		LastSeen:              last.Date,
		ExpectedNext:          next,
		TransactionIDs:        ids,
	}, true
}

// Untracked returns the patterns that no recurring template covers. A
// template covers a pattern when subcategory and normalized description match.
func Untracked(patterns []RecurringPattern, templates []model.RecurringTemplate) []RecurringPattern {
	tracked := make(map[string]bool, len(templates))
	for _, t := range templates {
		tracked[t.SubcategoryID+"|"+NormalizeDescription(t.Description, 0)] = true
	}
	out := make([]RecurringPattern, 0)
	for _, p := range patterns {
		if !tracked[p.SubcategoryID+"|"+NormalizeDescription(p.Description, 0)] {
			out = append(out, p)
		}
	}
	return out
}
