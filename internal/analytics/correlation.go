package analytics

import (
	"math"
	"sort"
)

const (
	minCorrelationPeriods = 3
	correlationFloor      = 0.3
	strongCorrelation     = 0.7
)

// Correlation relates the spending of two subcategories across periods.
type Correlation struct {
	SubcategoryA string  `json:"categoryA"`
	SubcategoryB string  `json:"categoryB"`
	Coefficient  float64 `json:"coefficient"`
	Strength     string  `json:"strength"`
	Direction    string  `json:"direction"`
}

// AnalyzeCorrelations computes Pearson r for every unordered pair of
// spending subcategories over the given period buckets. Subcategories
// absent from a period count as zero spend there. Pairs with |r| <= 0.3 are
// dropped. Output is ordered by descending |r|.
func AnalyzeCorrelations(buckets []PeriodBucket) []Correlation {
	if len(buckets) < minCorrelationPeriods {
		return nil
	}

	subSet := make(map[string]struct{})
	for _, b := range buckets {
		for sub, v := range b.BySubcategory {
			if v != 0 {
				subSet[sub] = struct{}{}
			}
		}
	}
	subs := make([]string, 0, len(subSet))
	for sub := range subSet {
		subs = append(subs, sub)
	}
	sort.Strings(subs)

	series := make(map[string][]float64, len(subs))
	for _, sub := range subs {
		series[sub] = SeriesOf(buckets, func(b PeriodBucket) float64 { return b.BySubcategory[sub] })
	}

	var out []Correlation
	for i := 0; i < len(subs); i++ {
		for j := i + 1; j < len(subs); j++ {
			r := pearson(series[subs[i]], series[subs[j]])
			if math.Abs(r) <= correlationFloor {
				continue
			}
			c := Correlation{
				SubcategoryA: subs[i],
				SubcategoryB: subs[j],
				Coefficient:  round2(r),
				Strength:     "moderate",
				Direction:    "positive",
			}
			if math.Abs(r) > strongCorrelation {
				c.Strength = "strong"
			}
			if r < 0 {
				c.Direction = "negative"
			}
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Coefficient) > math.Abs(out[j].Coefficient)
	})
	return out
}

// pearson returns 0 when either series has zero variance.
func pearson(x, y []float64) float64 {
	n := len(x)
	if n == 0 || n != len(y) {
		return 0
	}
	mx, my := mean(x), mean(y)
	var cov, vx, vy float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}
