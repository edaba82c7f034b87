package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/castlemilk/pfinance-insights/internal/config"
	"github.com/castlemilk/pfinance-insights/internal/model"
)

// ResultStatus tells the caller whether there was any data to analyse.
type ResultStatus string

const (
	StatusOK    ResultStatus = "ok"
	StatusEmpty ResultStatus = "empty"
)

// SeasonalPoint is the average spend of one weekday or calendar month.
type SeasonalPoint struct {
	Label   string  `json:"label"`
	Average float64 `json:"average"`
	Samples int     `json:"samples"`
}

// SeasonalPatterns averages daily spend by weekday and monthly spend by
// calendar month.
type SeasonalPatterns struct {
	DayOfWeek   []SeasonalPoint `json:"dayOfWeek"`
	MonthOfYear []SeasonalPoint `json:"monthOfYear"`
	PeakDay     string          `json:"peakDay,omitempty"`
	PeakMonth   string          `json:"peakMonth,omitempty"`
}

// CyclePhase is spend within one third of the month.
type CyclePhase struct {
	Phase            string  `json:"phase"`
	Total            float64 `json:"total"`
	Share            float64 `json:"share"`
	TransactionCount int     `json:"transactionCount"`
}

// SpendingCycles splits spend into early (1-10), mid (11-20) and late
// (21-31) month phases.
type SpendingCycles struct {
	Phases    []CyclePhase `json:"phases"`
	PeakPhase string       `json:"peakPhase,omitempty"`
}

// BudgetEfficiency scores the most recent month against the active budget.
type BudgetEfficiency struct {
	Period        string     `json:"period,omitempty"`
	HasBudget     bool       `json:"hasBudget"`
	TotalBudgeted float64    `json:"totalBudgeted"`
	TotalSpent    float64    `json:"totalSpent"`
	Utilization   float64    `json:"utilization"`
	Variances     []Variance `json:"variances"`
	Compliance    Compliance `json:"compliance"`
}

// CashflowSustainability compares average monthly income and spend.
type CashflowSustainability struct {
	Status          string  `json:"status"`
	AverageIncome   float64 `json:"averageIncome"`
	AverageExpenses float64 `json:"averageExpenses"`
	AverageNet      float64 `json:"averageNet"`
	SavingsRate     float64 `json:"savingsRate"`
	PositiveMonths  int     `json:"positiveMonths"`
	Months          int     `json:"months"`
	ExpenseTrend    Trend   `json:"expenseTrend"`
}

// Finding is a human readable observation drawn from the analysis.
type Finding struct {
	Type     string  `json:"type"`
	Title    string  `json:"title"`
	Message  string  `json:"message"`
	Severity string  `json:"severity"`
	Impact   float64 `json:"impact,omitempty"`
}

// PatternAnalysis bundles every statistical view of a snapshot.
type PatternAnalysis struct {
	Status                 ResultStatus           `json:"status"`
	SeasonalPatterns       SeasonalPatterns       `json:"seasonalPatterns"`
	RecurringTransactions  []RecurringPattern     `json:"recurringTransactions"`
	SpendingCycles         SpendingCycles         `json:"spendingCycles"`
	BudgetEfficiency       BudgetEfficiency       `json:"budgetEfficiency"`
	CashflowSustainability CashflowSustainability `json:"cashflowSustainability"`
	Anomalies              AnomalyResult          `json:"anomalies"`
	Correlations           []Correlation          `json:"correlations"`
	Insights               []Finding              `json:"insights"`
	RiskFactors            []Finding              `json:"riskFactors"`
	Opportunities          []Finding              `json:"opportunities"`
	GeneratedAt            time.Time              `json:"generatedAt"`
}

// AnalyzePatterns runs every analytics component over the snapshot.
func AnalyzePatterns(snap *model.Snapshot, cfg config.Engine, now time.Time) PatternAnalysis {
	cfg = cfg.WithDefaults()
	pa := PatternAnalysis{
		Status:                StatusOK,
		RecurringTransactions: []RecurringPattern{},
		Correlations:          []Correlation{},
		Insights:              []Finding{},
		RiskFactors:           []Finding{},
		Opportunities:         []Finding{},
		GeneratedAt:           now,
	}
	if snap.IsEmpty() {
		pa.Status = StatusEmpty
		pa.Anomalies = AnomalyResult{Anomalies: []Anomaly{}}
		pa.CashflowSustainability = CashflowSustainability{Status: string(TrendInsufficientData)}
		return pa
	}

	txs := snap.Transactions
	monthly := AggregateSparse(txs, model.GranularityMonth)

	pa.SeasonalPatterns = seasonalPatterns(txs, monthly)
	pa.RecurringTransactions = orEmpty(DetectRecurring(txs, RecurringOptions{SignatureLength: cfg.DescriptionSignatureLength}))
	pa.SpendingCycles = spendingCycles(txs)
	pa.BudgetEfficiency = budgetEfficiency(snap.ActiveBudget(), monthly)
	pa.CashflowSustainability = cashflowSustainability(monthly, cfg)
	pa.Anomalies = DetectAnomalies(monthly, Expenses, cfg.AnomalyZThreshold)
	pa.Correlations = orEmpty(AnalyzeCorrelations(monthly))

	pa.Insights = append(pa.Insights, insightsFor(pa)...)
	pa.RiskFactors = append(pa.RiskFactors, riskFactorsFor(pa)...)
	pa.Opportunities = append(pa.Opportunities, opportunitiesFor(pa, snap)...)
	return pa
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func seasonalPatterns(txs []model.Transaction, monthly []PeriodBucket) SeasonalPatterns {
	var sp SeasonalPatterns

	daily := AggregateSparse(txs, model.GranularityDay)
	byWeekday := make(map[time.Weekday][]float64)
	for _, b := range daily {
		if b.TotalExpenses == 0 {
			continue
		}
		byWeekday[b.Start.Weekday()] = append(byWeekday[b.Start.Weekday()], b.TotalExpenses)
	}
	var peak float64
	for i := 0; i < 7; i++ {
		wd := time.Weekday((i + 1) % 7)
		vals := byWeekday[wd]
		p := SeasonalPoint{Label: wd.String(), Average: round2(mean(vals)), Samples: len(vals)}
		sp.DayOfWeek = append(sp.DayOfWeek, p)
		if p.Average > peak {
			peak, sp.PeakDay = p.Average, p.Label
		}
	}

	byMonth := make(map[time.Month][]float64)
	for _, b := range monthly {
		byMonth[b.Start.Month()] = append(byMonth[b.Start.Month()], b.TotalExpenses)
	}
	peak = 0
	for m := time.January; m <= time.December; m++ {
		vals, ok := byMonth[m]
		if !ok {
			continue
		}
		p := SeasonalPoint{Label: m.String(), Average: round2(mean(vals)), Samples: len(vals)}
		sp.MonthOfYear = append(sp.MonthOfYear, p)
		if p.Average > peak {
			peak, sp.PeakMonth = p.Average, p.Label
		}
	}
	return sp
}

func spendingCycles(txs []model.Transaction) SpendingCycles {
	names := []string{"early", "mid", "late"}
	phases := make([]CyclePhase, 3)
	for i, n := range names {
		phases[i].Phase = n
	}
	var total float64
	for _, t := range txs {
		if t.Category != model.CategoryExpense {
			continue
		}
		idx := 2
		switch d := t.Date.Day(); {
		case d <= 10:
			idx = 0
		case d <= 20:
			idx = 1
		}
		phases[idx].Total += t.AbsAmount()
		phases[idx].TransactionCount++
		total += t.AbsAmount()
	}

	sc := SpendingCycles{Phases: phases}
	var peak float64
	for i := range phases {
		if total > 0 {
			phases[i].Share = round2(phases[i].Total / total * 100)
		}
		phases[i].Total = round2(phases[i].Total)
		if phases[i].Total > peak {
			peak, sc.PeakPhase = phases[i].Total, phases[i].Phase
		}
	}
	return sc
}

func budgetEfficiency(budget *model.Budget, monthly []PeriodBucket) BudgetEfficiency {
	be := BudgetEfficiency{Variances: []Variance{}, Compliance: ScoreCompliance(nil)}
	if len(monthly) == 0 {
		return be
	}
	latest := monthly[len(monthly)-1]
	be.Period = latest.Key
	be.TotalSpent = round2(latest.TotalExpenses)
	if budget == nil {
		return be
	}

	be.HasBudget = true
	be.Variances = CategoryVariances(budget, []PeriodBucket{latest}, model.PeriodMonthly)
	be.Compliance = ScoreCompliance(be.Variances)
	for _, v := range be.Variances {
		be.TotalBudgeted += v.Budgeted
	}
	be.TotalBudgeted = round2(be.TotalBudgeted)
	if be.TotalBudgeted > 0 {
		be.Utilization = round2(be.TotalSpent / be.TotalBudgeted * 100)
	}
	return be
}

func cashflowSustainability(monthly []PeriodBucket, cfg config.Engine) CashflowSustainability {
	income := SeriesOf(monthly, Income)
	expenses := SeriesOf(monthly, Expenses)
	cs := CashflowSustainability{
		Months:          len(monthly),
		AverageIncome:   round2(mean(income)),
		AverageExpenses: round2(mean(expenses)),
		ExpenseTrend:    EstimateTrend(expenses, cfg.TrendSlopeThreshold),
	}
	cs.AverageNet = round2(cs.AverageIncome - cs.AverageExpenses)
	for _, b := range monthly {
		if b.Net() > 0 {
			cs.PositiveMonths++
		}
	}
	if cs.AverageIncome > 0 {
		cs.SavingsRate = round2(cs.AverageNet / cs.AverageIncome * 100)
	}

	switch {
	case len(monthly) < 2:
		cs.Status = string(TrendInsufficientData)
	case cs.AverageNet < 0:
		cs.Status = "unsustainable"
	case cs.SavingsRate < 10 || cs.ExpenseTrend.Direction == TrendIncreasing:
		cs.Status = "at-risk"
	default:
		cs.Status = "sustainable"
	}
	return cs
}

func insightsFor(pa PatternAnalysis) []Finding {
	var out []Finding
	if pa.SeasonalPatterns.PeakDay != "" {
		out = append(out, Finding{
			Type:     "seasonal",
			Title:    "Peak spending day",
			Message:  fmt.Sprintf("You spend the most on %ss.", pa.SeasonalPatterns.PeakDay),
			Severity: "info",
		})
	}
	if n := len(pa.RecurringTransactions); n > 0 {
		var monthlyCost float64
		for _, p := range pa.RecurringTransactions {
			if p.MeanIntervalDays > 0 {
				monthlyCost += p.AverageAmount * 30 / p.MeanIntervalDays
			}
		}
		out = append(out, Finding{
			Type:     "recurring",
			Title:    "Recurring payments detected",
			Message:  fmt.Sprintf("%d recurring payments cost about %.2f per month.", n, monthlyCost),
			Severity: "info",
			Impact:   round2(monthlyCost),
		})
	}
	for _, c := range pa.Correlations {
		if c.Strength != "strong" {
			continue
		}
		out = append(out, Finding{
			Type:     "correlation",
			Title:    "Linked spending",
			Message:  fmt.Sprintf("Spending on %s and %s moves together (%s, r=%.2f).", c.SubcategoryA, c.SubcategoryB, c.Direction, c.Coefficient),
			Severity: "info",
		})
	}
	if pa.SpendingCycles.PeakPhase != "" {
		out = append(out, Finding{
			Type:     "cycle",
			Title:    "Spending cycle",
			Message:  fmt.Sprintf("Most spending happens in the %s part of the month.", pa.SpendingCycles.PeakPhase),
			Severity: "info",
		})
	}
	return out
}

func riskFactorsFor(pa PatternAnalysis) []Finding {
	var out []Finding
	for _, a := range pa.Anomalies.Anomalies {
		if a.Type != AnomalyHighSpending {
			continue
		}
		sev := "medium"
		if a.Severity == SeverityExtreme {
			sev = "high"
		}
		out = append(out, Finding{
			Type:     "anomaly",
			Title:    "Unusual spending month",
			Message:  fmt.Sprintf("Spending in %s was %.2f against a typical %.2f.", a.PeriodKey, a.Value, a.Expected),
			Severity: sev,
			Impact:   round2(a.Deviation),
		})
	}
	switch pa.CashflowSustainability.Status {
	case "unsustainable":
		out = append(out, Finding{
			Type:     "cashflow",
			Title:    "Spending exceeds income",
			Message:  fmt.Sprintf("On average you spend %.2f more than you earn each month.", -pa.CashflowSustainability.AverageNet),
			Severity: "high",
			Impact:   -pa.CashflowSustainability.AverageNet,
		})
	case "at-risk":
		out = append(out, Finding{
			Type:     "cashflow",
			Title:    "Thin savings margin",
			Message:  fmt.Sprintf("Your savings rate is %.1f%%.", pa.CashflowSustainability.SavingsRate),
			Severity: "medium",
		})
	}
	for _, v := range pa.BudgetEfficiency.Variances {
		if !v.IsOverBudget || !v.HasBudget {
			continue
		}
		out = append(out, Finding{
			Type:     "budget",
			Title:    "Over budget",
			Message:  fmt.Sprintf("%s is %.2f over budget.", v.SubcategoryID, v.Variance),
			Severity: "medium",
			Impact:   v.Variance,
		})
	}
	return out
}

func opportunitiesFor(pa PatternAnalysis, snap *model.Snapshot) []Finding {
	var out []Finding
	for _, v := range pa.BudgetEfficiency.Variances {
		if v.Status != VarianceGood {
			continue
		}
		out = append(out, Finding{
			Type:     "budget-surplus",
			Title:    "Room in your budget",
			Message:  fmt.Sprintf("%s is %.2f under budget. Consider moving the surplus to savings.", v.SubcategoryID, -v.Variance),
			Severity: "info",
			Impact:   -v.Variance,
		})
	}

	untracked := Untracked(pa.RecurringTransactions, snap.Templates)
	sort.Slice(untracked, func(i, j int) bool { return untracked[i].AverageAmount > untracked[j].AverageAmount })
	for _, p := range untracked {
		out = append(out, Finding{
			Type:     "subscription-review",
			Title:    "Review recurring payment",
			Message:  fmt.Sprintf("%s charges about %.2f every %d days.", p.Description, p.AverageAmount, p.FrequencyDays),
			Severity: "info",
			Impact:   p.AverageAmount,
		})
	}
	return out
}
