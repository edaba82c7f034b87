package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/castlemilk/pfinance-insights/internal/config"
	"github.com/castlemilk/pfinance-insights/internal/model"
)

// ScenarioName identifies one of the three projections.
type ScenarioName string

const (
	ScenarioOptimistic  ScenarioName = "optimistic"
	ScenarioCurrent     ScenarioName = "current"
	ScenarioPessimistic ScenarioName = "pessimistic"
)

// ParseScenario maps an empty name to ScenarioCurrent.
func ParseScenario(s string) (ScenarioName, error) {
	switch ScenarioName(s) {
	case "", ScenarioCurrent:
		return ScenarioCurrent, nil
	case ScenarioOptimistic, ScenarioPessimistic:
		return ScenarioName(s), nil
	default:
		return "", fmt.Errorf("unknown scenario %q", s)
	}
}

// HorizonMultiplier converts a monthly amount to the horizon.
func HorizonMultiplier(h model.Horizon) float64 {
	switch h {
	case model.HorizonWeek:
		return 1 / 4.33
	case model.HorizonQuarter:
		return 3
	default:
		return 1
	}
}

// AdherenceStatus classifies a projected total against the budget.
type AdherenceStatus string

const (
	AdherenceOverBudget  AdherenceStatus = "over-budget"
	AdherenceOnTrack     AdherenceStatus = "on-track"
	AdherenceUnderBudget AdherenceStatus = "under-budget"
)

// RiskLevel grades how far over budget a projection lands.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Adherence compares one projection to the total budget.
type Adherence struct {
	Variance         float64         `json:"variance"`
	AdherencePercent float64         `json:"adherencePercentage"`
	Status           AdherenceStatus `json:"status"`
	Risk             RiskLevel       `json:"riskLevel"`
}

// Scenario is one projection of spending over the horizon.
type Scenario struct {
	Name           ScenarioName `json:"name"`
	MonthlyExpense float64      `json:"monthlyExpense"`
	GrowthRate     float64      `json:"growthRate"`
	Probability    float64      `json:"probability"`
	ProjectedTotal float64      `json:"projectedTotal"`
	Adherence      Adherence    `json:"adherence"`
}

// Scenarios holds the three fixed projections.
type Scenarios struct {
	Optimistic  Scenario `json:"optimistic"`
	Current     Scenario `json:"current"`
	Pessimistic Scenario `json:"pessimistic"`
}

// Get returns the named scenario, defaulting to Current.
func (s Scenarios) Get(name ScenarioName) Scenario {
	switch name {
	case ScenarioOptimistic:
		return s.Optimistic
	case ScenarioPessimistic:
		return s.Pessimistic
	default:
		return s.Current
	}
}

// LineAdjustment is the suggested cut for one budget line item.
type LineAdjustment struct {
	SubcategoryID   string  `json:"subcategoryId"`
	CurrentAmount   float64 `json:"currentAmount"`
	Reduction       float64 `json:"reduction"`
	SuggestedAmount float64 `json:"suggestedAmount"`
}

// AdjustmentScenario spreads a projected shortfall across the line items in
// proportion to their share of the budget.
type AdjustmentScenario struct {
	Scenario        ScenarioName     `json:"scenario"`
	TotalAdjustment float64          `json:"totalAdjustment"`
	DailyAdjustment float64          `json:"dailyAdjustment"`
	Items           []LineAdjustment `json:"items"`
}

// ForecastInput is everything GenerateForecast needs.
type ForecastInput struct {
	MonthlyExpense  float64
	GrowthRate      float64
	Horizon         model.Horizon
	TotalBudget     float64
	LineItems       []model.LineItem
	Selected        ScenarioName
	Trajectory      Trend
	MonthsOfHistory int
	Now             time.Time
}

// Forecast is the multi-scenario projection for a horizon.
type Forecast struct {
	Horizon             model.Horizon        `json:"horizon"`
	SelectedScenario    ScenarioName         `json:"selectedScenario"`
	CurrentTrajectory   Trend                `json:"currentTrajectory"`
	Scenarios           Scenarios            `json:"scenarios"`
	AdherencePrediction Adherence            `json:"adherencePrediction"`
	Recommendations     []string             `json:"recommendations"`
	AdjustmentScenarios []AdjustmentScenario `json:"adjustmentScenarios"`
	Confidence          float64              `json:"confidence"`
	LastUpdated         time.Time            `json:"lastUpdated"`
}

// GenerateForecast projects the three fixed scenarios and scores each
// against the total budget.
func GenerateForecast(in ForecastInput, cfg config.Engine) Forecast {
	cfg = cfg.WithDefaults()
	mult := HorizonMultiplier(in.Horizon)
	selected := in.Selected
	if selected == "" {
		selected = ScenarioCurrent
	}

	build := func(name ScenarioName, factor, growth, prob float64) Scenario {
		monthly := in.MonthlyExpense * factor
		projected := round2(monthly * mult)
		return Scenario{
			Name:           name,
			MonthlyExpense: round2(monthly),
			GrowthRate:     growth,
			Probability:    prob,
			ProjectedTotal: projected,
			Adherence:      predictAdherence(projected, in.TotalBudget, cfg),
		}
	}

	scenarios := Scenarios{
		Optimistic:  build(ScenarioOptimistic, 0.9, math.Min(in.GrowthRate-5, -2), 0.25),
		Current:     build(ScenarioCurrent, 1.0, in.GrowthRate, 0.50),
		Pessimistic: build(ScenarioPessimistic, 1.15, in.GrowthRate+8, 0.25),
	}

	adjustments := make([]AdjustmentScenario, 0, 3)
	for _, s := range []Scenario{scenarios.Optimistic, scenarios.Current, scenarios.Pessimistic} {
		adjustments = append(adjustments, adjustmentFor(s, in.LineItems, mult))
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	current := scenarios.Current
	return Forecast{
		Horizon:             in.Horizon,
		SelectedScenario:    selected,
		CurrentTrajectory:   in.Trajectory,
		Scenarios:           scenarios,
		AdherencePrediction: current.Adherence,
		Recommendations:     recommendations(scenarios.Get(selected), in),
		AdjustmentScenarios: adjustments,
		Confidence:          forecastConfidence(in.MonthsOfHistory, in.Trajectory),
		LastUpdated:         now,
	}
}

func predictAdherence(projected, budget float64, cfg config.Engine) Adherence {
	variance := projected - budget
	a := Adherence{Variance: round2(variance)}
	// No budget means nothing to adhere to.
	if budget > 0 {
		a.AdherencePercent = round2(math.Max(0, (budget-variance)/budget*100))
	}

	switch {
	case variance > 0:
		a.Status = AdherenceOverBudget
	case variance > -cfg.OnTrackVarianceBand:
		a.Status = AdherenceOnTrack
	default:
		a.Status = AdherenceUnderBudget
	}

	switch {
	case variance > cfg.HighRiskVariance:
		a.Risk = RiskHigh
	case variance > 0:
		a.Risk = RiskMedium
	default:
		a.Risk = RiskLow
	}
	return a
}

// adjustmentFor reports the horizon shortfall as the total, and cuts each line
// item by its share of the shortfall scaled back to a month so suggestions
// stay in the line items' monthly units.
func adjustmentFor(s Scenario, items []model.LineItem, mult float64) AdjustmentScenario {
	adj := AdjustmentScenario{Scenario: s.Name, Items: []LineAdjustment{}}
	shortfall := s.Adherence.Variance
	if shortfall <= 0 {
		return adj
	}

	var total float64
	for _, item := range items {
		total += MonthlyAmount(item)
	}
	adj.TotalAdjustment = round2(shortfall)
	adj.DailyAdjustment = round2(shortfall / 30)
	if total <= 0 || mult <= 0 {
		return adj
	}

	monthlyShortfall := shortfall / mult
	for _, item := range items {
		current := MonthlyAmount(item)
		reduction := monthlyShortfall * current / total
		adj.Items = append(adj.Items, LineAdjustment{
			SubcategoryID:   item.SubcategoryID,
			CurrentAmount:   round2(current),
			Reduction:       round2(reduction),
			SuggestedAmount: round2(math.Max(0, current-reduction)),
		})
	}
	return adj
}

// forecastConfidence grows with months of history up to six and is scaled
// by how well a line explains the trajectory.
func forecastConfidence(months int, trajectory Trend) float64 {
	history := clamp01(float64(months) / 6)
	fit := 0.5
	if trajectory.Direction != TrendInsufficientData {
		fit = 0.5 + 0.5*clamp01(trajectory.RSquared)
	}
	return round2(history * fit)
}

func recommendations(selected Scenario, in ForecastInput) []string {
	recs := []string{}
	a := selected.Adherence
	switch a.Status {
	case AdherenceOverBudget:
		recs = append(recs, fmt.Sprintf("Projected spending exceeds your budget by %.2f. Reduce daily spending by %.2f to stay on track.",
			a.Variance, a.Variance/30))
	case AdherenceUnderBudget:
		recs = append(recs, fmt.Sprintf("You are projected to finish %.2f under budget. Consider moving the surplus to savings.", -a.Variance))
	}
	if a.Risk == RiskHigh {
		recs = append(recs, "High risk of overspending. Review your largest categories first.")
	}
	switch in.Trajectory.Direction {
	case TrendIncreasing:
		recs = append(recs, "Monthly spending is trending upward.")
	case TrendDecreasing:
		recs = append(recs, "Monthly spending is trending downward. Keep it up.")
	case TrendInsufficientData:
		recs = append(recs, "Not enough history to establish a spending trend yet.")
	}
	if in.TotalBudget <= 0 {
		recs = append(recs, "Create a budget to track adherence.")
	}
	return recs
}

// BuildForecastInput derives the monthly average, growth and budget totals
// from a snapshot.
func BuildForecastInput(snap *model.Snapshot, horizon model.Horizon, selected ScenarioName, cfg config.Engine, now time.Time) ForecastInput {
	cfg = cfg.WithDefaults()
	in := ForecastInput{Horizon: horizon, Selected: selected, Now: now}
	if snap == nil {
		in.Trajectory = EstimateTrend(nil, cfg.TrendSlopeThreshold)
		return in
	}

	monthly := AggregateSparse(snap.Transactions, model.GranularityMonth)
	in.MonthsOfHistory = len(monthly)
	// Income-only months carry no spending signal.
	spending := make([]PeriodBucket, 0, len(monthly))
	for _, m := range monthly {
		if m.TotalExpenses > 0 {
			spending = append(spending, m)
		}
	}
	expenses := SeriesOf(spending, Expenses)
	in.MonthlyExpense = round2(mean(expenses))
	in.Trajectory = EstimateTrend(expenses, cfg.TrendSlopeThreshold)
	if in.MonthlyExpense > 0 && in.Trajectory.Direction != TrendInsufficientData {
		in.GrowthRate = round2(in.Trajectory.Slope / in.MonthlyExpense * 100)
	}

	if b := snap.ActiveBudget(); b != nil {
		in.LineItems = b.LineItems
		var monthlyBudget float64
		for _, item := range b.LineItems {
			monthlyBudget += MonthlyAmount(item)
		}
		in.TotalBudget = round2(monthlyBudget * HorizonMultiplier(horizon))
	}
	return in
}
