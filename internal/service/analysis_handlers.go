package service

import (
	"context"
	"time"

	"connectrpc.com/connect"

	"github.com/castlemilk/pfinance-insights/internal/analytics"
	"github.com/castlemilk/pfinance-insights/internal/auth"
	"github.com/castlemilk/pfinance-insights/internal/model"
)

// ============================================================================
// Analysis Handlers
// ============================================================================

// AnalyzePatterns runs the full pattern analysis over the user's snapshot.
func (s *InsightsService) AnalyzePatterns(ctx context.Context, req *connect.Request[AnalyzePatternsRequest]) (*connect.Response[AnalyzePatternsResponse], error) {
	claims, err := auth.RequireUserAccess(ctx, req.Msg.UserID)
	if err != nil {
		return nil, err
	}
	userID := auth.ResolveUserID(claims, req.Msg.UserID)

	snap, err := s.loadSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	return connect.NewResponse(&AnalyzePatternsResponse{
		Analysis: analytics.AnalyzePatterns(snap, s.cfg, s.now()),
	}), nil
}

// GetForecast projects spending over the requested horizon.
func (s *InsightsService) GetForecast(ctx context.Context, req *connect.Request[GetForecastRequest]) (*connect.Response[GetForecastResponse], error) {
	claims, err := auth.RequireUserAccess(ctx, req.Msg.UserID)
	if err != nil {
		return nil, err
	}

	horizon, err := model.ParseHorizon(req.Msg.Horizon)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	scenario, err := analytics.ParseScenario(req.Msg.Scenario)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	snap, err := s.loadSnapshot(ctx, auth.ResolveUserID(claims, req.Msg.UserID))
	if err != nil {
		return nil, err
	}

	status := analytics.StatusOK
	if snap.IsEmpty() {
		status = analytics.StatusEmpty
	}
	in := analytics.BuildForecastInput(snap, horizon, scenario, s.cfg, s.now())
	return connect.NewResponse(&GetForecastResponse{
		Status:   status,
		Forecast: analytics.GenerateForecast(in, s.cfg),
	}), nil
}

// GetBudgetVariance compares the active budget with spending in the current
// period.
func (s *InsightsService) GetBudgetVariance(ctx context.Context, req *connect.Request[GetBudgetVarianceRequest]) (*connect.Response[GetBudgetVarianceResponse], error) {
	claims, err := auth.RequireUserAccess(ctx, req.Msg.UserID)
	if err != nil {
		return nil, err
	}

	period, err := model.ParsePeriod(req.Msg.Period)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	snap, err := s.loadSnapshot(ctx, auth.ResolveUserID(claims, req.Msg.UserID))
	if err != nil {
		return nil, err
	}

	return connect.NewResponse(BudgetVariance(snap, period, s.now())), nil
}

// BudgetVariance scores spending since the start of the period containing
// now against the active budget.
func BudgetVariance(snap *model.Snapshot, period model.Period, now time.Time) *GetBudgetVarianceResponse {
	start := PeriodWindowStart(now, period)
	resp := &GetBudgetVarianceResponse{
		Status:      analytics.StatusOK,
		Period:      period,
		PeriodStart: start,
		Variances:   []analytics.Variance{},
	}
	if snap.IsEmpty() {
		resp.Status = analytics.StatusEmpty
	}

	var inWindow []model.Transaction
	for _, t := range snap.Transactions {
		if !t.Date.Before(start) && !t.Date.After(now) {
			inWindow = append(inWindow, t)
		}
	}

	budget := snap.ActiveBudget()
	if budget != nil {
		resp.BudgetID = budget.ID
	}
	resp.Variances = append(resp.Variances, analytics.CategoryVariances(budget, analytics.AggregateSparse(inWindow, model.GranularityMonth), period)...)
	resp.Compliance = analytics.ScoreCompliance(resp.Variances)
	return resp
}

// PeriodWindowStart returns the start of the calendar period containing now.
// Weeks start on Monday.
func PeriodWindowStart(now time.Time, period model.Period) time.Time {
	switch period {
	case model.PeriodWeekly:
		return analytics.PeriodStart(now, model.GranularityWeek)
	case model.PeriodQuarterly:
		firstMonth := time.Month((int(now.Month())-1)/3*3 + 1)
		return time.Date(now.Year(), firstMonth, 1, 0, 0, 0, 0, now.Location())
	case model.PeriodYearly:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}
}
