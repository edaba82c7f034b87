package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castlemilk/pfinance-insights/internal/analytics"
	"github.com/castlemilk/pfinance-insights/internal/model"
	"github.com/castlemilk/pfinance-insights/internal/report"
	"github.com/castlemilk/pfinance-insights/internal/service"
)

func newAnalyzeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Seasonality, recurring charges, anomalies and cashflow health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rc, err := opts.prepare(cmd)
			if err != nil {
				return err
			}
			defer rc.close()

			pa := analytics.AnalyzePatterns(rc.snap, rc.cfg, rc.now)
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), pa)
			}
			fmt.Fprint(cmd.OutOrStdout(), report.Patterns(pa))
			return nil
		},
	}
}

func newForecastCmd(opts *options) *cobra.Command {
	var horizon, scenario string

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Project spending over a horizon under three scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := model.ParseHorizon(horizon)
			if err != nil {
				return err
			}
			sc, err := analytics.ParseScenario(scenario)
			if err != nil {
				return err
			}

			rc, err := opts.prepare(cmd)
			if err != nil {
				return err
			}
			defer rc.close()

			status := analytics.StatusOK
			if rc.snap.IsEmpty() {
				status = analytics.StatusEmpty
			}
			in := analytics.BuildForecastInput(rc.snap, h, sc, rc.cfg, rc.now)
			f := analytics.GenerateForecast(in, rc.cfg)
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), service.GetForecastResponse{Status: status, Forecast: f})
			}
			fmt.Fprint(cmd.OutOrStdout(), report.Forecast(f, status))
			return nil
		},
	}
	cmd.Flags().StringVar(&horizon, "horizon", "month", "Forecast horizon: week, month or quarter")
	cmd.Flags().StringVar(&scenario, "scenario", "current", "Selected scenario: optimistic, current or pessimistic")
	return cmd
}

func newVarianceCmd(opts *options) *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "variance",
		Short: "Compare spending in the current period with the active budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := model.ParsePeriod(period)
			if err != nil {
				return err
			}

			rc, err := opts.prepare(cmd)
			if err != nil {
				return err
			}
			defer rc.close()

			resp := service.BudgetVariance(rc.snap, p, rc.now)
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprint(cmd.OutOrStdout(), report.Variance(resp.Period, resp.Variances, resp.Compliance))
			return nil
		},
	}
	cmd.Flags().StringVar(&period, "period", "monthly", "Comparison period: weekly, monthly, quarterly or yearly")
	return cmd
}
