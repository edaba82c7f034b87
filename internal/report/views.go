package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/castlemilk/pfinance-insights/internal/analytics"
	"github.com/castlemilk/pfinance-insights/internal/model"
	"github.com/castlemilk/pfinance-insights/internal/notify"
)

const emptyMessage = "  No financial data found for this user."

// Patterns renders the headline figures of a pattern analysis.
func Patterns(pa analytics.PatternAnalysis) string {
	var b strings.Builder
	b.WriteString(RenderTitle("SPENDING PATTERNS"))
	b.WriteString("\n\n")
	if pa.Status == analytics.StatusEmpty {
		b.WriteString(emptyMessage + "\n")
		return b.String()
	}

	cs := pa.CashflowSustainability
	b.WriteString(RenderTable(Table{
		Title:   "Cashflow",
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Status", Status(cs.Status)},
			{"Avg income", FormatMoney(cs.AverageIncome)},
			{"Avg expenses", FormatMoney(cs.AverageExpenses)},
			{"Avg net", FormatMoney(cs.AverageNet)},
			{"Savings rate", FormatPercent(cs.SavingsRate)},
			{"Positive months", fmt.Sprintf("%d/%d", cs.PositiveMonths, cs.Months)},
			{"Expense trend", string(cs.ExpenseTrend.Direction)},
		},
	}))

	if len(pa.SeasonalPatterns.DayOfWeek) > 0 {
		values := make([]float64, 0, len(pa.SeasonalPatterns.DayOfWeek))
		for _, p := range pa.SeasonalPatterns.DayOfWeek {
			values = append(values, p.Average)
		}
		b.WriteString(fmt.Sprintf("\n  Weekday spend  %s  peak %s\n", RenderSparkline(values), pa.SeasonalPatterns.PeakDay))
	}

	if len(pa.RecurringTransactions) > 0 {
		rows := make([][]string, 0, len(pa.RecurringTransactions))
		for _, r := range pa.RecurringTransactions {
			rows = append(rows, []string{
				r.Description,
				fmt.Sprintf("%dd", r.FrequencyDays),
				FormatMoney(r.AverageAmount),
				fmt.Sprintf("%d", r.Occurrences),
				r.ExpectedNext.Format("2006-01-02"),
			})
		}
		b.WriteString("\n")
		b.WriteString(RenderTable(Table{
			Title:   "Recurring",
			Headers: []string{"Description", "Every", "Amount", "Seen", "Next"},
			Rows:    rows,
		}))
	}

	if len(pa.Anomalies.Anomalies) > 0 {
		rows := make([][]string, 0, len(pa.Anomalies.Anomalies))
		for _, a := range pa.Anomalies.Anomalies {
			rows = append(rows, []string{
				a.PeriodKey,
				string(a.Type),
				FormatMoney(a.Value),
				FormatMoney(a.Expected),
				fmt.Sprintf("%.2f", a.ZScore),
				Status(string(a.Severity)),
			})
		}
		b.WriteString("\n")
		b.WriteString(RenderTable(Table{
			Title:   "Anomalies",
			Headers: []string{"Period", "Type", "Value", "Expected", "Z", "Severity"},
			Rows:    rows,
		}))
	}

	writeFindings(&b, "Insights", pa.Insights)
	writeFindings(&b, "Risk factors", pa.RiskFactors)
	writeFindings(&b, "Opportunities", pa.Opportunities)
	return b.String()
}

func writeFindings(b *strings.Builder, title string, findings []analytics.Finding) {
	if len(findings) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(Section(title))
	b.WriteString("\n")
	for _, f := range findings {
		b.WriteString(fmt.Sprintf("  • %s %s\n", f.Title, Muted(f.Message)))
	}
}

// Forecast renders the scenario table of a forecast.
func Forecast(f analytics.Forecast, status analytics.ResultStatus) string {
	var b strings.Builder
	b.WriteString(RenderTitle(fmt.Sprintf("FORECAST  next %s", f.Horizon)))
	b.WriteString("\n\n")
	if status == analytics.StatusEmpty {
		b.WriteString(emptyMessage + "\n")
		return b.String()
	}

	rows := [][]string{}
	for _, s := range []analytics.Scenario{f.Scenarios.Optimistic, f.Scenarios.Current, f.Scenarios.Pessimistic} {
		name := string(s.Name)
		if s.Name == f.SelectedScenario {
			name += " *"
		}
		rows = append(rows, []string{
			name,
			FormatMoney(s.MonthlyExpense),
			FormatMoney(s.ProjectedTotal),
			FormatPercent(s.Probability * 100),
			Status(string(s.Adherence.Status)),
			Status(string(s.Adherence.Risk)),
		})
	}
	b.WriteString(RenderTable(Table{
		Headers: []string{"Scenario", "Monthly", "Projected", "Prob", "Budget", "Risk"},
		Rows:    rows,
	}))
	b.WriteString(fmt.Sprintf("\n  Trajectory %s, confidence %s\n", f.CurrentTrajectory.Direction, FormatPercent(f.Confidence*100)))

	if len(f.Recommendations) > 0 {
		b.WriteString("\n")
		b.WriteString(Section("Recommendations"))
		b.WriteString("\n")
		for _, r := range f.Recommendations {
			b.WriteString("  • " + r + "\n")
		}
	}
	return b.String()
}

// Variance renders per-subcategory variances and the compliance score.
func Variance(period model.Period, variances []analytics.Variance, c analytics.Compliance) string {
	var b strings.Builder
	b.WriteString(RenderTitle(fmt.Sprintf("BUDGET VARIANCE  %s", period)))
	b.WriteString("\n\n")
	if len(variances) == 0 {
		b.WriteString("  No spending or budget lines in this period.\n")
		return b.String()
	}

	rows := make([][]string, 0, len(variances)+2)
	for _, v := range variances {
		sub := v.SubcategoryID
		if sub == "" {
			sub = "(uncategorized)"
		}
		rows = append(rows, []string{
			sub,
			FormatMoney(v.Budgeted),
			FormatMoney(v.Actual),
			FormatMoney(v.Variance),
			FormatSignedPercent(v.VariancePercentage),
			Status(string(v.Status)),
		})
	}
	rows = append(rows, []string{"---"})
	rows = append(rows, []string{"Compliance", "", "", "", fmt.Sprintf("%d%%", c.Score), fmt.Sprintf("%d/%d", c.CategoriesOnTrack, c.CategoriesWithBudget)})

	b.WriteString(RenderTable(Table{
		Headers: []string{"Subcategory", "Budgeted", "Actual", "Variance", "%", "Status"},
		Rows:    rows,
	}))
	return b.String()
}

// Pass renders the per-trigger outcome of a notification pass.
func Pass(res *notify.PassResult) string {
	var b strings.Builder
	b.WriteString(RenderTitle("NOTIFICATION PASS  " + res.UserID))
	b.WriteString("\n\n")

	types := make([]string, 0, len(res.Triggers))
	for t := range res.Triggers {
		types = append(types, string(t))
	}
	sort.Strings(types)

	rows := make([][]string, 0, len(types)+2)
	for _, t := range types {
		s := res.Triggers[model.NotificationType(t)]
		rows = append(rows, []string{t, fmt.Sprintf("%d", s.Created), fmt.Sprintf("%d", s.Skipped), fmt.Sprintf("%d", s.Failed)})
	}
	tot := res.Totals()
	rows = append(rows, []string{"---"})
	rows = append(rows, []string{"Total", fmt.Sprintf("%d", tot.Created), fmt.Sprintf("%d", tot.Skipped), fmt.Sprintf("%d", tot.Failed)})
	b.WriteString(RenderTable(Table{
		Headers: []string{"Trigger", "Created", "Skipped", "Failed"},
		Rows:    rows,
	}))

	for _, n := range res.Created {
		b.WriteString(fmt.Sprintf("  [%s] %s %s\n", Status(string(n.Priority)), n.Title, Muted(n.Message)))
	}
	if res.Purged > 0 {
		b.WriteString(fmt.Sprintf("\n  Purged %d old notifications\n", res.Purged))
	}
	if res.PurgeError != "" {
		b.WriteString(warnStyle.Render("  Purge failed: "+res.PurgeError) + "\n")
	}
	return b.String()
}
