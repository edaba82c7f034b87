package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castlemilk/pfinance-insights/internal/model"
	"github.com/castlemilk/pfinance-insights/internal/notify"
	"github.com/castlemilk/pfinance-insights/internal/service"
)

const cliUser = "cli-user"

func writeSnapshot(t *testing.T) string {
	t.Helper()
	snap := model.Snapshot{
		UserID: cliUser,
		Budgets: []model.Budget{{
			ID:     "b1",
			Name:   "Household",
			Status: model.BudgetStatusActive,
			LineItems: []model.LineItem{
				{SubcategoryID: "rent", Amount: 1500, Period: model.PeriodMonthly},
				{SubcategoryID: "groceries", Amount: 300, Period: model.PeriodMonthly},
			},
		}},
	}
	for i := 0; i < 6; i++ {
		m := time.Month(i + 1)
		snap.Transactions = append(snap.Transactions,
			model.Transaction{ID: "rent-" + m.String(), Date: time.Date(2024, m, 1, 9, 0, 0, 0, time.UTC), Amount: -1500, Category: model.CategoryExpense, SubcategoryID: "rent", Description: "Landlord", AccountID: "acct-1"},
			model.Transaction{ID: "groc-" + m.String(), Date: time.Date(2024, m, 12, 9, 0, 0, 0, time.UTC), Amount: -(300 + 20*float64(i)), Category: model.CategoryExpense, SubcategoryID: "groceries", Description: "Market", AccountID: "acct-1"},
			model.Transaction{ID: "pay-" + m.String(), Date: time.Date(2024, m, 15, 9, 0, 0, 0, time.UTC), Amount: 4000, Category: model.CategoryIncome, SubcategoryID: "salary", Description: "Payroll", AccountID: "acct-1"},
		)
	}

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVarianceJSON(t *testing.T) {
	path := writeSnapshot(t)

	out, err := run(t, "variance", "--snapshot", path, "--now", "2024-06-20", "--json")
	require.NoError(t, err)

	var resp service.GetBudgetVarianceResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "b1", resp.BudgetID)
	assert.Equal(t, model.PeriodMonthly, resp.Period)

	var found bool
	for _, v := range resp.Variances {
		if v.SubcategoryID == "groceries" {
			found = true
			assert.InDelta(t, 100, v.Variance, 0.001)
			assert.True(t, v.IsOverBudget)
		}
	}
	assert.True(t, found, "groceries variance missing")
	assert.Equal(t, 2, resp.Compliance.CategoriesWithBudget)
}

func TestForecastTable(t *testing.T) {
	path := writeSnapshot(t)

	out, err := run(t, "forecast", "--snapshot", path, "--now", "2024-06-20T10:00:00Z", "--horizon", "quarter")
	require.NoError(t, err)
	assert.Contains(t, out, "FORECAST")
	assert.Contains(t, out, "current *")
}

func TestForecastRejectsBadHorizon(t *testing.T) {
	path := writeSnapshot(t)

	_, err := run(t, "forecast", "--snapshot", path, "--horizon", "decade")
	assert.ErrorContains(t, err, "decade")
}

func TestAnalyzeNeedsInput(t *testing.T) {
	_, err := run(t, "analyze")
	assert.ErrorContains(t, err, "--snapshot")

	_, err = run(t, "analyze", "--snapshot", tempPath(t, "missing.json"))
	assert.Error(t, err)
}

func TestBadNow(t *testing.T) {
	p := writeSnapshot(t)
	_, err := run(t, "analyze", "--snapshot", p, "--now", "yesterday")
	assert.ErrorContains(t, err, "--now")
}

func TestImportThenNotifyIsIdempotent(t *testing.T) {
	p := writeSnapshot(t)
	db := tempPath(t, "insights.db")

	out, err := run(t, "import", "--snapshot", p, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 18 transactions")

	out, err = run(t, "notify", "--db", db, "--user", cliUser, "--now", "2024-06-20T10:00:00Z", "--json")
	require.NoError(t, err)
	var first notify.PassResult
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.Equal(t, cliUser, first.UserID)
	assert.Equal(t, 2, first.Triggers[model.NotificationBudgetAlert].Created)
	created := first.Totals().Created
	require.Positive(t, created)

	out, err = run(t, "notify", "--db", db, "--user", cliUser, "--now", "2024-06-20T11:00:00Z", "--json")
	require.NoError(t, err)
	var second notify.PassResult
	require.NoError(t, json.Unmarshal([]byte(out), &second))
	assert.Zero(t, second.Totals().Created)
	assert.Equal(t, created, second.Totals().Skipped)

	out, err = run(t, "inbox", "--db", db, "--user", cliUser, "--unread", "--mark-read", "--json")
	require.NoError(t, err)
	var items []*model.Notification
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	assert.Len(t, items, created)

	out, err = run(t, "inbox", "--db", db, "--user", cliUser, "--unread")
	require.NoError(t, err)
	assert.Contains(t, out, "No notifications")
}

func TestInboxNeedsUser(t *testing.T) {
	_, err := run(t, "inbox", "--db", tempPath(t, "x.db"))
	assert.ErrorContains(t, err, "--user")
}

func tempPath(t *testing.T, name string) string {
	return filepath.Join(t.TempDir(), name)
}

func TestDemoThenAnalyze(t *testing.T) {
	db := tempPath(t, "demo.db")
	out := tempPath(t, "demo.json")

	msg, err := run(t, "demo", "--out", out, "--db", db, "--user", "demo-1", "--now", "2024-06-20")
	require.NoError(t, err)
	assert.Contains(t, msg, "for demo-1")
	assert.FileExists(t, out)

	js, err := run(t, "analyze", "--db", db, "--user", "demo-1", "--now", "2024-06-20", "--json")
	require.NoError(t, err)
	var pa struct {
		Status                string            `json:"status"`
		RecurringTransactions []json.RawMessage `json:"recurringTransactions"`
	}
	require.NoError(t, json.Unmarshal([]byte(js), &pa))
	assert.Equal(t, "ok", pa.Status)
	assert.NotEmpty(t, pa.RecurringTransactions)

	table, err := run(t, "analyze", "--snapshot", out, "--now", "2024-06-20")
	require.NoError(t, err)
	assert.Contains(t, table, "SPENDING PATTERNS")
	assert.Contains(t, table, "Recurring")
}
