package notify

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/castlemilk/pfinance-insights/internal/analytics"
	"github.com/castlemilk/pfinance-insights/internal/config"
	"github.com/castlemilk/pfinance-insights/internal/model"
)

func defaultTriggers() []trigger {
	return []trigger{
		{typ: model.NotificationBudgetAlert, eval: budgetThreshold},
		{typ: model.NotificationLargeTransaction, eval: largeTransactions, eligible: lookbackLifetime},
		{typ: model.NotificationLowBalance, eval: lowBalances},
		{typ: model.NotificationReconciliationOverdue, eval: reconciliationOverdue},
		{typ: model.NotificationDuplicateTransaction, eval: duplicateTransactions, eligible: duplicateLifetime},
		{typ: model.NotificationUncategorized, eval: uncategorized},
		{typ: model.NotificationCategoryIncrease, eval: categoryIncreases},
		{typ: model.NotificationMonthlySummary, eval: monthlySummary},
		{typ: model.NotificationRecurringNoTemplate, eval: recurringWithoutTemplate},
	}
}

// lookbackLifetime covers a transaction's stay in the lookback window plus a
// day for passes landing exactly on the boundary.
func lookbackLifetime(cfg config.Engine) time.Duration {
	return time.Duration(cfg.LookbackDays+1) * 24 * time.Hour
}

// duplicateLifetime also allows for the later side of a pair being dated up
// to the duplicate window after the earlier one.
func duplicateLifetime(cfg config.Engine) time.Duration {
	return lookbackLifetime(cfg) + time.Duration(cfg.DuplicateWindowDays)*24*time.Hour
}

func label(subcategoryID string) string {
	if subcategoryID == "" {
		return "Uncategorized"
	}
	return cases.Title(language.English).String(strings.ReplaceAll(subcategoryID, "_", " "))
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func monthKey(t time.Time) string {
	return analytics.PeriodKey(t, model.GranularityMonth)
}

// monthBuckets indexes the sparse monthly aggregation by key.
func monthBuckets(txs []model.Transaction) map[string]analytics.PeriodBucket {
	out := make(map[string]analytics.PeriodBucket)
	for _, b := range analytics.AggregateSparse(txs, model.GranularityMonth) {
		out[b.Key] = b
	}
	return out
}

func (p *pass) lookbackStart() time.Time {
	return p.now.AddDate(0, 0, -p.cfg.LookbackDays)
}

func (p *pass) recent(t model.Transaction) bool {
	return !t.Date.Before(p.lookbackStart()) && !t.Date.After(p.now)
}

// budgetThreshold reports, for each line item of the active budget, the
// highest alert threshold crossed by this month's spending.
func budgetThreshold(p *pass) ([]*model.Notification, error) {
	budget := p.snap.ActiveBudget()
	if budget == nil {
		return nil, nil
	}
	current := monthBuckets(p.snap.Transactions)[monthKey(p.now)]
	nextMonth := monthStart(p.now).AddDate(0, 1, 0)

	var out []*model.Notification
	for _, item := range budget.LineItems {
		budgeted := analytics.MonthlyAmount(item)
		if budgeted <= 0 {
			continue
		}
		spent := current.BySubcategory[item.SubcategoryID]
		pct := spent / budgeted * 100

		crossed := -1.0
		for _, th := range p.cfg.BudgetAlertThresholds {
			if pct >= th {
				crossed = th
			}
		}
		if crossed < 0 {
			continue
		}

		priority := model.PriorityMedium
		message := fmt.Sprintf("You've used %.0f%% of your %s budget (%.2f of %.2f).", pct, label(item.SubcategoryID), spent, budgeted)
		switch {
		case crossed > 100:
			priority = model.PriorityUrgent
			message = fmt.Sprintf("You're %.2f over your %s budget.", spent-budgeted, label(item.SubcategoryID))
		case crossed >= 100:
			priority = model.PriorityHigh
			message = fmt.Sprintf("You've exceeded your %s budget!", label(item.SubcategoryID))
		}

		expires := nextMonth
		out = append(out, &model.Notification{
			Type:     model.NotificationBudgetAlert,
			Priority: priority,
			Title:    fmt.Sprintf("Budget Alert: %s", label(item.SubcategoryID)),
			Message:  message,
			DedupKey: fmt.Sprintf("budget:%s:%s:%.0f", budget.ID, item.SubcategoryID, crossed),
			Data: map[string]any{
				"budgetId":       budget.ID,
				"subcategoryId":  item.SubcategoryID,
				"threshold":      crossed,
				"percentageUsed": math.Round(pct*10) / 10,
				"spent":          spent,
				"budgeted":       budgeted,
			},
			ExpiresAt: &expires,
		})
	}
	return out, nil
}

func largeTransactions(p *pass) ([]*model.Notification, error) {
	var out []*model.Notification
	for _, t := range p.snap.Transactions {
		if !t.Category.IsCashflow() || !p.recent(t) || t.AbsAmount() < p.cfg.LargeTransactionAmount {
			continue
		}
		verb := "spent"
		if t.Category == model.CategoryIncome {
			verb = "received"
		}
		out = append(out, &model.Notification{
			Type:     model.NotificationLargeTransaction,
			Priority: model.PriorityMedium,
			Title:    "Large transaction",
			Message:  fmt.Sprintf("You %s %.2f at %s on %s.", verb, t.AbsAmount(), t.Description, t.Date.Format("Jan 2")),
			DedupKey: t.ID,
			Data: map[string]any{
				"transactionId": t.ID,
				"amount":        t.Amount,
				"accountId":     t.AccountID,
			},
		})
	}
	return out, nil
}

// lowBalances skips credit accounts, whose balance is a debt.
func lowBalances(p *pass) ([]*model.Notification, error) {
	var out []*model.Notification
	for _, a := range p.snap.Accounts {
		if a.Type == model.AccountTypeCredit || a.Balance >= p.cfg.LowBalanceThreshold {
			continue
		}
		priority := model.PriorityHigh
		if a.Balance < 0 {
			priority = model.PriorityUrgent
		}
		out = append(out, &model.Notification{
			Type:     model.NotificationLowBalance,
			Priority: priority,
			Title:    fmt.Sprintf("Low balance: %s", a.Name),
			Message:  fmt.Sprintf("%s is down to %.2f, below your %.2f alert.", a.Name, a.Balance, p.cfg.LowBalanceThreshold),
			DedupKey: a.ID,
			Data: map[string]any{
				"accountId": a.ID,
				"balance":   a.Balance,
				"threshold": p.cfg.LowBalanceThreshold,
			},
		})
	}
	return out, nil
}

// reconciliationOverdue flags bank accounts never reconciled or not
// reconciled within the configured number of days.
func reconciliationOverdue(p *pass) ([]*model.Notification, error) {
	cutoff := p.now.AddDate(0, 0, -p.cfg.ReconciliationOverdueDays)
	var out []*model.Notification
	for _, a := range p.snap.Accounts {
		if !a.Type.IsBank() {
			continue
		}
		if a.LastReconciledAt != nil && !a.LastReconciledAt.Before(cutoff) {
			continue
		}
		message := fmt.Sprintf("%s has never been reconciled.", a.Name)
		data := map[string]any{"accountId": a.ID}
		if a.LastReconciledAt != nil {
			days := int(p.now.Sub(*a.LastReconciledAt).Hours() / 24)
			message = fmt.Sprintf("%s was last reconciled %d days ago.", a.Name, days)
			data["daysSinceReconciled"] = days
		}
		out = append(out, &model.Notification{
			Type:     model.NotificationReconciliationOverdue,
			Priority: model.PriorityLow,
			Title:    "Reconciliation overdue",
			Message:  message,
			DedupKey: a.ID,
			Data:     data,
		})
	}
	return out, nil
}

// duplicateTransactions pairs transactions on the same account with the same
// absolute amount within the duplicate window. At least one side of each pair
// must be recent so history is not re-reported.
func duplicateTransactions(p *pass) ([]*model.Notification, error) {
	window := time.Duration(p.cfg.DuplicateWindowDays) * 24 * time.Hour

	groups := make(map[string][]model.Transaction)
	for _, t := range p.snap.Transactions {
		if t.AccountID == "" {
			continue
		}
		key := fmt.Sprintf("%s|%d", t.AccountID, int64(math.Round(t.AbsAmount()*100)))
		groups[key] = append(groups[key], t)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []*model.Notification
	for _, k := range keys {
		g := groups[k]
		if len(g) < 2 {
			continue
		}
		sort.SliceStable(g, func(i, j int) bool { return g[i].Date.Before(g[j].Date) })
		for i := 0; i < len(g); i++ {
			for j := i + 1; j < len(g) && g[j].Date.Sub(g[i].Date) <= window; j++ {
				a, b := g[i], g[j]
				if !p.recent(a) && !p.recent(b) {
					continue
				}
				ids := []string{a.ID, b.ID}
				sort.Strings(ids)
				out = append(out, &model.Notification{
					Type:     model.NotificationDuplicateTransaction,
					Priority: model.PriorityMedium,
					Title:    "Possible duplicate transaction",
					Message:  fmt.Sprintf("Two transactions of %.2f on the same account: %q and %q.", a.AbsAmount(), a.Description, b.Description),
					DedupKey: strings.Join(ids, "|"),
					Data: map[string]any{
						"transactionIds": ids,
						"amount":         a.AbsAmount(),
						"accountId":      a.AccountID,
					},
				})
			}
		}
	}
	return out, nil
}

// uncategorized emits one summary for this month's cashflow transactions
// lacking a subcategory.
func uncategorized(p *pass) ([]*model.Notification, error) {
	start := monthStart(p.now)
	var ids []string
	for _, t := range p.snap.Transactions {
		if t.Category.IsCashflow() && t.SubcategoryID == "" && !t.Date.Before(start) && !t.Date.After(p.now) {
			ids = append(ids, t.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	noun := "transactions need"
	if len(ids) == 1 {
		noun = "transaction needs"
	}
	return []*model.Notification{{
		Type:     model.NotificationUncategorized,
		Priority: model.PriorityLow,
		Title:    "Uncategorized transactions",
		Message:  fmt.Sprintf("%d %s a category this month.", len(ids), noun),
		DedupKey: monthKey(p.now),
		Data:     map[string]any{"count": len(ids), "transactionIds": ids},
	}}, nil
}

// categoryIncreases compares this month's spending per subcategory with last
// month's. Subcategories with no spending last month are skipped.
func categoryIncreases(p *pass) ([]*model.Notification, error) {
	months := monthBuckets(p.snap.Transactions)
	cur := months[monthKey(p.now)]
	prev := months[monthKey(monthStart(p.now).AddDate(0, -1, 0))]

	subs := make([]string, 0, len(cur.BySubcategory))
	for sub := range cur.BySubcategory {
		subs = append(subs, sub)
	}
	sort.Strings(subs)

	var out []*model.Notification
	for _, sub := range subs {
		before := prev.BySubcategory[sub]
		if before <= 0 {
			continue
		}
		after := cur.BySubcategory[sub]
		change := (after - before) / before * 100
		if change < p.cfg.CategoryIncreasePercent {
			continue
		}
		out = append(out, &model.Notification{
			Type:     model.NotificationCategoryIncrease,
			Priority: model.PriorityLow,
			Title:    fmt.Sprintf("%s spending is up", label(sub)),
			Message:  fmt.Sprintf("You've spent %.0f%% more on %s this month (%.2f vs %.2f).", change, label(sub), after, before),
			DedupKey: fmt.Sprintf("%s:%s", sub, cur.Key),
			Data: map[string]any{
				"subcategoryId":    sub,
				"currentAmount":    after,
				"previousAmount":   before,
				"changePercentage": math.Round(change*10) / 10,
			},
		})
	}
	return out, nil
}

// monthlySummary fires on the first day of a month and covers the month
// that just ended.
func monthlySummary(p *pass) ([]*model.Notification, error) {
	if p.now.Day() != 1 {
		return nil, nil
	}
	prevStart := monthStart(p.now).AddDate(0, -1, 0)
	key := monthKey(prevStart)
	b, ok := monthBuckets(p.snap.Transactions)[key]
	if !ok {
		return nil, nil
	}

	topSub, topAmount := "", 0.0
	for sub, v := range b.BySubcategory {
		if v > topAmount || (v == topAmount && sub < topSub) {
			topSub, topAmount = sub, v
		}
	}

	message := fmt.Sprintf("In %s you earned %.2f and spent %.2f (net %.2f).",
		prevStart.Format("January"), b.TotalIncome, b.TotalExpenses, b.Net())
	if topSub != "" {
		message += fmt.Sprintf(" Top category: %s at %.2f.", label(topSub), topAmount)
	}
	return []*model.Notification{{
		Type:     model.NotificationMonthlySummary,
		Priority: model.PriorityLow,
		Title:    fmt.Sprintf("Your %s summary", prevStart.Format("January 2006")),
		Message:  message,
		DedupKey: key,
		Data: map[string]any{
			"month":            key,
			"totalIncome":      b.TotalIncome,
			"totalExpenses":    b.TotalExpenses,
			"net":              b.Net(),
			"topSubcategoryId": topSub,
			"transactionCount": b.TransactionCount,
		},
	}}, nil
}

func recurringWithoutTemplate(p *pass) ([]*model.Notification, error) {
	patterns := analytics.DetectRecurring(p.snap.Transactions, analytics.RecurringOptions{
		SignatureLength: p.cfg.DescriptionSignatureLength,
	})
	var out []*model.Notification
	for _, pat := range analytics.Untracked(patterns, p.snap.Templates) {
		out = append(out, &model.Notification{
			Type:     model.NotificationRecurringNoTemplate,
			Priority: model.PriorityLow,
			Title:    "Recurring payment detected",
			Message: fmt.Sprintf("%s looks like it repeats every %d days (about %.2f). Add it as a recurring transaction to track it.",
				pat.Description, pat.FrequencyDays, pat.AverageAmount),
			DedupKey: pat.Signature,
			Data: map[string]any{
				"signature":     pat.Signature,
				"subcategoryId": pat.SubcategoryID,
				"frequencyDays": pat.FrequencyDays,
				"averageAmount": pat.AverageAmount,
				"confidence":    pat.Confidence,
				"expectedNext":  pat.ExpectedNext.Format(time.RFC3339),
			},
		})
	}
	return out, nil
}
