package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/castlemilk/pfinance-insights/internal/config"
	"github.com/castlemilk/pfinance-insights/internal/model"
	"github.com/castlemilk/pfinance-insights/internal/store"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 9, 0, 0, 0, time.UTC)
}

func spend(id string, date time.Time, amount float64, sub, desc, account string) model.Transaction {
	return model.Transaction{
		ID: id, UserID: "user-1", Date: date, Amount: -amount,
		Category: model.CategoryExpense, SubcategoryID: sub, Description: desc, AccountID: account,
	}
}

// fixture triggers every rule except the monthly summary exactly as
// counted in expectedCreated.
func fixture() *model.Snapshot {
	reconciledJune := day(time.June, 1)
	reconciledApril := now.AddDate(0, 0, -60)
	txs := []model.Transaction{
		spend("g-may", day(time.May, 10), 200, "groceries", "Market", "a2"),
		spend("g-jun", day(time.June, 10), 350, "groceries", "Market", "a2"),
		spend("d-may", day(time.May, 5), 125, "dining", "Bistro", "a2"),
		spend("d-jun", day(time.June, 5), 130, "dining", "Bistro", "a2"),
		spend("laptop", day(time.June, 12), 1200, "electronics", "Laptop Store", "a1"),
		spend("beans-1", day(time.June, 13), 45, "coffee", "Coffee Beans", "a1"),
		spend("beans-2", day(time.June, 14), 45, "coffee", "Coffee Beans Co", "a1"),
		{ID: "refund", UserID: "user-1", Date: day(time.June, 3), Amount: 50, Category: model.CategoryIncome, Description: "Refund"},
	}
	for _, m := range []time.Month{time.March, time.April, time.May, time.June} {
		txs = append(txs,
			spend("nf-"+m.String(), day(m, 1), 15.99, "streaming", "Netflix", ""),
			spend("gym-"+m.String(), day(m, 3), 50, "fitness", "Gym", ""),
		)
	}
	return &model.Snapshot{
		UserID:       "user-1",
		Transactions: txs,
		Budgets: []model.Budget{{
			ID: "b1", UserID: "user-1", Name: "Household", Status: model.BudgetStatusActive,
			LineItems: []model.LineItem{
				{SubcategoryID: "groceries", Amount: 400, Period: model.PeriodMonthly},
				{SubcategoryID: "dining", Amount: 100, Period: model.PeriodMonthly},
				{SubcategoryID: "rent", Amount: 1500, Period: model.PeriodMonthly},
			},
		}},
		Accounts: []model.Account{
			{ID: "a1", Name: "Everyday", Type: model.AccountTypeChecking, Balance: 50},
			{ID: "a2", Name: "Savings", Type: model.AccountTypeSavings, Balance: 5000, LastReconciledAt: &reconciledJune},
			{ID: "a3", Name: "Card", Type: model.AccountTypeCredit, Balance: -800, LastReconciledAt: &reconciledApril},
			{ID: "a4", Name: "Wallet", Type: model.AccountTypeCash, Balance: 500},
		},
		Templates: []model.RecurringTemplate{
			{ID: "tpl-gym", Description: "GYM", SubcategoryID: "fitness", Amount: 50, FrequencyDays: 30},
		},
		TakenAt: now,
	}
}

var expectedCreated = map[model.NotificationType]int{
	model.NotificationBudgetAlert:           2,
	model.NotificationLargeTransaction:      1,
	model.NotificationLowBalance:            1,
	model.NotificationReconciliationOverdue: 2,
	model.NotificationDuplicateTransaction:  1,
	model.NotificationUncategorized:         1,
	model.NotificationCategoryIncrease:      1,
	model.NotificationMonthlySummary:        0,
	model.NotificationRecurringNoTemplate:   1,
}

func newTestEngine(s store.Store, sinks ...Sink) *Engine {
	return NewEngine(s, config.DefaultEngine(), zerolog.Nop(), sinks...)
}

func byType(ns []*model.Notification, typ model.NotificationType) []*model.Notification {
	var out []*model.Notification
	for _, n := range ns {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func TestEvaluateFiresEveryTrigger(t *testing.T) {
	mem := store.NewMemoryStore()
	res, err := newTestEngine(mem).Evaluate(context.Background(), fixture(), now)
	require.NoError(t, err)

	for typ, want := range expectedCreated {
		require.Contains(t, res.Triggers, typ)
		assert.Equal(t, want, res.Triggers[typ].Created, "trigger %s", typ)
		assert.Zero(t, res.Triggers[typ].Failed, "trigger %s", typ)
	}
	assert.Equal(t, 10, res.Totals().Created)

	count, err := mem.GetUnreadNotificationCount(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int32(10), count)

	for _, n := range res.Created {
		assert.NotEmpty(t, n.ID)
		assert.Equal(t, "user-1", n.UserID)
		assert.Equal(t, now, n.CreatedAt)
		assert.NotEmpty(t, n.DedupKey)
	}
}

func TestBudgetAlertUsesHighestThreshold(t *testing.T) {
	res, err := newTestEngine(store.NewMemoryStore()).Evaluate(context.Background(), fixture(), now)
	require.NoError(t, err)

	alerts := map[string]*model.Notification{}
	for _, n := range byType(res.Created, model.NotificationBudgetAlert) {
		alerts[n.DedupKey] = n
	}
	require.Len(t, alerts, 2)

	groceries := alerts["budget:b1:groceries:80"]
	require.NotNil(t, groceries)
	assert.Equal(t, model.PriorityMedium, groceries.Priority)
	assert.Equal(t, 87.5, groceries.Data["percentageUsed"])

	dining := alerts["budget:b1:dining:120"]
	require.NotNil(t, dining)
	assert.Equal(t, model.PriorityUrgent, dining.Priority)
	require.NotNil(t, dining.ExpiresAt)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), *dining.ExpiresAt)
}

func TestEvaluateIsIdempotentWithinCooldown(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	engine := newTestEngine(mem)

	_, err := engine.Evaluate(ctx, fixture(), now)
	require.NoError(t, err)

	again, err := engine.Evaluate(ctx, fixture(), now.Add(time.Hour))
	require.NoError(t, err)
	totals := again.Totals()
	assert.Zero(t, totals.Created)
	assert.Equal(t, 10, totals.Skipped)
}

func TestCooldownWindowsPerType(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	engine := newTestEngine(mem)

	_, err := engine.Evaluate(ctx, fixture(), now)
	require.NoError(t, err)

	later, err := engine.Evaluate(ctx, fixture(), now.Add(25*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 2, later.Triggers[model.NotificationBudgetAlert].Created, "24h cooldown elapsed")
	assert.Equal(t, 1, later.Triggers[model.NotificationLowBalance].Created, "24h cooldown elapsed")
	assert.Zero(t, later.Triggers[model.NotificationLargeTransaction].Created, "laptop already announced")
	assert.Equal(t, 1, later.Triggers[model.NotificationLargeTransaction].Skipped)
	assert.Zero(t, later.Triggers[model.NotificationReconciliationOverdue].Created, "72h cooldown still active")
	assert.Zero(t, later.Triggers[model.NotificationDuplicateTransaction].Created, "72h cooldown still active")
	assert.Zero(t, later.Triggers[model.NotificationCategoryIncrease].Created, "168h cooldown still active")
	assert.Zero(t, later.Triggers[model.NotificationRecurringNoTemplate].Created, "168h cooldown still active")
}

func TestTransactionEventsAnnouncedOnce(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	engine := newTestEngine(mem)

	created := map[model.NotificationType]int{}
	for i := 0; i < 5; i++ {
		res, err := engine.Evaluate(ctx, fixture(), now.Add(time.Duration(i)*25*time.Hour))
		require.NoError(t, err)
		for _, n := range res.Created {
			created[n.Type]++
		}
	}

	assert.Equal(t, 1, created[model.NotificationLargeTransaction])
	assert.Equal(t, 1, created[model.NotificationDuplicateTransaction])
	assert.Equal(t, 5, created[model.NotificationLowBalance], "account state re-alerts daily")
}

func TestTriggerCooldownCoversEventLifetime(t *testing.T) {
	cfg := config.DefaultEngine()
	byTyp := map[model.NotificationType]trigger{}
	for _, tr := range defaultTriggers() {
		byTyp[tr.typ] = tr
	}

	assert.Equal(t, 8*24*time.Hour, byTyp[model.NotificationLargeTransaction].cooldown(cfg))
	assert.Equal(t, 10*24*time.Hour, byTyp[model.NotificationDuplicateTransaction].cooldown(cfg))
	assert.Equal(t, CooldownAlert, byTyp[model.NotificationLowBalance].cooldown(cfg))
	assert.Equal(t, CooldownSummary, byTyp[model.NotificationMonthlySummary].cooldown(cfg))
}

func TestDisabledNotificationsAreSkipped(t *testing.T) {
	cfg := config.DefaultEngine()
	cfg.DisabledNotifications = []string{string(model.NotificationLowBalance)}
	engine := NewEngine(store.NewMemoryStore(), cfg, zerolog.Nop())

	res, err := engine.Evaluate(context.Background(), fixture(), now)
	require.NoError(t, err)
	assert.NotContains(t, res.Triggers, model.NotificationLowBalance)
	assert.Empty(t, byType(res.Created, model.NotificationLowBalance))
	assert.Equal(t, 9, res.Totals().Created)
}

func TestConcurrentPassesCreateOnce(t *testing.T) {
	mem := store.NewMemoryStore()
	engine := newTestEngine(mem)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Evaluate(context.Background(), fixture(), now)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := mem.GetUnreadNotificationCount(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int32(10), count)
}

func TestMonthlySummaryOnFirstDay(t *testing.T) {
	firstOfJuly := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	res, err := newTestEngine(store.NewMemoryStore()).Evaluate(context.Background(), fixture(), firstOfJuly)
	require.NoError(t, err)

	summaries := byType(res.Created, model.NotificationMonthlySummary)
	require.Len(t, summaries, 1)
	s := summaries[0]
	assert.Equal(t, "2024-06", s.DedupKey)
	assert.Equal(t, "electronics", s.Data["topSubcategoryId"])
	assert.Equal(t, 50.0, s.Data["totalIncome"])
	assert.Contains(t, s.Message, "June")
}

func TestTriggerPanicIsIsolated(t *testing.T) {
	mem := store.NewMemoryStore()
	engine := newTestEngine(mem)
	engine.triggers = append([]trigger{{
		typ: "exploding",
		eval: func(p *pass) ([]*model.Notification, error) {
			var m map[string]int
			m["boom"]++
			return nil, nil
		},
	}}, engine.triggers...)

	res, err := engine.Evaluate(context.Background(), fixture(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Triggers["exploding"].Failed)
	assert.Equal(t, 10, res.Totals().Created)
}

func TestStoreFailureIsIsolated(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := store.NewMockStore(ctrl)

	mock.EXPECT().CreateNotificationIfAbsent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, n *model.Notification, cooldown time.Duration) (bool, error) {
			if n.Type == model.NotificationBudgetAlert {
				return false, errors.New("unavailable")
			}
			assert.GreaterOrEqual(t, cooldown, Cooldown(n.Type))
			return true, nil
		}).Times(10)
	mock.EXPECT().PurgeNotifications(gomock.Any(), "user-1", now, 30*24*time.Hour).Return(0, errors.New("purge down"))

	res, err := newTestEngine(mock).Evaluate(context.Background(), fixture(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Triggers[model.NotificationBudgetAlert].Failed)
	assert.Equal(t, 8, res.Totals().Created)
	assert.Equal(t, "purge down", res.PurgeError)
}

func TestEvaluatePurgesOldNotifications(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	old := &model.Notification{
		ID: "old", UserID: "user-1", Type: model.NotificationLowBalance, DedupKey: "gone",
		CreatedAt: now.AddDate(0, 0, -40),
	}
	_, err := mem.CreateNotificationIfAbsent(ctx, old, 0)
	require.NoError(t, err)

	res, err := newTestEngine(mem).Evaluate(ctx, fixture(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Purged)

	_, err = mem.GetNotification(ctx, "old")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEvaluateRejectsMissingUser(t *testing.T) {
	_, err := newTestEngine(store.NewMemoryStore()).Evaluate(context.Background(), &model.Snapshot{}, now)
	assert.Error(t, err)
}

func TestEmptySnapshotCreatesNothing(t *testing.T) {
	res, err := newTestEngine(store.NewMemoryStore()).Evaluate(context.Background(), &model.Snapshot{UserID: "user-1"}, now)
	require.NoError(t, err)
	assert.Zero(t, res.Totals().Created)
	assert.Empty(t, res.Created)
}

func TestCooldownTable(t *testing.T) {
	tests := []struct {
		typ  model.NotificationType
		want time.Duration
	}{
		{model.NotificationBudgetAlert, 24 * time.Hour},
		{model.NotificationLargeTransaction, 24 * time.Hour},
		{model.NotificationLowBalance, 24 * time.Hour},
		{model.NotificationReconciliationOverdue, 72 * time.Hour},
		{model.NotificationDuplicateTransaction, 72 * time.Hour},
		{model.NotificationUncategorized, 72 * time.Hour},
		{model.NotificationCategoryIncrease, 168 * time.Hour},
		{model.NotificationRecurringNoTemplate, 168 * time.Hour},
		{model.NotificationMonthlySummary, 720 * time.Hour},
		{"something_else", 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.want, Cooldown(tt.typ))
		})
	}
}
