package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/castlemilk/pfinance-insights/internal/analytics"
	"github.com/castlemilk/pfinance-insights/internal/config"
	"github.com/castlemilk/pfinance-insights/internal/model"
	"github.com/castlemilk/pfinance-insights/internal/notify"
	"github.com/castlemilk/pfinance-insights/internal/snapshot"
	"github.com/castlemilk/pfinance-insights/internal/store"
)

var testNow = time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC)

func expenseOn(id string, date time.Time, amount float64, sub, desc string) model.Transaction {
	return model.Transaction{
		ID: id, UserID: "user-123", Date: date, Amount: -amount,
		Category: model.CategoryExpense, SubcategoryID: sub, Description: desc, AccountID: "acct-1",
	}
}

func testSnapshot() *model.Snapshot {
	var txs []model.Transaction
	for i, m := range []time.Month{time.January, time.February, time.March, time.April, time.May, time.June} {
		d := func(day int) time.Time { return time.Date(2024, m, day, 12, 0, 0, 0, time.UTC) }
		txs = append(txs,
			expenseOn(fmt.Sprintf("rent-%d", i), d(1), 1500, "rent", "Landlord"),
			expenseOn(fmt.Sprintf("groc-%d", i), d(12), 300+float64(i)*20, "groceries", "Market"),
			model.Transaction{ID: fmt.Sprintf("pay-%d", i), UserID: "user-123", Date: d(15), Amount: 4000,
				Category: model.CategoryIncome, SubcategoryID: "salary", Description: "Payroll", AccountID: "acct-1"},
		)
	}
	return &model.Snapshot{
		UserID:       "user-123",
		Transactions: txs,
		Budgets: []model.Budget{{
			ID: "budget-1", UserID: "user-123", Name: "Monthly", Status: model.BudgetStatusActive,
			LineItems: []model.LineItem{
				{SubcategoryID: "rent", Amount: 1500, Period: model.PeriodMonthly},
				{SubcategoryID: "groceries", Amount: 300, Period: model.PeriodMonthly},
			},
		}},
		Accounts: []model.Account{{ID: "acct-1", UserID: "user-123", Name: "Everyday", Type: model.AccountTypeChecking, Balance: 2500, LastReconciledAt: &testNow}},
	}
}

func newMemoryService(t *testing.T) (*InsightsService, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	require.NoError(t, mem.ImportSnapshot(context.Background(), testSnapshot()))
	loader := snapshot.NewStoreLoader(mem, 0, zerolog.Nop())
	engine := notify.NewEngine(mem, config.DefaultEngine(), zerolog.Nop())
	svc := NewInsightsService(mem, loader, engine, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc, mem
}

type failingLoader struct{ err error }

func (f failingLoader) Load(ctx context.Context, userID string, now time.Time) (*model.Snapshot, error) {
	return nil, f.err
}

func TestAnalyzePatterns(t *testing.T) {
	svc, _ := newMemoryService(t)

	t.Run("analyses the caller's snapshot", func(t *testing.T) {
		resp, err := svc.AnalyzePatterns(testContextWithUser("user-123"), connect.NewRequest(&AnalyzePatternsRequest{}))
		require.NoError(t, err)

		pa := resp.Msg.Analysis
		assert.Equal(t, analytics.StatusOK, pa.Status)
		assert.True(t, pa.BudgetEfficiency.HasBudget)
		assert.Equal(t, "at-risk", pa.CashflowSustainability.Status, "spending rises every month")
		require.NotEmpty(t, pa.RecurringTransactions)
		assert.Equal(t, "Landlord", pa.RecurringTransactions[0].Description)
	})

	t.Run("empty user is a normal result", func(t *testing.T) {
		resp, err := svc.AnalyzePatterns(testContextWithUser("new-user"), connect.NewRequest(&AnalyzePatternsRequest{}))
		require.NoError(t, err)
		assert.Equal(t, analytics.StatusEmpty, resp.Msg.Analysis.Status)
	})

	t.Run("permission denied for different user", func(t *testing.T) {
		_, err := svc.AnalyzePatterns(testContextWithUser("user-123"), connect.NewRequest(&AnalyzePatternsRequest{UserID: "user-456"}))
		require.Error(t, err)
		assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	})

	t.Run("unauthenticated without claims", func(t *testing.T) {
		_, err := svc.AnalyzePatterns(context.Background(), connect.NewRequest(&AnalyzePatternsRequest{}))
		require.Error(t, err)
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})
}

func TestSnapshotFailureMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want connect.Code
	}{
		{"fetch failure is retryable", &snapshot.FetchError{Source: "store", Part: "transactions", Err: errors.New("timeout")}, connect.CodeUnavailable},
		{"cancellation", context.Canceled, connect.CodeCanceled},
		{"deadline", fmt.Errorf("load: %w", context.DeadlineExceeded), connect.CodeDeadlineExceeded},
		{"anything else is internal", errors.New("bug"), connect.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newMemoryService(t)
			svc.loader = failingLoader{err: tt.err}

			_, err := svc.GetForecast(testContextWithUser("user-123"), connect.NewRequest(&GetForecastRequest{}))
			require.Error(t, err)
			assert.Equal(t, tt.want, connect.CodeOf(err))
		})
	}
}

func TestGetForecast(t *testing.T) {
	svc, _ := newMemoryService(t)

	t.Run("monthly forecast from history", func(t *testing.T) {
		resp, err := svc.GetForecast(testContextWithUser("user-123"), connect.NewRequest(&GetForecastRequest{Horizon: "month"}))
		require.NoError(t, err)

		f := resp.Msg.Forecast
		assert.Equal(t, analytics.StatusOK, resp.Msg.Status)
		assert.Equal(t, model.HorizonMonth, f.Horizon)
		assert.Equal(t, analytics.TrendIncreasing, f.CurrentTrajectory.Direction)
		assert.InDelta(t, 1850, f.Scenarios.Current.MonthlyExpense, 0.01)
		assert.Greater(t, f.Scenarios.Pessimistic.ProjectedTotal, f.Scenarios.Current.ProjectedTotal)
		assert.Greater(t, f.Confidence, 0.0)
	})

	t.Run("invalid horizon", func(t *testing.T) {
		_, err := svc.GetForecast(testContextWithUser("user-123"), connect.NewRequest(&GetForecastRequest{Horizon: "decade"}))
		require.Error(t, err)
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})

	t.Run("invalid scenario", func(t *testing.T) {
		_, err := svc.GetForecast(testContextWithUser("user-123"), connect.NewRequest(&GetForecastRequest{Scenario: "apocalyptic"}))
		require.Error(t, err)
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})
}

func TestGetBudgetVariance(t *testing.T) {
	svc, _ := newMemoryService(t)

	resp, err := svc.GetBudgetVariance(testContextWithUser("user-123"), connect.NewRequest(&GetBudgetVarianceRequest{}))
	require.NoError(t, err)

	msg := resp.Msg
	assert.Equal(t, "budget-1", msg.BudgetID)
	assert.Equal(t, model.PeriodMonthly, msg.Period)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), msg.PeriodStart)

	bySub := map[string]analytics.Variance{}
	for _, v := range msg.Variances {
		bySub[v.SubcategoryID] = v
	}
	assert.Equal(t, analytics.VarianceOver, bySub["groceries"].Status)
	assert.InDelta(t, 100, bySub["groceries"].Variance, 0.001)
	assert.Equal(t, analytics.VarianceWarning, bySub["rent"].Status)
	assert.Equal(t, 2, msg.Compliance.CategoriesWithBudget)
	assert.Equal(t, 1, msg.Compliance.CategoriesOnTrack)
	assert.Equal(t, 50, msg.Compliance.Score)

	_, err = svc.GetBudgetVariance(testContextWithUser("user-123"), connect.NewRequest(&GetBudgetVarianceRequest{Period: "hourly"}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestPeriodWindowStart(t *testing.T) {
	now := time.Date(2024, 8, 14, 15, 0, 0, 0, time.UTC) // Wednesday
	assert.Equal(t, time.Date(2024, 8, 12, 0, 0, 0, 0, time.UTC), PeriodWindowStart(now, model.PeriodWeekly))
	assert.Equal(t, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), PeriodWindowStart(now, model.PeriodMonthly))
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), PeriodWindowStart(now, model.PeriodQuarterly))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), PeriodWindowStart(now, model.PeriodYearly))
}

func TestEvaluateNotifications(t *testing.T) {
	t.Run("owner runs a pass and repeats are deduplicated", func(t *testing.T) {
		svc, mem := newMemoryService(t)
		ctx := testContextWithUser("user-123")

		resp, err := svc.EvaluateNotifications(ctx, connect.NewRequest(&EvaluateNotificationsRequest{}))
		require.NoError(t, err)
		first := resp.Msg.Result.Triggers[model.NotificationBudgetAlert]
		require.NotNil(t, first)
		assert.Equal(t, 2, first.Created, "rent at its budget and groceries over it")

		resp, err = svc.EvaluateNotifications(ctx, connect.NewRequest(&EvaluateNotificationsRequest{}))
		require.NoError(t, err)
		assert.Zero(t, resp.Msg.Result.Totals().Created)

		count, err := mem.GetUnreadNotificationCount(context.Background(), "user-123")
		require.NoError(t, err)
		assert.Equal(t, int32(resp.Msg.Result.Totals().Skipped), count)
	})

	t.Run("scheduler may evaluate any user", func(t *testing.T) {
		svc, _ := newMemoryService(t)
		_, err := svc.EvaluateNotifications(testContextWithScheduler(), connect.NewRequest(&EvaluateNotificationsRequest{UserID: "user-123"}))
		assert.NoError(t, err)
	})

	t.Run("other users may not", func(t *testing.T) {
		svc, _ := newMemoryService(t)
		_, err := svc.EvaluateNotifications(testContextWithUser("user-456"), connect.NewRequest(&EvaluateNotificationsRequest{UserID: "user-123"}))
		assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	})
}

func newMockService(t *testing.T) (*InsightsService, *store.MockStore) {
	ctrl := gomock.NewController(t)
	mockStore := store.NewMockStore(ctrl)
	engine := notify.NewEngine(mockStore, config.DefaultEngine(), zerolog.Nop())
	svc := NewInsightsService(mockStore, snapshot.NewStoreLoader(mockStore, 0, zerolog.Nop()), engine, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc, mockStore
}

func TestListNotifications(t *testing.T) {
	svc, mockStore := newMockService(t)

	tests := []struct {
		name          string
		userID        string
		request       *ListNotificationsRequest
		setupMock     func()
		expectedCode  connect.Code
		expectedCount int
		expectedToken string
	}{
		{
			name:    "list all notifications",
			userID:  "user-123",
			request: &ListNotificationsRequest{UserID: "user-123", PageSize: 20},
			setupMock: func() {
				mockStore.EXPECT().
					ListNotifications(gomock.Any(), "user-123", false, model.NotificationType(""), int32(20), "").
					Return([]*model.Notification{
						{ID: "n1", UserID: "user-123", Title: "Budget Alert"},
						{ID: "n2", UserID: "user-123", Title: "Low balance", IsRead: true},
					}, "next", nil)
				mockStore.EXPECT().GetUnreadNotificationCount(gomock.Any(), "user-123").Return(int32(1), nil)
			},
			expectedCount: 2,
			expectedToken: "next",
		},
		{
			name:    "unread only with type filter and default page size",
			userID:  "user-123",
			request: &ListNotificationsRequest{UnreadOnly: true, Type: model.NotificationLowBalance},
			setupMock: func() {
				mockStore.EXPECT().
					ListNotifications(gomock.Any(), "user-123", true, model.NotificationLowBalance, int32(50), "").
					Return([]*model.Notification{{ID: "n1", UserID: "user-123"}}, "", nil)
				mockStore.EXPECT().GetUnreadNotificationCount(gomock.Any(), "user-123").Return(int32(1), nil)
			},
			expectedCount: 1,
		},
		{
			name:    "unread count failure still returns the page",
			userID:  "user-123",
			request: &ListNotificationsRequest{},
			setupMock: func() {
				mockStore.EXPECT().
					ListNotifications(gomock.Any(), "user-123", false, model.NotificationType(""), int32(50), "").
					Return([]*model.Notification{{ID: "n1", UserID: "user-123"}}, "", nil)
				mockStore.EXPECT().GetUnreadNotificationCount(gomock.Any(), "user-123").Return(int32(0), errors.New("down"))
			},
			expectedCount: 1,
		},
		{
			name:         "permission denied for different user",
			userID:       "user-123",
			request:      &ListNotificationsRequest{UserID: "user-456"},
			setupMock:    func() {},
			expectedCode: connect.CodePermissionDenied,
		},
		{
			name:    "store failure is internal",
			userID:  "user-123",
			request: &ListNotificationsRequest{},
			setupMock: func() {
				mockStore.EXPECT().
					ListNotifications(gomock.Any(), "user-123", false, model.NotificationType(""), int32(50), "").
					Return(nil, "", errors.New("firestore down"))
			},
			expectedCode: connect.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()
			resp, err := svc.ListNotifications(testContextWithUser(tt.userID), connect.NewRequest(tt.request))
			if tt.expectedCode != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.expectedCode, connect.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, resp.Msg.Notifications, tt.expectedCount)
			assert.Equal(t, tt.expectedToken, resp.Msg.NextPageToken)
		})
	}
}

func TestMarkNotificationRead(t *testing.T) {
	svc, mockStore := newMockService(t)

	t.Run("marks own notification", func(t *testing.T) {
		mockStore.EXPECT().GetNotification(gomock.Any(), "n1").Return(&model.Notification{ID: "n1", UserID: "user-123"}, nil)
		mockStore.EXPECT().MarkNotificationRead(gomock.Any(), "n1").Return(nil)

		_, err := svc.MarkNotificationRead(testContextWithUser("user-123"), connect.NewRequest(&MarkNotificationReadRequest{NotificationID: "n1"}))
		assert.NoError(t, err)
	})

	t.Run("cannot mark another user's notification", func(t *testing.T) {
		mockStore.EXPECT().GetNotification(gomock.Any(), "n2").Return(&model.Notification{ID: "n2", UserID: "user-456"}, nil)

		_, err := svc.MarkNotificationRead(testContextWithUser("user-123"), connect.NewRequest(&MarkNotificationReadRequest{NotificationID: "n2"}))
		assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	})

	t.Run("missing notification", func(t *testing.T) {
		mockStore.EXPECT().GetNotification(gomock.Any(), "gone").Return(nil, fmt.Errorf("notification gone: %w", store.ErrNotFound))

		_, err := svc.MarkNotificationRead(testContextWithUser("user-123"), connect.NewRequest(&MarkNotificationReadRequest{NotificationID: "gone"}))
		assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
	})

	t.Run("id is required", func(t *testing.T) {
		_, err := svc.MarkNotificationRead(testContextWithUser("user-123"), connect.NewRequest(&MarkNotificationReadRequest{}))
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})
}

func TestMarkAllAndCount(t *testing.T) {
	svc, mockStore := newMockService(t)

	mockStore.EXPECT().MarkAllNotificationsRead(gomock.Any(), "user-123").Return(nil)
	_, err := svc.MarkAllNotificationsRead(testContextWithUser("user-123"), connect.NewRequest(&MarkAllNotificationsReadRequest{}))
	require.NoError(t, err)

	mockStore.EXPECT().GetUnreadNotificationCount(gomock.Any(), "user-123").Return(int32(4), nil)
	resp, err := svc.GetUnreadNotificationCount(testContextWithUser("user-123"), connect.NewRequest(&GetUnreadNotificationCountRequest{}))
	require.NoError(t, err)
	assert.Equal(t, int32(4), resp.Msg.Count)

	_, err = svc.GetUnreadNotificationCount(testContextWithUser("user-123"), connect.NewRequest(&GetUnreadNotificationCountRequest{UserID: "user-456"}))
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
}

func TestDeleteNotification(t *testing.T) {
	svc, mockStore := newMockService(t)

	mockStore.EXPECT().GetNotification(gomock.Any(), "n1").Return(&model.Notification{ID: "n1", UserID: "user-123"}, nil)
	mockStore.EXPECT().DeleteNotification(gomock.Any(), "n1").Return(nil)
	_, err := svc.DeleteNotification(testContextWithUser("user-123"), connect.NewRequest(&DeleteNotificationRequest{NotificationID: "n1"}))
	require.NoError(t, err)

	mockStore.EXPECT().GetNotification(gomock.Any(), "n2").Return(&model.Notification{ID: "n2", UserID: "user-456"}, nil)
	_, err = svc.DeleteNotification(testContextWithUser("user-123"), connect.NewRequest(&DeleteNotificationRequest{NotificationID: "n2"}))
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
}
