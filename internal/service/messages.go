package service

import (
	"time"

	"github.com/castlemilk/pfinance-insights/internal/analytics"
	"github.com/castlemilk/pfinance-insights/internal/model"
	"github.com/castlemilk/pfinance-insights/internal/notify"
)

// Request and response messages of pfinance.insights.v1.InsightsService.
// An empty UserID means the authenticated caller.

type AnalyzePatternsRequest struct {
	UserID string `json:"userId"`
}

type AnalyzePatternsResponse struct {
	Analysis analytics.PatternAnalysis `json:"analysis"`
}

type GetForecastRequest struct {
	UserID   string `json:"userId"`
	Horizon  string `json:"horizon"`
	Scenario string `json:"scenario"`
}

type GetForecastResponse struct {
	Status   analytics.ResultStatus `json:"status"`
	Forecast analytics.Forecast     `json:"forecast"`
}

type GetBudgetVarianceRequest struct {
	UserID string `json:"userId"`
	// Period is the comparison window, defaulting to monthly. Line items are
	// normalized into it.
	Period string `json:"period"`
}

type GetBudgetVarianceResponse struct {
	Status      analytics.ResultStatus `json:"status"`
	BudgetID    string                 `json:"budgetId,omitempty"`
	Period      model.Period           `json:"period"`
	PeriodStart time.Time              `json:"periodStart"`
	Variances   []analytics.Variance   `json:"variances"`
	Compliance  analytics.Compliance   `json:"compliance"`
}

type EvaluateNotificationsRequest struct {
	UserID string `json:"userId"`
}

type EvaluateNotificationsResponse struct {
	Result *notify.PassResult `json:"result"`
}

type ListNotificationsRequest struct {
	UserID     string                 `json:"userId"`
	UnreadOnly bool                   `json:"unreadOnly"`
	Type       model.NotificationType `json:"type,omitempty"`
	PageSize   int32                  `json:"pageSize"`
	PageToken  string                 `json:"pageToken,omitempty"`
}

type ListNotificationsResponse struct {
	Notifications []*model.Notification `json:"notifications"`
	NextPageToken string                `json:"nextPageToken,omitempty"`
	UnreadCount   int32                 `json:"unreadCount"`
}

type MarkNotificationReadRequest struct {
	NotificationID string `json:"notificationId"`
}

type MarkNotificationReadResponse struct{}

type MarkAllNotificationsReadRequest struct {
	UserID string `json:"userId"`
}

type MarkAllNotificationsReadResponse struct{}

type GetUnreadNotificationCountRequest struct {
	UserID string `json:"userId"`
}

type GetUnreadNotificationCountResponse struct {
	Count int32 `json:"count"`
}

type DeleteNotificationRequest struct {
	NotificationID string `json:"notificationId"`
}

type DeleteNotificationResponse struct{}
