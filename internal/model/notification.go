package model

import "time"

// NotificationType identifies the trigger that produced a notification.
type NotificationType string

const (
	NotificationBudgetAlert           NotificationType = "budget_alert"
	NotificationLargeTransaction      NotificationType = "large_transaction"
	NotificationLowBalance            NotificationType = "low_balance"
	NotificationReconciliationOverdue NotificationType = "reconciliation_overdue"
	NotificationDuplicateTransaction  NotificationType = "duplicate_transaction"
	NotificationUncategorized         NotificationType = "uncategorized_transaction"
	NotificationCategoryIncrease      NotificationType = "category_increase"
	NotificationMonthlySummary        NotificationType = "monthly_summary"
	NotificationRecurringNoTemplate   NotificationType = "recurring_without_template"
)

// Priority orders notifications for display.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Notification is the only record this engine owns and persists.
type Notification struct {
	ID        string           `json:"id" firestore:"Id"`
	UserID    string           `json:"userId" firestore:"UserId"`
	Type      NotificationType `json:"type" firestore:"Type"`
	Priority  Priority         `json:"priority" firestore:"Priority"`
	Title     string           `json:"title" firestore:"Title"`
	Message   string           `json:"message" firestore:"Message"`
	Data      map[string]any   `json:"data,omitempty" firestore:"Data"`
	DedupKey  string           `json:"dedupKey" firestore:"DedupKey"`
	CreatedAt time.Time        `json:"createdAt" firestore:"CreatedAt"`
	IsRead    bool             `json:"isRead" firestore:"IsRead"`
	ReadAt    *time.Time       `json:"readAt,omitempty" firestore:"ReadAt"`
	ExpiresAt *time.Time       `json:"expiresAt,omitempty" firestore:"ExpiresAt"`
}

// IsExpired reports whether the notification has passed its expiry.
func (n *Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && n.ExpiresAt.Before(now)
}
