package store

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/castlemilk/pfinance-insights/internal/model"
)

//go:generate mockgen -source=store.go -destination=store_mock.go -package=store

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the interface for all database operations used by the service
type Store interface {
	// Snapshot reads. The finance data is owned by another system; these are
	// read-only from the engine's point of view.
	ListTransactions(ctx context.Context, userID string, startDate, endDate *time.Time) ([]model.Transaction, error)
	ListBudgets(ctx context.Context, userID string, includeInactive bool) ([]model.Budget, error)
	ListAccounts(ctx context.Context, userID string) ([]model.Account, error)
	ListRecurringTemplates(ctx context.Context, userID string) ([]model.RecurringTemplate, error)

	// ImportSnapshot seeds finance data for one user. Used by local
	// development and the CLI.
	ImportSnapshot(ctx context.Context, snapshot *model.Snapshot) error

	// Notification operations

	// CreateNotificationIfAbsent inserts n unless a notification with the same
	// user, type and dedup key was created within cooldown before
	// n.CreatedAt. The check and the insert happen atomically. It reports
	// whether n was inserted. A non-positive cooldown always inserts.
	CreateNotificationIfAbsent(ctx context.Context, n *model.Notification, cooldown time.Duration) (bool, error)
	GetNotification(ctx context.Context, notificationID string) (*model.Notification, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, typeFilter model.NotificationType, pageSize int32, pageToken string) ([]*model.Notification, string, error)
	MarkNotificationRead(ctx context.Context, notificationID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	GetUnreadNotificationCount(ctx context.Context, userID string) (int32, error)
	DeleteNotification(ctx context.Context, notificationID string) error
	// PurgeNotifications deletes the user's notifications that expired before
	// now or were created more than retention ago. It returns how many were
	// removed.
	PurgeNotifications(ctx context.Context, userID string, now time.Time, retention time.Duration) (int, error)
}

// EncodePageToken encodes a document ID into a page token.
func EncodePageToken(docID string) string {
	if docID == "" {
		return ""
	}
	return base64.URLEncoding.EncodeToString([]byte(docID))
}

// DecodePageToken decodes a page token back to a document ID.
func DecodePageToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// cooldownCutoff is the earliest CreatedAt that still blocks a new
// notification.
func cooldownCutoff(n *model.Notification, cooldown time.Duration) time.Time {
	return n.CreatedAt.Add(-cooldown)
}

// shouldPurge reports whether n is expired or past retention at now.
func shouldPurge(n *model.Notification, now time.Time, retention time.Duration) bool {
	if n.IsExpired(now) {
		return true
	}
	return retention > 0 && n.CreatedAt.Before(now.Add(-retention))
}

func inRange(t time.Time, startDate, endDate *time.Time) bool {
	if startDate != nil && t.Before(*startDate) {
		return false
	}
	if endDate != nil && t.After(*endDate) {
		return false
	}
	return true
}
