package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/castlemilk/pfinance-insights/internal/model"
)

// MemoryStore implements Store interface with in-memory storage
type MemoryStore struct {
	mu sync.RWMutex

	// Storage maps
	transactions  map[string]model.Transaction
	budgets       map[string]model.Budget
	accounts      map[string]model.Account
	templates     map[string]model.RecurringTemplate
	notifications map[string]*model.Notification

	now func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions:  make(map[string]model.Transaction),
		budgets:       make(map[string]model.Budget),
		accounts:      make(map[string]model.Account),
		templates:     make(map[string]model.RecurringTemplate),
		notifications: make(map[string]*model.Notification),
		now:           time.Now,
	}
}

// Snapshot reads

func (m *MemoryStore) ListTransactions(ctx context.Context, userID string, startDate, endDate *time.Time) ([]model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]model.Transaction, 0)
	for _, t := range m.transactions {
		if t.UserID != userID || !inRange(t.Date, startDate, endDate) {
			continue
		}
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date.Equal(result[j].Date) {
			return result[i].ID < result[j].ID
		}
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

func (m *MemoryStore) ListBudgets(ctx context.Context, userID string, includeInactive bool) ([]model.Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]model.Budget, 0)
	for _, b := range m.budgets {
		if b.UserID != userID {
			continue
		}
		if !includeInactive && !b.IsActive() {
			continue
		}
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStore) ListAccounts(ctx context.Context, userID string) ([]model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]model.Account, 0)
	for _, a := range m.accounts {
		if a.UserID == userID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStore) ListRecurringTemplates(ctx context.Context, userID string) ([]model.RecurringTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]model.RecurringTemplate, 0)
	for _, t := range m.templates {
		if t.UserID == userID {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStore) ImportSnapshot(ctx context.Context, snapshot *model.Snapshot) error {
	if snapshot == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range snapshot.Transactions {
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		if t.UserID == "" {
			t.UserID = snapshot.UserID
		}
		m.transactions[t.ID] = t
	}
	for _, b := range snapshot.Budgets {
		if b.ID == "" {
			b.ID = uuid.New().String()
		}
		if b.UserID == "" {
			b.UserID = snapshot.UserID
		}
		m.budgets[b.ID] = b
	}
	for _, a := range snapshot.Accounts {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.UserID == "" {
			a.UserID = snapshot.UserID
		}
		m.accounts[a.ID] = a
	}
	for _, t := range snapshot.Templates {
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		if t.UserID == "" {
			t.UserID = snapshot.UserID
		}
		m.templates[t.ID] = t
	}
	return nil
}

// Notification operations

func (m *MemoryStore) CreateNotificationIfAbsent(ctx context.Context, n *model.Notification, cooldown time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = m.now()
	}

	if cooldown > 0 {
		cutoff := cooldownCutoff(n, cooldown)
		for _, existing := range m.notifications {
			if existing.UserID != n.UserID || existing.Type != n.Type || existing.DedupKey != n.DedupKey {
				continue
			}
			if existing.CreatedAt.After(cutoff) {
				return false, nil
			}
		}
	}

	stored := *n
	m.notifications[n.ID] = &stored
	return true, nil
}

func (m *MemoryStore) GetNotification(ctx context.Context, notificationID string) (*model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.notifications[notificationID]
	if !ok {
		return nil, fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}
	out := *n
	return &out, nil
}

func (m *MemoryStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, typeFilter model.NotificationType, pageSize int32, pageToken string) ([]*model.Notification, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Collect matching notifications
	var matching []*model.Notification
	for _, n := range m.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		if typeFilter != "" && n.Type != typeFilter {
			continue
		}
		copied := *n
		matching = append(matching, &copied)
	}

	// Sort by created_at descending (newest first)
	sort.Slice(matching, func(i, j int) bool {
		if matching[i].CreatedAt.Equal(matching[j].CreatedAt) {
			return matching[i].ID < matching[j].ID
		}
		return matching[i].CreatedAt.After(matching[j].CreatedAt)
	})

	// Paginate
	if pageSize <= 0 {
		pageSize = 50
	}

	startIdx := 0
	if pageToken != "" {
		cursorID, err := DecodePageToken(pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		for i, n := range matching {
			if n.ID == cursorID {
				startIdx = i + 1
				break
			}
		}
	}

	if startIdx >= len(matching) {
		return nil, "", nil
	}

	matching = matching[startIdx:]
	var nextToken string
	if int32(len(matching)) > pageSize {
		nextToken = EncodePageToken(matching[pageSize-1].ID)
		matching = matching[:pageSize]
	}

	return matching, nextToken, nil
}

func (m *MemoryStore) MarkNotificationRead(ctx context.Context, notificationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	notification, ok := m.notifications[notificationID]
	if !ok {
		return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}

	now := m.now()
	notification.IsRead = true
	notification.ReadAt = &now
	return nil
}

func (m *MemoryStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, notification := range m.notifications {
		if notification.UserID == userID && !notification.IsRead {
			notification.IsRead = true
			notification.ReadAt = &now
		}
	}
	return nil
}

func (m *MemoryStore) GetUnreadNotificationCount(ctx context.Context, userID string) (int32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int32
	for _, notification := range m.notifications {
		if notification.UserID == userID && !notification.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) DeleteNotification(ctx context.Context, notificationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.notifications[notificationID]; !ok {
		return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}
	delete(m.notifications, notificationID)
	return nil
}

func (m *MemoryStore) PurgeNotifications(ctx context.Context, userID string, now time.Time, retention time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for id, n := range m.notifications {
		if n.UserID != userID || !shouldPurge(n, now, retention) {
			continue
		}
		delete(m.notifications, id)
		purged++
	}
	return purged, nil
}
