package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/castlemilk/pfinance-insights/internal/model"
)

// SQLiteStore implements the Store interface on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// applies migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time keeps conditional inserts serialised.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

// Snapshot reads

func (s *SQLiteStore) ListTransactions(ctx context.Context, userID string, startDate, endDate *time.Time) ([]model.Transaction, error) {
	query := `SELECT id, user_id, date, amount, category, subcategory_id, description, account_id, recurring_template_id
		FROM transactions WHERE user_id = ?`
	args := []any{userID}
	if startDate != nil {
		query += " AND date >= ?"
		args = append(args, toNanos(*startDate))
	}
	if endDate != nil {
		query += " AND date <= ?"
		args = append(args, toNanos(*endDate))
	}
	query += " ORDER BY date, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	result := make([]model.Transaction, 0)
	for rows.Next() {
		var (
			t        model.Transaction
			date     int64
			category string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &date, &t.Amount, &category, &t.SubcategoryID, &t.Description, &t.AccountID, &t.RecurringTemplateID); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Date = fromNanos(date)
		if err := t.Category.UnmarshalText([]byte(category)); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) ListBudgets(ctx context.Context, userID string, includeInactive bool) ([]model.Budget, error) {
	query := "SELECT id, user_id, name, status FROM budgets WHERE user_id = ?"
	if !includeInactive {
		query += " AND status IN ('active', '')"
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}

	budgets := make([]model.Budget, 0)
	for rows.Next() {
		var b model.Budget
		var status string
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &status); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		b.Status = model.BudgetStatus(status)
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Line items are read after the budget cursor is closed; the pool has a
	// single connection.
	for i := range budgets {
		items, err := s.listLineItems(ctx, budgets[i].ID)
		if err != nil {
			return nil, err
		}
		budgets[i].LineItems = items
	}
	return budgets, nil
}

func (s *SQLiteStore) listLineItems(ctx context.Context, budgetID string) ([]model.LineItem, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT subcategory_id, amount, period FROM budget_line_items WHERE budget_id = ? ORDER BY position", budgetID)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer rows.Close()

	items := make([]model.LineItem, 0)
	for rows.Next() {
		var item model.LineItem
		var period string
		if err := rows.Scan(&item.SubcategoryID, &item.Amount, &period); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		item.Period = model.Period(period)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) ListAccounts(ctx context.Context, userID string) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, name, type, balance, last_reconciled_at FROM accounts WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]model.Account, 0)
	for rows.Next() {
		var (
			a          model.Account
			accType    string
			reconciled sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &accType, &a.Balance, &reconciled); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Type = model.AccountType(accType)
		a.LastReconciledAt = timePtr(reconciled)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *SQLiteStore) ListRecurringTemplates(ctx context.Context, userID string) ([]model.RecurringTemplate, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, description, subcategory_id, amount, frequency_days FROM recurring_templates WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("query recurring templates: %w", err)
	}
	defer rows.Close()

	templates := make([]model.RecurringTemplate, 0)
	for rows.Next() {
		var t model.RecurringTemplate
		if err := rows.Scan(&t.ID, &t.UserID, &t.Description, &t.SubcategoryID, &t.Amount, &t.FrequencyDays); err != nil {
			return nil, fmt.Errorf("scan recurring template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (s *SQLiteStore) ImportSnapshot(ctx context.Context, snapshot *model.Snapshot) error {
	if snapshot == nil {
		return nil
	}
	owner := func(id string) string {
		if id == "" {
			return snapshot.UserID
		}
		return id
	}
	newID := func(id string) string {
		if id == "" {
			return uuid.New().String()
		}
		return id
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	for _, t := range snapshot.Transactions {
		_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO transactions
			(id, user_id, date, amount, category, subcategory_id, description, account_id, recurring_template_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			newID(t.ID), owner(t.UserID), toNanos(t.Date), t.Amount, t.Category.String(),
			t.SubcategoryID, t.Description, t.AccountID, t.RecurringTemplateID)
		if err != nil {
			return fmt.Errorf("import transaction: %w", err)
		}
	}

	for _, b := range snapshot.Budgets {
		id := newID(b.ID)
		status := b.Status
		if status == "" {
			status = model.BudgetStatusActive
		}
		if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO budgets (id, user_id, name, status) VALUES (?, ?, ?, ?)",
			id, owner(b.UserID), b.Name, string(status)); err != nil {
			return fmt.Errorf("import budget: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM budget_line_items WHERE budget_id = ?", id); err != nil {
			return fmt.Errorf("clear line items: %w", err)
		}
		for i, item := range b.LineItems {
			period := item.Period
			if period == "" {
				period = model.PeriodMonthly
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO budget_line_items (budget_id, position, subcategory_id, amount, period) VALUES (?, ?, ?, ?, ?)",
				id, i, item.SubcategoryID, item.Amount, string(period)); err != nil {
				return fmt.Errorf("import line item: %w", err)
			}
		}
	}

	for _, a := range snapshot.Accounts {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO accounts (id, user_id, name, type, balance, last_reconciled_at) VALUES (?, ?, ?, ?, ?, ?)",
			newID(a.ID), owner(a.UserID), a.Name, string(a.Type), a.Balance, nullNanos(a.LastReconciledAt)); err != nil {
			return fmt.Errorf("import account: %w", err)
		}
	}

	for _, t := range snapshot.Templates {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO recurring_templates (id, user_id, description, subcategory_id, amount, frequency_days) VALUES (?, ?, ?, ?, ?, ?)",
			newID(t.ID), owner(t.UserID), t.Description, t.SubcategoryID, t.Amount, t.FrequencyDays); err != nil {
			return fmt.Errorf("import recurring template: %w", err)
		}
	}

	return tx.Commit()
}

// Notification operations

const notificationColumns = "id, user_id, type, priority, title, message, data, dedup_key, created_at, is_read, read_at, expires_at"

func (s *SQLiteStore) CreateNotificationIfAbsent(ctx context.Context, n *model.Notification, cooldown time.Duration) (bool, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	data, err := json.Marshal(n.Data)
	if err != nil {
		return false, fmt.Errorf("encode notification data: %w", err)
	}

	args := []any{
		n.ID, n.UserID, string(n.Type), string(n.Priority), n.Title, n.Message, string(data), n.DedupKey,
		toNanos(n.CreatedAt), n.IsRead, nullNanos(n.ReadAt), nullNanos(n.ExpiresAt),
	}

	var res sql.Result
	if cooldown <= 0 {
		res, err = s.db.ExecContext(ctx,
			"INSERT INTO notifications ("+notificationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", args...)
	} else {
		args = append(args, n.UserID, string(n.Type), n.DedupKey, toNanos(cooldownCutoff(n, cooldown)))
		res, err = s.db.ExecContext(ctx,
			"INSERT INTO notifications ("+notificationColumns+") "+
				"SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ? "+
				"WHERE NOT EXISTS (SELECT 1 FROM notifications WHERE user_id = ? AND type = ? AND dedup_key = ? AND created_at > ?)",
			args...)
	}
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return affected == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*model.Notification, error) {
	var (
		n         model.Notification
		typ, prio string
		data      string
		createdAt int64
		readAt    sql.NullInt64
		expiresAt sql.NullInt64
	)
	if err := row.Scan(&n.ID, &n.UserID, &typ, &prio, &n.Title, &n.Message, &data, &n.DedupKey,
		&createdAt, &n.IsRead, &readAt, &expiresAt); err != nil {
		return nil, err
	}
	n.Type = model.NotificationType(typ)
	n.Priority = model.Priority(prio)
	n.CreatedAt = fromNanos(createdAt)
	n.ReadAt = timePtr(readAt)
	n.ExpiresAt = timePtr(expiresAt)
	if data != "" && data != "null" {
		if err := json.Unmarshal([]byte(data), &n.Data); err != nil {
			return nil, fmt.Errorf("decode notification data: %w", err)
		}
	}
	return &n, nil
}

func (s *SQLiteStore) GetNotification(ctx context.Context, notificationID string) (*model.Notification, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+notificationColumns+" FROM notifications WHERE id = ?", notificationID)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, typeFilter model.NotificationType, pageSize int32, pageToken string) ([]*model.Notification, string, error) {
	if pageSize <= 0 {
		pageSize = 50
	}

	var where []string
	args := []any{userID}
	where = append(where, "user_id = ?")
	if unreadOnly {
		where = append(where, "is_read = 0")
	}
	if typeFilter != "" {
		where = append(where, "type = ?")
		args = append(args, string(typeFilter))
	}
	if pageToken != "" {
		cursorID, err := DecodePageToken(pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		cursor, err := s.GetNotification(ctx, cursorID)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token document: %w", err)
		}
		// Newest first, ties broken by id ascending.
		where = append(where, "(created_at < ? OR (created_at = ? AND id > ?))")
		c := toNanos(cursor.CreatedAt)
		args = append(args, c, c, cursor.ID)
	}
	args = append(args, pageSize+1)

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+notificationColumns+" FROM notifications WHERE "+strings.Join(where, " AND ")+
			" ORDER BY created_at DESC, id ASC LIMIT ?", args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*model.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to parse notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var nextPageToken string
	if len(notifications) > int(pageSize) {
		notifications = notifications[:pageSize]
		nextPageToken = EncodePageToken(notifications[pageSize-1].ID)
	}
	return notifications, nextPageToken, nil
}

func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, notificationID string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE notifications SET is_read = 1, read_at = ? WHERE id = ?",
		toNanos(time.Now()), notificationID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE notifications SET is_read = 1, read_at = ? WHERE user_id = ? AND is_read = 0",
		toNanos(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUnreadNotificationCount(ctx context.Context, userID string) (int32, error) {
	var count int32
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) DeleteNotification(ctx context.Context, notificationID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM notifications WHERE id = ?", notificationID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) PurgeNotifications(ctx context.Context, userID string, now time.Time, retention time.Duration) (int, error) {
	query := "DELETE FROM notifications WHERE user_id = ? AND ((expires_at IS NOT NULL AND expires_at < ?)"
	args := []any{userID, toNanos(now)}
	if retention > 0 {
		query += " OR created_at < ?"
		args = append(args, toNanos(now.Add(-retention)))
	}
	query += ")"

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	return int(n), nil
}
