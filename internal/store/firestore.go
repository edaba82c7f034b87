package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/castlemilk/pfinance-insights/internal/model"
)

const (
	transactionsCollection  = "transactions"
	budgetsCollection       = "budgets"
	accountsCollection      = "accounts"
	templatesCollection     = "recurringTemplates"
	notificationsCollection = "notifications"

	// Firestore rejects batches with more than 500 writes.
	maxBatchWrites = 500
)

// FirestoreStore implements the Store interface using Firestore
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new Firestore-backed store
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{
		client: client,
	}
}

// NOTE: Field names match the firestore struct tags on the model types.

func (s *FirestoreStore) ListTransactions(ctx context.Context, userID string, startDate, endDate *time.Time) ([]model.Transaction, error) {
	query := s.client.Collection(transactionsCollection).Where("UserId", "==", userID)
	if startDate != nil {
		query = query.Where("Date", ">=", *startDate)
	}
	if endDate != nil {
		query = query.Where("Date", "<=", *endDate)
	}
	query = query.OrderBy("Date", firestore.Asc)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	result := make([]model.Transaction, 0, len(docs))
	for _, doc := range docs {
		var t model.Transaction
		if err := doc.DataTo(&t); err != nil {
			return nil, fmt.Errorf("failed to parse transaction %s: %w", doc.Ref.ID, err)
		}
		if t.ID == "" {
			t.ID = doc.Ref.ID
		}
		result = append(result, t)
	}
	return result, nil
}

func (s *FirestoreStore) ListBudgets(ctx context.Context, userID string, includeInactive bool) ([]model.Budget, error) {
	query := s.client.Collection(budgetsCollection).Where("UserId", "==", userID)
	if !includeInactive {
		query = query.Where("Status", "==", string(model.BudgetStatusActive))
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}

	budgets := make([]model.Budget, 0, len(docs))
	for _, doc := range docs {
		var budget model.Budget
		if err := doc.DataTo(&budget); err != nil {
			return nil, fmt.Errorf("failed to parse budget: %w", err)
		}
		if budget.ID == "" {
			budget.ID = doc.Ref.ID
		}
		budgets = append(budgets, budget)
	}
	sort.Slice(budgets, func(i, j int) bool { return budgets[i].ID < budgets[j].ID })
	return budgets, nil
}

func (s *FirestoreStore) ListAccounts(ctx context.Context, userID string) ([]model.Account, error) {
	docs, err := s.client.Collection(accountsCollection).Where("UserId", "==", userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	accounts := make([]model.Account, 0, len(docs))
	for _, doc := range docs {
		var a model.Account
		if err := doc.DataTo(&a); err != nil {
			return nil, fmt.Errorf("failed to parse account: %w", err)
		}
		if a.ID == "" {
			a.ID = doc.Ref.ID
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (s *FirestoreStore) ListRecurringTemplates(ctx context.Context, userID string) ([]model.RecurringTemplate, error) {
	docs, err := s.client.Collection(templatesCollection).Where("UserId", "==", userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring templates: %w", err)
	}

	templates := make([]model.RecurringTemplate, 0, len(docs))
	for _, doc := range docs {
		var t model.RecurringTemplate
		if err := doc.DataTo(&t); err != nil {
			return nil, fmt.Errorf("failed to parse recurring template: %w", err)
		}
		if t.ID == "" {
			t.ID = doc.Ref.ID
		}
		templates = append(templates, t)
	}
	return templates, nil
}

type pendingWrite struct {
	collection string
	id         string
	data       any
}

func (s *FirestoreStore) ImportSnapshot(ctx context.Context, snapshot *model.Snapshot) error {
	if snapshot == nil {
		return nil
	}

	var writes []pendingWrite
	for _, t := range snapshot.Transactions {
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		if t.UserID == "" {
			t.UserID = snapshot.UserID
		}
		writes = append(writes, pendingWrite{transactionsCollection, t.ID, t})
	}
	for _, b := range snapshot.Budgets {
		if b.ID == "" {
			b.ID = uuid.New().String()
		}
		if b.UserID == "" {
			b.UserID = snapshot.UserID
		}
		writes = append(writes, pendingWrite{budgetsCollection, b.ID, b})
	}
	for _, a := range snapshot.Accounts {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.UserID == "" {
			a.UserID = snapshot.UserID
		}
		writes = append(writes, pendingWrite{accountsCollection, a.ID, a})
	}
	for _, t := range snapshot.Templates {
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		if t.UserID == "" {
			t.UserID = snapshot.UserID
		}
		writes = append(writes, pendingWrite{templatesCollection, t.ID, t})
	}

	for start := 0; start < len(writes); start += maxBatchWrites {
		end := min(start+maxBatchWrites, len(writes))
		batch := s.client.Batch()
		for _, w := range writes[start:end] {
			batch.Set(s.client.Collection(w.collection).Doc(w.id), w.data)
		}
		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("failed to import snapshot: %w", err)
		}
	}
	return nil
}

// Notification operations

func (s *FirestoreStore) CreateNotificationIfAbsent(ctx context.Context, n *model.Notification, cooldown time.Duration) (bool, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	coll := s.client.Collection(notificationsCollection)
	ref := coll.Doc(n.ID)

	if cooldown <= 0 {
		if _, err := ref.Create(ctx, n); err != nil {
			return false, fmt.Errorf("failed to create notification: %w", err)
		}
		return true, nil
	}

	dedup := coll.
		Where("UserId", "==", n.UserID).
		Where("Type", "==", string(n.Type)).
		Where("DedupKey", "==", n.DedupKey).
		Where("CreatedAt", ">", cooldownCutoff(n, cooldown)).
		Limit(1)

	var created bool
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// The function may be retried, so reset state on every attempt.
		created = false
		docs, err := tx.Documents(dedup).GetAll()
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			return nil
		}
		if err := tx.Create(ref, n); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to create notification: %w", err)
	}
	return created, nil
}

func (s *FirestoreStore) GetNotification(ctx context.Context, notificationID string) (*model.Notification, error) {
	doc, err := s.client.Collection(notificationsCollection).Doc(notificationID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}

	var n model.Notification
	if err := doc.DataTo(&n); err != nil {
		return nil, fmt.Errorf("failed to parse notification: %w", err)
	}
	return &n, nil
}

func (s *FirestoreStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, typeFilter model.NotificationType, pageSize int32, pageToken string) ([]*model.Notification, string, error) {
	query := s.client.Collection(notificationsCollection).Where("UserId", "==", userID)

	if unreadOnly {
		query = query.Where("IsRead", "==", false)
	}

	if typeFilter != "" {
		query = query.Where("Type", "==", string(typeFilter))
	}

	query = query.OrderBy("CreatedAt", firestore.Desc)

	if pageToken != "" {
		docID, err := DecodePageToken(pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		cursorDoc, err := s.client.Collection(notificationsCollection).Doc(docID).Get(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token document: %w", err)
		}
		query = query.StartAfter(cursorDoc.Data()["CreatedAt"])
	}

	if pageSize <= 0 {
		pageSize = 50
	}
	query = query.Limit(int(pageSize) + 1)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, "", fmt.Errorf("failed to list notifications: %w", err)
	}

	var nextPageToken string
	if len(docs) > int(pageSize) {
		docs = docs[:pageSize]
		nextPageToken = EncodePageToken(docs[pageSize-1].Ref.ID)
	}

	notifications := make([]*model.Notification, 0, len(docs))
	for _, doc := range docs {
		var notification model.Notification
		if err := doc.DataTo(&notification); err != nil {
			return nil, "", fmt.Errorf("failed to parse notification: %w", err)
		}
		notifications = append(notifications, &notification)
	}

	return notifications, nextPageToken, nil
}

func (s *FirestoreStore) MarkNotificationRead(ctx context.Context, notificationID string) error {
	_, err := s.client.Collection(notificationsCollection).Doc(notificationID).Update(ctx, []firestore.Update{
		{Path: "IsRead", Value: true},
		{Path: "ReadAt", Value: time.Now()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
		}
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func (s *FirestoreStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	docs, err := s.client.Collection(notificationsCollection).
		Where("UserId", "==", userID).
		Where("IsRead", "==", false).
		Documents(ctx).GetAll()
	if err != nil {
		return fmt.Errorf("failed to query unread notifications: %w", err)
	}

	now := time.Now()
	refs := make([]*firestore.DocumentRef, len(docs))
	for i, doc := range docs {
		refs[i] = doc.Ref
	}
	return s.batchApply(ctx, refs, func(b *firestore.WriteBatch, ref *firestore.DocumentRef) {
		b.Update(ref, []firestore.Update{
			{Path: "IsRead", Value: true},
			{Path: "ReadAt", Value: now},
		})
	})
}

func (s *FirestoreStore) GetUnreadNotificationCount(ctx context.Context, userID string) (int32, error) {
	docs, err := s.client.Collection(notificationsCollection).
		Where("UserId", "==", userID).
		Where("IsRead", "==", false).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return int32(len(docs)), nil
}

func (s *FirestoreStore) DeleteNotification(ctx context.Context, notificationID string) error {
	ref := s.client.Collection(notificationsCollection).Doc(notificationID)
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

func (s *FirestoreStore) PurgeNotifications(ctx context.Context, userID string, now time.Time, retention time.Duration) (int, error) {
	docs, err := s.client.Collection(notificationsCollection).
		Where("UserId", "==", userID).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("failed to query notifications for purge: %w", err)
	}

	var refs []*firestore.DocumentRef
	for _, doc := range docs {
		var n model.Notification
		if err := doc.DataTo(&n); err != nil {
			continue
		}
		if shouldPurge(&n, now, retention) {
			refs = append(refs, doc.Ref)
		}
	}

	err = s.batchApply(ctx, refs, func(b *firestore.WriteBatch, ref *firestore.DocumentRef) {
		b.Delete(ref)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", err)
	}
	return len(refs), nil
}

func (s *FirestoreStore) batchApply(ctx context.Context, refs []*firestore.DocumentRef, op func(*firestore.WriteBatch, *firestore.DocumentRef)) error {
	for start := 0; start < len(refs); start += maxBatchWrites {
		end := min(start+maxBatchWrites, len(refs))
		batch := s.client.Batch()
		for _, ref := range refs[start:end] {
			op(batch, ref)
		}
		if _, err := batch.Commit(ctx); err != nil {
			return err
		}
	}
	return nil
}
