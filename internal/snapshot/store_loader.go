package snapshot

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/castlemilk/pfinance-insights/internal/model"
	"github.com/castlemilk/pfinance-insights/internal/store"
)

// StoreLoader builds snapshots from a Store, fetching the four collections
// concurrently.
type StoreLoader struct {
	store  store.Store
	window time.Duration
	log    zerolog.Logger
}

// NewStoreLoader returns a loader reading window of history from s. A
// non-positive window uses DefaultWindow.
func NewStoreLoader(s store.Store, window time.Duration, log zerolog.Logger) *StoreLoader {
	if window <= 0 {
		window = DefaultWindow
	}
	return &StoreLoader{store: s, window: window, log: log.With().Str("component", "snapshot").Logger()}
}

func (l *StoreLoader) Load(ctx context.Context, userID string, now time.Time) (*model.Snapshot, error) {
	snap := &model.Snapshot{UserID: userID, TakenAt: now}
	start := now.Add(-l.window)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := l.store.ListTransactions(ctx, userID, &start, &now)
		if err != nil {
			return &FetchError{Source: "store", Part: "transactions", Err: err}
		}
		snap.Transactions = txs
		return nil
	})
	g.Go(func() error {
		budgets, err := l.store.ListBudgets(ctx, userID, false)
		if err != nil {
			return &FetchError{Source: "store", Part: "budgets", Err: err}
		}
		snap.Budgets = budgets
		return nil
	})
	g.Go(func() error {
		accounts, err := l.store.ListAccounts(ctx, userID)
		if err != nil {
			return &FetchError{Source: "store", Part: "accounts", Err: err}
		}
		snap.Accounts = accounts
		return nil
	})
	g.Go(func() error {
		templates, err := l.store.ListRecurringTemplates(ctx, userID)
		if err != nil {
			return &FetchError{Source: "store", Part: "recurring templates", Err: err}
		}
		snap.Templates = templates
		return nil
	})

	if err := g.Wait(); err != nil {
		l.log.Error().Err(err).Str("user_id", userID).Msg("snapshot load failed")
		return nil, err
	}

	l.log.Debug().
		Str("user_id", userID).
		Int("transactions", len(snap.Transactions)).
		Int("budgets", len(snap.Budgets)).
		Int("accounts", len(snap.Accounts)).
		Msg("snapshot loaded")
	return snap, nil
}
