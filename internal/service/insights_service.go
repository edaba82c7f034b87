package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"

	"github.com/castlemilk/pfinance-insights/internal/auth"
	"github.com/castlemilk/pfinance-insights/internal/config"
	"github.com/castlemilk/pfinance-insights/internal/logger"
	"github.com/castlemilk/pfinance-insights/internal/model"
	"github.com/castlemilk/pfinance-insights/internal/notify"
	"github.com/castlemilk/pfinance-insights/internal/snapshot"
	"github.com/castlemilk/pfinance-insights/internal/store"
)

// InsightsService serves pattern analysis, forecasts, budget variance and
// the notification inbox over connect.
type InsightsService struct {
	store  store.Store
	loader snapshot.Loader
	engine *notify.Engine
	cfg    config.Engine
	log    zerolog.Logger
	now    func() time.Time
}

func NewInsightsService(s store.Store, loader snapshot.Loader, engine *notify.Engine, log zerolog.Logger) *InsightsService {
	return &InsightsService{
		store:  s,
		loader: loader,
		engine: engine,
		cfg:    engine.Config(),
		log:    logger.Component(log, "insights"),
		now:    time.Now,
	}
}

// loadSnapshot fetches the user's data. A failed fetch is Unavailable so
// clients can retry; an empty dataset is not an error.
func (s *InsightsService) loadSnapshot(ctx context.Context, userID string) (*model.Snapshot, error) {
	snap, err := s.loader.Load(ctx, userID, s.now())
	if err == nil {
		return snap, nil
	}

	l := logger.FromContext(ctx)
	l.Error().Err(err).Str("user_id", userID).Msg("snapshot load failed")
	switch {
	case errors.Is(err, context.Canceled):
		return nil, connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return nil, connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, snapshot.ErrFetchFailed):
		return nil, connect.NewError(connect.CodeUnavailable, fmt.Errorf("load financial data: %w", err))
	default:
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("load financial data: %w", err))
	}
}

// storeError maps store failures onto connect codes.
func storeError(operation string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return connect.NewError(connect.CodeNotFound, fmt.Errorf("%s: %w", operation, err))
	}
	return connect.NewError(connect.CodeInternal, auth.WrapStoreError(operation, err))
}
