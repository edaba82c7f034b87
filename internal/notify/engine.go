// Package notify evaluates the notification triggers against a snapshot,
// persists new notifications through an atomic conditional insert and fans
// them out to dispatch sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/castlemilk/pfinance-insights/internal/config"
	"github.com/castlemilk/pfinance-insights/internal/model"
	"github.com/castlemilk/pfinance-insights/internal/store"
)

// TriggerStats counts the outcome of one trigger in a pass.
type TriggerStats struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// PassResult summarises one evaluation pass.
type PassResult struct {
	UserID      string                                   `json:"userId"`
	Triggers    map[model.NotificationType]*TriggerStats `json:"triggers"`
	Created     []*model.Notification                    `json:"created"`
	Purged      int                                      `json:"purged"`
	PurgeError  string                                   `json:"purgeError,omitempty"`
	EvaluatedAt time.Time                                `json:"evaluatedAt"`
}

// Totals sums the trigger stats.
func (r *PassResult) Totals() TriggerStats {
	var t TriggerStats
	for _, s := range r.Triggers {
		t.Created += s.Created
		t.Skipped += s.Skipped
		t.Failed += s.Failed
	}
	return t
}

// pass is the input shared by every trigger of one evaluation.
type pass struct {
	snap *model.Snapshot
	cfg  config.Engine
	now  time.Time
}

type trigger struct {
	typ  model.NotificationType
	eval func(p *pass) ([]*model.Notification, error)
	// eligible, when set, is how long one event keeps qualifying for this
	// trigger. Dedup then spans at least that long so an event is announced
	// once, not once per cooldown.
	eligible func(cfg config.Engine) time.Duration
}

func (t trigger) cooldown(cfg config.Engine) time.Duration {
	d := Cooldown(t.typ)
	if t.eligible != nil {
		if life := t.eligible(cfg); life > d {
			return life
		}
	}
	return d
}

// Engine runs the trigger set. It holds no per-user state; dedup lives in
// the store.
type Engine struct {
	store    store.Store
	cfg      config.Engine
	sinks    []Sink
	triggers []trigger
	log      zerolog.Logger
	newID    func() string
}

// NewEngine builds an engine persisting into s. cfg is copied with defaults
// applied.
func NewEngine(s store.Store, cfg config.Engine, log zerolog.Logger, sinks ...Sink) *Engine {
	return &Engine{
		store:    s,
		cfg:      cfg.WithDefaults(),
		sinks:    sinks,
		triggers: defaultTriggers(),
		log:      log.With().Str("component", "notify").Logger(),
		newID:    func() string { return uuid.New().String() },
	}
}

// Config returns the thresholds the engine evaluates with.
func (e *Engine) Config() config.Engine {
	return e.cfg
}

// Evaluate runs every trigger against snap, then purges expired and
// retention-exceeded notifications. A failing trigger is logged and counted
// without stopping the others.
func (e *Engine) Evaluate(ctx context.Context, snap *model.Snapshot, now time.Time) (*PassResult, error) {
	if snap == nil || snap.UserID == "" {
		return nil, errors.New("evaluate: snapshot without user")
	}

	res := &PassResult{
		UserID:      snap.UserID,
		Triggers:    make(map[model.NotificationType]*TriggerStats, len(e.triggers)),
		Created:     make([]*model.Notification, 0),
		EvaluatedAt: now,
	}
	p := &pass{snap: snap, cfg: e.cfg, now: now}

	for _, tr := range e.triggers {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("evaluate: %w", err)
		}
		if e.cfg.Disabled(string(tr.typ)) {
			continue
		}
		e.runTrigger(ctx, tr, p, res)
	}

	purged, err := e.store.PurgeNotifications(ctx, snap.UserID, now, e.cfg.Retention())
	if err != nil {
		e.log.Error().Err(err).Str("user_id", snap.UserID).Msg("purge failed")
		res.PurgeError = err.Error()
	}
	res.Purged = purged

	totals := res.Totals()
	e.log.Info().
		Str("user_id", snap.UserID).
		Int("created", totals.Created).
		Int("skipped", totals.Skipped).
		Int("failed", totals.Failed).
		Int("purged", res.Purged).
		Msg("notification pass complete")
	return res, nil
}

func (e *Engine) runTrigger(ctx context.Context, tr trigger, p *pass, res *PassResult) {
	stats := &TriggerStats{}
	res.Triggers[tr.typ] = stats
	log := e.log.With().Str("trigger", string(tr.typ)).Str("user_id", p.snap.UserID).Logger()

	defer func() {
		if r := recover(); r != nil {
			stats.Failed++
			log.Error().Interface("panic", r).Msg("trigger panicked")
		}
	}()

	candidates, err := tr.eval(p)
	if err != nil {
		stats.Failed++
		log.Error().Err(err).Msg("trigger failed")
		return
	}

	cooldown := tr.cooldown(p.cfg)
	for _, n := range candidates {
		n.ID = e.newID()
		n.UserID = p.snap.UserID
		n.CreatedAt = p.now

		created, err := e.store.CreateNotificationIfAbsent(ctx, n, cooldown)
		if err != nil {
			stats.Failed++
			log.Error().Err(err).Str("dedup_key", n.DedupKey).Msg("create notification failed")
			continue
		}
		if !created {
			stats.Skipped++
			continue
		}
		stats.Created++
		res.Created = append(res.Created, n)
		e.dispatch(ctx, n)
	}
}

func (e *Engine) dispatch(ctx context.Context, n *model.Notification) {
	for _, s := range e.sinks {
		if err := s.Send(ctx, n); err != nil {
			e.log.Warn().Err(err).Str("sink", s.Name()).Str("notification_id", n.ID).Msg("dispatch failed")
		}
	}
}
