package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/castlemilk/pfinance-insights/internal/config"
	"github.com/castlemilk/pfinance-insights/internal/logger"
	"github.com/castlemilk/pfinance-insights/internal/model"
	"github.com/castlemilk/pfinance-insights/internal/snapshot"
	"github.com/castlemilk/pfinance-insights/internal/store"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	snapshotPath string
	configPath   string
	dbPath       string
	userID       string
	now          string
	jsonOut      bool
	logLevel     string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "pfinsight",
		Short:         "Spending insights, forecasts and alerts",
		Long:          "Analyze a finance snapshot: spending patterns, budget variance, forecasts and notification triggers.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.snapshotPath, "snapshot", "s", "", "Snapshot JSON file")
	pf.StringVarP(&opts.configPath, "config", "c", "", "Engine thresholds TOML file")
	pf.StringVar(&opts.dbPath, "db", "", "SQLite database holding imported snapshots and notifications")
	pf.StringVarP(&opts.userID, "user", "u", "", "User to load from --db when no --snapshot is given")
	pf.StringVar(&opts.now, "now", "", "Evaluate as of this time (RFC3339 or YYYY-MM-DD)")
	pf.BoolVar(&opts.jsonOut, "json", false, "Print JSON instead of tables")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "Log level")

	root.AddCommand(
		newAnalyzeCmd(opts),
		newForecastCmd(opts),
		newVarianceCmd(opts),
		newNotifyCmd(opts),
		newImportCmd(opts),
		newInboxCmd(opts),
		newDemoCmd(opts),
	)
	return root
}

func (o *options) logger(cmd *cobra.Command) zerolog.Logger {
	l := logger.NewWithWriter(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen})
	lvl, err := zerolog.ParseLevel(o.logLevel)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.WarnLevel
	}
	return l.Level(lvl)
}

func (o *options) engineConfig() (config.Engine, error) {
	return config.LoadEngineFile(o.configPath)
}

func (o *options) clock() (time.Time, error) {
	if o.now == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, o.now); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, o.now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now %q: want RFC3339 or YYYY-MM-DD", o.now)
	}
	return t, nil
}

// openStore opens the --db database, or an in-memory store when none is set.
func (o *options) openStore() (store.Store, func() error, error) {
	if o.dbPath == "" {
		return store.NewMemoryStore(), func() error { return nil }, nil
	}
	s, err := store.NewSQLiteStore(o.dbPath)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

// loadSnapshot reads --snapshot, or the --user snapshot from --db.
func (o *options) loadSnapshot(ctx context.Context, cmd *cobra.Command, s store.Store, now time.Time) (*model.Snapshot, error) {
	if o.snapshotPath != "" {
		return snapshot.LoadFile(o.snapshotPath)
	}
	if o.dbPath == "" || o.userID == "" {
		return nil, errors.New("either --snapshot or --db with --user is required")
	}
	return snapshot.NewStoreLoader(s, 0, o.logger(cmd)).Load(ctx, o.userID, now)
}

// prepare resolves the clock, thresholds, store and snapshot for a command.
func (o *options) prepare(cmd *cobra.Command) (*runContext, error) {
	now, err := o.clock()
	if err != nil {
		return nil, err
	}
	cfg, err := o.engineConfig()
	if err != nil {
		return nil, err
	}
	s, closeFn, err := o.openStore()
	if err != nil {
		return nil, err
	}
	snap, err := o.loadSnapshot(cmd.Context(), cmd, s, now)
	if err != nil {
		closeFn()
		return nil, err
	}
	return &runContext{now: now, cfg: cfg, store: s, snap: snap, close: closeFn}, nil
}

type runContext struct {
	now   time.Time
	cfg   config.Engine
	store store.Store
	snap  *model.Snapshot
	close func() error
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
