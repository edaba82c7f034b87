package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"connectrpc.com/connect"
	firebase "firebase.google.com/go/v4"
	"github.com/castlemilk/pfinance-insights/internal/auth"
	"github.com/castlemilk/pfinance-insights/internal/config"
	"github.com/castlemilk/pfinance-insights/internal/demo"
	"github.com/castlemilk/pfinance-insights/internal/logger"
	"github.com/castlemilk/pfinance-insights/internal/notify"
	"github.com/castlemilk/pfinance-insights/internal/service"
	"github.com/castlemilk/pfinance-insights/internal/snapshot"
	"github.com/castlemilk/pfinance-insights/internal/store"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func main() {
	cfg := config.LoadServer()
	log := logger.NewWithLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid server configuration")
	}

	engineCfg, err := config.LoadEngineFile(cfg.EngineConfigFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.EngineConfigFile).Msg("Failed to load engine config")
	}

	ctx := context.Background()

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warn().Err(err).Msg("Close failed")
			}
		}
	}()

	var storeImpl store.Store
	switch cfg.StoreBackend {
	case "memory":
		log.Info().Msg("Using in-memory store for local development")
		memStore := store.NewMemoryStore()
		if cfg.SeedDemo {
			snap := demo.Generate(auth.LocalDevUserID, time.Now().UTC(), 42)
			if err := memStore.ImportSnapshot(ctx, snap); err != nil {
				log.Fatal().Err(err).Msg("Failed to seed demo data")
			}
			log.Info().Int("transactions", len(snap.Transactions)).Str("user", auth.LocalDevUserID).Msg("Seeded demo data")
		}
		storeImpl = memStore
	case "sqlite":
		sqliteStore, err := store.NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.SQLiteDBPath).Msg("Failed to open SQLite store")
		}
		closers = append(closers, sqliteStore.Close)
		log.Info().Str("path", cfg.SQLiteDBPath).Msg("Using SQLite store")
		storeImpl = sqliteStore
	default:
		firestoreClient, err := firestore.NewClient(ctx, cfg.GoogleProjectID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Firestore client")
		}
		closers = append(closers, firestoreClient.Close)
		log.Info().Str("project", cfg.GoogleProjectID).Msg("Using Firestore store")
		storeImpl = store.NewFirestoreStore(firestoreClient)
	}

	loader, loaderClose, err := newLoader(ctx, cfg, storeImpl, log)
	if err != nil {
		log.Fatal().Err(err).Str("source", cfg.SnapshotSource).Msg("Failed to create snapshot source")
	}
	if loaderClose != nil {
		closers = append(closers, loaderClose)
	}

	// The firebase app is shared by token verification and push delivery.
	useFirebaseAuth := !cfg.SkipAuth && cfg.StoreBackend != "memory"
	var app *firebase.App
	if useFirebaseAuth || cfg.FCMEnabled {
		app, err = auth.NewFirebaseApp(ctx, cfg.GoogleProjectID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Firebase app")
		}
	}

	var sinks []notify.Sink
	if cfg.FCMEnabled {
		messagingClient, err := app.Messaging(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create FCM client")
		}
		sinks = append(sinks, notify.NewPushSink(messagingClient, os.Getenv("NOTIFICATION_LINK_URL")))
		log.Info().Msg("Push delivery enabled")
	}
	if cfg.AMQPURL != "" {
		amqpSink, err := notify.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to AMQP broker")
		}
		closers = append(closers, amqpSink.Close)
		sinks = append(sinks, amqpSink)
		log.Info().Str("exchange", cfg.AMQPExchange).Str("queue", cfg.AMQPQueue).Msg("AMQP delivery enabled")
	}

	engine := notify.NewEngine(storeImpl, engineCfg, log, sinks...)
	insightsService := service.NewInsightsService(storeImpl, loader, engine, log)

	interceptors := []connect.Interceptor{
		service.LoggingInterceptor(log),
		auth.DebugAuthInterceptor(cfg.SkipAuth),
	}
	if useFirebaseAuth {
		firebaseAuth, err := auth.NewFirebaseAuth(ctx, app)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Firebase Auth")
		}
		interceptors = append(interceptors, auth.AuthInterceptor(firebaseAuth, service.SchedulerProcedures...))
	} else {
		log.Warn().Msg("Using mock authentication, not for production")
		interceptors = append(interceptors, auth.LocalDevInterceptor(""))
	}

	path, handler := service.NewInsightsServiceHandler(
		insightsService,
		connect.WithInterceptors(interceptors...),
	)

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:1234",
			"http://127.0.0.1:1234",
			"https://pfinance.dev",
			"https://www.pfinance.dev",
			"https://*.vercel.app",
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Connect-Protocol-Version",
			"Connect-Timeout-Ms",
			"Content-Type",
			"User-Agent",
			"X-User-Agent",
			"X-Debug-Impersonate-User",
		},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().
		Str("port", cfg.Port).
		Str("store", cfg.StoreBackend).
		Str("snapshots", cfg.SnapshotSource).
		Int("sinks", len(sinks)).
		Msg("Starting insights server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Server error")
		return
	}

	<-done
	log.Info().Msg("Server stopped")
}

func newLoader(ctx context.Context, cfg *config.Server, s store.Store, log zerolog.Logger) (snapshot.Loader, func() error, error) {
	switch cfg.SnapshotSource {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("creating storage client: %w", err)
		}
		return snapshot.NewGCSSource(client, cfg.SnapshotBucket), client.Close, nil
	case "bigquery":
		client, err := bigquery.NewClient(ctx, cfg.GoogleProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("creating bigquery client: %w", err)
		}
		return snapshot.NewBigQuerySource(client, cfg.BigQueryDataset, 0), client.Close, nil
	default:
		return snapshot.NewStoreLoader(s, 0, log), nil, nil
	}
}
