package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/veranda-social/veranda/internal/database/boltstore"
	"github.com/veranda-social/veranda/internal/database/sqlitestore"
	"github.com/veranda-social/veranda/internal/handlers"
	"github.com/veranda-social/veranda/internal/identity"
	"github.com/veranda-social/veranda/internal/metrics"
	"github.com/veranda-social/veranda/internal/moderation"
	"github.com/veranda-social/veranda/internal/routing"
	"github.com/veranda-social/veranda/internal/tracing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Configure zerolog
	// Set log level from environment (default: info)
	logLevel := os.Getenv("LOG_LEVEL")
	switch logLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Use pretty console logging in development, JSON in production
	if os.Getenv("LOG_FORMAT") == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	log.Info().Msg("Starting Veranda moderation service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing is best-effort; the service runs without a collector.
	if tp, err := tracing.Init(ctx); err != nil {
		log.Warn().Err(err).Msg("Tracing disabled")
	} else {
		defer tp.Shutdown(context.Background())
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "18920"
	}

	dbPath := os.Getenv("VERANDA_DB_PATH")
	if dbPath == "" {
		// Default to XDG data directory or home directory for development
		dataDir := os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to get home directory")
			}
			dataDir = filepath.Join(home, ".local", "share")
		}
		dbPath = filepath.Join(dataDir, "veranda", "veranda.db")
	}

	// Store backend: sqlite (default) or bolt.
	var store moderation.Store
	var stats metrics.StatsSource

	switch os.Getenv("VERANDA_DB_BACKEND") {
	case "bolt":
		bs, err := boltstore.Open(boltstore.Options{Path: dbPath})
		if err != nil {
			log.Fatal().Err(err).Str("path", dbPath).Msg("Failed to open database")
		}
		defer bs.Close()
		ms := bs.ModerationStore()
		store = ms
		stats.PendingReportCount = func() int {
			n, err := ms.CountPendingReports(context.Background())
			if err != nil {
				return -1
			}
			return n
		}
		stats.AuditRecordCount = func() int {
			n, err := ms.CountActions(context.Background())
			if err != nil {
				return -1
			}
			return n
		}
		log.Info().Str("path", dbPath).Str("backend", "bolt").Msg("Database opened")

	default:
		db, err := sqlitestore.Open(dbPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", dbPath).Msg("Failed to open database")
		}
		defer db.Close()
		ms := sqlitestore.NewModerationStore(db)
		store = ms
		stats.PendingReportCount = func() int {
			n, err := ms.CountPendingReports(context.Background())
			if err != nil {
				return -1
			}
			return n
		}
		stats.AuditRecordCount = func() int {
			n, err := ms.CountActions(context.Background())
			if err != nil {
				return -1
			}
			return n
		}
		log.Info().Str("path", dbPath).Str("backend", "sqlite").Msg("Database opened")
	}

	// Wire the moderation core.
	cache := moderation.NewRoleCache(moderation.DefaultRoleCacheTTL)
	roles := moderation.NewRoleStore(store, cache)
	resolver := moderation.NewResolver(roles)
	notifier := moderation.NewNotifier()
	reports := moderation.NewReportManager(store, notifier)
	engine := moderation.NewEngine(store, resolver, notifier)

	stats.SessionCount = notifier.Sessions
	metrics.StartCollector(ctx, stats, 30*time.Second)

	handler := handlers.New(store, roles, resolver, reports, engine, notifier)
	router := routing.SetupRouter(routing.Config{
		Handlers: handler,
		Logger:   log.Logger,
		Identity: identity.HeaderMiddleware,
	})

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", port).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("Shutting down")
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}
}
