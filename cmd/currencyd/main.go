// currencyd is the local companion daemon for currency recognition. It
// exposes the submission, session, history and reference endpoints over
// HTTP, runs the history sync and audit workers, and owns graceful shutdown
// for all of them.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/sabbirahammad/currency/internal/audit"
	auditmetrics "github.com/sabbirahammad/currency/internal/audit/metrics"
	"github.com/sabbirahammad/currency/internal/detect"
	detecthandler "github.com/sabbirahammad/currency/internal/detect/handler"
	detectmetrics "github.com/sabbirahammad/currency/internal/detect/metrics"
	"github.com/sabbirahammad/currency/internal/history"
	historyhandler "github.com/sabbirahammad/currency/internal/history/handler"
	historymetrics "github.com/sabbirahammad/currency/internal/history/metrics"
	"github.com/sabbirahammad/currency/internal/platform/config"
	"github.com/sabbirahammad/currency/internal/platform/httpserver"
	"github.com/sabbirahammad/currency/internal/platform/logger"
	platformredis "github.com/sabbirahammad/currency/internal/platform/redis"
	referencehandler "github.com/sabbirahammad/currency/internal/reference/handler"
	"github.com/sabbirahammad/currency/internal/session"
	sessionhandler "github.com/sabbirahammad/currency/internal/session/handler"
	sessionmetrics "github.com/sabbirahammad/currency/internal/session/metrics"
	httptransport "github.com/sabbirahammad/currency/internal/transport/http"
	id "github.com/sabbirahammad/currency/pkg/domain"
)

const startupTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized.
		log.Fatalf("failed to load config: %v", err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info("currencyd starting", "addr", cfg.Addr, "store", cfg.Store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startupCtx, cancelStartup := context.WithTimeout(ctx, startupTimeout)
	defer cancelStartup()

	store, closeStore := setupStore(startupCtx, cfg, log)
	defer closeStore()

	emitter, recorder, closeAudit := setupAudit(startupCtx, cfg, log)
	defer closeAudit()

	appID := id.ApplicationID(cfg.ApplicationID).OrDefault()

	var authAPI session.AuthAPI
	if cfg.AuthURL != "" {
		client, err := session.NewHTTPAuthClient(cfg.AuthURL, appID)
		if err != nil {
			log.Error("failed to build identity client", "error", err)
			os.Exit(1)
		}
		authAPI = client
	}

	sessions := session.NewManager(authAPI,
		session.WithLogger(log),
		session.WithMetrics(sessionmetrics.New()),
		session.WithCustomToken(cfg.AuthToken),
		session.WithAudit(emitter),
	)

	historyMetrics := historymetrics.New()
	writer := history.NewWriter(store, sessions, appID,
		history.WithWriterLogger(log),
		history.WithWriterMetrics(historyMetrics),
		history.WithWriterAudit(emitter),
	)
	syncer := history.NewSync(store, sessions, appID,
		history.WithSyncLogger(log),
		history.WithSyncMetrics(historyMetrics),
	)

	detector := detect.NewHTTPClient(cfg.DetectURL)
	detectSvc := detect.NewService(detector,
		detect.WithLogger(log),
		detect.WithMetrics(detectmetrics.New()),
	)

	router := httptransport.New(httptransport.Deps{
		Logger:      log,
		Detect:      detecthandler.New(detectSvc, writer, emitter, log),
		Session:     sessionhandler.New(sessions, log),
		History:     historyhandler.New(syncer, log),
		Reference:   referencehandler.New(),
		Sessions:    sessions,
		HistoryView: syncer,
	})
	srv := httpserver.New(cfg.Addr, router)

	// The identity session is best effort at startup: without it detection
	// still works, only the history surface stays empty.
	if err := sessions.Bootstrap(startupCtx); err != nil {
		log.Warn("session bootstrap failed, continuing without history", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return syncer.Run(gctx)
	})
	if recorder != nil {
		g.Go(func() error {
			return recorder.Run(gctx)
		})
	}
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("currencyd stopped")
}

// setupStore builds the record store named by the config and returns it with
// its cleanup function.
func setupStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (history.RecordStore, func()) {
	switch cfg.Store {
	case config.StoreRedis:
		client, err := platformredis.New(ctx, cfg.RedisURL)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		store := history.NewRedisRecordStore(client.Client)
		return store, func() { _ = client.Close() }

	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Error("failed to ping postgres", "error", err)
			os.Exit(1)
		}
		store := history.NewPostgresRecordStore(db, cfg.PostgresDSN)
		if err := store.EnsureSchema(ctx); err != nil {
			log.Error("failed to prepare postgres schema", "error", err)
			os.Exit(1)
		}
		return store, func() { _ = db.Close() }

	default:
		return history.NewInMemoryRecordStore(), func() {}
	}
}

// setupAudit builds the audit pipeline. Without brokers the emitter is a
// no-op and no worker runs; the returned recorder is nil in that case.
func setupAudit(ctx context.Context, cfg *config.Config, log *slog.Logger) (audit.Emitter, *audit.Recorder, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		log.Info("audit trail disabled, no kafka brokers configured")
		return audit.NopEmitter{}, nil, func() {}
	}

	publisher, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.AuditTopic)
	if err != nil {
		log.Error("failed to build audit publisher", "error", err)
		os.Exit(1)
	}
	if err := publisher.EnsureTopic(ctx); err != nil {
		log.Error("failed to ensure audit topic", "error", err, "topic", cfg.AuditTopic)
		os.Exit(1)
	}

	recorder := audit.NewRecorder(publisher,
		audit.WithLogger(log),
		audit.WithMetrics(auditmetrics.New()),
	)

	closer := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := publisher.Close(closeCtx); err != nil {
			log.Warn("audit publisher close failed", "error", err)
		}
	}
	return recorder, recorder, closer
}
