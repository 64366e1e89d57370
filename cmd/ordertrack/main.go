package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ordertrack/internal/archive"
	"ordertrack/internal/config"
	"ordertrack/internal/console"
	"ordertrack/internal/feed"
	"ordertrack/internal/ledger"
	"ordertrack/internal/observability"
	"ordertrack/internal/service"
	"ordertrack/internal/ticker"
)

func main() {
	log := observability.NewLogger("main")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("create data dir")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()

	// --- Postgres archive (optional) ---
	var archiveChan chan archive.OrderRecord
	archiveDone := make(chan struct{})
	if cfg.ArchiveEnabled {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres open")
		}
		defer db.Close()

		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping")
		}

		migrator := archive.NewMigrator(db, "migrations", observability.NewLogger("migrator"))
		if err := migrator.Up(ctx); err != nil {
			log.Fatal().Err(err).Msg("run migrations")
		}

		archiveChan = make(chan archive.OrderRecord, 1024)
		worker := archive.NewWorker(db, archiveChan, 50, 500*time.Millisecond, observability.NewLogger("archive"), metrics)
		go func() {
			defer close(archiveDone)
			worker.Run(ctx)
		}()
		log.Info().Msg("postgres archive enabled")
	} else {
		close(archiveDone)
	}

	// --- Ledger + service ---
	manager := ledger.NewManager(observability.NewLogger("ledger"))
	var archiveSend chan<- archive.OrderRecord
	if archiveChan != nil {
		archiveSend = archiveChan
	}
	svc := service.New(manager, cfg.SnapshotPath(), observability.NewLogger("service"), metrics, archiveSend)

	if svc.Load() {
		log.Info().Int64("next_order_number", svc.NextOrderNumber()).Msg("orders loaded from snapshot")
	} else {
		log.Info().Msg("starting with an empty ledger")
	}

	// --- Fill feed (optional) ---
	var subscriber *feed.Subscriber
	if cfg.FeedEnabled {
		nc, js, err := feed.Connect(cfg.NATSURL, observability.NewLogger("nats"))
		if err != nil {
			log.Fatal().Err(err).Str("url", cfg.NATSURL).Msg("nats connect")
		}
		defer nc.Close()

		if err := feed.EnsureStream(ctx, js); err != nil {
			log.Fatal().Err(err).Msg("ensure fill stream")
		}

		reportChan := make(chan feed.RawReport, 256)
		subscriber = feed.NewSubscriber(js, reportChan, observability.NewLogger("feed"))
		if err := subscriber.Subscribe(ctx); err != nil {
			log.Fatal().Err(err).Msg("subscribe to fill feed")
		}

		consumer := feed.NewConsumer(svc, reportChan, observability.NewLogger("feed"), metrics)
		go consumer.Run(ctx)
		log.Info().Str("url", cfg.NATSURL).Msg("fill feed enabled")
	}

	// --- Metrics + health HTTP server ---
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthChecker.LivenessHandler)
	mux.HandleFunc("/readyz", healthChecker.ReadinessHandler)
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		metricsServer.Shutdown(shutCtx)
	}()
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server")
		}
	}()

	// --- Ticker table ---
	table, err := ticker.Load(cfg.TickerTablePath(), observability.NewLogger("ticker"))
	if err != nil {
		log.Fatal().Err(err).Msg("load ticker table")
	}

	healthChecker.SetReady(true)
	log.Info().Msg("ordertrack ready")

	// The console owns the foreground; everything else runs alongside it.
	ui := console.New(svc, table, os.Stdin, os.Stdout, observability.NewLogger("console"))
	if err := ui.Run(ctx); err != nil {
		log.Error().Err(err).Msg("console exited with error")
	}

	cancel()

	if subscriber != nil {
		subscriber.Drain()
	}
	if archiveChan != nil {
		close(archiveChan)
	}

	select {
	case <-archiveDone:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("archive worker did not drain in time")
	}

	if err := svc.Save(); err != nil {
		log.Error().Err(err).Msg("final snapshot save failed")
	} else {
		log.Info().Msg("final snapshot saved")
	}
}
