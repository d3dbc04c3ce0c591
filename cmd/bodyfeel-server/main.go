package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bodyfeel/internal/config"
	"bodyfeel/internal/db"
	"bodyfeel/internal/emotion"
	"bodyfeel/internal/mapping"
	"bodyfeel/internal/mqtt"
	"bodyfeel/internal/terminals"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Error("load config failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store mapping.Store
	if cfg.DBDSN != "" {
		pg, err := db.New(ctx, cfg.DBDSN)
		if err != nil {
			logger.Error("connect db failed", "error", err)
			os.Exit(1)
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Error("migrate db failed", "error", err)
			os.Exit(1)
		}
		store = pg
		logger.Info("using postgres storage")
	} else {
		store = mapping.NewMemoryStore()
		logger.Info("DB_DSN not set, using in-memory storage")
	}
	defer store.Close()

	mappingSvc, err := mapping.NewService(store, logger)
	if err != nil {
		logger.Error("init mapping service failed", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	chain, err := emotion.BuildChain(ctx, cfg.Chain(), logger, emotion.MustNewMetrics(reg))
	if err != nil {
		logger.Error("init analysis chain failed", "error", err)
		os.Exit(1)
	}

	registry := terminals.NewRegistry(cfg.TerminalTTL)
	if cfg.MQTTBrokerURL != "" {
		hub := mqtt.NewHub(cfg.Hub(), chain, mappingSvc, registry, logger)
		if err := hub.Start(ctx); err != nil {
			logger.Error("start mqtt hub failed", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("MQTT_BROKER_URL not set, terminal hub disabled")
	}

	srv := &server{
		chain:        chain,
		mappings:     mappingSvc,
		registry:     registry,
		metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		logger:       logger,
		maxBodyBytes: cfg.MaxBodyBytes,
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("bodyfeel server started", "addr", cfg.HTTPAddr, "providers", chain.Providers())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}
