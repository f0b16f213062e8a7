// Package main implements the coasterd service: one node of the attraction
// fleet operations cluster.
//
// Each process owns a record store of coasters and wagons, joins the shared
// Redis broker for membership and master election, replicates record
// mutations to its peers, and serves the HTTP API.
//
// Architecture:
//
//	┌──────────────────────────────────────────┐
//	│                coasterd                   │
//	├──────────────────────────────────────────┤
//	│  HTTP API:                               │
//	│    /api/coasters*   - Record operations  │
//	│    /api/status      - Capacity report    │
//	│    /api/cluster     - Membership view    │
//	│    /health          - Health check       │
//	├──────────────────────────────────────────┤
//	│  Components:                             │
//	│    Coordinator   - Membership, election  │
//	│    Propagator    - Change replication    │
//	│    Reporter      - Scheduled reports     │
//	│    MemoryStore   - Record storage        │
//	└──────────────────────────────────────────┘
//
// Configuration comes from an optional YAML file (COASTERD_CONFIG, default
// "coasterd.yaml") plus COASTERD_* environment overrides. A node that cannot
// reach Redis runs standalone: the API keeps working, coordination becomes a
// no-op.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/coasterd/internal/broker"
	"github.com/dreamware/coasterd/internal/cluster"
	"github.com/dreamware/coasterd/internal/config"
	"github.com/dreamware/coasterd/internal/replicate"
	"github.com/dreamware/coasterd/internal/status"
	"github.com/dreamware/coasterd/internal/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(getenv("COASTERD_CONFIG", "coasterd.yaml"))
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var bk broker.Broker
	if cfg.RedisAddr != "" {
		bk = broker.NewRedisBroker(cfg.RedisAddr)
	} else {
		bk = broker.NewMemoryBroker()
	}
	defer bk.Close()

	recordStore := store.NewMemoryStore()

	coord := cluster.NewCoordinator(bk, cluster.Config{
		HeartbeatInterval: cfg.HeartbeatInterval(),
		LivenessWindow:    cfg.LivenessWindow(),
	}, logger)
	if err := coord.Start(ctx); err != nil {
		logger.Fatal("failed to start coordinator", zap.Error(err))
	}

	propagator := replicate.NewPropagator(recordStore, coord, logger)
	if err := propagator.Start(ctx); err != nil {
		// Replication is coordination-layer: degrade, don't die.
		logger.Warn("change propagation unavailable", zap.Error(err))
	}

	reporter := status.NewReporter(recordStore, coord, cfg.ReportInterval(), logger)
	go reporter.Run(ctx, func(s status.SystemStatus) {
		logger.Info("system status",
			zap.Int("coasters", s.CoasterCount),
			zap.Int("wagons", s.TotalWagons),
			zap.Int("connected_nodes", s.ConnectedNodes),
			zap.Bool("is_master", s.IsMasterNode))
	})

	srv := newServer(recordStore, propagator, reporter, coord, logger)
	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("coasterd listening",
			zap.String("addr", cfg.Listen),
			zap.String("node_id", coord.NodeID()))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	// Shutdown watchdog: announce departure and drain within the window,
	// then exit regardless.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()

	cancel()
	if err := coord.Stop(shutdownCtx); err != nil {
		logger.Warn("cluster cleanup incomplete", zap.Error(err))
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	logger.Info("coasterd stopped")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
