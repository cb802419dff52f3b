package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cuemby/frontier/pkg/config"
	"github.com/cuemby/frontier/pkg/controller"
	"github.com/cuemby/frontier/pkg/health"
	"github.com/cuemby/frontier/pkg/log"
	"github.com/cuemby/frontier/pkg/metrics"
	"github.com/cuemby/frontier/pkg/raftlog"
	"github.com/cuemby/frontier/pkg/storage"
	"github.com/cuemby/frontier/pkg/ts"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the controller daemon",
	RunE:  runServe,
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLogging(cfg.LogLevel, cfg.LogJSON)
	logger := log.WithComponent("controllerd")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("controllerd: create data dir: %w", err)
	}

	shardStore, err := storage.NewBoltShardStore(filepath.Join(cfg.DataDir, "shards.db"), ts.Int64Domain)
	if err != nil {
		return fmt.Errorf("controllerd: open shard store: %w", err)
	}
	defer shardStore.Close()

	catalog, err := storage.NewBoltCatalog(filepath.Join(cfg.DataDir, "catalog.db"))
	if err != nil {
		return fmt.Errorf("controllerd: open catalog: %w", err)
	}
	defer catalog.Close()

	channel := controller.NewChannelWorkerChannel[int64](64)
	ctrl := controller.New[int64](ts.Int64Domain, shardStore, catalog, channel)
	defer ctrl.Shutdown()

	drainCtx, cancelDrain := context.WithCancel(context.Background())
	defer cancelDrain()
	go drainWorkerCommands(drainCtx, channel, logger)

	healthRegistry := health.NewRegistry()

	var node *raftlog.Node
	if cfg.Raft.Enabled {
		fsm := raftlog.NewControllerFSM[int64](ts.Int64Domain, ctrl, log.WithComponent("raftlog"))
		node = raftlog.NewNode(raftlog.Config{
			NodeID:   cfg.Raft.NodeID,
			BindAddr: cfg.Raft.BindAddr,
			DataDir:  filepath.Join(cfg.DataDir, "raft"),
		}, fsm)

		if len(cfg.Raft.Peers) == 0 {
			if err := node.Bootstrap(); err != nil {
				return fmt.Errorf("controllerd: bootstrap raft: %w", err)
			}
		} else {
			if err := node.Join(); err != nil {
				return fmt.Errorf("controllerd: join raft: %w", err)
			}
		}
		defer node.Shutdown()

		healthRegistry.Register("raft", raftHealthChecker{node: node})
	}

	metrics.SetVersion(Version)
	metrics.RegisterComponent("raft", !cfg.Raft.Enabled || node.IsLeader(), "")
	metrics.RegisterComponent("storage", true, "ready")
	metrics.RegisterComponent("catalog", true, "ready")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	mux.HandleFunc("/healthz", healthzHandler(healthRegistry))

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics and health endpoints listening")

	refreshTicker := time.NewTicker(2 * time.Second)
	defer refreshTicker.Stop()
	refreshDone := make(chan struct{})
	go func() {
		defer close(refreshDone)
		for {
			select {
			case <-refreshTicker.C:
				if node != nil {
					node.Refresh()
					metrics.RegisterComponent("raft", node.IsLeader() || !cfg.Raft.Enabled, "")
				}
			case <-drainCtx.Done():
				return
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	logger.Info().Str("bind_addr", cfg.BindAddr).Bool("raft_enabled", cfg.Raft.Enabled).Msg("controller started")

	select {
	case <-sigCh:
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("metrics server shutdown error")
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

func drainWorkerCommands(ctx context.Context, channel *controller.ChannelWorkerChannel[int64], logger zerolog.Logger) {
	for {
		select {
		case cmd, ok := <-channel.Outbound():
			if !ok {
				return
			}
			logger.Debug().
				Int("create_sources", len(cmd.CreateSources)).
				Int("allow_compaction", len(cmd.AllowCompaction)).
				Msg("worker command dispatched")
		case <-ctx.Done():
			return
		}
	}
}

// raftHealthChecker adapts raftlog.Node to health.Checker so its liveness
// (this node has an elected leader somewhere, itself or a peer) is part of
// the controller's readiness surface.
type raftHealthChecker struct {
	node *raftlog.Node
}

func (r raftHealthChecker) Check(ctx context.Context) health.Result {
	healthy := r.node.LeaderAddr() != ""
	msg := "leader known"
	if !healthy {
		msg = "no leader elected"
	}
	return health.Result{Healthy: healthy, Message: msg, CheckedAt: time.Now()}
}

func (r raftHealthChecker) Type() health.CheckType { return health.CheckTypeExec }

// healthzHandler runs every checker registered with reg (currently just
// "raft" when HA replication is enabled) and reports 503 if any is
// unhealthy, distinct from /health's static component snapshot.
func healthzHandler(reg *health.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := reg.CheckAll(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !health.Healthy(results) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, "%v\n", results)
	}
}
