// SPDX-License-Identifier: MIT

// Command atriumd runs the atrium control core as a daemon: it assembles the
// process-lifetime engine instance, walks it through the boot sequence and
// serves the observability/admin API until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atriumxr/atrium/internal/api"
	"github.com/atriumxr/atrium/internal/bridge"
	"github.com/atriumxr/atrium/internal/config"
	"github.com/atriumxr/atrium/internal/engine"
	"github.com/atriumxr/atrium/internal/health"
	"github.com/atriumxr/atrium/internal/journal"
	xlog "github.com/atriumxr/atrium/internal/log"
	"github.com/atriumxr/atrium/internal/memwatch"
	"github.com/atriumxr/atrium/internal/state"
	"github.com/atriumxr/atrium/internal/telemetry"
)

var (
	version   = "v0.3.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until config is loaded.
	xlog.Configure(xlog.Config{
		Level:   "info",
		Service: "atrium",
		Version: version,
	})
	logger := xlog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*configPath, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}
	xlog.Configure(xlog.Config{Level: cfg.LogLevel})
	logger.Info().
		Str("event", "config.loaded").
		Str("path", *configPath).
		Msg("configuration loaded")

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "atrium",
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "telemetry.init_failed").
			Msg("failed to initialize tracing")
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Str("event", "telemetry.shutdown_failed").Msg("tracer shutdown failed")
		}
	}()

	sampler := memwatch.RuntimeSampler{BudgetBytes: cfg.MemoryBudgetBytes()}
	eng := engine.New(engine.Options{
		HistoryCapacity: cfg.HistoryCapacity,
		Policies:        cfg.RecoveryPolicies(),
		MemoryInterval:  cfg.MemoryInterval(),
		MemoryThreshold: cfg.Memory.Threshold,
		Sampler:         sampler,
	})
	defer eng.Cleanup()

	var jrnl *journal.Journal
	if cfg.Journal.Enabled {
		jrnl, err = journal.Open(cfg.Journal.Dir)
		if err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "journal.open_failed").
				Str("dir", cfg.Journal.Dir).
				Msg("failed to open event journal")
		}
		jrnl.Attach(eng.Events)
		defer func() {
			if err := jrnl.Close(); err != nil {
				logger.Warn().Err(err).Str("event", "journal.close_failed").Msg("journal close failed")
			}
		}()
	}

	if cfg.Redis.Enabled {
		br, err := bridge.New(bridge.Config{
			Addr:            cfg.Redis.Addr,
			Password:        cfg.Redis.Password,
			DB:              cfg.Redis.DB,
			ChannelPrefix:   cfg.Redis.ChannelPrefix,
			EventsPerSecond: cfg.Redis.EventsPerSecond,
		})
		if err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "bridge.init_failed").
				Msg("failed to connect the Redis event bridge")
		}
		br.Attach(eng.Events)
		defer func() {
			if err := br.Close(); err != nil {
				logger.Warn().Err(err).Str("event", "bridge.close_failed").Msg("bridge close failed")
			}
		}()
	}

	// Hot reload for the runtime-safe config fields.
	holder := config.NewHolder(cfg, loader, *configPath)
	reloads := make(chan config.Config, 1)
	holder.RegisterListener(reloads)
	if err := holder.StartWatcher(ctx); err != nil {
		logger.Warn().Err(err).Str("event", "config.watcher_failed").Msg("config hot reload unavailable")
	}
	defer holder.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case next := <-reloads:
				xlog.Configure(xlog.Config{Level: next.LogLevel})
				eng.Memory.SetThreshold(next.Memory.Threshold)
			}
		}
	}()

	hm := health.NewManager(version)
	hm.Register(&health.StateChecker{States: eng.States})
	hm.Register(&health.RecoveryChecker{Recovery: eng.Recovery})
	hm.Register(&health.MemoryChecker{Sampler: sampler, Threshold: cfg.Memory.Threshold})

	eng.Start()
	bootSequence(eng)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.New(eng, jrnl, hm).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("event", "api.listening").
			Str("addr", cfg.ListenAddr).
			Msg("serving observability API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Str("event", "daemon.failed").Msg("daemon exited with error")
		os.Exit(1)
	}
	logger.Info().Str("event", "daemon.stopped").Msg("daemon stopped")
}

// bootSequence walks the controller through its startup states. In the full
// application the scene loader drives Loading -> Ready; the daemon stands in
// for it so the engine is explorable immediately.
func bootSequence(eng *engine.Engine) {
	eng.States.Transition(state.Loading, nil)
	eng.States.Transition(state.Ready, nil)
	eng.States.Transition(state.Exploring, nil)
}
