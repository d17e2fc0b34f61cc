// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/theredstring/bridge/internal/auditor"
	"github.com/theredstring/bridge/internal/config"
	"github.com/theredstring/bridge/internal/coordinator"
	"github.com/theredstring/bridge/internal/executor"
	"github.com/theredstring/bridge/internal/httpapi"
	"github.com/theredstring/bridge/internal/llmclient"
	"github.com/theredstring/bridge/internal/logging"
	"github.com/theredstring/bridge/internal/mirror"
	"github.com/theredstring/bridge/internal/model"
	"github.com/theredstring/bridge/internal/planner"
	"github.com/theredstring/bridge/internal/profiles"
	"github.com/theredstring/bridge/internal/queue"
	"github.com/theredstring/bridge/internal/scheduler"
	"github.com/theredstring/bridge/internal/tools"
	"github.com/theredstring/bridge/internal/tracer"
)

var (
	serveProfileDir string
	serveLogDir     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the UI/agent HTTP surface",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveProfileDir, "profile-dir", "./.bridge/profiles", "directory for the C13 profile store")
	serveCmd.Flags().StringVar(&serveLogDir, "log-dir", "", "optional directory for file logging, alongside stderr")
}

// sweepable is the subset of queue.Queue[T] the lease-expiry background
// task needs; named locally since T differs across the queues passed to
// sweepLeases.
type sweepable interface {
	SweepExpiredLeases() int
}

// sweepLeases periodically reclaims expired leases on every queue that
// carries a real timeout (goalQueue/patchQueue use an effectively-zero
// timeout and are swept implicitly by Pull's eligibility check).
func sweepLeases(ctx context.Context, queues ...sweepable) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, q := range queues {
				q.SweepExpiredLeases()
			}
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(logging.Config{Level: logging.LevelInfo, Service: "bridge", LogDir: serveLogDir})
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	profileStore, err := profiles.Open(serveProfileDir)
	if err != nil {
		return fmt.Errorf("opening profile store: %w", err)
	}
	defer profileStore.Close()

	m := mirror.New()
	registry := tools.NewRegistry()

	queues := scheduler.Queues{
		Goal:   queue.New[model.Goal]("goalQueue", 0),
		Task:   queue.New[model.Task]("taskQueue", 45*time.Second),
		Patch:  queue.New[model.Patch]("patchQueue", 0),
		Review: queue.New[model.Review]("reviewQueue", 5*time.Minute),
	}

	pl := planner.New(queues.Task)
	ex := executor.New(m, queues.Patch, registry, nil)
	au := auditor.New()
	trace := tracer.New("github.com/theredstring/bridge")

	sched := scheduler.New(scheduler.DefaultConfig(), queues, pl, ex, au, m, scheduler.WithTracer(trace))

	active, ok, err := profileStore.GetActive()
	if err != nil {
		return fmt.Errorf("reading active profile: %w", err)
	}

	var llm *llmclient.Client
	if ok {
		llm = llmclient.New(profileStore.Reveal(active), active.Model, registry)
	} else {
		slog.Warn("no active provider profile; agent turns will report a missing API key until one is configured via `bridge profile`")
		llm = llmclient.New("", "", registry)
	}

	coord := coordinator.New(llm, registry, queues.Goal, sched)

	router := httpapi.New(&httpapi.Server{
		Mirror:      m,
		ReviewQueue: queues.Review,
		Coordinator: coord,
		Scheduler:   sched,
		ServiceName: "bridge",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	go sweepLeases(ctx, queues.Task, queues.Review)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: router}

	serveErrs := make(chan error, 1)
	go func() {
		slog.Info("bridge listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrs <- err
			return
		}
		serveErrs <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErrs:
		if err != nil {
			// Binding failure (EADDRINUSE, EACCES): terminate with a
			// diagnostic per §6's exit-behavior contract.
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
		}
	}
	return nil
}
