// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Package scheduler is the periodic cooperative driver for the pipeline:
// a single ticker walks the planner, executor, auditor, and agent stages
// in order, running each up to its own per-tick budget, and never blocks
// a stage on another's suspension point. It is grounded on a
// ticker+done-channel background job, generalized from one cleanup cycle
// to four independently budgeted pipeline stages.
//
// Thread Safety:
//
//	Start/Stop/Tick/Metrics are all safe for concurrent use; state
//	transitions are serialized behind a mutex, matching ttlScheduler.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/theredstring/bridge/internal/auditor"
	"github.com/theredstring/bridge/internal/executor"
	"github.com/theredstring/bridge/internal/model"
	"github.com/theredstring/bridge/internal/planner"
	"github.com/theredstring/bridge/internal/queue"
	"github.com/theredstring/bridge/internal/tracer"
)

// StageBudget configures one stage's per-tick behavior.
type StageBudget struct {
	Enabled    bool
	MaxPerTick int
}

// Config is the scheduler's `{cadenceMs, planner, executor, auditor,
// agent, maxPerTick:{...}}` configuration from
type Config struct {
	Cadence  time.Duration
	Planner  StageBudget
	Executor StageBudget
	Auditor  StageBudget
	Agent    StageBudget
}

// DefaultConfig returns production-reasonable defaults: a 200ms cadence,
// one goal planned per tick, ten tasks executed and ten patches
// audited per tick, and the agent stage disabled until a caller wires one in via
// WithAgentStage.
func DefaultConfig() Config {
	return Config{
		Cadence:  200 * time.Millisecond,
		Planner:  StageBudget{Enabled: true, MaxPerTick: 1},
		Executor: StageBudget{Enabled: true, MaxPerTick: 10},
		Auditor:  StageBudget{Enabled: true, MaxPerTick: 10},
		Agent:    StageBudget{Enabled: false, MaxPerTick: 0},
	}
}

// Queues bundles the four named queues the scheduler drains: goalQueue
// and taskQueue feed the planner/executor stages; patchQueue feeds the
// auditor stage; reviewQueue is where the auditor's output lands for the
// Committer (C9, an external contract the scheduler does not itself
// drain — see internal/committer).
type Queues struct {
	Goal   *queue.Queue[model.Goal]
	Task   *queue.Queue[model.Task]
	Patch  *queue.Queue[model.Patch]
	Review *queue.Queue[model.Review]
}

// AgentStageFunc is the pluggable hook for the scheduler's fourth stage.
// names it alongside planner/executor/auditor but the
// agent coordinator (C11) is normally invoked synchronously per HTTP
// turn rather than ticked; this hook exists for a caller that wants
// background agent work (e.g. draining a queued-turns backlog) driven by
// the same cooperative ticker. budget is the stage's MaxPerTick; the
// function reports how many units of work it actually ran.
type AgentStageFunc func(ctx context.Context, budget int) (ran int, err error)

// Metrics is a point-in-time snapshot of scheduler activity, matching
// `{startedAt, ticks, runs:{...}, lastError}`.
type Metrics struct {
	StartedAt time.Time
	Ticks     int
	Runs      map[string]int
	LastError string
}

// Scheduler drives the planner/executor/auditor/agent stages on a
// fixed-cadence ticker.
type Scheduler struct {
	cfg    Config
	queues Queues

	planner  *planner.Planner
	exec     *executor.Executor
	audit    *auditor.Auditor
	snapshot model.Snapshot

	agentStage AgentStageFunc

	// execLimiter throttles the executor stage independently of
	// MaxPerTick: each executor tick takes one token, and a tick that gets
	// none runs no tasks. It applies to tasks of every tool, not only the
	// external-call ones.
	execLimiter *rate.Limiter

	// trace records the executor stage onto the per-cid timeline (C12);
	// nil disables tracing entirely, matching execLimiter's nil-means-off
	// convention.
	trace *tracer.Tracer

	mu      sync.Mutex
	running bool
	done    chan struct{}

	metricsMu sync.Mutex
	metrics   Metrics

	tickCounter  prometheus.Counter
	runCounter   *prometheus.CounterVec
	errorCounter *prometheus.CounterVec
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithAgentStage wires the pluggable agent stage hook.
func WithAgentStage(fn AgentStageFunc) Option {
	return func(s *Scheduler) { s.agentStage = fn }
}

// WithExecutorRateLimit bounds the executor stage to at most r ticks per
// second (burst b); each allowed tick still runs up to MaxPerTick tasks.
func WithExecutorRateLimit(r rate.Limit, b int) Option {
	return func(s *Scheduler) { s.execLimiter = rate.NewLimiter(r, b) }
}

// WithTracer wires the execution tracer (C12); every executor run is
// recorded onto its task's meta.cid timeline if present.
func WithTracer(t *tracer.Tracer) Option {
	return func(s *Scheduler) { s.trace = t }
}

// New builds a Scheduler wired to queues and the three always-present
// pipeline stages; snapshot is the mirror the auditor audits against.
func New(cfg Config, queues Queues, pl *planner.Planner, ex *executor.Executor, au *auditor.Auditor, snapshot model.Snapshot, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		queues:   queues,
		planner:  pl,
		exec:     ex,
		audit:    au,
		snapshot: snapshot,
		done:     make(chan struct{}),
		metrics:  Metrics{Runs: make(map[string]int)},
		tickCounter: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "bridge", Subsystem: "scheduler", Name: "ticks_total",
			Help: "Number of scheduler ticks executed.",
		}),
		runCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge", Subsystem: "scheduler", Name: "stage_runs_total",
			Help: "Number of stage work units run, labeled by stage.",
		}, []string{"stage"}),
		errorCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge", Subsystem: "scheduler", Name: "stage_errors_total",
			Help: "Number of stage work units that errored, labeled by stage.",
		}, []string{"stage"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins ticking at cfg.Cadence until ctx is cancelled or Stop is
// called. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.metricsMu.Lock()
	s.metrics.StartedAt = time.Now()
	s.metricsMu.Unlock()

	slog.Info("scheduler starting", "cadence", s.cfg.Cadence.String())
	go s.runLoop(ctx)
	return nil
}

// Stop signals the running loop to exit. In-flight tick work runs to
// completion; leased records the current tick didn't ack/nack expire
// naturally per the queue's lease timeout.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	slog.Info("scheduler stopping")
	close(s.done)
	s.running = false
	return nil
}

// Running reports whether the scheduler is currently ticking.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Metrics returns a copy of the current metrics snapshot.
func (s *Scheduler) Metrics() Metrics {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	runs := make(map[string]int, len(s.metrics.Runs))
	for k, v := range s.metrics.Runs {
		runs[k] = v
	}
	return Metrics{StartedAt: s.metrics.StartedAt, Ticks: s.metrics.Ticks, Runs: runs, LastError: s.metrics.LastError}
}

func (s *Scheduler) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped (context cancelled)")
			return
		case <-s.done:
			slog.Info("scheduler stopped (stop requested)")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one round of every enabled stage, each up to its own
// MaxPerTick budget, and updates metrics. Exposed directly so tests and
// a manual "run now" path don't need to wait on the ticker.
func (s *Scheduler) Tick(ctx context.Context) {
	s.tickCounter.Inc()

	s.runStage("planner", s.cfg.Planner, func() (int, error) { return s.tickPlanner() })
	s.runStage("executor", s.cfg.Executor, func() (int, error) { return s.tickExecutor(ctx) })
	s.runStage("auditor", s.cfg.Auditor, func() (int, error) { return s.tickAuditor() })
	if s.agentStage != nil {
		s.runStage("agent", s.cfg.Agent, func() (int, error) { return s.agentStage(ctx, s.cfg.Agent.MaxPerTick) })
	}

	s.metricsMu.Lock()
	s.metrics.Ticks++
	s.metricsMu.Unlock()
}

func (s *Scheduler) runStage(name string, budget StageBudget, run func() (int, error)) {
	if !budget.Enabled || budget.MaxPerTick <= 0 {
		return
	}
	ran, err := run()
	s.runCounter.WithLabelValues(name).Add(float64(ran))
	s.metricsMu.Lock()
	s.metrics.Runs[name] += ran
	if err != nil {
		s.metrics.LastError = fmt.Sprintf("%s: %s", name, err)
	}
	s.metricsMu.Unlock()
	if err != nil {
		s.errorCounter.WithLabelValues(name).Inc()
		slog.Error("scheduler stage error", "stage", name, "error", err)
	}
}

// tickPlanner drains at most one goal, regardless of MaxPerTick > 1.
func (s *Scheduler) tickPlanner() (int, error) {
	tasks := s.planner.Drain(s.queues.Goal)
	if tasks == nil {
		return 0, nil
	}
	return 1, nil
}

// tickExecutor pulls up to MaxPerTick tasks and runs them concurrently
// (bounded by the same budget via errgroup), acking permanent/ok
// dispositions and nacking transient ones so they redeliver.
func (s *Scheduler) tickExecutor(ctx context.Context) (int, error) {
	if s.execLimiter != nil && !s.execLimiter.Allow() {
		return 0, nil
	}

	records := s.queues.Task.Pull(s.cfg.Executor.MaxPerTick)
	if len(records) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(records))
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			started := time.Now()
			result := s.exec.Run(gctx, rec.Payload)
			s.traceExecutorRun(rec.Payload, result, started, time.Now())
			if result.Classification == executor.ClassificationTransient {
				s.queues.Task.Nack(rec.LeaseID)
			} else {
				s.queues.Task.Ack(rec.LeaseID)
			}
			return nil
		})
	}
	_ = g.Wait()
	return len(records), nil
}

// traceExecutorRun appends one span to the task's meta.cid timeline, if
// both a tracer is configured and the task carries a cid. Stages
// recorded at least at executor.
func (s *Scheduler) traceExecutorRun(task model.Task, result executor.Result, startedAt, endedAt time.Time) {
	if s.trace == nil {
		return
	}
	cid, _ := task.Meta["cid"].(string)
	if cid == "" {
		return
	}
	if result.Classification == executor.ClassificationOK {
		s.trace.Record(cid, "executor", startedAt, endedAt, tracer.StatusOK, "")
		return
	}
	s.trace.Record(cid, "executor", startedAt, endedAt, tracer.StatusError, result.ChatMessage)
}

// tickAuditor pulls up to MaxPerTick patches, reviews each against the
// mirror snapshot, and enqueues the verdict on reviewQueue. Audit is a
// pure function over in-memory state, so there is no internal-error nack
// path distinct from the review verdict itself; every patch is acked off
// patchQueue once reviewed.
func (s *Scheduler) tickAuditor() (int, error) {
	records := s.queues.Patch.Pull(s.cfg.Auditor.MaxPerTick)
	if len(records) == 0 {
		return 0, nil
	}
	for _, rec := range records {
		review := s.audit.Review(s.snapshot, rec.Payload)
		s.queues.Review.Enqueue(review, rec.PartitionKey)
		s.queues.Patch.Ack(rec.LeaseID)
	}
	return len(records), nil
}
