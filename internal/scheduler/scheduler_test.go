// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package scheduler_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theredstring/bridge/internal/auditor"
	"github.com/theredstring/bridge/internal/executor"
	"github.com/theredstring/bridge/internal/mirror"
	"github.com/theredstring/bridge/internal/model"
	"github.com/theredstring/bridge/internal/planner"
	"github.com/theredstring/bridge/internal/queue"
	"github.com/theredstring/bridge/internal/scheduler"
	"github.com/theredstring/bridge/internal/tools"
)

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func newTestSystem(t *testing.T) (*scheduler.Scheduler, scheduler.Queues, *mirror.Mirror) {
	t.Helper()
	m := mirror.New()
	queues := scheduler.Queues{
		Goal:   queue.New[model.Goal]("goalQueue", 0),
		Task:   queue.New[model.Task]("taskQueue", 0),
		Patch:  queue.New[model.Patch]("patchQueue", 0),
		Review: queue.New[model.Review]("reviewQueue", 0),
	}
	pl := planner.New(queues.Task, planner.WithIDGenerator(sequentialIDs("task")))
	ex := executor.New(m, queues.Patch, tools.NewRegistry(), nil, executor.WithIDGenerator(sequentialIDs("id")))
	au := auditor.New()
	cfg := scheduler.DefaultConfig()
	sched := scheduler.New(cfg, queues, pl, ex, au, m)
	return sched, queues, m
}

func TestTickDrivesGoalThroughToReview(t *testing.T) {
	sched, queues, _ := newTestSystem(t)

	queues.Goal.Enqueue(model.Goal{
		GoalID:   "g1",
		ThreadID: "thread-1",
		ToolCalls: []model.ToolCall{
			{ToolName: "create_graph", Arguments: map[string]any{"name": "Cities"}},
		},
	}, "thread-1")

	ctx := context.Background()
	sched.Tick(ctx) // planner: goal -> task
	require.Equal(t, 1, queues.Task.Len())

	sched.Tick(ctx) // executor: task -> patch
	require.Equal(t, 0, queues.Task.Len(), "a successfully run task is acked off the queue")
	require.Equal(t, 1, queues.Patch.Len())

	sched.Tick(ctx) // auditor: patch -> review
	require.Equal(t, 0, queues.Patch.Len())
	require.Equal(t, 1, queues.Review.Len())

	reviews := queues.Review.Pull(1)
	require.Len(t, reviews, 1)
	require.Equal(t, model.ReviewApproved, reviews[0].Payload.Status)

	metrics := sched.Metrics()
	require.Equal(t, 3, metrics.Ticks)
	require.Equal(t, 1, metrics.Runs["planner"])
	require.Equal(t, 1, metrics.Runs["executor"])
	require.Equal(t, 1, metrics.Runs["auditor"])
}

func TestTickRejectsReferentiallyInvalidPatch(t *testing.T) {
	sched, queues, _ := newTestSystem(t)

	// A hand-enqueued patch referencing a prototype that doesn't exist —
	// the auditor must reject it rather than let it reach the committer.
	queues.Patch.Enqueue(model.Patch{
		PatchID: "p1",
		Ops: []model.Op{
			{Kind: model.OpAddNodeInstance, Payload: map[string]any{"id": "i1", "prototypeId": "missing-proto"}},
		},
	}, "thread-1")

	sched.Tick(context.Background())
	require.Equal(t, 0, queues.Patch.Len())
	require.Equal(t, 1, queues.Review.Len())

	reviews := queues.Review.Pull(1)
	require.Equal(t, model.ReviewRejected, reviews[0].Payload.Status)
	require.NotEmpty(t, reviews[0].Payload.Issues)
}

func TestTickPlannerBudgetIsOneGoalPerTick(t *testing.T) {
	sched, queues, _ := newTestSystem(t)

	queues.Goal.Enqueue(model.Goal{GoalID: "g1", ThreadID: "t1", ToolCalls: []model.ToolCall{{ToolName: "create_graph"}}}, "t1")
	queues.Goal.Enqueue(model.Goal{GoalID: "g2", ThreadID: "t2", ToolCalls: []model.ToolCall{{ToolName: "create_graph"}}}, "t2")

	sched.Tick(context.Background())
	require.Equal(t, 1, queues.Goal.Len(), "only one goal may be drained per tick")
	require.Equal(t, 1, queues.Task.Len())
}

func TestStartStopLifecycle(t *testing.T) {
	sched, _, _ := newTestSystem(t)
	require.False(t, sched.Running())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, sched.Start(ctx))
	require.True(t, sched.Running())
	require.Error(t, sched.Start(ctx), "starting an already-running scheduler is an error")

	require.NoError(t, sched.Stop())
	require.False(t, sched.Running())
}
