// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Package planner implements C6: it consumes one goal at a
// time and fans its tool calls out into the task queue, propagating
// threadId/partitionKey/meta onto each task. A goal with no tool calls
// still produces one trivial verify_state task, so every goal leaves a
// visible trace in the pipeline.
package planner

import (
	"github.com/google/uuid"

	"github.com/theredstring/bridge/internal/model"
	"github.com/theredstring/bridge/internal/queue"
)

// verifyStateTool is the tool name emitted for an empty goal DAG.
const verifyStateTool = "verify_state"

// Planner drains goals and emits tasks onto taskQueue.
type Planner struct {
	taskQueue *queue.Queue[model.Task]
	newID     func() string
}

// Option configures a Planner at construction.
type Option func(*Planner)

// WithIDGenerator overrides the task-id minting function; tests use this
// for deterministic ids.
func WithIDGenerator(f func() string) Option {
	return func(p *Planner) { p.newID = f }
}

// New builds a Planner that enqueues tasks onto taskQueue.
func New(taskQueue *queue.Queue[model.Task], opts ...Option) *Planner {
	p := &Planner{taskQueue: taskQueue, newID: uuid.NewString}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan fans goal's tool calls into tasks on the task queue, in order, and
// returns them. An empty goal yields a single verify_state task so the
// pipeline has something to process and acknowledge.
func (p *Planner) Plan(goal model.Goal) []model.Task {
	calls := goal.ToolCalls
	if len(calls) == 0 {
		calls = []model.ToolCall{{ToolName: verifyStateTool, Arguments: map[string]any{}}}
	}

	partitionKey := goal.ThreadID
	tasks := make([]model.Task, 0, len(calls))
	for _, call := range calls {
		task := model.Task{
			TaskID:       p.newID(),
			ThreadID:     goal.ThreadID,
			PartitionKey: partitionKey,
			ToolName:     call.ToolName,
			Arguments:    call.Arguments,
			Meta:         goal.Meta,
		}
		p.taskQueue.Enqueue(task, partitionKey)
		tasks = append(tasks, task)
	}
	return tasks
}

// Drain pulls at most one goal from goalQueue and plans it: one goal per
// tick, max. It acks the goal whether or not it had
// any tool calls; planning never fails, so there is no nack path here.
// Returns the tasks emitted, or nil if goalQueue had nothing eligible.
func (p *Planner) Drain(goalQueue *queue.Queue[model.Goal]) []model.Task {
	records := goalQueue.Pull(1)
	if len(records) == 0 {
		return nil
	}
	rec := records[0]
	tasks := p.Plan(rec.Payload)
	goalQueue.Ack(rec.LeaseID)
	return tasks
}
