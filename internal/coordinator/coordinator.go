// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Package coordinator implements the agent coordinator turn:
// `{message, context, apiKey, cid} →
// {success, response, toolCalls, goalId, cid}`. A turn guards on a
// missing API key, calls the LLM to plan, returns prose directly for a
// `qa` turn, and otherwise enqueues the planned goal and ensures the
// scheduler is running.
//
// Grounded on services/code_buddy/coordinate.MultiFileChangeCoordinator's
// constructor-injected-dependencies shape, generalized from a read-only
// multi-file change planner down to a turn-shaped entry point, and on
// services/orchestrator/handlers.HandleAgentStep's validate → guard →
// call-out → translate-response handler flow.
//
// Thread Safety:
//
//	Coordinator holds no mutable state of its own; Handle is safe for
//	concurrent use so long as the injected queue and scheduler are.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/theredstring/bridge/internal/llmclient"
	"github.com/theredstring/bridge/internal/model"
	"github.com/theredstring/bridge/internal/queue"
	"github.com/theredstring/bridge/internal/tools"
)

// Scheduler is the subset of *scheduler.Scheduler the coordinator needs:
// enough to ensure background draining is happening after a goal is
// enqueued, without coordinator depending on the scheduler's tick/budget
// internals.
type Scheduler interface {
	Running() bool
	Start(ctx context.Context) error
}

// TurnRequest is one incoming agent turn.
type TurnRequest struct {
	Message string
	Context string
	APIKey  string
	CID     string
}

// TurnResponse is the turn's receipt contract.
type TurnResponse struct {
	Success   bool
	Response  string
	ToolCalls []model.ToolCall
	GoalID    string
	CID       string
}

// Coordinator wires an LLM client, the tool schema registry, the goal
// queue, and the scheduler into one turn-shaped entry point.
type Coordinator struct {
	llm       *llmclient.Client
	registry  *tools.Registry
	goalQueue *queue.Queue[model.Goal]
	scheduler Scheduler
	newID     func() string
}

// Option configures a Coordinator at construction.
type Option func(*Coordinator)

// WithIDGenerator overrides the goal-id minting function; tests use this
// for deterministic ids, matching internal/executor and internal/planner.
func WithIDGenerator(f func() string) Option {
	return func(c *Coordinator) { c.newID = f }
}

// New builds a Coordinator.
func New(llm *llmclient.Client, registry *tools.Registry, goalQueue *queue.Queue[model.Goal], sched Scheduler, opts ...Option) *Coordinator {
	c := &Coordinator{
		llm:       llm,
		registry:  registry,
		goalQueue: goalQueue,
		scheduler: sched,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle runs one turn through the plan → (qa | enqueue) steps.
func (c *Coordinator) Handle(ctx context.Context, req TurnRequest) TurnResponse {
	if strings.TrimSpace(req.APIKey) == "" {
		return TurnResponse{Success: false, Response: "Missing API key.", CID: req.CID}
	}

	systemPrompt, err := llmclient.BuildSystemPrompt(c.registry, req.Context)
	if err != nil {
		return TurnResponse{Success: false, Response: fmt.Sprintf("Failed to build prompt: %v", err), CID: req.CID}
	}

	resp, err := c.llm.Complete(ctx, &llmclient.Request{
		SystemPrompt: systemPrompt,
		Messages:     []llmclient.Message{{Role: "user", Content: req.Message}},
		ToolNames:    c.registry.Names(),
		ToolChoice:   llmclient.ToolChoiceAuto(),
	})
	if err != nil {
		return TurnResponse{Success: false, Response: userFacingLLMError(err), CID: req.CID}
	}

	// No tool calls means the model answered the turn directly (qa
	// intent) — step 2 returns this prose as-is rather than
	// planning a goal.
	if !resp.HasToolCalls() {
		return TurnResponse{Success: true, Response: resp.Content, CID: req.CID}
	}

	toolCalls := make([]model.ToolCall, 0, len(resp.ToolCalls))
	for _, tc := range resp.ToolCalls {
		args, err := parseArguments(tc.Arguments)
		if err != nil {
			return TurnResponse{
				Success:  false,
				Response: fmt.Sprintf("The model's call to %q returned malformed arguments: %v", tc.Name, err),
				CID:      req.CID,
			}
		}
		toolCalls = append(toolCalls, model.ToolCall{ToolName: tc.Name, Arguments: args})
	}

	goalID := c.newID()
	c.goalQueue.Enqueue(model.Goal{
		GoalID:    goalID,
		ThreadID:  req.CID,
		ToolCalls: toolCalls,
		Meta:      map[string]any{"cid": req.CID},
	}, req.CID)

	if !c.scheduler.Running() {
		// A race with another turn's Start is harmless: Start reports an
		// error for an already-running scheduler, which this turn simply
		// ignores — the goal is already queued either way.
		_ = c.scheduler.Start(ctx)
	}

	return TurnResponse{Success: true, ToolCalls: toolCalls, GoalID: goalID, CID: req.CID}
}

// userFacingLLMError renders an llmclient error as required
// per-status guidance rather than a bare Go error string.
func userFacingLLMError(err error) string {
	var authErr *llmclient.AuthError
	if errors.As(err, &authErr) {
		return fmt.Sprintf("Authentication with the LLM provider failed: %s", authErr.Message)
	}
	var modelErr *llmclient.ModelError
	if errors.As(err, &modelErr) {
		return fmt.Sprintf("The configured model was not found: %s", modelErr.Message)
	}
	var rlErr *llmclient.RateLimitError
	if errors.As(err, &rlErr) {
		return "The LLM provider is rate-limiting requests; please try again shortly."
	}
	var transientErr *llmclient.TransientError
	if errors.As(err, &transientErr) {
		return "The LLM provider is temporarily unavailable; please try again."
	}
	return fmt.Sprintf("LLM request failed: %v", err)
}

func parseArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}
