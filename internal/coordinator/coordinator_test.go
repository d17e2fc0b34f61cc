// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package coordinator_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theredstring/bridge/internal/coordinator"
	"github.com/theredstring/bridge/internal/llmclient"
	"github.com/theredstring/bridge/internal/model"
	"github.com/theredstring/bridge/internal/queue"
	"github.com/theredstring/bridge/internal/tools"
)

type fakeScheduler struct {
	running    bool
	startCalls int
}

func (f *fakeScheduler) Running() bool { return f.running }
func (f *fakeScheduler) Start(ctx context.Context) error {
	f.startCalls++
	f.running = true
	return nil
}

func newLLMServer(t *testing.T, body map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sequentialIDs() func() string {
	n := 0
	return func() string { n++; return fmt.Sprintf("goal-%d", n) }
}

func TestHandleRejectsMissingAPIKey(t *testing.T) {
	goalQueue := queue.New[model.Goal]("goalQueue", 0)
	co := coordinator.New(nil, tools.NewRegistry(), goalQueue, &fakeScheduler{})
	resp := co.Handle(context.Background(), coordinator.TurnRequest{Message: "hi", CID: "cid-1"})
	require.False(t, resp.Success)
	require.Equal(t, "cid-1", resp.CID)
	require.Equal(t, 0, goalQueue.Len())
}

func TestHandleReturnsProseForQAIntent(t *testing.T) {
	srv := newLLMServer(t, map[string]any{
		"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o",
		"choices": []map[string]any{{
			"index": 0, "finish_reason": "stop",
			"message": map[string]any{"role": "assistant", "content": "There are 3 nodes in Cities."},
		}},
	})
	llm := llmclient.New("test-key", "gpt-4o", tools.NewRegistry(), llmclient.WithBaseURL(srv.URL+"/v1"))
	goalQueue := queue.New[model.Goal]("goalQueue", 0)
	sched := &fakeScheduler{}
	co := coordinator.New(llm, tools.NewRegistry(), goalQueue, sched)

	resp := co.Handle(context.Background(), coordinator.TurnRequest{
		Message: "how many nodes are in Cities?", APIKey: "sk-test", CID: "cid-2",
	})
	require.True(t, resp.Success)
	require.Equal(t, "There are 3 nodes in Cities.", resp.Response)
	require.Empty(t, resp.GoalID)
	require.Equal(t, 0, goalQueue.Len())
	require.Equal(t, 0, sched.startCalls, "a qa turn never needs to start the scheduler")
}

func TestHandleEnqueuesGoalForToolCallIntent(t *testing.T) {
	srv := newLLMServer(t, map[string]any{
		"id": "chatcmpl-2", "object": "chat.completion", "created": 1, "model": "gpt-4o",
		"choices": []map[string]any{{
			"index": 0, "finish_reason": "tool_calls",
			"message": map[string]any{
				"role": "assistant",
				"tool_calls": []map[string]any{{
					"id": "call_1", "type": "function",
					"function": map[string]any{"name": "create_graph", "arguments": `{"name":"Cities"}`},
				}},
			},
		}},
	})
	llm := llmclient.New("test-key", "gpt-4o", tools.NewRegistry(), llmclient.WithBaseURL(srv.URL+"/v1"))
	goalQueue := queue.New[model.Goal]("goalQueue", 0)
	sched := &fakeScheduler{}
	co := coordinator.New(llm, tools.NewRegistry(), goalQueue, sched, coordinator.WithIDGenerator(sequentialIDs()))

	resp := co.Handle(context.Background(), coordinator.TurnRequest{
		Message: "create a graph called Cities", APIKey: "sk-test", CID: "cid-3",
	})
	require.True(t, resp.Success)
	require.Equal(t, "goal-1", resp.GoalID)
	require.Len(t, resp.ToolCalls, 1)
	require.Equal(t, "create_graph", resp.ToolCalls[0].ToolName)
	require.Equal(t, "Cities", resp.ToolCalls[0].Arguments["name"])
	require.Equal(t, 1, goalQueue.Len())
	require.Equal(t, 1, sched.startCalls, "enqueuing a goal with a stopped scheduler must start it")

	records := goalQueue.Pull(1)
	require.Len(t, records, 1)
	require.Equal(t, "cid-3", records[0].Payload.ThreadID)
	require.Equal(t, "cid-3", records[0].Payload.Meta["cid"])
}

func TestHandleDoesNotRestartAlreadyRunningScheduler(t *testing.T) {
	srv := newLLMServer(t, map[string]any{
		"id": "chatcmpl-3", "object": "chat.completion", "created": 1, "model": "gpt-4o",
		"choices": []map[string]any{{
			"index": 0, "finish_reason": "tool_calls",
			"message": map[string]any{
				"role": "assistant",
				"tool_calls": []map[string]any{{
					"id": "call_1", "type": "function",
					"function": map[string]any{"name": "create_graph", "arguments": `{}`},
				}},
			},
		}},
	})
	llm := llmclient.New("test-key", "gpt-4o", tools.NewRegistry(), llmclient.WithBaseURL(srv.URL+"/v1"))
	goalQueue := queue.New[model.Goal]("goalQueue", 0)
	sched := &fakeScheduler{running: true}
	co := coordinator.New(llm, tools.NewRegistry(), goalQueue, sched)

	resp := co.Handle(context.Background(), coordinator.TurnRequest{Message: "make a graph", APIKey: "sk-test", CID: "cid-4"})
	require.True(t, resp.Success)
	require.Equal(t, 0, sched.startCalls)
}
