// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/theredstring/bridge/internal/httpapi"
	"github.com/theredstring/bridge/internal/mirror"
	"github.com/theredstring/bridge/internal/model"
	"github.com/theredstring/bridge/internal/queue"
)

func newTestServer(t *testing.T) (*gin.Engine, *mirror.Mirror, *queue.Queue[model.Review]) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m := mirror.New()
	reviewQueue := queue.New[model.Review]("reviewQueue", 0)
	router := httpapi.New(&httpapi.Server{
		Mirror:      m,
		ReviewQueue: reviewQueue,
		ServiceName: "bridge-test",
	})
	return router, m, reviewQueue
}

func TestHealthReportsOK(t *testing.T) {
	router, _, _ := newTestServer(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}

func TestRegisterAndGetState(t *testing.T) {
	router, _, _ := newTestServer(t)

	snapshot := mirror.Snapshot{
		Graphs: map[string]model.Graph{
			"g1": {ID: "g1", Name: "Cities"},
		},
	}
	body, err := json.Marshal(snapshot)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/state", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/v1/state", nil)
	router.ServeHTTP(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)
	require.Contains(t, w2.Body.String(), "Cities")
}

func TestPendingActionsLifecycle(t *testing.T) {
	router, _, reviewQueue := newTestServer(t)

	reviewQueue.Enqueue(model.Review{
		Status:  model.ReviewApproved,
		GraphID: "g1",
		Patch:   model.Patch{PatchID: "p1"},
	}, "thread-1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/pending-actions", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Actions []struct {
			LeaseID string `json:"leaseId"`
		} `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Actions, 1)
	require.NotEmpty(t, resp.Actions[0].LeaseID)

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/v1/actions/"+resp.Actions[0].LeaseID+"/completed", nil)
	router.ServeHTTP(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)

	require.Equal(t, 0, reviewQueue.Len())
}

func TestActionFeedbackNacksForRedelivery(t *testing.T) {
	router, _, reviewQueue := newTestServer(t)
	reviewQueue.Enqueue(model.Review{Status: model.ReviewRejected, GraphID: "g1"}, "thread-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/pending-actions", nil))
	var resp struct {
		Actions []struct {
			LeaseID string `json:"leaseId"`
		} `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Actions, 1)

	feedback, _ := json.Marshal(map[string]string{"reason": "UI rejected the color"})
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/v1/actions/"+resp.Actions[0].LeaseID+"/feedback", bytes.NewReader(feedback))
	router.ServeHTTP(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)

	require.Equal(t, 1, reviewQueue.Len(), "nacked record stays in queue for redelivery")
}

func TestLayoutSettingsExposesConstants(t *testing.T) {
	router, _, _ := newTestServer(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/layout-settings", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "minNodeWidth")
}
