// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Package httpapi is the bridge's §6 "to the UI" contract surface: the
// UI posts full-state snapshots to register/update the mirror, polls a
// pending-actions endpoint to drain approved ops, and posts
// action-completed/action-feedback acknowledgements. It also serves
// /health and /v1/layout-settings reads, and one entry point for an
// agent turn (C11).
//
// This package is deliberately thin plumbing (§1 lists the HTTP
// transport as "out of scope" for the core): it translates requests
// into calls against the already-specified C3/C9/C11 components and
// does not itself hold pipeline state.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/theredstring/bridge/internal/coordinator"
	"github.com/theredstring/bridge/internal/layout"
	"github.com/theredstring/bridge/internal/mirror"
	"github.com/theredstring/bridge/internal/model"
	"github.com/theredstring/bridge/internal/queue"
	"github.com/theredstring/bridge/internal/scheduler"
)

// Server bundles the dependencies the HTTP surface routes into. The
// Committer (C9) is not wired here: in this deployment shape the UI
// itself is the committer, applying the ops /v1/pending-actions hands it
// and echoing back completed/feedback; internal/committer.MirrorCommitter
// instead serves a standalone/no-UI-attached run of the pipeline.
type Server struct {
	Mirror      *mirror.Mirror
	ReviewQueue *queue.Queue[model.Review]
	Coordinator *coordinator.Coordinator
	Scheduler   *scheduler.Scheduler
	ServiceName string
}

// New builds a gin.Engine with every route wired, and otelgin tracing
// middleware under the server's service name.
func New(s *Server) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(s.ServiceName))

	router.GET("/health", s.handleHealth)

	v1 := router.Group("/v1")
	{
		v1.POST("/state", s.handleRegisterState)
		v1.GET("/state", s.handleGetState)
		v1.GET("/layout-settings", s.handleLayoutSettings)
		v1.GET("/pending-actions", s.handlePendingActions)
		v1.POST("/actions/:leaseId/completed", s.handleActionCompleted)
		v1.POST("/actions/:leaseId/feedback", s.handleActionFeedback)
		v1.POST("/agent/turn", s.handleAgentTurn)
	}
	return router
}

// handleHealth reports liveness plus scheduler run state, matching the
// "binding failure terminates with a diagnostic; uncaught exceptions are
// logged but do not terminate the process" exit-behavior contract (the
// process itself stays up; this endpoint just reports what it sees).
func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{"status": "ok", "time": time.Now().UTC()}
	if s.Scheduler != nil {
		body["schedulerRunning"] = s.Scheduler.Running()
		m := s.Scheduler.Metrics()
		body["ticks"] = m.Ticks
		body["lastError"] = m.LastError
	}
	c.JSON(http.StatusOK, body)
}

// handleRegisterState accepts a UI snapshot and folds it into the mirror
// via smartMerge.
func (s *Server) handleRegisterState(c *gin.Context) {
	var snapshot mirror.Snapshot
	if err := c.BindJSON(&snapshot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid snapshot body: " + err.Error()})
		return
	}
	s.Mirror.SmartMerge(snapshot)
	c.JSON(http.StatusOK, gin.H{"status": "merged"})
}

// handleGetState returns the mirror's current snapshot plus summary.
func (s *Server) handleGetState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"snapshot": s.Mirror.Snapshot(),
		"summary":  s.Mirror.Summary(),
	})
}

// handleLayoutSettings reports the panel-constraint/canvas-sizing
// constants the layout engine (C5) uses, so the UI's own "Auto-Layout"
// button can match the bridge bit-for-bit.
func (s *Server) handleLayoutSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"minNodeWidth":   160,
		"baseNodeHeight": 100,
		"tallNodeHeight": 140,
		"minCanvasSize":  2000,
		"canvasPerNode":  400,
		"minPadding":     300,
		"algorithms":     []layout.Algorithm{layout.AlgorithmForce, layout.AlgorithmHierarchical, layout.AlgorithmRadial, layout.AlgorithmLinear},
	})
}

// pendingActionsResponse is one reviewQueue record surfaced to the UI,
// carrying the lease id the UI must echo back on completed/feedback.
type pendingActionsResponse struct {
	LeaseID string       `json:"leaseId"`
	Review  model.Review `json:"review"`
}

// handlePendingActions drains up to 10 approved or
// rejected review records for the UI to apply (approved) or discard
// (rejected). Records stay leased until the UI acks via /completed or
// /feedback; an unresponsive UI's lease expires and the record
// redelivers, per the queue's lease-timeout contract.
func (s *Server) handlePendingActions(c *gin.Context) {
	limit := 10
	records := s.ReviewQueue.Pull(limit)
	out := make([]pendingActionsResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, pendingActionsResponse{LeaseID: rec.LeaseID, Review: rec.Payload})
	}
	c.JSON(http.StatusOK, gin.H{"actions": out})
}

// handleActionCompleted acks the named lease: the UI successfully
// applied (or discarded, for a rejected review) the action.
func (s *Server) handleActionCompleted(c *gin.Context) {
	leaseID := c.Param("leaseId")
	if !s.ReviewQueue.Ack(leaseID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such lease"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "acked"})
}

// handleActionFeedback nacks the named lease so it redelivers, carrying
// the UI's reported failure reason for diagnostics only (not persisted —
// the core has no durable error log per §1's non-goals).
func (s *Server) handleActionFeedback(c *gin.Context) {
	leaseID := c.Param("leaseId")
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.BindJSON(&body)
	if !s.ReviewQueue.Nack(leaseID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such lease"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "nacked", "reason": body.Reason})
}

// handleAgentTurn is C11's HTTP entry point: one user turn in, one
// TurnResponse receipt out.
func (s *Server) handleAgentTurn(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
		Context string `json:"context"`
		APIKey  string `json:"apiKey"`
		CID     string `json:"cid"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid turn request: " + err.Error()})
		return
	}
	resp := s.Coordinator.Handle(c.Request.Context(), coordinator.TurnRequest{
		Message: req.Message,
		Context: req.Context,
		APIKey:  req.APIKey,
		CID:     req.CID,
	})
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadRequest
	}
	c.JSON(status, resp)
}
