// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Package tracer is the execution tracer (C12): a per-correlation-id
// timeline of pipeline stages, their durations, and any errors. A cid is
// minted at the agent-turn boundary and propagated via meta.cid through
// goal, task, patch, and review records; every stage that touches a
// record with a cid should call Start/End around its work so the
// timeline reconstructs one turn's path through the pipeline.
//
// Each span opened with Start is mirrored onto an OpenTelemetry span from
// the global tracer provider, so a trace backend registered there sees the
// same timeline without the in-memory store knowing about OTel's own
// context plumbing. This module registers no provider or exporter itself.
//
// Thread Safety:
//
//	Tracer is safe for concurrent use. Appends for every cid are
//	serialized behind one mutex.
package tracer

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Status is a span's terminal disposition.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Span is one `{stage, startedAt, endedAt, status, detail}` record.
type Span struct {
	Stage     string
	StartedAt time.Time
	EndedAt   time.Time
	Status    Status
	Detail    string

	// ToolName and Arguments are populated for error spans so the chat
	// error message format has tool name + arguments to surface,
	toolName  string
	arguments map[string]any
}

// ToolName returns the tool name attached to an error span, if any.
func (s Span) ToolName() string { return s.toolName }

// Arguments returns the argument snapshot attached to an error span, if
// any.
func (s Span) Arguments() map[string]any { return s.arguments }

// Tracer holds one timeline per correlation id.
type Tracer struct {
	tracerName string
	otel       oteltrace.Tracer

	mu        sync.Mutex
	timelines map[string][]Span
}

// New builds a Tracer. name identifies this tracer's OTel instrumentation
// scope (e.g. "github.com/theredstring/bridge").
func New(name string) *Tracer {
	return &Tracer{
		tracerName: name,
		otel:       otel.Tracer(name),
		timelines:  make(map[string][]Span),
	}
}

// activeSpan is the handle returned by Start; pass it to End to close
// both the in-memory span and its OTel counterpart.
type activeSpan struct {
	cid       string
	stage     string
	startedAt time.Time
	otelSpan  oteltrace.Span
}

// Start opens a span for stage under cid. ctx carries the OTel parent
// span context, if any, so nested stages (e.g. executor calling out to
// search) compose into one trace.
func (t *Tracer) Start(ctx context.Context, cid, stage string) (context.Context, *activeSpan) {
	spanCtx, otelSpan := t.otel.Start(ctx, stage, oteltrace.WithAttributes(
		attribute.String("bridge.cid", cid),
	))
	return spanCtx, &activeSpan{cid: cid, stage: stage, startedAt: time.Now(), otelSpan: otelSpan}
}

// End closes span with the given status/detail. For an error span,
// toolName and arguments attach to the record so the chat error-message
// format can include them verbatim.
func (t *Tracer) End(span *activeSpan, status Status, detail string, toolName string, arguments map[string]any) {
	now := time.Now()
	if status == StatusError {
		span.otelSpan.SetStatus(codes.Error, detail)
	} else {
		span.otelSpan.SetStatus(codes.Ok, "")
	}
	span.otelSpan.End()

	rec := Span{
		Stage:     span.stage,
		StartedAt: span.startedAt,
		EndedAt:   now,
		Status:    status,
		Detail:    detail,
		toolName:  toolName,
		arguments: arguments,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.timelines[span.cid] = append(t.timelines[span.cid], rec)
}

// Record is a convenience for a stage whose work is already complete:
// it appends a span with the given start/end directly, bypassing the
// OTel span lifecycle (used by stages that just want the in-memory
// timeline, e.g. tests).
func (t *Tracer) Record(cid, stage string, startedAt, endedAt time.Time, status Status, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timelines[cid] = append(t.timelines[cid], Span{
		Stage: stage, StartedAt: startedAt, EndedAt: endedAt, Status: status, Detail: detail,
	})
}

// Timeline returns a copy of the spans recorded for cid, in append
// order.
func (t *Tracer) Timeline(cid string) []Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	spans := t.timelines[cid]
	out := make([]Span, len(spans))
	copy(out, spans)
	return out
}

// Errors returns only the error-status spans for cid, in append order —
// the subset the chat channel formats as system messages.
func (t *Tracer) Errors(cid string) []Span {
	var out []Span
	for _, s := range t.Timeline(cid) {
		if s.Status == StatusError {
			out = append(out, s)
		}
	}
	return out
}

// Forget drops the timeline for cid. Callers should call this once a
// turn's patches have all reached a terminal state (committed or
// rejected) so the in-memory map does not grow without bound across a
// long-lived process.
func (t *Tracer) Forget(cid string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.timelines, cid)
}
