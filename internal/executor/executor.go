// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Package executor is the heart of the pipeline: it pulls
// one task at a time, validates its arguments, synthesizes an ordered op
// list, and enqueues the result as a Patch. The Executor never mutates the
// mirror directly — all state change flows through the Auditor and
// Committer.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/theredstring/bridge/internal/graphquery"
	"github.com/theredstring/bridge/internal/model"
	"github.com/theredstring/bridge/internal/queue"
	"github.com/theredstring/bridge/internal/search"
	"github.com/theredstring/bridge/internal/tools"
)

// Source is the mirror read surface the Executor needs: every lookup
// graphquery already depends on, reused rather than re-declared.
type Source = graphquery.Source

// newGraphPlaceholderPrefix must match internal/committer's placeholder
// convention; the two packages agree on this string as a wire protocol,
// not a shared symbol, since the Committer is meant to be replaceable by
// an adapter that never imports this package.
const newGraphPlaceholderPrefix = "NEW_GRAPH:"

// Classification is the Executor's disposition for one task, matching the
// permanent/transient split in
type Classification string

const (
	ClassificationOK        Classification = "ok"
	ClassificationPermanent Classification = "permanent"
	ClassificationTransient Classification = "transient"
)

// permanentMarkers are the substrings classifies as
// permanent failures: validation/policy/not-found/invalid/missing-field
// errors the task can never succeed by retrying.
var permanentMarkers = []string{
	"Validation failed",
	"Tool not allowed",
	"not found",
	"Invalid",
	"missing required",
}

// Result is the outcome of running one task through the Executor.
type Result struct {
	Classification Classification
	Patch          model.Patch
	ChatMessage    string
	Fuzzy          bool
}

// Executor synthesizes patches from tasks.
//
// Thread Safety:
//
//	An Executor instance is intended to be driven by a single scheduler
//	stage at a time; it holds
//	no mutable state of its own beyond its configuration.
type Executor struct {
	src              Source
	patchQueue       *queue.Queue[model.Patch]
	validator        *tools.Registry
	backend          search.Backend
	fuzzyThreshold   float64
	newID            func() string
	externalDeadline time.Duration
}

// Option configures an Executor at construction.
type Option func(*Executor)

// WithFuzzyThreshold overrides the default 0.80 Dice-bigram dedup
// threshold.
func WithFuzzyThreshold(t float64) Option {
	return func(e *Executor) { e.fuzzyThreshold = t }
}

// WithIDGenerator overrides the id-minting function; tests use this for
// deterministic ids.
func WithIDGenerator(f func() string) Option {
	return func(e *Executor) { e.newID = f }
}

// WithExternalDeadline overrides the default 45s bound on sparql_query and
// semantic_search calls.
func WithExternalDeadline(d time.Duration) Option {
	return func(e *Executor) { e.externalDeadline = d }
}

// New builds an Executor reading through src, enqueuing patches on
// patchQueue, validating arguments via validator, and issuing
// semantic_search/sparql_query calls through backend (with a nil backend
// those two tools emit a readResponse op carrying an error, and the task
// still succeeds).
func New(src Source, patchQueue *queue.Queue[model.Patch], validator *tools.Registry, backend search.Backend, opts ...Option) *Executor {
	e := &Executor{
		src:              src,
		patchQueue:       patchQueue,
		validator:        validator,
		backend:          backend,
		fuzzyThreshold:   0.80,
		newID:            uuid.NewString,
		externalDeadline: search.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one task: validate, synthesize, enqueue. It never returns a
// Go error; every failure is captured in Result.Classification so the
// Scheduler can ack (permanent) or nack (transient) uniformly.
func (e *Executor) Run(ctx context.Context, task model.Task) Result {
	validation := e.validator.Validate(task.ToolName, task.Arguments)
	if !validation.Valid {
		return Result{
			Classification: ClassificationPermanent,
			ChatMessage:    chatMessage(task, validation.Error),
		}
	}

	ops, graphID, fuzzy, err := e.synthesize(ctx, task, validation.Sanitized)
	if err != nil {
		return Result{
			Classification: classify(err),
			ChatMessage:    chatMessage(task, err.Error()),
		}
	}

	patch := model.Patch{
		PatchID:  e.newID(),
		ThreadID: task.ThreadID,
		GraphID:  graphID,
		BaseHash: nil,
		Ops:      ops,
		Meta:     task.Meta,
	}
	e.patchQueue.Enqueue(patch, task.PartitionKey)

	return Result{Classification: ClassificationOK, Patch: patch, Fuzzy: fuzzy}
}

// classify maps a synthesis error to a disposition by substring match on
// its text classifier.
func classify(err error) Classification {
	msg := err.Error()
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return ClassificationPermanent
		}
	}
	return ClassificationTransient
}

// chatMessage formats the system message requires on a
// permanent failure: tool name, arguments, and guidance.
func chatMessage(task model.Task, reason string) string {
	return fmt.Sprintf("Could not run %q: %s (arguments: %v)", task.ToolName, reason, task.Arguments)
}
