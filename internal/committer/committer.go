// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Package committer defines the external contract: the Committer
// consumes approved review records, resolves NEW_GRAPH:<name>
// placeholders in op order, and applies ops to the authoritative store
// atomically from the UI's perspective.
//
// This package ships one concrete, in-process implementation
// (MirrorCommitter) so the pipeline is runnable standalone without a real
// UI attached. A real deployment is expected to replace it with an
// adapter that talks to the authoritative UI store instead.
package committer

import (
	"context"
	"fmt"
	"strings"

	"github.com/theredstring/bridge/internal/model"
)

// Committer applies an approved patch to the authoritative store.
type Committer interface {
	Commit(ctx context.Context, patch model.Patch) error
}

// newGraphPrefix marks a graph id as not-yet-created: a placeholder the
// Executor emits for create_subgraph_in_new_graph so the whole operation
// lands as a single patch.
const newGraphPrefix = "NEW_GRAPH:"

// isPlaceholder reports whether id is an unresolved NEW_GRAPH: placeholder.
func isPlaceholder(id string) bool {
	return strings.HasPrefix(id, newGraphPrefix)
}

// applier is the subset of mirror.Mirror that MirrorCommitter needs; it is
// named locally so this package doesn't import mirror's concrete type
// where an interface will do "globals as modules"
// guidance (explicitly-constructed components, not package-level state).
type applier interface {
	LocalApply(ops []model.Op) error
}

// MirrorCommitter is the reference Committer: it applies patches directly
// to the same mirror state C3 (internal/mirror) serves reads from.
type MirrorCommitter struct {
	target applier
}

// NewMirrorCommitter builds a MirrorCommitter writing into target.
func NewMirrorCommitter(target applier) *MirrorCommitter {
	return &MirrorCommitter{target: target}
}

// Commit resolves NEW_GRAPH: placeholders in op order, then applies the
// patch's ops atomically (from the caller's perspective: either every op
// lands or none do, backed by the mirror's single write-locked apply).
func (c *MirrorCommitter) Commit(ctx context.Context, patch model.Patch) error {
	resolved, err := resolvePlaceholders(patch.Ops)
	if err != nil {
		return fmt.Errorf("committer: %w", err)
	}
	return c.target.LocalApply(resolved)
}

// resolvePlaceholders walks ops in order, remembering the id assigned by
// the first createNewGraph op whose id came from a NEW_GRAPH:<name>
// placeholder, then rewrites every later reference to that placeholder.
func resolvePlaceholders(ops []model.Op) ([]model.Op, error) {
	resolvedIDs := make(map[string]string)
	out := make([]model.Op, 0, len(ops))

	for _, op := range ops {
		payload := cloneOpPayload(op.Payload)

		if op.Kind == model.OpCreateNewGraph {
			if placeholder, ok := payload["id"].(string); ok && isPlaceholder(placeholder) {
				realID := freshIDFromPlaceholder(placeholder, len(resolvedIDs))
				resolvedIDs[placeholder] = realID
				payload["id"] = realID
			}
		}

		for _, key := range []string{"graphId", "id"} {
			if v, ok := payload[key].(string); ok && isPlaceholder(v) {
				real, ok := resolvedIDs[v]
				if !ok {
					return nil, fmt.Errorf("unresolved placeholder %q referenced before its createNewGraph op", v)
				}
				payload[key] = real
			}
		}

		out = append(out, model.Op{Kind: op.Kind, Payload: payload})
	}
	return out, nil
}

func cloneOpPayload(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// freshIDFromPlaceholder mints a stable id for a NEW_GRAPH:<name>
// placeholder. Real deployments delegate id minting to the authoritative
// store; this reference implementation derives a deterministic one from
// the placeholder's name plus an ordinal so repeated placeholders in the
// same patch never collide.
func freshIDFromPlaceholder(placeholder string, ordinal int) string {
	name := strings.TrimPrefix(placeholder, newGraphPrefix)
	name = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "-"))
	return fmt.Sprintf("graph-%s-%d", name, ordinal)
}
