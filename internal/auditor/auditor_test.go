// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package auditor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theredstring/bridge/internal/auditor"
	"github.com/theredstring/bridge/internal/mirror"
	"github.com/theredstring/bridge/internal/model"
)

func TestAuditApprovesValidPatch(t *testing.T) {
	m := mirror.New()
	require.NoError(t, m.LocalApply([]model.Op{
		{Kind: model.OpAddNodePrototype, Payload: map[string]any{"id": "p1", "name": "Paris"}},
	}))

	a := auditor.New()
	patch := model.Patch{
		GraphID: "g1",
		Ops: []model.Op{
			{Kind: model.OpAddNodeInstance, Payload: map[string]any{"id": "i1", "graphId": "g1", "prototypeId": "p1"}},
		},
	}

	review := a.Review(m, patch)
	require.Equal(t, model.ReviewApproved, review.Status)
}

// TestAuditApprovesSelfContainedCreatePatch drives the shape the Executor
// actually emits for create_populated_graph/create_subgraph: a brand-new
// prototype, an instance referencing it, and an edge between two such
// instances, all minted and referenced within the same patch, with nothing
// pre-seeded in the mirror. Invariant checks must see each op's effect on
// the ops before it in the array, not just what's already committed.
func TestAuditApprovesSelfContainedCreatePatch(t *testing.T) {
	m := mirror.New()
	a := auditor.New()
	patch := model.Patch{
		GraphID: "g1",
		Ops: []model.Op{
			{Kind: model.OpAddNodePrototype, Payload: map[string]any{"id": "p1", "name": "Paris"}},
			{Kind: model.OpAddNodePrototype, Payload: map[string]any{"id": "p2", "name": "Lyon"}},
			{Kind: model.OpAddNodeInstance, Payload: map[string]any{"id": "i1", "graphId": "g1", "prototypeId": "p1"}},
			{Kind: model.OpAddNodeInstance, Payload: map[string]any{"id": "i2", "graphId": "g1", "prototypeId": "p2"}},
			{Kind: model.OpAddEdge, Payload: map[string]any{
				"id": "e1", "graphId": "g1",
				"sourceInstanceId": "i1", "destinationInstanceId": "i2",
				"arrowsToward": []string{"i2"},
			}},
		},
	}

	review := a.Review(m, patch)
	require.Equal(t, model.ReviewApproved, review.Status, "issues: %v", review.Issues)
}

func TestAuditRejectsDanglingPrototype(t *testing.T) {
	m := mirror.New()
	a := auditor.New()
	patch := model.Patch{
		GraphID: "g1",
		Ops: []model.Op{
			{Kind: model.OpAddNodeInstance, Payload: map[string]any{"id": "i1", "graphId": "g1", "prototypeId": "missing"}},
		},
	}

	review := a.Review(m, patch)
	require.Equal(t, model.ReviewRejected, review.Status)
	require.NotEmpty(t, review.Issues)
}

func TestAuditRejectsNilOps(t *testing.T) {
	m := mirror.New()
	a := auditor.New()
	result := a.Audit(m, model.Patch{GraphID: "g1"})
	require.False(t, result.Passed)
	require.True(t, result.HasCritical())
}

func TestAuditRejectsBadDirectionality(t *testing.T) {
	m := mirror.New()
	a := auditor.New()
	patch := model.Patch{
		GraphID: "g1",
		Ops: []model.Op{
			{Kind: model.OpAddEdge, Payload: map[string]any{
				"id": "e1", "graphId": "g1",
				"sourceInstanceId": "i1", "destinationInstanceId": "i2",
				"arrowsToward": []string{"not-an-endpoint"},
			}},
		},
	}
	review := a.Review(m, patch)
	require.Equal(t, model.ReviewRejected, review.Status)
}
