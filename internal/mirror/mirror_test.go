// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package mirror_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theredstring/bridge/internal/mirror"
	"github.com/theredstring/bridge/internal/model"
)

func TestLocalApplyAddThenDeletePrototypeIsNoOp(t *testing.T) {
	m := mirror.New()

	ops := []model.Op{
		{Kind: model.OpAddNodePrototype, Payload: map[string]any{"id": "p1", "name": "Widget"}},
		{Kind: model.OpDeleteNodePrototype, Payload: map[string]any{"id": "p1"}},
	}
	require.NoError(t, m.LocalApply(ops))

	_, ok := m.Prototype("p1")
	require.False(t, ok, "prototype set must be unchanged by an add immediately undone by a delete")
}

func TestLocalApplyCreateThenDeleteGraphIsNoOp(t *testing.T) {
	m := mirror.New()

	require.NoError(t, m.LocalApply([]model.Op{
		{Kind: model.OpCreateNewGraph, Payload: map[string]any{"id": "g1", "name": "Scratch"}},
	}))
	before := m.Summary()

	require.NoError(t, m.LocalApply([]model.Op{
		{Kind: model.OpDeleteGraph, Payload: map[string]any{"id": "g1"}},
	}))
	after := m.Summary()

	require.Equal(t, before.GraphCount-1, after.GraphCount)
	_, ok := m.Graph("g1")
	require.False(t, ok)
	require.Nil(t, m.ActiveGraphID())
}

func TestDeleteActiveGraphNullsActivePointer(t *testing.T) {
	m := mirror.New()
	require.NoError(t, m.LocalApply([]model.Op{
		{Kind: model.OpCreateNewGraph, Payload: map[string]any{"id": "g1", "name": "Active"}},
		{Kind: model.OpSetActiveGraph, Payload: map[string]any{"id": "g1"}},
	}))
	require.NotNil(t, m.ActiveGraphID())
	require.Equal(t, "g1", *m.ActiveGraphID())

	require.NoError(t, m.LocalApply([]model.Op{
		{Kind: model.OpDeleteGraph, Payload: map[string]any{"id": "g1"}},
	}))
	require.Nil(t, m.ActiveGraphID(), "active graph pointer must null out when its graph is deleted")
}

func TestDeleteGraphNonActiveGraphLeavesActivePointerAlone(t *testing.T) {
	m := mirror.New()
	require.NoError(t, m.LocalApply([]model.Op{
		{Kind: model.OpCreateNewGraph, Payload: map[string]any{"id": "g1", "name": "Keep"}},
		{Kind: model.OpCreateNewGraph, Payload: map[string]any{"id": "g2", "name": "Drop"}},
		{Kind: model.OpSetActiveGraph, Payload: map[string]any{"id": "g1"}},
		{Kind: model.OpDeleteGraph, Payload: map[string]any{"id": "g2"}},
	}))
	require.NotNil(t, m.ActiveGraphID())
	require.Equal(t, "g1", *m.ActiveGraphID())
}

func TestDeleteGraphCascadesToOwnedInstancesAndEdges(t *testing.T) {
	m := mirror.New()
	require.NoError(t, m.LocalApply([]model.Op{
		{Kind: model.OpCreateNewGraph, Payload: map[string]any{"id": "g1", "name": "G"}},
		{Kind: model.OpAddNodePrototype, Payload: map[string]any{"id": "p1", "name": "P"}},
		{Kind: model.OpAddNodeInstance, Payload: map[string]any{"id": "i1", "graphId": "g1", "prototypeId": "p1"}},
		{Kind: model.OpAddNodeInstance, Payload: map[string]any{"id": "i2", "graphId": "g1", "prototypeId": "p1"}},
		{Kind: model.OpAddEdge, Payload: map[string]any{"id": "e1", "graphId": "g1", "sourceInstanceId": "i1", "destinationInstanceId": "i2"}},
	}))

	require.NoError(t, m.LocalApply([]model.Op{
		{Kind: model.OpDeleteGraph, Payload: map[string]any{"id": "g1"}},
	}))

	_, ok := m.Instance("i1")
	require.False(t, ok, "orphaned instance must be removed with its graph")
	_, ok = m.Edge("e1")
	require.False(t, ok, "orphaned edge must be removed with its graph")
}

func TestSmartMergeIsIdempotent(t *testing.T) {
	m := mirror.New()
	snap := mirror.Snapshot{
		Graphs: map[string]model.Graph{
			"g1": {ID: "g1", Name: "G1"},
		},
		Prototypes: map[string]model.Prototype{
			"p1": {ID: "p1", Name: "P1"},
		},
	}

	m.SmartMerge(snap)
	first := m.Snapshot()

	m.SmartMerge(snap)
	second := m.Snapshot()

	require.Equal(t, len(first.Graphs), len(second.Graphs))
	require.Equal(t, len(first.Prototypes), len(second.Prototypes))
	require.Contains(t, second.Graphs, "g1")
	require.Contains(t, second.Prototypes, "p1")
}

func TestSmartMergePreservesLocalOnlyEntries(t *testing.T) {
	m := mirror.New()

	// A local op the UI hasn't echoed back yet.
	require.NoError(t, m.LocalApply([]model.Op{
		{Kind: model.OpCreateNewGraph, Payload: map[string]any{"id": "local-g", "name": "Local"}},
	}))

	// An authoritative snapshot that doesn't know about local-g yet, but
	// does carry a remote graph.
	m.SmartMerge(mirror.Snapshot{
		Graphs: map[string]model.Graph{
			"remote-g": {ID: "remote-g", Name: "Remote"},
		},
	})

	snap := m.Snapshot()
	require.Contains(t, snap.Graphs, "local-g", "local-only entries survive a merge that doesn't mention them")
	require.Contains(t, snap.Graphs, "remote-g")
}

func TestSmartMergeRemoteWinsOnConflict(t *testing.T) {
	m := mirror.New()
	require.NoError(t, m.LocalApply([]model.Op{
		{Kind: model.OpCreateNewGraph, Payload: map[string]any{"id": "g1", "name": "LocalName"}},
	}))

	m.SmartMerge(mirror.Snapshot{
		Graphs: map[string]model.Graph{
			"g1": {ID: "g1", Name: "RemoteName"},
		},
	})

	g, ok := m.Graph("g1")
	require.True(t, ok)
	require.Equal(t, "RemoteName", g.Name, "incoming snapshot wins outright on a present id")
}

func TestApplyAddEdgeRejectsCrossGraphEndpoints(t *testing.T) {
	m := mirror.New()
	require.NoError(t, m.LocalApply([]model.Op{
		{Kind: model.OpCreateNewGraph, Payload: map[string]any{"id": "g1", "name": "G1"}},
		{Kind: model.OpCreateNewGraph, Payload: map[string]any{"id": "g2", "name": "G2"}},
		{Kind: model.OpAddNodePrototype, Payload: map[string]any{"id": "p1", "name": "P"}},
		{Kind: model.OpAddNodeInstance, Payload: map[string]any{"id": "i1", "graphId": "g1", "prototypeId": "p1"}},
		{Kind: model.OpAddNodeInstance, Payload: map[string]any{"id": "i2", "graphId": "g2", "prototypeId": "p1"}},
	}))

	err := m.LocalApply([]model.Op{
		{Kind: model.OpAddEdge, Payload: map[string]any{"id": "e1", "graphId": "g1", "sourceInstanceId": "i1", "destinationInstanceId": "i2"}},
	})
	require.Error(t, err)
}
