// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theredstring/bridge/internal/model"
)

type fakeSnapshot struct {
	protos map[string]model.Prototype
	insts  map[string]model.Instance
	edges  map[string]model.Edge
}

func (f fakeSnapshot) Prototype(id string) (model.Prototype, bool) { p, ok := f.protos[id]; return p, ok }
func (f fakeSnapshot) Instance(id string) (model.Instance, bool)   { i, ok := f.insts[id]; return i, ok }
func (f fakeSnapshot) Edge(id string) (model.Edge, bool)           { e, ok := f.edges[id]; return e, ok }

func TestCheckInstanceReferencesPrototype(t *testing.T) {
	snap := fakeSnapshot{protos: map[string]model.Prototype{"p1": {ID: "p1"}}}

	require.NoError(t, model.CheckInstanceReferencesPrototype(snap, model.Instance{ID: "i1", PrototypeID: "p1"}))

	err := model.CheckInstanceReferencesPrototype(snap, model.Instance{ID: "i2", PrototypeID: "missing"})
	require.Error(t, err)
}

func TestCheckEdgeEndpointsSameGraph(t *testing.T) {
	snap := fakeSnapshot{
		insts: map[string]model.Instance{
			"i1": {ID: "i1", GraphID: "g1"},
			"i2": {ID: "i2", GraphID: "g1"},
			"i3": {ID: "i3", GraphID: "g2"},
		},
	}

	ok := model.Edge{ID: "e1", GraphID: "g1", SourceInstanceID: "i1", DestInstanceID: "i2"}
	require.NoError(t, model.CheckEdgeEndpointsSameGraph(snap, ok))

	crossGraph := model.Edge{ID: "e2", GraphID: "g1", SourceInstanceID: "i1", DestInstanceID: "i3"}
	require.Error(t, model.CheckEdgeEndpointsSameGraph(snap, crossGraph))

	dangling := model.Edge{ID: "e3", GraphID: "g1", SourceInstanceID: "i1", DestInstanceID: "does-not-exist"}
	require.Error(t, model.CheckEdgeEndpointsSameGraph(snap, dangling))
}

func TestCheckDirectionalitySubset(t *testing.T) {
	e := model.Edge{
		ID:               "e1",
		SourceInstanceID: "i1",
		DestInstanceID:   "i2",
		Directionality:   model.NewDirectionality("i1"),
	}
	require.NoError(t, model.CheckDirectionalitySubset(e))

	bad := model.Edge{
		ID:               "e2",
		SourceInstanceID: "i1",
		DestInstanceID:   "i2",
		Directionality:   model.NewDirectionality("i3"),
	}
	require.Error(t, model.CheckDirectionalitySubset(bad))
}

func TestDirectionalityKind(t *testing.T) {
	none := model.NewDirectionality()
	require.Equal(t, "none", none.Kind("i1", "i2"))

	uni := model.NewDirectionality("i2")
	require.Equal(t, "unidirectional", uni.Kind("i1", "i2"))

	bi := model.NewDirectionality("i1", "i2")
	require.Equal(t, "bidirectional", bi.Kind("i1", "i2"))
}

func TestCheckDefinitionNodesExist(t *testing.T) {
	snap := fakeSnapshot{protos: map[string]model.Prototype{"def1": {ID: "def1"}}}

	ok := model.Edge{ID: "e1", DefinitionNodeIDs: []string{"def1"}}
	require.NoError(t, model.CheckDefinitionNodesExist(snap, ok))

	bad := model.Edge{ID: "e2", DefinitionNodeIDs: []string{"missing"}}
	require.Error(t, model.CheckDefinitionNodesExist(snap, bad))
}

func TestOpKindValid(t *testing.T) {
	require.True(t, model.OpAddNodeInstance.Valid())
	require.False(t, model.OpKind("not_a_real_op").Valid())
}
