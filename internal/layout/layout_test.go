// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package layout_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theredstring/bridge/internal/layout"
)

func threeNodes() []layout.Node {
	return []layout.Node{
		{ID: "n1", Label: "Paris"},
		{ID: "n2", Label: "Lyon"},
		{ID: "n3", Label: "Nice"},
	}
}

func TestComputeForceIsDeterministic(t *testing.T) {
	nodes := threeNodes()
	edges := []layout.Edge{{SourceID: "n1", TargetID: "n2"}}
	opts := layout.Options{Algorithm: layout.AlgorithmForce, Mode: layout.ModeFull}

	first := layout.Compute(nodes, edges, opts)
	second := layout.Compute(nodes, edges, opts)

	require.Equal(t, first.Positions, second.Positions, "same graph must produce bit-for-bit identical layout")
}

func TestComputeForceCentersAndBounds(t *testing.T) {
	nodes := threeNodes()
	result := layout.Compute(nodes, nil, layout.Options{Algorithm: layout.AlgorithmForce, Mode: layout.ModeFull})

	var sx, sy float64
	for _, p := range result.Positions {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(result.Positions))
	require.InDelta(t, 0, sx/n, 1e-6)
	require.InDelta(t, 0, sy/n, 1e-6)

	maxExtent := math.Max(2000, math.Sqrt(3)*400)
	for _, p := range result.Positions {
		require.LessOrEqual(t, math.Abs(p.X), maxExtent)
		require.LessOrEqual(t, math.Abs(p.Y), maxExtent)
	}
}

func TestComputeHierarchicalSeparatesLevels(t *testing.T) {
	nodes := threeNodes()
	edges := []layout.Edge{{SourceID: "n1", TargetID: "n2"}, {SourceID: "n2", TargetID: "n3"}}
	result := layout.Compute(nodes, edges, layout.Options{Algorithm: layout.AlgorithmHierarchical, Mode: layout.ModeFull})

	require.NotEqual(t, result.Positions["n1"].Y, result.Positions["n2"].Y)
	require.NotEqual(t, result.Positions["n2"].Y, result.Positions["n3"].Y)
}

func TestComputePartialPreservesAnchors(t *testing.T) {
	nodes := []layout.Node{
		{ID: "n1", Label: "Existing", Existing: layout.Point{X: 42, Y: 7}, HasExisting: true},
		{ID: "n2", Label: "New"},
	}
	result := layout.Compute(nodes, nil, layout.Options{Algorithm: layout.AlgorithmForce, Mode: layout.ModePartial})

	require.Equal(t, layout.Point{X: 42, Y: 7}, result.Positions["n1"])
}

func TestComputeRadialSingleNodeAtOrigin(t *testing.T) {
	nodes := []layout.Node{{ID: "only", Label: "Solo"}}
	result := layout.Compute(nodes, nil, layout.Options{Algorithm: layout.AlgorithmRadial, Mode: layout.ModeFull})
	require.InDelta(t, 0, result.Positions["only"].X, 1e-9)
	require.InDelta(t, 0, result.Positions["only"].Y, 1e-9)
}
