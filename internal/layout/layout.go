// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Package layout implements the deterministic placement engine described
// in: force/hierarchical/radial/linear algorithms over a node
// and edge set, with panel-aware sizing and full/partial recentering.
//
// The force algorithm never touches math/rand's global source. Every run
// is seeded from a deterministic hash of the sorted node-id set so that
// repeated calls against the same graph are bit-for-bit identical — the
// "must match the UI's Auto-Layout button" requirement in
package layout

import (
	"hash/fnv"
	"math"
	"sort"
)

// Algorithm selects the placement strategy.
type Algorithm string

const (
	AlgorithmForce        Algorithm = "force"
	AlgorithmHierarchical Algorithm = "hierarchical"
	AlgorithmRadial       Algorithm = "radial"
	AlgorithmLinear       Algorithm = "linear"
)

// Mode selects whether the layout repositions every node (full) or only
// the nodes not already present in anchors (partial).
type Mode string

const (
	ModeFull    Mode = "full"
	ModePartial Mode = "partial"
)

const (
	minNodeWidth       = 160
	baseNodeHeight     = 100
	tallNodeHeight     = 140
	longLabelThreshold = 30
	minCanvasSize      = 2000
	canvasPerNode      = 400
	minPadding         = 300
	forceIterations    = 300
)

// Node is one placement-eligible node.
type Node struct {
	ID    string
	Label string
	// Existing is the node's current position, used only in partial mode
	// as an anchor; ignored in full mode.
	Existing Point
	HasExisting bool
}

// Edge connects two node ids; used by force/hierarchical/radial to derive
// adjacency.
type Edge struct {
	SourceID string
	TargetID string
}

// Point is a 2D position.
type Point struct {
	X float64
	Y float64
}

// Options configures one layout run.
type Options struct {
	Algorithm Algorithm
	Mode      Mode
	// PanelLeft, PanelHeader, PanelRight reserve screen-space regions the
	// layout must not place nodes under. Zero means no reservation.
	PanelLeft   float64
	PanelHeader float64
	PanelRight  float64
	// AnchorCenter is the center partial layouts place new nodes around.
	AnchorCenter Point
}

// Result is the computed placement for every node, keyed by node id.
type Result struct {
	Positions map[string]Point
	Width     float64
	Height    float64
}

// nodeSize returns the estimated (width, height) box for a node label:
// width is always minNodeWidth; only the height depends on label length
// (taller past longLabelThreshold characters).
func nodeSize(label string) (float64, float64) {
	w := minNodeWidth
	h := baseNodeHeight
	if len(label) > longLabelThreshold {
		h = tallNodeHeight
	}
	return float64(w), float64(h)
}

// canvasExtent returns the dynamic canvas extent for n nodes:
// max(2000, sqrt(n)*400) plus minPadding.
func canvasExtent(n int) float64 {
	dynamic := math.Sqrt(float64(n)) * canvasPerNode
	extent := math.Max(minCanvasSize, dynamic)
	return extent + minPadding
}

// seedFromNodeIDs derives a deterministic uint64 seed from the sorted set
// of node ids, so layout of the same graph always starts from the same
// pseudo-random state regardless of map iteration order.
func seedFromNodeIDs(nodes []Node) uint64 {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	sort.Strings(ids)

	h := fnv.New64a()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// deterministicRNG is a tiny splitmix64 generator. It is not
// cryptographically meaningful; it exists purely so layout runs are
// reproducible without depending on math/rand's shared, mutable global
// state.
type deterministicRNG struct{ state uint64 }

func newDeterministicRNG(seed uint64) *deterministicRNG {
	return &deterministicRNG{state: seed}
}

func (r *deterministicRNG) next() uint64 {
	r.state += 0x9E3779B97F4A7C15
	z := r.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// float64 returns a deterministic pseudo-random value in [-1, 1).
func (r *deterministicRNG) float64() float64 {
	return (float64(r.next()>>11)/float64(1<<53))*2 - 1
}

// Compute runs the requested algorithm and returns node positions.
func Compute(nodes []Node, edges []Edge, opts Options) Result {
	switch opts.Algorithm {
	case AlgorithmHierarchical:
		return computeHierarchical(nodes, edges, opts)
	case AlgorithmRadial:
		return computeRadial(nodes, edges, opts)
	case AlgorithmLinear:
		return computeLinear(nodes, opts)
	default:
		return computeForce(nodes, edges, opts)
	}
}

func applyPanelConstraints(p Point, opts Options) Point {
	if opts.PanelLeft > 0 && p.X < opts.PanelLeft {
		p.X = opts.PanelLeft
	}
	if opts.PanelHeader > 0 && p.Y < opts.PanelHeader {
		p.Y = opts.PanelHeader
	}
	if opts.PanelRight > 0 && p.X > -opts.PanelRight {
		p.X = -opts.PanelRight
	}
	return p
}

// recenter shifts all positions so their centroid sits at (0,0), used for
// full-mode layouts
func recenter(positions map[string]Point) {
	if len(positions) == 0 {
		return
	}
	var sx, sy float64
	for _, p := range positions {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(positions))
	cx, cy := sx/n, sy/n
	for id, p := range positions {
		positions[id] = Point{X: p.X - cx, Y: p.Y - cy}
	}
}

func boundingSize(positions map[string]Point) (float64, float64) {
	if len(positions) == 0 {
		return 0, 0
	}
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range positions {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return maxX - minX, maxY - minY
}
