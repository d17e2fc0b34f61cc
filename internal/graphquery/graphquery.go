// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Package graphquery implements the read-only semantic projections over
// the mirror described in: active/by-id/listing lookups and
// the coordinate-free "semantic structure" the agent reasons over.
package graphquery

import (
	"fmt"
	"strings"

	"github.com/theredstring/bridge/internal/mirror"
	"github.com/theredstring/bridge/internal/model"
)

// Source is the subset of Mirror that graphquery depends on, so it can be
// exercised against a fake in tests without constructing a real Mirror.
type Source interface {
	model.Snapshot
	Graph(id string) (model.Graph, bool)
	ActiveGraphID() *string
	Snapshot() mirror.Snapshot
}

// GetActiveGraph returns the graph currently marked active in the mirror,
// if any.
func GetActiveGraph(src Source) (model.Graph, bool) {
	id := src.ActiveGraphID()
	if id == nil {
		return model.Graph{}, false
	}
	return src.Graph(*id)
}

// GetGraphByID looks up a graph by its opaque id.
func GetGraphByID(src Source, id string) (model.Graph, bool) {
	return src.Graph(id)
}

// ListAllGraphs returns every graph currently in the mirror.
func ListAllGraphs(src Source) []model.Graph {
	snap := src.Snapshot()
	out := make([]model.Graph, 0, len(snap.Graphs))
	for _, g := range snap.Graphs {
		out = append(out, g)
	}
	return out
}

// FindGraphsByName returns graphs whose name contains substr, case
// insensitively.
func FindGraphsByName(src Source, substr string) []model.Graph {
	needle := strings.ToLower(substr)
	var out []model.Graph
	for _, g := range ListAllGraphs(src) {
		if strings.Contains(strings.ToLower(g.Name), needle) {
			out = append(out, g)
		}
	}
	return out
}

// NodeProjection is the agent-facing node shape. It deliberately carries no
// x/y/scale fields — the "never includes coordinates" contract is enforced
// by this struct's shape, not by an omission convention at the call site.
type NodeProjection struct {
	ID          string `json:"id"`
	PrototypeID string `json:"prototypeId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// EdgeProjection is the agent-facing edge shape.
type EdgeProjection struct {
	ID                string   `json:"id"`
	SourceID          string   `json:"sourceId"`
	DestinationID     string   `json:"destinationId"`
	Label             string   `json:"label"`
	Directionality    string   `json:"directionality"`
	DefinitionNodeIDs []string `json:"definitionNodeIds"`
}

// SemanticStructure is the full coordinate-free projection of one graph.
type SemanticStructure struct {
	Nodes     []NodeProjection `json:"nodes"`
	Edges     []EdgeProjection `json:"edges"`
	NodeCount int              `json:"nodeCount"`
	EdgeCount int              `json:"edgeCount"`
	IsEmpty   bool             `json:"isEmpty"`
}

// Options toggle optional fields on the node projection.
type Options struct {
	IncludeDescriptions bool
	IncludeColors       bool
}

// GetGraphSemanticStructure builds the agent-facing projection of graphID.
func GetGraphSemanticStructure(src Source, graphID string, opts Options) (SemanticStructure, error) {
	g, ok := src.Graph(graphID)
	if !ok {
		return SemanticStructure{}, fmt.Errorf("graph not found: %s", graphID)
	}

	instanceNames := make(map[string]string, len(g.InstanceIDs))
	nodes := make([]NodeProjection, 0, len(g.InstanceIDs))
	for _, instID := range g.InstanceIDs {
		inst, ok := src.Instance(instID)
		if !ok {
			continue
		}
		proto, _ := src.Prototype(inst.PrototypeID)
		np := NodeProjection{ID: inst.ID, PrototypeID: inst.PrototypeID, Name: proto.Name}
		if opts.IncludeDescriptions {
			np.Description = proto.Description
		}
		if opts.IncludeColors {
			np.Color = proto.Color
		}
		instanceNames[instID] = proto.Name
		nodes = append(nodes, np)
	}

	edges := make([]EdgeProjection, 0, len(g.EdgeIDs))
	for _, edgeID := range g.EdgeIDs {
		e, ok := src.Edge(edgeID)
		if !ok {
			continue
		}
		srcName := instanceNames[e.SourceInstanceID]
		dstName := instanceNames[e.DestInstanceID]
		label := e.Name
		if label == "" {
			label = fmt.Sprintf("%s → %s", srcName, dstName)
		}
		edges = append(edges, EdgeProjection{
			ID:                e.ID,
			SourceID:          e.SourceInstanceID,
			DestinationID:     e.DestInstanceID,
			Label:             label,
			Directionality:    e.Directionality.Kind(e.SourceInstanceID, e.DestInstanceID),
			DefinitionNodeIDs: e.DefinitionNodeIDs,
		})
	}

	return SemanticStructure{
		Nodes:     nodes,
		Edges:     edges,
		NodeCount: len(nodes),
		EdgeCount: len(edges),
		IsEmpty:   len(nodes) == 0,
	}, nil
}
