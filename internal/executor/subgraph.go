// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package executor

import (
	"math"

	"github.com/theredstring/bridge/internal/layout"
	"github.com/theredstring/bridge/internal/model"
)

const positionEpsilon = 0.5

// synthesizeSubgraph implements the create_subgraph pipeline: fuzzy prototype dedup, reuse-or-create instances, layout-mode
// selection, and edge resolution with directionality + definition
// synthesis. graphID may name a graph that does not exist yet in the
// mirror (the create_subgraph_in_new_graph / create_populated_graph
// callers pass a not-yet-committed id); resolveInstance/resolvePrototype
// degrade gracefully to "nothing existing" in that case.
func (e *Executor) synthesizeSubgraph(graphID string, args map[string]any) ([]model.Op, bool, error) {
	names, _ := args["nodes"].([]string)
	rawEdges, _ := args["edges"].([]any)
	algorithm, _ := args["algorithm"].(string)
	layoutMode, _ := args["layout_mode"].(string)

	cache := newBatchCache()
	var ops []model.Op
	anyFuzzy := false

	type pendingNode struct {
		id      string
		protoID string
		label   string
		fresh   bool
	}
	nodeByName := make(map[string]pendingNode, len(names))

	resolveNode := func(name string) pendingNode {
		if pn, ok := nodeByName[name]; ok {
			return pn
		}
		protoID, fuzzy := e.resolvePrototype(name, cache, &ops, "")
		if fuzzy {
			anyFuzzy = true
		}
		instID, created := e.resolveInstance(graphID, protoID, cache)
		pn := pendingNode{id: instID, protoID: protoID, label: name, fresh: created}
		nodeByName[name] = pn
		return pn
	}

	for _, name := range names {
		resolveNode(name)
	}

	type pendingEdge struct {
		spec     edgeSpec
		sourceID string
		targetID string
	}
	var pendingEdges []pendingEdge
	for _, raw := range rawEdges {
		spec, err := parseEdgeSpec(raw)
		if err != nil {
			return nil, false, err
		}
		src := resolveNode(spec.Source)
		dst := resolveNode(spec.Target)
		pendingEdges = append(pendingEdges, pendingEdge{spec: spec, sourceID: src.id, targetID: dst.id})
	}

	// Resolve layout mode.
	existingGraph, graphExists := e.src.Graph(graphID)
	mode := layout.Mode(layoutMode)
	if layoutMode == "" || layoutMode == "auto" {
		if graphExists && len(existingGraph.InstanceIDs) > 0 {
			mode = layout.ModePartial
		} else {
			mode = layout.ModeFull
		}
	}

	var layoutNodes []layout.Node
	var layoutEdges []layout.Edge

	if graphExists {
		for _, instID := range existingGraph.InstanceIDs {
			inst, ok := e.src.Instance(instID)
			if !ok {
				continue
			}
			proto, _ := e.src.Prototype(inst.PrototypeID)
			layoutNodes = append(layoutNodes, layout.Node{
				ID: instID, Label: proto.Name,
				Existing: layout.Point{X: inst.X, Y: inst.Y}, HasExisting: true,
			})
		}
		for _, edgeID := range existingGraph.EdgeIDs {
			edge, ok := e.src.Edge(edgeID)
			if ok {
				layoutEdges = append(layoutEdges, layout.Edge{SourceID: edge.SourceInstanceID, TargetID: edge.DestInstanceID})
			}
		}
	}

	seen := make(map[string]bool, len(layoutNodes))
	for _, n := range layoutNodes {
		seen[n.ID] = true
	}
	for _, pn := range nodeByName {
		if seen[pn.id] {
			continue
		}
		seen[pn.id] = true
		layoutNodes = append(layoutNodes, layout.Node{ID: pn.id, Label: pn.label, HasExisting: false})
	}
	for _, pe := range pendingEdges {
		layoutEdges = append(layoutEdges, layout.Edge{SourceID: pe.sourceID, TargetID: pe.targetID})
	}

	alg := layout.Algorithm(algorithm)
	if alg == "" {
		alg = layout.AlgorithmForce
	}
	result := layout.Compute(layoutNodes, layoutEdges, layout.Options{Algorithm: alg, Mode: mode})

	for _, pn := range nodeByName {
		pos := result.Positions[pn.id]
		if pn.fresh {
			ops = append(ops, model.Op{Kind: model.OpAddNodeInstance, Payload: map[string]any{
				"id": pn.id, "graphId": graphID, "prototypeId": pn.protoID, "x": pos.X, "y": pos.Y, "scale": 1.0,
			}})
		} else if mode == layout.ModeFull {
			if inst, ok := e.src.Instance(pn.id); ok && (math.Abs(inst.X-pos.X) > positionEpsilon || math.Abs(inst.Y-pos.Y) > positionEpsilon) {
				ops = append(ops, model.Op{Kind: model.OpMoveNodeInstance, Payload: map[string]any{"id": pn.id, "x": pos.X, "y": pos.Y}})
			}
		}
	}

	if mode == layout.ModeFull {
		for _, n := range layoutNodes {
			if !n.HasExisting {
				continue
			}
			pos, ok := result.Positions[n.ID]
			if !ok {
				continue
			}
			if _, alreadyQueued := nodeByName[n.Label]; alreadyQueued {
				continue
			}
			if inst, ok := e.src.Instance(n.ID); ok && (math.Abs(inst.X-pos.X) > positionEpsilon || math.Abs(inst.Y-pos.Y) > positionEpsilon) {
				ops = append(ops, model.Op{Kind: model.OpMoveNodeInstance, Payload: map[string]any{"id": n.ID, "x": pos.X, "y": pos.Y}})
			}
		}
	}

	definitionCache := newBatchCache()
	for _, pe := range pendingEdges {
		edgeID := e.newID()
		payload := map[string]any{
			"id":                    edgeID,
			"graphId":               graphID,
			"sourceInstanceId":      pe.sourceID,
			"destinationInstanceId": pe.targetID,
			"name":                  pe.spec.Label,
			"arrowsToward":          arrowsToward(pe.spec.Directionality, pe.sourceID, pe.targetID),
		}
		if pe.spec.Definition != "" {
			defName := titleCase(pe.spec.Definition)
			defProtoID, fuzzy := e.resolvePrototype(defName, definitionCache, &ops, colorFromName(defName))
			if fuzzy {
				anyFuzzy = true
			}
			payload["typePrototypeId"] = defProtoID
		}
		ops = append(ops, model.Op{Kind: model.OpAddEdge, Payload: payload})
	}

	return ops, anyFuzzy, nil
}

// arrowsToward maps the {unidirectional,bidirectional,none,reverse}
// directionality vocabulary onto the endpoint id(s) that should receive an
// arrowhead.
func arrowsToward(kind, sourceID, targetID string) []string {
	switch kind {
	case "bidirectional":
		return []string{sourceID, targetID}
	case "reverse":
		return []string{sourceID}
	case "none":
		return nil
	default: // "unidirectional"
		return []string{targetID}
	}
}
