// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package mirror

import (
	"fmt"

	"github.com/theredstring/bridge/internal/model"
)

// applyOneLocked applies a single op to the mirror. Caller must hold m.mu
// for writing. This is the sole place that interprets model.Op payloads,
// shared by LocalApply (the Executor's synchronous self-view) and
// committer.MirrorCommitter (the reference Committer implementation).
func (m *Mirror) applyOneLocked(op model.Op) error {
	switch op.Kind {
	case model.OpCreateNewGraph:
		return m.applyCreateNewGraph(op.Payload)
	case model.OpDeleteGraph:
		return m.applyDeleteGraph(op.Payload)
	case model.OpAddNodePrototype:
		return m.applyAddNodePrototype(op.Payload)
	case model.OpUpdateNodePrototype:
		return m.applyUpdateNodePrototype(op.Payload)
	case model.OpDeleteNodePrototype:
		return m.applyDeleteNodePrototype(op.Payload)
	case model.OpAddNodeInstance:
		return m.applyAddNodeInstance(op.Payload)
	case model.OpMoveNodeInstance:
		return m.applyMoveNodeInstance(op.Payload)
	case model.OpDeleteNodeInstance:
		return m.applyDeleteNodeInstance(op.Payload)
	case model.OpAddEdge:
		return m.applyAddEdge(op.Payload)
	case model.OpDeleteEdge:
		return m.applyDeleteEdge(op.Payload)
	case model.OpUpdateEdgeDefinition:
		return m.applyUpdateEdgeDefinition(op.Payload)
	case model.OpCreateGroup, model.OpConvertToNodeGroup:
		// Grouping ops only retag an existing prototype's definition
		// graphs; they never touch instances/edges directly.
		return m.applyGroupOp(op.Payload)
	case model.OpSetActiveGraph:
		return m.applySetActiveGraph(op.Payload)
	case model.OpReadResponse:
		// Read responses carry no mutation; they are delivered on the
		// chat channel by the caller, not applied to the mirror.
		return nil
	default:
		return fmt.Errorf("mirror: unknown op kind %q", op.Kind)
	}
}

// lockedView implements model.Snapshot over the mirror's maps without
// taking m.mu, for invariant checks run while the caller holds it.
type lockedView struct{ m *Mirror }

func (v lockedView) Prototype(id string) (model.Prototype, bool) {
	p, ok := v.m.prototypes[id]
	return p, ok
}

func (v lockedView) Instance(id string) (model.Instance, bool) {
	i, ok := v.m.instances[id]
	return i, ok
}

func (v lockedView) Edge(id string) (model.Edge, bool) {
	e, ok := v.m.edges[id]
	return e, ok
}

func str(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}

func strSlice(payload map[string]any, key string) []string {
	raw, ok := payload[key].([]string)
	if ok {
		return raw
	}
	anySlice, ok := payload[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(anySlice))
	for _, v := range anySlice {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func float(payload map[string]any, key string) float64 {
	switch v := payload[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func (m *Mirror) applyCreateNewGraph(p map[string]any) error {
	id := str(p, "id")
	if id == "" {
		return fmt.Errorf("createNewGraph: missing id")
	}
	m.graphs[id] = model.Graph{
		ID:          id,
		Name:        str(p, "name"),
		Description: str(p, "description"),
		Color:       str(p, "color"),
		Provenance:  model.ProvenanceLocal,
	}
	return nil
}

func (m *Mirror) applyDeleteGraph(p map[string]any) error {
	id := str(p, "id")
	g, ok := m.graphs[id]
	if !ok {
		return fmt.Errorf("deleteGraph: unknown graph %s", id)
	}

	// Invariant 6: orphan edges and instances are removed with the graph.
	for _, edgeID := range g.EdgeIDs {
		delete(m.edges, edgeID)
	}
	for _, instID := range g.InstanceIDs {
		delete(m.instances, instID)
	}
	delete(m.graphs, id)

	// Invariant 6: the active-graph pointer becomes null iff it pointed at
	// this graph.
	if m.activeGraphID != nil && *m.activeGraphID == id {
		m.activeGraphID = nil
	}

	newOpen := m.openGraphIDs[:0:0]
	for _, openID := range m.openGraphIDs {
		if openID != id {
			newOpen = append(newOpen, openID)
		}
	}
	m.openGraphIDs = newOpen
	return nil
}

func (m *Mirror) applyAddNodePrototype(p map[string]any) error {
	id := str(p, "id")
	if id == "" {
		return fmt.Errorf("addNodePrototype: missing id")
	}
	m.prototypes[id] = model.Prototype{
		ID:                 id,
		Name:               str(p, "name"),
		Description:        str(p, "description"),
		Color:              str(p, "color"),
		ParentTypeID:       str(p, "parentTypeId"),
		DefinitionGraphIDs: strSlice(p, "definitionGraphIds"),
		Provenance:         model.ProvenanceLocal,
	}
	return nil
}

func (m *Mirror) applyUpdateNodePrototype(p map[string]any) error {
	id := str(p, "id")
	proto, ok := m.prototypes[id]
	if !ok {
		return fmt.Errorf("updateNodePrototype: unknown prototype %s", id)
	}
	if v, ok := p["name"]; ok {
		proto.Name = v.(string)
	}
	if v, ok := p["description"]; ok {
		proto.Description = v.(string)
	}
	if v, ok := p["color"]; ok {
		proto.Color = v.(string)
	}
	proto.Provenance = model.ProvenanceLocal
	m.prototypes[id] = proto
	return nil
}

func (m *Mirror) applyDeleteNodePrototype(p map[string]any) error {
	id := str(p, "id")
	if _, ok := m.prototypes[id]; !ok {
		return fmt.Errorf("deleteNodePrototype: unknown prototype %s", id)
	}
	delete(m.prototypes, id)
	return nil
}

func (m *Mirror) applyAddNodeInstance(p map[string]any) error {
	id := str(p, "id")
	graphID := str(p, "graphId")
	g, ok := m.graphs[graphID]
	if !ok {
		return fmt.Errorf("addNodeInstance: unknown graph %s", graphID)
	}
	scale := float(p, "scale")
	if scale == 0 {
		scale = 1
	}
	m.instances[id] = model.Instance{
		ID:          id,
		GraphID:     graphID,
		PrototypeID: str(p, "prototypeId"),
		X:           float(p, "x"),
		Y:           float(p, "y"),
		Scale:       scale,
		Provenance:  model.ProvenanceLocal,
	}
	if !containsStr(g.InstanceIDs, id) {
		g.InstanceIDs = append(g.InstanceIDs, id)
		g.Provenance = model.ProvenanceLocal
		m.graphs[graphID] = g
	}
	return nil
}

func (m *Mirror) applyMoveNodeInstance(p map[string]any) error {
	id := str(p, "id")
	inst, ok := m.instances[id]
	if !ok {
		return fmt.Errorf("moveNodeInstance: unknown instance %s", id)
	}
	inst.X = float(p, "x")
	inst.Y = float(p, "y")
	inst.Provenance = model.ProvenanceLocal
	m.instances[id] = inst
	return nil
}

func (m *Mirror) applyDeleteNodeInstance(p map[string]any) error {
	id := str(p, "id")
	inst, ok := m.instances[id]
	if !ok {
		return fmt.Errorf("deleteNodeInstance: unknown instance %s", id)
	}

	// Cascade: any edge touching this instance becomes invalid (invariant
	// 2) and is removed along with it.
	for edgeID, e := range m.edges {
		if e.SourceInstanceID == id || e.DestInstanceID == id {
			delete(m.edges, edgeID)
			m.removeEdgeFromGraph(e.GraphID, edgeID)
		}
	}

	delete(m.instances, id)
	if g, ok := m.graphs[inst.GraphID]; ok {
		g.InstanceIDs = removeStr(g.InstanceIDs, id)
		g.Provenance = model.ProvenanceLocal
		m.graphs[inst.GraphID] = g
	}
	return nil
}

func (m *Mirror) applyAddEdge(p map[string]any) error {
	id := str(p, "id")
	graphID := str(p, "graphId")
	g, ok := m.graphs[graphID]
	if !ok {
		return fmt.Errorf("addEdge: unknown graph %s", graphID)
	}
	e := model.Edge{
		ID:                id,
		GraphID:           graphID,
		SourceInstanceID:  str(p, "sourceInstanceId"),
		DestInstanceID:    str(p, "destinationInstanceId"),
		Name:              str(p, "name"),
		TypePrototypeID:   str(p, "typePrototypeId"),
		Directionality:    model.NewDirectionality(strSlice(p, "arrowsToward")...),
		DefinitionNodeIDs: strSlice(p, "definitionNodeIds"),
		Provenance:        model.ProvenanceLocal,
	}
	for _, err := range model.CheckAll(lockedView{m}, e) {
		return err
	}
	m.edges[id] = e
	if !containsStr(g.EdgeIDs, id) {
		g.EdgeIDs = append(g.EdgeIDs, id)
		g.Provenance = model.ProvenanceLocal
		m.graphs[graphID] = g
	}
	return nil
}

func (m *Mirror) applyDeleteEdge(p map[string]any) error {
	id := str(p, "id")
	e, ok := m.edges[id]
	if !ok {
		return fmt.Errorf("deleteEdge: unknown edge %s", id)
	}
	delete(m.edges, id)
	m.removeEdgeFromGraph(e.GraphID, id)
	return nil
}

func (m *Mirror) removeEdgeFromGraph(graphID, edgeID string) {
	g, ok := m.graphs[graphID]
	if !ok {
		return
	}
	g.EdgeIDs = removeStr(g.EdgeIDs, edgeID)
	m.graphs[graphID] = g
}

func (m *Mirror) applyUpdateEdgeDefinition(p map[string]any) error {
	id := str(p, "id")
	e, ok := m.edges[id]
	if !ok {
		return fmt.Errorf("updateEdgeDefinition: unknown edge %s", id)
	}
	e.DefinitionNodeIDs = strSlice(p, "definitionNodeIds")
	if v, ok := p["typePrototypeId"]; ok {
		e.TypePrototypeID, _ = v.(string)
	}
	if err := model.CheckDefinitionNodesExist(lockedView{m}, e); err != nil {
		return err
	}
	e.Provenance = model.ProvenanceLocal
	m.edges[id] = e
	return nil
}

func (m *Mirror) applyGroupOp(p map[string]any) error {
	protoID := str(p, "prototypeId")
	proto, ok := m.prototypes[protoID]
	if !ok {
		return fmt.Errorf("group op: unknown prototype %s", protoID)
	}
	if defGraphID := str(p, "definitionGraphId"); defGraphID != "" && !containsStr(proto.DefinitionGraphIDs, defGraphID) {
		proto.DefinitionGraphIDs = append(proto.DefinitionGraphIDs, defGraphID)
	}
	proto.Provenance = model.ProvenanceLocal
	m.prototypes[protoID] = proto
	return nil
}

func (m *Mirror) applySetActiveGraph(p map[string]any) error {
	id := str(p, "id")
	if id == "" {
		m.activeGraphID = nil
		return nil
	}
	if _, ok := m.graphs[id]; !ok {
		return fmt.Errorf("setActiveGraph: unknown graph %s", id)
	}
	m.activeGraphID = &id
	return nil
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func removeStr(haystack []string, needle string) []string {
	out := haystack[:0:0]
	for _, s := range haystack {
		if s != needle {
			out = append(out, s)
		}
	}
	return out
}
