// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package model

import "fmt"

// Snapshot is the minimal read surface invariant checks need: lookups by
// id across prototypes, instances, and edges. internal/mirror implements
// this directly against its own maps.
type Snapshot interface {
	Prototype(id string) (Prototype, bool)
	Instance(id string) (Instance, bool)
	Edge(id string) (Edge, bool)
}

// CheckInstanceReferencesPrototype is invariant 1: every instance
// references an existing prototype.
func CheckInstanceReferencesPrototype(s Snapshot, inst Instance) error {
	if _, ok := s.Prototype(inst.PrototypeID); !ok {
		return fmt.Errorf("instance %s references unknown prototype %s", inst.ID, inst.PrototypeID)
	}
	return nil
}

// CheckEdgeEndpointsSameGraph is invariant 2: every edge's endpoints
// reference instances within the same graph as the edge.
func CheckEdgeEndpointsSameGraph(s Snapshot, e Edge) error {
	src, ok := s.Instance(e.SourceInstanceID)
	if !ok {
		return fmt.Errorf("edge %s references unknown source instance %s", e.ID, e.SourceInstanceID)
	}
	dst, ok := s.Instance(e.DestInstanceID)
	if !ok {
		return fmt.Errorf("edge %s references unknown destination instance %s", e.ID, e.DestInstanceID)
	}
	if src.GraphID != e.GraphID || dst.GraphID != e.GraphID {
		return fmt.Errorf("edge %s endpoints are not both in graph %s", e.ID, e.GraphID)
	}
	return nil
}

// CheckDirectionalitySubset is invariant 3: arrow directionality targets
// are a subset of {sourceId, destinationId}.
func CheckDirectionalitySubset(e Edge) error {
	for target := range e.Directionality.ArrowsToward {
		if target != e.SourceInstanceID && target != e.DestInstanceID {
			return fmt.Errorf("edge %s directionality targets %s which is neither endpoint", e.ID, target)
		}
	}
	return nil
}

// CheckDefinitionNodesExist is invariant 4: an edge's definition-node ids
// reference existing prototypes.
func CheckDefinitionNodesExist(s Snapshot, e Edge) error {
	for _, id := range e.DefinitionNodeIDs {
		if _, ok := s.Prototype(id); !ok {
			return fmt.Errorf("edge %s definition node %s does not exist", e.ID, id)
		}
	}
	return nil
}

// CheckAll runs the edge invariants 2-4 against a single edge and its
// endpoints, returning every violation found (not just the first).
func CheckAll(s Snapshot, e Edge) []error {
	var errs []error
	if err := CheckEdgeEndpointsSameGraph(s, e); err != nil {
		errs = append(errs, err)
	}
	if err := CheckDirectionalitySubset(e); err != nil {
		errs = append(errs, err)
	}
	if err := CheckDefinitionNodesExist(s, e); err != nil {
		errs = append(errs, err)
	}
	return errs
}
