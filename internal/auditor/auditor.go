// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Package auditor validates patches structurally and referentially before
// they reach the Committer: the ops array shape, then
// invariants 1-4 re-checked against the mirror. Invariants 5 and 6 are
// not checked here. Review returns the review record; the scheduler's
// auditor stage enqueues it on reviewQueue.
//
// Thread Safety:
//
//	Auditor is safe for concurrent use; Check registration happens once at
//	construction and Audit only reads the checker list afterward.
package auditor

import (
	"fmt"

	"github.com/theredstring/bridge/internal/model"
)

// Severity indicates how serious an audit issue is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Issue is one finding from a single Check.
type Issue struct {
	Severity Severity
	Code     string
	Message  string
}

// Result aggregates every Check's findings for one patch.
type Result struct {
	Passed        bool
	Issues        []Issue
	CriticalCount int
	WarningCount  int
	ChecksRun     int
}

// HasCritical reports whether any critical issue was found.
func (r *Result) HasCritical() bool { return r.CriticalCount > 0 }

// Check is one independently pluggable referential rule, mirroring the
// teacher's safety-gate Checker pattern: one invariant, one checker.
type Check interface {
	Name() string
	Run(snap model.Snapshot, patch model.Patch) []Issue
}

// Auditor runs the registered Checks against a patch and decides
// approve/reject.
type Auditor struct {
	checks []Check
}

// New builds an Auditor with the ops-shape check and the invariant 1-4
// checks, in addition to any extra checks supplied.
func New(extra ...Check) *Auditor {
	a := &Auditor{}
	a.checks = append(a.checks,
		opsIsArrayCheck{},
		instanceReferencesPrototypeCheck{},
		edgeEndpointsSameGraphCheck{},
		directionalitySubsetCheck{},
		definitionNodesExistCheck{},
	)
	a.checks = append(a.checks, extra...)
	return a
}

// Audit runs every registered Check against patch, observed through snap.
func (a *Auditor) Audit(snap model.Snapshot, patch model.Patch) Result {
	result := Result{Passed: true}
	for _, c := range a.checks {
		issues := c.Run(snap, patch)
		result.ChecksRun++
		for _, issue := range issues {
			result.Issues = append(result.Issues, issue)
			switch issue.Severity {
			case SeverityCritical:
				result.CriticalCount++
			case SeverityWarning:
				result.WarningCount++
			}
		}
	}
	if result.CriticalCount > 0 {
		result.Passed = false
	}
	return result
}

// Review is the record the Auditor enqueues on reviewQueue, matching the
// shape `{reviewStatus, graphId, patch, meta}`.
func (a *Auditor) Review(snap model.Snapshot, patch model.Patch) model.Review {
	result := a.Audit(snap, patch)
	status := model.ReviewApproved
	var issueMsgs []string
	if !result.Passed {
		status = model.ReviewRejected
		for _, i := range result.Issues {
			if i.Severity == SeverityCritical {
				issueMsgs = append(issueMsgs, i.Message)
			}
		}
	}
	return model.Review{
		Status:  status,
		GraphID: patch.GraphID,
		Patch:   patch,
		Meta:    patch.Meta,
		Issues:  issueMsgs,
	}
}

// opsIsArrayCheck enforces the structural contract: Ops must be a
// (possibly empty) slice, never nil-as-absence in a way the Committer
// could misinterpret as "no patch".
type opsIsArrayCheck struct{}

func (opsIsArrayCheck) Name() string { return "ops_is_array" }
func (opsIsArrayCheck) Run(_ model.Snapshot, patch model.Patch) []Issue {
	if patch.Ops == nil {
		return []Issue{{Severity: SeverityCritical, Code: "OPS_NOT_ARRAY", Message: "patch.ops must be an array"}}
	}
	return nil
}

type instanceReferencesPrototypeCheck struct{}

func (instanceReferencesPrototypeCheck) Name() string { return "instance_references_prototype" }
func (instanceReferencesPrototypeCheck) Run(snap model.Snapshot, patch model.Patch) []Issue {
	var issues []Issue
	staged := newStagedSnapshot(snap)
	for _, op := range patch.Ops {
		if op.Kind == model.OpAddNodeInstance {
			protoID, _ := op.Payload["prototypeId"].(string)
			if _, ok := staged.Prototype(protoID); !ok {
				issues = append(issues, Issue{
					Severity: SeverityCritical,
					Code:     "DANGLING_PROTOTYPE_REF",
					Message:  fmt.Sprintf("instance references missing prototype %q", protoID),
				})
			}
		}
		staged.stage(op)
	}
	return issues
}

type edgeEndpointsSameGraphCheck struct{}

func (edgeEndpointsSameGraphCheck) Name() string { return "edge_endpoints_same_graph" }
func (edgeEndpointsSameGraphCheck) Run(snap model.Snapshot, patch model.Patch) []Issue {
	var issues []Issue
	staged := newStagedSnapshot(snap)
	for _, op := range patch.Ops {
		if op.Kind == model.OpAddEdge {
			e := edgeFromPayload(op.Payload)
			if err := model.CheckEdgeEndpointsSameGraph(staged, e); err != nil {
				issues = append(issues, Issue{Severity: SeverityCritical, Code: "CROSS_GRAPH_EDGE", Message: err.Error()})
			}
		}
		staged.stage(op)
	}
	return issues
}

type directionalitySubsetCheck struct{}

func (directionalitySubsetCheck) Name() string { return "directionality_subset" }
func (directionalitySubsetCheck) Run(_ model.Snapshot, patch model.Patch) []Issue {
	var issues []Issue
	for _, op := range patch.Ops {
		if op.Kind != model.OpAddEdge {
			continue
		}
		e := edgeFromPayload(op.Payload)
		if err := model.CheckDirectionalitySubset(e); err != nil {
			issues = append(issues, Issue{Severity: SeverityCritical, Code: "INVALID_DIRECTIONALITY", Message: err.Error()})
		}
	}
	return issues
}

type definitionNodesExistCheck struct{}

func (definitionNodesExistCheck) Name() string { return "definition_nodes_exist" }
func (definitionNodesExistCheck) Run(snap model.Snapshot, patch model.Patch) []Issue {
	var issues []Issue
	staged := newStagedSnapshot(snap)
	for _, op := range patch.Ops {
		if op.Kind == model.OpAddEdge || op.Kind == model.OpUpdateEdgeDefinition {
			e := edgeFromPayload(op.Payload)
			if err := model.CheckDefinitionNodesExist(staged, e); err != nil {
				issues = append(issues, Issue{Severity: SeverityCritical, Code: "DANGLING_DEFINITION_NODE", Message: err.Error()})
			}
		}
		staged.stage(op)
	}
	return issues
}

// stagedSnapshot overlays the prototypes/instances/edges minted by earlier
// ops in the same patch onto the base mirror snapshot. The Executor emits
// self-contained create patches — e.g. an addNodePrototype followed by an
// addNodeInstance{prototypeId: <that id>} in the same array — and never
// commits to the mirror before the Auditor runs, so those ids don't exist
// in snap yet. Per the "ops applied in array order" / "referenced at
// commit time" invariants, a referential Check must see the effect of
// every op before it in the array, not just what's already in the mirror.
type stagedSnapshot struct {
	base       model.Snapshot
	prototypes map[string]model.Prototype
	instances  map[string]model.Instance
	edges      map[string]model.Edge
}

func newStagedSnapshot(base model.Snapshot) *stagedSnapshot {
	return &stagedSnapshot{base: base}
}

func (s *stagedSnapshot) Prototype(id string) (model.Prototype, bool) {
	if p, ok := s.prototypes[id]; ok {
		return p, true
	}
	return s.base.Prototype(id)
}

func (s *stagedSnapshot) Instance(id string) (model.Instance, bool) {
	if i, ok := s.instances[id]; ok {
		return i, true
	}
	return s.base.Instance(id)
}

func (s *stagedSnapshot) Edge(id string) (model.Edge, bool) {
	if e, ok := s.edges[id]; ok {
		return e, true
	}
	return s.base.Edge(id)
}

// stage records the entity op mints, if any, so later ops in the same
// patch can reference it. Must be called in array order, after the op has
// already been checked against the overlay as it stood before this call.
func (s *stagedSnapshot) stage(op model.Op) {
	switch op.Kind {
	case model.OpAddNodePrototype:
		id := strField(op.Payload, "id")
		if id == "" {
			return
		}
		if s.prototypes == nil {
			s.prototypes = make(map[string]model.Prototype)
		}
		s.prototypes[id] = model.Prototype{ID: id, Name: strField(op.Payload, "name")}
	case model.OpAddNodeInstance:
		id := strField(op.Payload, "id")
		if id == "" {
			return
		}
		if s.instances == nil {
			s.instances = make(map[string]model.Instance)
		}
		s.instances[id] = model.Instance{
			ID:          id,
			GraphID:     strField(op.Payload, "graphId"),
			PrototypeID: strField(op.Payload, "prototypeId"),
		}
	case model.OpAddEdge:
		id := strField(op.Payload, "id")
		if id == "" {
			return
		}
		if s.edges == nil {
			s.edges = make(map[string]model.Edge)
		}
		s.edges[id] = edgeFromPayload(op.Payload)
	}
}

// edgeFromPayload builds just enough of a model.Edge from an op payload to
// run the referential Checks; full field fidelity isn't needed here since
// the mirror's own apply path (internal/mirror) owns object construction.
func edgeFromPayload(p map[string]any) model.Edge {
	e := model.Edge{
		GraphID:          strField(p, "graphId"),
		SourceInstanceID: strField(p, "sourceInstanceId"),
		DestInstanceID:   strField(p, "destinationInstanceId"),
		Directionality:   model.NewDirectionality(stringsField(p, "arrowsToward")...),
	}
	for _, id := range stringsField(p, "definitionNodeIds") {
		e.DefinitionNodeIDs = append(e.DefinitionNodeIDs, id)
	}
	return e
}

func strField(p map[string]any, key string) string {
	v, _ := p[key].(string)
	return v
}

func stringsField(p map[string]any, key string) []string {
	raw, ok := p[key].([]string)
	if ok {
		return raw
	}
	anySlice, ok := p[key].([]any)
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
