// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Package model defines the shared data types that flow through the bridge:
// graphs, node prototypes, node instances, edges, and the patches/ops the
// Executor produces to mutate them.
//
// Thread Safety:
//
//	The types in this package are plain values. Callers that share a *Graph,
//	*Prototype, *Instance, or *Edge across goroutines must synchronize
//	externally (see internal/mirror, which owns that responsibility).
package model

import "time"

// Provenance records whether a mirror entry arrived from the authoritative
// UI snapshot or was applied locally by the Executor ahead of confirmation.
//
// This replaces the "test/foreign" substring heuristic described in the
// source design notes with an explicit tag (see DESIGN.md, Open Question
// Decisions #3).
type Provenance string

const (
	// ProvenanceRemote marks an entry that arrived via a UI snapshot.
	ProvenanceRemote Provenance = "remote"

	// ProvenanceLocal marks an entry applied locally via localApply and not
	// yet confirmed by a subsequent UI snapshot.
	ProvenanceLocal Provenance = "local"
)

// Graph is a directed, labeled multi-graph container: an ordered set of
// node instances and an ordered set of edges, identified by a stable id.
type Graph struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`

	// InstanceIDs is the ordered set of node instances this graph owns.
	InstanceIDs []string `json:"instanceIds"`

	// EdgeIDs is the ordered set of edges this graph owns.
	EdgeIDs []string `json:"edgeIds"`

	Provenance Provenance `json:"-"`
}

// Prototype is a reusable concept. Prototypes are shared across graphs and
// deduplicated by case-insensitive name (see the fuzzy dedup rule in
// internal/executor).
type Prototype struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`

	// ParentTypeID optionally points at another prototype this one
	// specializes.
	ParentTypeID string `json:"parentTypeId,omitempty"`

	// DefinitionGraphIDs are graphs that semantically define this concept.
	DefinitionGraphIDs []string `json:"definitionGraphIds,omitempty"`

	Provenance Provenance `json:"-"`
}

// Instance is a placement of a Prototype within one Graph.
type Instance struct {
	ID          string  `json:"id"`
	GraphID     string  `json:"graphId"`
	PrototypeID string  `json:"prototypeId"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Scale       float64 `json:"scale"`

	Provenance Provenance `json:"-"`
}

// Directionality is the set of endpoints an edge's arrows point toward.
// An empty set is undirected; one element is unidirectional; both is
// bidirectional.
type Directionality struct {
	ArrowsToward map[string]bool `json:"-"`
}

// NewDirectionality builds a Directionality from the endpoint ids that
// should receive an arrowhead.
func NewDirectionality(targets ...string) Directionality {
	d := Directionality{ArrowsToward: make(map[string]bool, len(targets))}
	for _, t := range targets {
		if t != "" {
			d.ArrowsToward[t] = true
		}
	}
	return d
}

// Kind classifies the directionality relative to a source/destination pair.
func (d Directionality) Kind(sourceID, destinationID string) string {
	switch {
	case d.ArrowsToward[sourceID] && d.ArrowsToward[destinationID]:
		return "bidirectional"
	case d.ArrowsToward[sourceID] || d.ArrowsToward[destinationID]:
		return "unidirectional"
	default:
		return "none"
	}
}

// Edge is a connection between two instances within one graph.
type Edge struct {
	ID                string          `json:"id"`
	GraphID           string          `json:"graphId"`
	SourceInstanceID  string          `json:"sourceInstanceId"`
	DestInstanceID    string          `json:"destinationInstanceId"`
	Name              string          `json:"name"`
	TypePrototypeID   string          `json:"typePrototypeId,omitempty"`
	Directionality    Directionality  `json:"directionality"`
	DefinitionNodeIDs []string        `json:"definitionNodeIds,omitempty"`

	Provenance Provenance `json:"-"`
}

// OpKind is the closed set of mutation operation kinds a Patch may carry.
type OpKind string

const (
	OpCreateNewGraph       OpKind = "createNewGraph"
	OpDeleteGraph          OpKind = "deleteGraph"
	OpAddNodePrototype     OpKind = "addNodePrototype"
	OpUpdateNodePrototype  OpKind = "updateNodePrototype"
	OpDeleteNodePrototype  OpKind = "deleteNodePrototype"
	OpAddNodeInstance      OpKind = "addNodeInstance"
	OpMoveNodeInstance     OpKind = "moveNodeInstance"
	OpDeleteNodeInstance   OpKind = "deleteNodeInstance"
	OpAddEdge              OpKind = "addEdge"
	OpDeleteEdge           OpKind = "deleteEdge"
	OpUpdateEdgeDefinition OpKind = "updateEdgeDefinition"
	OpCreateGroup          OpKind = "createGroup"
	OpConvertToNodeGroup   OpKind = "convertToNodeGroup"
	OpSetActiveGraph       OpKind = "setActiveGraph"
	OpReadResponse         OpKind = "readResponse"
)

// validOpKinds is the closed set used by OpKind.Valid.
var validOpKinds = map[OpKind]bool{
	OpCreateNewGraph:       true,
	OpDeleteGraph:          true,
	OpAddNodePrototype:     true,
	OpUpdateNodePrototype:  true,
	OpDeleteNodePrototype:  true,
	OpAddNodeInstance:      true,
	OpMoveNodeInstance:     true,
	OpDeleteNodeInstance:   true,
	OpAddEdge:              true,
	OpDeleteEdge:           true,
	OpUpdateEdgeDefinition: true,
	OpCreateGroup:          true,
	OpConvertToNodeGroup:   true,
	OpSetActiveGraph:       true,
	OpReadResponse:         true,
}

// Valid reports whether k belongs to the closed op-kind set.
func (k OpKind) Valid() bool {
	return validOpKinds[k]
}

// Op is a single mutation drawn from the closed OpKind set. Payload carries
// kind-specific fields as a loosely typed map so the Executor can emit any
// op without a type switch explosion; the Auditor and Committer interpret
// Payload according to Kind.
type Op struct {
	Kind    OpKind         `json:"kind"`
	Payload map[string]any `json:"payload"`
}

// Patch is an ordered list of ops produced by the Executor for one task.
type Patch struct {
	PatchID  string         `json:"patchId"`
	ThreadID string         `json:"threadId"`
	GraphID  string         `json:"graphId"`
	BaseHash *string        `json:"baseHash"`
	Ops      []Op           `json:"ops"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// CID extracts the correlation id from a patch's meta, if present.
func (p Patch) CID() string {
	if p.Meta == nil {
		return ""
	}
	if v, ok := p.Meta["cid"].(string); ok {
		return v
	}
	return ""
}

// ReviewStatus is the Auditor's verdict on a Patch.
type ReviewStatus string

const (
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// Review is the record the Auditor enqueues for the Committer (or, when
// rejected, for discard).
type Review struct {
	Status  ReviewStatus   `json:"reviewStatus"`
	GraphID string         `json:"graphId"`
	Patch   Patch          `json:"patch"`
	Meta    map[string]any `json:"meta,omitempty"`
	Issues  []string       `json:"issues,omitempty"`
}

// Goal is the unit the Planner consumes: a DAG of tasks described loosely
// enough that Planner implementations can vary in how they expand it.
type Goal struct {
	GoalID     string         `json:"goalId"`
	ThreadID   string         `json:"threadId"`
	ToolCalls  []ToolCall     `json:"toolCalls"`
	Meta       map[string]any `json:"meta,omitempty"`
	EnqueuedAt time.Time      `json:"enqueuedAt"`
}

// ToolCall is one semantic tool invocation the agent requested.
type ToolCall struct {
	ToolName  string         `json:"toolName"`
	Arguments map[string]any `json:"arguments"`
}

// Task is one unit of planner output: a single tool call plus routing
// metadata, ready for the Executor to pull and synthesize ops from.
type Task struct {
	TaskID       string         `json:"taskId"`
	ThreadID     string         `json:"threadId"`
	PartitionKey string         `json:"partitionKey"`
	ToolName     string         `json:"toolName"`
	Arguments    map[string]any `json:"arguments"`
	Meta         map[string]any `json:"meta,omitempty"`
}

// CID extracts the correlation id from a task's meta, if present.
func (t Task) CID() string {
	if t.Meta == nil {
		return ""
	}
	if v, ok := t.Meta["cid"].(string); ok {
		return v
	}
	return ""
}
