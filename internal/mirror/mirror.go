// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Package mirror holds the bridge's merged view of UI state: graphs,
// prototypes, instances, and edges, plus the scalar pointers
// (activeGraphId, openGraphIds) the UI tracks. It reconciles authoritative
// snapshots from the UI with operations the Executor applies locally ahead
// of confirmation.
//
// Thread Safety:
//
//	Mirror is writer-exclusive during smartMerge and localApply: both take
//	the write lock for their whole duration so no reader ever observes a
//	half-merged state.
package mirror

import (
	"maps"
	"sync"
	"time"

	"github.com/theredstring/bridge/internal/model"
)

// Snapshot is the wire shape the UI posts to register/update the mirror.
// Graphs, Prototypes, Instances, and Edges are keyed by id, matching
// "cyclic container shapes" guidance (id-keyed maps plus
// per-graph ordered id lists).
type Snapshot struct {
	Graphs       map[string]model.Graph     `json:"graphs"`
	Prototypes   map[string]model.Prototype `json:"prototypes"`
	Instances    map[string]model.Instance  `json:"instances"`
	Edges        map[string]model.Edge      `json:"edges"`
	ActiveGraphID *string                   `json:"activeGraphId"`
	OpenGraphIDs  []string                  `json:"openGraphIds"`
}

// Summary is exposed on read endpoints.
type Summary struct {
	LastUpdate  time.Time `json:"lastUpdate"`
	GraphCount  int       `json:"graphCount"`
	PrototypeCount int    `json:"prototypeCount"`
}

// Mirror is the merged state store.
type Mirror struct {
	mu sync.RWMutex

	graphs     map[string]model.Graph
	prototypes map[string]model.Prototype
	instances  map[string]model.Instance
	edges      map[string]model.Edge

	activeGraphID *string
	openGraphIDs  []string

	lastUpdate time.Time
}

// New returns an empty Mirror.
func New() *Mirror {
	return &Mirror{
		graphs:     make(map[string]model.Graph),
		prototypes: make(map[string]model.Prototype),
		instances:  make(map[string]model.Instance),
		edges:      make(map[string]model.Edge),
	}
}

// SmartMerge performs the union-biased merge described in:
// incoming entries replace by id; entries tagged ProvenanceLocal that are
// absent from the incoming snapshot survive (they represent ops the
// Executor applied locally that the UI hasn't echoed back yet); scalar
// pointers are overwritten when present in incoming.
func (m *Mirror) SmartMerge(incoming Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.graphs = mergeByID(m.graphs, incoming.Graphs, model.ProvenanceRemote, func(g model.Graph) model.Provenance { return g.Provenance }, func(g model.Graph, p model.Provenance) model.Graph { g.Provenance = p; return g })
	m.prototypes = mergeByID(m.prototypes, incoming.Prototypes, model.ProvenanceRemote, func(p model.Prototype) model.Provenance { return p.Provenance }, func(p model.Prototype, pr model.Provenance) model.Prototype { p.Provenance = pr; return p })
	m.instances = mergeByID(m.instances, incoming.Instances, model.ProvenanceRemote, func(i model.Instance) model.Provenance { return i.Provenance }, func(i model.Instance, p model.Provenance) model.Instance { i.Provenance = p; return i })
	m.edges = mergeByID(m.edges, incoming.Edges, model.ProvenanceRemote, func(e model.Edge) model.Provenance { return e.Provenance }, func(e model.Edge, p model.Provenance) model.Edge { e.Provenance = p; return e })

	if incoming.ActiveGraphID != nil {
		m.activeGraphID = incoming.ActiveGraphID
	}
	if incoming.OpenGraphIDs != nil {
		m.openGraphIDs = incoming.OpenGraphIDs
	}

	m.lastUpdate = time.Now()
}

// mergeByID implements the union-biased replace: every incoming id wins
// outright (stamped remote provenance); every existing id absent from
// incoming survives only if it was tagged local (an Executor-applied entry
// the UI snapshot hasn't caught up to yet).
func mergeByID[T any](existing, incoming map[string]T, remoteTag model.Provenance, provenanceOf func(T) model.Provenance, withProvenance func(T, model.Provenance) T) map[string]T {
	merged := make(map[string]T, len(incoming)+len(existing))
	for id, v := range incoming {
		merged[id] = withProvenance(v, remoteTag)
	}
	for id, v := range existing {
		if _, present := incoming[id]; present {
			continue
		}
		if provenanceOf(v) == model.ProvenanceLocal {
			merged[id] = v
		}
	}
	return merged
}

// LocalApply applies ops synchronously to the mirror so that subsequent
// reads in the same turn observe the Executor's own changes immediately.
// Applied entries are tagged ProvenanceLocal until a future SmartMerge
// confirms them from the UI. If any op fails, the mirror is left as it was
// before the call.
func (m *Mirror) LocalApply(ops []model.Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(ops)
}

func (m *Mirror) applyLocked(ops []model.Op) error {
	graphs, prototypes := maps.Clone(m.graphs), maps.Clone(m.prototypes)
	instances, edges := maps.Clone(m.instances), maps.Clone(m.edges)
	activeGraphID, openGraphIDs := m.activeGraphID, m.openGraphIDs
	for _, op := range ops {
		if err := m.applyOneLocked(op); err != nil {
			m.graphs, m.prototypes, m.instances, m.edges = graphs, prototypes, instances, edges
			m.activeGraphID, m.openGraphIDs = activeGraphID, openGraphIDs
			return err
		}
	}
	m.lastUpdate = time.Now()
	return nil
}

// Snapshot returns a deep-enough copy of current state for callers (e.g.
// the HTTP read surface) that must not hold the mirror's lock while
// serializing.
func (m *Mirror) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := Snapshot{
		Graphs:       make(map[string]model.Graph, len(m.graphs)),
		Prototypes:   make(map[string]model.Prototype, len(m.prototypes)),
		Instances:    make(map[string]model.Instance, len(m.instances)),
		Edges:        make(map[string]model.Edge, len(m.edges)),
		OpenGraphIDs: append([]string(nil), m.openGraphIDs...),
	}
	for k, v := range m.graphs {
		out.Graphs[k] = v
	}
	for k, v := range m.prototypes {
		out.Prototypes[k] = v
	}
	for k, v := range m.instances {
		out.Instances[k] = v
	}
	for k, v := range m.edges {
		out.Edges[k] = v
	}
	if m.activeGraphID != nil {
		id := *m.activeGraphID
		out.ActiveGraphID = &id
	}
	return out
}

// Summary reports the mirror's read-endpoint summary.
func (m *Mirror) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Summary{
		LastUpdate:     m.lastUpdate,
		GraphCount:     len(m.graphs),
		PrototypeCount: len(m.prototypes),
	}
}

// --- model.Snapshot interface, for invariant checks (internal/model) ---

// Prototype implements model.Snapshot.
func (m *Mirror) Prototype(id string) (model.Prototype, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prototypes[id]
	return p, ok
}

// Instance implements model.Snapshot.
func (m *Mirror) Instance(id string) (model.Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.instances[id]
	return i, ok
}

// Edge implements model.Snapshot.
func (m *Mirror) Edge(id string) (model.Edge, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.edges[id]
	return e, ok
}

// Graph returns a graph by id.
func (m *Mirror) Graph(id string) (model.Graph, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.graphs[id]
	return g, ok
}

// ActiveGraphID returns the current active graph pointer, if any.
func (m *Mirror) ActiveGraphID() *string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.activeGraphID == nil {
		return nil
	}
	id := *m.activeGraphID
	return &id
}
