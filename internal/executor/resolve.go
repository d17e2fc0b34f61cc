// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package executor

import (
	"strings"

	"github.com/theredstring/bridge/internal/model"
)

// batchCache tracks prototypes and instances minted earlier in the same
// synthesis call, so a name repeated twice in one create_subgraph input
// reuses the first op's id instead of emitting a duplicate.
type batchCache struct {
	protoByName map[string]string // lowercased name -> prototype id
	instByProto map[string]string // prototype id -> instance id (within target graph)
}

func newBatchCache() *batchCache {
	return &batchCache{
		protoByName: make(map[string]string),
		instByProto: make(map[string]string),
	}
}

// resolvePrototype finds or mints a prototype id for name, applying exact
// case-insensitive match first, then Dice-bigram fuzzy match at
// e.fuzzyThreshold, then minting a new id and appending an
// addNodePrototype op to ops. fuzzy reports whether the match was fuzzy
// (used for trace/log purposes, scenario 3).
func (e *Executor) resolvePrototype(name string, cache *batchCache, ops *[]model.Op, color string) (id string, fuzzy bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if existing, ok := cache.protoByName[key]; ok {
		return existing, false
	}

	snap := e.src.Snapshot()
	for _, p := range snap.Prototypes {
		if strings.EqualFold(p.Name, name) {
			cache.protoByName[key] = p.ID
			return p.ID, false
		}
	}

	best := ""
	bestScore := 0.0
	for _, p := range snap.Prototypes {
		score := diceBigramSimilarity(p.Name, name)
		if score > bestScore {
			bestScore = score
			best = p.ID
		}
	}
	if bestScore >= e.fuzzyThreshold {
		cache.protoByName[key] = best
		return best, true
	}

	id = e.newID()
	payload := map[string]any{"id": id, "name": name}
	if color != "" {
		payload["color"] = color
	}
	*ops = append(*ops, model.Op{Kind: model.OpAddNodePrototype, Payload: payload})
	cache.protoByName[key] = id
	return id, false
}

// resolveInstance finds or creates an instance of protoID within graphID.
// Reuse checks the mirror's current instances first, then the batch
// cache for instances minted earlier in this same call. created reports
// whether a fresh instance id was minted (the caller still owes it an
// addNodeInstance/moveNodeInstance op via the layout step).
func (e *Executor) resolveInstance(graphID, protoID string, cache *batchCache) (id string, created bool) {
	if existing, ok := cache.instByProto[protoID]; ok {
		return existing, false
	}

	g, ok := e.src.Graph(graphID)
	if ok {
		for _, instID := range g.InstanceIDs {
			inst, ok := e.src.Instance(instID)
			if ok && inst.PrototypeID == protoID {
				cache.instByProto[protoID] = inst.ID
				return inst.ID, false
			}
		}
	}

	id = e.newID()
	cache.instByProto[protoID] = id
	return id, true
}

// resolveGraphByNameFallback resolves id as a graph id; if that fails, it
// falls back to a case-insensitive exact name match, per the
// delete_graph contract: if the provided id does not match a graph,
// resolve by case-insensitive name before emission.
func (e *Executor) resolveGraphByNameFallback(id string) (string, error) {
	if _, ok := e.src.Graph(id); ok {
		return id, nil
	}
	snap := e.src.Snapshot()
	for gid, g := range snap.Graphs {
		if strings.EqualFold(g.Name, id) {
			return gid, nil
		}
	}
	return "", errNotFound("graph", id)
}
