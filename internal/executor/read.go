// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package executor

import (
	"context"
	"strings"

	"github.com/theredstring/bridge/internal/graphquery"
	"github.com/theredstring/bridge/internal/model"
)

// readResponse builds a readResponse op carrying result (or, on failure,
// an {error} payload) — external read failures are not task failures
//.
func readResponse(result any) model.Op {
	return model.Op{Kind: model.OpReadResponse, Payload: map[string]any{"result": result}}
}

func readError(msg string) model.Op {
	return model.Op{Kind: model.OpReadResponse, Payload: map[string]any{"error": msg}}
}

func (e *Executor) synthesizeRead(ctx context.Context, toolName string, args map[string]any) ([]model.Op, string, error) {
	switch toolName {
	case "read_graph_structure":
		graphID, _ := args["graph_id"].(string)
		if _, ok := e.src.Graph(graphID); !ok {
			return nil, "", errNotFound("graph", graphID)
		}
		includeDesc, _ := args["include_descriptions"].(bool)
		includeColor, _ := args["include_colors"].(bool)
		structure, err := graphquery.GetGraphSemanticStructure(e.src, graphID, graphquery.Options{
			IncludeDescriptions: includeDesc,
			IncludeColors:       includeColor,
		})
		if err != nil {
			return []model.Op{readError(err.Error())}, graphID, nil
		}
		return []model.Op{readResponse(structure)}, graphID, nil

	case "get_edge_info":
		edgeID, _ := args["edge_id"].(string)
		edge, ok := e.src.Edge(edgeID)
		if !ok {
			return nil, "", errNotFound("edge", edgeID)
		}
		return []model.Op{readResponse(edge)}, edge.GraphID, nil

	case "get_node_definition":
		protoID, _ := args["prototype_id"].(string)
		proto, ok := e.src.Prototype(protoID)
		if !ok {
			return nil, "", errNotFound("prototype", protoID)
		}
		return []model.Op{readResponse(proto)}, "", nil

	case "sparql_query":
		query, _ := args["query"].(string)
		if e.backend == nil {
			return []model.Op{readError("no search backend configured")}, "", nil
		}
		cctx, cancel := context.WithTimeout(ctx, e.externalDeadline)
		defer cancel()
		result, err := e.backend.SPARQLQuery(cctx, query)
		if err != nil {
			return []model.Op{readError(err.Error())}, "", nil
		}
		return []model.Op{readResponse(result)}, "", nil

	case "semantic_search":
		query, _ := args["query"].(string)
		limit := 10
		if l, ok := args["limit"].(float64); ok {
			limit = int(l)
		}
		if e.backend == nil {
			return []model.Op{readError("no search backend configured")}, "", nil
		}
		cctx, cancel := context.WithTimeout(ctx, e.externalDeadline)
		defer cancel()
		hits, err := e.backend.SemanticSearch(cctx, query, limit)
		if err != nil {
			return []model.Op{readError(err.Error())}, "", nil
		}
		return []model.Op{readResponse(hits)}, "", nil
	}

	return nil, "", errInvalid("tool %q has no read synthesis handler", toolName)
}

// genericConnectionLabels are skipped by define_connections when
// skip_generic is set "optionally skip generic
// labels" clause.
var genericConnectionLabels = map[string]bool{
	"connects":   true,
	"relates to": true,
	"relates":    true,
	"linked to":  true,
}

// synthesizeDefineConnections synthesizes or reuses a connection-definition
// prototype for every edge in graphID lacking one, one per distinct
// label, batch-deduplicated, capped by limit.
func (e *Executor) synthesizeDefineConnections(graphID string, limit int, skipGeneric bool) ([]model.Op, error) {
	g, ok := e.src.Graph(graphID)
	if !ok {
		return nil, errNotFound("graph", graphID)
	}

	var ops []model.Op
	cache := newBatchCache()
	count := 0
	for _, edgeID := range g.EdgeIDs {
		if count >= limit {
			break
		}
		edge, ok := e.src.Edge(edgeID)
		if !ok || edge.TypePrototypeID != "" || edge.Name == "" {
			continue
		}
		if skipGeneric && genericConnectionLabels[strings.ToLower(edge.Name)] {
			continue
		}
		defName := titleCase(edge.Name)
		defProtoID, _ := e.resolvePrototype(defName, cache, &ops, colorFromName(defName))
		ops = append(ops, model.Op{Kind: model.OpUpdateEdgeDefinition, Payload: map[string]any{
			"id": edge.ID, "typePrototypeId": defProtoID, "definitionNodeIds": edge.DefinitionNodeIDs,
		}})
		count++
	}
	return ops, nil
}
