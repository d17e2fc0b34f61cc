// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package executor

import (
	"context"

	"github.com/theredstring/bridge/internal/model"
)

// synthesize dispatches a validated, sanitized argument map to the
// handler for task.ToolName and returns the ops, the affected graph id
// (for patch routing; empty when not applicable), and whether any
// prototype in the run was matched by fuzzy (rather than exact) dedup.
func (e *Executor) synthesize(ctx context.Context, task model.Task, args map[string]any) ([]model.Op, string, bool, error) {
	switch task.ToolName {
	case "create_subgraph":
		graphID, _ := args["graph_id"].(string)
		if _, ok := e.src.Graph(graphID); !ok {
			return nil, "", false, errNotFound("graph", graphID)
		}
		ops, fuzzy, err := e.synthesizeSubgraph(graphID, args)
		return ops, graphID, fuzzy, err

	case "create_populated_graph":
		graphID := e.newID()
		createOp := model.Op{Kind: model.OpCreateNewGraph, Payload: map[string]any{"id": graphID, "name": args["name"]}}
		rest, fuzzy, err := e.synthesizeSubgraph(graphID, args)
		if err != nil {
			return nil, "", false, err
		}
		return append([]model.Op{createOp}, rest...), graphID, fuzzy, nil

	case "create_subgraph_in_new_graph":
		name, _ := args["name"].(string)
		placeholder := newGraphPlaceholderPrefix + name
		createOp := model.Op{Kind: model.OpCreateNewGraph, Payload: map[string]any{"id": placeholder, "name": name}}
		rest, fuzzy, err := e.synthesizeSubgraph(placeholder, args)
		if err != nil {
			return nil, "", false, err
		}
		return append([]model.Op{createOp}, rest...), placeholder, fuzzy, nil

	case "define_connections":
		graphID, _ := args["graph_id"].(string)
		limit := 50
		if l, ok := args["limit"].(float64); ok {
			limit = int(l)
		}
		skipGeneric, _ := args["skip_generic"].(bool)
		ops, err := e.synthesizeDefineConnections(graphID, limit, skipGeneric)
		return ops, graphID, false, err

	case "read_graph_structure", "get_edge_info", "get_node_definition", "sparql_query", "semantic_search":
		ops, graphID, err := e.synthesizeRead(ctx, task.ToolName, args)
		return ops, graphID, false, err

	default:
		ops, graphID, err := e.synthesizeSimple(task.ToolName, args)
		return ops, graphID, false, err
	}
}
