// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package executor

import "github.com/theredstring/bridge/internal/model"

// synthesizeSimple handles every tool that emits exactly one op with no
// dedup/layout machinery.
func (e *Executor) synthesizeSimple(toolName string, args map[string]any) (ops []model.Op, graphID string, err error) {
	switch toolName {
	case "create_node":
		graphID, _ = args["graph_id"].(string)
		if _, ok := e.src.Graph(graphID); !ok {
			return nil, "", errNotFound("graph", graphID)
		}
		cache := newBatchCache()
		name, _ := args["name"].(string)
		color, _ := args["color"].(string)
		protoID, _ := e.resolvePrototype(name, cache, &ops, color)
		instID, created := e.resolveInstance(graphID, protoID, cache)
		if created {
			ops = append(ops, model.Op{Kind: model.OpAddNodeInstance, Payload: map[string]any{
				"id": instID, "graphId": graphID, "prototypeId": protoID, "x": 0.0, "y": 0.0, "scale": 1.0,
			}})
		}
		return ops, graphID, nil

	case "create_node_prototype":
		id := e.newID()
		payload := map[string]any{"id": id, "name": args["name"]}
		if desc, _ := args["description"].(string); desc != "" {
			payload["description"] = desc
		}
		if color, _ := args["color"].(string); color != "" {
			payload["color"] = color
		}
		if parent, _ := args["parent_type_id"].(string); parent != "" {
			payload["parentTypeId"] = parent
		}
		return []model.Op{{Kind: model.OpAddNodePrototype, Payload: payload}}, "", nil

	case "create_node_instance":
		graphID, _ = args["graph_id"].(string)
		if _, ok := e.src.Graph(graphID); !ok {
			return nil, "", errNotFound("graph", graphID)
		}
		protoID, _ := args["prototype_id"].(string)
		if _, ok := e.src.Prototype(protoID); !ok {
			return nil, "", errNotFound("prototype", protoID)
		}
		id := e.newID()
		ops = []model.Op{{Kind: model.OpAddNodeInstance, Payload: map[string]any{
			"id": id, "graphId": graphID, "prototypeId": protoID,
			"x": args["x"], "y": args["y"], "scale": args["scale"],
		}}}
		return ops, graphID, nil

	case "create_graph":
		id := e.newID()
		payload := map[string]any{"id": id, "name": args["name"]}
		if desc, _ := args["description"].(string); desc != "" {
			payload["description"] = desc
		}
		if color, _ := args["color"].(string); color != "" {
			payload["color"] = color
		}
		return []model.Op{{Kind: model.OpCreateNewGraph, Payload: payload}}, id, nil

	case "update_node_prototype":
		protoID, _ := args["prototype_id"].(string)
		if _, ok := e.src.Prototype(protoID); !ok {
			return nil, "", errNotFound("prototype", protoID)
		}
		payload := map[string]any{"id": protoID}
		if name, _ := args["name"].(string); name != "" {
			payload["name"] = name
		}
		if desc, _ := args["description"].(string); desc != "" {
			payload["description"] = desc
		}
		if color, _ := args["color"].(string); color != "" {
			payload["color"] = color
		}
		return []model.Op{{Kind: model.OpUpdateNodePrototype, Payload: payload}}, "", nil

	case "delete_node_instance":
		instID, _ := args["instance_id"].(string)
		if _, ok := e.src.Instance(instID); !ok {
			return nil, "", errNotFound("instance", instID)
		}
		return []model.Op{{Kind: model.OpDeleteNodeInstance, Payload: map[string]any{"id": instID}}}, "", nil

	case "delete_node_prototype":
		protoID, _ := args["prototype_id"].(string)
		if _, ok := e.src.Prototype(protoID); !ok {
			return nil, "", errNotFound("prototype", protoID)
		}
		return []model.Op{{Kind: model.OpDeleteNodePrototype, Payload: map[string]any{"id": protoID}}}, "", nil

	case "delete_graph":
		requested, _ := args["graph_id"].(string)
		resolved, err := e.resolveGraphByNameFallback(requested)
		if err != nil {
			return nil, "", err
		}
		return []model.Op{{Kind: model.OpDeleteGraph, Payload: map[string]any{"id": resolved}}}, resolved, nil

	case "delete_edge":
		edgeID, _ := args["edge_id"].(string)
		if _, ok := e.src.Edge(edgeID); !ok {
			return nil, "", errNotFound("edge", edgeID)
		}
		return []model.Op{{Kind: model.OpDeleteEdge, Payload: map[string]any{"id": edgeID}}}, "", nil

	case "create_edge":
		graphID, _ = args["graph_id"].(string)
		if _, ok := e.src.Graph(graphID); !ok {
			return nil, "", errNotFound("graph", graphID)
		}
		srcID, _ := args["source_instance_id"].(string)
		dstID, _ := args["destination_instance_id"].(string)
		if _, ok := e.src.Instance(srcID); !ok {
			return nil, "", errNotFound("instance", srcID)
		}
		if _, ok := e.src.Instance(dstID); !ok {
			return nil, "", errNotFound("instance", dstID)
		}
		directionality, _ := args["directionality"].(string)
		id := e.newID()
		ops = []model.Op{{Kind: model.OpAddEdge, Payload: map[string]any{
			"id": id, "graphId": graphID,
			"sourceInstanceId": srcID, "destinationInstanceId": dstID,
			"name":         args["name"],
			"arrowsToward": arrowsToward(directionality, srcID, dstID),
		}}}
		return ops, graphID, nil

	case "create_group":
		protoID, _ := args["prototype_id"].(string)
		if _, ok := e.src.Prototype(protoID); !ok {
			return nil, "", errNotFound("prototype", protoID)
		}
		payload := map[string]any{"prototypeId": protoID}
		if defGraph, _ := args["definition_graph_id"].(string); defGraph != "" {
			payload["definitionGraphId"] = defGraph
		}
		return []model.Op{{Kind: model.OpCreateGroup, Payload: payload}}, "", nil

	case "convert_to_node_group":
		protoID, _ := args["prototype_id"].(string)
		if _, ok := e.src.Prototype(protoID); !ok {
			return nil, "", errNotFound("prototype", protoID)
		}
		defGraph, _ := args["definition_graph_id"].(string)
		if _, ok := e.src.Graph(defGraph); !ok {
			return nil, "", errNotFound("graph", defGraph)
		}
		return []model.Op{{Kind: model.OpConvertToNodeGroup, Payload: map[string]any{
			"prototypeId": protoID, "definitionGraphId": defGraph,
		}}}, "", nil

	case "set_active_graph":
		graphID, _ = args["graph_id"].(string)
		if _, ok := e.src.Graph(graphID); !ok {
			return nil, "", errNotFound("graph", graphID)
		}
		return []model.Op{{Kind: model.OpSetActiveGraph, Payload: map[string]any{"id": graphID}}}, graphID, nil
	}

	return nil, "", errInvalid("tool %q has no simple synthesis handler", toolName)
}
