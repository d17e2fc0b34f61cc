// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package tools

// defaultSchemas returns the closed tool-name/argument-shape surface from
//
func defaultSchemas() []Schema {
	return []Schema{
		{ToolName: "create_node", Fields: []Field{
			{Name: "name", Kind: KindString, Required: true},
			{Name: "graph_id", Kind: KindString, Required: true},
			{Name: "description", Kind: KindString},
			{Name: "color", Kind: KindString, NormalizeColor: true},
		}},
		{ToolName: "create_node_prototype", Fields: []Field{
			{Name: "name", Kind: KindString, Required: true},
			{Name: "description", Kind: KindString},
			{Name: "color", Kind: KindString, NormalizeColor: true},
			{Name: "parent_type_id", Kind: KindString},
		}},
		{ToolName: "create_node_instance", Fields: []Field{
			{Name: "graph_id", Kind: KindString, Required: true},
			{Name: "prototype_id", Kind: KindString, Required: true},
			{Name: "x", Kind: KindFloat, Default: float64(0)},
			{Name: "y", Kind: KindFloat, Default: float64(0)},
			{Name: "scale", Kind: KindFloat, Default: float64(1)},
		}},
		{ToolName: "create_graph", Fields: []Field{
			{Name: "name", Kind: KindString, Required: true},
			{Name: "description", Kind: KindString},
			{Name: "color", Kind: KindString, NormalizeColor: true},
		}},
		{ToolName: "create_subgraph", Fields: []Field{
			{Name: "graph_id", Kind: KindString, Required: true},
			{Name: "nodes", Kind: KindStringSlice, Required: true},
			{Name: "edges", Kind: KindAny, Default: []any{}},
			{Name: "layout_mode", Kind: KindString, Default: "auto", Rule: "oneof=full partial auto"},
			{Name: "algorithm", Kind: KindString, Default: "force", Rule: "oneof=force hierarchical radial linear"},
		}},
		{ToolName: "create_populated_graph", Fields: []Field{
			{Name: "name", Kind: KindString, Required: true},
			{Name: "nodes", Kind: KindStringSlice, Required: true},
			{Name: "edges", Kind: KindAny, Default: []any{}},
			{Name: "layout_mode", Kind: KindString, Default: "full", Rule: "oneof=full partial auto"},
			{Name: "algorithm", Kind: KindString, Default: "force", Rule: "oneof=force hierarchical radial linear"},
		}},
		{ToolName: "create_subgraph_in_new_graph", Fields: []Field{
			{Name: "name", Kind: KindString, Required: true},
			{Name: "nodes", Kind: KindStringSlice, Required: true},
			{Name: "edges", Kind: KindAny, Default: []any{}},
			{Name: "layout_mode", Kind: KindString, Default: "full", Rule: "oneof=full partial auto"},
			{Name: "algorithm", Kind: KindString, Default: "force", Rule: "oneof=force hierarchical radial linear"},
		}},
		{ToolName: "define_connections", Fields: []Field{
			{Name: "graph_id", Kind: KindString, Required: true},
			{Name: "limit", Kind: KindFloat, Default: float64(50), Rule: "min=1"},
			{Name: "skip_generic", Kind: KindBool, Default: true},
		}},
		{ToolName: "read_graph_structure", Fields: []Field{
			{Name: "graph_id", Kind: KindString, Required: true},
			{Name: "include_descriptions", Kind: KindBool, Default: false},
			{Name: "include_colors", Kind: KindBool, Default: false},
		}},
		{ToolName: "get_edge_info", Fields: []Field{
			{Name: "edge_id", Kind: KindString, Required: true},
		}},
		{ToolName: "get_node_definition", Fields: []Field{
			{Name: "prototype_id", Kind: KindString, Required: true},
		}},
		{ToolName: "sparql_query", Fields: []Field{
			{Name: "query", Kind: KindString, Required: true},
		}},
		{ToolName: "semantic_search", Fields: []Field{
			{Name: "query", Kind: KindString, Required: true},
			{Name: "limit", Kind: KindFloat, Default: float64(10), Rule: "min=1,max=100"},
		}},
		{ToolName: "update_node_prototype", Fields: []Field{
			{Name: "prototype_id", Kind: KindString, Required: true},
			{Name: "name", Kind: KindString},
			{Name: "description", Kind: KindString},
			{Name: "color", Kind: KindString, NormalizeColor: true},
		}},
		{ToolName: "delete_node_instance", Fields: []Field{
			{Name: "instance_id", Kind: KindString, Required: true},
		}},
		{ToolName: "delete_node_prototype", Fields: []Field{
			{Name: "prototype_id", Kind: KindString, Required: true},
		}},
		{ToolName: "delete_graph", Fields: []Field{
			{Name: "graph_id", Kind: KindString, Required: true},
		}},
		{ToolName: "delete_edge", Fields: []Field{
			{Name: "edge_id", Kind: KindString, Required: true},
		}},
		{ToolName: "create_edge", Fields: []Field{
			{Name: "graph_id", Kind: KindString, Required: true},
			{Name: "source_instance_id", Kind: KindString, Required: true},
			{Name: "destination_instance_id", Kind: KindString, Required: true},
			{Name: "name", Kind: KindString},
			{Name: "directionality", Kind: KindString, Default: "unidirectional", Rule: "oneof=unidirectional bidirectional none reverse"},
		}},
		{ToolName: "create_group", Fields: []Field{
			{Name: "prototype_id", Kind: KindString, Required: true},
			{Name: "definition_graph_id", Kind: KindString},
		}},
		{ToolName: "convert_to_node_group", Fields: []Field{
			{Name: "prototype_id", Kind: KindString, Required: true},
			{Name: "definition_graph_id", Kind: KindString, Required: true},
		}},
		{ToolName: "set_active_graph", Fields: []Field{
			{Name: "graph_id", Kind: KindString, Required: true},
		}},
	}
}
