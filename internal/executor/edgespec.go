// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package executor

import "strings"

// edgeSpec is one parsed edge entry from a create_subgraph/
// create_populated_graph "edges" argument. Accepts either an ordered
// tuple `[source, target, label, directionality]` or an object `{source, target, label, directionality,
// definition}`.
type edgeSpec struct {
	Source         string
	Target         string
	Label          string
	Directionality string
	Definition     string
}

func parseEdgeSpec(raw any) (edgeSpec, error) {
	switch v := raw.(type) {
	case map[string]any:
		spec := edgeSpec{
			Source:         strAny(v["source"]),
			Target:         strAny(v["target"]),
			Label:          strAny(v["label"]),
			Directionality: strAny(v["directionality"]),
			Definition:     strAny(v["definition"]),
		}
		if spec.Source == "" || spec.Target == "" {
			return edgeSpec{}, errInvalid("edge entry missing source/target: %v", v)
		}
		if spec.Directionality == "" {
			spec.Directionality = "unidirectional"
		}
		return spec, nil
	case []any:
		if len(v) < 2 {
			return edgeSpec{}, errInvalid("edge tuple must have at least source and target: %v", v)
		}
		spec := edgeSpec{Source: strAny(v[0]), Target: strAny(v[1]), Directionality: "unidirectional"}
		if len(v) > 2 {
			spec.Label = strAny(v[2])
		}
		if len(v) > 3 {
			spec.Directionality = strAny(v[3])
		}
		if spec.Source == "" || spec.Target == "" {
			return edgeSpec{}, errInvalid("edge tuple missing source/target: %v", v)
		}
		return spec, nil
	default:
		return edgeSpec{}, errInvalid("edge entry must be an object or tuple, got %T", raw)
	}
}

func strAny(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
