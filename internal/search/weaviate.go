// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package search

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// WeaviateBackend implements Backend against a Weaviate instance holding
// prototype name/description embeddings under ClassName.
type WeaviateBackend struct {
	client    *weaviate.Client
	className string
}

// NewWeaviateBackend builds a WeaviateBackend over an already-configured
// client. className is the Weaviate class prototypes are indexed under
// (e.g. "BridgePrototype").
func NewWeaviateBackend(client *weaviate.Client, className string) *WeaviateBackend {
	return &WeaviateBackend{client: client, className: className}
}

// SemanticSearch runs a nearText nearest-neighbor query over the
// prototype class and maps results into Hits. This mirrors the
// NearVectorArgBuilder + Get().WithClassName(...).WithFields(...).Do(ctx)
// shape the orchestrator's conversation search uses against a
// precomputed embedding; semantic_search takes a raw query string with no
// embedder wired in this package, so it uses the text-native
// NearTextArgBuilder variant of the same builder family instead and
// leaves vectorization to the class's configured module.
func (w *WeaviateBackend) SemanticSearch(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}

	nearText := w.client.GraphQL().NearTextArgBuilder().WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "name"},
		{Name: "description"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "certainty"}}},
	}

	resp, err := w.client.GraphQL().Get().
		WithClassName(w.className).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate semantic_search: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("weaviate semantic_search: %s", resp.Errors[0].Message)
	}

	return parseHits(resp.Data, w.className)
}

// SPARQLQuery is not natively supported by Weaviate. Rather than force a
// SPARQL string through the Get() builder's typed field/filter API, it is
// passed straight through GraphQL().Raw(), the client's escape hatch for
// an arbitrary GraphQL document, matching how sparql_query is an opaque
// pass-through external call in
func (w *WeaviateBackend) SPARQLQuery(ctx context.Context, query string) (map[string]any, error) {
	resp, err := w.client.GraphQL().Raw().WithQuery(query).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate sparql_query: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("weaviate sparql_query: %s", resp.Errors[0].Message)
	}
	out, ok := resp.Data["data"].(map[string]any)
	if !ok {
		return map[string]any{"raw": resp.Data}, nil
	}
	return out, nil
}

func parseHits(data map[string]any, className string) ([]Hit, error) {
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return nil, nil
	}
	rows, ok := get[className].([]any)
	if !ok {
		return nil, nil
	}

	hits := make([]Hit, 0, len(rows))
	for _, raw := range rows {
		row, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := row["name"].(string)
		additional, _ := row["_additional"].(map[string]any)
		id, _ := additional["id"].(string)
		certainty, _ := additional["certainty"].(float64)
		hits = append(hits, Hit{ID: id, Name: name, Score: certainty, Metadata: row})
	}
	return hits, nil
}
