// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Package search backs the Executor's semantic_search and sparql_query
// tools with a pluggable nearest-neighbor
// Backend, so the core pipeline never depends directly on a specific
// vector database client.
package search

import (
	"context"
	"time"
)

// Hit is one nearest-neighbor result.
type Hit struct {
	ID       string
	Name     string
	Score    float64
	Metadata map[string]any
}

// Backend is the pluggable nearest-neighbor/query interface the Executor
// calls for semantic_search and sparql_query. Real deployments wire
// WeaviateBackend; tests use a fake.
type Backend interface {
	// SemanticSearch returns the top results for query, bounded by limit.
	SemanticSearch(ctx context.Context, query string, limit int) ([]Hit, error)
	// SPARQLQuery runs a raw SPARQL query and returns a provider-shaped
	// result document.
	SPARQLQuery(ctx context.Context, query string) (map[string]any, error)
}

// DefaultTimeout is the external-call deadline requires
// (30-45s); callers should derive a context with this bound before
// invoking a Backend method if they don't already have a tighter one.
const DefaultTimeout = 45 * time.Second
