// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Package tools implements the schema-driven argument validator described
// in: a table from tool name to a typed field schema, a
// sanitize-then-validate pipeline, and a precise error string the
// Executor's failure classifier can key off of.
package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldKind is the coercion target for one schema field.
type FieldKind int

const (
	KindString FieldKind = iota
	KindFloat
	KindBool
	KindStringSlice
	// KindAny accepts any JSON-decoded value unchanged (e.g. edge tuples
	// shaped as objects); the Executor is responsible for its internal
	// structure once past presence/required checks.
	KindAny
)

// Field describes one argument field on a tool schema.
type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
	// Default is applied when the field is absent and not required.
	Default any
	// Rule is a go-playground/validator tag, e.g. "min=1", "oneof=full partial auto".
	Rule string
	// NormalizeColor trims and lowercases a color-like string field.
	NormalizeColor bool
}

// Schema is the full argument contract for one tool.
type Schema struct {
	ToolName string
	Fields   []Field
}

// Result is the outcome of validating and sanitizing one call's arguments,
// `{valid, sanitized, error}` contract.
type Result struct {
	Valid     bool
	Sanitized map[string]any
	Error     string
}

// Registry holds the closed table of tool schemas.
//
// Thread Safety:
//
//	Registry is safe for concurrent use after construction; schemas are
//	registered once at startup via NewRegistry.
type Registry struct {
	mu       sync.RWMutex
	schemas  map[string]Schema
	validate *validator.Validate
}

// NewRegistry builds the registry pre-populated with the closed tool
// surface from
func NewRegistry() *Registry {
	r := &Registry{
		schemas:  make(map[string]Schema),
		validate: validator.New(),
	}
	for _, s := range defaultSchemas() {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a schema by tool name.
func (r *Registry) Register(s Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.ToolName] = s
}

// Schema returns the registered schema for toolName, if any. Used by
// internal/llmclient to advertise the tool surface to the LLM provider
// as function-calling definitions.
func (r *Registry) Schema(toolName string) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[toolName]
	return s, ok
}

// Names returns every registered tool name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for n := range r.schemas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate sanitizes and validates raw arguments for toolName.
//
// snake_case keys are the only accepted surface; any camelCase duplicate of a known field is rejected
// with a permanent validation error rather than silently accepted.
func (r *Registry) Validate(toolName string, raw map[string]any) Result {
	r.mu.RLock()
	schema, ok := r.schemas[toolName]
	r.mu.RUnlock()
	if !ok {
		return Result{Valid: false, Error: fmt.Sprintf("Tool not allowed: %q is not a registered tool", toolName)}
	}

	if camel := firstCamelCaseDuplicate(schema, raw); camel != "" {
		return Result{Valid: false, Error: fmt.Sprintf("Validation failed: argument %q must use snake_case, not camelCase", camel)}
	}

	sanitized := make(map[string]any, len(schema.Fields))
	for _, f := range schema.Fields {
		v, present := raw[f.Name]
		if !present {
			if f.Required {
				return Result{Valid: false, Error: fmt.Sprintf("Validation failed: missing required field %q for tool %q", f.Name, toolName)}
			}
			if f.Default != nil {
				sanitized[f.Name] = f.Default
			}
			continue
		}

		coerced, err := coerce(f, v)
		if err != nil {
			return Result{Valid: false, Error: fmt.Sprintf("Validation failed: field %q: %v", f.Name, err)}
		}

		if f.Rule != "" {
			if err := r.validate.Var(coerced, f.Rule); err != nil {
				return Result{Valid: false, Error: fmt.Sprintf("Invalid value for field %q: %v", f.Name, err)}
			}
		}

		sanitized[f.Name] = coerced
	}

	return Result{Valid: true, Sanitized: sanitized}
}

// firstCamelCaseDuplicate reports the first key in raw that is the
// camelCase form of one of schema's declared snake_case fields.
func firstCamelCaseDuplicate(schema Schema, raw map[string]any) string {
	snakeFields := make(map[string]bool, len(schema.Fields))
	for _, f := range schema.Fields {
		snakeFields[f.Name] = true
	}
	for key := range raw {
		if snakeFields[key] {
			continue
		}
		if snakeFields[camelToSnake(key)] {
			return key
		}
	}
	return ""
}

// camelToSnake is a small, allocation-light helper; it isn't a dependency
// on a general case-conversion library since the rule here is a single
// fixed transform used only to detect the rejected camelCase surface.
func camelToSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func coerce(f Field, v any) (any, error) {
	switch f.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		s = strings.TrimSpace(s)
		if f.NormalizeColor {
			s = strings.ToLower(s)
		}
		return s, nil
	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		default:
			return nil, fmt.Errorf("expected number, got %T", v)
		}
	case KindBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return strings.EqualFold(b, "true"), nil
		default:
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
	case KindStringSlice:
		switch s := v.(type) {
		case []string:
			return s, nil
		case []any:
			out := make([]string, 0, len(s))
			for _, e := range s {
				str, ok := e.(string)
				if !ok {
					return nil, fmt.Errorf("expected []string, found non-string element %T", e)
				}
				out = append(out, strings.TrimSpace(str))
			}
			return out, nil
		default:
			return nil, fmt.Errorf("expected []string, got %T", v)
		}
	default:
		return v, nil
	}
}
