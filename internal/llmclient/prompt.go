// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package llmclient

import (
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/theredstring/bridge/internal/tools"
)

// systemPromptTemplate composes the coordinator's system message
// declaratively rather than by ad hoc string concatenation, so the
// prompt's shape is reviewable independent of the transport that sends
// it. Complete's transport stays go-openai; the prompt is langchaingo's
// concern split between "compose the prompt"
// and "own the transport".
var systemPromptTemplate = prompts.NewPromptTemplate(
	"You are the agent coordinator for a knowledge-graph bridge. "+
		"You may call exactly these tools: {{.toolNames}}. "+
		"Arguments must use snake_case keys matching each tool's schema. "+
		"If the user is only asking a question, answer directly instead of "+
		"calling a tool.\n\n{{.context}}",
	[]string{"toolNames", "context"},
)

// BuildSystemPrompt renders the coordinator's system message from the
// registry's closed tool surface and free-form conversational context.
func BuildSystemPrompt(registry *tools.Registry, context string) (string, error) {
	return systemPromptTemplate.Format(map[string]any{
		"toolNames": strings.Join(registry.Names(), ", "),
		"context":   context,
	})
}
