package ai

import (
	"fmt"
	"sort"
	"strings"
)

const basePrompt = `You are the assistant embedded in an administrative console.
You help operators find records, open forms and move between sections (projects, tasks, users, reports, settings, dashboard).
Answer in one or two short sentences. Never invent record data you were not given.`

// buildSystemPrompt combines the base instructions with the page context the
// client sent and the action already selected for this turn.
func buildSystemPrompt(pageContext map[string]any, hint string) string {
	var builder strings.Builder
	builder.WriteString(basePrompt)

	if len(pageContext) > 0 {
		keys := make([]string, 0, len(pageContext))
		for k := range pageContext {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		builder.WriteString("\n\nCurrent client context:")
		for _, k := range keys {
			builder.WriteString(fmt.Sprintf("\n- %s: %v", k, pageContext[k]))
		}
	}

	if hint != "" {
		builder.WriteString("\n\nThe console will perform this for the user: ")
		builder.WriteString(hint)
		builder.WriteString("\nConfirm it briefly instead of describing other steps.")
	}

	return builder.String()
}
