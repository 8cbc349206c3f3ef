package orchestrator

import _ "embed"

// systemPrompt is the fixed prefix explaining the edit-block protocol
// (spec.md §4.10 step 3), embedded the way pkg/creator/agent.go embeds
// agentBuilderInstructions.
//
//go:embed system_prompt.txt
var systemPrompt string
