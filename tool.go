package codex

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool defines an agent capability with one or more named functions, each
// described to the model by a ToolDefinition and invoked with its raw JSON
// arguments.
type Tool interface {
	Definitions() []ToolDefinition
	Execute(ctx context.Context, name string, arguments json.RawMessage) (ToolResult, error)
}

// ToolRegistry holds all registered tools and dispatches execution by name.
type ToolRegistry struct {
	tools []Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{}
}

// Add registers a tool.
func (r *ToolRegistry) Add(t Tool) {
	r.tools = append(r.tools, t)
}

// AllDefinitions returns tool definitions from all registered tools, in the
// order they were added.
func (r *ToolRegistry) AllDefinitions() []ToolDefinition {
	var defs []ToolDefinition
	for _, t := range r.tools {
		defs = append(defs, t.Definitions()...)
	}
	return defs
}

// Execute dispatches a tool call by name to whichever registered Tool
// declares it.
func (r *ToolRegistry) Execute(ctx context.Context, name string, arguments json.RawMessage) (ToolResult, error) {
	for _, t := range r.tools {
		for _, d := range t.Definitions() {
			if d.Name == name {
				return t.Execute(ctx, name, arguments)
			}
		}
	}
	return ToolResult{}, fmt.Errorf("unknown tool: %s", name)
}
