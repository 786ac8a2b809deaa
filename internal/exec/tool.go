// Package exec runs plan tasks. The engine asks the model which tool fits
// a task, invokes it through the registry and records the outcome in the
// execution log.
package exec

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"autobot/internal/logging"
)

// ExecuteFunc is the signature for tool execution. Params come straight
// from the model's tool selection.
type ExecuteFunc func(ctx context.Context, params map[string]string) (string, error)

// Tool is a capability the engine can dispatch a task to.
type Tool struct {
	// Name is the unique identifier used in tool selection.
	Name string

	// Description tells the model what the tool does and what params it
	// takes.
	Description string

	// Execute runs the tool.
	Execute ExecuteFunc
}

// Registry holds the available tools. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Registering a duplicate name is an error.
func (r *Registry) Register(tool *Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name required")
	}
	if tool.Execute == nil {
		return fmt.Errorf("tool %s has no execute function", tool.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool already registered: %s", tool.Name)
	}
	r.tools[tool.Name] = tool
	logging.ExecutionDebug("Registered tool: %s", tool.Name)
	return nil
}

// MustRegister registers a tool and panics on error. For static
// registration at startup.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(fmt.Sprintf("failed to register tool %s: %v", tool.Name, err))
	}
}

// Get returns a tool by name, or nil if not registered.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe renders one "- name: description" line per tool, sorted by
// name, for the tool selection prompt.
func (r *Registry) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := ""
	for _, name := range names {
		out += fmt.Sprintf("- %s: %s\n", name, r.tools[name].Description)
	}
	return out
}
