// Package tool provides the name-to-capability registry that wires callable
// tools into the orchestrator, plus the builtin tool suite operating on the
// shared conversation context.
package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mechanigo/chatbot/agent/contract"
	"github.com/mechanigo/chatbot/agent/state"
)

var (
	ErrEmptyName     = errors.New("tool name cannot be empty")
	ErrAlreadyExists = errors.New("tool is already registered")
	ErrNotRegistered = errors.New("tool is not registered")
	ErrDisabled      = errors.New("tool is disabled")
)

// Handler executes one tool call against the live shared context of the
// conversation being processed. Failures are reported through the result
// payload, never as panics; the model decides how to recover.
type Handler func(ctx context.Context, sc *state.SharedContext, args map[string]any) contract.ToolResult

// Item is one registered capability.
type Item struct {
	Name        string
	Target      Handler
	Spec        contract.ToolSpec
	Category    string
	Description string
	Scopes      []string
	Enabled     bool
}

// MatchesScope reports whether the item is visible under a query scope. An
// item with no scopes matches any scope; otherwise the query scope must be
// one of the item's tags. An empty query scope matches everything.
func (it *Item) MatchesScope(scope string) bool {
	if scope == "" || len(it.Scopes) == 0 {
		return true
	}
	for _, s := range it.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Registration carries the optional attributes of a Register call.
type Registration struct {
	Spec        contract.ToolSpec
	Category    string
	Description string
	Scopes      []string
	Disabled    bool
	Overwrite   bool
}

// Registry maps tool names to handlers. Registration is a wiring-time
// concern; duplicate names without Overwrite are a programmer error and are
// rejected immediately so sub-agent init order can never silently shadow a
// capability. Reads during turn processing only take the read lock.
type Registry struct {
	mu    sync.RWMutex
	items map[string]*Item
	order []string
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*Item)}
}

func (r *Registry) Register(name string, target Handler, reg Registration) error {
	key := strings.TrimSpace(name)
	if key == "" {
		return ErrEmptyName
	}
	if target == nil {
		return fmt.Errorf("%w: nil target for %q", ErrEmptyName, key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.items[key]
	if exists && !reg.Overwrite {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, key)
	}
	if !exists {
		r.order = append(r.order, key)
	}

	spec := reg.Spec
	if spec.Name == "" {
		spec.Name = key
	}
	if spec.Description == "" {
		spec.Description = reg.Description
	}

	r.items[key] = &Item{
		Name:        key,
		Target:      target,
		Spec:        spec,
		Category:    reg.Category,
		Description: reg.Description,
		Scopes:      append([]string(nil), reg.Scopes...),
		Enabled:     !reg.Disabled,
	}
	return nil
}

func MustRegister(r *Registry, name string, target Handler, reg Registration) {
	if err := r.Register(name, target, reg); err != nil {
		panic(err)
	}
}

func (r *Registry) Get(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	if !item.Enabled {
		return nil, fmt.Errorf("%w: %q", ErrDisabled, name)
	}
	return item.Target, nil
}

func (r *Registry) GetMany(names []string) ([]Handler, error) {
	handlers := make([]Handler, 0, len(names))
	for _, name := range names {
		h, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	return handlers, nil
}

// Specs resolves a name list to the tool declarations handed to the model.
func (r *Registry) Specs(names []string) ([]contract.ToolSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]contract.ToolSpec, 0, len(names))
	for _, name := range names {
		item, ok := r.items[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
		}
		if !item.Enabled {
			continue
		}
		specs = append(specs, item.Spec)
	}
	return specs, nil
}

func (r *Registry) ListNames(scope string, includeDisabled bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.order))
	for _, name := range r.order {
		item := r.items[name]
		if !includeDisabled && !item.Enabled {
			continue
		}
		if !item.MatchesScope(scope) {
			continue
		}
		names = append(names, name)
	}
	return names
}

func (r *Registry) Enable(name string) error {
	return r.setEnabled(name, true)
}

func (r *Registry) Disable(name string) error {
	return r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	item.Enabled = enabled
	return nil
}
