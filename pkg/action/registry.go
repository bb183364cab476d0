package action

import (
	"fmt"
	"sync"
)

// Registry keeps actions in registration order with unique names.
type Registry struct {
	mu     sync.RWMutex
	order  []*Action
	byName map[string]*Action
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Action)}
}

// Add registers every action or none. A name already registered, or repeated
// within the batch, fails the whole batch with ErrDuplicateAction.
func (r *Registry) Add(actions ...*Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		if a == nil {
			return fmt.Errorf("%w: nil action", ErrInvalidAction)
		}
		if _, exists := r.byName[a.Name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateAction, a.Name)
		}
		if _, exists := seen[a.Name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateAction, a.Name)
		}
		seen[a.Name] = struct{}{}
	}
	for _, a := range actions {
		r.byName[a.Name] = a
		r.order = append(r.order, a)
	}
	return nil
}

// Get looks an action up by name.
func (r *Registry) Get(name string) (*Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.byName[name]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrActionNotFound, name)
}

// List returns a copy of the actions in registration order.
func (r *Registry) List() []*Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Action(nil), r.order...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
