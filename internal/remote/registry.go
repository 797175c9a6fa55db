package remote

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ObjectDeleter deletes one named server-side object.
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, name string) error
}

// Registry tracks the names of server-side objects this session has created
// so they can be bulk-released on explicit user action. Every "create" style
// remote call must Track its object name so no artifact leaks untracked.
type Registry struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]struct{})}
}

// Track records a created object name. Tracking the same name twice is a
// no-op.
func (r *Registry) Track(name string) {
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[name] = struct{}{}
}

// Names returns the tracked object names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.ids))
	for name := range r.ids {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of tracked objects.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

// ReleaseAll attempts to delete every tracked object. Cleanup is best-effort:
// a per-object failure is collected but never aborts the loop, and each
// attempted name is untracked regardless of the outcome. Names tracked while
// the loop runs stay registered for a later release. The returned slice holds
// one error per failed delete.
func (r *Registry) ReleaseAll(ctx context.Context, deleter ObjectDeleter) []error {
	names := r.Names()

	var errs []error
	for _, name := range names {
		if err := deleter.DeleteObject(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("deleting %s: %w", name, err))
		}
		r.mu.Lock()
		delete(r.ids, name)
		r.mu.Unlock()
	}
	return errs
}
