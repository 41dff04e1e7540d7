package tasks

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/desertthunder/bookclean/internal/shared"
)

// Registry tracks sessions by id.
//
// Sessions are fully independent; the registry only guards the map itself.
type Registry struct {
	mu       sync.RWMutex
	trackers map[string]*Tracker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{trackers: make(map[string]*Tracker)}
}

// Create registers a tracker, failing if the id is already tracked.
func (r *Registry) Create(t *Tracker) error {
	id := t.ID()
	if id == "" {
		return fmt.Errorf("%w: session id is required", shared.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.trackers[id]; exists {
		return fmt.Errorf("%w: session %s is already tracked", shared.ErrInvalidInput, id)
	}
	r.trackers[id] = t
	return nil
}

// Get returns the tracker for id.
func (r *Registry) Get(id string) (*Tracker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trackers[id]
	return t, ok
}

// Remove stops tracking id and reports whether it was tracked.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.trackers[id]
	delete(r.trackers, id)
	return ok
}

// List returns all trackers ordered by session id.
func (r *Registry) List() []*Tracker {
	r.mu.RLock()
	out := make([]*Tracker, 0, len(r.trackers))
	for _, t := range r.trackers {
		out = append(out, t)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Tracker) int {
		return strings.Compare(a.ID(), b.ID())
	})
	return out
}
