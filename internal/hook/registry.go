package hook

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Snapshot is an immutable view of all configured hooks. Requests resolve
// their hook against the snapshot current at lookup time and keep that
// reference for the life of the job; a later reload never touches it.
type Snapshot struct {
	generation uint64
	hooks      map[string]*Hook
}

// NewSnapshot builds a snapshot from loaded hooks. Duplicate trigger names
// are a validation error.
func NewSnapshot(generation uint64, hooks []*Hook) (*Snapshot, error) {
	byName := make(map[string]*Hook, len(hooks))
	for _, h := range hooks {
		if _, dup := byName[h.Name]; dup {
			return nil, fmt.Errorf("duplicate hook name: %s", h.Name)
		}
		byName[h.Name] = h
	}

	return &Snapshot{
		generation: generation,
		hooks:      byName,
	}, nil
}

// Generation returns the snapshot's generation identifier.
func (s *Snapshot) Generation() uint64 {
	return s.generation
}

// Get looks up a hook by trigger name.
func (s *Snapshot) Get(name string) (*Hook, bool) {
	h, ok := s.hooks[name]
	return h, ok
}

// Len returns the number of hooks in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.hooks)
}

// Names returns the sorted trigger names of all hooks.
func (s *Snapshot) Names() []string {
	names := make([]string, 0, len(s.hooks))
	for name := range s.hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CollectPath is one directory hooks are collected from.
type CollectPath struct {
	Dir       string
	Recursive bool
}

// Registry holds the current hook snapshot behind an atomic pointer so
// lookups never lock. Reload builds and validates a complete new snapshot
// before swapping it in; on any error the current snapshot stays untouched.
type Registry struct {
	paths      []CollectPath
	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
	reloadMu   sync.Mutex
}

// NewRegistry creates a registry collecting hooks from the given paths. The
// registry starts with an empty snapshot; call Reload to populate it.
func NewRegistry(paths ...CollectPath) *Registry {
	r := &Registry{paths: paths}
	empty, _ := NewSnapshot(0, nil)
	r.current.Store(empty)
	return r
}

// Current returns the latest snapshot. Lock-free.
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// Reload re-collects all hooks from disk and atomically replaces the
// current snapshot. All-or-nothing: any collection or validation error
// leaves the previous snapshot in place and is returned to the caller.
func (r *Registry) Reload() (*Snapshot, error) {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	var hooks []*Hook
	for _, p := range r.paths {
		collected, err := Collect(p.Dir, p.Recursive)
		if err != nil {
			return nil, fmt.Errorf("collecting hooks from %s: %w", p.Dir, err)
		}
		hooks = append(hooks, collected...)
	}

	snapshot, err := NewSnapshot(r.generation.Add(1), hooks)
	if err != nil {
		return nil, err
	}

	r.current.Store(snapshot)

	log.Info().
		Uint64("generation", snapshot.Generation()).
		Int("count", snapshot.Len()).
		Msg("Hooks loaded")

	return snapshot, nil
}
