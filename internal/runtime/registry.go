package runtime

import (
	"fmt"
	"sort"
	"sync"

	"fit-token/internal/domain"
)

// Registry maps program ids to programs.
type Registry struct {
	mu       sync.RWMutex
	programs map[domain.Pubkey]Program
}

// NewRegistry creates a registry holding the given programs.
func NewRegistry(programs ...Program) (*Registry, error) {
	r := &Registry{programs: make(map[domain.Pubkey]Program)}
	for _, p := range programs {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a program. A program id can be registered once.
func (r *Registry) Register(p Program) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := p.ID()
	if _, exists := r.programs[id]; exists {
		return fmt.Errorf("program %s already registered", id)
	}
	r.programs[id] = p
	return nil
}

// Get returns the program registered under id.
func (r *Registry) Get(id domain.Pubkey) (Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.programs[id]
	return p, ok
}

// IsProgram reports whether id belongs to a registered program.
func (r *Registry) IsProgram(id domain.Pubkey) bool {
	_, ok := r.Get(id)
	return ok
}

// IDs returns the registered program ids in base58, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.programs))
	for id := range r.programs {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	return ids
}
