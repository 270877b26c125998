package provider

import (
	"strings"
	"sync"
)

// TrendingKey is the rotation key used for empty queries.
const TrendingKey = "__trending__"

// RotationState remembers, per rotation key, the index last handed out.
// It is shared by every request, so access goes through the mutex.
type RotationState struct {
	mu   sync.Mutex
	last map[string]int
}

func NewRotationState() *RotationState {
	return &RotationState{last: make(map[string]int)}
}

// Advance moves the key's index forward by one modulo n and returns it. A
// key seen for the first time starts at 0.
func (s *RotationState) Advance(key string, n int) int {
	if n <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.last[key]
	if !ok {
		prev = -1
	}
	next := (prev + 1) % n
	s.last[key] = next
	return next
}

// Selector picks the next provider for a query, rotating so repeated
// requests for the same query spread over providers.
type Selector struct {
	registry *Registry
	state    *RotationState
}

func NewSelector(registry *Registry, state *RotationState) *Selector {
	if state == nil {
		state = NewRotationState()
	}
	return &Selector{registry: registry, state: state}
}

// Next returns the provider to try for query. Non-empty queries rotate
// over the search-capable providers; empty queries, or a registry with no
// search-capable provider, rotate over the full ordered list.
func (s *Selector) Next(query string) (string, Provider) {
	key := rotationKey(query)

	if key != TrendingKey {
		if candidates := s.registry.SearchCapable(); len(candidates) > 0 {
			p := candidates[s.state.Advance(key, len(candidates))]
			return p.Name(), p
		}
	}

	entries := s.registry.entries
	p := entries[s.state.Advance(key, len(entries))].Provider
	return p.Name(), p
}

func rotationKey(query string) string {
	q := strings.TrimSpace(query)
	if q == "" {
		return TrendingKey
	}
	return strings.ToLower(q)
}
