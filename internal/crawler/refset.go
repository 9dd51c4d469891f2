package crawler

import (
	"sort"
	"sync"
)

// AuthorReferenceSet collects author references discovered during a walk.
// It only grows; Drain returns each distinct reference once.
type AuthorReferenceSet struct {
	mu   sync.Mutex
	refs map[AuthorReference]struct{}
}

// NewAuthorReferenceSet returns an empty set.
func NewAuthorReferenceSet() *AuthorReferenceSet {
	return &AuthorReferenceSet{refs: make(map[AuthorReference]struct{})}
}

// Add inserts ref and reports whether it was not already present.
func (s *AuthorReferenceSet) Add(ref AuthorReference) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refs[ref]; ok {
		return false
	}
	s.refs[ref] = struct{}{}
	return true
}

// Len returns the number of unique references.
func (s *AuthorReferenceSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refs)
}

// Drain returns the unique references in lexical order.
func (s *AuthorReferenceSet) Drain() []AuthorReference {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuthorReference, 0, len(s.refs))
	for ref := range s.refs {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
