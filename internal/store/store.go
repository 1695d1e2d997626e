// Package store holds the ordered observation log and persists it through
// pluggable snapshot repositories
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mrcode/pen-tracker/internal/models"
	"github.com/mrcode/pen-tracker/internal/validation"
)

var (
	// ErrNotFound is returned when no observation has the requested id
	ErrNotFound = errors.New("observation not found")
	// ErrDuplicateID is returned when an observation id is already present
	ErrDuplicateID = errors.New("duplicate observation id")
)

// Store is the ordered, in-memory observation log. Observations keep their
// insertion order, which is the order pens are folded in.
type Store struct {
	mu      sync.RWMutex
	entries []models.Observation
	index   map[string]int
}

// New creates a store holding observations in the given order
func New(observations []models.Observation) (*Store, error) {
	s := &Store{}
	if err := s.Replace(observations); err != nil {
		return nil, err
	}
	return s, nil
}

// Add validates o and appends it to the log
func (s *Store) Add(o models.Observation) error {
	if err := validation.ValidateObservation(o); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, ok := s.index[o.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, o.ID)
	}
	s.index[o.ID] = len(s.entries)
	s.entries = append(s.entries, o)
	return nil
}

// Delete removes the observation with the given id
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
	s.reindex()
	return nil
}

// Get returns the observation with the given id
func (s *Store) Get(id string) (models.Observation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return models.Observation{}, false
	}
	return s.entries[i], true
}

// Replace swaps the whole log, e.g. after an import or a reload from disk
func (s *Store) Replace(observations []models.Observation) error {
	entries := make([]models.Observation, len(observations))
	copy(entries, observations)

	seen := make(map[string]struct{}, len(entries))
	for _, o := range entries {
		if _, ok := seen[o.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, o.ID)
		}
		seen[o.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = entries
	s.reindex()
	return nil
}

// Snapshot returns a copy of the log in insertion order
func (s *Store) Snapshot() []models.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Observation, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of observations
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// reindex must be called with mu held
func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.entries))
	for i, o := range s.entries {
		s.index[o.ID] = i
	}
}
