// Package store holds the canonical, mutable collections of the tracking engine.
//
// Reads hand out snapshots (deep copies) so consumers can never mutate store state.
// Writes are serialised behind a single lock, preserving the single-writer discipline
// of the simulation.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go2school/go2school/pkg/fleet"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound          = errors.New("entity not found")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrInvalidFields     = errors.New("invalid fields")
	ErrDuplicate         = errors.New("duplicate entity identifier")
)

// Snapshot is a point-in-time copy of a collection.
type Snapshot struct {
	Collection string
	Version    uint64
	Items      []fleet.Entity
}

func (s Snapshot) Len() int {
	return len(s.Items)
}

// Clone returns a snapshot whose items can be handed to another consumer
func (s Snapshot) Clone() Snapshot {
	items := make([]fleet.Entity, len(s.Items))
	for i, item := range s.Items {
		items[i] = item.Clone()
	}

	return Snapshot{Collection: s.Collection, Version: s.Version, Items: items}
}

// Items returns the entities of the snapshot that are of type T
func Items[T fleet.Entity](snapshot Snapshot) []T {
	items := make([]T, 0, len(snapshot.Items))

	for _, item := range snapshot.Items {
		if typed, ok := item.(T); ok {
			items = append(items, typed)
		}
	}

	return items
}

type collection struct {
	items   []fleet.Entity
	index   map[string]int
	version uint64
}

type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func New() *Store {
	s := &Store{
		collections: map[string]*collection{},
	}

	for _, name := range fleet.CollectionNames() {
		s.collections[name] = &collection{index: map[string]int{}}
	}

	return s
}

// Get returns a snapshot of the named collection. Unknown names yield an empty snapshot.
func (s *Store) Get(name string) Snapshot {
	snapshot, err := s.Lookup(name)
	if err != nil {
		log.Debug().Str("collection", name).Msg("Snapshot requested for unknown collection")
	}

	return snapshot
}

// Lookup is the strict form of Get, failing with ErrUnknownCollection.
func (s *Store) Lookup(name string) (Snapshot, error) {
	canonical, known := fleet.CanonicalCollection(name)
	if !known {
		return Snapshot{Collection: canonical, Items: []fleet.Entity{}}, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.collections[canonical]
	items := make([]fleet.Entity, len(c.items))
	for i, item := range c.items {
		items[i] = item.Clone()
	}

	return Snapshot{
		Collection: canonical,
		Version:    c.version,
		Items:      items,
	}, nil
}

// Version returns the mutation counter of the named collection
func (s *Store) Version(name string) uint64 {
	canonical, known := fleet.CanonicalCollection(name)
	if !known {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collections[canonical].version
}

// Load replaces the contents of a collection, used when seeding from fixtures.
func (s *Store) Load(name string, entities ...fleet.Entity) error {
	canonical, known := fleet.CanonicalCollection(name)
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}

	c := &collection{index: map[string]int{}}
	for _, entity := range entities {
		if err := fleet.Validate(entity); err != nil {
			return fmt.Errorf("%w: %s %s: %v", ErrInvalidFields, canonical, entity.EntityID(), err)
		}
		if _, exists := c.index[entity.EntityID()]; exists {
			return fmt.Errorf("%w: %s %s", ErrDuplicate, canonical, entity.EntityID())
		}

		c.index[entity.EntityID()] = len(c.items)
		c.items = append(c.items, entity.Clone())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c.version = s.collections[canonical].version + 1
	s.collections[canonical] = c

	return nil
}

// Append adds a new entity to the end of a collection.
func (s *Store) Append(name string, entity fleet.Entity) error {
	canonical, known := fleet.CanonicalCollection(name)
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}

	if err := fleet.Validate(entity); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFields, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collections[canonical]
	if _, exists := c.index[entity.EntityID()]; exists {
		return fmt.Errorf("%w: %s %s", ErrDuplicate, canonical, entity.EntityID())
	}

	c.index[entity.EntityID()] = len(c.items)
	c.items = append(c.items, entity.Clone())
	c.version++

	return nil
}

// Update merges fields into the entity with the given identifier. Merging is field by
// field, last writer wins. ErrNotFound is returned when no entity matches; the store is
// left untouched on any error.
func (s *Store) Update(name string, id string, fields fleet.Fields) error {
	canonical, known := fleet.CanonicalCollection(name)
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collections[canonical]
	position, exists := c.index[id]
	if !exists {
		return fmt.Errorf("%w: %s %s", ErrNotFound, canonical, id)
	}

	merged, err := merge(c.items[position], fields)
	if err != nil {
		return err
	}

	c.items[position] = merged
	c.version++

	return nil
}
