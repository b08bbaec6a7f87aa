// Package memory keeps entities in process memory. It backs tests and local
// development; data does not survive a restart.
package memory

import (
	"context"
	"iter"
	"maps"
	"math"
	"slices"
	"sync"

	"user-admin/internal/domain"
	"user-admin/internal/repository"
)

// Store is a thread-safe id-indexed collection for a single entity type.
type Store[T repository.Entity[T]] struct {
	mu     sync.RWMutex
	items  map[int64]T
	nextID int64
}

func NewStore[T repository.Entity[T]]() *Store[T] {
	return &Store[T]{items: make(map[int64]T)}
}

func (s *Store[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		if err := ctx.Err(); err != nil {
			var zero T
			yield(zero, err)
			return
		}
		for _, item := range s.sorted() {
			if !yield(item, nil) {
				return
			}
		}
	}
}

func (s *Store[T]) List(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.sorted(), nil
}

func (s *Store[T]) Get(ctx context.Context, id int64) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		var zero T
		return zero, domain.ErrNotFound
	}
	return item, nil
}

func (s *Store[T]) Create(ctx context.Context, entity T) (T, error) {
	var zero T
	if err := entity.Validate(); err != nil {
		return zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := entity.EntityID()
	switch {
	case id == 0:
		if s.nextID == math.MaxInt64 {
			return zero, domain.StorageFault("create", repository.ErrSequenceExhausted)
		}
		s.nextID++
		id = s.nextID
	case id < 0:
		return zero, domain.NewValidationError("id", "must be positive")
	default:
		if _, exists := s.items[id]; exists {
			return zero, domain.NewValidationError("id", "is already taken")
		}
		if id > s.nextID {
			s.nextID = id
		}
	}

	entity = entity.WithID(id)
	s.items[id] = entity
	return entity, nil
}

func (s *Store[T]) Update(ctx context.Context, entity T) (T, error) {
	var zero T
	if err := entity.Validate(); err != nil {
		return zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[entity.EntityID()]; !ok {
		return zero, domain.ErrNotFound
	}
	s.items[entity.EntityID()] = entity
	return entity, nil
}

func (s *Store[T]) Delete(ctx context.Context, entity T) error {
	_, err := s.DeleteByID(ctx, entity.EntityID())
	return err
}

func (s *Store[T]) DeleteByID(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	return true, nil
}

func (s *Store[T]) sorted() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := slices.Sorted(maps.Keys(s.items))
	out := make([]T, len(ids))
	for i, id := range ids {
		out[i] = s.items[id]
	}
	return out
}

type storeState[T any] struct {
	items  map[int64]T
	nextID int64
}

func (s *Store[T]) snapshot() storeState[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return storeState[T]{items: maps.Clone(s.items), nextID: s.nextID}
}

// restore rolls the collection back. The id sequence is kept at its highest
// value so ids handed out inside a failed transaction are never reissued.
func (s *Store[T]) restore(state storeState[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = state.items
	s.nextID = max(s.nextID, state.nextID)
}
