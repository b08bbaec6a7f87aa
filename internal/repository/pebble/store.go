package pebblestore

import (
	"context"
	"encoding/json"
	"iter"
	"math"

	"github.com/cockroachdb/pebble"

	"user-admin/internal/domain"
	"user-admin/internal/repository"
)

// Store is a repository.Store keeping JSON encoded entities under a prefix.
type Store[T repository.Entity[T]] struct {
	kv     kv
	name   string
	prefix []byte
	seq    []byte
}

// NewStore returns the store for entity type T under the given name. Names
// must be unique per database.
func NewStore[T repository.Entity[T]](db *DB, name string) *Store[T] {
	return newStore[T](kv{db: db}, name)
}

func newStore[T repository.Entity[T]](kv kv, name string) *Store[T] {
	return &Store[T]{kv: kv, name: name, prefix: recordPrefix(name), seq: seqKey(name)}
}

func (s *Store[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if err := ctx.Err(); err != nil {
			yield(zero, err)
			return
		}

		it, err := s.kv.reader().NewIter(prefixBounds(s.prefix))
		if err != nil {
			yield(zero, domain.StorageFault("iterate "+s.name, err))
			return
		}
		defer it.Close()

		for it.First(); it.Valid(); it.Next() {
			var item T
			if err := json.Unmarshal(it.Value(), &item); err != nil {
				yield(zero, domain.StorageFault("decode "+s.name, err))
				return
			}
			if !yield(item, nil) {
				return
			}
		}
		if err := it.Error(); err != nil {
			yield(zero, domain.StorageFault("iterate "+s.name, err))
		}
	}
}

func (s *Store[T]) List(ctx context.Context) ([]T, error) {
	items := []T{}
	for item, err := range s.All(ctx) {
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Store[T]) Get(ctx context.Context, id int64) (T, error) {
	var zero T
	val, ok, err := get(s.kv.reader(), recordKey(s.prefix, id))
	if err != nil {
		return zero, domain.StorageFault("get "+s.name, err)
	}
	if !ok {
		return zero, domain.ErrNotFound
	}

	var item T
	if err := json.Unmarshal(val, &item); err != nil {
		return zero, domain.StorageFault("decode "+s.name, err)
	}
	return item, nil
}

func (s *Store[T]) Create(ctx context.Context, entity T) (T, error) {
	var zero T
	if err := entity.Validate(); err != nil {
		return zero, err
	}
	if entity.EntityID() < 0 {
		return zero, domain.NewValidationError("id", "must be positive")
	}

	var taken bool
	err := s.kv.update(func(b *pebble.Batch) error {
		seq, err := readSeq(b, s.seq)
		if err != nil {
			return err
		}

		id := entity.EntityID()
		if id == 0 {
			if seq == math.MaxInt64 {
				return repository.ErrSequenceExhausted
			}
			seq++
			id = seq
		} else {
			_, exists, err := get(b, recordKey(s.prefix, id))
			if err != nil {
				return err
			}
			if exists {
				taken = true
				return nil
			}
			seq = max(seq, id)
		}

		entity = entity.WithID(id)
		data, err := json.Marshal(entity)
		if err != nil {
			return err
		}
		if err := b.Set(recordKey(s.prefix, id), data, nil); err != nil {
			return err
		}
		return writeSeq(b, s.seq, seq)
	})
	if err != nil {
		return zero, domain.StorageFault("create "+s.name, err)
	}
	if taken {
		return zero, domain.NewValidationError("id", "is already taken")
	}
	return entity, nil
}

func (s *Store[T]) Update(ctx context.Context, entity T) (T, error) {
	var zero T
	if err := entity.Validate(); err != nil {
		return zero, err
	}

	var found bool
	err := s.kv.update(func(b *pebble.Batch) error {
		key := recordKey(s.prefix, entity.EntityID())
		_, exists, err := get(b, key)
		if err != nil || !exists {
			return err
		}
		found = true

		data, err := json.Marshal(entity)
		if err != nil {
			return err
		}
		return b.Set(key, data, nil)
	})
	if err != nil {
		return zero, domain.StorageFault("update "+s.name, err)
	}
	if !found {
		return zero, domain.ErrNotFound
	}
	return entity, nil
}

func (s *Store[T]) Delete(ctx context.Context, entity T) error {
	_, err := s.DeleteByID(ctx, entity.EntityID())
	return err
}

func (s *Store[T]) DeleteByID(ctx context.Context, id int64) (bool, error) {
	var found bool
	err := s.kv.update(func(b *pebble.Batch) error {
		key := recordKey(s.prefix, id)
		_, exists, err := get(b, key)
		if err != nil || !exists {
			return err
		}
		found = true
		return b.Delete(key, nil)
	})
	if err != nil {
		return false, domain.StorageFault("delete "+s.name, err)
	}
	return found, nil
}
