package repository

import (
	"context"
	"errors"
	"iter"
)

// ErrSequenceExhausted is wrapped in a storage fault when no positive id is
// left to assign.
var ErrSequenceExhausted = errors.New("id sequence exhausted")

// Entity is a record type with a store-assigned integer identity.
type Entity[T any] interface {
	EntityID() int64
	WithID(id int64) T
	Validate() error
}

// Store exposes generic persistence for one entity type. Every
// implementation keeps a separate id-space and collection per type.
type Store[T Entity[T]] interface {
	// All returns a lazy view over the stored entities. Each range over the
	// sequence reads the state current at that moment.
	All(ctx context.Context) iter.Seq2[T, error]
	// List materializes every stored entity ordered by id.
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id int64) (T, error)
	// Create assigns the next id when the entity id is zero.
	Create(ctx context.Context, entity T) (T, error)
	// Update replaces every field of the entity with a matching id.
	Update(ctx context.Context, entity T) (T, error)
	// Delete removes the entity with a matching id. Missing ids are ignored.
	Delete(ctx context.Context, entity T) error
	// DeleteByID removes the entity and reports whether it existed.
	DeleteByID(ctx context.Context, id int64) (bool, error)
}
