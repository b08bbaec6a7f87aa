package pebblestore

import (
	"context"

	"user-admin/internal/domain"
	"user-admin/internal/repository"
)

// UsersName is the key prefix of the user collection.
const UsersName = "users"

// NewUserStore returns the user collection of db.
func NewUserStore(db *DB) *Store[domain.User] {
	return NewStore[domain.User](db, UsersName)
}

// Transactor runs units of work in one indexed batch committed atomically.
type Transactor struct {
	db    *DB
	clock *repository.Clock
}

func NewTransactor(db *DB, clock *repository.Clock) *Transactor {
	return &Transactor{db: db, clock: clock}
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	b := t.db.inner.NewIndexedBatch()
	defer b.Close()

	tx := kv{db: t.db, batch: b}
	repos := repository.Repositories{
		Users: newStore[domain.User](tx, UsersName),
		Logs:  &LogRepository{kv: tx, clock: t.clock},
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}

	if err := b.Commit(t.db.writeOpts); err != nil {
		return domain.StorageFault("commit batch", err)
	}
	return nil
}
