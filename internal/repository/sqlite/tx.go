package sqlite

import (
	"context"
	"database/sql"

	"user-admin/internal/domain"
	"user-admin/internal/repository"
)

// Transactor runs units of work inside a sqlite transaction.
type Transactor struct {
	db    *sql.DB
	clock *repository.Clock
}

func NewTransactor(db *sql.DB, clock *repository.Clock) *Transactor {
	return &Transactor{db: db, clock: clock}
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StorageFault("begin tx", err)
	}
	defer tx.Rollback() // safe no-op on commit

	repos := repository.Repositories{
		Users: NewUserStore(tx),
		Logs:  NewLogRepository(tx, t.clock),
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.StorageFault("commit tx", err)
	}
	return nil
}
