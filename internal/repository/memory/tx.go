package memory

import (
	"context"
	"sync"

	"user-admin/internal/domain"
	"user-admin/internal/repository"
)

// Transactor serializes units of work and restores the prior state of both
// collections when one fails. Writers outside WithinTx are not blocked, so a
// rollback can discard their concurrent changes.
type Transactor struct {
	mu    sync.Mutex
	users *Store[domain.User]
	logs  *LogRepository
}

func NewTransactor(users *Store[domain.User], logs *LogRepository) *Transactor {
	return &Transactor{users: users, logs: logs}
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := t.users.snapshot()
	logs := t.logs.snapshot()
	defer func() {
		if p := recover(); p != nil {
			t.users.restore(users)
			t.logs.restore(logs)
			panic(p)
		}
		if err != nil {
			t.users.restore(users)
			t.logs.restore(logs)
		}
	}()

	return fn(ctx, repository.Repositories{Users: t.users, Logs: t.logs})
}
