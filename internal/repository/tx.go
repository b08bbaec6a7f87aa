package repository

import (
	"context"

	"user-admin/internal/domain"
)

// Repositories groups the stores reachable inside a unit of work.
type Repositories struct {
	Users Store[domain.User]
	Logs  LogRepository
}

// Transactor runs fn in a single storage transaction. Writes made through the
// supplied repositories are committed together when fn returns nil and
// discarded otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
