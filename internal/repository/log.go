package repository

import (
	"context"

	"user-admin/internal/domain"
)

// LogRepository persists the append-only audit trail. Ordered reads return
// entries by timestamp descending, ties broken by id descending.
type LogRepository interface {
	// Append stores a new entry, assigning its id and timestamp.
	Append(ctx context.Context, entry domain.LogEntry) (domain.LogEntry, error)
	List(ctx context.Context) ([]domain.LogEntry, error)
	Get(ctx context.Context, id int64) (domain.LogEntry, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.LogEntry, error)
}
