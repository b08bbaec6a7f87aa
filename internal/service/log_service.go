package service

import (
	"context"
	"errors"

	"user-admin/internal/domain"
	"user-admin/internal/paging"
	"user-admin/internal/repository"
)

// LogService exposes the append-only audit trail. Ordered results are newest
// first.
type LogService interface {
	// AddLog appends an entry; the id and timestamp are assigned by storage.
	AddLog(ctx context.Context, action, details string, userID *int64) (domain.LogEntry, error)
	GetAllLogs(ctx context.Context) ([]domain.LogEntry, error)
	GetLogByID(ctx context.Context, id int64) (domain.LogEntry, bool, error)
	GetLogsForUser(ctx context.Context, userID int64) ([]domain.LogEntry, error)
	// ListPage returns one page of the full trail. Out of range arguments are
	// normalized rather than rejected.
	ListPage(ctx context.Context, page, pageSize int) (paging.Result[domain.LogEntry], error)
}

type logService struct {
	logs repository.LogRepository
}

func NewLogService(logs repository.LogRepository) LogService {
	return &logService{logs: logs}
}

func (s *logService) AddLog(ctx context.Context, action, details string, userID *int64) (domain.LogEntry, error) {
	entry := domain.LogEntry{
		Action:  action,
		Details: details,
	}
	if userID != nil {
		id := *userID
		entry.UserID = &id
	}
	return s.logs.Append(ctx, entry)
}

func (s *logService) GetAllLogs(ctx context.Context) ([]domain.LogEntry, error) {
	return s.logs.List(ctx)
}

func (s *logService) GetLogByID(ctx context.Context, id int64) (domain.LogEntry, bool, error) {
	entry, err := s.logs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.LogEntry{}, false, nil
		}
		return domain.LogEntry{}, false, err
	}
	return entry, true, nil
}

func (s *logService) GetLogsForUser(ctx context.Context, userID int64) ([]domain.LogEntry, error) {
	return s.logs.ListByUser(ctx, userID)
}

func (s *logService) ListPage(ctx context.Context, page, pageSize int) (paging.Result[domain.LogEntry], error) {
	entries, err := s.logs.List(ctx)
	if err != nil {
		return paging.Result[domain.LogEntry]{}, err
	}
	return paging.Paginate(entries, page, pageSize), nil
}
