package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"user-admin/internal/domain"
	"user-admin/internal/repository"
)

// LogRepository keeps audit entries in insertion order.
type LogRepository struct {
	mu      sync.RWMutex
	entries []domain.LogEntry
	nextID  int64
	clock   *repository.Clock
}

func NewLogRepository(clock *repository.Clock) *LogRepository {
	if clock == nil {
		clock = repository.NewClock(nil)
	}
	return &LogRepository{clock: clock}
}

func (r *LogRepository) Append(ctx context.Context, entry domain.LogEntry) (domain.LogEntry, error) {
	if err := entry.Validate(); err != nil {
		return domain.LogEntry{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.LogEntry{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	entry.ID = r.nextID
	entry.Timestamp = r.clock.Now()
	entry = cloneEntry(entry)
	r.entries = append(r.entries, entry)
	return cloneEntry(entry), nil
}

func (r *LogRepository) List(ctx context.Context) ([]domain.LogEntry, error) {
	return r.filter(ctx, func(domain.LogEntry) bool { return true })
}

func (r *LogRepository) Get(ctx context.Context, id int64) (domain.LogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := slices.BinarySearchFunc(r.entries, id, func(e domain.LogEntry, id int64) int {
		return cmp.Compare(e.ID, id)
	})
	if !ok {
		return domain.LogEntry{}, domain.ErrNotFound
	}
	return cloneEntry(r.entries[i]), nil
}

func (r *LogRepository) ListByUser(ctx context.Context, userID int64) ([]domain.LogEntry, error) {
	return r.filter(ctx, func(e domain.LogEntry) bool { return e.BelongsTo(userID) })
}

func (r *LogRepository) filter(ctx context.Context, keep func(domain.LogEntry) bool) ([]domain.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]domain.LogEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if keep(e) {
			out = append(out, cloneEntry(e))
		}
	}
	r.mu.RUnlock()

	repository.SortLogs(out)
	return out, nil
}

type logState struct {
	entries []domain.LogEntry
	nextID  int64
}

func (r *LogRepository) snapshot() logState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return logState{entries: slices.Clone(r.entries), nextID: r.nextID}
}

func (r *LogRepository) restore(state logState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = state.entries
	r.nextID = max(r.nextID, state.nextID)
}

func cloneEntry(e domain.LogEntry) domain.LogEntry {
	if e.UserID != nil {
		id := *e.UserID
		e.UserID = &id
	}
	return e
}
