package pebblestore

import (
	"context"
	"encoding/binary"
	"encoding/json"

	"github.com/cockroachdb/pebble"

	"user-admin/internal/domain"
	"user-admin/internal/repository"
)

const logsName = "logs"

var (
	logsPrefix   = recordPrefix(logsName)
	logsSeq      = seqKey(logsName)
	byUserPrefix = []byte("logs_by_user/")
)

// LogRepository stores audit entries keyed by id with a secondary
// user index under logs_by_user/<user id><log id>.
type LogRepository struct {
	kv    kv
	clock *repository.Clock
}

func NewLogRepository(db *DB, clock *repository.Clock) *LogRepository {
	if clock == nil {
		clock = repository.NewClock(nil)
	}
	return &LogRepository{kv: kv{db: db}, clock: clock}
}

// Init primes the clock with the timestamp of the newest stored entry.
func (r *LogRepository) Init(ctx context.Context) error {
	it, err := r.kv.reader().NewIter(prefixBounds(logsPrefix))
	if err != nil {
		return err
	}
	defer it.Close()

	if it.Last() {
		var entry domain.LogEntry
		if err := json.Unmarshal(it.Value(), &entry); err != nil {
			return err
		}
		r.clock.Observe(entry.Timestamp)
	}
	return it.Error()
}

func (r *LogRepository) Append(ctx context.Context, entry domain.LogEntry) (domain.LogEntry, error) {
	if err := entry.Validate(); err != nil {
		return domain.LogEntry{}, err
	}

	err := r.kv.update(func(b *pebble.Batch) error {
		seq, err := readSeq(b, logsSeq)
		if err != nil {
			return err
		}
		seq++

		entry.ID = seq
		entry.Timestamp = r.clock.Now()
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := b.Set(recordKey(logsPrefix, entry.ID), data, nil); err != nil {
			return err
		}
		if entry.UserID != nil {
			if err := b.Set(userIndexKey(*entry.UserID, entry.ID), nil, nil); err != nil {
				return err
			}
		}
		return writeSeq(b, logsSeq, seq)
	})
	if err != nil {
		return domain.LogEntry{}, domain.StorageFault("append log", err)
	}
	return entry, nil
}

func (r *LogRepository) List(ctx context.Context) ([]domain.LogEntry, error) {
	it, err := r.kv.reader().NewIter(prefixBounds(logsPrefix))
	if err != nil {
		return nil, domain.StorageFault("iterate logs", err)
	}
	defer it.Close()

	entries := []domain.LogEntry{}
	for it.First(); it.Valid(); it.Next() {
		var entry domain.LogEntry
		if err := json.Unmarshal(it.Value(), &entry); err != nil {
			return nil, domain.StorageFault("decode log", err)
		}
		entries = append(entries, entry)
	}
	if err := it.Error(); err != nil {
		return nil, domain.StorageFault("iterate logs", err)
	}

	repository.SortLogs(entries)
	return entries, nil
}

func (r *LogRepository) Get(ctx context.Context, id int64) (domain.LogEntry, error) {
	val, ok, err := get(r.kv.reader(), recordKey(logsPrefix, id))
	if err != nil {
		return domain.LogEntry{}, domain.StorageFault("get log", err)
	}
	if !ok {
		return domain.LogEntry{}, domain.ErrNotFound
	}

	var entry domain.LogEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return domain.LogEntry{}, domain.StorageFault("decode log", err)
	}
	return entry, nil
}

func (r *LogRepository) ListByUser(ctx context.Context, userID int64) ([]domain.LogEntry, error) {
	prefix := binary.BigEndian.AppendUint64(append([]byte(nil), byUserPrefix...), uint64(userID))
	it, err := r.kv.reader().NewIter(prefixBounds(prefix))
	if err != nil {
		return nil, domain.StorageFault("iterate user logs", err)
	}
	defer it.Close()

	var ids []int64
	for it.First(); it.Valid(); it.Next() {
		key := it.Key()
		ids = append(ids, int64(binary.BigEndian.Uint64(key[len(key)-8:])))
	}
	if err := it.Error(); err != nil {
		return nil, domain.StorageFault("iterate user logs", err)
	}

	entries := make([]domain.LogEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	repository.SortLogs(entries)
	return entries, nil
}

func userIndexKey(userID, logID int64) []byte {
	key := binary.BigEndian.AppendUint64(append([]byte(nil), byUserPrefix...), uint64(userID))
	return binary.BigEndian.AppendUint64(key, uint64(logID))
}
