package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"user-admin/internal/domain"
	"user-admin/internal/repository"
)

// timestamp holds unix nanoseconds so ordering is exact.
const createLogsTable = `
CREATE TABLE IF NOT EXISTS logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NULL,
	action TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_user_id ON logs(user_id);
CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp DESC, id DESC);
`

const selectLogs = `
SELECT id, user_id, action, details, timestamp
FROM logs`

const orderLogs = `
ORDER BY timestamp DESC, id DESC`

type LogRepository struct {
	db    dbtx
	clock *repository.Clock
}

func NewLogRepository(db dbtx, clock *repository.Clock) *LogRepository {
	if clock == nil {
		clock = repository.NewClock(nil)
	}
	return &LogRepository{db: db, clock: clock}
}

// Init creates the logs table and primes the clock with the newest stored
// timestamp.
func (r *LogRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createLogsTable); err != nil {
		return fmt.Errorf("create logs table: %w", err)
	}

	var latest int64
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(timestamp), 0) FROM logs`).Scan(&latest); err != nil {
		return fmt.Errorf("latest log timestamp: %w", err)
	}
	if latest > 0 {
		r.clock.Observe(time.Unix(0, latest))
	}
	return nil
}

func (r *LogRepository) Append(ctx context.Context, entry domain.LogEntry) (domain.LogEntry, error) {
	if err := entry.Validate(); err != nil {
		return domain.LogEntry{}, err
	}

	// Stamp while holding the connection that runs the insert. Open limits the
	// pool to one connection, so ids are assigned in timestamp order.
	exec := r.db
	if db, ok := r.db.(*sql.DB); ok {
		conn, err := db.Conn(ctx)
		if err != nil {
			return domain.LogEntry{}, domain.StorageFault("acquire connection", err)
		}
		defer conn.Close()
		exec = conn
	}
	entry.Timestamp = r.clock.Now()

	res, err := exec.ExecContext(ctx, `
INSERT INTO logs (user_id, action, details, timestamp)
VALUES (?, ?, ?, ?)`,
		nullInt64(entry.UserID),
		entry.Action,
		entry.Details,
		entry.Timestamp.UnixNano(),
	)
	if err != nil {
		return domain.LogEntry{}, domain.StorageFault("insert log", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.LogEntry{}, domain.StorageFault("log last insert id", err)
	}
	entry.ID = id
	return entry, nil
}

func (r *LogRepository) List(ctx context.Context) ([]domain.LogEntry, error) {
	return r.query(ctx, selectLogs+orderLogs)
}

func (r *LogRepository) Get(ctx context.Context, id int64) (domain.LogEntry, error) {
	row := r.db.QueryRowContext(ctx, selectLogs+`
WHERE id = ?`, id)
	entry, err := scanLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.LogEntry{}, domain.ErrNotFound
		}
		return domain.LogEntry{}, domain.StorageFault("scan log", err)
	}
	return entry, nil
}

func (r *LogRepository) ListByUser(ctx context.Context, userID int64) ([]domain.LogEntry, error) {
	return r.query(ctx, selectLogs+`
WHERE user_id = ?`+orderLogs, userID)
}

func (r *LogRepository) query(ctx context.Context, query string, args ...any) ([]domain.LogEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.StorageFault("query logs", err)
	}
	defer rows.Close()

	entries := []domain.LogEntry{}
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, domain.StorageFault("scan log", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageFault("iterate logs", err)
	}
	return entries, nil
}

func scanLog(row scanner) (domain.LogEntry, error) {
	var (
		entry  domain.LogEntry
		userID sql.NullInt64
		ts     int64
	)
	if err := row.Scan(&entry.ID, &userID, &entry.Action, &entry.Details, &ts); err != nil {
		return domain.LogEntry{}, err
	}
	if userID.Valid {
		id := userID.Int64
		entry.UserID = &id
	}
	entry.Timestamp = time.Unix(0, ts).UTC()
	return entry, nil
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
