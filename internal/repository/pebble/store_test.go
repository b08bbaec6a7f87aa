package pebblestore

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/pebble/vfs"

	"user-admin/internal/domain"
	"user-admin/internal/repository"
	"user-admin/internal/repository/repotest"
)

func openMem(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Options{DataDir: "data", FS: vfs.NewMem()})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func openBackend(t *testing.T, clock *repository.Clock) repotest.Backend {
	db := openMem(t)
	logs := NewLogRepository(db, clock)
	if err := logs.Init(context.Background()); err != nil {
		t.Fatalf("init logs: %v", err)
	}
	return repotest.Backend{Users: NewUserStore(db), Logs: logs, Tx: NewTransactor(db, clock)}
}

func TestConformance(t *testing.T) {
	repotest.Run(t, openBackend)
}

func TestOpenRequiresDataDir(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Fatal("expected error for empty data dir")
	}
}

func TestReopenPrimesClockAndSequence(t *testing.T) {
	ctx := context.Background()
	fs := vfs.NewMem()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	db, err := Open(Options{DataDir: "data", FS: fs, Sync: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	logs := NewLogRepository(db, repository.NewClock(func() time.Time { return start }))
	first, err := logs.Append(ctx, domain.LogEntry{Action: "first"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err = Open(Options{DataDir: "data", FS: fs})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	// a wall clock that went backwards across the restart
	logs = NewLogRepository(db, repository.NewClock(func() time.Time { return start.Add(-time.Hour) }))
	if err := logs.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	second, err := logs.Append(ctx, domain.LogEntry{Action: "second"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if second.ID <= first.ID {
		t.Fatalf("expected id after %d, got %d", first.ID, second.ID)
	}
	if second.Timestamp.Before(first.Timestamp) {
		t.Fatalf("timestamp moved backwards across restart: %v then %v", first.Timestamp, second.Timestamp)
	}
}

func TestPrefixBoundsCarry(t *testing.T) {
	opts := prefixBounds([]byte{'a', 0xff})
	if string(opts.UpperBound) != "b" {
		t.Fatalf("expected upper bound %q, got %q", "b", opts.UpperBound)
	}
	opts = prefixBounds([]byte{0xff, 0xff})
	if opts.UpperBound != nil {
		t.Fatalf("expected open upper bound, got %q", opts.UpperBound)
	}
}
