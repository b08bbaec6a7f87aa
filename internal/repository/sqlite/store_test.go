package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"user-admin/internal/domain"
	"user-admin/internal/repository"
	"user-admin/internal/repository/repotest"
)

func openBackend(t *testing.T, clock *repository.Clock) repotest.Backend {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	users := NewUserStore(db)
	logs := NewLogRepository(db, clock)
	if err := users.Init(context.Background()); err != nil {
		t.Fatalf("init users: %v", err)
	}
	if err := logs.Init(context.Background()); err != nil {
		t.Fatalf("init logs: %v", err)
	}
	return repotest.Backend{Users: users, Logs: logs, Tx: NewTransactor(db, clock)}
}

func TestConformance(t *testing.T) {
	repotest.Run(t, openBackend)
}

func TestReopenKeepsDataAndSequence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "admin.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	users := NewUserStore(db)
	if err := users.Init(ctx); err != nil {
		t.Fatalf("init users: %v", err)
	}
	first, err := users.Create(ctx, repotest.NewUser("ada", true))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := users.DeleteByID(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_ = db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	users = NewUserStore(db)
	if err := users.Init(ctx); err != nil {
		t.Fatalf("init users: %v", err)
	}
	second, err := users.Create(ctx, repotest.NewUser("bob", false))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if second.ID <= first.ID {
		t.Fatalf("expected id after %d, got %d", first.ID, second.ID)
	}
}

func TestUserWithoutDateOfBirth(t *testing.T) {
	b := openBackend(t, repository.NewClock(nil))
	ctx := context.Background()

	u := repotest.NewUser("ada", false)
	u.DateOfBirth = nil
	created, err := b.Users.Create(ctx, u)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := b.Users.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DateOfBirth != nil || got.IsActive {
		t.Fatalf("unexpected user %+v", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `CREATE TABLE items (id INTEGER PRIMARY KEY, code TEXT NOT NULL UNIQUE, note TEXT NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO items (id, code, note) VALUES (1, 'a', '')`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err = db.ExecContext(ctx, `INSERT INTO items (id, code, note) VALUES (1, 'b', '')`)
	if !isUniqueViolation(err) {
		t.Fatalf("duplicate primary key not detected: %v", err)
	}
	_, err = db.ExecContext(ctx, `INSERT INTO items (id, code, note) VALUES (2, 'a', '')`)
	if !isUniqueViolation(err) {
		t.Fatalf("duplicate unique column not detected: %v", err)
	}

	_, err = db.ExecContext(ctx, `INSERT INTO items (id, code, note) VALUES (3, 'c', NULL)`)
	if err == nil || isUniqueViolation(err) {
		t.Fatalf("not null failure reported as unique violation: %v", err)
	}
	if isUniqueViolation(errors.New("UNIQUE constraint failed: items.id")) {
		t.Fatal("plain error text must not count as a unique violation")
	}
	if isUniqueViolation(nil) {
		t.Fatal("nil error reported as unique violation")
	}
}

func TestConcurrentAppendsKeepIDAndTimestampOrder(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "logs.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	ctx := context.Background()
	logs := NewLogRepository(db, repository.NewClock(nil))
	if err := logs.Init(ctx); err != nil {
		t.Fatalf("init logs: %v", err)
	}

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWriter {
				if _, err := logs.Append(ctx, domain.LogEntry{Action: domain.ActionCreated}); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("append: %v", err)
	}

	entries, err := logs.List(ctx)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(entries) != writers*perWriter {
		t.Fatalf("expected %d entries, got %d", writers*perWriter, len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].ID <= entries[i].ID {
			t.Fatalf("newest-first order broken at %d: id %d (%s) before id %d (%s)",
				i, entries[i-1].ID, entries[i-1].Timestamp, entries[i].ID, entries[i].Timestamp)
		}
	}
}
