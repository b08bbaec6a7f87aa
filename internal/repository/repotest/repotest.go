// Package repotest holds a conformance suite run against every storage
// backend.
package repotest

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"user-admin/internal/domain"
	"user-admin/internal/repository"
)

// Backend is one freshly opened, empty storage backend.
type Backend struct {
	Users repository.Store[domain.User]
	Logs  repository.LogRepository
	Tx    repository.Transactor
}

// Factory opens an empty backend whose log timestamps come from clock.
type Factory func(t *testing.T, clock *repository.Clock) Backend

// ManualTime is a settable time source for repository.NewClock.
type ManualTime struct {
	mu sync.Mutex
	t  time.Time
}

func NewManualTime(start time.Time) *ManualTime {
	return &ManualTime{t: start}
}

func (m *ManualTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

func (m *ManualTime) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = t
}

func (m *ManualTime) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = m.t.Add(d)
}

var epoch = time.Date(2025, 8, 19, 12, 0, 0, 0, time.UTC)

// Run executes the full suite.
func Run(t *testing.T, open Factory) {
	t.Run("Users", func(t *testing.T) { RunUserStore(t, open) })
	t.Run("Logs", func(t *testing.T) { RunLogRepository(t, open) })
	t.Run("Transactor", func(t *testing.T) { RunTransactor(t, open) })
}

func newBackend(t *testing.T, open Factory) (Backend, *ManualTime) {
	t.Helper()
	mt := NewManualTime(epoch)
	return open(t, repository.NewClock(mt.Now)), mt
}

// NewUser returns a valid user with a zero id.
func NewUser(forename string, active bool) domain.User {
	dob := time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC)
	return domain.User{
		Forename:    forename,
		Surname:     "Tester",
		Email:       forename + "@example.com",
		IsActive:    active,
		DateOfBirth: &dob,
	}
}

// SameUser compares users field by field, comparing instants for dates.
func SameUser(a, b domain.User) bool {
	if a.ID != b.ID || a.Forename != b.Forename || a.Surname != b.Surname || a.Email != b.Email || a.IsActive != b.IsActive {
		return false
	}
	if (a.DateOfBirth == nil) != (b.DateOfBirth == nil) {
		return false
	}
	return a.DateOfBirth == nil || a.DateOfBirth.Equal(*b.DateOfBirth)
}

func mustCreate(t *testing.T, s repository.Store[domain.User], u domain.User) domain.User {
	t.Helper()
	created, err := s.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return created
}

func mustList(t *testing.T, s repository.Store[domain.User]) []domain.User {
	t.Helper()
	users, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	return users
}

func RunUserStore(t *testing.T, open Factory) {
	ctx := context.Background()

	t.Run("CreateAssignsUniquePositiveIDs", func(t *testing.T) {
		b, _ := newBackend(t, open)
		seen := map[int64]bool{}
		for _, name := range []string{"ada", "bob", "cy"} {
			u := mustCreate(t, b.Users, NewUser(name, true))
			if u.ID <= 0 {
				t.Fatalf("expected positive id, got %d", u.ID)
			}
			if seen[u.ID] {
				t.Fatalf("id %d issued twice", u.ID)
			}
			seen[u.ID] = true
		}
	})

	t.Run("ReadAfterWrite", func(t *testing.T) {
		b, _ := newBackend(t, open)
		in := NewUser("ada", true)
		created := mustCreate(t, b.Users, in)

		users := mustList(t, b.Users)
		if len(users) != 1 {
			t.Fatalf("expected 1 user, got %d", len(users))
		}
		in.ID = created.ID
		if !SameUser(users[0], in) {
			t.Fatalf("expected %+v, got %+v", in, users[0])
		}

		got, err := b.Users.Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("get user: %v", err)
		}
		if !SameUser(got, in) {
			t.Fatalf("expected %+v, got %+v", in, got)
		}
	})

	t.Run("CreateRejectsBlankFields", func(t *testing.T) {
		b, _ := newBackend(t, open)
		u := NewUser("ada", true)
		u.Email = "  "
		u.Surname = ""

		_, err := b.Users.Create(ctx, u)
		if !errors.Is(err, domain.ErrConstraintViolation) {
			t.Fatalf("expected constraint violation, got %v", err)
		}
		var verr *domain.ValidationError
		if !errors.As(err, &verr) || verr.Fields["email"] == "" || verr.Fields["surname"] == "" {
			t.Fatalf("expected field errors for email and surname, got %v", err)
		}
		if n := len(mustList(t, b.Users)); n != 0 {
			t.Fatalf("expected nothing persisted, got %d users", n)
		}
	})

	t.Run("CreateWithExplicitID", func(t *testing.T) {
		b, _ := newBackend(t, open)
		u := NewUser("ada", true)
		u.ID = 40
		if got := mustCreate(t, b.Users, u); got.ID != 40 {
			t.Fatalf("expected id 40, got %d", got.ID)
		}
		if _, err := b.Users.Create(ctx, u); !errors.Is(err, domain.ErrConstraintViolation) {
			t.Fatalf("expected duplicate id to be rejected, got %v", err)
		}
		if next := mustCreate(t, b.Users, NewUser("bob", true)); next.ID <= 40 {
			t.Fatalf("expected id after 40, got %d", next.ID)
		}
	})

	t.Run("CreateStopsWhenIDsRunOut", func(t *testing.T) {
		b, _ := newBackend(t, open)
		last := NewUser("last", true)
		last.ID = math.MaxInt64
		mustCreate(t, b.Users, last)

		got, err := b.Users.Create(ctx, NewUser("next", true))
		if !errors.Is(err, domain.ErrStorageFault) {
			t.Fatalf("expected storage fault once ids run out, got id %d, err %v", got.ID, err)
		}
		users := mustList(t, b.Users)
		if len(users) != 1 || users[0].ID != math.MaxInt64 {
			t.Fatalf("expected only the user with the largest id, got %+v", users)
		}
	})

	t.Run("UpdateReplacesAllFields", func(t *testing.T) {
		b, _ := newBackend(t, open)
		created := mustCreate(t, b.Users, NewUser("ada", true))
		other := mustCreate(t, b.Users, NewUser("bob", true))

		replacement := domain.User{
			ID:       created.ID,
			Forename: "Augusta",
			Surname:  "King",
			Email:    "augusta@example.com",
			IsActive: false,
		}
		if _, err := b.Users.Update(ctx, replacement); err != nil {
			t.Fatalf("update user: %v", err)
		}

		got, err := b.Users.Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("get user: %v", err)
		}
		if !SameUser(got, replacement) {
			t.Fatalf("expected %+v, got %+v", replacement, got)
		}
		untouched, err := b.Users.Get(ctx, other.ID)
		if err != nil || !SameUser(untouched, other) {
			t.Fatalf("unrelated user changed: %+v, %v", untouched, err)
		}
	})

	t.Run("UpdateMissingIsNotFound", func(t *testing.T) {
		b, _ := newBackend(t, open)
		u := NewUser("ada", true)
		u.ID = 999
		if _, err := b.Users.Update(ctx, u); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		if n := len(mustList(t, b.Users)); n != 0 {
			t.Fatalf("update must not insert, got %d users", n)
		}
	})

	t.Run("UpdateValidates", func(t *testing.T) {
		b, _ := newBackend(t, open)
		created := mustCreate(t, b.Users, NewUser("ada", true))
		created.Forename = ""
		if _, err := b.Users.Update(ctx, created); !errors.Is(err, domain.ErrConstraintViolation) {
			t.Fatalf("expected constraint violation, got %v", err)
		}
	})

	t.Run("DeleteRemoves", func(t *testing.T) {
		b, _ := newBackend(t, open)
		keep := mustCreate(t, b.Users, NewUser("ada", true))
		gone := mustCreate(t, b.Users, NewUser("bob", false))

		if err := b.Users.Delete(ctx, gone); err != nil {
			t.Fatalf("delete user: %v", err)
		}
		users := mustList(t, b.Users)
		if len(users) != 1 || users[0].ID != keep.ID {
			t.Fatalf("expected only user %d, got %+v", keep.ID, users)
		}
		if _, err := b.Users.Get(ctx, gone.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found after delete, got %v", err)
		}
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		b, _ := newBackend(t, open)
		mustCreate(t, b.Users, NewUser("ada", true))
		mustCreate(t, b.Users, NewUser("bob", true))

		missing := NewUser("ghost", true)
		missing.ID = 999
		if err := b.Users.Delete(ctx, missing); err != nil {
			t.Fatalf("delete missing user: %v", err)
		}
		found, err := b.Users.DeleteByID(ctx, 999)
		if err != nil || found {
			t.Fatalf("expected found=false and no error, got %v, %v", found, err)
		}
		if n := len(mustList(t, b.Users)); n != 2 {
			t.Fatalf("expected 2 users, got %d", n)
		}
	})

	t.Run("DeleteByIDReportsExistence", func(t *testing.T) {
		b, _ := newBackend(t, open)
		u := mustCreate(t, b.Users, NewUser("ada", true))

		found, err := b.Users.DeleteByID(ctx, u.ID)
		if err != nil || !found {
			t.Fatalf("expected found=true, got %v, %v", found, err)
		}
		found, err = b.Users.DeleteByID(ctx, u.ID)
		if err != nil || found {
			t.Fatalf("expected found=false on second delete, got %v, %v", found, err)
		}
	})

	t.Run("IDsAreNeverReused", func(t *testing.T) {
		b, _ := newBackend(t, open)
		mustCreate(t, b.Users, NewUser("ada", true))
		last := mustCreate(t, b.Users, NewUser("bob", true))
		if _, err := b.Users.DeleteByID(ctx, last.ID); err != nil {
			t.Fatalf("delete user: %v", err)
		}
		next := mustCreate(t, b.Users, NewUser("cy", true))
		if next.ID <= last.ID {
			t.Fatalf("expected id greater than %d, got %d", last.ID, next.ID)
		}
	})

	t.Run("GetMissingIsNotFound", func(t *testing.T) {
		b, _ := newBackend(t, open)
		if _, err := b.Users.Get(ctx, 12345); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("AllIsLazyAndRestartable", func(t *testing.T) {
		b, _ := newBackend(t, open)
		mustCreate(t, b.Users, NewUser("ada", true))
		all := b.Users.All(ctx)

		// created after the view was obtained but before it is ranged over
		mustCreate(t, b.Users, NewUser("bob", false))

		count := func() int {
			n := 0
			for _, err := range all {
				if err != nil {
					t.Fatalf("iterate users: %v", err)
				}
				n++
			}
			return n
		}
		if n := count(); n != 2 {
			t.Fatalf("expected 2 users on first pass, got %d", n)
		}
		if n := count(); n != 2 {
			t.Fatalf("expected 2 users on second pass, got %d", n)
		}

		for range all {
			break
		}
	})
}

func RunLogRepository(t *testing.T, open Factory) {
	ctx := context.Background()

	t.Run("AppendAssignsIDAndTimestamp", func(t *testing.T) {
		b, mt := newBackend(t, open)
		uid := int64(42)
		entry, err := b.Logs.Append(ctx, domain.LogEntry{
			Action:    domain.ActionCreated,
			Details:   "User X was created.",
			UserID:    &uid,
			Timestamp: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("append log: %v", err)
		}
		if entry.ID <= 0 {
			t.Fatalf("expected positive id, got %d", entry.ID)
		}
		if !entry.Timestamp.Equal(mt.Now()) {
			t.Fatalf("expected store clock timestamp %v, got %v", mt.Now(), entry.Timestamp)
		}

		got, err := b.Logs.Get(ctx, entry.ID)
		if err != nil {
			t.Fatalf("get log: %v", err)
		}
		if got.Action != domain.ActionCreated || got.Details != "User X was created." || !got.BelongsTo(42) {
			t.Fatalf("unexpected entry %+v", got)
		}
		if !got.Timestamp.Equal(entry.Timestamp) {
			t.Fatalf("expected timestamp %v, got %v", entry.Timestamp, got.Timestamp)
		}
	})

	t.Run("AppendWithoutUser", func(t *testing.T) {
		b, _ := newBackend(t, open)
		entry, err := b.Logs.Append(ctx, domain.LogEntry{Action: "Login"})
		if err != nil {
			t.Fatalf("append log: %v", err)
		}
		got, err := b.Logs.Get(ctx, entry.ID)
		if err != nil {
			t.Fatalf("get log: %v", err)
		}
		if got.UserID != nil || got.Details != "" {
			t.Fatalf("expected no user and empty details, got %+v", got)
		}
	})

	t.Run("AppendRejectsBlankAction", func(t *testing.T) {
		b, _ := newBackend(t, open)
		if _, err := b.Logs.Append(ctx, domain.LogEntry{Action: " "}); !errors.Is(err, domain.ErrConstraintViolation) {
			t.Fatalf("expected constraint violation, got %v", err)
		}
	})

	t.Run("ListOrdersNewestFirst", func(t *testing.T) {
		b, mt := newBackend(t, open)
		for _, action := range []string{"first", "second", "third"} {
			if _, err := b.Logs.Append(ctx, domain.LogEntry{Action: action}); err != nil {
				t.Fatalf("append log: %v", err)
			}
			mt.Advance(time.Minute)
		}

		entries, err := b.Logs.List(ctx)
		if err != nil {
			t.Fatalf("list logs: %v", err)
		}
		assertActions(t, entries, "third", "second", "first")
	})

	t.Run("TiesBreakByIDDescending", func(t *testing.T) {
		b, _ := newBackend(t, open)
		for _, action := range []string{"a", "b", "c"} {
			if _, err := b.Logs.Append(ctx, domain.LogEntry{Action: action}); err != nil {
				t.Fatalf("append log: %v", err)
			}
		}

		entries, err := b.Logs.List(ctx)
		if err != nil {
			t.Fatalf("list logs: %v", err)
		}
		assertActions(t, entries, "c", "b", "a")
		for i := 1; i < len(entries); i++ {
			if !entries[i].Timestamp.Equal(entries[0].Timestamp) {
				t.Fatalf("expected tied timestamps, got %+v", entries)
			}
		}
	})

	t.Run("BackwardsClockIsClamped", func(t *testing.T) {
		b, mt := newBackend(t, open)
		first, err := b.Logs.Append(ctx, domain.LogEntry{Action: "first"})
		if err != nil {
			t.Fatalf("append log: %v", err)
		}
		mt.Advance(-time.Hour)
		second, err := b.Logs.Append(ctx, domain.LogEntry{Action: "second"})
		if err != nil {
			t.Fatalf("append log: %v", err)
		}
		if second.Timestamp.Before(first.Timestamp) {
			t.Fatalf("timestamp moved backwards: %v then %v", first.Timestamp, second.Timestamp)
		}

		entries, err := b.Logs.List(ctx)
		if err != nil {
			t.Fatalf("list logs: %v", err)
		}
		assertActions(t, entries, "second", "first")
	})

	t.Run("ListByUser", func(t *testing.T) {
		b, mt := newBackend(t, open)
		one, two := int64(1), int64(2)
		appends := []domain.LogEntry{
			{Action: "u1-old", UserID: &one},
			{Action: "u2", UserID: &two},
			{Action: "system"},
			{Action: "u1-new", UserID: &one},
		}
		for _, e := range appends {
			if _, err := b.Logs.Append(ctx, e); err != nil {
				t.Fatalf("append log: %v", err)
			}
			mt.Advance(time.Second)
		}

		entries, err := b.Logs.ListByUser(ctx, 1)
		if err != nil {
			t.Fatalf("list user logs: %v", err)
		}
		assertActions(t, entries, "u1-new", "u1-old")

		none, err := b.Logs.ListByUser(ctx, 77)
		if err != nil {
			t.Fatalf("list user logs: %v", err)
		}
		if len(none) != 0 {
			t.Fatalf("expected no entries, got %d", len(none))
		}
	})

	t.Run("GetMissingIsNotFound", func(t *testing.T) {
		b, _ := newBackend(t, open)
		if _, err := b.Logs.Get(ctx, 404); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func RunTransactor(t *testing.T, open Factory) {
	ctx := context.Background()

	t.Run("CommitsBothWrites", func(t *testing.T) {
		b, _ := newBackend(t, open)
		var created domain.User
		err := b.Tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			var err error
			created, err = repos.Users.Create(ctx, NewUser("ada", true))
			if err != nil {
				return err
			}
			_, err = repos.Logs.Append(ctx, domain.LogEntry{Action: domain.ActionCreated, UserID: &created.ID})
			return err
		})
		if err != nil {
			t.Fatalf("within tx: %v", err)
		}

		if _, err := b.Users.Get(ctx, created.ID); err != nil {
			t.Fatalf("expected committed user, got %v", err)
		}
		entries, err := b.Logs.ListByUser(ctx, created.ID)
		if err != nil || len(entries) != 1 {
			t.Fatalf("expected one committed log, got %d, %v", len(entries), err)
		}
	})

	t.Run("RollsBackBothWrites", func(t *testing.T) {
		b, _ := newBackend(t, open)
		boom := errors.New("boom")
		err := b.Tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			u, err := repos.Users.Create(ctx, NewUser("ada", true))
			if err != nil {
				return err
			}
			if _, err := repos.Logs.Append(ctx, domain.LogEntry{Action: domain.ActionCreated, UserID: &u.ID}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}

		if n := len(mustList(t, b.Users)); n != 0 {
			t.Fatalf("expected rolled back user, got %d users", n)
		}
		entries, err := b.Logs.List(ctx)
		if err != nil {
			t.Fatalf("list logs: %v", err)
		}
		if len(entries) != 0 {
			t.Fatalf("expected rolled back logs, got %d", len(entries))
		}
	})

	t.Run("SeesOwnWrites", func(t *testing.T) {
		b, _ := newBackend(t, open)
		err := b.Tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			u, err := repos.Users.Create(ctx, NewUser("ada", true))
			if err != nil {
				return err
			}
			got, err := repos.Users.Get(ctx, u.ID)
			if err != nil {
				return err
			}
			if !SameUser(got, u) {
				t.Errorf("expected %+v inside tx, got %+v", u, got)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("within tx: %v", err)
		}
	})
}

func assertActions(t *testing.T, entries []domain.LogEntry, want ...string) {
	t.Helper()
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, w := range want {
		if entries[i].Action != w {
			got := make([]string, len(entries))
			for j, e := range entries {
				got[j] = e.Action
			}
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}
