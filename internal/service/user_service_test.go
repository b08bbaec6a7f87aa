package service

import (
	"context"
	"errors"
	"testing"

	"user-admin/internal/domain"
	"user-admin/internal/repository/repotest"
)

func TestUserService_FilterByActive(t *testing.T) {
	f := newFixture(t)
	users := NewUserService(f.users)
	seedUsers(t, users, 3, 2)

	tests := []struct {
		filter string
		want   int
		active *bool
	}{
		{filter: "active", want: 3, active: ptr(true)},
		{filter: "ACTIVE", want: 3, active: ptr(true)},
		{filter: "  Active\t", want: 3, active: ptr(true)},
		{filter: "inactive", want: 2, active: ptr(false)},
		{filter: "InActive", want: 2, active: ptr(false)},
		{filter: "", want: 5},
		{filter: "all", want: 5},
		{filter: "act", want: 5},
		{filter: "null", want: 5},
		{filter: "✓", want: 5},
	}

	for _, tc := range tests {
		t.Run(tc.filter, func(t *testing.T) {
			got, err := users.FilterByActive(context.Background(), tc.filter)
			if err != nil {
				t.Fatalf("FilterByActive(%q) error = %v", tc.filter, err)
			}
			if len(got) != tc.want {
				t.Fatalf("FilterByActive(%q) returned %d users, want %d", tc.filter, len(got), tc.want)
			}
			for i, u := range got {
				if tc.active != nil && u.IsActive != *tc.active {
					t.Errorf("user %d has IsActive=%v", u.ID, u.IsActive)
				}
				if i > 0 && got[i-1].ID >= u.ID {
					t.Errorf("users not in id order: %d before %d", got[i-1].ID, u.ID)
				}
			}
		})
	}
}

func TestUserService_FilterByActiveEmptyStore(t *testing.T) {
	users := NewUserService(newFixture(t).users)
	got, err := users.FilterByActive(context.Background(), "active")
	if err != nil {
		t.Fatalf("FilterByActive error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("FilterByActive = %#v, want empty non-nil slice", got)
	}
}

func TestUserService_GetByID(t *testing.T) {
	ctx := context.Background()
	users := NewUserService(newFixture(t).users)

	created, err := users.Add(ctx, repotest.NewUser("ada", true))
	if err != nil {
		t.Fatalf("Add error = %v", err)
	}

	got, found, err := users.GetByID(ctx, created.ID)
	if err != nil || !found {
		t.Fatalf("GetByID(%d) = found %v, err %v", created.ID, found, err)
	}
	if !repotest.SameUser(got, created) {
		t.Fatalf("GetByID = %+v, want %+v", got, created)
	}

	if _, found, err := users.GetByID(ctx, 999); err != nil || found {
		t.Fatalf("GetByID(999) = found %v, err %v", found, err)
	}
}

func TestUserService_AddRejectsInvalidUser(t *testing.T) {
	users := NewUserService(newFixture(t).users)
	_, err := users.Add(context.Background(), domain.User{Forename: "Ada"})
	if !errors.Is(err, domain.ErrConstraintViolation) {
		t.Fatalf("Add error = %v, want ErrConstraintViolation", err)
	}
	all, _ := users.GetAll(context.Background())
	if len(all) != 0 {
		t.Fatalf("invalid user was stored: %+v", all)
	}
}

func TestUserService_Update(t *testing.T) {
	ctx := context.Background()
	users := NewUserService(newFixture(t).users)

	created, err := users.Add(ctx, repotest.NewUser("ada", true))
	if err != nil {
		t.Fatalf("Add error = %v", err)
	}

	changed := created
	changed.Email = "ada@lovelace.dev"
	changed.IsActive = false
	got, err := users.Update(ctx, changed)
	if err != nil {
		t.Fatalf("Update error = %v", err)
	}
	if !repotest.SameUser(got, changed) {
		t.Fatalf("Update returned %+v, want %+v", got, changed)
	}

	stored, _, _ := users.GetByID(ctx, created.ID)
	if !repotest.SameUser(stored, changed) {
		t.Fatalf("stored user = %+v, want %+v", stored, changed)
	}

	missing := changed
	missing.ID = 999
	if _, err := users.Update(ctx, missing); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUserService_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	users := NewUserService(newFixture(t).users)
	seedUsers(t, users, 2, 0)

	before, _ := users.GetAll(ctx)
	found, err := users.Delete(ctx, 999)
	if err != nil || found {
		t.Fatalf("Delete(999) = %v, %v", found, err)
	}
	after, _ := users.GetAll(ctx)
	if len(after) != len(before) {
		t.Fatalf("Delete(999) changed the store: %d -> %d users", len(before), len(after))
	}

	found, err = users.Delete(ctx, before[0].ID)
	if err != nil || !found {
		t.Fatalf("Delete(%d) = %v, %v", before[0].ID, found, err)
	}
	found, err = users.Delete(ctx, before[0].ID)
	if err != nil || found {
		t.Fatalf("second Delete(%d) = %v, %v", before[0].ID, found, err)
	}
}

func ptr[T any](v T) *T { return &v }
