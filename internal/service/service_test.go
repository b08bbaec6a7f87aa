package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"user-admin/internal/domain"
	"user-admin/internal/repository"
	"user-admin/internal/repository/memory"
	"user-admin/internal/repository/repotest"
)

type fixture struct {
	users *memory.Store[domain.User]
	logs  *memory.LogRepository
	tx    *memory.Transactor
	time  *repotest.ManualTime
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mt := repotest.NewManualTime(time.Date(2025, 8, 19, 12, 0, 0, 0, time.UTC))
	users := memory.NewStore[domain.User]()
	logs := memory.NewLogRepository(repository.NewClock(mt.Now))
	return fixture{
		users: users,
		logs:  logs,
		tx:    memory.NewTransactor(users, logs),
		time:  mt,
	}
}

func seedUsers(t *testing.T, users UserService, active, inactive int) {
	t.Helper()
	ctx := context.Background()
	for i := range active {
		if _, err := users.Add(ctx, repotest.NewUser(fmt.Sprintf("active%d", i), true)); err != nil {
			t.Fatalf("add user: %v", err)
		}
	}
	for i := range inactive {
		if _, err := users.Add(ctx, repotest.NewUser(fmt.Sprintf("inactive%d", i), false)); err != nil {
			t.Fatalf("add user: %v", err)
		}
	}
}
