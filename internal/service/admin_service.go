package service

import (
	"context"
	"fmt"

	"user-admin/internal/domain"
	"user-admin/internal/repository"
)

// AdminService performs user mutations together with their audit entry. Both
// writes share one transaction, so a mutation is never stored unaudited.
type AdminService interface {
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	// UpdateUser returns domain.ErrNotFound, and writes no audit entry, when
	// the user does not exist.
	UpdateUser(ctx context.Context, user domain.User) (domain.User, error)
	// DeleteUser returns the removed user. found is false, and no audit entry
	// is written, when the user does not exist.
	DeleteUser(ctx context.Context, id int64) (deleted domain.User, found bool, err error)
}

type adminService struct {
	tx repository.Transactor
}

func NewAdminService(tx repository.Transactor) AdminService {
	return &adminService{tx: tx}
}

func (s *adminService) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	var created domain.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		created, err = NewUserService(repos.Users).Add(ctx, user)
		if err != nil {
			return err
		}
		return audit(ctx, repos, domain.ActionCreated, created)
	})
	if err != nil {
		return domain.User{}, err
	}
	return created, nil
}

func (s *adminService) UpdateUser(ctx context.Context, user domain.User) (domain.User, error) {
	var updated domain.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		updated, err = NewUserService(repos.Users).Update(ctx, user)
		if err != nil {
			return err
		}
		return audit(ctx, repos, domain.ActionUpdated, updated)
	})
	if err != nil {
		return domain.User{}, err
	}
	return updated, nil
}

func (s *adminService) DeleteUser(ctx context.Context, id int64) (domain.User, bool, error) {
	var (
		deleted domain.User
		found   bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		users := NewUserService(repos.Users)

		var err error
		deleted, found, err = users.GetByID(ctx, id)
		if err != nil || !found {
			return err
		}
		if found, err = users.Delete(ctx, id); err != nil || !found {
			deleted = domain.User{}
			return err
		}
		return audit(ctx, repos, domain.ActionDeleted, deleted)
	})
	if err != nil {
		return domain.User{}, false, err
	}
	return deleted, found, nil
}

func audit(ctx context.Context, repos repository.Repositories, action string, user domain.User) error {
	details := fmt.Sprintf("User %s was %s.", user.FullName(), pastTense(action))
	if _, err := NewLogService(repos.Logs).AddLog(ctx, action, details, &user.ID); err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

func pastTense(action string) string {
	switch action {
	case domain.ActionCreated:
		return "created"
	case domain.ActionUpdated:
		return "updated"
	case domain.ActionDeleted:
		return "deleted"
	}
	return action
}
