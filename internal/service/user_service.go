package service

import (
	"context"
	"errors"
	"strings"

	"user-admin/internal/domain"
	"user-admin/internal/repository"
)

// Filter tokens understood by FilterByActive. Matching ignores case and
// surrounding whitespace.
const (
	FilterActive   = "active"
	FilterInactive = "inactive"
)

// UserService describes user listing and lifecycle operations.
type UserService interface {
	// FilterByActive returns active users for "active", inactive users for
	// "inactive" and every user for any other token.
	FilterByActive(ctx context.Context, filter string) ([]domain.User, error)
	GetAll(ctx context.Context) ([]domain.User, error)
	// GetByID reports found=false for a missing user.
	GetByID(ctx context.Context, id int64) (domain.User, bool, error)
	Add(ctx context.Context, user domain.User) (domain.User, error)
	// Update replaces the stored user. It returns domain.ErrNotFound when no
	// user has the given id.
	Update(ctx context.Context, user domain.User) (domain.User, error)
	// Delete removes the user if present and reports whether it existed.
	Delete(ctx context.Context, id int64) (bool, error)
}

type userService struct {
	users repository.Store[domain.User]
}

func NewUserService(users repository.Store[domain.User]) UserService {
	return &userService{users: users}
}

func (s *userService) FilterByActive(ctx context.Context, filter string) ([]domain.User, error) {
	switch strings.ToLower(strings.TrimSpace(filter)) {
	case FilterActive:
		return s.collect(ctx, func(u domain.User) bool { return u.IsActive })
	case FilterInactive:
		return s.collect(ctx, func(u domain.User) bool { return !u.IsActive })
	default:
		return s.users.List(ctx)
	}
}

func (s *userService) collect(ctx context.Context, keep func(domain.User) bool) ([]domain.User, error) {
	users := []domain.User{}
	for u, err := range s.users.All(ctx) {
		if err != nil {
			return nil, err
		}
		if keep(u) {
			users = append(users, u)
		}
	}
	return users, nil
}

func (s *userService) GetAll(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

func (s *userService) GetByID(ctx context.Context, id int64) (domain.User, bool, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return user, true, nil
}

func (s *userService) Add(ctx context.Context, user domain.User) (domain.User, error) {
	return s.users.Create(ctx, user)
}

func (s *userService) Update(ctx context.Context, user domain.User) (domain.User, error) {
	if _, err := s.users.Update(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *userService) Delete(ctx context.Context, id int64) (bool, error) {
	return s.users.DeleteByID(ctx, id)
}
