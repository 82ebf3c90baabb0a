package services

import (
	"context"

	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/store"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateAccount(ctx context.Context, id int, fullName, email string) (types.User, error)
	// UpdateImage returns the URL it replaced, read in the same atomic step as the write.
	UpdateImage(ctx context.Context, id int, column store.ImageColumn, url string) (string, types.User, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	SetRefreshToken(ctx context.Context, id int, token string) error
}

// UserService encapsulates read-only user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// GetByID returns the user without credential material.
func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	return user.Sanitized(), nil
}
