package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/types"
)

// MemoryUserRepository keeps users in process memory. It enforces the same
// unique constraints as the users table and is meant for local runs and tests.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[int]types.User
	nextID int
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[int]types.User), nextID: 1}
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	// Iterate by id so the lowest id wins, as in the SQL query.
	for id := 1; id < r.nextID; id++ {
		user, ok := r.users[id]
		if !ok {
			continue
		}
		if (username != "" && user.Username == username) || (email != "" && user.Email == email) {
			return user, nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return types.User{}, ErrConflict
		}
	}

	now := time.Now()
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	user.RefreshToken = ""
	r.nextID++
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryUserRepository) UpdateAccount(ctx context.Context, id int, fullName, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	for otherID, existing := range r.users {
		if otherID != id && existing.Email == email {
			return types.User{}, ErrConflict
		}
	}

	user.FullName = fullName
	user.Email = email
	user.UpdatedAt = time.Now()
	r.users[id] = user
	return user, nil
}

func (r *MemoryUserRepository) UpdateImage(ctx context.Context, id int, column ImageColumn, url string) (string, types.User, error) {
	if !column.valid() {
		return "", types.User{}, fmt.Errorf("unknown image column %q", column)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return "", types.User{}, ErrNotFound
	}

	var previous string
	if column == AvatarColumn {
		previous, user.Avatar = user.Avatar, url
	} else {
		previous, user.CoverImage = user.CoverImage, url
	}
	user.UpdatedAt = time.Now()
	r.users[id] = user
	return previous, user, nil
}

func (r *MemoryUserRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	return r.update(id, func(u *types.User) { u.PasswordHash = passwordHash })
}

func (r *MemoryUserRepository) SetRefreshToken(ctx context.Context, id int, token string) error {
	return r.update(id, func(u *types.User) { u.RefreshToken = token })
}

func (r *MemoryUserRepository) update(id int, fn func(*types.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	fn(&user)
	user.UpdatedAt = time.Now()
	r.users[id] = user
	return nil
}
