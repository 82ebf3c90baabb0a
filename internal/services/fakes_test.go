package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/config"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/events"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/media"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/store"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/tokens"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// memRepo is an in-memory UserRepository whose unique constraints mirror the
// database indexes.
type memRepo struct {
	mu      sync.Mutex
	users   map[int]types.User
	nextID  int
	creates int

	setRefreshErr error
	getByIDErr    error
}

func newMemRepo() *memRepo {
	return &memRepo{users: map[int]types.User{}, nextID: 1}
}

func (r *memRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getByIDErr != nil {
		return types.User{}, r.getByIDErr
	}
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memRepo) FindByUsernameOrEmail(ctx context.Context, username, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := 1; id < r.nextID; id++ {
		user, ok := r.users[id]
		if !ok {
			continue
		}
		if (username != "" && user.Username == username) || (email != "" && user.Email == email) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = r.nextID
	r.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	user.RefreshToken = ""
	r.users[user.ID] = user
	r.creates++
	return user, nil
}

func (r *memRepo) UpdateAccount(ctx context.Context, id int, fullName, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	for otherID, existing := range r.users {
		if otherID != id && existing.Email == email {
			return types.User{}, store.ErrConflict
		}
	}
	user.FullName = fullName
	user.Email = email
	user.UpdatedAt = time.Now()
	r.users[id] = user
	return user, nil
}

func (r *memRepo) UpdateImage(ctx context.Context, id int, column store.ImageColumn, url string) (string, types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return "", types.User{}, store.ErrNotFound
	}
	var previous string
	switch column {
	case store.AvatarColumn:
		previous, user.Avatar = user.Avatar, url
	case store.CoverImageColumn:
		previous, user.CoverImage = user.CoverImage, url
	}
	user.UpdatedAt = time.Now()
	r.users[id] = user
	return previous, user, nil
}

func (r *memRepo) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	r.users[id] = user
	return nil
}

func (r *memRepo) SetRefreshToken(ctx context.Context, id int, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setRefreshErr != nil {
		return r.setRefreshErr
	}
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.RefreshToken = token
	r.users[id] = user
	return nil
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *memRepo) stored(id int) types.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

// fakeUploader mimics media.Uploader: it always removes the local file.
type fakeUploader struct {
	mu       sync.Mutex
	fail     map[string]bool
	uploaded []string
	removed  []string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{fail: map[string]bool{}}
}

func (f *fakeUploader) Upload(ctx context.Context, localPath string) *media.Asset {
	if localPath == "" {
		return nil
	}
	_ = os.Remove(localPath)
	f.mu.Lock()
	defer f.mu.Unlock()
	name := filepath.Base(localPath)
	if f.fail[name] {
		return nil
	}
	f.uploaded = append(f.uploaded, name)
	return &media.Asset{Key: name, URL: "https://cdn.test/" + name}
}

func (f *fakeUploader) Remove(ctx context.Context, rawURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, rawURL)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evt events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, evt := range p.events {
		out = append(out, evt.Type)
	}
	return out
}

type testEnv struct {
	svc       *AuthService
	repo      *memRepo
	uploader  *fakeUploader
	tokens    *tokens.Service
	publisher *recordingPublisher
	dir       string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := newMemRepo()
	uploader := newFakeUploader()
	issuer := tokens.NewService(config.AuthConfig{
		AccessTokenSecret:  "access-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenSecret: "refresh-secret",
		RefreshTokenTTL:    time.Hour,
	})
	publisher := &recordingPublisher{}
	svc := NewAuthService(repo, uploader, issuer, publisher, nil)
	svc.hashCost = bcrypt.MinCost
	return &testEnv{
		svc:       svc,
		repo:      repo,
		uploader:  uploader,
		tokens:    issuer,
		publisher: publisher,
		dir:       t.TempDir(),
	}
}

// tempFile creates a file standing in for a multipart upload.
func (e *testEnv) tempFile(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(p, []byte("image"), 0o600))
	return p
}

func (e *testEnv) register(t *testing.T, username, password string) types.User {
	t.Helper()
	user, err := e.svc.Register(context.Background(), RegisterInput{
		FullName:   "User " + username,
		Email:      username + "@example.com",
		Username:   username,
		Password:   password,
		AvatarPath: e.tempFile(t, username+"-avatar.png"),
	})
	require.NoError(t, err)
	return user
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
