package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/apperror"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/events"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/store"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func requireStatus(t *testing.T, err error, code int) *apperror.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
	return appErr
}

func TestRegister_Success(t *testing.T) {
	env := newTestEnv(t)
	avatar := env.tempFile(t, "avatar.png")
	cover := env.tempFile(t, "cover.png")

	user, err := env.svc.Register(context.Background(), RegisterInput{
		FullName:       "  Alice Liddell ",
		Email:          "Alice@Example.com",
		Username:       "  AliceL ",
		Password:       "s3cret",
		AvatarPath:     avatar,
		CoverImagePath: cover,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, user.ID)
	assert.Equal(t, "alicel", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "Alice Liddell", user.FullName)
	assert.Equal(t, "https://cdn.test/avatar.png", user.Avatar)
	assert.Equal(t, "https://cdn.test/cover.png", user.CoverImage)
	assert.Empty(t, user.PasswordHash)
	assert.Empty(t, user.RefreshToken)

	stored := env.repo.stored(user.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret")))
	assert.False(t, fileExists(avatar))
	assert.False(t, fileExists(cover))
	assert.Equal(t, []events.Type{events.UserRegistered}, env.publisher.types())
}

func TestRegister_CoverImageOptional(t *testing.T) {
	env := newTestEnv(t)

	user := env.register(t, "bob", "pw")
	assert.Empty(t, user.CoverImage)
	assert.Equal(t, []string{"bob-avatar.png"}, env.uploader.uploaded)
}

func TestRegister_BlankFields(t *testing.T) {
	base := RegisterInput{FullName: "Full", Email: "e@example.com", Username: "user", Password: "pw"}
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"blank full name", func(in *RegisterInput) { in.FullName = "" }},
		{"whitespace full name", func(in *RegisterInput) { in.FullName = "   " }},
		{"blank email", func(in *RegisterInput) { in.Email = "" }},
		{"whitespace username", func(in *RegisterInput) { in.Username = "\t" }},
		{"whitespace password", func(in *RegisterInput) { in.Password = "  " }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			in := base
			in.AvatarPath = env.tempFile(t, "avatar.png")
			in.CoverImagePath = env.tempFile(t, "cover.png")
			tc.mutate(&in)

			_, err := env.svc.Register(context.Background(), in)
			requireStatus(t, err, http.StatusBadRequest)

			assert.Zero(t, env.repo.count())
			assert.Empty(t, env.uploader.uploaded)
			assert.False(t, fileExists(in.AvatarPath))
			assert.False(t, fileExists(in.CoverImagePath))
		})
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "carol", "pw")
	avatar := env.tempFile(t, "second.png")

	_, err := env.svc.Register(context.Background(), RegisterInput{
		FullName:   "Other",
		Email:      "other@example.com",
		Username:   "CAROL",
		Password:   "pw",
		AvatarPath: avatar,
	})
	requireStatus(t, err, http.StatusConflict)

	assert.Equal(t, 1, env.repo.count())
	assert.False(t, fileExists(avatar))
	assert.Equal(t, []string{"carol-avatar.png"}, env.uploader.uploaded)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "dave", "pw")

	_, err := env.svc.Register(context.Background(), RegisterInput{
		FullName:   "Other",
		Email:      "DAVE@example.com",
		Username:   "someone",
		Password:   "pw",
		AvatarPath: env.tempFile(t, "x.png"),
	})
	requireStatus(t, err, http.StatusConflict)
}

func TestRegister_ConcurrentSameUsername(t *testing.T) {
	env := newTestEnv(t)
	const attempts = 8

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		avatar := env.tempFile(t, fmt.Sprintf("avatar-%d.png", i))
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Register(context.Background(), RegisterInput{
				FullName:   "Racer",
				Email:      fmt.Sprintf("racer%d@example.com", i),
				Username:   "racer",
				Password:   "pw",
				AvatarPath: avatar,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		requireStatus(t, err, http.StatusConflict)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, env.repo.count())
}

func TestRegister_MissingAvatar(t *testing.T) {
	env := newTestEnv(t)
	cover := env.tempFile(t, "cover.png")

	_, err := env.svc.Register(context.Background(), RegisterInput{
		FullName:       "Eve",
		Email:          "eve@example.com",
		Username:       "eve",
		Password:       "pw",
		CoverImagePath: cover,
	})
	appErr := requireStatus(t, err, http.StatusBadRequest)
	assert.Contains(t, appErr.Message, "avatar")
	assert.Zero(t, env.repo.count())
	assert.False(t, fileExists(cover))
}

func TestRegister_AvatarUploadFails(t *testing.T) {
	env := newTestEnv(t)
	env.uploader.fail["avatar.png"] = true
	avatar := env.tempFile(t, "avatar.png")
	cover := env.tempFile(t, "cover.png")

	_, err := env.svc.Register(context.Background(), RegisterInput{
		FullName:       "Frank",
		Email:          "frank@example.com",
		Username:       "frank",
		Password:       "pw",
		AvatarPath:     avatar,
		CoverImagePath: cover,
	})
	requireStatus(t, err, http.StatusInternalServerError)

	assert.Zero(t, env.repo.count())
	assert.False(t, fileExists(avatar))
	assert.False(t, fileExists(cover))
	assert.Empty(t, env.uploader.uploaded)
}

func TestRegister_CoverUploadFailureIsTolerated(t *testing.T) {
	env := newTestEnv(t)
	env.uploader.fail["cover.png"] = true

	user, err := env.svc.Register(context.Background(), RegisterInput{
		FullName:       "Grace",
		Email:          "grace@example.com",
		Username:       "grace",
		Password:       "pw",
		AvatarPath:     env.tempFile(t, "avatar.png"),
		CoverImagePath: env.tempFile(t, "cover.png"),
	})
	require.NoError(t, err)
	assert.Empty(t, user.CoverImage)
}

func TestRegister_PostCreateFetchFails(t *testing.T) {
	env := newTestEnv(t)
	env.repo.getByIDErr = errors.New("replica lag")

	_, err := env.svc.Register(context.Background(), RegisterInput{
		FullName:   "Heidi",
		Email:      "heidi@example.com",
		Username:   "heidi",
		Password:   "pw",
		AvatarPath: env.tempFile(t, "avatar.png"),
	})
	appErr := requireStatus(t, err, http.StatusInternalServerError)
	assert.ErrorIs(t, appErr, env.repo.getByIDErr)
}

func TestRegister_PasswordTooLong(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Register(context.Background(), RegisterInput{
		FullName:   "Ivan",
		Email:      "ivan@example.com",
		Username:   "ivan",
		Password:   strings.Repeat("x", 100),
		AvatarPath: env.tempFile(t, "avatar.png"),
	})
	requireStatus(t, err, http.StatusBadRequest)
	assert.Empty(t, env.uploader.uploaded)
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	registered := env.register(t, "judy", "pw")

	res, err := env.svc.Login(context.Background(), LoginInput{Username: "Judy", Password: "pw"})
	require.NoError(t, err)

	assert.Equal(t, registered.ID, res.User.ID)
	assert.Empty(t, res.User.PasswordHash)
	assert.Empty(t, res.User.RefreshToken)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, res.RefreshToken, env.repo.stored(registered.ID).RefreshToken)

	id, err := env.tokens.VerifyAccessToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, id)
}

func TestLogin_ByEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "kim", "pw")

	res, err := env.svc.Login(context.Background(), LoginInput{Email: "KIM@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "kim", res.User.Username)
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "leo", "pw")

	_, err := env.svc.Login(context.Background(), LoginInput{Password: "pw"})
	requireStatus(t, err, http.StatusBadRequest)

	_, err = env.svc.Login(context.Background(), LoginInput{Username: "nobody", Password: "pw"})
	requireStatus(t, err, http.StatusNotFound)

	_, err = env.svc.Login(context.Background(), LoginInput{Username: "leo", Password: "wrong"})
	requireStatus(t, err, http.StatusUnauthorized)

	assert.Empty(t, env.repo.stored(1).RefreshToken)
}

func TestGenerateAccessAndRefreshTokens_ChainsCause(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "mallory", "pw")
	cause := errors.New("write failed")
	env.repo.setRefreshErr = cause

	_, err := env.svc.GenerateAccessAndRefreshTokens(context.Background(), user.ID)
	appErr := requireStatus(t, err, http.StatusInternalServerError)
	assert.Equal(t, msgTokenGeneration, appErr.Message)
	assert.ErrorIs(t, err, cause)
}

func TestGenerateAccessAndRefreshTokens_UnknownUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.GenerateAccessAndRefreshTokens(context.Background(), 42)
	requireStatus(t, err, http.StatusInternalServerError)
}

func TestRefresh_RotatesAndRejectsReuse(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "nina", "pw")
	login, err := env.svc.Login(context.Background(), LoginInput{Username: "nina", Password: "pw"})
	require.NoError(t, err)

	pair, err := env.svc.RefreshAccessToken(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.AccessToken, pair.AccessToken)
	assert.NotEqual(t, login.RefreshToken, pair.RefreshToken)
	assert.Equal(t, pair.RefreshToken, env.repo.stored(user.ID).RefreshToken)

	_, err = env.svc.RefreshAccessToken(context.Background(), login.RefreshToken)
	appErr := requireStatus(t, err, http.StatusUnauthorized)
	assert.Equal(t, "refresh token is expired or used", appErr.Message)
	assert.Equal(t, pair.RefreshToken, env.repo.stored(user.ID).RefreshToken)

	_, err = env.svc.RefreshAccessToken(context.Background(), pair.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_Failures(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.RefreshAccessToken(context.Background(), "  ")
	requireStatus(t, err, http.StatusUnauthorized)

	_, err = env.svc.RefreshAccessToken(context.Background(), "garbage")
	appErr := requireStatus(t, err, http.StatusUnauthorized)
	assert.NotEmpty(t, appErr.Message)
	assert.Error(t, appErr.Internal)

	orphan, err := env.tokens.GenerateRefreshToken(99)
	require.NoError(t, err)
	_, err = env.svc.RefreshAccessToken(context.Background(), orphan)
	appErr = requireStatus(t, err, http.StatusUnauthorized)
	assert.Equal(t, "invalid refresh token", appErr.Message)
}

func TestRefresh_WithoutSessionRejected(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "oscar", "pw")

	token, err := env.tokens.GenerateRefreshToken(user.ID)
	require.NoError(t, err)

	_, err = env.svc.RefreshAccessToken(context.Background(), token)
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestLogout_InvalidatesRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "peggy", "pw")
	login, err := env.svc.Login(context.Background(), LoginInput{Username: "peggy", Password: "pw"})
	require.NoError(t, err)

	require.NoError(t, env.svc.Logout(context.Background(), user.ID))
	assert.Empty(t, env.repo.stored(user.ID).RefreshToken)

	_, err = env.svc.RefreshAccessToken(context.Background(), login.RefreshToken)
	requireStatus(t, err, http.StatusUnauthorized)

	require.NoError(t, env.svc.Logout(context.Background(), user.ID))
	assert.Contains(t, env.publisher.types(), events.UserLoggedOut)
}

func TestLogout_UnknownUser(t *testing.T) {
	env := newTestEnv(t)

	err := env.svc.Logout(context.Background(), 77)
	requireStatus(t, err, http.StatusNotFound)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "quinn", "old-pw")
	before := env.repo.stored(user.ID).PasswordHash

	err := env.svc.ChangeCurrentPassword(context.Background(), user.ID, "wrong", "new-pw")
	requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, before, env.repo.stored(user.ID).PasswordHash)

	require.NoError(t, env.svc.ChangeCurrentPassword(context.Background(), user.ID, "old-pw", "new-pw"))

	_, err = env.svc.Login(context.Background(), LoginInput{Username: "quinn", Password: "new-pw"})
	require.NoError(t, err)

	_, err = env.svc.Login(context.Background(), LoginInput{Username: "quinn", Password: "old-pw"})
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestChangePassword_BlankNew(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "rita", "pw")

	err := env.svc.ChangeCurrentPassword(context.Background(), user.ID, "pw", " ")
	requireStatus(t, err, http.StatusBadRequest)
}

func TestUpdateAccountDetails(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "sam", "pw")
	trent := env.register(t, "trent", "pw")

	updated, err := env.svc.UpdateAccountDetails(context.Background(), trent.ID, " Trent T ", "Trent.New@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Trent T", updated.FullName)
	assert.Equal(t, "trent.new@example.com", updated.Email)
	assert.Empty(t, updated.PasswordHash)

	_, err = env.svc.UpdateAccountDetails(context.Background(), trent.ID, "Trent", "sam@example.com")
	requireStatus(t, err, http.StatusConflict)

	_, err = env.svc.UpdateAccountDetails(context.Background(), trent.ID, "", "x@example.com")
	requireStatus(t, err, http.StatusBadRequest)
}

func TestUpdateAvatar_ReplacesAndDiscardsPrevious(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "uma", "pw")
	newAvatar := env.tempFile(t, "uma-new.png")

	updated, err := env.svc.UpdateAvatar(context.Background(), user.ID, newAvatar)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/uma-new.png", updated.Avatar)
	assert.Equal(t, []string{user.Avatar}, env.uploader.removed)
	assert.False(t, fileExists(newAvatar))
}

func TestUpdateAvatar_Failures(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "vera", "pw")

	_, err := env.svc.UpdateAvatar(context.Background(), user.ID, "")
	requireStatus(t, err, http.StatusBadRequest)

	env.uploader.fail["broken.png"] = true
	_, err = env.svc.UpdateAvatar(context.Background(), user.ID, env.tempFile(t, "broken.png"))
	requireStatus(t, err, http.StatusInternalServerError)

	_, err = env.svc.UpdateAvatar(context.Background(), 404, env.tempFile(t, "ghost.png"))
	requireStatus(t, err, http.StatusNotFound)
	assert.Equal(t, []string{"https://cdn.test/ghost.png"}, env.uploader.removed)
}

// interleavingRepo runs each hook once, just before the matching write, to
// stand in for a concurrent request that commits first.
type interleavingRepo struct {
	*memRepo
	beforeAccount func()
	beforeImage   func()
}

func (r *interleavingRepo) UpdateAccount(ctx context.Context, id int, fullName, email string) (types.User, error) {
	if fn := r.beforeAccount; fn != nil {
		r.beforeAccount = nil
		fn()
	}
	return r.memRepo.UpdateAccount(ctx, id, fullName, email)
}

func (r *interleavingRepo) UpdateImage(ctx context.Context, id int, column store.ImageColumn, url string) (string, types.User, error) {
	if fn := r.beforeImage; fn != nil {
		r.beforeImage = nil
		fn()
	}
	return r.memRepo.UpdateImage(ctx, id, column, url)
}

func TestUpdateAccountDetails_KeepsConcurrentAvatar(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "yuri", "pw")
	repo := &interleavingRepo{memRepo: env.repo}
	env.svc.repo = repo

	repo.beforeAccount = func() {
		_, err := env.svc.UpdateAvatar(context.Background(), user.ID, env.tempFile(t, "yuri-new.png"))
		require.NoError(t, err)
	}

	updated, err := env.svc.UpdateAccountDetails(context.Background(), user.ID, "Yuri Y", "yuri@example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/yuri-new.png", updated.Avatar)
	assert.Equal(t, "https://cdn.test/yuri-new.png", env.repo.stored(user.ID).Avatar)
	assert.Equal(t, []string{user.Avatar}, env.uploader.removed)
}

func TestUpdateAvatar_ConcurrentReplacementsNeverDeleteStoredObject(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "zane", "pw")
	repo := &interleavingRepo{memRepo: env.repo}
	env.svc.repo = repo

	repo.beforeImage = func() {
		_, err := env.svc.UpdateAvatar(context.Background(), user.ID, env.tempFile(t, "zane-second.png"))
		require.NoError(t, err)
	}

	updated, err := env.svc.UpdateAvatar(context.Background(), user.ID, env.tempFile(t, "zane-first.png"))
	require.NoError(t, err)

	stored := env.repo.stored(user.ID).Avatar
	assert.Equal(t, "https://cdn.test/zane-first.png", stored)
	assert.Equal(t, stored, updated.Avatar)
	assert.ElementsMatch(t, []string{user.Avatar, "https://cdn.test/zane-second.png"}, env.uploader.removed)
	assert.NotContains(t, env.uploader.removed, stored)
}

func TestUpdateCoverImage(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "walt", "pw")

	updated, err := env.svc.UpdateCoverImage(context.Background(), user.ID, env.tempFile(t, "walt-cover.png"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/walt-cover.png", updated.CoverImage)
	assert.Equal(t, user.Avatar, updated.Avatar)
	assert.Empty(t, env.uploader.removed)
}

func TestUserService_GetByIDSanitizes(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "xena", "pw")
	_, err := env.svc.Login(context.Background(), LoginInput{Username: "xena", Password: "pw"})
	require.NoError(t, err)

	got, err := NewUserService(env.repo).GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "xena", got.Username)
	assert.Empty(t, got.PasswordHash)
	assert.Empty(t, got.RefreshToken)
}
