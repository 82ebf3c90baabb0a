package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"os"
	"strings"

	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/apperror"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/events"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/media"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/store"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	msgTokenGeneration = "something went wrong while generating refresh and access token"
	msgRegistration    = "something went wrong while registering the user"
)

// MediaUploader moves local files to the media host.
type MediaUploader interface {
	Upload(ctx context.Context, localPath string) *media.Asset
	Remove(ctx context.Context, rawURL string) error
}

// TokenIssuer signs and verifies the session tokens.
type TokenIssuer interface {
	GenerateAccessToken(user types.User) (string, error)
	GenerateRefreshToken(userID int) (string, error)
	VerifyRefreshToken(token string) (int, error)
}

// EventPublisher receives account lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, evt events.Event)
}

// RegisterInput is the registration form. File paths point at temporary
// uploads that Register always removes.
type RegisterInput struct {
	FullName       string
	Email          string
	Username       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// LoginInput identifies the user by username or email.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// TokenPair is a freshly issued access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User         types.User `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
}

// AuthService implements registration, login and session management.
type AuthService struct {
	repo     UserRepository
	uploader MediaUploader
	tokens   TokenIssuer
	events   EventPublisher
	log      *zap.Logger
	hashCost int
}

func NewAuthService(repo UserRepository, uploader MediaUploader, tokens TokenIssuer, publisher EventPublisher, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		repo:     repo,
		uploader: uploader,
		tokens:   tokens,
		events:   publisher,
		log:      log,
		hashCost: bcrypt.DefaultCost,
	}
}

// Register creates a user after uploading the avatar and optional cover image.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	// Paths not yet handed to the uploader are removed here on return.
	pending := []string{in.AvatarPath, in.CoverImagePath}
	defer func() {
		for _, p := range pending {
			s.removeTemp(p)
		}
	}()

	fullName := strings.TrimSpace(in.FullName)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if fullName == "" || email == "" || username == "" || strings.TrimSpace(in.Password) == "" {
		return types.User{}, apperror.NewValidation("all fields are required")
	}

	if _, err := s.repo.FindByUsernameOrEmail(ctx, username, email); err == nil {
		return types.User{}, apperror.NewConflict("user with email or username already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, apperror.NewInternal(msgRegistration, err)
	}

	if strings.TrimSpace(in.AvatarPath) == "" {
		return types.User{}, apperror.NewValidation("avatar file is required")
	}

	passwordHash, err := s.hashPassword(in.Password)
	if err != nil {
		return types.User{}, err
	}

	pending = []string{in.CoverImagePath}
	avatar := s.uploader.Upload(ctx, in.AvatarPath)
	if avatar == nil {
		return types.User{}, apperror.NewInternal("avatar upload failed", nil)
	}

	pending = nil
	coverURL := ""
	if strings.TrimSpace(in.CoverImagePath) != "" {
		if cover := s.uploader.Upload(ctx, in.CoverImagePath); cover != nil {
			coverURL = cover.URL
		}
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		FullName:     fullName,
		Avatar:       avatar.URL,
		CoverImage:   coverURL,
		PasswordHash: passwordHash,
	})
	if err != nil {
		s.discardAsset(ctx, avatar.URL)
		s.discardAsset(ctx, coverURL)
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, apperror.NewConflict("user with email or username already exists")
		}
		return types.User{}, apperror.NewInternal(msgRegistration, err)
	}

	created, err := s.repo.GetByID(ctx, user.ID)
	if err != nil {
		return types.User{}, apperror.NewInternal(msgRegistration, err)
	}

	s.publish(ctx, events.UserRegistered, created)
	return created.Sanitized(), nil
}

// Login verifies credentials and starts a new session.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" && email == "" {
		return LoginResult{}, apperror.NewValidation("username or email is required")
	}

	user, err := s.repo.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, apperror.NewNotFound("user does not exist")
		}
		return LoginResult{}, apperror.NewInternal("failed to authenticate", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return LoginResult{}, apperror.NewUnauthorized("invalid user credentials")
	}

	pair, err := s.GenerateAccessAndRefreshTokens(ctx, user.ID)
	if err != nil {
		return LoginResult{}, err
	}

	s.publish(ctx, events.UserLoggedIn, user)
	return LoginResult{
		User:         user.Sanitized(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// GenerateAccessAndRefreshTokens issues a new token pair and stores the
// refresh token as the only one accepted for the user. Every failure is
// reported as the same 500; the cause is logged and chained.
func (s *AuthService) GenerateAccessAndRefreshTokens(ctx context.Context, userID int) (TokenPair, error) {
	fail := func(stage string, err error) (TokenPair, error) {
		s.log.Error("token generation failed",
			zap.Int("userId", userID),
			zap.String("stage", stage),
			zap.Error(err),
		)
		return TokenPair{}, apperror.NewInternal(msgTokenGeneration, err)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return fail("load user", err)
	}

	accessToken, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return fail("sign access token", err)
	}

	refreshToken, err := s.tokens.GenerateRefreshToken(user.ID)
	if err != nil {
		return fail("sign refresh token", err)
	}

	if err := s.repo.SetRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return fail("store refresh token", err)
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Logout clears the stored refresh token.
func (s *AuthService) Logout(ctx context.Context, userID int) error {
	if err := s.repo.SetRefreshToken(ctx, userID, ""); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NewNotFound("user does not exist")
		}
		return apperror.NewInternal("failed to log out", err)
	}

	s.publish(ctx, events.UserLoggedOut, types.User{ID: userID})
	return nil
}

// RefreshAccessToken exchanges the current refresh token for a new pair.
// A token that verifies but is no longer the stored one is rejected.
func (s *AuthService) RefreshAccessToken(ctx context.Context, incoming string) (TokenPair, error) {
	incoming = strings.TrimSpace(incoming)
	if incoming == "" {
		return TokenPair{}, apperror.NewUnauthorized("unauthorized request")
	}

	userID, err := s.tokens.VerifyRefreshToken(incoming)
	if err != nil {
		return TokenPair{}, apperror.NewUnauthorized(err.Error()).WithInternal(err)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TokenPair{}, apperror.NewUnauthorized("invalid refresh token")
		}
		return TokenPair{}, apperror.NewInternal("failed to refresh token", err)
	}

	if user.RefreshToken == "" || subtle.ConstantTimeCompare([]byte(incoming), []byte(user.RefreshToken)) != 1 {
		return TokenPair{}, apperror.NewUnauthorized("refresh token is expired or used")
	}

	pair, err := s.GenerateAccessAndRefreshTokens(ctx, user.ID)
	if err != nil {
		return TokenPair{}, err
	}

	s.publish(ctx, events.TokenRefreshed, user)
	return pair, nil
}

// ChangeCurrentPassword replaces the password after checking the old one.
func (s *AuthService) ChangeCurrentPassword(ctx context.Context, userID int, oldPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return apperror.NewValidation("new password is required")
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NewNotFound("user does not exist")
		}
		return apperror.NewInternal("failed to change password", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return apperror.NewValidation("invalid old password")
	}

	passwordHash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.repo.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return apperror.NewInternal("failed to change password", err)
	}

	s.publish(ctx, events.PasswordChanged, user)
	return nil
}

// UpdateAccountDetails changes the full name and email.
func (s *AuthService) UpdateAccountDetails(ctx context.Context, userID int, fullName, email string) (types.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullName == "" || email == "" {
		return types.User{}, apperror.NewValidation("all fields are required")
	}

	updated, err := s.repo.UpdateAccount(ctx, userID, fullName, email)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return types.User{}, apperror.NewNotFound("user does not exist")
		case errors.Is(err, store.ErrConflict):
			return types.User{}, apperror.NewConflict("email is already in use")
		}
		return types.User{}, apperror.NewInternal("failed to update account", err)
	}

	s.publish(ctx, events.AccountUpdated, updated)
	return updated.Sanitized(), nil
}

// UpdateAvatar uploads a new avatar and replaces the stored URL.
func (s *AuthService) UpdateAvatar(ctx context.Context, userID int, localPath string) (types.User, error) {
	return s.replaceImage(ctx, userID, localPath, "avatar", store.AvatarColumn)
}

// UpdateCoverImage uploads a new cover image and replaces the stored URL.
func (s *AuthService) UpdateCoverImage(ctx context.Context, userID int, localPath string) (types.User, error) {
	return s.replaceImage(ctx, userID, localPath, "cover image", store.CoverImageColumn)
}

// replaceImage deletes only the object the repository reports as replaced, so
// a concurrent write to the same column never loses its image.
func (s *AuthService) replaceImage(ctx context.Context, userID int, localPath, label string, column store.ImageColumn) (types.User, error) {
	if strings.TrimSpace(localPath) == "" {
		return types.User{}, apperror.NewValidation(label + " file is missing")
	}

	asset := s.uploader.Upload(ctx, localPath)
	if asset == nil {
		return types.User{}, apperror.NewInternal(label+" upload failed", nil)
	}

	previous, updated, err := s.repo.UpdateImage(ctx, userID, column, asset.URL)
	if err != nil {
		s.discardAsset(ctx, asset.URL)
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperror.NewNotFound("user does not exist")
		}
		return types.User{}, apperror.NewInternal("failed to update "+label, err)
	}

	s.discardAsset(ctx, previous)
	s.publish(ctx, events.AccountUpdated, updated)
	return updated.Sanitized(), nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperror.NewValidation("password is too long")
		}
		return "", apperror.NewInternal("failed to hash password", err)
	}
	return string(hashed), nil
}

func (s *AuthService) discardAsset(ctx context.Context, rawURL string) {
	if rawURL == "" {
		return
	}
	if err := s.uploader.Remove(ctx, rawURL); err != nil {
		s.log.Warn("failed to remove orphaned media", zap.String("url", rawURL), zap.Error(err))
	}
}

func (s *AuthService) removeTemp(localPath string) {
	if strings.TrimSpace(localPath) == "" {
		return
	}
	if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("failed to remove temporary upload", zap.String("path", localPath), zap.Error(err))
	}
}

func (s *AuthService) publish(ctx context.Context, typ events.Type, user types.User) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, events.Event{Type: typ, UserID: user.ID, Username: user.Username})
}
