// Package tokens signs and verifies the access and refresh JWTs.
package tokens

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/config"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingSubject = errors.New("missing subject")
	ErrInvalidToken   = errors.New("invalid token")
)

// AccessClaims are carried by access tokens.
type AccessClaims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	jwt.RegisteredClaims
}

// Service issues and verifies tokens with independent secrets and lifetimes.
type Service struct {
	accessSecret  []byte
	accessTTL     time.Duration
	refreshSecret []byte
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewService(cfg config.AuthConfig) *Service {
	return &Service{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		refreshTTL:    cfg.RefreshTokenTTL,
		now:           time.Now,
	}
}

// GenerateAccessToken signs the user id together with the profile claims.
func (s *Service) GenerateAccessToken(user types.User) (string, error) {
	now := s.now()
	claims := AccessClaims{
		Username: user.Username,
		Email:    user.Email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
}

// GenerateRefreshToken signs the user id only. Every token carries a fresh
// jti so two tokens issued within the same second still differ.
func (s *Service) GenerateRefreshToken(userID int) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
}

// VerifyAccessToken checks signature and expiry and returns the user id.
func (s *Service) VerifyAccessToken(tokenString string) (int, error) {
	claims := AccessClaims{}
	if err := s.parse(tokenString, &claims, s.accessSecret); err != nil {
		return 0, err
	}
	return subjectID(claims.Subject)
}

// VerifyRefreshToken checks signature and expiry and returns the user id.
func (s *Service) VerifyRefreshToken(tokenString string) (int, error) {
	claims := jwt.RegisteredClaims{}
	if err := s.parse(tokenString, &claims, s.refreshSecret); err != nil {
		return 0, err
	}
	return subjectID(claims.Subject)
}

func (s *Service) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return err
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

func subjectID(subject string) (int, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return 0, ErrMissingSubject
	}
	id, err := strconv.Atoi(subject)
	if err != nil || id < 1 {
		return 0, ErrInvalidToken
	}
	return id, nil
}
