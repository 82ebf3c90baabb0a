package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/session"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/store"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/types"
	"go.uber.org/zap"
)

// AccessVerifier validates access tokens and returns the user id they carry.
type AccessVerifier interface {
	VerifyAccessToken(token string) (int, error)
}

// UserLookup loads the sanitized user for an authenticated request.
type UserLookup interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// RequireAuth enforces a valid access token and injects the user into context.
func RequireAuth(verifier AccessVerifier, users UserLookup, transport session.Transport, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := transport.AccessToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized request")
				return
			}

			userID, err := verifier.VerifyAccessToken(token)
			if err != nil {
				log.Debug("access token rejected", zap.Error(err))
				writeError(w, http.StatusUnauthorized, "invalid access token")
				return
			}

			user, err := users.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "invalid access token")
					return
				}
				log.Error("failed to load user", zap.Int("userId", userID), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to load user")
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}
