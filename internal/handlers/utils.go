package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/apperror"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/types"
	"go.uber.org/zap"
)

type contextKey string

const contextUserKey contextKey = "user"

// APIResponse is the success envelope.
type APIResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

func withUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

func userFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	if !ok || user.ID < 1 {
		return types.User{}, false
	}
	return user, true
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, APIResponse{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Message:    message,
		Errors:     []string{},
	})
}

// writeAppError converts err into the error envelope. Causes are logged and
// never serialized.
func writeAppError(w http.ResponseWriter, log *zap.Logger, r *http.Request, err error) {
	appErr := apperror.From(err)
	if appErr.Code >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("message", appErr.Message),
			zap.Error(appErr.Internal),
		)
	} else if appErr.Internal != nil {
		log.Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.Int("status", appErr.Code),
			zap.Error(appErr.Internal),
		)
	}
	writeError(w, appErr.Code, appErr.Message)
}
