package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/media"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/services"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/session"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	maxMultipartMemory = 8 << 20
	maxUploadBytes     = 10 << 20
	maxRequestBytes    = 2*maxUploadBytes + (1 << 20)
	maxJSONBytes       = 1 << 20

	formFieldFullName   = "fullName"
	formFieldEmail      = "email"
	formFieldUsername   = "username"
	formFieldPassword   = "password"
	formFieldAvatar     = "avatar"
	formFieldCoverImage = "coverImage"
)

// Authenticator is the account API the handlers depend on.
type Authenticator interface {
	Register(ctx context.Context, in services.RegisterInput) (types.User, error)
	Login(ctx context.Context, in services.LoginInput) (services.LoginResult, error)
	Logout(ctx context.Context, userID int) error
	RefreshAccessToken(ctx context.Context, incoming string) (services.TokenPair, error)
	ChangeCurrentPassword(ctx context.Context, userID int, oldPassword, newPassword string) error
	UpdateAccountDetails(ctx context.Context, userID int, fullName, email string) (types.User, error)
	UpdateAvatar(ctx context.Context, userID int, localPath string) (types.User, error)
	UpdateCoverImage(ctx context.Context, userID int, localPath string) (types.User, error)
}

// AuthHandler provides the account and session endpoints.
type AuthHandler struct {
	auth      Authenticator
	transport session.Transport
	uploadDir string
	maxUpload int64
	log       *zap.Logger
}

// NewAuthHandler constructs an AuthHandler. Uploaded files are staged in
// uploadDir before being handed to the service.
func NewAuthHandler(auth Authenticator, transport session.Transport, uploadDir string, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	return &AuthHandler{
		auth:      auth,
		transport: transport,
		uploadDir: uploadDir,
		maxUpload: maxUploadBytes,
		log:       log,
	}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, h *AuthHandler, requireAuth func(http.Handler) http.Handler) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh-token", h.RefreshAccessToken)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/logout", h.Logout)
		r.Post("/change-password", h.ChangeCurrentPassword)
		r.Get("/current-user", h.CurrentUser)
		r.Patch("/update-account", h.UpdateAccountDetails)
		r.Patch("/avatar", h.UpdateAvatar)
		r.Patch("/cover-image", h.UpdateCoverImage)
	})
}

// Register accepts a multipart form with the profile fields, a required
// avatar and an optional cover image.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := h.parseForm(w, r); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	defer h.cleanupForm(r)

	avatarPath, err := h.saveFormFile(r, formFieldAvatar)
	if err != nil {
		h.writeUploadError(w, r, formFieldAvatar, err)
		return
	}
	coverPath, err := h.saveFormFile(r, formFieldCoverImage)
	if err != nil {
		h.removeFile(avatarPath)
		h.writeUploadError(w, r, formFieldCoverImage, err)
		return
	}

	user, err := h.auth.Register(r.Context(), services.RegisterInput{
		FullName:       r.FormValue(formFieldFullName),
		Email:          r.FormValue(formFieldEmail),
		Username:       r.FormValue(formFieldUsername),
		Password:       r.FormValue(formFieldPassword),
		AvatarPath:     avatarPath,
		CoverImagePath: coverPath,
	})
	if err != nil {
		writeAppError(w, h.log, r, err)
		return
	}

	writeData(w, http.StatusCreated, user, "User registered successfully")
}

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials and starts a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	result, err := h.auth.Login(r.Context(), services.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeAppError(w, h.log, r, err)
		return
	}

	h.transport.SetTokens(w, result.AccessToken, result.RefreshToken)
	writeData(w, http.StatusOK, result, "User logged in successfully")
}

// Logout ends the current session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	if err := h.auth.Logout(r.Context(), user.ID); err != nil {
		writeAppError(w, h.log, r, err)
		return
	}

	h.transport.Clear(w)
	writeData(w, http.StatusOK, struct{}{}, "User logged out")
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshAccessToken rotates the token pair. The refresh token is read from
// the session transport first, then from the JSON body.
func (h *AuthHandler) RefreshAccessToken(w http.ResponseWriter, r *http.Request) {
	incoming, err := h.transport.RefreshToken(r)
	if err != nil {
		var req RefreshRequest
		if decodeErr := decodeJSON(w, r, &req); decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}
		incoming = req.RefreshToken
	}

	pair, err := h.auth.RefreshAccessToken(r.Context(), incoming)
	if err != nil {
		writeAppError(w, h.log, r, err)
		return
	}

	h.transport.SetTokens(w, pair.AccessToken, pair.RefreshToken)
	writeData(w, http.StatusOK, pair, "Access token refreshed")
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *AuthHandler) ChangeCurrentPassword(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.auth.ChangeCurrentPassword(r.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		writeAppError(w, h.log, r, err)
		return
	}

	writeData(w, http.StatusOK, struct{}{}, "Password changed successfully")
}

// CurrentUser returns the user attached by RequireAuth.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}
	writeData(w, http.StatusOK, user, "Current user fetched successfully")
}

type UpdateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (h *AuthHandler) UpdateAccountDetails(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	var req UpdateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.auth.UpdateAccountDetails(r.Context(), user.ID, req.FullName, req.Email)
	if err != nil {
		writeAppError(w, h.log, r, err)
		return
	}

	writeData(w, http.StatusOK, updated, "Account details updated successfully")
}

func (h *AuthHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, formFieldAvatar, h.auth.UpdateAvatar, "Avatar updated successfully")
}

func (h *AuthHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, formFieldCoverImage, h.auth.UpdateCoverImage, "Cover image updated successfully")
}

func (h *AuthHandler) replaceImage(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	update func(ctx context.Context, userID int, localPath string) (types.User, error),
	message string,
) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	if err := h.parseForm(w, r); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	defer h.cleanupForm(r)

	localPath, err := h.saveFormFile(r, field)
	if err != nil {
		h.writeUploadError(w, r, field, err)
		return
	}

	updated, err := update(r.Context(), user.ID, localPath)
	if err != nil {
		writeAppError(w, h.log, r, err)
		return
	}

	writeData(w, http.StatusOK, updated, message)
}

// parseForm accepts multipart bodies and falls back to url-encoded forms so a
// request without files still reaches field validation.
func (h *AuthHandler) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	err := r.ParseMultipartForm(maxMultipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

func (h *AuthHandler) cleanupForm(r *http.Request) {
	if r.MultipartForm == nil {
		return
	}
	if err := r.MultipartForm.RemoveAll(); err != nil {
		h.log.Warn("failed to remove multipart files", zap.Error(err))
	}
}

// saveFormFile stages an uploaded file and returns its path, or "" when the
// field is absent.
func (h *AuthHandler) saveFormFile(r *http.Request, field string) (string, error) {
	if r.MultipartForm == nil {
		return "", nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return "", nil
	}
	return media.SaveTemp(h.uploadDir, files[0], h.maxUpload)
}

func (h *AuthHandler) writeUploadError(w http.ResponseWriter, r *http.Request, field string, err error) {
	if errors.Is(err, media.ErrFileTooLarge) {
		writeError(w, http.StatusBadRequest, field+" file is too large")
		return
	}
	h.log.Error("failed to stage upload", zap.String("field", field), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "failed to read "+field+" file")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func (h *AuthHandler) removeFile(p string) {
	if p == "" {
		return
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		h.log.Warn("failed to remove temporary upload", zap.String("path", p), zap.Error(err))
	}
}
