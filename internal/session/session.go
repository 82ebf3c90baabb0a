// Package session carries the access and refresh tokens between the server
// and the client.
package session

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/config"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"

	RefreshTokenHeader = "X-Refresh-Token"
)

// ErrNoToken is returned when the request carries no token of the asked kind.
var ErrNoToken = errors.New("no token")

// Transport sets, clears and reads the two bearer tokens.
type Transport interface {
	SetTokens(w http.ResponseWriter, accessToken, refreshToken string)
	Clear(w http.ResponseWriter)
	AccessToken(r *http.Request) (string, error)
	RefreshToken(r *http.Request) (string, error)
}

// CookieTransport stores the tokens in two HttpOnly cookies. Reads fall back
// to the Authorization and X-Refresh-Token headers for non-browser clients.
type CookieTransport struct {
	secure bool
	domain string
}

func NewCookieTransport(cfg config.CookieConfig) *CookieTransport {
	return &CookieTransport{secure: cfg.Secure, domain: cfg.Domain}
}

func (c *CookieTransport) SetTokens(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, c.cookie(AccessTokenCookie, accessToken))
	http.SetCookie(w, c.cookie(RefreshTokenCookie, refreshToken))
}

func (c *CookieTransport) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		cookie := c.cookie(name, "")
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
	}
}

func (c *CookieTransport) AccessToken(r *http.Request) (string, error) {
	if token := cookieValue(r, AccessTokenCookie); token != "" {
		return token, nil
	}
	return bearerToken(r)
}

func (c *CookieTransport) RefreshToken(r *http.Request) (string, error) {
	if token := cookieValue(r, RefreshTokenCookie); token != "" {
		return token, nil
	}
	return headerToken(r, RefreshTokenHeader)
}

func (c *CookieTransport) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.domain,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// HeaderTransport returns tokens in response headers and reads them from
// request headers only.
type HeaderTransport struct{}

const (
	AccessTokenResponseHeader  = "X-Access-Token"
	RefreshTokenResponseHeader = "X-Refresh-Token"
)

func (HeaderTransport) SetTokens(w http.ResponseWriter, accessToken, refreshToken string) {
	w.Header().Set(AccessTokenResponseHeader, accessToken)
	w.Header().Set(RefreshTokenResponseHeader, refreshToken)
}

func (HeaderTransport) Clear(w http.ResponseWriter) {
	w.Header().Del(AccessTokenResponseHeader)
	w.Header().Del(RefreshTokenResponseHeader)
}

func (HeaderTransport) AccessToken(r *http.Request) (string, error) {
	return bearerToken(r)
}

func (HeaderTransport) RefreshToken(r *http.Request) (string, error) {
	return headerToken(r, RefreshTokenHeader)
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func headerToken(r *http.Request, name string) (string, error) {
	token := strings.TrimSpace(r.Header.Get(name))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", ErrNoToken
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
