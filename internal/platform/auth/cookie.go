package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	// TokenCookie holds the vendor access token between requests.
	TokenCookie = "whoop_token"
	// StateCookie holds the nonce of a pending authorization request.
	StateCookie = "whoop_oauth_state"
)

// statePath scopes the nonce cookie to the OAuth endpoints.
const statePath = "/api/whoop"

// SetTokenCookie stores the access token. maxAge is rounded down to whole
// seconds; a non-positive value yields a session cookie.
func SetTokenCookie(c echo.Context, token string, maxAge time.Duration, secure bool) {
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetCookie(&http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearTokenCookie expires the token cookie in the browser.
func ClearTokenCookie(c echo.Context, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest returns the access token cookie value, if any.
func TokenFromRequest(c echo.Context) (string, bool) {
	ck, err := c.Cookie(TokenCookie)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

// SetStateCookie binds a pending authorization request to this browser.
// SameSite Lax still sends it on the top-level redirect back from the vendor.
func SetStateCookie(c echo.Context, nonce string, maxAge time.Duration, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     StateCookie,
		Value:    nonce,
		Path:     statePath,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearStateCookie expires the nonce cookie once a callback consumed it.
func ClearStateCookie(c echo.Context, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     StateCookie,
		Value:    "",
		Path:     statePath,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// StateNonce returns the pending nonce cookie value, or "".
func StateNonce(c echo.Context) string {
	ck, err := c.Cookie(StateCookie)
	if err != nil {
		return ""
	}
	return ck.Value
}
