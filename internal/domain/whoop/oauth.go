package whoop

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Scopes requested on the authorize redirect.
var Scopes = []string{
	"read:recovery",
	"read:sleep",
	"read:cycles",
	"read:workout",
	"read:profile",
	"read:body_measurement",
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
}

// OAuth drives the authorization-code flow against the vendor.
type OAuth struct {
	cfg  oauth2.Config
	http *http.Client
}

// NewOAuth builds the flow. httpClient is used for the token exchange; nil
// means http.DefaultClient.
func NewOAuth(c OAuthConfig, httpClient *http.Client) *OAuth {
	return &OAuth{
		cfg: oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   c.AuthURL,
				TokenURL:  c.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		http: httpClient,
	}
}

// Missing lists the environment variables that must be set before the flow
// can start.
func (o *OAuth) Missing() []string {
	var missing []string
	if o.cfg.ClientID == "" {
		missing = append(missing, "WHOOP_CLIENT_ID")
	}
	if o.cfg.RedirectURL == "" {
		missing = append(missing, "WHOOP_REDIRECT_URI")
	}
	return missing
}

func (o *OAuth) RedirectURI() string {
	return o.cfg.RedirectURL
}

// AuthCodeURL returns the vendor authorize URL carrying client_id,
// redirect_uri, scope, response_type=code and state.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.cfg.AuthCodeURL(state)
}

// ExchangeError carries the vendor's response to a failed token exchange.
type ExchangeError struct {
	Status int
	Body   string
	Err    error
}

func (e *ExchangeError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("token exchange failed: status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("token exchange failed: %v", e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// Exchange trades an authorization code for an access token in a single
// form-encoded POST with client credentials in the body.
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if o.http != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.http)
	}
	tok, err := o.cfg.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			return nil, &ExchangeError{Status: status, Body: string(re.Body), Err: err}
		}
		return nil, &ExchangeError{Err: err}
	}
	return tok, nil
}

// CookieMaxAge converts a token expiry into a cookie lifetime. A token without
// an expiry yields 0, a session cookie.
func CookieMaxAge(tok *oauth2.Token, now time.Time) time.Duration {
	if tok.Expiry.IsZero() {
		return 0
	}
	if d := tok.Expiry.Sub(now); d > 0 {
		return d
	}
	return 0
}
