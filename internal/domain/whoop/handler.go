package whoop

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/luvo/luvo/internal/platform/auth"
)

// CallbackDebug describes a rejected OAuth callback for the error page.
type CallbackDebug struct {
	RequestURL       string
	Query            map[string][]string
	RedirectURI      string
	Error            string
	ErrorDescription string
}

// Pages renders the HTML responses of the OAuth flow.
type Pages interface {
	ConfigError(c echo.Context, missing []string) error
	CallbackError(c echo.Context, info CallbackDebug) error
	ExchangeFailed(c echo.Context, detail string) error
}

type HandlerConfig struct {
	PostLoginRedirect string
	SecureCookies     bool
}

type Handler struct {
	oauth  *OAuth
	states *auth.StateSigner
	svc    *Service
	pages  Pages
	cfg    HandlerConfig
	logger zerolog.Logger
	now    func() time.Time
}

func NewHandler(oauth *OAuth, states *auth.StateSigner, svc *Service, pages Pages, cfg HandlerConfig, logger zerolog.Logger) *Handler {
	if cfg.PostLoginRedirect == "" {
		cfg.PostLoginRedirect = "/"
	}
	return &Handler{
		oauth:  oauth,
		states: states,
		svc:    svc,
		pages:  pages,
		cfg:    cfg,
		logger: logger.With().Str("component", "whoop").Logger(),
		now:    time.Now,
	}
}

// RegisterRoutes mounts the handlers on the /api/whoop group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/auth", h.Authorize)
	g.GET("/callback", h.Callback)
	g.GET("/data", h.GetData)
	g.GET("/insights", h.GetInsights)
	g.GET("/logout", h.Logout)
}

func (h *Handler) Authorize(c echo.Context) error {
	if missing := h.oauth.Missing(); len(missing) > 0 {
		h.logger.Error().Strs("missing", missing).Msg("whoop oauth is not configured")
		return h.pages.ConfigError(c, missing)
	}

	state, nonce, err := h.states.Issue()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to start authorization")
	}
	auth.SetStateCookie(c, nonce, h.states.TTL(), h.cfg.SecureCookies)
	return c.Redirect(http.StatusFound, h.oauth.AuthCodeURL(state))
}

func (h *Handler) Callback(c echo.Context) error {
	q := c.QueryParams()
	code := q.Get("code")

	if vendorErr := q.Get("error"); vendorErr != "" || code == "" {
		info := h.callbackDebug(c)
		if vendorErr == "" {
			info.Error = "missing_code"
			info.ErrorDescription = "No authorization code was returned to the callback."
		}
		return h.pages.CallbackError(c, info)
	}

	// The state must be the one issued to this browser by Authorize.
	nonce := auth.StateNonce(c)
	auth.ClearStateCookie(c, h.cfg.SecureCookies)
	if err := h.states.Verify(q.Get("state"), nonce); err != nil {
		h.logger.Warn().Err(err).Msg("rejected oauth callback state")
		info := h.callbackDebug(c)
		info.Error = "invalid_state"
		info.ErrorDescription = "The authorization request expired or did not originate here. Start again."
		return h.pages.CallbackError(c, info)
	}

	if missing := h.oauth.Missing(); len(missing) > 0 {
		return h.pages.ConfigError(c, missing)
	}

	tok, err := h.oauth.Exchange(c.Request().Context(), code)
	if err != nil {
		detail := err.Error()
		var exErr *ExchangeError
		if errors.As(err, &exErr) && exErr.Body != "" {
			detail = exErr.Body
		}
		h.logger.Error().Err(err).Str("vendor_body", detail).Msg("token exchange failed")
		return h.pages.ExchangeFailed(c, detail)
	}

	auth.SetTokenCookie(c, tok.AccessToken, CookieMaxAge(tok, h.now()), h.cfg.SecureCookies)
	return c.Redirect(http.StatusFound, h.cfg.PostLoginRedirect)
}

func (h *Handler) callbackDebug(c echo.Context) CallbackDebug {
	q := c.QueryParams()
	return CallbackDebug{
		RequestURL:       c.Request().URL.String(),
		Query:            q,
		RedirectURI:      h.oauth.RedirectURI(),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
}

func (h *Handler) GetData(c echo.Context) error {
	data, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, data)
}

func (h *Handler) GetInsights(c echo.Context) error {
	data, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, BuildInsights(data))
}

func (h *Handler) load(c echo.Context) (*Data, error) {
	token, ok := auth.TokenFromRequest(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
	}

	days, err := ParseDays(c.QueryParam("days"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	data, err := h.svc.Fetch(c.Request().Context(), token, days)
	if err != nil {
		return nil, h.fetchError(c, err)
	}
	return data, nil
}

// fetchError maps a Service.Fetch failure onto the HTTP response. A rejected
// token also clears the cookie so the next visit starts a new flow.
func (h *Handler) fetchError(c echo.Context, err error) error {
	if errors.Is(err, ErrUnauthorized) {
		auth.ClearTokenCookie(c, h.cfg.SecureCookies)
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
	}
	h.logger.Error().Err(err).Msg("whoop fetch failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "Whoop API Error: "+Message(err))
}

func (h *Handler) Logout(c echo.Context) error {
	auth.ClearTokenCookie(c, h.cfg.SecureCookies)
	return c.Redirect(http.StatusFound, "/")
}

// ParseDays reads the days query parameter, defaulting to DefaultDays.
func ParseDays(raw string) (int, error) {
	if raw == "" {
		return DefaultDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > MaxDays {
		return 0, ErrInvalidDays
	}
	return days, nil
}
