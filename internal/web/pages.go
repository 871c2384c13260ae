package web

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/luvo/luvo/internal/domain/whoop"
)

// Pages renders full-page responses: the OAuth flow pages and the error
// boundary used by the HTTP error handler.
type Pages struct {
	tmpl   *Templates
	logger zerolog.Logger
}

func NewPages(tmpl *Templates, logger zerolog.Logger) *Pages {
	return &Pages{tmpl: tmpl, logger: logger.With().Str("component", "web").Logger()}
}

func (p *Pages) render(c echo.Context, status int, name string, data interface{}) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(status)
	if err := p.tmpl.Render(c.Response(), name, data, c); err != nil {
		p.logger.Error().Err(err).Str("template", name).Msg("render failed")
		return err
	}
	return nil
}

type configErrorView struct {
	Missing []string
}

// ConfigError lists the Whoop settings that must be set before the OAuth flow
// can start.
func (p *Pages) ConfigError(c echo.Context, missing []string) error {
	return p.render(c, http.StatusInternalServerError, "config_error.html", configErrorView{Missing: missing})
}

type queryParam struct {
	Key    string
	Values []string
}

type callbackErrorView struct {
	whoop.CallbackDebug
	Params []queryParam
}

func (p *Pages) CallbackError(c echo.Context, info whoop.CallbackDebug) error {
	keys := make([]string, 0, len(info.Query))
	for k := range info.Query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	view := callbackErrorView{CallbackDebug: info}
	for _, k := range keys {
		view.Params = append(view.Params, queryParam{Key: k, Values: info.Query[k]})
	}
	return p.render(c, http.StatusBadRequest, "callback_error.html", view)
}

type exchangeFailedView struct {
	Detail string
}

func (p *Pages) ExchangeFailed(c echo.Context, detail string) error {
	return p.render(c, http.StatusInternalServerError, "exchange_failed.html", exchangeFailedView{Detail: detail})
}

type systemFailureView struct {
	Status  int
	Message string
}

// SystemFailure is the middleware.PageRenderer for non-API routes.
func (p *Pages) SystemFailure(c echo.Context, status int, message string) error {
	return p.render(c, status, "system_failure.html", systemFailureView{Status: status, Message: message})
}
