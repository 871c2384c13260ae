package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/luvo/luvo/internal/domain/whoop"
	"github.com/luvo/luvo/internal/platform/auth"
)

// DataFetcher loads vendor data for a bearer token.
type DataFetcher interface {
	Fetch(ctx context.Context, token string, days int) (*whoop.Data, error)
}

const authPath = "/api/whoop/auth"

type Handler struct {
	pages         *Pages
	whoop         DataFetcher
	secureCookies bool
}

func NewHandler(pages *Pages, fetcher DataFetcher, secureCookies bool) *Handler {
	return &Handler{pages: pages, whoop: fetcher, secureCookies: secureCookies}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Landing)
	e.GET("/test", h.TestPage)
	e.GET("/dashboard", h.Dashboard)
}

// Pillar is one card of the landing page grid.
type Pillar struct {
	Title       string
	Subtitle    string
	Description string
}

var pillars = []Pillar{
	{"Metabolic", "The Engine", "Mitochondrial efficiency and visceral fat control."},
	{"Physical", "The Chassis", "Muscle density and structural integrity."},
	{"Cognitive", "The Processor", "Neuroplasticity and focus."},
	{"Hormonal", "The Chemistry", "Cortisol regulation and drive."},
	{"Immunity", "The Shield", "Inflammation control and defense."},
}

type landingView struct {
	Pillars []Pillar
}

func (h *Handler) Landing(c echo.Context) error {
	return h.pages.render(c, http.StatusOK, "landing.html", landingView{Pillars: pillars})
}

type testView struct {
	Connected bool
	Error     string
	Cards     LiveCards
	Raw       string
}

// TestPage shows a connect button, or the latest records as three cards.
func (h *Handler) TestPage(c echo.Context) error {
	token, ok := auth.TokenFromRequest(c)
	if !ok {
		return h.pages.render(c, http.StatusOK, "test.html", testView{})
	}

	data, err := h.whoop.Fetch(c.Request().Context(), token, whoop.DefaultDays)
	if errors.Is(err, whoop.ErrUnauthorized) {
		auth.ClearTokenCookie(c, h.secureCookies)
		return h.pages.render(c, http.StatusOK, "test.html", testView{})
	}
	if err != nil {
		h.pages.logger.Error().Err(err).Msg("test page fetch failed")
		return h.pages.render(c, http.StatusOK, "test.html", testView{Connected: true, Error: whoop.Message(err)})
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return h.pages.render(c, http.StatusOK, "test.html", testView{
		Connected: true,
		Cards:     liveCards(data.Latest),
		Raw:       string(raw),
	})
}

type dashboardView struct {
	Stats      DashboardStats
	Datapoints int
	Insights   *whoop.Insights
}

type corruptedView struct {
	Message string
}

// Dashboard renders the Digital Twin view. Without a usable token the
// browser is sent through the OAuth flow.
func (h *Handler) Dashboard(c echo.Context) error {
	token, ok := auth.TokenFromRequest(c)
	if !ok {
		return c.Redirect(http.StatusFound, authPath)
	}

	days, err := whoop.ParseDays(c.QueryParam("days"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	data, err := h.whoop.Fetch(c.Request().Context(), token, days)
	if errors.Is(err, whoop.ErrUnauthorized) {
		auth.ClearTokenCookie(c, h.secureCookies)
		return c.Redirect(http.StatusFound, authPath)
	}
	if err != nil {
		h.pages.logger.Error().Err(err).Msg("dashboard fetch failed")
		return h.pages.render(c, http.StatusBadGateway, "data_corrupted.html", corruptedView{
			Message: "Whoop API Error: " + whoop.Message(err),
		})
	}

	ins := whoop.BuildInsights(data)
	return h.pages.render(c, http.StatusOK, "dashboard.html", dashboardView{
		Stats:      dashboardStats(ins.Stats),
		Datapoints: len(ins.Trend),
		Insights:   ins,
	})
}
