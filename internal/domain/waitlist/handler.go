package waitlist

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the signup endpoint. mw is applied to the POST only,
// typically a rate limiter.
func (h *Handler) RegisterRoutes(api *echo.Group, mw ...echo.MiddlewareFunc) {
	api.POST("/waitlist", h.Join, mw...)
}

type joinRequest struct {
	Email  string `json:"email"`
	Source string `json:"source"`
}

func (h *Handler) Join(c echo.Context) error {
	var req joinRequest
	if err := c.Bind(&req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	_, created, err := h.svc.Join(c.Request().Context(), req.Email, req.Source, c.Request().UserAgent())
	if errors.Is(err, ErrInvalidEmail) {
		return echo.NewHTTPError(http.StatusBadRequest, "Please enter a valid email address")
	}
	if err != nil {
		h.svc.logger.Error().Err(err).Msg("waitlist join failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "Could not join the waitlist")
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, map[string]string{"status": "success"})
}
