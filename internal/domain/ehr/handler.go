package ehr

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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/ehr/parse", h.ParseExport)
}

func (h *Handler) ParseExport(c echo.Context) error {
	res, err := h.svc.Parse(c.Request().Context())
	if errors.Is(err, ErrNoData) {
		return echo.NewHTTPError(http.StatusNotFound, "No FHIR data found in "+h.svc.SourceName())
	}
	if err != nil {
		h.svc.logger.Error().Err(err).Msg("FHIR parse failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to process EHR data")
	}
	return c.JSON(http.StatusOK, res.Record)
}
