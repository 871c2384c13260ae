package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestErrorHandler_APIGetsJSON(t *testing.T) {
	e := echo.New()
	pagesCalled := false
	e.HTTPErrorHandler = ErrorHandler(zerolog.New(io.Discard), func(c echo.Context, status int, msg string) error {
		pagesCalled = true
		return c.HTML(status, msg)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/whoop/data", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	e.HTTPErrorHandler(echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated"), c)

	if pagesCalled {
		t.Error("expected JSON, not an HTML page, for /api/ paths")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["error"] != "Not authenticated" {
		t.Errorf("unexpected error body %v", body)
	}
}

func TestErrorHandler_PagesGetHTML(t *testing.T) {
	e := echo.New()
	var gotStatus int
	var gotMsg string
	e.HTTPErrorHandler = ErrorHandler(zerolog.New(io.Discard), func(c echo.Context, status int, msg string) error {
		gotStatus, gotMsg = status, msg
		return c.HTML(status, "<h1>CRITICAL SYSTEM FAILURE</h1>")
	})

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	e.HTTPErrorHandler(errors.New("boom"), c)

	if gotStatus != http.StatusInternalServerError || gotMsg != "boom" {
		t.Errorf("unexpected page args status=%d msg=%q", gotStatus, gotMsg)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestErrorHandler_SkipsCommittedResponse(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zerolog.New(io.Discard), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ehr/parse", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = c.String(http.StatusOK, "partial")

	e.HTTPErrorHandler(errors.New("late failure"), c)

	if rec.Code != http.StatusOK || rec.Body.String() != "partial" {
		t.Errorf("committed response was modified: %d %q", rec.Code, rec.Body.String())
	}
}
