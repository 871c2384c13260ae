package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/luvo/luvo/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:            "development",
		CORSOrigins:    []string{"http://localhost:5173"},
		RateLimitRPS:   5,
		RateLimitBurst: 10,
		RequestTimeout: 5 * time.Second,
		WhoopAuthURL:   "https://vendor.test/oauth/oauth2/auth",
		WhoopTokenURL:  "https://vendor.test/oauth/oauth2/token",
		WhoopAPIBase:   "https://vendor.test",
		WhoopCacheTTL:  time.Minute,
		FHIRDataDir:    t.TempDir(),
		WaitlistTopic:  "waitlist.joined",
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *echo.Echo {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := zerolog.New(io.Discard)
	d, err := openDeps(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("openDeps() error: %v", err)
	}
	t.Cleanup(d.close)

	e, err := newServer(ctx, cfg, d, logger)
	if err != nil {
		t.Fatalf("newServer() error: %v", err)
	}
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON error body, got %q", rec.Body.String())
	}
	return body["error"]
}

func TestServer_Health(t *testing.T) {
	e := newTestServer(t, testConfig(t))

	rec := do(e, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected /health response %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}

	if rec := do(e, http.MethodGet, "/health/db", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected /health/db absent without a database, got %d", rec.Code)
	}
}

func TestServer_WhoopDataRequiresCookie(t *testing.T) {
	e := newTestServer(t, testConfig(t))

	rec := do(e, http.MethodGet, "/api/whoop/data", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := errorBody(t, rec); got != "Not authenticated" {
		t.Errorf("unexpected error %q", got)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("expected API responses to be no-store")
	}
}

func TestServer_AuthorizeNotConfigured(t *testing.T) {
	e := newTestServer(t, testConfig(t))

	rec := do(e, http.MethodGet, "/api/whoop/auth", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "WHOOP_CLIENT_ID") || !strings.Contains(body, "WHOOP_REDIRECT_URI") {
		t.Errorf("expected missing keys listed, got %s", body)
	}
}

func TestServer_AuthorizeRedirect(t *testing.T) {
	cfg := testConfig(t)
	cfg.WhoopClientID = "client 1"
	cfg.WhoopRedirectURI = "https://luvo.test/api/whoop/callback?x=1"
	e := newTestServer(t, cfg)

	rec := do(e, http.MethodGet, "/api/whoop/auth", "")
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad Location: %v", err)
	}
	q := loc.Query()
	if loc.Host != "vendor.test" || q.Get("client_id") != "client 1" || q.Get("redirect_uri") != cfg.WhoopRedirectURI {
		t.Errorf("unexpected authorize url %s", loc)
	}
	if q.Get("response_type") != "code" || q.Get("state") == "" {
		t.Errorf("expected response_type=code and a state, got %s", loc.RawQuery)
	}
}

func TestServer_EHRNoData(t *testing.T) {
	cfg := testConfig(t)
	e := newTestServer(t, cfg)

	rec := do(e, http.MethodGet, "/api/ehr/parse", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if got := errorBody(t, rec); got != "No FHIR data found in "+cfg.FHIRDataDir {
		t.Errorf("unexpected error %q", got)
	}
}

func TestServer_Waitlist(t *testing.T) {
	e := newTestServer(t, testConfig(t))

	if rec := do(e, http.MethodPost, "/api/waitlist", `{"email":"ada@example.com"}`); rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodPost, "/api/waitlist", `{"email":"Ada@Example.com"}`); rec.Code != http.StatusOK {
		t.Errorf("expected 200 for repeat, got %d", rec.Code)
	}
	rec := do(e, http.MethodPost, "/api/waitlist", `{"email":"nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestServer_WaitlistRateLimitIgnoresForwardedFor(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1
	e := newTestServer(t, cfg)

	limited := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/waitlist", strings.NewReader(`{"email":"ada@example.com"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderXForwardedFor, fmt.Sprintf("10.0.0.%d", i))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 19 {
		t.Errorf("expected 19 of 20 requests limited, got %d", limited)
	}
}

func TestServer_WaitlistChunkedBodyTooLarge(t *testing.T) {
	e := newTestServer(t, testConfig(t))

	body := `{"email":"` + strings.Repeat("a", 5000) + `@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/waitlist", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestServer_DebugEndpointGate(t *testing.T) {
	cfg := testConfig(t)
	cfg.WhoopClientID = "from-dotenv"
	e := newTestServer(t, cfg)
	rec := do(e, http.MethodGet, "/api/debug", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Environment Debugger") {
		t.Errorf("expected debugger in development, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "WHOOP_CLIENT_ID: Set") {
		t.Error("expected configured client id reported as Set")
	}

	cfg = testConfig(t)
	cfg.Env = "production"
	e = newTestServer(t, cfg)
	if rec := do(e, http.MethodGet, "/api/debug", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected debugger disabled in production, got %d", rec.Code)
	}
}

func TestServer_PagesAndErrorBoundary(t *testing.T) {
	e := newTestServer(t, testConfig(t))

	if rec := do(e, http.MethodGet, "/", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Biological Clarity.") {
		t.Errorf("unexpected landing response %d", rec.Code)
	}

	rec := do(e, http.MethodGet, "/no-such-page", "")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "CRITICAL SYSTEM FAILURE") {
		t.Errorf("expected error page, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/api/no-such-endpoint", "")
	if rec.Code != http.StatusNotFound || errorBody(t, rec) == "" {
		t.Errorf("expected JSON 404 under /api, got %d", rec.Code)
	}
}

func TestNewFHIRSource(t *testing.T) {
	cfg := testConfig(t)
	src, err := newFHIRSource(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.String() != cfg.FHIRDataDir {
		t.Errorf("expected directory source, got %s", src)
	}

	cfg.FHIRS3Endpoint = "minio.local:9000"
	cfg.FHIRS3Bucket = "exports"
	cfg.FHIRS3AccessKey = "ak"
	cfg.FHIRS3SecretKey = "sk"
	cfg.FHIRS3Prefix = "/fhir"
	src, err = newFHIRSource(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.String() != "s3://exports/fhir/" {
		t.Errorf("expected bucket source, got %s", src)
	}
}
