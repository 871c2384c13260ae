// Package diagnostics serves the environment debugger at /api/debug. It never
// prints variable values.
package diagnostics

import (
	"html/template"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

// CriticalVars are reported as Set or MISSING.
var CriticalVars = []string{"WHOOP_CLIENT_ID", "WHOOP_REDIRECT_URI", "WHOOP_CLIENT_SECRET"}

var page = template.Must(template.New("debug").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: monospace; background: #222; color: #0f0; padding: 20px;">
<h1>Environment Debugger</h1>
<h3>Critical Variables:</h3>
<ul>
{{range .Critical}}<li>{{.Name}}: {{.State}}</li>
{{end}}</ul>
<hr>
<h3>All Available Keys:</h3>
<p style="color: #888">Process environment only. Keys read from .env count above but are not listed here.</p>
<ul style="color: #888">
{{range .Keys}}<li>{{.}}</li>
{{end}}</ul>
</body>
</html>
`))

type VarState struct {
	Name  string
	State string
}

type Report struct {
	Critical []VarState
	Keys     []string
}

// Handler renders the report from the process environment and the loaded
// configuration.
type Handler struct {
	environ    func() []string
	configured map[string]string
}

// NewHandler takes the configured value of each critical variable, so
// settings that came from a .env file are reported as Set.
func NewHandler(configured map[string]string) *Handler {
	return &Handler{environ: os.Environ, configured: configured}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/debug", h.Debug)
}

// Build reads env, a list of KEY=VALUE pairs. A critical variable is Set when
// either env or configured has a non-empty value for it.
func Build(env []string, configured map[string]string) Report {
	values := make(map[string]string, len(env))
	keys := make([]string, 0, len(env))
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		if k == "" {
			continue
		}
		if _, seen := values[k]; !seen {
			keys = append(keys, k)
		}
		values[k] = v
	}
	sort.Strings(keys)

	r := Report{Keys: keys}
	for _, name := range CriticalVars {
		state := "MISSING"
		if values[name] != "" || configured[name] != "" {
			state = "Set"
		}
		r.Critical = append(r.Critical, VarState{Name: name, State: state})
	}
	return r
}

func (h *Handler) Debug(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return page.Execute(c.Response(), Build(h.environ(), h.configured))
}
