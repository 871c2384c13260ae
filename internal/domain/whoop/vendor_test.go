package whoop

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/luvo/luvo/internal/platform/cache"
)

const (
	testClientID     = "client-id"
	testClientSecret = "client-secret"
	testRedirectURI  = "https://luvo.test/api/whoop/callback"
	testAccessToken  = "tok-123"
	testCode         = "good-code"
)

var vendorNow = time.Date(2026, 6, 30, 8, 0, 0, 0, time.UTC)

// fakeVendor serves the token endpoint and the three developer collections.
type fakeVendor struct {
	mu      sync.Mutex
	total   map[string]int
	failAt  map[string]int
	calls   map[string]int
	queries []string
	forms   []map[string][]string
}

func newFakeVendor(total int) *fakeVendor {
	return &fakeVendor{
		total: map[string]int{
			recoveryPath: total,
			sleepPath:    total,
			cyclePath:    total,
		},
		failAt: map[string]int{},
		calls:  map[string]int{},
	}
}

func (v *fakeVendor) start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(v)
	t.Cleanup(srv.Close)
	return srv
}

func (v *fakeVendor) callCount(path string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls[path]
}

func (v *fakeVendor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	defer v.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/oauth/oauth2/token" {
		v.token(w, r)
		return
	}

	total, ok := v.total[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"Not Found"}`)
		return
	}
	v.calls[r.URL.Path]++
	v.queries = append(v.queries, r.URL.RawQuery)

	if r.Header.Get("Authorization") != "Bearer "+testAccessToken {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"message":"Authorization was not valid"}`)
		return
	}

	pageNum := 1
	if tok := r.URL.Query().Get("nextToken"); tok != "" {
		pageNum, _ = strconv.Atoi(strings.TrimPrefix(tok, "page-"))
	}
	if v.failAt[r.URL.Path] == pageNum {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"errors":[{"message":"upstream exploded"}]}`)
		return
	}

	from := (pageNum - 1) * PageSize
	to := from + PageSize
	if to > total {
		to = total
	}
	records := make([]map[string]interface{}, 0, PageSize)
	for i := from; i < to; i++ {
		records = append(records, record(r.URL.Path, i))
	}
	body := map[string]interface{}{"records": records}
	if to < total {
		body["next_token"] = fmt.Sprintf("page-%d", pageNum+1)
	}
	json.NewEncoder(w).Encode(body)
}

func (v *fakeVendor) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	v.forms = append(v.forms, r.PostForm)

	f := r.PostForm
	if f.Get("grant_type") != "authorization_code" ||
		f.Get("client_id") != testClientID ||
		f.Get("client_secret") != testClientSecret ||
		f.Get("redirect_uri") != testRedirectURI ||
		f.Get("code") != testCode {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"invalid_grant","error_description":"The authorization code is invalid"}`)
		return
	}
	io.WriteString(w, `{"access_token":"`+testAccessToken+`","token_type":"bearer","expires_in":3600}`)
}

// record returns the i-th newest record of a collection.
func record(path string, i int) map[string]interface{} {
	day := vendorNow.AddDate(0, 0, -i)
	switch path {
	case recoveryPath:
		return map[string]interface{}{
			"cycle_id":    1000 - i,
			"sleep_id":    fmt.Sprintf("sleep-%d", i),
			"created_at":  day.Format(time.RFC3339),
			"score_state": "SCORED",
			"score": map[string]interface{}{
				"recovery_score":     40 + i%50,
				"resting_heart_rate": 52,
				"hrv_rmssd_milli":    70.5,
			},
		}
	case sleepPath:
		return map[string]interface{}{
			"id":          fmt.Sprintf("sleep-%d", i),
			"start":       day.Add(-8 * time.Hour).Format(time.RFC3339),
			"end":         day.Format(time.RFC3339),
			"score_state": "SCORED",
			"score": map[string]interface{}{
				"sleep_performance_percentage": 91,
				"sleep_efficiency_percentage":  88.6,
				"respiratory_rate":             14.2,
			},
		}
	default:
		return map[string]interface{}{
			"id":          1000 - i,
			"start":       day.Format(time.RFC3339),
			"score_state": "SCORED",
			"score": map[string]interface{}{
				"strain":         12.6,
				"kilojoule":      9800,
				"max_heart_rate": 171,
			},
		}
	}
}

func newTestService(t *testing.T, v *fakeVendor) (*Service, *cache.Memory) {
	t.Helper()
	srv := v.start(t)
	store := cache.NewMemory()
	svc := NewService(NewClient(srv.URL, srv.Client()), store, time.Minute, zerolog.New(io.Discard))
	svc.now = func() time.Time { return vendorNow }
	return svc, store
}
