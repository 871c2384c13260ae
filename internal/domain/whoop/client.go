package whoop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ErrUnauthorized means the vendor rejected the access token.
var ErrUnauthorized = errors.New("whoop: access token rejected")

const (
	PageSize = 25
	MaxPages = 4

	recoveryPath = "/developer/v2/recovery"
	sleepPath    = "/developer/v2/activity/sleep"
	cyclePath    = "/developer/v2/cycle"
)

// APIError is a non-2xx vendor response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whoop api: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Message returns the text shown to users for a failed vendor call.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// Client reads paginated collections from the vendor developer API.
type Client struct {
	baseURL string
	base    *http.Client
}

// NewClient returns a Client rooted at baseURL. A nil base uses
// http.DefaultClient underneath the bearer transport.
func NewClient(baseURL string, base *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), base: base}
}

func (c *Client) httpClient(ctx context.Context, token string) *http.Client {
	if c.base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
}

// PageQuery bounds a paginated listing.
type PageQuery struct {
	Start    time.Time
	MaxPages int
}

type page[T any] struct {
	Records   []T    `json:"records"`
	NextToken string `json:"next_token"`
}

// listAll follows next_token until it runs out or q.MaxPages pages have been
// read. It returns what it collected, the number of pages read, and the error
// that stopped it early, if any.
func listAll[T any](ctx context.Context, c *Client, token, path string, q PageQuery) ([]T, int, error) {
	hc := c.httpClient(ctx, token)

	var (
		records   []T
		nextToken string
		pages     int
	)
	for pages < q.MaxPages {
		params := url.Values{}
		params.Set("limit", fmt.Sprint(PageSize))
		if !q.Start.IsZero() {
			params.Set("start", q.Start.UTC().Format(time.RFC3339))
		}
		if nextToken != "" {
			params.Set("nextToken", nextToken)
		}

		var p page[T]
		if err := c.get(ctx, hc, path, params, &p); err != nil {
			return records, pages, fmt.Errorf("%s page %d: %w", path, pages+1, err)
		}
		records = append(records, p.Records...)
		pages++

		if p.NextToken == "" {
			break
		}
		nextToken = p.NextToken
	}
	return records, pages, nil
}

func (c *Client) get(ctx context.Context, hc *http.Client, path string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: vendorMessage(resp.StatusCode, body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// vendorMessage extracts a human readable reason from an error body shaped
// like {"errors":[{"message":..}]} or {"message":..}.
func vendorMessage(status int, body []byte) string {
	var e struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		if len(e.Errors) > 0 && e.Errors[0].Message != "" {
			return e.Errors[0].Message
		}
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", status)
}

func (c *Client) Recoveries(ctx context.Context, token string, q PageQuery) ([]Recovery, int, error) {
	return listAll[Recovery](ctx, c, token, recoveryPath, q)
}

func (c *Client) Sleeps(ctx context.Context, token string, q PageQuery) ([]Sleep, int, error) {
	return listAll[Sleep](ctx, c, token, sleepPath, q)
}

func (c *Client) Cycles(ctx context.Context, token string, q PageQuery) ([]Cycle, int, error) {
	return listAll[Cycle](ctx, c, token, cyclePath, q)
}
