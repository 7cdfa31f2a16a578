package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	csrfHeader  = "X-CSRF-TOKEN"
	refreshPath = "/api/refresh"
	loginPath   = "/api/login"
)

// HTTPDoer defines http.Client interface subset.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Credentials carries the backend cookies and CSRF token of one operator.
// A nil Credentials issues anonymous calls.
type Credentials interface {
	Cookies() []*http.Cookie
	SetCookies([]*http.Cookie)
	CSRFToken() string
}

// BaseClient executes backend calls on behalf of an operator.
type BaseClient struct {
	baseURL string
	client  HTTPDoer
	metrics *Metrics
}

// NewBaseClient builds client with base URL. metrics may be nil.
func NewBaseClient(baseURL string, client HTTPDoer, metrics *Metrics) *BaseClient {
	return &BaseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		metrics: metrics,
	}
}

func (c *BaseClient) buildURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Do executes a single backend request and returns status/body.
// Cookies set by the backend are merged into creds.
func (c *BaseClient) Do(ctx context.Context, creds Credentials, method, path string, body []byte, contentType string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}
	if creds != nil {
		for _, cookie := range creds.Cookies() {
			req.AddCookie(cookie)
		}
		if method != http.MethodGet && method != http.MethodHead {
			if token := creds.CSRFToken(); token != "" {
				req.Header.Set(csrfHeader, token)
			}
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.observe(method, path, 0, time.Since(start))
		return 0, nil, err
	}
	defer resp.Body.Close()
	c.metrics.observe(method, path, resp.StatusCode, time.Since(start))

	if creds != nil {
		if cookies := resp.Cookies(); len(cookies) > 0 {
			creds.SetCookies(cookies)
		}
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}

// Call executes the request, refreshing the backend token once on 401,
// and maps non-2xx responses to *APIError.
func (c *BaseClient) Call(ctx context.Context, creds Credentials, method, path string, body []byte, contentType string) ([]byte, error) {
	status, respBody, err := c.Do(ctx, creds, method, path, body, contentType)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if status == http.StatusUnauthorized && c.canRefresh(creds, path) {
		if c.refresh(ctx, creds) {
			status, respBody, err = c.Do(ctx, creds, method, path, body, contentType)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", method, path, err)
			}
		}
	}
	if status < 200 || status > 299 {
		return nil, newAPIError(status, respBody)
	}
	return respBody, nil
}

func (c *BaseClient) canRefresh(creds Credentials, path string) bool {
	if creds == nil || len(creds.Cookies()) == 0 {
		return false
	}
	return path != refreshPath && path != loginPath
}

func (c *BaseClient) refresh(ctx context.Context, creds Credentials) bool {
	status, _, err := c.Do(ctx, creds, http.MethodPost, refreshPath, nil, "")
	return err == nil && status >= 200 && status <= 299
}

func (c *BaseClient) getJSON(ctx context.Context, creds Credentials, path string, out interface{}) error {
	body, err := c.Call(ctx, creds, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return decode(path, body, out)
}

func (c *BaseClient) sendJSON(ctx context.Context, creds Credentials, method, path string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
	}
	body, err := c.Call(ctx, creds, method, path, payload, "")
	if err != nil {
		return err
	}
	return decode(path, body, out)
}

func decode(path string, body []byte, out interface{}) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// NewDefaultHTTPClient returns *http.Client with timeout.
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
