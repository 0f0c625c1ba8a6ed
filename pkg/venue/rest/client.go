// Package rest is the shared HTTP transport for venue adapters: one resty
// client per venue with uniform timeout handling and non-2xx surfacing.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 10 * time.Second

// Client wraps a resty client pinned to one venue base URL.
type Client struct {
	http *resty.Client
}

// New creates a transport for the given base URL. A zero timeout falls back
// to the default.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: c}
}

// Request describes one venue call.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    any // JSON-encoded when non-nil
	Out     any // decoded from the response body when non-nil
}

// APIError is a non-2xx venue response. Adapters inspect the body to decide
// between a venue-level rejection and a transport problem.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("venue returned %d: %s", e.Status, e.Body)
}

// Do executes the request. The raw body is always available on APIError so
// adapters can map venue error codes.
func (c *Client) Do(ctx context.Context, req Request) error {
	r := c.http.R().SetContext(ctx)
	if req.Query != nil {
		r.SetQueryParamsFromValues(req.Query)
	}
	for k, v := range req.Headers {
		r.SetHeader(k, v)
	}
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json")
		r.SetBody(req.Body)
	}
	if req.Out != nil {
		r.SetResult(req.Out)
	}

	var resp *resty.Response
	var err error
	switch req.Method {
	case http.MethodGet:
		resp, err = r.Get(req.Path)
	case http.MethodPost:
		resp, err = r.Post(req.Path)
	case http.MethodDelete:
		resp, err = r.Delete(req.Path)
	case http.MethodPut:
		resp, err = r.Put(req.Path)
	default:
		return fmt.Errorf("unsupported method %q", req.Method)
	}
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return &APIError{Status: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}
