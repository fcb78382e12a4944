// Package fetch is the outbound HTTP transport shared by provider adapters.
// Every failure it returns is a *domain.AppError.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/samirrijal/rentalscope/internal/core/domain"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 32 << 20

// Request describes one outbound call.
type Request struct {
	Method  string
	URL     string
	Query   map[string]string
	Headers map[string]string
	Body    any
	Timeout time.Duration
}

// Response is a successful (2xx) answer.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Client performs requests with a per-call timeout.
type Client struct {
	http *http.Client
}

// NewClient wraps hc, or a default client when hc is nil.
func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{http: hc}
}

// Do sends req. A deadline maps to TimeoutError, any other failure to
// reach the server to TransportError and a non-2xx status to
// InvalidResponseError carrying the status code.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, domain.NewTransportError(fmt.Errorf("parse url: %w", err))
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if method != http.MethodGet && req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, domain.NewTransportError(fmt.Errorf("encode body: %w", err))
		}
		body = bytes.NewReader(data)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	hreq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, domain.NewTransportError(fmt.Errorf("build request: %w", err))
	}
	for k, v := range req.Headers {
		hreq.Header.Set(k, v)
	}

	resp, err := c.http.Do(hreq)
	if err != nil {
		return nil, toAppError(ctx, err, req.Timeout)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		msg := fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		return nil, domain.NewInvalidResponseError(msg, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, toAppError(ctx, err, req.Timeout)
	}
	return &Response{Status: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// DoJSON sends req and decodes the body into out. An empty 204 body leaves
// out untouched.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if resp.Status == http.StatusNoContent || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return domain.NewInvalidResponseError(fmt.Sprintf("Invalid JSON response: %v", err), resp.Status)
	}
	return nil
}

func toAppError(ctx context.Context, err error, timeout time.Duration) *domain.AppError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.NewTimeoutError(timeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewTimeoutError(timeout, err)
	}
	return domain.NewTransportError(err)
}
