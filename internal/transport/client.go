// Package transport performs the outbound HTTP calls made by health checks
// and token logins.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a single call, including reading the body.
	DefaultTimeout = 15 * time.Second
	maxBodyBytes   = 4 << 20
)

// ErrTimeout is returned when a call exceeds its deadline.
var ErrTimeout = errors.New("request timed out")

// Request is one outbound call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	// Body is sent as-is when it is a string or []byte, JSON-encoded otherwise.
	Body any
}

// Response is a completed call.
type Response struct {
	StatusCode int
	Body       []byte
}

// Sender is the outbound HTTP capability.
type Sender interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// StatusError reports a completed call whose status is outside 2xx.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}

// StatusCodeOf returns the status code carried by err, if any.
func StatusCodeOf(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}

// Client is a Sender backed by net/http.
type Client struct {
	client *http.Client
}

// NewClient builds a client whose calls give up after timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{client: &http.Client{Transport: transport, Timeout: timeout}}
}

// Send performs req. A non-2xx response is returned together with a
// *StatusError.
func (c *Client) Send(ctx context.Context, req Request) (Response, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	body, isJSON, err := encodeBody(req.Body)
	if err != nil {
		return Response{}, fmt.Errorf("encode request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return Response{}, err
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if isJSON && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json, text/plain, */*")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return Response{}, fmt.Errorf("%w: %s %s", ErrTimeout, method, req.URL)
		}
		return Response{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("read response body: %w", err)
	}

	out := Response{StatusCode: resp.StatusCode, Body: data}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, &StatusError{StatusCode: resp.StatusCode, Body: data}
	}
	return out, nil
}

// DecodeBody turns a payload into a JSON value when it parses as one and a
// string otherwise.
func DecodeBody(data []byte) any {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return string(data)
	}
	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return string(data)
	}
	return decoded
}

func encodeBody(body any) (io.Reader, bool, error) {
	switch v := body.(type) {
	case nil:
		return nil, false, nil
	case string:
		return strings.NewReader(v), false, nil
	case []byte:
		return bytes.NewReader(v), false, nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, false, err
		}
		return bytes.NewReader(encoded), true, nil
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
