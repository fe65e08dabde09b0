package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"eventtz/internal/errdef"
	appLog "eventtz/internal/log"
	"eventtz/internal/metric"
)

// Transport moves JSON documents to and from the backend. Paths are relative
// to the backend base URL. out may be nil when the response body is not needed.
type Transport interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
}

// maxErrorBody caps how much of a failed response is kept for the error message.
const maxErrorBody = 4 << 10

// HTTPTransport is the Transport used against a real backend.
type HTTPTransport struct {
	client  *http.Client
	baseURL string
}

// NewHTTPTransport creates a transport for baseURL, e.g. "http://localhost:5000/api".
func NewHTTPTransport(baseURL string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPTransport{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (t *HTTPTransport) Get(ctx context.Context, path string, out any) error {
	return t.do(ctx, http.MethodGet, path, nil, out)
}

func (t *HTTPTransport) Post(ctx context.Context, path string, body, out any) error {
	return t.do(ctx, http.MethodPost, path, body, out)
}

func (t *HTTPTransport) Put(ctx context.Context, path string, body, out any) error {
	return t.do(ctx, http.MethodPut, path, body, out)
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	appLog.Debug("backend request", "method", method, "path", path, "request_id", requestID)

	started := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		metric.BackendRequest(method, 0, time.Since(started))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	metric.BackendRequest(method, resp.StatusCode, time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := statusError(resp.StatusCode, method, path, strings.TrimSpace(string(msg)))
		appLog.Error("backend request failed", err, "method", method, "path", path, "status", resp.StatusCode, "request_id", requestID)
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s %s: empty response body", method, path)
		}
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// statusError maps a non-2xx response onto the errdef taxonomy.
func statusError(status int, method, path, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return errdef.NewBadRequest("%s %s: %s", method, path, msg)
	case http.StatusUnauthorized:
		return errdef.NewUnauthorized("%s %s: %s", method, path, msg)
	case http.StatusForbidden:
		return errdef.NewForbidden("%s %s: %s", method, path, msg)
	case http.StatusNotFound:
		return errdef.NewNotFound("%s %s: %s", method, path, msg)
	case http.StatusConflict:
		return errdef.NewConflict("%s %s: %s", method, path, msg)
	default:
		return fmt.Errorf("%s %s: status %d: %s", method, path, status, msg)
	}
}
