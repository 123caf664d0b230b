package llmservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrClientRequest marks a request the API rejected as malformed or
// unauthorized. Retrying it cannot help.
var ErrClientRequest = errors.New("model rejected the request")

// APIError is a non-2xx response from the model API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model API returned status %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Is(target error) bool {
	return target == ErrClientRequest && classifyStatus(e.StatusCode) == ClassClient
}

// ConnectionError is a transport failure before any response arrived.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to model API failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Class groups errors by how a caller should react.
type Class int

const (
	ClassUnknown Class = iota
	ClassConnection
	ClassRateLimit
	ClassServer
	ClassClient
)

func (c Class) String() string {
	switch c {
	case ClassConnection:
		return "connection"
	case ClassRateLimit:
		return "rate_limit"
	case ClassServer:
		return "server"
	case ClassClient:
		return "client"
	default:
		return "unknown"
	}
}

func classifyStatus(code int) Class {
	switch {
	case code == http.StatusTooManyRequests:
		return ClassRateLimit
	case code == http.StatusRequestTimeout, code >= 500:
		return ClassServer
	case code >= 400:
		return ClassClient
	default:
		return ClassUnknown
	}
}

// Classify maps an error returned by a Client to its Class.
func Classify(err error) Class {
	var apiErr *APIError
	var connErr *ConnectionError
	switch {
	case err == nil:
		return ClassUnknown
	case errors.As(err, &apiErr):
		return classifyStatus(apiErr.StatusCode)
	case errors.As(err, &connErr):
		return ClassConnection
	default:
		return ClassUnknown
	}
}

// IsTransient reports whether a retry may succeed: connection failures,
// rate limiting, timeouts and server errors.
func IsTransient(err error) bool {
	switch Classify(err) {
	case ClassConnection, ClassRateLimit, ClassServer:
		return true
	default:
		return false
	}
}

// Doer is the HTTP transport handed to langchaingo. It turns failures into
// typed errors so callers can classify them.
type Doer struct {
	client *http.Client
}

func NewDoer(client *http.Client) *Doer {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &Doer{client: client}
}

const maxErrorBody = 4096

func (d *Doer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, record(req.Context(), &ConnectionError{Err: err})
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, record(req.Context(), &APIError{StatusCode: resp.StatusCode, Body: string(body)})
}

type captureKey struct{}

func withCapture(ctx context.Context) (context.Context, *error) {
	var captured error
	return context.WithValue(ctx, captureKey{}, &captured), &captured
}

func record(ctx context.Context, err error) error {
	if p, ok := ctx.Value(captureKey{}).(*error); ok {
		*p = err
	}
	return err
}
