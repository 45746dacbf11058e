package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/matzehuels/mosaic/pkg/buildinfo"
	mosaicerrors "github.com/matzehuels/mosaic/pkg/errors"
	"github.com/matzehuels/mosaic/pkg/observability"
)

// DefaultTimeout bounds a single outgoing request.
const DefaultTimeout = 10 * time.Second

// Sentinel errors returned by [CheckStatus].
var (
	// ErrNotFound is returned when the remote resource doesn't exist.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// NewClient returns an http.Client with the given timeout (DefaultTimeout
// when zero) whose requests are reported to observability.HTTP(). Requests
// without a User-Agent get buildinfo.UserAgent().
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &instrumentedTransport{next: http.DefaultTransport},
	}
}

type instrumentedTransport struct {
	next http.RoundTripper
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", buildinfo.UserAgent())
	}
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		observability.HTTP().OnError(req.Context(), req.Method, req.URL.Host, err)
		return nil, err
	}
	observability.HTTP().OnResponse(req.Context(), req.Method, req.URL.Host, resp.StatusCode, time.Since(start))
	return resp, nil
}

// CheckStatus converts a response status into an error.
// 404 yields ErrNotFound, 429 a RateLimitedError honoring Retry-After,
// 5xx a retryable ErrNetwork and any other non-2xx a plain ErrNetwork.
func CheckStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return &RetryableError{Err: &mosaicerrors.RateLimitedError{RetryAfter: retryAfter}}
	case code >= 500:
		return &RetryableError{Err: fmt.Errorf("%w: status %d", ErrNetwork, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
