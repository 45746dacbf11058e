package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matzehuels/mosaic/pkg/buildinfo"
	mosaicerrors "github.com/matzehuels/mosaic/pkg/errors"
	"github.com/matzehuels/mosaic/pkg/observability"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return &RetryableError{Err: errors.New("timeout")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad request")
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("Retry() error = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, 3, time.Hour, func() error {
		return &RetryableError{Err: errors.New("down")}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() error = %v, want context.Canceled", err)
	}
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		header    string
		wantNil   bool
		retryable bool
		target    error
	}{
		{name: "ok", code: 200, wantNil: true},
		{name: "created", code: 201, wantNil: true},
		{name: "not found", code: 404, target: ErrNotFound},
		{name: "server error", code: 503, retryable: true, target: ErrNetwork},
		{name: "bad request", code: 400, target: ErrNetwork},
		{name: "rate limited", code: 429, header: "7", retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.code, Header: http.Header{}}
			if tt.header != "" {
				resp.Header.Set("Retry-After", tt.header)
			}
			err := CheckStatus(resp)
			if tt.wantNil {
				if err != nil {
					t.Fatalf("CheckStatus() = %v, want nil", err)
				}
				return
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", IsRetryable(err), tt.retryable)
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("CheckStatus() = %v, want %v", err, tt.target)
			}
		})
	}

	resp := &http.Response{StatusCode: 429, Header: http.Header{"Retry-After": []string{"7"}}}
	var rl *mosaicerrors.RateLimitedError
	if !errors.As(CheckStatus(resp), &rl) || rl.RetryAfter != 7 {
		t.Errorf("429 should carry RetryAfter=7, got %+v", rl)
	}
}

type recordingHooks struct {
	observability.NoopHTTPHooks
	codes []int
}

func (h *recordingHooks) OnResponse(_ context.Context, _, _ string, code int, _ time.Duration) {
	h.codes = append(h.codes, code)
}

func TestNewClientReportsResponses(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetHTTPHooks(hooks)
	defer observability.Reset()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	resp, err := NewClient(0).Get(server.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	if len(hooks.codes) != 1 || hooks.codes[0] != http.StatusTeapot {
		t.Errorf("reported codes = %v, want [418]", hooks.codes)
	}
}

func TestNewClientSetsUserAgent(t *testing.T) {
	var got []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.UserAgent())
	}))
	defer server.Close()

	client := NewClient(0)
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	req.Header.Set("User-Agent", "custom/1")
	resp, err = client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if len(got) != 2 || got[0] != buildinfo.UserAgent() || got[1] != "custom/1" {
		t.Errorf("user agents = %v", got)
	}
}
