package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastOptions() []Option {
	return []Option{
		WithMaxRetries(2),
		WithRetryDelay(time.Millisecond),
		WithMaxDelay(5 * time.Millisecond),
	}
}

func TestGetJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "10" {
			t.Errorf("Missing limit param, got %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"value": 42}`))
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL, fastOptions()...)

	var out struct {
		Value int `json:"value"`
	}
	params := map[string][]string{"limit": {"10"}}
	if err := c.GetJSON(context.Background(), "/thing", params, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if out.Value != 42 {
		t.Errorf("Value = %d, want 42", out.Value)
	}
}

func TestGetJSON_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL, fastOptions()...)
	if err := c.GetJSON(context.Background(), "/", nil, nil); err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}
}

func TestGetJSON_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL, fastOptions()...)
	err := c.GetJSON(context.Background(), "/", nil, nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited, got %v", err)
	}
}

func TestGetJSON_UpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL, fastOptions()...)
	err := c.GetJSON(context.Background(), "/", nil, nil)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("Expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestGetJSON_MalformedNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL, fastOptions()...)
	var out map[string]interface{}
	if err := c.GetJSON(context.Background(), "/", nil, &out); err == nil {
		t.Fatal("Expected unmarshal error")
	}
	if calls.Load() != 1 {
		t.Errorf("Malformed payload should not be retried, got %d calls", calls.Load())
	}
}
