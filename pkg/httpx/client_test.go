package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDoJSONDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	}))
	defer srv.Close()

	c := New(zap.NewNop(), Opts{MaxAttempts: 1})
	var out struct {
		Name string `json:"name"`
	}
	err := c.DoJSON(context.Background(), http.MethodGet, srv.URL,
		map[string]string{"X-Api-Key": "secret"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Name)
}

func TestDoJSONRetriesOnServerError(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(zap.NewNop(), Opts{MaxAttempts: 3, RetryDelay: time.Millisecond})
	err := c.DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), calls.Load())
}

func TestDoJSONExhaustsAttempts(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(zap.NewNop(), Opts{MaxAttempts: 2, RetryDelay: time.Millisecond})
	err := c.DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "http 500")
	assert.Equal(t, int64(2), calls.Load())
}

func TestDoJSONContextCancelStopsRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(zap.NewNop(), Opts{MaxAttempts: 10, RetryDelay: 50 * time.Millisecond})

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := c.DoJSON(ctx, http.MethodGet, srv.URL, nil, nil)
	require.Error(t, err)
	assert.Less(t, calls.Load(), int64(10))
}
