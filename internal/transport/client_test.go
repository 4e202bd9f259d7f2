package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 10 * time.Millisecond}
}

func TestPostJSONSucceedsOnFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(testConfig())
	var out struct{ OK bool }
	err := c.PostJSON(context.Background(), srv.URL, map[string]string{"hello": "world"}, &out)
	require.NoError(t, err)
	require.True(t, out.OK)
}

func TestPostJSONRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(testConfig())
	err := c.PostJSON(context.Background(), srv.URL, map[string]string{}, nil)
	require.NoError(t, err)
	require.Equal(t, int32(3), calls.Load())
}

func TestPostJSONGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(testConfig())
	err := c.PostJSON(context.Background(), srv.URL, map[string]string{}, nil)
	require.Error(t, err)
	require.Equal(t, int32(3), calls.Load())
}

func TestPostJSONDoesNotRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(testConfig())
	err := c.PostJSON(context.Background(), srv.URL, map[string]string{}, nil)
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load())
}

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	require.Equal(t, 20*time.Millisecond, nextBackoff(10*time.Millisecond, time.Second))
	require.Equal(t, time.Second, nextBackoff(800*time.Millisecond, time.Second))
}
