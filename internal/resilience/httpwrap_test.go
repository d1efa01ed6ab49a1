package resilience_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-jewellery/internal/resilience"
)

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"rate":83.12}`))
	}))
	defer srv.Close()

	cl := resilience.HTTPClient{
		Client:      srv.Client(),
		Breaker:     resilience.NewBreaker(10, 0.9, time.Second),
		BaseBackoff: time.Millisecond,
		MaxAttempts: 3,
	}
	var out struct {
		Rate float64 `json:"rate"`
	}
	require.NoError(t, cl.GetJSON(context.Background(), srv.URL, &out))
	require.Equal(t, 83.12, out.Rate)
	require.EqualValues(t, 3, calls.Load())
}

func TestGetJSONClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cl := resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 3, BaseBackoff: time.Millisecond}
	err := cl.GetJSON(context.Background(), srv.URL, &struct{}{})
	require.ErrorIs(t, err, resilience.ErrUpstreamStatus)
	require.EqualValues(t, 1, calls.Load())
}

func TestOpenBreakerShortCircuits(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cl := resilience.HTTPClient{
		Client:      srv.Client(),
		Breaker:     resilience.NewBreaker(1, 0.5, time.Minute),
		BaseBackoff: time.Millisecond,
		MaxAttempts: 3,
	}
	err := cl.GetJSON(context.Background(), srv.URL, &struct{}{})
	require.True(t, errors.Is(err, resilience.ErrOpenCircuit), "got %v", err)
	require.EqualValues(t, 1, calls.Load())
}
