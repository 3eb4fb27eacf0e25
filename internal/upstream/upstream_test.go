package upstream

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iurnickita/topuprouter/internal/upstream/config"
)

func testConfig() config.Config {
	return config.Config{Timeout: time.Second, RetryCount: 2, RetryWait: time.Millisecond}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(), srv.URL)
	resp, err := client.R().Get("/")
	require.NoError(t, Check("test", resp, err))
	require.EqualValues(t, 3, calls.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(testConfig(), srv.URL)
	resp, err := client.R().Get("/")
	err = Check("test", resp, err)
	require.Error(t, err)
	require.True(t, IsPermanent(err))
	require.EqualValues(t, 1, calls.Load())
}

func TestIsPermanent(t *testing.T) {
	require.True(t, IsPermanent(&Error{StatusCode: http.StatusBadRequest}))
	require.True(t, IsPermanent(fmt.Errorf("wrapped: %w", &Error{StatusCode: http.StatusForbidden})))
	require.False(t, IsPermanent(fmt.Errorf("wrapped: %w", ErrRejected)))
	require.False(t, IsPermanent(&Error{StatusCode: http.StatusTooManyRequests}))
	require.False(t, IsPermanent(&Error{StatusCode: http.StatusServiceUnavailable}))
	require.False(t, IsPermanent(fmt.Errorf("dial tcp: timeout")))
}
