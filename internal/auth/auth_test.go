package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iurnickita/topuprouter/internal/auth/config"
)

func TestBuildTokenRoundTrip(t *testing.T) {
	a := NewAuth(config.Config{SecretKey: "secret"})

	token, err := a.BuildToken("alice")
	require.NoError(t, err)

	operator, err := a.Operator(token)
	require.NoError(t, err)
	require.Equal(t, "alice", operator)

	_, err = NewAuth(config.Config{SecretKey: "other"}).Operator(token)
	require.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	a := &auth{cfg: config.Config{SecretKey: "secret", TokenTTL: time.Minute}, now: func() time.Time {
		return time.Now().Add(-time.Hour)
	}}
	token, err := a.BuildToken("alice")
	require.NoError(t, err)

	_, err = NewAuth(config.Config{SecretKey: "secret"}).Operator(token)
	require.Error(t, err)
}

func TestNoSecret(t *testing.T) {
	a := NewAuth(config.Config{})
	_, err := a.BuildToken("alice")
	require.ErrorIs(t, err, ErrNoSecret)
	_, err = a.Operator("whatever")
	require.ErrorIs(t, err, ErrNoSecret)
}

func TestMiddleware(t *testing.T) {
	a := NewAuth(config.Config{SecretKey: "secret"})
	token, err := a.BuildToken("alice")
	require.NoError(t, err)

	h := a.Middleware(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get(HeaderOperatorKey)))
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/admin/audit", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	h(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "alice", w.Body.String())

	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/admin/audit", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
