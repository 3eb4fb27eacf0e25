// Package auth - JWT-авторизация операторов.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/iurnickita/topuprouter/internal/auth/config"
)

type Auth interface {
	BuildToken(operator string) (string, error)
	Operator(tokenString string) (string, error)
	Middleware(h http.HandlerFunc) http.HandlerFunc
}

// Заголовок с именем оператора после успешной проверки токена
const HeaderOperatorKey = "X-Operator"

var (
	ErrNoSecret     = errors.New("operator auth is not configured")
	ErrInvalidToken = errors.New("invalid token")
)

type Claims struct {
	jwt.RegisteredClaims
}

type auth struct {
	cfg config.Config
	now func() time.Time
}

func NewAuth(cfg config.Config) Auth {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &auth{cfg: cfg, now: time.Now}
}

func (a *auth) BuildToken(operator string) (string, error) {
	if a.cfg.SecretKey == "" {
		return "", ErrNoSecret
	}
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.TokenTTL)),
		},
	})
	return token.SignedString([]byte(a.cfg.SecretKey))
}

func (a *auth) Operator(tokenString string) (string, error) {
	if a.cfg.SecretKey == "" {
		return "", ErrNoSecret
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(a.cfg.SecretKey), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (a *auth) Middleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			http.Error(w, ErrInvalidToken.Error(), http.StatusUnauthorized)
			return
		}
		operator, err := a.Operator(tokenString)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		r.Header.Set(HeaderOperatorKey, operator)

		h.ServeHTTP(w, r)
	}
}
