// Package upstream - общая обвязка HTTP-клиентов внешних API:
// таймаут на вызов, ограниченный повтор с фиксированной паузой и типизированные ошибки.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/iurnickita/topuprouter/internal/upstream/config"
)

// Error - ответ внешнего API с неуспешным HTTP статусом.
type Error struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s request status: %d: %s", e.Service, e.StatusCode, e.Body)
}

// Permanent - ошибка клиента (4xx), повтор не поможет.
func (e *Error) Permanent() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// ErrRejected - провайдер ответил 2xx, но отказал в операции.
var ErrRejected = errors.New("rejected by provider")

func IsPermanent(err error) bool {
	var upErr *Error
	if errors.As(err, &upErr) {
		return upErr.Permanent()
	}
	return false
}

func NewClient(cfg config.Config, baseURL string) *resty.Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryWait).
		AddRetryCondition(shouldRetry)
	return client
}

// Повтор только для сетевых ошибок, таймаутов, 5xx и 429
func shouldRetry(resp *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

// Check переводит результат resty-запроса в ошибку.
func Check(service string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s request: %w", service, err)
	}
	if resp.IsError() {
		return &Error{Service: service, StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}
