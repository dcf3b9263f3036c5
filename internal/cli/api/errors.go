package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnavailable: сервер недоступен или ответил временной ошибкой; запрос имеет смысл повторить.
var ErrUnavailable = errors.New("server unavailable")

// RejectedError: сервер окончательно отклонил запрос (валидация, конфликт, права).
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rejected by server: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("rejected by server: %d %s", e.Status, e.Message)
}

// IsRejected сообщает, что ошибка: окончательный отказ сервера.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// classify переводит HTTP-статус в ошибку.
// 5xx, 401, 403, 408, 429: временные (ErrUnavailable), остальные 4xx: RejectedError.
func classify(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	msg := strings.TrimSpace(string(body))
	switch {
	case status >= 500,
		status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, status, msg)
	case status >= 400:
		return &RejectedError{Status: status, Message: msg}
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, status)
	}
}
