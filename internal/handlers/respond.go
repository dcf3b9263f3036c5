package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"Tianguis/internal/middleware"
	"Tianguis/internal/service"

	"go.uber.org/zap"
)

// maxBody: предел тела запроса (пачка объявлений с картинками).
const maxBody = 8 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v)
}

// writeError переводит ошибку сервиса в HTTP-статус.
func writeError(w http.ResponseWriter, logger *zap.SugaredLogger, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrLoginTaken):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalid):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		logger.Errorw(op+": service error", "error", err)
		http.Error(w, "internal error", status)
		return
	}
	logger.Infow(op+": request refused", "status", status, "error", err)
	http.Error(w, err.Error(), status)
}

// requireUser достаёт ключ пользователя или отвечает 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userKey, ok := middleware.GetUserKeyFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
	return userKey, ok
}
