package handlers

import (
	"net/http"

	cmodel "Tianguis/internal/cli/model"
	"Tianguis/internal/config"
	"Tianguis/internal/middleware"
	"Tianguis/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UserHandler: регистрация, вход и учётная запись пользователя.
type UserHandler struct {
	UserService *service.UserService
	Logger      *zap.SugaredLogger
	Config      *config.Config
}

func NewUserHandler(userService *service.UserService, logger *zap.SugaredLogger, cfg *config.Config) *UserHandler {
	return &UserHandler{UserService: userService, Logger: logger, Config: cfg}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success     bool   `json:"success"`
	UserKey     string `json:"user_key"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Token       string `json:"token"`
}

// Register принимает учётную запись (запись протокола синхронизации с bcrypt-хешем).
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var rec cmodel.Record[cmodel.User]
	if err := decodeJSON(r, &rec); err != nil {
		h.Logger.Warnw("Register: invalid request body", "error", err)
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	u, err := h.UserService.Register(r.Context(), rec)
	if err != nil {
		writeError(w, h.Logger, "Register", err)
		return
	}
	if _, err := middleware.SetLoginCookie(w, u.Key, h.Config.AuthSecret); err != nil {
		h.Logger.Errorw("Register: failed to issue token", "error", err)
	}
	writeJSON(w, http.StatusOK, u.Record())
}

// Login проверяет пароль и выдаёт токен в cookie и в теле ответа.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	u, err := h.UserService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.Logger, "Login", err)
		return
	}
	token, err := middleware.SetLoginCookie(w, u.Key, h.Config.AuthSecret)
	if err != nil {
		writeError(w, h.Logger, "Login", err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Success:     true,
		UserKey:     u.Key,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Token:       token,
	})
}

// List отдаёт только учётную запись вызывающего.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	userKey, ok := requireUser(w, r)
	if !ok {
		return
	}
	u, err := h.UserService.Get(r.Context(), userKey)
	if err != nil {
		writeError(w, h.Logger, "Users", err)
		return
	}
	writeJSON(w, http.StatusOK, []cmodel.Record[cmodel.User]{u.Record()})
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userKey, ok := requireUser(w, r)
	if !ok {
		return
	}
	var rec cmodel.Record[cmodel.User]
	if err := decodeJSON(r, &rec); err != nil || rec.Key != chi.URLParam(r, "key") {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := h.UserService.Update(r.Context(), userKey, rec); err != nil {
		writeError(w, h.Logger, "UpdateUser", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type userSyncRequest struct {
	Records []cmodel.Record[cmodel.User] `json:"records"`
}

func (h *UserHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userKey, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req userSyncRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	res, err := h.UserService.Sync(r.Context(), userKey, req.Records)
	if err != nil {
		writeError(w, h.Logger, "SyncUsers", err)
		return
	}
	writeJSON(w, http.StatusOK, cmodel.SyncBatch[cmodel.User]{ServerRecords: res.ServerRecords, Updates: res.Updates, Rejected: res.Rejected})
}
