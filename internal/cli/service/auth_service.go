package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"Tianguis/internal/cli/api"
	"Tianguis/internal/cli/model"
	"Tianguis/internal/cli/query"
	"Tianguis/internal/cli/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials: неверное имя пользователя или пароль.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrUsernameTaken: имя уже занято (известно локально).
var ErrUsernameTaken = errors.New("username already taken")

// Authenticator: серверная проверка учётных данных.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (api.LoginResponse, error)
}

// AuthService: юзкейс-уровень аутентификации для CLI.
type AuthService struct {
	users   *Engine[model.User]
	remote  Authenticator
	session *session.Session
	logger  *zap.SugaredLogger
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(users *Engine[model.User], remote Authenticator, sess *session.Session, logger *zap.SugaredLogger) *AuthService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &AuthService{users: users, remote: remote, session: sess, logger: logger}
}

// Register создаёт учётную запись. Без сети запись остаётся локально (ErrPendingOffline)
// и досылается при следующем входе.
func (a *AuthService) Register(ctx context.Context, username, displayName, password string) (model.Record[model.User], error) {
	if password == "" {
		return model.Record[model.User]{}, rejected("", fmt.Errorf("%w: password is required", model.ErrInvalid))
	}
	if _, ok, err := a.findUser(ctx, username); err != nil {
		return model.Record[model.User]{}, err
	} else if ok {
		return model.Record[model.User]{}, rejected("", ErrUsernameTaken)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.Record[model.User]{}, unknown("", "hash password", err)
	}
	username = strings.TrimSpace(username)
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = username
	}
	key := uuid.NewString()
	// учётная запись принадлежит сама себе
	rec := model.Record[model.User]{Key: key, OwnerKey: key, Payload: model.User{
		Username:       username,
		DisplayName:    displayName,
		CredentialHash: string(hash),
	}}
	return a.users.Create(ctx, rec)
}

// Login входит на сервере; если сервер недоступен: по локальной копии учётной записи (офлайн-сессия).
func (a *AuthService) Login(ctx context.Context, username, password string) (model.SessionState, error) {
	res, err := a.remote.Login(ctx, username, password)
	if err != nil && api.IsRejected(err) {
		// возможно, регистрация ещё не дошла до сервера
		if sent := a.completeRegistration(ctx, username, password); sent {
			res, err = a.remote.Login(ctx, username, password)
		}
	}
	switch {
	case err == nil:
		if res.UserKey == "" {
			return model.SessionState{}, errors.New("server returned empty user key")
		}
		st := model.SessionState{UserKey: res.UserKey, Username: res.Username, Token: res.Token}
		if st.Username == "" {
			st.Username = username
		}
		if err := a.session.Begin(st); err != nil {
			return model.SessionState{}, fmt.Errorf("save session: %w", err)
		}
		// локальная копия учётной записи нужна для входа без сети
		a.users.Refresh(ctx, st.UserKey)
		return st, nil
	case api.IsRejected(err):
		return model.SessionState{}, ErrInvalidCredentials
	default:
		a.logger.Warnw("login: server unavailable, trying local credentials", "username", username, "error", err)
		return a.loginOffline(ctx, username, password)
	}
}

func (a *AuthService) loginOffline(ctx context.Context, username, password string) (model.SessionState, error) {
	u, ok, err := a.findUser(ctx, username)
	if err != nil {
		return model.SessionState{}, err
	}
	if !ok || bcrypt.CompareHashAndPassword([]byte(u.Payload.CredentialHash), []byte(password)) != nil {
		return model.SessionState{}, ErrInvalidCredentials
	}
	st := model.SessionState{UserKey: u.Key, Username: u.Payload.Username, Offline: true}
	if err := a.session.Begin(st); err != nil {
		return model.SessionState{}, fmt.Errorf("save session: %w", err)
	}
	return st, nil
}

// completeRegistration досылает локально созданную учётную запись, если пароль к ней подходит.
func (a *AuthService) completeRegistration(ctx context.Context, username, password string) bool {
	u, ok, err := a.findUser(ctx, username)
	if err != nil || !ok || u.Synced {
		return false
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Payload.CredentialHash), []byte(password)) != nil {
		return false
	}
	if err := a.users.Resend(ctx, u.Key); err != nil {
		a.logger.Warnw("login: pending registration not accepted", "username", username, "error", err)
		return false
	}
	return true
}

func (a *AuthService) findUser(ctx context.Context, username string) (model.Record[model.User], bool, error) {
	rows, err := a.users.Snapshot(ctx, query.Filter{})
	if err != nil {
		return model.Record[model.User]{}, false, err
	}
	username = strings.TrimSpace(username)
	for _, r := range rows {
		if strings.EqualFold(r.Payload.Username, username) {
			return r, true, nil
		}
	}
	return model.Record[model.User]{}, false, nil
}

// Logout очищает локальный контекст аутентификации.
func (a *AuthService) Logout() error {
	return a.session.End()
}

// CurrentUser возвращает текущую сессию, если она установлена.
func (a *AuthService) CurrentUser() (model.SessionState, error) {
	return a.session.Require()
}
