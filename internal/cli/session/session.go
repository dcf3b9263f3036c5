// Package session хранит состояние входа пользователя явным объектом вместо глобальных переменных.
package session

import (
	"errors"
	"sync"

	"Tianguis/internal/cli/model"
	"Tianguis/internal/cli/repo"
)

// ErrNoSession: пользователь не вошёл.
var ErrNoSession = errors.New("not logged in: run login or register")

// Session: текущая сессия CLI. Безопасна для конкурентного использования.
type Session struct {
	store repo.SessionStore

	mu    sync.RWMutex
	state *model.SessionState
}

// New создаёт пустую сессию. store может быть nil: тогда сессия живёт только в памяти.
func New(store repo.SessionStore) *Session {
	return &Session{store: store}
}

// Restore поднимает сохранённую сессию, если она есть.
func (s *Session) Restore() bool {
	if s.store == nil {
		return false
	}
	st, err := s.store.Load()
	if err != nil {
		return false
	}
	s.mu.Lock()
	s.state = &st
	s.mu.Unlock()
	return true
}

// Begin начинает сессию и сохраняет её.
func (s *Session) Begin(st model.SessionState) error {
	if st.UserKey == "" {
		return errors.New("empty user key")
	}
	if s.store != nil {
		if err := s.store.Save(st); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.state = &st
	s.mu.Unlock()
	return nil
}

// End завершает сессию и стирает сохранённую копию.
func (s *Session) End() error {
	s.mu.Lock()
	s.state = nil
	s.mu.Unlock()
	if s.store != nil {
		return s.store.Clear()
	}
	return nil
}

// Current возвращает состояние сессии.
func (s *Session) Current() (model.SessionState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return model.SessionState{}, false
	}
	return *s.state, true
}

// Require возвращает состояние или ErrNoSession.
func (s *Session) Require() (model.SessionState, error) {
	st, ok := s.Current()
	if !ok {
		return model.SessionState{}, ErrNoSession
	}
	return st, nil
}

// UserKey ключ текущего пользователя или пустая строка.
func (s *Session) UserKey() string {
	st, _ := s.Current()
	return st.UserKey
}

// Token токен сервера или пустая строка (в том числе в офлайн-сессии).
func (s *Session) Token() string {
	st, _ := s.Current()
	return st.Token
}
