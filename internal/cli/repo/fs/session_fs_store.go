package fs

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"Tianguis/internal/cli/model"
	"Tianguis/internal/cli/repo"
)

// ErrNoSession: сохранённой сессии нет.
var ErrNoSession = errors.New("no stored session")

// SessionFSStore: файловое хранилище сессии CLI (JSON, 0600).
type SessionFSStore struct {
	// Path переопределяет расположение файла; по умолчанию <UserConfigDir>/Tianguis/session.json.
	Path string
}

var _ repo.SessionStore = SessionFSStore{}

// ConfigDir возвращает каталог настроек клиента, создавая его при необходимости.
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, "Tianguis")
	if err := os.MkdirAll(p, 0o700); err != nil {
		return "", err
	}
	return p, nil
}

func (s SessionFSStore) path() (string, error) {
	if s.Path != "" {
		if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
			return "", err
		}
		return s.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.json"), nil
}

// Save сохраняет сессию в файл.
func (s SessionFSStore) Save(st model.SessionState) error {
	if st.UserKey == "" {
		return errors.New("empty user key")
	}
	p, err := s.path()
	if err != nil {
		return err
	}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}

// Load читает сессию из файла.
func (s SessionFSStore) Load() (model.SessionState, error) {
	p, err := s.path()
	if err != nil {
		return model.SessionState{}, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.SessionState{}, ErrNoSession
		}
		return model.SessionState{}, err
	}
	var st model.SessionState
	if err := json.Unmarshal(b, &st); err != nil {
		return model.SessionState{}, err
	}
	if st.UserKey == "" {
		return model.SessionState{}, ErrNoSession
	}
	return st, nil
}

// Clear удаляет файл сессии. Отсутствие файла ошибкой не считается.
func (s SessionFSStore) Clear() error {
	p, err := s.path()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
