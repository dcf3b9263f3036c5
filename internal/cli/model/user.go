package model

import (
	"fmt"
	"strings"
	"unicode"
)

// User: учётная запись продавца/покупателя.
type User struct {
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	CredentialHash string `json:"credential_hash"` // bcrypt
}

func (User) Kind() string { return "user" }

// Facet у пользователей нет категорий.
func (User) Facet() string { return "" }

func (u User) Terms() []string { return []string{u.Username, u.DisplayName} }

// Validate проверяет поля пользователя.
func (u User) Validate() error {
	if err := checkText("username", u.Username, MaxNameLen); err != nil {
		return err
	}
	if strings.IndexFunc(u.Username, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: username must not contain spaces", ErrInvalid)
	}
	if err := checkText("display name", u.DisplayName, MaxNameLen); err != nil {
		return err
	}
	if u.CredentialHash == "" {
		return fmt.Errorf("%w: credential hash is required", ErrInvalid)
	}
	return nil
}
