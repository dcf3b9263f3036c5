package service

import "errors"

var (
	// ErrLoginTaken: имя пользователя занято другой учётной записью.
	ErrLoginTaken = errors.New("login already taken")
	// ErrInvalidCredentials: неверное имя пользователя или пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden: запись принадлежит другому пользователю.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound: записи нет.
	ErrNotFound = errors.New("not found")
	// ErrInvalid: запись не прошла проверку.
	ErrInvalid = errors.New("invalid record")
)
