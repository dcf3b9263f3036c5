package api

import (
	"context"
	"net/http"
	"strings"
)

// LoginRequest: тело /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse: ответ /api/login.
type LoginResponse struct {
	Success     bool   `json:"success"`
	UserKey     string `json:"user_key"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Token       string `json:"token"`
}

// Login проверяет учётные данные на сервере и возвращает токен.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	var out LoginResponse
	resp, data, err := c.send(ctx, http.MethodPost, "/api/login", LoginRequest{Username: username, Password: password})
	if err != nil {
		// для входа 401: неверный пароль, а не протухший токен
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return out, &RejectedError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		}
		return out, err
	}
	if err := decode(data, &out); err != nil {
		return out, err
	}
	if out.Token == "" {
		if tok, err := TokenFromResponse(resp); err == nil {
			out.Token = tok
		}
	}
	return out, nil
}
