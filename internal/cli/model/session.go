package model

// SessionState: данные активной сессии CLI.
type SessionState struct {
	UserKey  string `json:"user_key"`
	Username string `json:"username"`
	Token    string `json:"token,omitempty"`
	// Offline: вход выполнен по локальной копии учётной записи, без токена сервера.
	Offline bool `json:"offline,omitempty"`
}
