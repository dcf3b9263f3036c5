package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AuthCookie: имя cookie с JWT, которую выставляет сервер.
const AuthCookie = "auth_token"

// Client: HTTP-клиент к серверу Tianguis.
type Client struct {
	baseURL string
	http    *http.Client
	token   func() string
}

// NewClient создаёт клиента. token вызывается перед каждым запросом; может быть nil.
func NewClient(baseURL string, timeout time.Duration, token func() string) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		token:   token,
	}
}

// BaseURL возвращает адрес сервера.
func (c *Client) BaseURL() string { return c.baseURL }

// send отправляет JSON-запрос. Если токен непустой, он передаётся как auth cookie.
// Ответ не-2xx превращается в ошибку (см. classify).
func (c *Client) send(ctx context.Context, method, path string, payload any) (*http.Response, []byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.token(); token != "" {
		req.Header.Set("Cookie", AuthCookie+"="+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if err := classify(resp.StatusCode, data); err != nil {
		return resp, data, err
	}
	return resp, data, nil
}

// doJSON выполняет запрос и декодирует тело ответа в out (если out != nil).
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	_, data, err := c.send(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(data, out)
}

func decode(data []byte, out any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// TokenFromResponse извлекает auth cookie из ответа.
func TokenFromResponse(resp *http.Response) (string, error) {
	if resp == nil {
		return "", errors.New("nil response")
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == AuthCookie && ck.Value != "" {
			return ck.Value, nil
		}
	}
	return "", errors.New("no auth cookie in response")
}
