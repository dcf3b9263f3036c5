package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthCookie: имя cookie с JWT.
const AuthCookie = "auth_token"

// TokenTTL: срок жизни токена.
const TokenTTL = 24 * time.Hour

type ctxKey struct{}

// Claims: стандартные утверждения и ключ пользователя.
type Claims struct {
	jwt.RegisteredClaims
	UserKey string `json:"user_key"`
}

var errInvalidToken = errors.New("invalid token")

// BuildToken подписывает JWT для пользователя.
func BuildToken(userKey, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserKey: userKey,
	})
	return token.SignedString([]byte(secret))
}

// ParseToken проверяет подпись и срок и возвращает ключ пользователя.
func ParseToken(tokenString, secret string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.UserKey == "" {
		return "", errInvalidToken
	}
	return claims.UserKey, nil
}

// SetLoginCookie выпускает токен и кладёт его в cookie ответа.
func SetLoginCookie(w http.ResponseWriter, userKey, secret string) (string, error) {
	token, err := BuildToken(userKey, secret)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(TokenTTL),
	})
	return token, nil
}

// WithAuth кладёт ключ пользователя в контекст, если cookie валидна.
// Анонимные запросы пропускаются дальше: доступ решают хендлеры.
func WithAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(AuthCookie)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			userKey, err := ParseToken(c.Value, secret)
			if err != nil {
				logger.Debugw("auth: invalid token", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKey{}, userKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserKeyFromContext возвращает ключ аутентифицированного пользователя.
func GetUserKeyFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKey{}).(string)
	return v, ok && v != ""
}
