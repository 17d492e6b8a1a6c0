// Package middleware содержит HTTP middleware сервиса продажи билетов.
package middleware

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const userIDKey contextKey = "userID"

const authCookieName = "auth_token"

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// ErrInvalidToken возвращается для подделанных, просроченных токенов и токенов неверного типа.
var ErrInvalidToken = errors.New("invalid token")

type tokenClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair содержит пару токенов, выдаваемую при входе.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// AuthMiddleware выпускает и проверяет JWT (HS256) пользователей.
type AuthMiddleware struct {
	secretKey  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewAuthMiddleware создаёт AuthMiddleware. При пустом секрете генерируется случайный ключ,
// и токены перестают быть действительными после перезапуска.
func NewAuthMiddleware(secret string, accessTTL, refreshTTL time.Duration) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}

	return &AuthMiddleware{
		secretKey:  key,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// IssueTokens выпускает access- и refresh-токены для пользователя.
func (a *AuthMiddleware) IssueTokens(userID int64) (*TokenPair, error) {
	now := a.now()

	access, err := a.sign(userID, tokenTypeAccess, now, a.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := a.sign(userID, tokenTypeRefresh, now, a.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(a.accessTTL),
	}, nil
}

// ParseRefreshToken проверяет refresh-токен и возвращает идентификатор пользователя.
func (a *AuthMiddleware) ParseRefreshToken(token string) (int64, error) {
	return a.parse(token, tokenTypeRefresh)
}

// Middleware проверяет access-токен из заголовка Authorization или cookie
// и добавляет идентификатор пользователя в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			if cookie, err := r.Cookie(authCookieName); err == nil {
				token = cookie.Value
			}
		}

		userID, err := a.parse(token, tokenTypeAccess)
		if err != nil {
			writeUnauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetAuthCookie сохраняет access-токен в HttpOnly cookie для браузерных клиентов.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, tokens *TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    tokens.AccessToken,
		Path:     "/",
		Expires:  tokens.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAuthCookie удаляет cookie авторизации.
func (a *AuthMiddleware) ClearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *AuthMiddleware) sign(userID int64, typ string, now time.Time, ttl time.Duration) (string, error) {
	claims := tokenClaims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

func (a *AuthMiddleware) parse(token, typ string) (int64, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return a.secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || claims.Type != typ {
		return 0, ErrInvalidToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "unauthorized"})
}

// GetUserIDFromContext извлекает идентификатор пользователя из контекста запроса.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// WithUserID возвращает контекст с идентификатором пользователя.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
