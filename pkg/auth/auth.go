// Package auth authenticates HTTP callers with static bearer tokens and
// carries the resulting user id in the request context.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

type contextKey string

// UIDContextKey is the context key for the authenticated user id.
const UIDContextKey contextKey = "auth_uid"

// Tokens maps bearer tokens to user ids.
type Tokens map[string]string

// ParseTokens parses "token=uid;token=uid".
func ParseTokens(s string) (Tokens, error) {
	out := Tokens{}
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, uid, ok := strings.Cut(pair, "=")
		token, uid = strings.TrimSpace(token), strings.TrimSpace(uid)
		if !ok || token == "" || uid == "" {
			return nil, errors.New("invalid auth token entry")
		}
		out[token] = uid
	}
	return out, nil
}

// Authenticate resolves the bearer token in an Authorization header value.
func (t Tokens) Authenticate(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", ErrInvalidToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", ErrMissingToken
	}
	uid, ok := t[token]
	if !ok {
		return "", ErrInvalidToken
	}
	return uid, nil
}

// RequireAuth rejects requests without a known bearer token with 401 and
// stores the caller's uid in the context otherwise.
func (t Tokens) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := t.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			writeAuthError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUID(r.Context(), uid)))
	})
}

// WithUID returns a copy of ctx carrying uid.
func WithUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, UIDContextKey, uid)
}

// UIDFromContext returns the authenticated uid, or "" when there is none.
func UIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UIDContextKey).(string)
	return uid
}

func writeAuthError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="trinity"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized", "message": err.Error()})
}
