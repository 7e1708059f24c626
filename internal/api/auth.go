package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const identityKey contextKey = "identity"

// Auth extracts a caller identity from a bearer token. The OAuth handshake
// and session mechanics live elsewhere; the pipeline only cares whether an
// identity is present. An empty secret disables identity extraction
// entirely, making every request anonymous.
type Auth struct {
	secret []byte
}

// NewAuth creates the identity middleware with the HS256 signing secret.
func NewAuth(secret string) *Auth {
	if secret == "" {
		return &Auth{}
	}
	return &Auth{secret: []byte(secret)}
}

// Identity returns the authenticated identity from the request context, or
// "" for anonymous requests.
func Identity(ctx context.Context) string {
	if id, ok := ctx.Value(identityKey).(string); ok {
		return id
	}
	return ""
}

// Optional attaches an identity when a valid bearer token is present.
// Absent tokens pass through as anonymous; present-but-invalid tokens are
// rejected so a caller never silently loses their history.
func (a *Auth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || len(a.secret) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := a.verify(header)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid token"})
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Required rejects requests without an authenticated identity.
func (a *Auth) Required(next http.Handler) http.Handler {
	optional := a.Optional(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" || len(a.secret) == 0 {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "authentication required"})
			return
		}
		optional.ServeHTTP(w, r)
	})
}

func (a *Auth) verify(header string) (string, error) {
	raw := strings.TrimPrefix(header, "Bearer ")
	if raw == header {
		return "", jwt.ErrTokenMalformed
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", jwt.ErrTokenInvalidSubject
	}
	return subject, nil
}
