package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func identityEcho(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = Identity(r.Context())
	})
}

func TestIdentity_DefaultsToAnonymous(t *testing.T) {
	if id := Identity(context.Background()); id != "" {
		t.Errorf("Expected empty identity, got %q", id)
	}
}

func TestOptional_NoHeaderIsAnonymous(t *testing.T) {
	var got string
	h := NewAuth("secret").Optional(identityEcho(&got))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected pass-through, got %d", rec.Code)
	}
	if got != "" {
		t.Errorf("Expected anonymous identity, got %q", got)
	}
}

func TestOptional_ValidTokenAttachesIdentity(t *testing.T) {
	var got string
	h := NewAuth("secret").Optional(identityEcho(&got))

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}).
		SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got != "alice" {
		t.Errorf("Expected identity alice, got %q", got)
	}
}

func TestOptional_MalformedHeaderRejected(t *testing.T) {
	var got string
	h := NewAuth("secret").Optional(identityEcho(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "not-a-bearer-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for malformed header, got %d", rec.Code)
	}
}

func TestOptional_WrongAlgorithmRejected(t *testing.T) {
	var got string
	h := NewAuth("secret").Optional(identityEcho(&got))

	// alg=none style tokens never verify.
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for unsigned token, got %d", rec.Code)
	}
}

func TestOptional_DisabledSecretIgnoresTokens(t *testing.T) {
	var got string
	h := NewAuth("").Optional(identityEcho(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected pass-through with auth disabled, got %d", rec.Code)
	}
	if got != "" {
		t.Errorf("Expected anonymous identity, got %q", got)
	}
}

func TestRequired_NoHeaderRejected(t *testing.T) {
	var got string
	h := NewAuth("secret").Required(identityEcho(&got))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without header, got %d", rec.Code)
	}
}

func TestRequired_DisabledSecretRejects(t *testing.T) {
	var got string
	h := NewAuth("").Required(identityEcho(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with auth disabled, got %d", rec.Code)
	}
}

func TestTokenMissingSubjectRejected(t *testing.T) {
	var got string
	h := NewAuth("secret").Optional(identityEcho(&got))

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{}).
		SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for subject-less token, got %d", rec.Code)
	}
}
