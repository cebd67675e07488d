package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/smartkhata/internal/model"
)

type mockVerifier struct {
	verifyFn func(token string) (string, error)
}

func (m *mockVerifier) Verify(token string) (string, error) {
	return m.verifyFn(token)
}

func validTokenVerifier() *mockVerifier {
	return &mockVerifier{verifyFn: func(token string) (string, error) {
		if token == "good-token" {
			return "user-123", nil
		}
		return "", errors.New("invalid token")
	}}
}

func TestAuthMiddleware_CookieInjectsUserID(t *testing.T) {
	var captured string
	handler := NewAuthMiddleware(validTokenVerifier())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("expected user ID in context: %v", err)
		}
		captured = id
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "good-token"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if captured != "user-123" {
		t.Errorf("user ID = %q, want user-123", captured)
	}
}

func TestAuthMiddleware_BearerHeader(t *testing.T) {
	called := false
	handler := NewAuthMiddleware(validTokenVerifier())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "bearer good-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Error("expected handler to be called with bearer token")
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"no token", func(r *http.Request) {}},
		{"empty cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: ""}) }},
		{"invalid token", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "forged"}) }},
		{"malformed header", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAuthMiddleware(validTokenVerifier())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler must not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
			var body ErrorResponseBody
			decodeJSON(t, w, &body)
			if body.Code != model.ErrCodeUnauthorized {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
			}
		})
	}
}

func TestUserIDFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := UserIDFromContext(req.Context()); err == nil {
		t.Error("expected error for context without user ID")
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		wantID string
	}{
		{"valid token", "good-token", "user-123"},
		{"invalid token", "bad-token", ""},
		{"no token", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			called := false
			h := NewOptionalAuthMiddleware(validTokenVerifier())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				captured, _ = UserIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/users/logout", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if !called {
				t.Fatal("next handler should always be called")
			}
			if captured != tt.wantID {
				t.Errorf("user id = %q, want %q", captured, tt.wantID)
			}
		})
	}
}
