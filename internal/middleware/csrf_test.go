package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/smartkhata/internal/model"
)

func TestCSRFMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		origin      string
		contentType string
		body        string
		wantStatus  int
		wantCode    string
	}{
		{"GETは検証しない", http.MethodGet, "https://evil.example", "", "", http.StatusOK, ""},
		{"許可オリジンのJSON", http.MethodPost, "http://localhost:5173", "application/json", `{}`, http.StatusOK, ""},
		{"charset付きJSON", http.MethodPut, "http://localhost:5173", "application/json; charset=utf-8", `{}`, http.StatusOK, ""},
		{"Originなしのクライアント", http.MethodPost, "", "application/json", `{}`, http.StatusOK, ""},
		{"ボディなしのDELETE", http.MethodDelete, "", "", "", http.StatusOK, ""},
		{"未許可オリジン", http.MethodPost, "https://evil.example", "application/json", `{}`, http.StatusForbidden, model.ErrCodeOriginNotAllowed},
		{"未許可オリジンのボディなしPOST", http.MethodPost, "https://evil.example", "", "", http.StatusForbidden, model.ErrCodeOriginNotAllowed},
		{"text/plainのフォーム送信", http.MethodPost, "", "text/plain", `{"type":"expense"}`, http.StatusUnsupportedMediaType, model.ErrCodeUnsupportedMediaType},
		{"Content-Typeなし", http.MethodPost, "http://localhost:5173", "", `{}`, http.StatusUnsupportedMediaType, model.ErrCodeUnsupportedMediaType},
		{"urlencodedフォーム", http.MethodPost, "", "application/x-www-form-urlencoded", "a=b", http.StatusUnsupportedMediaType, model.ErrCodeUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := NewCSRFMiddleware([]string{"http://localhost:5173"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/api/transactions/add", strings.NewReader(tt.body))
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantCode == "" {
				if !called {
					t.Error("next handler should have been called")
				}
				return
			}
			if called {
				t.Error("next handler must not be called for a rejected request")
			}
			var body ErrorResponseBody
			decodeJSON(t, w, &body)
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}
