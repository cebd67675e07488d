package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/smartkhata/internal/model"
)

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusGone, model.NewOTPExpiredError())

	resp := w.Result()
	if resp.StatusCode != http.StatusGone {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusGone)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json; charset=utf-8", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Success {
		t.Error("success = true, want false")
	}
	if body.Code != model.ErrCodeOTPExpired || body.Message != "OTP expired" {
		t.Errorf("unexpected body: %+v", body)
	}
	if body.Category == "" || body.Action == "" {
		t.Errorf("category and action must be set: %+v", body)
	}
}

// TestWriteInternalServerError は内部エラーが一般的なメッセージで返ることを検証する。
func TestWriteInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Code != model.ErrCodeServerFault || body.Category != "system" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestWriteHelpers_StatusAndCode(t *testing.T) {
	tests := []struct {
		name     string
		write    func(http.ResponseWriter)
		wantCode int
		wantErr  string
	}{
		{"unauthorized", WriteUnauthorized, http.StatusUnauthorized, model.ErrCodeUnauthorized},
		{"route not found", WriteRouteNotFound, http.StatusNotFound, model.ErrCodeRouteNotFound},
		{"server fault", WriteInternalServerError, http.StatusInternalServerError, model.ErrCodeServerFault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			var body ErrorResponseBody
			decodeJSON(t, w, &body)
			if body.Success || body.Code != tt.wantErr {
				t.Errorf("body = %+v, want code %s", body, tt.wantErr)
			}
		})
	}
}
