package middleware

import (
	"log/slog"
	"mime"
	"net/http"
	"slices"

	"github.com/hitoshi/smartkhata/internal/model"
)

// NewCSRFMiddleware は状態変更リクエストに対するクロスサイト送信の防御ミドルウェアを返す。
// セッションCookieはSameSite=Noneで送られ得るため、次の2点で判定する。
//
//  1. Originヘッダーがある場合は許可リストに含まれていること
//  2. ボディがある場合はContent-Typeがapplication/jsonであること
//
// application/jsonはCORSの単純リクエストにならないため、
// 許可されていないオリジンからはプリフライトで止まる。
// 安全なメソッド（GET, HEAD, OPTIONS）は検証しない。
func NewCSRFMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			// 1. Originの検証（ブラウザ以外のクライアントはOriginを送らない）
			if origin := r.Header.Get("Origin"); origin != "" && !slices.Contains(allowedOrigins, origin) {
				slog.Warn("cross-site request rejected",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("origin", origin),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewOriginNotAllowedError())
				return
			}

			// 2. ボディのメディアタイプの検証
			if r.ContentLength != 0 && !isJSONContentType(r.Header.Get("Content-Type")) {
				slog.Warn("non-JSON request body rejected",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("content_type", r.Header.Get("Content-Type")),
				)
				WriteErrorResponse(w, http.StatusUnsupportedMediaType, model.NewUnsupportedMediaTypeError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

func isJSONContentType(v string) bool {
	mediaType, _, err := mime.ParseMediaType(v)
	return err == nil && mediaType == "application/json"
}
