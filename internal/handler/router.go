package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/smartkhata/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger             *slog.Logger
	TokenVerifier      middleware.TokenVerifier
	CORSAllowedOrigins []string
	HSTS               bool
	// HTTPMetrics はnilの場合は記録しない。
	HTTPMetrics    middleware.HTTPRecorder
	MetricsHandler http.Handler

	Cookies CookieConfig

	AccountService     AccountServiceInterface
	TransactionService TransactionServiceInterface
	ContactService     ContactServiceInterface
	DB                 Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → Metrics → SecurityHeaders → CORS
//
// 保護されたルートには追加でAuthミドルウェアを適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	r.Use(middleware.NewCSRFMiddleware(deps.CORSAllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteRouteNotFound(w)
	})

	accountHandler := NewAccountHandler(deps.AccountService, deps.Cookies)
	txHandler := NewTransactionHandler(deps.TransactionService)
	contactHandler := NewContactHandler(deps.ContactService)
	requireAuth := middleware.NewAuthMiddleware(deps.TokenVerifier)
	optionalAuth := middleware.NewOptionalAuthMiddleware(deps.TokenVerifier)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.DB))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/register", accountHandler.Register)
		r.Post("/verify-email", accountHandler.VerifyEmail)
		r.Post("/login", accountHandler.Login)
		r.Post("/send-forget-password-otp", accountHandler.SendForgotPasswordOTP)
		r.Post("/forgot-password", accountHandler.VerifyForgotPasswordOTP)
		r.Post("/resend-forgot-password-otp", accountHandler.ResendForgotPasswordOTP)
		r.Post("/reset-password", accountHandler.ResetPassword)
		r.Post("/resend-otp", accountHandler.ResendOTP)
		r.With(optionalAuth).Post("/logout", accountHandler.Logout)

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", accountHandler.Me)
			r.Put("/change-password", accountHandler.ChangePassword)
			r.Put("/update-profile", accountHandler.UpdateProfile)
			r.Delete("/delete-account", accountHandler.DeleteAccount)
		})
	})

	r.Route("/api/transactions", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/add", txHandler.Add)
		r.Get("/all", txHandler.All)
		r.Get("/recent-transaction", txHandler.Recent)
		r.Put("/update/{id}", txHandler.Update)
		r.Delete("/delete/{id}", txHandler.Delete)
		r.Get("/stats", txHandler.Stats)
		r.Delete("/clear", txHandler.Clear)
		r.Get("/filter", txHandler.Filter)
	})

	r.Route("/api/contact", func(r chi.Router) {
		r.Post("/create", contactHandler.Create)
	})

	return r
}
