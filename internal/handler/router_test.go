package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/smartkhata/internal/middleware"
	"github.com/hitoshi/smartkhata/internal/model"
	"github.com/hitoshi/smartkhata/internal/transaction"
)

type stubVerifier struct {
	tokens map[string]string
}

func (v stubVerifier) Verify(token string) (string, error) {
	if id, ok := v.tokens[token]; ok {
		return id, nil
	}
	return "", errors.New("invalid token")
}

type stubPinger struct {
	err error
}

func (p stubPinger) PingContext(ctx context.Context) error {
	return p.err
}

type recordedRequest struct {
	method, route string
	status        int
}

type stubHTTPRecorder struct {
	requests []recordedRequest
}

func (r *stubHTTPRecorder) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	r.requests = append(r.requests, recordedRequest{method: method, route: route, status: status})
}

func newTestRouter(deps *RouterDeps) http.Handler {
	if deps.TokenVerifier == nil {
		deps.TokenVerifier = stubVerifier{tokens: map[string]string{"good-token": "acc-1"}}
	}
	if deps.AccountService == nil {
		deps.AccountService = &mockAccountService{}
	}
	if deps.TransactionService == nil {
		deps.TransactionService = &mockTransactionService{}
	}
	if deps.ContactService == nil {
		deps.ContactService = &mockContactService{}
	}
	deps.CORSAllowedOrigins = []string{"http://localhost:5173"}
	deps.Cookies = testCookies
	return NewRouter(deps)
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(&RouterDeps{DB: stubPinger{}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRouter_Health_DatabaseDown(t *testing.T) {
	router := newTestRouter(&RouterDeps{DB: stubPinger{err: errors.New("connection refused")}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(&RouterDeps{})

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/users/me"},
		{http.MethodPut, "/api/users/change-password"},
		{http.MethodPut, "/api/users/update-profile"},
		{http.MethodDelete, "/api/users/delete-account"},
		{http.MethodPost, "/api/transactions/add"},
		{http.MethodGet, "/api/transactions/all"},
		{http.MethodGet, "/api/transactions/recent-transaction"},
		{http.MethodPut, "/api/transactions/update/tx-1"},
		{http.MethodDelete, "/api/transactions/delete/tx-1"},
		{http.MethodGet, "/api/transactions/stats"},
		{http.MethodDelete, "/api/transactions/clear"},
		{http.MethodGet, "/api/transactions/filter"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(rt.method, rt.path, nil))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRouter_Me_WithCookie(t *testing.T) {
	svc := &mockAccountService{
		getAccountFn: func(ctx context.Context, accountID string) (*model.Account, error) {
			require.Equal(t, "acc-1", accountID)
			return testAccount(), nil
		},
	}
	router := newTestRouter(&RouterDeps{AccountService: svc})

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.AddCookie(&http.Cookie{Name: middleware.TokenCookieName, Value: "good-token"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Logout_IsPublic(t *testing.T) {
	router := newTestRouter(&RouterDeps{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/users/logout", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_Logout_PassesSessionUser(t *testing.T) {
	var got string
	svc := &mockAccountService{
		logoutFn: func(ctx context.Context, accountID string) { got = accountID },
	}
	router := newTestRouter(&RouterDeps{AccountService: svc})

	req := httptest.NewRequest(http.MethodPost, "/api/users/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.TokenCookieName, Value: "good-token"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acc-1", got)
}

func TestRouter_TransactionUpdate_PassesPathID(t *testing.T) {
	var gotID string
	svc := &mockTransactionService{
		deleteFn: func(ctx context.Context, userID, id string) error {
			gotID = id
			return nil
		},
	}
	router := newTestRouter(&RouterDeps{TransactionService: svc})

	req := httptest.NewRequest(http.MethodDelete, "/api/transactions/delete/tx-42", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tx-42", gotID)
}

func TestRouter_UnknownRouteReturnsJSON404(t *testing.T) {
	router := newTestRouter(&RouterDeps{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ROUTE_NOT_FOUND")
}

func TestRouter_RecordsRoutePattern(t *testing.T) {
	rec := &stubHTTPRecorder{}
	router := newTestRouter(&RouterDeps{HTTPMetrics: rec})

	req := jsonRequest(http.MethodPut, "/api/transactions/update/tx-1", `{"note":"x"}`)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Len(t, rec.requests, 1)
	assert.Equal(t, "/api/transactions/update/{id}", rec.requests[0].route)
	assert.Equal(t, http.StatusOK, rec.requests[0].status)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(&RouterDeps{
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# metrics", w.Body.String())
}

func TestRouter_CrossSiteWritesAreRejected(t *testing.T) {
	tests := []struct {
		name        string
		origin      string
		contentType string
		wantStatus  int
	}{
		{"text/plainのフォーム送信", "https://evil.example", "text/plain", http.StatusForbidden},
		{"Originなしのtext/plain", "", "text/plain", http.StatusUnsupportedMediaType},
		{"未許可オリジンのJSON", "https://evil.example", "application/json", http.StatusForbidden},
		{"許可オリジンのJSON", "http://localhost:5173", "application/json", http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &mockTransactionService{
				addFn: func(ctx context.Context, userID string, in transaction.Input) (*model.Transaction, error) {
					called = true
					return &model.Transaction{ID: "tx-1", UserID: userID}, nil
				},
			}
			router := newTestRouter(&RouterDeps{TransactionService: svc})

			req := httptest.NewRequest(http.MethodPost, "/api/transactions/add",
				strings.NewReader(`{"type":"expense","amount":10,"category":"Food"}`))
			req.Header.Set("Content-Type", tt.contentType)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			req.AddCookie(&http.Cookie{Name: middleware.TokenCookieName, Value: "good-token"})
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantStatus == http.StatusCreated, called)
		})
	}
}
