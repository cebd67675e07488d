package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/smartkhata/internal/account"
	"github.com/hitoshi/smartkhata/internal/middleware"
	"github.com/hitoshi/smartkhata/internal/model"
	"github.com/hitoshi/smartkhata/internal/security"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	Register(ctx context.Context, in account.RegisterInput) (*account.AuthResult, error)
	VerifyEmail(ctx context.Context, email, otp string) (*account.AuthResult, error)
	Login(ctx context.Context, email, password string) (*account.AuthResult, error)
	Logout(ctx context.Context, accountID string)
	GetAccount(ctx context.Context, accountID string) (*model.Account, error)
	RequestPasswordReset(ctx context.Context, email string) error
	VerifyPasswordResetOTP(ctx context.Context, email, otp string) (*account.ResetAuthorization, error)
	ResendPasswordResetOTP(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, newPassword, confirmPassword string) error
	ChangePassword(ctx context.Context, accountID, oldPassword, newPassword, confirmPassword string) error
	ResendVerificationOTP(ctx context.Context, email string) error
	UpdateProfile(ctx context.Context, accountID string, in account.UpdateProfileInput) (*model.Account, error)
	DeleteAccount(ctx context.Context, accountID, currentPassword string) error
}

// AccountHandler はアカウントライフサイクルのHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
	cookies CookieConfig
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface, cookies CookieConfig) *AccountHandler {
	return &AccountHandler{service: service, cookies: cookies}
}

// otpValue はOTPを文字列・数値どちらのJSONでも受け付ける。
// 数値の場合は先頭のゼロを補って桁数を揃える。
type otpValue string

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (o *otpValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*o = otpValue(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	v, err := n.Int64()
	if err != nil || v < 0 {
		return fmt.Errorf("invalid otp: %s", data)
	}
	*o = otpValue(fmt.Sprintf("%0*d", security.OTPLength, v))
	return nil
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type otpRequest struct {
	Email string   `json:"email"`
	OTP   otpValue `json:"otp"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resetPasswordRequest struct {
	Email           string `json:"email"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// updateProfileRequest は"phone"と"phoneNumber"の両方の名前を受け付ける。
type updateProfileRequest struct {
	Name            *string `json:"name"`
	Phone           *string `json:"phone"`
	PhoneNumber     *string `json:"phoneNumber"`
	CurrentPassword string  `json:"currentPassword"`
}

type deleteAccountRequest struct {
	CurrentPassword string `json:"currentPassword"`
}

// Register は新規登録を処理する。
// POST /api/users/register
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, w, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	res, err := h.service.Register(r.Context(), account.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.cookies.setSessionCookie(w, res.Token)
	writeSuccess(w, http.StatusCreated, "User registered successfully. Please verify your email.", envelope{
		"user": res.Account.Profile(),
	})
}

// VerifyEmail は登録時のOTPを検証する。
// POST /api/users/verify-email
func (h *AccountHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeBody(r, w, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	res, err := h.service.VerifyEmail(r.Context(), req.Email, string(req.OTP))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.cookies.setSessionCookie(w, res.Token)
	writeSuccess(w, http.StatusOK, "Email verified successfully", envelope{
		"user": res.Account.Profile(),
	})
}

// Login はログインを処理する。
// POST /api/users/login
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, w, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	res, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.cookies.setSessionCookie(w, res.Token)
	writeSuccess(w, http.StatusOK, "Login successful", envelope{
		"user": res.Account.Profile(),
	})
}

// Logout はセッションCookieを削除する。セッションがなくても成功する。
// POST /api/users/logout
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	h.service.Logout(r.Context(), userID)

	h.cookies.clearSessionCookie(w)
	writeSuccess(w, http.StatusOK, "Logged out successfully", nil)
}

// Me は現在のアカウント情報を返す。
// GET /api/users/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	acc, err := h.service.GetAccount(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", envelope{"user": acc.Profile()})
}

// SendForgotPasswordOTP はパスワードリセット用OTPを送信する。
// POST /api/users/send-forget-password-otp
func (h *AccountHandler) SendForgotPasswordOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeBody(r, w, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "OTP sent to your email", nil)
}

// VerifyForgotPasswordOTP はパスワードリセット用OTPを検証する。
// POST /api/users/forgot-password
func (h *AccountHandler) VerifyForgotPasswordOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeBody(r, w, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	auth, err := h.service.VerifyPasswordResetOTP(r.Context(), req.Email, string(req.OTP))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "OTP verified. You can now reset your password", envelope{
		"data": auth,
	})
}

// ResendForgotPasswordOTP はパスワードリセット用OTPを再送信する。
// POST /api/users/resend-forgot-password-otp
func (h *AccountHandler) ResendForgotPasswordOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeBody(r, w, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.ResendPasswordResetOTP(r.Context(), req.Email); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "OTP resent to your email", nil)
}

// ResetPassword はリセット受付期間中のパスワードを置き換える。
// POST /api/users/reset-password
func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeBody(r, w, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Email, req.NewPassword, req.ConfirmPassword); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Password reset successfully", nil)
}

// ResendOTP は登録確認用OTPを再送信する。
// POST /api/users/resend-otp
func (h *AccountHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeBody(r, w, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.ResendVerificationOTP(r.Context(), req.Email); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "OTP resent successfully", nil)
}

// ChangePassword はログイン中のパスワード変更を処理する。
// PUT /api/users/change-password
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := decodeBody(r, w, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Password changed successfully", nil)
}

// UpdateProfile は表示名・電話番号を更新する。
// PUT /api/users/update-profile
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := decodeBody(r, w, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	phone := req.Phone
	if phone == nil {
		phone = req.PhoneNumber
	}

	acc, err := h.service.UpdateProfile(r.Context(), userID, account.UpdateProfileInput{
		Name:            req.Name,
		Phone:           phone,
		CurrentPassword: req.CurrentPassword,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Profile updated successfully", envelope{"user": acc.Profile()})
}

// DeleteAccount はアカウントを削除してセッションCookieを削除する。
// DELETE /api/users/delete-account
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req deleteAccountRequest
	if err := decodeBody(r, w, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), userID, req.CurrentPassword); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.cookies.clearSessionCookie(w)
	writeSuccess(w, http.StatusOK, "Account deleted successfully", nil)
}
