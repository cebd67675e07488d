// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, account, transaction, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidInput         = "INVALID_INPUT"
	ErrCodeConflict             = "CONFLICT"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeAlreadyVerified      = "ALREADY_VERIFIED"
	ErrCodeNotVerified          = "NOT_VERIFIED"
	ErrCodeInvalidOTP           = "INVALID_OTP"
	ErrCodeOTPExpired           = "OTP_EXPIRED"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeResetNotAuthorized   = "RESET_NOT_AUTHORIZED"
	ErrCodeTransactionNotFound  = "TRANSACTION_NOT_FOUND"
	ErrCodeServerFault          = "INTERNAL_ERROR"
	ErrCodeRouteNotFound        = "ROUTE_NOT_FOUND"
	ErrCodeOriginNotAllowed     = "ORIGIN_NOT_ALLOWED"
	ErrCodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
)

// NewInvalidInputError は入力値不正エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  reason,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewConflictError はメールアドレス重複エラーを生成する。
func NewConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  "User already exists with this email",
		Category: "account",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewAccountNotFoundError はアカウントが見つからない場合のエラーを生成する。
func NewAccountNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "User not found",
		Category: "account",
		Action:   "メールアドレスを確認するか、新規登録してください。",
	}
}

// NewAlreadyVerifiedError は認証済みアカウントに対する再認証エラーを生成する。
func NewAlreadyVerifiedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyVerified,
		Message:  "User already verified",
		Category: "account",
		Action:   "そのままログインしてください。",
	}
}

// NewNotVerifiedError は未認証アカウントによる操作エラーを生成する。
func NewNotVerifiedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotVerified,
		Message:  "Please verify your email first",
		Category: "account",
		Action:   "メールに届いたOTPでアカウントを認証してください。",
	}
}

// NewInvalidOTPError はOTP不一致エラーを生成する。
func NewInvalidOTPError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOTP,
		Message:  "Invalid OTP",
		Category: "auth",
		Action:   "メールに記載されたOTPを正確に入力してください。",
	}
}

// NewOTPExpiredError はOTP期限切れエラーを生成する。
func NewOTPExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeOTPExpired,
		Message:  "OTP expired",
		Category: "auth",
		Action:   "OTPを再送信してから、もう一度お試しください。",
	}
}

// NewInvalidCredentialsError はパスワード不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid credentials",
		Category: "auth",
		Action:   "パスワードを確認してください。",
	}
}

// NewUnauthorizedError はセッション未確立エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewResetNotAuthorizedError はパスワードリセットが許可されていない場合のエラーを生成する。
// パスワードリセット用OTPの検証を経ていないか、その有効期限が過ぎている。
func NewResetNotAuthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeResetNotAuthorized,
		Message:  "Password reset is not authorized, verify the reset OTP first",
		Category: "auth",
		Action:   "パスワードリセット用のOTPを検証してから、再度お試しください。",
	}
}

// NewTransactionNotFoundError は取引が見つからない場合のエラーを生成する。
func NewTransactionNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeTransactionNotFound,
		Message:  fmt.Sprintf("Transaction not found: %s", id),
		Category: "transaction",
		Action:   "取引IDを確認してください。",
	}
}

// NewServerFaultError はクライアントへ返す汎用の内部エラーを生成する。
// 詳細はログにのみ記録し、レスポンスには含めない。
func NewServerFaultError() *APIError {
	return &APIError{
		Code:     ErrCodeServerFault,
		Message:  "Server error",
		Category: "system",
		Action:   "しばらく時間をおいて再度お試しください。",
	}
}

// NewRouteNotFoundError は未定義のルートへのリクエストに対するエラーを生成する。
func NewRouteNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeRouteNotFound,
		Message:  "Route not found",
		Category: "system",
		Action:   "URLを確認してください。",
	}
}

// NewOriginNotAllowedError は許可されていないオリジンからの状態変更リクエストに対するエラーを生成する。
func NewOriginNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeOriginNotAllowed,
		Message:  "Origin not allowed",
		Category: "auth",
		Action:   "許可されたフロントエンドから操作してください。",
	}
}

// NewUnsupportedMediaTypeError はJSON以外のリクエストボディに対するエラーを生成する。
func NewUnsupportedMediaTypeError() *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedMediaType,
		Message:  "Content-Type must be application/json",
		Category: "validation",
		Action:   "Content-Type: application/jsonでJSONを送信してください。",
	}
}
