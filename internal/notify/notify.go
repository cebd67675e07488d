// Package notify はOTPをメールで届ける通知ゲートウェイを提供する。
// SMTP、HTTPメールAPI、ログ出力の各実装と、送信レート制御・再送のデコレータを含む。
package notify

import (
	"context"
	"errors"
	"time"
)

// ErrRejected は宛先不正やプロバイダーによる拒否など、再送しても成功しない失敗を表す。
var ErrRejected = errors.New("notification rejected")

// Purpose はOTP通知の用途を表す。
type Purpose string

const (
	// PurposeVerifyEmail は登録時のメールアドレス確認。
	PurposeVerifyEmail Purpose = "verify-email"
	// PurposeResetPassword はパスワードリセット。
	PurposeResetPassword Purpose = "reset-password"
)

// OTPMessage はOTP通知1件分の内容。
type OTPMessage struct {
	Email     string
	Name      string
	Code      string
	Purpose   Purpose
	ExpiresIn time.Duration
}

// Sender はOTPを利用者のメールアドレスへ送信する。
type Sender interface {
	SendOTP(ctx context.Context, msg OTPMessage) error
}

// SenderFunc は関数をSenderとして扱うためのアダプタ。
type SenderFunc func(ctx context.Context, msg OTPMessage) error

// SendOTP はf(ctx, msg)を呼び出す。
func (f SenderFunc) SendOTP(ctx context.Context, msg OTPMessage) error {
	return f(ctx, msg)
}
