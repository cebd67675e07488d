package notify

import (
	"context"
	"log/slog"
)

// LogSender はメールを送らずにログへ記録する開発用Sender。
// OTPはDEBUGレベルでのみ出力する。
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender はLogSenderを生成する。
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendOTP は送信内容をログに出力する。
func (s *LogSender) SendOTP(ctx context.Context, msg OTPMessage) error {
	s.logger.InfoContext(ctx, "otp notification (log provider)",
		slog.String("email", msg.Email),
		slog.String("purpose", string(msg.Purpose)),
	)
	s.logger.DebugContext(ctx, "otp notification code",
		slog.String("email", msg.Email),
		slog.String("code", msg.Code),
	)
	return nil
}
