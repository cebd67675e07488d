package notify

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retrying は一時的な送信失敗を指数バックオフで再送するSender。
// ErrRejectedを含むエラーとコンテキストの終了は再送しない。
type Retrying struct {
	next     Sender
	attempts uint64
	base     time.Duration
	maxDelay time.Duration
}

// NewRetrying は最大attempts回まで送信を試みるRetryingを生成する。
func NewRetrying(next Sender, attempts uint64, base time.Duration) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	return &Retrying{next: next, attempts: attempts, base: base, maxDelay: 2 * time.Second}
}

// SendOTP は次のSenderへ委譲し、一時的な失敗であれば再送する。
func (r *Retrying) SendOTP(ctx context.Context, msg OTPMessage) error {
	backoff := retry.WithCappedDuration(r.maxDelay, retry.NewExponential(r.base))
	backoff = retry.WithMaxRetries(r.attempts-1, backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := r.next.SendOTP(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrRejected) || ctx.Err() != nil {
			return err
		}
		return retry.RetryableError(err)
	})
}
