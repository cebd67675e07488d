package notify

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Paced は外部メールサービスへの送信レートを制限するデコレータ。
// 上限に達した場合はリクエストのコンテキストが許す範囲で待機する。
type Paced struct {
	next    Sender
	limiter *rate.Limiter
}

// NewPaced は毎秒perSecond件、最大burst件のバーストを許可するPacedを生成する。
func NewPaced(next Sender, perSecond float64, burst int) *Paced {
	if burst < 1 {
		burst = 1
	}
	return &Paced{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// SendOTP は送信枠を待ってから次のSenderに委譲する。
func (p *Paced) SendOTP(ctx context.Context, msg OTPMessage) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notification pacing aborted: %w", err)
	}
	return p.next.SendOTP(ctx, msg)
}
