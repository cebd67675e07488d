package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// SMTPConfig はSMTP送信の接続設定。
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// ImplicitTLS は465番ポートなど接続直後からTLSを使う場合にtrueにする。
	ImplicitTLS bool
}

// SMTPMailer はSMTPサーバー経由でOTPメールを送信する。
type SMTPMailer struct {
	cfg  SMTPConfig
	dial func(ctx context.Context, msg *mail.Msg) error
}

// NewSMTPMailer はSMTPMailerを生成する。
// 接続は送信ごとに確立する。
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if cfg.ImplicitTLS {
		opts = append(opts, mail.WithSSL())
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	return &SMTPMailer{
		cfg: cfg,
		dial: func(ctx context.Context, msg *mail.Msg) error {
			return client.DialAndSendWithContext(ctx, msg)
		},
	}, nil
}

// SendOTP はOTPメールを組み立てて送信する。
func (m *SMTPMailer) SendOTP(ctx context.Context, msg OTPMessage) error {
	out, err := m.buildMessage(msg)
	if err != nil {
		return err
	}
	if err := m.dial(ctx, out); err != nil {
		return fmt.Errorf("failed to send otp mail: %w", err)
	}
	return nil
}

func (m *SMTPMailer) buildMessage(msg OTPMessage) (*mail.Msg, error) {
	subject, body, err := Render(msg)
	if err != nil {
		return nil, err
	}

	out := mail.NewMsg()
	if err := out.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("%w: invalid from address: %v", ErrRejected, err)
	}
	if err := out.To(msg.Email); err != nil {
		return nil, fmt.Errorf("%w: invalid recipient address: %v", ErrRejected, err)
	}
	out.Subject(subject)
	out.SetBodyString(mail.TypeTextHTML, body)
	return out, nil
}
