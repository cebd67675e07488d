package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// APIMailerConfig はHTTPメールAPIの設定。
type APIMailerConfig struct {
	BaseURL string // 例: https://api.resend.com
	APIKey  string
	From    string
}

// APIMailer はResend互換のHTTPメールAPIでOTPメールを送信する。
type APIMailer struct {
	httpClient *http.Client
	logger     *slog.Logger
	cfg        APIMailerConfig
}

// NewAPIMailer はAPIMailerを生成する。
// 本番ではsecurity.NewOutboundClientで生成したクライアントを渡す。
func NewAPIMailer(httpClient *http.Client, logger *slog.Logger, cfg APIMailerConfig) *APIMailer {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &APIMailer{
		httpClient: httpClient,
		logger:     logger,
		cfg:        cfg,
	}
}

type sendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendOTP はPOST {BaseURL}/emails でOTPメールを送信する。
// 2xx以外のステータスはエラーとして返す。429以外の4xxはErrRejectedとする。
func (m *APIMailer) SendOTP(ctx context.Context, msg OTPMessage) error {
	subject, body, err := Render(msg)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(sendEmailRequest{
		From:    m.cfg.From,
		To:      []string{msg.Email},
		Subject: subject,
		HTML:    body,
	})
	if err != nil {
		return fmt.Errorf("failed to encode mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create mail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "SmartKhata/1.0")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.Error("メールAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("purpose", string(msg.Purpose)),
		)
		return fmt.Errorf("mail api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		m.logger.Error("メールAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", string(detail)),
		)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return fmt.Errorf("%w: mail api returned status %d", ErrRejected, resp.StatusCode)
		}
		return fmt.Errorf("mail api returned status %d", resp.StatusCode)
	}

	return nil
}
