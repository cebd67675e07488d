// Package contact は公開問い合わせフォームの受付を提供する。
package contact

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/smartkhata/internal/model"
	"github.com/hitoshi/smartkhata/internal/repository"
	"github.com/hitoshi/smartkhata/internal/validate"
)

// 入力長の制約
const (
	MinNameLength    = 3
	MaxNameLength    = 50
	MaxSubjectLength = 100
	MinMessageLength = 10
	MaxMessageLength = 1000
)

// Sanitizer は自由記述テキストをプレーンテキストに変換する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Service は問い合わせメッセージの受付を行う。
type Service struct {
	repo      repository.ContactRepository
	sanitizer Sanitizer
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.ContactRepository, sanitizer Sanitizer) *Service {
	return &Service{repo: repo, sanitizer: sanitizer, now: time.Now}
}

// Input は問い合わせフォームの入力。
type Input struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Create は入力を無害化・検証して問い合わせメッセージを保存する。
func (s *Service) Create(ctx context.Context, in Input) (*model.ContactMessage, error) {
	name := s.sanitizer.Sanitize(in.Name)
	subject := s.sanitizer.Sanitize(in.Subject)
	message := s.sanitizer.Sanitize(in.Message)
	email := validate.NormalizeEmail(in.Email)

	if n := utf8.RuneCountInString(name); n < MinNameLength || n > MaxNameLength {
		return nil, model.NewInvalidInputError(
			fmt.Sprintf("Name must be between %d and %d characters", MinNameLength, MaxNameLength))
	}
	if err := validate.Email(email); err != nil {
		return nil, model.NewInvalidInputError(err.Error())
	}
	if utf8.RuneCountInString(subject) > MaxSubjectLength {
		return nil, model.NewInvalidInputError(
			fmt.Sprintf("Subject cannot exceed %d characters", MaxSubjectLength))
	}
	if n := utf8.RuneCountInString(message); n < MinMessageLength || n > MaxMessageLength {
		return nil, model.NewInvalidInputError(
			fmt.Sprintf("Message must be between %d and %d characters", MinMessageLength, MaxMessageLength))
	}

	msg := &model.ContactMessage{
		ID:         uuid.New().String(),
		Name:       name,
		Email:      email,
		Subject:    subject,
		Message:    message,
		IsResolved: false,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("問い合わせの保存に失敗しました: %w", err)
	}

	slog.Info("問い合わせを受け付けました",
		slog.String("contact_id", msg.ID),
	)
	return msg, nil
}
