// Package validate はアカウント・問い合わせの入力フィールドを検証する。
package validate

import (
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/nyaruka/phonenumbers"
)

const (
	// MinNameLength は表示名の最小文字数。
	MinNameLength = 3
	// MaxNameLength は表示名の最大文字数。usersテーブルのname列に合わせる。
	MaxNameLength = 100
	// MaxEmailLength はメールアドレスの最大バイト数（RFC 5321の上限）。
	MaxEmailLength = 254
	// MinPasswordLength はパスワードの最小文字数。
	MinPasswordLength = 8
	// MaxPasswordBytes はbcryptが扱える最大バイト数。
	MaxPasswordBytes = 72
)

var (
	ErrEmailRequired    = errors.New("Email is required")
	ErrEmailInvalid     = errors.New("Please enter a valid email")
	ErrPhoneRequired    = errors.New("Phone number is required")
	ErrPhoneInvalid     = errors.New("Please enter a valid phone number")
	ErrEmailTooLong     = errors.New("Email must be at most 254 characters")
	ErrNameTooShort     = errors.New("Name must be at least 3 characters")
	ErrNameTooLong      = errors.New("Name must be at most 100 characters")
	ErrPasswordTooShort = errors.New("Password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("Password must be at most 72 bytes")
)

// NormalizeEmail は前後の空白を除去して小文字化する。
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Email は正規化済みのメールアドレスが妥当な形式かを検証する。
// 表示名付き（"Asha <asha@x.com>"）の形式は受け付けない。
func Email(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return ErrEmailInvalid
	}
	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return ErrEmailInvalid
	}
	return nil
}

// Name はトリム後の表示名が最小文字数を満たすかを検証する。
func Name(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < MinNameLength {
		return ErrNameTooShort
	}
	if n > MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}

// Password はパスワードの長さを検証する。
// 下限は文字数、上限はbcryptの制約によりバイト数で判定する。
func Password(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// PhoneValidator は地域の番号計画に基づいて電話番号を検証する。
type PhoneValidator struct {
	// DefaultRegion は国番号なしの番号を解釈する際のISO 3166-1地域コード。
	// 空の場合は "+国番号" 形式のみ受け付ける。
	DefaultRegion string
}

// NewPhoneValidator はデフォルト地域を指定してPhoneValidatorを生成する。
func NewPhoneValidator(defaultRegion string) *PhoneValidator {
	return &PhoneValidator{DefaultRegion: strings.ToUpper(strings.TrimSpace(defaultRegion))}
}

// Normalize は電話番号を検証し、E.164形式に正規化して返す。
func (v *PhoneValidator) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrPhoneRequired
	}

	region := v.DefaultRegion
	if strings.HasPrefix(raw, "+") {
		region = ""
	}
	if region == "" && !strings.HasPrefix(raw, "+") {
		return "", ErrPhoneInvalid
	}

	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", ErrPhoneInvalid
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrPhoneInvalid
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
