package model

import "time"

// Account は登録済みユーザーのアカウントを表す。
// PasswordHash はレスポンスへ直列化してはならない。
type Account struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	IsVerified   bool

	// Challenge は未消費のOTPチャレンジ。nilはチャレンジなしを表す。
	Challenge *OTPChallenge

	// ResetAuthorizedUntil はパスワードリセット用OTP検証後に開く
	// リセット受付期間の終端。nilの場合はリセット不可。
	ResetAuthorizedUntil *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OTPChallenge はメールアドレスに紐付いた1回限りのOTPを表す。
type OTPChallenge struct {
	Code      string
	ExpiresAt time.Time
}

// Expired はnow時点でチャレンジが期限切れかどうかを返す。
func (c *OTPChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ResetPending はnow時点でパスワードリセットを受け付け可能かを返す。
func (a *Account) ResetPending(now time.Time) bool {
	return a.ResetAuthorizedUntil != nil && !now.After(*a.ResetAuthorizedUntil)
}

// AccountProfile はAPIレスポンス向けのアカウント情報。
// パスワードハッシュとOTP関連のフィールドを含まない。
type AccountProfile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Profile はアカウントの公開用プロジェクションを返す。
func (a *Account) Profile() AccountProfile {
	return AccountProfile{
		ID:         a.ID,
		Name:       a.Name,
		Email:      a.Email,
		Phone:      a.Phone,
		IsVerified: a.IsVerified,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}
