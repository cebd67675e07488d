// Package security はパスワードハッシュ、セッショントークン、OTP生成、
// テキストのサニタイズ、外部送信用HTTPクライアントを提供する。
package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost はパスワードハッシュのデフォルトコスト。
const DefaultBcryptCost = 10

// maxPasswordBytes はbcryptが受け付ける平文の最大バイト数。
const maxPasswordBytes = 72

// PasswordHasher はbcryptによるパスワードハッシュと照合を行う。
// 平文パスワードをログやストレージに残してはならない。
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher はコストを指定してPasswordHasherを生成する。
// 0以下の場合はDefaultBcryptCostを使い、bcryptの有効範囲に丸める。
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{cost: cost}
}

// Cost は使用中のbcryptコストを返す。
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash は平文パスワードのbcryptハッシュを返す。
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// Verify は平文パスワードとハッシュが一致するかを定数時間で照合する。
// 不一致の場合は(false, nil)、ハッシュ自体が不正な場合はエラーを返す。
// 72バイトを超える平文はハッシュ化できないため常に不一致とする。
func (h *PasswordHasher) Verify(plaintext, hash string) (bool, error) {
	if len(plaintext) > maxPasswordBytes {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("failed to verify password: %w", err)
}
