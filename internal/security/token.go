package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL はセッショントークンの有効期間（7日間）。
const DefaultTokenTTL = 7 * 24 * time.Hour

// ErrInvalidToken は署名不一致・期限切れ・形式不正のトークンを表す。
var ErrInvalidToken = errors.New("invalid token")

// sessionClaims はセッショントークンのクレーム。
type sessionClaims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// TokenIssuer はHS256署名のセッショントークンを発行・検証する。
// サーバー側に状態を持たないため、失効は有効期限の経過によってのみ起きる。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer は署名鍵と有効期間を指定してTokenIssuerを生成する。
// ttlが0以下の場合はDefaultTokenTTLを使う。
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL はトークンの有効期間を返す。
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue はアカウントIDを埋め込んだ署名済みトークンを発行する。
func (i *TokenIssuer) Issue(accountID string) (string, error) {
	now := i.now()
	claims := sessionClaims{
		ID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify はトークンの署名と有効期限を検証し、アカウントIDを返す。
// HS256以外の署名方式はErrInvalidTokenとして拒否する。
func (i *TokenIssuer) Verify(tokenString string) (string, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.ID == "" {
		return "", ErrInvalidToken
	}
	return claims.ID, nil
}
