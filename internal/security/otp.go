package security

import (
	"crypto/rand"
	"fmt"
)

// OTPLength はOTPの桁数。
const OTPLength = 6

// GenerateOTP は暗号論的乱数から6桁の数字文字列を生成する。
func GenerateOTP() (string, error) {
	buf := make([]byte, OTPLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	// 250未満のバイトのみ使うと各桁が一様になる。それ以外は引き直す。
	digits := make([]byte, 0, OTPLength)
	for len(digits) < OTPLength {
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			digits = append(digits, '0'+b%10)
			if len(digits) == OTPLength {
				break
			}
		}
		if len(digits) < OTPLength {
			if _, err := rand.Read(buf); err != nil {
				return "", fmt.Errorf("failed to read random bytes: %w", err)
			}
		}
	}
	return string(digits), nil
}
