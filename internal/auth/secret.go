package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// generateOTP は指定桁数の10進数字列を生成する。
// 各桁はcrypto/randから独立かつ一様に引く。OTP自体は短く低エントロピーだが、
// 有効期限と試行回数上限で補われる前提のため桁数のエントロピーには依存しない。
func generateOTP(digits int) (string, error) {
	if digits < 1 {
		return "", fmt.Errorf("invalid otp digits: %d", digits)
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate otp digit: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}

// generateAccessToken は暗号的に安全な乱数バイト列を小文字hexで返す。
// byteLenは乱数のバイト長で、返る文字列は2倍の長さになる。
func generateAccessToken(byteLen int) (string, error) {
	if byteLen < 1 {
		return "", fmt.Errorf("invalid access token length: %d", byteLen)
	}

	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
