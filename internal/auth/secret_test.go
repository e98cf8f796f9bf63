package auth

import (
	"encoding/hex"
	"testing"
)

func TestGenerateOTP_LengthAndCharset(t *testing.T) {
	for _, digits := range []int{4, 6, 8} {
		code, err := generateOTP(digits)
		if err != nil {
			t.Fatalf("generateOTP(%d) がエラーを返した: %v", digits, err)
		}
		if len(code) != digits {
			t.Errorf("桁数 = %d, want %d", len(code), digits)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Errorf("数字以外の文字が含まれる: %q", code)
			}
		}
	}
}

func TestGenerateOTP_InvalidDigits(t *testing.T) {
	for _, digits := range []int{0, -1} {
		if _, err := generateOTP(digits); err == nil {
			t.Errorf("generateOTP(%d) はエラーを返すべき", digits)
		}
	}
}

func TestGenerateOTP_NotConstant(t *testing.T) {
	// 確率的テスト: 20回生成して全て同一になる確率は無視できるほど小さい
	first, err := generateOTP(6)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		code, err := generateOTP(6)
		if err != nil {
			t.Fatal(err)
		}
		if code != first {
			return
		}
	}
	t.Error("20回の生成が全て同一のコードを返した")
}

func TestGenerateAccessToken_HexLength(t *testing.T) {
	token, err := generateAccessToken(32)
	if err != nil {
		t.Fatalf("generateAccessToken(32) がエラーを返した: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("トークン長 = %d, want 64", len(token))
	}
	if _, err := hex.DecodeString(token); err != nil {
		t.Errorf("hex文字列としてデコードできない: %v", err)
	}
}

func TestGenerateAccessToken_Unique(t *testing.T) {
	a, err := generateAccessToken(32)
	if err != nil {
		t.Fatal(err)
	}
	b, err := generateAccessToken(32)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("連続生成したトークンが一致した")
	}
}

func TestGenerateAccessToken_InvalidLength(t *testing.T) {
	if _, err := generateAccessToken(0); err == nil {
		t.Error("generateAccessToken(0) はエラーを返すべき")
	}
}
