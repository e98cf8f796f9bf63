package mail

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

// otpMailSubject は認証コードメールの件名。
const otpMailSubject = "Your verification code"

// OTPMailParams は認証コードメールのテンプレートに渡すデータ。
type OTPMailParams struct {
	Code      string
	ExpiresAt time.Time

	// ExpiresInMinutes はテンプレート実行時に算出される。
	ExpiresInMinutes int
}

// otpMailTemplate は認証コードメールの本文テンプレート。
const otpMailTemplate = `Hi,

This is your verification code:

{{.Code}}

The code is valid for {{.ExpiresInMinutes}} minutes.

If you did not request a verification code, you can ignore this email.
`

var otpTemplate = template.Must(template.New("otp").Parse(otpMailTemplate))

// RenderOTPMail は認証コードメールの本文を生成する。
func RenderOTPMail(params OTPMailParams) (string, error) {
	minutes := int(time.Until(params.ExpiresAt).Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	params.ExpiresInMinutes = minutes

	var b strings.Builder
	if err := otpTemplate.Execute(&b, params); err != nil {
		return "", fmt.Errorf("failed to render otp mail: %w", err)
	}
	return b.String(), nil
}
