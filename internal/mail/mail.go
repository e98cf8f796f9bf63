// Package mail は認証コードメールの送信を提供する。
// 送信はベストエフォートであり、失敗は呼び出し元でログに記録される。
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig はSMTP送信の設定。
type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// SMTPSender はnet/smtpを使用したメール送信実装。
type SMTPSender struct {
	config SMTPConfig

	// send はテストから送信処理を差し替えるためのフック。
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender はSMTPSenderを生成する。
func NewSMTPSender(config SMTPConfig) *SMTPSender {
	return &SMTPSender{
		config: config,
		send:   smtp.SendMail,
	}
}

// Send はメールを送信する。htmlが空でない場合はHTMLメールとして送信する。
// ctxのキャンセルは送信開始前にのみ反映される（net/smtpは途中キャンセル不可）。
func (s *SMTPSender) Send(ctx context.Context, to, subject, text, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body := text
	contentType := `text/plain; charset="UTF-8"`
	if html != "" {
		body = html
		contentType = `text/html; charset="UTF-8"`
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(&msg, "\r\n%s", body)

	addr := s.config.Host + ":" + s.config.Port
	var auth smtp.Auth
	if s.config.User != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Pass, s.config.Host)
	}

	if err := s.send(addr, auth, s.config.From, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// SendOTP は認証コードメールをテンプレートから構築して送信する。
func (s *SMTPSender) SendOTP(ctx context.Context, to, code string, expiresAt time.Time) error {
	text, err := RenderOTPMail(OTPMailParams{
		Code:      code,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return err
	}
	return s.Send(ctx, to, otpMailSubject, text, "")
}
