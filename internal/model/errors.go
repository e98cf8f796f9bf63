package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeInvalidTenant   = "INVALID_TENANT"
	ErrCodeOTPNotFound     = "OTP_NOT_FOUND"
	ErrCodeOTPExpired      = "OTP_EXPIRED_OR_EXHAUSTED"
	ErrCodeOTPInvalid      = "OTP_INVALID"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeDuplicateTenant = "DUPLICATE_TENANT"
)

// NewInvalidInputError は必須フィールド欠落・不正エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "必須フィールドを確認して再度お試しください。",
	}
}

// NewInvalidTenantError は存在しないapplicationIdが指定された場合のエラーを生成する。
func NewInvalidTenantError(applicationID string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTenant,
		Message:  fmt.Sprintf("指定されたアプリケーションが見つかりません: %s", applicationID),
		Category: "validation",
		Action:   "applicationIdを確認してください。",
	}
}

// NewOTPNotFoundError はotpIdが未知または消費済みの場合のエラーを生成する。
func NewOTPNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeOTPNotFound,
		Message:  "指定された認証コードが見つかりません。",
		Category: "auth",
		Action:   "新しい認証コードをリクエストしてください。",
	}
}

// NewOTPExpiredError は有効期限超過または試行回数超過のエラーを生成する。
// この状態は終端であり、同じコードで再試行しても成功しない。
func NewOTPExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeOTPExpired,
		Message:  "認証コードの有効期限または試行回数の上限を超えました。",
		Category: "auth",
		Action:   "新しい認証コードをリクエストしてください。",
	}
}

// NewOTPInvalidError はコード不一致のエラーを生成する。
// 試行回数の上限までは同じotpIdで再試行できる。
func NewOTPInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeOTPInvalid,
		Message:  "認証コードが一致しません。",
		Category: "auth",
		Action:   "メールに記載されたコードを確認して再度お試しください。",
	}
}

// NewForbiddenError は管理APIの共有シークレット不一致エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "APIシークレットが不正です。",
		Category: "auth",
		Action:   "X-Api-Secretヘッダーを確認してください。",
	}
}

// NewDuplicateTenantError は同名アプリケーションの重複登録エラーを生成する。
func NewDuplicateTenantError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateTenant,
		Message:  fmt.Sprintf("同名のアプリケーションが既に存在します: %s", name),
		Category: "validation",
		Action:   "別の名前を指定してください。",
	}
}
