// Package model はドメインモデルを定義する。
package model

import "time"

// Application は本サービスを利用する外部テナントを表す。
// 管理エンドポイント経由で作成され、以降は不変として扱う。
type Application struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// User はグローバルなエンドユーザーIDを表す。
// emailが唯一のID解決キーであり、重複は許されない。
// Attrsはアカウント作成時に与えられる自由形式のプロフィール属性。
type User struct {
	ID        string
	Email     string
	Attrs     map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserApplication はUserとApplicationの紐付けを表す。
// (UserID, ApplicationID) の組につき高々1行。
type UserApplication struct {
	ID            string
	UserID        string
	ApplicationID string
	CreatedAt     time.Time
}

// VerificationCode はメール送達されるワンタイムパスコードの記録を表す。
// IDはクライアントに渡すケーパビリティトークンであり、コード本体はメールでのみ届く。
// 検証成功で削除され、expiresAt超過またはattempts超過で永久に使用不能になる。
type VerificationCode struct {
	ID                string
	Code              string
	ExpiresAt         time.Time
	Attempts          int
	Meta              map[string]string // 少なくとも "email" を含む
	UserApplicationID string            // リクエスト時点でユーザーが既存だった場合のみ設定
	CreatedAt         time.Time
}

// Email はmetaからOTPの宛先メールアドレスを返す。
func (v *VerificationCode) Email() string {
	return v.Meta["email"]
}

// Session は認証成功後に発行されるベアラー資格情報を表す。
// 発行後は不変で、expiresAt超過のみが終了経路となる。
type Session struct {
	ID                string
	UserID            string
	AccessToken       string
	ExpiresAt         time.Time
	UserApplicationID string // テナントスコープが判明している場合のみ設定
	CreatedAt         time.Time
}
