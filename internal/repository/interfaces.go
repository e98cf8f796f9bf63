// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/authgate/internal/model"
)

// ApplicationRepository はテナント（アプリケーション）データの永続化インターフェース。
type ApplicationRepository interface {
	// FindByID は指定IDのアプリケーションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Application, error)

	// FindByName は名前でアプリケーションを検索する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Application, error)

	// Create はアプリケーションを作成する。
	// 同名レコードが既に存在する場合はErrDuplicateApplicationを返す。
	Create(ctx context.Context, app *model.Application) error

	// List は全アプリケーションを作成日時昇順で返す。
	List(ctx context.Context) ([]*model.Application, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はemailでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// 同一emailのレコードが既に存在する場合はErrDuplicateUserを返す。
	// emailのユニーク制約が同時作成の直列化ポイントとなる。
	Create(ctx context.Context, user *model.User) error
}

// UserApplicationRepository はユーザーとアプリケーションの紐付けの永続化インターフェース。
type UserApplicationRepository interface {
	// FindOrCreate は(userID, applicationID)の紐付けを取得し、存在しなければ作成する。
	// ON CONFLICT DO NOTHINGによるアトミックなinsert-if-absentで、
	// 同時リクエストでも紐付けは高々1行となる。
	FindOrCreate(ctx context.Context, link *model.UserApplication) (*model.UserApplication, error)
}

// VerificationCodeRepository はワンタイムパスコード記録の永続化インターフェース。
type VerificationCodeRepository interface {
	// Create は認証コードを作成する。
	Create(ctx context.Context, code *model.VerificationCode) error

	// FindByID は指定IDの認証コードを取得する。見つからない場合はnilを返す。
	// attemptsは加算しない。create-account経路の参照に使用する。
	FindByID(ctx context.Context, id string) (*model.VerificationCode, error)

	// IncrementAttempts はattemptsをアトミックに+1し、更新後のレコードを返す。
	// 加算はリクエストの成否に関わらず永続化される（単一UPDATE文のため）。
	// レコードが存在しない場合はnilを返す。
	IncrementAttempts(ctx context.Context, id string) (*model.VerificationCode, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// CreateConsuming は認証コードの削除とセッションの作成を同一トランザクションで行う。
	// 同じコードに対する同時の検証成功のうち、削除に成功した1件だけがセッションを得る。
	// 認証コードが既に消費済みの場合はErrVerificationConsumedを返す。
	// access_tokenのユニーク制約に違反した場合はErrDuplicateAccessTokenを返す。
	CreateConsuming(ctx context.Context, session *model.Session, codeID string) error
}
