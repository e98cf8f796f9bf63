package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/authgate/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// CreateConsuming は認証コードの削除とセッションの作成を同一トランザクションで行う。
// DELETEが認証コード消費の直列化ポイントとなり、同じコードに対する
// 同時の検証成功のうち1件だけがセッションを得る。消費済み認証コードだけが残り
// セッションが無い、という中間状態はトランザクションにより発生しない。
func (r *PostgresSessionRepo) CreateConsuming(ctx context.Context, session *model.Session, codeID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 認証コードを消費（削除）
	result, err := tx.ExecContext(ctx,
		`DELETE FROM verification_codes WHERE id = $1`,
		codeID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete verification code: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrVerificationConsumed
	}

	var userAppID sql.NullString
	if session.UserApplicationID != "" {
		userAppID = sql.NullString{String: session.UserApplicationID, Valid: true}
	}

	// セッションを作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, access_token, expires_at, user_application_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		session.ID, session.UserID, session.AccessToken,
		session.ExpiresAt, userAppID, session.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAccessToken
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
