package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/authgate/internal/model"
)

// PostgresVerificationCodeRepo はPostgreSQLを使用した認証コードリポジトリ。
type PostgresVerificationCodeRepo struct {
	db *sql.DB
}

// NewPostgresVerificationCodeRepo はPostgresVerificationCodeRepoを生成する。
func NewPostgresVerificationCodeRepo(db *sql.DB) *PostgresVerificationCodeRepo {
	return &PostgresVerificationCodeRepo{db: db}
}

// Create は認証コードを作成する。metaはJSONBとして格納する。
func (r *PostgresVerificationCodeRepo) Create(ctx context.Context, code *model.VerificationCode) error {
	meta, err := json.Marshal(code.Meta)
	if err != nil {
		return fmt.Errorf("failed to encode verification code meta: %w", err)
	}

	var userAppID sql.NullString
	if code.UserApplicationID != "" {
		userAppID = sql.NullString{String: code.UserApplicationID, Valid: true}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO verification_codes (id, code, expires_at, attempts, meta, user_application_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		code.ID, code.Code, code.ExpiresAt, code.Attempts, meta, userAppID, code.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert verification code: %w", err)
	}
	return nil
}

// FindByID は指定IDの認証コードを取得する。見つからない場合はnilを返す。
func (r *PostgresVerificationCodeRepo) FindByID(ctx context.Context, id string) (*model.VerificationCode, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, code, expires_at, attempts, meta, user_application_id, created_at
		 FROM verification_codes WHERE id = $1`,
		id,
	))
}

// IncrementAttempts はattemptsをアトミックに+1し、更新後のレコードを返す。
// 単一UPDATE文のため、後続の判定が失敗しても加算は残る。
// レコードが存在しない場合はnilを返す。
func (r *PostgresVerificationCodeRepo) IncrementAttempts(ctx context.Context, id string) (*model.VerificationCode, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`UPDATE verification_codes SET attempts = attempts + 1
		 WHERE id = $1
		 RETURNING id, code, expires_at, attempts, meta, user_application_id, created_at`,
		id,
	))
}

// scanOne は1行の認証コードレコードを復元する。見つからない場合はnilを返す。
func (r *PostgresVerificationCodeRepo) scanOne(row *sql.Row) (*model.VerificationCode, error) {
	code := &model.VerificationCode{}
	var meta []byte
	var userAppID sql.NullString

	err := row.Scan(
		&code.ID, &code.Code, &code.ExpiresAt, &code.Attempts,
		&meta, &userAppID, &code.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan verification code: %w", err)
	}

	if err := json.Unmarshal(meta, &code.Meta); err != nil {
		return nil, fmt.Errorf("failed to decode verification code meta: %w", err)
	}
	if userAppID.Valid {
		code.UserApplicationID = userAppID.String
	}

	return code, nil
}

// compile-time interface check
var _ VerificationCodeRepository = (*PostgresVerificationCodeRepo)(nil)
