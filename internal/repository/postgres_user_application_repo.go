package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/authgate/internal/model"
)

// PostgresUserApplicationRepo はPostgreSQLを使用したユーザー・アプリケーション紐付けリポジトリ。
type PostgresUserApplicationRepo struct {
	db *sql.DB
}

// NewPostgresUserApplicationRepo はPostgresUserApplicationRepoを生成する。
func NewPostgresUserApplicationRepo(db *sql.DB) *PostgresUserApplicationRepo {
	return &PostgresUserApplicationRepo{db: db}
}

// FindOrCreate は(userID, applicationID)の紐付けを取得し、存在しなければ作成する。
// ON CONFLICT DO NOTHINGにより同時リクエストでも紐付けは高々1行となる。
// INSERTが行を返さなかった場合（＝既存）は既存行を再読込して返す。
func (r *PostgresUserApplicationRepo) FindOrCreate(ctx context.Context, link *model.UserApplication) (*model.UserApplication, error) {
	created := &model.UserApplication{
		UserID:        link.UserID,
		ApplicationID: link.ApplicationID,
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO user_applications (id, user_id, application_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, application_id) DO NOTHING
		 RETURNING id, created_at`,
		link.ID, link.UserID, link.ApplicationID, link.CreatedAt,
	).Scan(&created.ID, &created.CreatedAt)

	if err == nil {
		return created, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to insert user application: %w", err)
	}

	// 既存行が勝った場合: 再読込して勝者を返す
	existing := &model.UserApplication{}
	err = r.db.QueryRowContext(ctx,
		`SELECT id, user_id, application_id, created_at
		 FROM user_applications
		 WHERE user_id = $1 AND application_id = $2`,
		link.UserID, link.ApplicationID,
	).Scan(&existing.ID, &existing.UserID, &existing.ApplicationID, &existing.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to find user application: %w", err)
	}

	return existing, nil
}

// compile-time interface check
var _ UserApplicationRepository = (*PostgresUserApplicationRepo)(nil)
