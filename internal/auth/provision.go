package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/repository"
)

// resolveOrCreateUser はmetaのemailからユーザーを解決し、存在しなければ作成する。
// attrsは新規作成時のみ反映され、既存ユーザーのプロフィールは変更しない。
// metaのemailが常にID解決キーであり、attrsにemailが含まれていても無視される。
// emailのユニーク制約違反は「他のリクエストが先に作成した」ことを意味するため、
// 再読込して勝者をそのまま返す。
func (s *Service) resolveOrCreateUser(ctx context.Context, meta, attrs map[string]string) (*model.User, error) {
	email := meta["email"]
	if email == "" {
		return nil, fmt.Errorf("verification code meta has no email")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	// attrsとmetaを統合する。emailはカラムに昇格するためattrsからは除く。
	merged := make(map[string]string, len(attrs))
	for k, v := range attrs {
		if k == "email" {
			continue
		}
		merged[k] = v
	}

	now := s.now()
	newUser := &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		Attrs:     merged,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.userRepo.Create(ctx, newUser)
	if err == nil {
		slog.Info("new user created",
			slog.String("user_id", newUser.ID),
		)
		return newUser, nil
	}
	if !errors.Is(err, repository.ErrDuplicateUser) {
		return nil, err
	}

	// 同時作成に敗れた側: 勝者を再読込して使う
	winner, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		return nil, fmt.Errorf("user vanished after duplicate creation")
	}
	return winner, nil
}
