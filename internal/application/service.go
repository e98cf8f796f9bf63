// Package application はテナント（アプリケーション）管理のビジネスロジックを提供する。
package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/repository"
)

// Service はアプリケーション管理のビジネスロジックを提供する。
type Service struct {
	appRepo repository.ApplicationRepository
}

// NewService はServiceを生成する。
func NewService(appRepo repository.ApplicationRepository) *Service {
	return &Service{appRepo: appRepo}
}

// Create は新しいアプリケーションを登録する。
// 同名アプリケーションが既に存在する場合はDUPLICATE_TENANTエラーを返す。
func (s *Service) Create(ctx context.Context, name string) (*model.Application, error) {
	app := &model.Application{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now(),
	}

	if err := s.appRepo.Create(ctx, app); err != nil {
		if errors.Is(err, repository.ErrDuplicateApplication) {
			return nil, model.NewDuplicateTenantError(name)
		}
		return nil, err
	}

	slog.Info("application created",
		slog.String("application_id", app.ID),
		slog.String("name", app.Name),
	)

	return app, nil
}

// List は登録済みの全アプリケーションを返す。
func (s *Service) List(ctx context.Context) ([]*model.Application, error) {
	return s.appRepo.List(ctx)
}
