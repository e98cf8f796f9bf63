package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/repository"
)

// issueSession はアクセストークンを生成し、認証コードの消費と同一トランザクションで
// セッションを永続化する。access_tokenのユニーク制約違反は生成器のエントロピー上
// 天文学的に起こりにくいが、発生した場合はトークンを再生成して1回だけ再試行する。
func (s *Service) issueSession(ctx context.Context, userID, userAppID, codeID string) (*model.Session, error) {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := generateAccessToken(s.config.AccessTokenLength)
		if err != nil {
			return nil, err
		}

		now := s.now()
		session := &model.Session{
			ID:                uuid.New().String(),
			UserID:            userID,
			AccessToken:       token,
			ExpiresAt:         now.Add(s.config.AccessTokenExpire),
			UserApplicationID: userAppID,
			CreatedAt:         now,
		}

		err = s.sessionRepo.CreateConsuming(ctx, session, codeID)
		if err == nil {
			s.recorder.RecordSessionIssued()
			return session, nil
		}
		if errors.Is(err, repository.ErrDuplicateAccessToken) && attempt == 0 {
			// トランザクションごとロールバックされているため、認証コードは未消費のまま残る
			continue
		}
		return nil, err
	}

	return nil, repository.ErrDuplicateAccessToken
}
