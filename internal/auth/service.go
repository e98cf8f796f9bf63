// Package auth はOTP発行・検証・アカウント作成・セッション発行の認証フローを提供する。
//
// 状態はすべてデータストア経由で共有され、Serviceはリクエストをまたぐ
// インメモリ状態を持たない。
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/repository"
)

// Mailer は認証コードメールの送信インターフェース。
// 送信は投機的（fire-and-forget）で、失敗はリクエスト元に伝搬しない。
type Mailer interface {
	// SendOTP は認証コードメールを送信する。
	SendOTP(ctx context.Context, to, code string, expiresAt time.Time) error
}

// Recorder は認証操作メトリクスの記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type Recorder interface {
	RecordOTPRequested()
	RecordOTPVerifySuccess()
	RecordOTPVerifyFailure(reason string)
	RecordAccountCreated()
	RecordSessionIssued()
}

// nopRecorder はメトリクス未配線時のno-op実装。
type nopRecorder struct{}

func (nopRecorder) RecordOTPRequested()             {}
func (nopRecorder) RecordOTPVerifySuccess()         {}
func (nopRecorder) RecordOTPVerifyFailure(_ string) {}
func (nopRecorder) RecordAccountCreated()           {}
func (nopRecorder) RecordSessionIssued()            {}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	OTPLength         int           // OTPの桁数
	OTPExpire         time.Duration // OTPの有効期間
	OTPMaxAttempts    int           // OTPの最大試行回数（上限回数目の試行までは許可される）
	AccessTokenLength int           // アクセストークンの乱数バイト長
	AccessTokenExpire time.Duration // セッションの有効期間
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	appRepo     repository.ApplicationRepository
	userRepo    repository.UserRepository
	userAppRepo repository.UserApplicationRepository
	codeRepo    repository.VerificationCodeRepository
	sessionRepo repository.SessionRepository
	mailer      Mailer
	recorder    Recorder
	config      ServiceConfig

	// now はテストから時計を差し替えるためのフック。
	now func() time.Time
}

// NewService はServiceを生成する。
// mailerがnilの場合、メール送達は行われない（コードはストアにのみ残る）。
// recorderがnilの場合、メトリクスは記録されない。
func NewService(
	appRepo repository.ApplicationRepository,
	userRepo repository.UserRepository,
	userAppRepo repository.UserApplicationRepository,
	codeRepo repository.VerificationCodeRepository,
	sessionRepo repository.SessionRepository,
	mailer Mailer,
	recorder Recorder,
	config ServiceConfig,
) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		appRepo:     appRepo,
		userRepo:    userRepo,
		userAppRepo: userAppRepo,
		codeRepo:    codeRepo,
		sessionRepo: sessionRepo,
		mailer:      mailer,
		recorder:    recorder,
		config:      config,
		now:         time.Now,
	}
}

// MaxAttempts は設定されたOTPの最大試行回数を返す。
func (s *Service) MaxAttempts() int {
	return s.config.OTPMaxAttempts
}

// RequestOTP は認証コードを発行し、メール送達をディスパッチする。
// ユーザーが既存の場合はアプリケーションとの紐付けをこの時点で確定するが、
// 未知のemailに対してはユーザーを作成しない（ID解決は検証時まで遅延する）。
func (s *Service) RequestOTP(ctx context.Context, email, applicationID string) (*model.VerificationCode, error) {
	app, err := s.appRepo.FindByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, model.NewInvalidTenantError(applicationID)
	}

	code, err := generateOTP(s.config.OTPLength)
	if err != nil {
		return nil, err
	}

	now := s.now()

	// リクエスト時点でユーザーが既存なら紐付けを確定する
	var userAppID string
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		link, err := s.userAppRepo.FindOrCreate(ctx, &model.UserApplication{
			ID:            uuid.New().String(),
			UserID:        user.ID,
			ApplicationID: applicationID,
			CreatedAt:     now,
		})
		if err != nil {
			return nil, err
		}
		userAppID = link.ID
	}

	verification := &model.VerificationCode{
		ID:                uuid.New().String(),
		Code:              code,
		ExpiresAt:         now.Add(s.config.OTPExpire),
		Attempts:          0,
		Meta:              map[string]string{"email": email},
		UserApplicationID: userAppID,
		CreatedAt:         now,
	}

	if err := s.codeRepo.Create(ctx, verification); err != nil {
		return nil, err
	}

	// メール送達はベストエフォート。失敗はログにのみ残し、リクエストは成功させる。
	if s.mailer != nil {
		go s.dispatchOTPMail(email, code, verification.ExpiresAt)
	}

	s.recorder.RecordOTPRequested()
	slog.Info("otp requested",
		slog.String("verification_id", verification.ID),
		slog.String("application_id", applicationID),
	)

	return verification, nil
}

// VerifyOTP は認証コードを検証し、成功時にセッションを発行する。
// attemptsの加算は判定より先に行われ、判定が失敗しても加算は永続化される。
// 成功時のコード消費とセッション作成は同一トランザクションで行われ、
// 正しいコードの同時送信が競合しても成功は高々1件となる。
func (s *Service) VerifyOTP(ctx context.Context, otpID, otpCode string) (*model.Session, error) {
	verification, err := s.codeRepo.IncrementAttempts(ctx, otpID)
	if err != nil {
		return nil, err
	}
	if verification == nil {
		s.recorder.RecordOTPVerifyFailure("not_found")
		return nil, model.NewOTPNotFoundError()
	}

	if err := s.checkUsable(verification); err != nil {
		s.recorder.RecordOTPVerifyFailure("expired_or_exhausted")
		return nil, err
	}

	// 一致判定は定数時間比較で行う。長さ不一致は単なる不一致として扱う。
	if subtle.ConstantTimeCompare([]byte(verification.Code), []byte(otpCode)) != 1 {
		s.recorder.RecordOTPVerifyFailure("mismatch")
		return nil, model.NewOTPInvalidError()
	}

	user, err := s.resolveOrCreateUser(ctx, verification.Meta, nil)
	if err != nil {
		return nil, err
	}

	session, err := s.issueSession(ctx, user.ID, verification.UserApplicationID, otpID)
	if err != nil {
		if errors.Is(err, repository.ErrVerificationConsumed) {
			// 同時送信の競合に敗れた側。コードは既に消費済みとして扱う。
			s.recorder.RecordOTPVerifyFailure("consumed")
			return nil, model.NewOTPNotFoundError()
		}
		return nil, err
	}

	s.recorder.RecordOTPVerifySuccess()
	slog.Info("otp verified",
		slog.String("verification_id", otpID),
		slog.String("user_id", user.ID),
	)

	return session, nil
}

// CreateAccount は追加プロフィール属性を伴うアカウント作成経路。
// OTP検証後にattrsを収集してから初回ログインするフローで使用する。
// 有効期限・試行回数の判定はVerifyOTPと同じ方針だが、attemptsは加算しない。
func (s *Service) CreateAccount(ctx context.Context, otpID string, attrs map[string]string) (*model.Session, error) {
	verification, err := s.codeRepo.FindByID(ctx, otpID)
	if err != nil {
		return nil, err
	}
	if verification == nil {
		return nil, model.NewOTPNotFoundError()
	}

	if err := s.checkUsable(verification); err != nil {
		return nil, err
	}

	user, err := s.resolveOrCreateUser(ctx, verification.Meta, attrs)
	if err != nil {
		return nil, err
	}

	session, err := s.issueSession(ctx, user.ID, verification.UserApplicationID, otpID)
	if err != nil {
		if errors.Is(err, repository.ErrVerificationConsumed) {
			return nil, model.NewOTPNotFoundError()
		}
		return nil, err
	}

	s.recorder.RecordAccountCreated()
	slog.Info("account created",
		slog.String("verification_id", otpID),
		slog.String("user_id", user.ID),
	)

	return session, nil
}

// checkUsable は認証コードがまだ使用可能かを判定する。
// 加算後のattemptsが上限を超えた時点で拒否する。つまり上限回数目の試行までは
// 許可され、(上限+1)回目が拒否される。
func (s *Service) checkUsable(verification *model.VerificationCode) error {
	if !s.now().Before(verification.ExpiresAt) {
		return model.NewOTPExpiredError()
	}
	if verification.Attempts > s.config.OTPMaxAttempts {
		return model.NewOTPExpiredError()
	}
	return nil
}

// dispatchOTPMail は認証コードメールをバックグラウンドで送信する。
// リクエストのコンテキストには紐付けず、独立したタイムアウトで実行する。
func (s *Service) dispatchOTPMail(to, code string, expiresAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.mailer.SendOTP(ctx, to, code, expiresAt); err != nil {
		slog.Error("failed to send otp mail", slog.String("error", err.Error()))
	}
}
