package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/repository"
)

// --- モック定義 ---

type mockApplicationRepo struct {
	findByIDFn   func(ctx context.Context, id string) (*model.Application, error)
	findByNameFn func(ctx context.Context, name string) (*model.Application, error)
	createFn     func(ctx context.Context, app *model.Application) error
	listFn       func(ctx context.Context) ([]*model.Application, error)
}

func (m *mockApplicationRepo) FindByID(ctx context.Context, id string) (*model.Application, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockApplicationRepo) FindByName(ctx context.Context, name string) (*model.Application, error) {
	if m.findByNameFn != nil {
		return m.findByNameFn(ctx, name)
	}
	return nil, nil
}

func (m *mockApplicationRepo) Create(ctx context.Context, app *model.Application) error {
	if m.createFn != nil {
		return m.createFn(ctx, app)
	}
	return nil
}

func (m *mockApplicationRepo) List(ctx context.Context) ([]*model.Application, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

type mockUserRepo struct {
	findByIDFn    func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
	createFn      func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

type mockUserAppRepo struct {
	findOrCreateFn func(ctx context.Context, link *model.UserApplication) (*model.UserApplication, error)
}

func (m *mockUserAppRepo) FindOrCreate(ctx context.Context, link *model.UserApplication) (*model.UserApplication, error) {
	if m.findOrCreateFn != nil {
		return m.findOrCreateFn(ctx, link)
	}
	return link, nil
}

type mockCodeRepo struct {
	createFn            func(ctx context.Context, code *model.VerificationCode) error
	findByIDFn          func(ctx context.Context, id string) (*model.VerificationCode, error)
	incrementAttemptsFn func(ctx context.Context, id string) (*model.VerificationCode, error)
}

func (m *mockCodeRepo) Create(ctx context.Context, code *model.VerificationCode) error {
	if m.createFn != nil {
		return m.createFn(ctx, code)
	}
	return nil
}

func (m *mockCodeRepo) FindByID(ctx context.Context, id string) (*model.VerificationCode, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockCodeRepo) IncrementAttempts(ctx context.Context, id string) (*model.VerificationCode, error) {
	if m.incrementAttemptsFn != nil {
		return m.incrementAttemptsFn(ctx, id)
	}
	return nil, nil
}

type mockSessionRepo struct {
	createConsumingFn func(ctx context.Context, session *model.Session, codeID string) error
}

func (m *mockSessionRepo) CreateConsuming(ctx context.Context, session *model.Session, codeID string) error {
	if m.createConsumingFn != nil {
		return m.createConsumingFn(ctx, session, codeID)
	}
	return nil
}

type mockMailer struct {
	mu     sync.Mutex
	sent   []string
	sendFn func(ctx context.Context, to, code string, expiresAt time.Time) error
}

func (m *mockMailer) SendOTP(ctx context.Context, to, code string, expiresAt time.Time) error {
	m.mu.Lock()
	m.sent = append(m.sent, to)
	m.mu.Unlock()
	if m.sendFn != nil {
		return m.sendFn(ctx, to, code, expiresAt)
	}
	return nil
}

// --- compile-time interface checks ---
var _ repository.ApplicationRepository = (*mockApplicationRepo)(nil)
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.UserApplicationRepository = (*mockUserAppRepo)(nil)
var _ repository.VerificationCodeRepository = (*mockCodeRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ Mailer = (*mockMailer)(nil)

// --- テストヘルパー ---

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func defaultTestConfig() ServiceConfig {
	return ServiceConfig{
		OTPLength:         6,
		OTPExpire:         10 * time.Minute,
		OTPMaxAttempts:    5,
		AccessTokenLength: 32,
		AccessTokenExpire: 60 * time.Minute,
	}
}

type serviceMocks struct {
	appRepo     *mockApplicationRepo
	userRepo    *mockUserRepo
	userAppRepo *mockUserAppRepo
	codeRepo    *mockCodeRepo
	sessionRepo *mockSessionRepo
}

func newTestService(mocks *serviceMocks, mailer Mailer, cfg ServiceConfig) *Service {
	svc := NewService(
		mocks.appRepo, mocks.userRepo, mocks.userAppRepo,
		mocks.codeRepo, mocks.sessionRepo,
		mailer, nil, cfg,
	)
	svc.now = func() time.Time { return testTime }
	return svc
}

func newDefaultMocks() *serviceMocks {
	return &serviceMocks{
		appRepo:     &mockApplicationRepo{},
		userRepo:    &mockUserRepo{},
		userAppRepo: &mockUserAppRepo{},
		codeRepo:    &mockCodeRepo{},
		sessionRepo: &mockSessionRepo{},
	}
}

func apiErrorCode(t *testing.T, err error) string {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorではないエラーが返された: %v", err)
	}
	return apiErr.Code
}

// --- RequestOTP ---

func TestRequestOTP_UnknownApplication_ReturnsInvalidTenant(t *testing.T) {
	mocks := newDefaultMocks()
	mocks.appRepo.findByIDFn = func(ctx context.Context, id string) (*model.Application, error) {
		return nil, nil
	}
	svc := newTestService(mocks, nil, defaultTestConfig())

	_, err := svc.RequestOTP(context.Background(), "user@example.com", "no-such-app")
	if err == nil {
		t.Fatal("未知のapplicationIdに対してエラーを返すべき")
	}
	if code := apiErrorCode(t, err); code != model.ErrCodeInvalidTenant {
		t.Errorf("エラーコード = %q, want %q", code, model.ErrCodeInvalidTenant)
	}
}

func TestRequestOTP_CreatesCodeWithConfiguredExpiryAndLength(t *testing.T) {
	mocks := newDefaultMocks()
	mocks.appRepo.findByIDFn = func(ctx context.Context, id string) (*model.Application, error) {
		return &model.Application{ID: id, Name: "shop"}, nil
	}
	var created *model.VerificationCode
	mocks.codeRepo.createFn = func(ctx context.Context, code *model.VerificationCode) error {
		created = code
		return nil
	}
	svc := newTestService(mocks, nil, defaultTestConfig())

	result, err := svc.RequestOTP(context.Background(), "user@example.com", "app-1")
	if err != nil {
		t.Fatalf("RequestOTP() がエラーを返した: %v", err)
	}

	if created == nil {
		t.Fatal("認証コードが永続化されていない")
	}
	if len(created.Code) != 6 {
		t.Errorf("コード桁数 = %d, want 6", len(created.Code))
	}
	for _, r := range created.Code {
		if r < '0' || r > '9' {
			t.Errorf("コードに数字以外の文字が含まれる: %q", created.Code)
		}
	}
	wantExpiry := testTime.Add(10 * time.Minute)
	if !created.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("有効期限 = %v, want %v", created.ExpiresAt, wantExpiry)
	}
	if created.Attempts != 0 {
		t.Errorf("初期attempts = %d, want 0", created.Attempts)
	}
	if created.Email() != "user@example.com" {
		t.Errorf("metaのemail = %q, want %q", created.Email(), "user@example.com")
	}
	if result.ID != created.ID {
		t.Errorf("返却されたID = %q, want %q", result.ID, created.ID)
	}
}

func TestRequestOTP_ExistingUser_LinksApplication(t *testing.T) {
	mocks := newDefaultMocks()
	mocks.appRepo.findByIDFn = func(ctx context.Context, id string) (*model.Application, error) {
		return &model.Application{ID: id, Name: "shop"}, nil
	}
	mocks.userRepo.findByEmailFn = func(ctx context.Context, email string) (*model.User, error) {
		return &model.User{ID: "user-1", Email: email}, nil
	}
	var linked *model.UserApplication
	mocks.userAppRepo.findOrCreateFn = func(ctx context.Context, link *model.UserApplication) (*model.UserApplication, error) {
		linked = link
		return link, nil
	}
	var created *model.VerificationCode
	mocks.codeRepo.createFn = func(ctx context.Context, code *model.VerificationCode) error {
		created = code
		return nil
	}
	svc := newTestService(mocks, nil, defaultTestConfig())

	_, err := svc.RequestOTP(context.Background(), "user@example.com", "app-1")
	if err != nil {
		t.Fatalf("RequestOTP() がエラーを返した: %v", err)
	}

	if linked == nil {
		t.Fatal("既存ユーザーの紐付けが作成されていない")
	}
	if linked.UserID != "user-1" || linked.ApplicationID != "app-1" {
		t.Errorf("紐付け = (%q, %q), want (user-1, app-1)", linked.UserID, linked.ApplicationID)
	}
	if created.UserApplicationID != linked.ID {
		t.Errorf("認証コードのuserApplicationID = %q, want %q", created.UserApplicationID, linked.ID)
	}
}

func TestRequestOTP_UnknownEmail_DoesNotCreateUser(t *testing.T) {
	mocks := newDefaultMocks()
	mocks.appRepo.findByIDFn = func(ctx context.Context, id string) (*model.Application, error) {
		return &model.Application{ID: id, Name: "shop"}, nil
	}
	userCreated := false
	mocks.userRepo.createFn = func(ctx context.Context, user *model.User) error {
		userCreated = true
		return nil
	}
	linkCreated := false
	mocks.userAppRepo.findOrCreateFn = func(ctx context.Context, link *model.UserApplication) (*model.UserApplication, error) {
		linkCreated = true
		return link, nil
	}
	svc := newTestService(mocks, nil, defaultTestConfig())

	result, err := svc.RequestOTP(context.Background(), "new@example.com", "app-1")
	if err != nil {
		t.Fatalf("RequestOTP() がエラーを返した: %v", err)
	}

	if userCreated {
		t.Error("リクエスト時点で未知のemailに対してユーザーを作成してはならない")
	}
	if linkCreated {
		t.Error("リクエスト時点で未知のemailに対して紐付けを作成してはならない")
	}
	if result.UserApplicationID != "" {
		t.Errorf("userApplicationID = %q, want 空", result.UserApplicationID)
	}
}

func TestRequestOTP_MailFailure_DoesNotFailRequest(t *testing.T) {
	mocks := newDefaultMocks()
	mocks.appRepo.findByIDFn = func(ctx context.Context, id string) (*model.Application, error) {
		return &model.Application{ID: id, Name: "shop"}, nil
	}
	sent := make(chan struct{})
	mailer := &mockMailer{
		sendFn: func(ctx context.Context, to, code string, expiresAt time.Time) error {
			defer close(sent)
			return errors.New("smtp connection refused")
		},
	}
	svc := newTestService(mocks, mailer, defaultTestConfig())

	_, err := svc.RequestOTP(context.Background(), "user@example.com", "app-1")
	if err != nil {
		t.Fatalf("メール送信失敗時もRequestOTP()は成功すべき: %v", err)
	}

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("メール送信がディスパッチされなかった")
	}
}

// --- VerifyOTP ---

func stubVerification(code string, attempts int) *model.VerificationCode {
	return &model.VerificationCode{
		ID:        "otp-1",
		Code:      code,
		ExpiresAt: testTime.Add(5 * time.Minute),
		Attempts:  attempts,
		Meta:      map[string]string{"email": "user@example.com"},
		CreatedAt: testTime.Add(-time.Minute),
	}
}

func TestVerifyOTP_UnknownID_ReturnsNotFound(t *testing.T) {
	mocks := newDefaultMocks()
	mocks.codeRepo.incrementAttemptsFn = func(ctx context.Context, id string) (*model.VerificationCode, error) {
		return nil, nil
	}
	svc := newTestService(mocks, nil, defaultTestConfig())

	_, err := svc.VerifyOTP(context.Background(), "no-such-otp", "123456")
	if code := apiErrorCode(t, err); code != model.ErrCodeOTPNotFound {
		t.Errorf("エラーコード = %q, want %q", code, model.ErrCodeOTPNotFound)
	}
}

func TestVerifyOTP_CorrectCode_IssuesSessionAndConsumesCode(t *testing.T) {
	mocks := newDefaultMocks()
	mocks.codeRepo.incrementAttemptsFn = func(ctx context.Context, id string) (*model.VerificationCode, error) {
		return stubVerification("123456", 1), nil
	}
	mocks.userRepo.findByEmailFn = func(ctx context.Context, email string) (*model.User, error) {
		return &model.User{ID: "user-1", Email: email}, nil
	}
	var consumedCodeID string
	var stored *model.Session
	mocks.sessionRepo.createConsumingFn = func(ctx context.Context, session *model.Session, codeID string) error {
		consumedCodeID = codeID
		stored = session
		return nil
	}
	svc := newTestService(mocks, nil, defaultTestConfig())

	session, err := svc.VerifyOTP(context.Background(), "otp-1", "123456")
	if err != nil {
		t.Fatalf("VerifyOTP() がエラーを返した: %v", err)
	}

	if consumedCodeID != "otp-1" {
		t.Errorf("消費された認証コードID = %q, want otp-1", consumedCodeID)
	}
	if stored == nil || session.AccessToken != stored.AccessToken {
		t.Error("永続化されたセッションと返却されたセッションが一致しない")
	}
	// 32バイトのhex表現は64文字
	if len(session.AccessToken) != 64 {
		t.Errorf("アクセストークン長 = %d, want 64", len(session.AccessToken))
	}
	wantExpiry := testTime.Add(60 * time.Minute)
	if !session.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("セッション有効期限 = %v, want %v", session.ExpiresAt, wantExpiry)
	}
	if session.UserID != "user-1" {
		t.Errorf("userID = %q, want user-1", session.UserID)
	}
}

func TestVerifyOTP_WrongCode_ReturnsInvalid(t *testing.T) {
	mocks := newDefaultMocks()
	incremented := false
	mocks.codeRepo.incrementAttemptsFn = func(ctx context.Context, id string) (*model.VerificationCode, error) {
		incremented = true
		return stubVerification("123456", 1), nil
	}
	svc := newTestService(mocks, nil, defaultTestConfig())

	_, err := svc.VerifyOTP(context.Background(), "otp-1", "654321")
	if code := apiErrorCode(t, err); code != model.ErrCodeOTPInvalid {
		t.Errorf("エラーコード = %q, want %q", code, model.ErrCodeOTPInvalid)
	}
	if !incremented {
		t.Error("不一致の試行でもattemptsは加算されるべき")
	}
}

func TestVerifyOTP_Expired_ReturnsExpired(t *testing.T) {
	mocks := newDefaultMocks()
	mocks.codeRepo.incrementAttemptsFn = func(ctx context.Context, id string) (*model.VerificationCode, error) {
		v := stubVerification("123456", 1)
		v.ExpiresAt = testTime.Add(-time.Second)
		return v, nil
	}
	svc := newTestService(mocks, nil, defaultTestConfig())

	_, err := svc.VerifyOTP(context.Background(), "otp-1", "123456")
	if code := apiErrorCode(t, err); code != model.ErrCodeOTPExpired {
		t.Errorf("エラーコード = %q, want %q", code, model.ErrCodeOTPExpired)
	}
}

func TestVerifyOTP_ExactlyAtExpiry_ReturnsExpired(t *testing.T) {
	mocks := newDefaultMocks()
	mocks.codeRepo.incrementAttemptsFn = func(ctx context.Context, id string) (*model.VerificationCode, error) {
		v := stubVerification("123456", 1)
		v.ExpiresAt = testTime // now == expiresAt は期限切れ
		return v, nil
	}
	svc := newTestService(mocks, nil, defaultTestConfig())

	_, err := svc.VerifyOTP(context.Background(), "otp-1", "123456")
	if code := apiErrorCode(t, err); code != model.ErrCodeOTPExpired {
		t.Errorf("エラーコード = %q, want %q", code, model.ErrCodeOTPExpired)
	}
}

func TestVerifyOTP_AttemptCapBoundary(t *testing.T) {
	// 加算後のattemptsが上限ちょうどなら許可、上限+1なら拒否
	tests := []struct {
		name              string
		attemptsAfterIncr int
		wantCode          string
	}{
		{"上限回数目の試行は許可される", 5, ""},
		{"上限超過の試行は拒否される", 6, model.ErrCodeOTPExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mocks := newDefaultMocks()
			mocks.codeRepo.incrementAttemptsFn = func(ctx context.Context, id string) (*model.VerificationCode, error) {
				return stubVerification("123456", tt.attemptsAfterIncr), nil
			}
			mocks.userRepo.findByEmailFn = func(ctx context.Context, email string) (*model.User, error) {
				return &model.User{ID: "user-1", Email: email}, nil
			}
			svc := newTestService(mocks, nil, defaultTestConfig())

			_, err := svc.VerifyOTP(context.Background(), "otp-1", "123456")
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("VerifyOTP() がエラーを返した: %v", err)
				}
				return
			}
			if code := apiErrorCode(t, err); code != tt.wantCode {
				t.Errorf("エラーコード = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestVerifyOTP_NewEmail_CreatesUser(t *testing.T) {
	mocks := newDefaultMocks()
	mocks.codeRepo.incrementAttemptsFn = func(ctx context.Context, id string) (*model.VerificationCode, error) {
		return stubVerification("123456", 1), nil
	}
	var createdUser *model.User
	mocks.userRepo.createFn = func(ctx context.Context, user *model.User) error {
		createdUser = user
		return nil
	}
	svc := newTestService(mocks, nil, defaultTestConfig())

	session, err := svc.VerifyOTP(context.Background(), "otp-1", "123456")
	if err != nil {
		t.Fatalf("VerifyOTP() がエラーを返した: %v", err)
	}

	if createdUser == nil {
		t.Fatal("未知のemailに対してユーザーが作成されるべき")
	}
	if createdUser.Email != "user@example.com" {
		t.Errorf("作成されたユーザーのemail = %q, want user@example.com", createdUser.Email)
	}
	if session.UserID != createdUser.ID {
		t.Errorf("セッションのuserID = %q, want %q", session.UserID, createdUser.ID)
	}
}

func TestVerifyOTP_DuplicateUserRace_ReusesWinner(t *testing.T) {
	mocks := newDefaultMocks()
	mocks.codeRepo.incrementAttemptsFn = func(ctx context.Context, id string) (*model.VerificationCode, error) {
		return stubVerification("123456", 1), nil
	}
	findCalls := 0
	mocks.userRepo.findByEmailFn = func(ctx context.Context, email string) (*model.User, error) {
		findCalls++
		if findCalls == 1 {
			return nil, nil // 1回目: 未登録
		}
		return &model.User{ID: "winner", Email: email}, nil // 2回目: 競合の勝者
	}
	mocks.userRepo.createFn = func(ctx context.Context, user *model.User) error {
		return repository.ErrDuplicateUser
	}
	svc := newTestService(mocks, nil, defaultTestConfig())

	session, err := svc.VerifyOTP(context.Background(), "otp-1", "123456")
	if err != nil {
		t.Fatalf("重複作成の競合後もVerifyOTP()は成功すべき: %v", err)
	}
	if session.UserID != "winner" {
		t.Errorf("userID = %q, want winner", session.UserID)
	}
}

func TestVerifyOTP_ConsumedCode_ReturnsNotFound(t *testing.T) {
	mocks := newDefaultMocks()
	mocks.codeRepo.incrementAttemptsFn = func(ctx context.Context, id string) (*model.VerificationCode, error) {
		return stubVerification("123456", 1), nil
	}
	mocks.userRepo.findByEmailFn = func(ctx context.Context, email string) (*model.User, error) {
		return &model.User{ID: "user-1", Email: email}, nil
	}
	mocks.sessionRepo.createConsumingFn = func(ctx context.Context, session *model.Session, codeID string) error {
		return repository.ErrVerificationConsumed
	}
	svc := newTestService(mocks, nil, defaultTestConfig())

	_, err := svc.VerifyOTP(context.Background(), "otp-1", "123456")
	if code := apiErrorCode(t, err); code != model.ErrCodeOTPNotFound {
		t.Errorf("エラーコード = %q, want %q", code, model.ErrCodeOTPNotFound)
	}
}

func TestVerifyOTP_DuplicateToken_RetriesOnce(t *testing.T) {
	mocks := newDefaultMocks()
	mocks.codeRepo.incrementAttemptsFn = func(ctx context.Context, id string) (*model.VerificationCode, error) {
		return stubVerification("123456", 1), nil
	}
	mocks.userRepo.findByEmailFn = func(ctx context.Context, email string) (*model.User, error) {
		return &model.User{ID: "user-1", Email: email}, nil
	}
	var tokens []string
	mocks.sessionRepo.createConsumingFn = func(ctx context.Context, session *model.Session, codeID string) error {
		tokens = append(tokens, session.AccessToken)
		if len(tokens) == 1 {
			return repository.ErrDuplicateAccessToken
		}
		return nil
	}
	svc := newTestService(mocks, nil, defaultTestConfig())

	session, err := svc.VerifyOTP(context.Background(), "otp-1", "123456")
	if err != nil {
		t.Fatalf("トークン衝突後の再試行は成功すべき: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("永続化の試行回数 = %d, want 2", len(tokens))
	}
	if tokens[0] == tokens[1] {
		t.Error("再試行時はトークンを再生成すべき")
	}
	if session.AccessToken != tokens[1] {
		t.Error("返却されたセッションは2回目のトークンを持つべき")
	}
}

// --- CreateAccount ---

func TestCreateAccount_DoesNotIncrementAttempts(t *testing.T) {
	mocks := newDefaultMocks()
	incrementCalled := false
	mocks.codeRepo.incrementAttemptsFn = func(ctx context.Context, id string) (*model.VerificationCode, error) {
		incrementCalled = true
		return nil, nil
	}
	mocks.codeRepo.findByIDFn = func(ctx context.Context, id string) (*model.VerificationCode, error) {
		return stubVerification("123456", 1), nil
	}
	svc := newTestService(mocks, nil, defaultTestConfig())

	_, err := svc.CreateAccount(context.Background(), "otp-1", map[string]string{"name": "Taro"})
	if err != nil {
		t.Fatalf("CreateAccount() がエラーを返した: %v", err)
	}
	if incrementCalled {
		t.Error("CreateAccountはattemptsを加算してはならない")
	}
}

func TestCreateAccount_NewUser_StoresAttrsWithoutEmail(t *testing.T) {
	mocks := newDefaultMocks()
	mocks.codeRepo.findByIDFn = func(ctx context.Context, id string) (*model.VerificationCode, error) {
		return stubVerification("123456", 0), nil
	}
	var createdUser *model.User
	mocks.userRepo.createFn = func(ctx context.Context, user *model.User) error {
		createdUser = user
		return nil
	}
	svc := newTestService(mocks, nil, defaultTestConfig())

	_, err := svc.CreateAccount(context.Background(), "otp-1", map[string]string{
		"name":  "Taro",
		"email": "spoofed@example.com", // metaのemailが優先され、attrsのemailは無視される
	})
	if err != nil {
		t.Fatalf("CreateAccount() がエラーを返した: %v", err)
	}

	if createdUser == nil {
		t.Fatal("ユーザーが作成されるべき")
	}
	if createdUser.Email != "user@example.com" {
		t.Errorf("email = %q, want user@example.com", createdUser.Email)
	}
	if createdUser.Attrs["name"] != "Taro" {
		t.Errorf("attrs[name] = %q, want Taro", createdUser.Attrs["name"])
	}
	if _, ok := createdUser.Attrs["email"]; ok {
		t.Error("attrsのemailは保存されるべきではない")
	}
}

func TestCreateAccount_ExistingUser_AttrsNotModified(t *testing.T) {
	mocks := newDefaultMocks()
	mocks.codeRepo.findByIDFn = func(ctx context.Context, id string) (*model.VerificationCode, error) {
		return stubVerification("123456", 0), nil
	}
	existing := &model.User{ID: "user-1", Email: "user@example.com", Attrs: map[string]string{"name": "Original"}}
	mocks.userRepo.findByEmailFn = func(ctx context.Context, email string) (*model.User, error) {
		return existing, nil
	}
	createCalled := false
	mocks.userRepo.createFn = func(ctx context.Context, user *model.User) error {
		createCalled = true
		return nil
	}
	svc := newTestService(mocks, nil, defaultTestConfig())

	session, err := svc.CreateAccount(context.Background(), "otp-1", map[string]string{"name": "Changed"})
	if err != nil {
		t.Fatalf("CreateAccount() がエラーを返した: %v", err)
	}
	if createCalled {
		t.Error("既存ユーザーに対してCreateを呼んではならない")
	}
	if session.UserID != "user-1" {
		t.Errorf("userID = %q, want user-1", session.UserID)
	}
}

func TestCreateAccount_UnknownID_ReturnsNotFound(t *testing.T) {
	mocks := newDefaultMocks()
	svc := newTestService(mocks, nil, defaultTestConfig())

	_, err := svc.CreateAccount(context.Background(), "no-such-otp", nil)
	if code := apiErrorCode(t, err); code != model.ErrCodeOTPNotFound {
		t.Errorf("エラーコード = %q, want %q", code, model.ErrCodeOTPNotFound)
	}
}

func TestCreateAccount_Expired_ReturnsExpired(t *testing.T) {
	mocks := newDefaultMocks()
	mocks.codeRepo.findByIDFn = func(ctx context.Context, id string) (*model.VerificationCode, error) {
		v := stubVerification("123456", 0)
		v.ExpiresAt = testTime.Add(-time.Minute)
		return v, nil
	}
	svc := newTestService(mocks, nil, defaultTestConfig())

	_, err := svc.CreateAccount(context.Background(), "otp-1", nil)
	if code := apiErrorCode(t, err); code != model.ErrCodeOTPExpired {
		t.Errorf("エラーコード = %q, want %q", code, model.ErrCodeOTPExpired)
	}
}

// --- MaxAttempts ---

func TestMaxAttempts_ReturnsConfiguredValue(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.OTPMaxAttempts = 3
	svc := newTestService(newDefaultMocks(), nil, cfg)

	if got := svc.MaxAttempts(); got != 3 {
		t.Errorf("MaxAttempts() = %d, want 3", got)
	}
}
