// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/authgate/internal/middleware"
	"github.com/hitoshi/authgate/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// RequestOTP は認証コードを発行し、メール送達をディスパッチする。
	RequestOTP(ctx context.Context, email, applicationID string) (*model.VerificationCode, error)
	// VerifyOTP は認証コードを検証し、成功時にセッションを発行する。
	VerifyOTP(ctx context.Context, otpID, otpCode string) (*model.Session, error)
	// CreateAccount は追加属性付きでアカウントを作成し、セッションを発行する。
	CreateAccount(ctx context.Context, otpID string, attrs map[string]string) (*model.Session, error)
	// MaxAttempts は設定されたOTPの最大試行回数を返す。
	MaxAttempts() int
}

// AuthHandler は認証フローのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// requestOTPRequest は認証コード発行リクエストのボディ。
type requestOTPRequest struct {
	Email         string `json:"email"`
	ApplicationID string `json:"applicationId"`
}

// verifyOTPRequest は認証コード検証リクエストのボディ。
type verifyOTPRequest struct {
	OTPID   string `json:"otpId"`
	OTPCode string `json:"otpCode"`
}

// createAccountRequest はアカウント作成リクエストのボディ。
type createAccountRequest struct {
	OTPID string            `json:"otpId"`
	Attrs map[string]string `json:"attrs"`
}

// otpResponse は認証コード発行のAPIレスポンス。
// コード本体は決して含めない。maxAttemptsは互換性のため文字列で返す。
type otpResponse struct {
	ID          string    `json:"id"`
	ExpiresAt   time.Time `json:"expiresAt"`
	MaxAttempts string    `json:"maxAttempts"`
}

// sessionResponse はセッション発行のAPIレスポンス。
type sessionResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// RequestOTP は認証コード発行を処理する。
// POST /auth/request-otp
func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req requestOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidInputError("リクエストボディの解析に失敗しました"))
		return
	}

	if req.Email == "" || req.ApplicationID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidInputError("emailとapplicationIdは必須です"))
		return
	}

	verification, err := h.service.RequestOTP(r.Context(), req.Email, req.ApplicationID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(otpResponse{
		ID:          verification.ID,
		ExpiresAt:   verification.ExpiresAt,
		MaxAttempts: strconv.Itoa(h.service.MaxAttempts()),
	})
}

// VerifyOTP は認証コード検証を処理する。
// POST /auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidInputError("リクエストボディの解析に失敗しました"))
		return
	}

	if req.OTPID == "" || req.OTPCode == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidInputError("otpIdとotpCodeは必須です"))
		return
	}

	session, err := h.service.VerifyOTP(r.Context(), req.OTPID, req.OTPCode)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessionResponse{
		AccessToken: session.AccessToken,
		ExpiresAt:   session.ExpiresAt,
	})
}

// CreateAccount はアカウント作成を処理する。
// POST /auth/create-account
func (h *AuthHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidInputError("リクエストボディの解析に失敗しました"))
		return
	}

	if req.OTPID == "" || req.Attrs == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidInputError("otpIdとattrsは必須です"))
		return
	}

	session, err := h.service.CreateAccount(r.Context(), req.OTPID, req.Attrs)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessionResponse{
		AccessToken: session.AccessToken,
		ExpiresAt:   session.ExpiresAt,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱い、詳細はログにのみ残す
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case model.ErrCodeInvalidTenant:
		return http.StatusBadRequest
	case model.ErrCodeOTPNotFound:
		return http.StatusNotFound
	case model.ErrCodeOTPExpired:
		return http.StatusGone
	case model.ErrCodeOTPInvalid:
		return http.StatusBadRequest
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeDuplicateTenant:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
