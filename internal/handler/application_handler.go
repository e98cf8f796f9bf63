package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/authgate/internal/middleware"
	"github.com/hitoshi/authgate/internal/model"
)

// ApplicationServiceInterface はアプリケーションハンドラーが必要とするサービスインターフェース。
type ApplicationServiceInterface interface {
	// Create は新しいアプリケーションを登録する。
	Create(ctx context.Context, name string) (*model.Application, error)
	// List は登録済みの全アプリケーションを返す。
	List(ctx context.Context) ([]*model.Application, error)
}

// ApplicationHandler はアプリケーション管理のHTTPハンドラー。
// ルーティング時にAdminAuthMiddlewareの内側に配置すること。
type ApplicationHandler struct {
	service ApplicationServiceInterface
}

// NewApplicationHandler はApplicationHandlerを生成する。
func NewApplicationHandler(service ApplicationServiceInterface) *ApplicationHandler {
	return &ApplicationHandler{service: service}
}

// createApplicationRequest はアプリケーション登録リクエストのボディ。
type createApplicationRequest struct {
	Name string `json:"name"`
}

// applicationResponse はアプリケーション情報のAPIレスポンス。
type applicationResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Create はアプリケーション登録を処理する。
// POST /applications
func (h *ApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidInputError("リクエストボディの解析に失敗しました"))
		return
	}

	if req.Name == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidInputError("nameは必須です"))
		return
	}

	app, err := h.service.Create(r.Context(), req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(applicationResponse{
		ID:   app.ID,
		Name: app.Name,
	})
}

// List はアプリケーション一覧を処理する。
// GET /applications
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	apps, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]applicationResponse, 0, len(apps))
	for _, app := range apps {
		responses = append(responses, applicationResponse{
			ID:   app.ID,
			Name: app.Name,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}
