package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/hitoshi/authgate/internal/model"
)

// adminSecretHeader は管理APIの共有シークレットを運ぶリクエストヘッダー。
const adminSecretHeader = "X-Api-Secret"

// NewAdminAuthMiddleware は管理APIの共有シークレット検証ミドルウェアを返す。
// ヘッダー値とマスターシークレットは定数時間で比較する。
// 不一致のリクエストには403 Forbiddenを返す。
func NewAdminAuthMiddleware(masterSecret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(adminSecretHeader)
			if provided == "" ||
				subtle.ConstantTimeCompare([]byte(provided), []byte(masterSecret)) != 1 {
				slog.Warn("admin api secret mismatch",
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
