package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ストア層のユニーク制約違反・競合を表すセンチネルエラー。
// これらはサービス層で再読込・再生成により回復され、クライアントには露出しない。
var (
	// ErrDuplicateUser はusers.emailのユニーク制約違反を表す。
	ErrDuplicateUser = errors.New("user with this email already exists")

	// ErrDuplicateApplication はapplications.nameのユニーク制約違反を表す。
	ErrDuplicateApplication = errors.New("application with this name already exists")

	// ErrDuplicateAccessToken はsessions.access_tokenのユニーク制約違反を表す。
	ErrDuplicateAccessToken = errors.New("session with this access token already exists")

	// ErrVerificationConsumed は認証コードが既に削除（消費）済みであることを表す。
	ErrVerificationConsumed = errors.New("verification code already consumed")
)

// uniqueViolation はPostgreSQLのunique_violation (23505)。
const uniqueViolation = "23505"

// isUniqueViolation はエラーがユニーク制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
