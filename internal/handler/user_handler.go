package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/meibo/internal/middleware"
	"github.com/hitoshi/meibo/internal/model"
)

// UserHandler はユーザー情報のHTTPハンドラー。
type UserHandler struct{}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// Me は現在の認証済みユーザーのスナップショットを返す。
// ガードがDBから解決した最新のユーザー情報をそのまま返すため、
// トークン発行後の権限変更も反映される。
// GET /users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError("認証トークンが必要です。"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(user))
}
