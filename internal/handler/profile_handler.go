package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/meibo/internal/model"
	"github.com/hitoshi/meibo/internal/profile"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	Create(ctx context.Context, input profile.CreateProfileInput) (*model.Profile, error)
	List(ctx context.Context) ([]*model.Profile, error)
	Get(ctx context.Context, id string) (*model.Profile, error)
	Update(ctx context.Context, id string, input profile.UpdateProfileInput) (*model.Profile, error)
	Delete(ctx context.Context, id string) error
}

// ProfileHandler はプロフィールCRUDのHTTPハンドラー。
// 閲覧系は認証不要、更新系は管理者ガードの背後に配置される。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// createProfileRequest はプロフィール作成リクエストのボディ。
type createProfileRequest struct {
	Name        string `json:"name"`
	FirstName   string `json:"firstName"`
	Description string `json:"description"`
	Title       string `json:"title"`
}

// updateProfileRequest はプロフィール部分更新リクエストのボディ。
// 含まれないフィールドは変更しない。
type updateProfileRequest struct {
	Name        *string `json:"name"`
	FirstName   *string `json:"firstName"`
	Description *string `json:"description"`
	Title       *string `json:"title"`
}

// profileResponse はプロフィールのAPIレスポンス。
type profileResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	FirstName   string `json:"firstName"`
	Description string `json:"description"`
	Title       string `json:"title"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// ListProfiles は全プロフィールを作成日時の降順で返す。
// GET /profiles
func (h *ProfileHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]profileResponse, 0, len(profiles))
	for _, p := range profiles {
		responses = append(responses, toProfileResponse(p))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// GetProfile はプロフィール詳細を取得する。
// GET /profiles/:id
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProfileResponse(p))
}

// CreateProfile はプロフィールを新規作成する。
// POST /profiles
func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	p, err := h.service.Create(r.Context(), profile.CreateProfileInput{
		Name:        req.Name,
		FirstName:   req.FirstName,
		Description: req.Description,
		Title:       req.Title,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toProfileResponse(p))
}

// UpdateProfile はプロフィールを部分更新する。
// PATCH /profiles/:id
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	p, err := h.service.Update(r.Context(), id, profile.UpdateProfileInput{
		Name:        req.Name,
		FirstName:   req.FirstName,
		Description: req.Description,
		Title:       req.Title,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProfileResponse(p))
}

// DeleteProfile はプロフィールを削除する。
// DELETE /profiles/:id
func (h *ProfileHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toProfileResponse はmodel.ProfileからAPIレスポンスに変換する。
func toProfileResponse(p *model.Profile) profileResponse {
	return profileResponse{
		ID:          p.ID,
		Name:        p.Name,
		FirstName:   p.FirstName,
		Description: p.Description,
		Title:       p.Title,
		CreatedAt:   p.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		UpdatedAt:   p.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeUserNotFound, model.ErrCodeProfileNotFound:
		return http.StatusNotFound
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
