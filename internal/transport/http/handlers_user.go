package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	idmodels "apim/internal/identity/models"
	idservice "apim/internal/identity/service"
	derrors "apim/pkg/domain-errors"
	"apim/pkg/requestcontext"
)

// Users is the slice of the identity service the admin handler needs.
type Users interface {
	Create(ctx context.Context, input idservice.NewUser, actorID string) (idmodels.User, error)
	SetActive(ctx context.Context, userID string, active bool, actorID string) error
	ChangePassword(ctx context.Context, userID, newPassword, actorID string) error
	Delete(ctx context.Context, userID string) error
}

type UserHandler struct {
	users Users
}

func NewUserHandler(users Users) *UserHandler {
	return &UserHandler{users: users}
}

type createUserRequest struct {
	UserID          string `json:"user_id"`
	Password        string `json:"password"`
	DisplayName     string `json:"display_name"`
	PermissionClass string `json:"permission_class"`
	Active          bool   `json:"active"`
}

func (h *UserHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}

	user, err := h.users.Create(r.Context(), idservice.NewUser{
		ID:              req.UserID,
		Password:        req.Password,
		DisplayName:     req.DisplayName,
		PermissionClass: idmodels.PermissionClass(req.PermissionClass),
		Active:          req.Active,
	}, requestcontext.UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user.Profile())
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (h *UserHandler) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}

	userID := chi.URLParam(r, "user_id")
	if err := h.users.SetActive(r.Context(), userID, req.Active, requestcontext.UserID(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type changePasswordRequest struct {
	Password string `json:"password"`
}

func (h *UserHandler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}

	userID := chi.URLParam(r, "user_id")
	if err := h.users.ChangePassword(r.Context(), userID, req.Password, requestcontext.UserID(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *UserHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), chi.URLParam(r, "user_id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
