package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"apim/internal/permission/models"
	"apim/internal/permission/service"
	derrors "apim/pkg/domain-errors"
	"apim/pkg/requestcontext"
)

// Permissions is the slice of the permission service the handler needs.
type Permissions interface {
	ListGrants(ctx context.Context, userID string) ([]models.Grant, error)
	ReplaceGrants(ctx context.Context, userID string, resourceIDs []string) error
	Submit(ctx context.Context, userID, resourceID, reason string) (models.Request, error)
	Approve(ctx context.Context, requestID string) (models.Request, error)
	Reject(ctx context.Context, requestID string) (models.Request, error)
	List(ctx context.Context, query service.ListQuery) ([]models.Request, error)
	PendingCount(ctx context.Context) (int, error)
}

type PermissionHandler struct {
	permissions Permissions
}

func NewPermissionHandler(permissions Permissions) *PermissionHandler {
	return &PermissionHandler{permissions: permissions}
}

func (h *PermissionHandler) handleListGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.permissions.ListGrants(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if grants == nil {
		grants = []models.Grant{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": grants})
}

type replaceGrantsRequest struct {
	ResourceIDs []string `json:"resource_ids"`
}

func (h *PermissionHandler) handleReplaceGrants(w http.ResponseWriter, r *http.Request) {
	var req replaceGrantsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}

	userID := chi.URLParam(r, "user_id")
	if err := h.permissions.ReplaceGrants(r.Context(), userID, req.ResourceIDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type submitRequest struct {
	ResourceID string `json:"resource_id"`
	Reason     string `json:"reason"`
}

// handleSubmit files a request on behalf of the authenticated user; the
// target user ID is never taken from the body.
func (h *PermissionHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}

	request, err := h.permissions.Submit(r.Context(), requestcontext.UserID(r.Context()), req.ResourceID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

func (h *PermissionHandler) handleApprove(w http.ResponseWriter, r *http.Request) {
	request, err := h.permissions.Approve(r.Context(), chi.URLParam(r, "request_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *PermissionHandler) handleReject(w http.ResponseWriter, r *http.Request) {
	request, err := h.permissions.Reject(r.Context(), chi.URLParam(r, "request_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *PermissionHandler) handleList(w http.ResponseWriter, r *http.Request) {
	query, err := parseListQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	requests, err := h.permissions.List(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (h *PermissionHandler) handlePendingCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.permissions.PendingCount(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pending_count": count})
}

func parseListQuery(r *http.Request) (service.ListQuery, error) {
	values := r.URL.Query()
	query := service.ListQuery{
		UserID:     values.Get("user_id"),
		ResourceID: values.Get("resource_id"),
		Method:     values.Get("method"),
	}

	if raw := values.Get("status"); raw != "" {
		status := models.Status(raw)
		switch status {
		case models.StatusPending, models.StatusApproved, models.StatusRejected:
			query.Status = status
		default:
			return service.ListQuery{}, derrors.New(derrors.CodeValidation, "status must be PENDING, APPROVED, or REJECTED")
		}
	}

	var err error
	if query.From, err = parseDate(values.Get("from")); err != nil {
		return service.ListQuery{}, err
	}
	if query.To, err = parseDate(values.Get("to")); err != nil {
		return service.ListQuery{}, err
	}
	return query, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, derrors.New(derrors.CodeValidation, "dates must be RFC3339 or YYYY-MM-DD")
}
