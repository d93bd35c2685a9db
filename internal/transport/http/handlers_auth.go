package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	idmodels "apim/internal/identity/models"
	sessionservice "apim/internal/session/service"
	derrors "apim/pkg/domain-errors"
	"apim/pkg/requestcontext"
)

// Sessions is the slice of the session service the auth handler needs.
type Sessions interface {
	Login(ctx context.Context, userID, password string) (idmodels.User, sessionservice.TokenPair, error)
	Refresh(ctx context.Context, presented string) (idmodels.User, sessionservice.TokenPair, error)
	Logout(ctx context.Context, userID string)
}

// Identities resolves the authenticated user's profile.
type Identities interface {
	Lookup(ctx context.Context, userID string) (idmodels.User, error)
}

type AuthHandler struct {
	sessions   Sessions
	identities Identities
	cookies    CookieConfig
}

func NewAuthHandler(sessions Sessions, identities Identities, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{sessions: sessions, identities: identities, cookies: cookies}
}

type loginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

type loginResponse struct {
	Profile idmodels.Profile `json:"profile"`
	Access  string           `json:"access_token"`
	Refresh string           `json:"refresh_token"`
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.UserID == "" || req.Password == "" {
		writeError(w, derrors.New(derrors.CodeValidation, "user_id and password are required"))
		return
	}

	user, pair, err := h.sessions.Login(r.Context(), req.UserID, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.setAccess(w, pair.Access)
	h.cookies.setRefresh(w, pair.Refresh)
	writeJSON(w, http.StatusOK, loginResponse{
		Profile: user.Profile(),
		Access:  pair.Access,
		Refresh: pair.Refresh,
	})
}

// handleRefresh exchanges the presented refresh value for a fresh pair.
// It sits outside requireAuth: the access assertion may already be
// expired, which is exactly when clients call it.
func (h *AuthHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	presented := cookieValue(r, refreshCookie)
	if presented == "" {
		presented = r.Header.Get(refreshHeader)
	}

	user, pair, err := h.sessions.Refresh(r.Context(), presented)
	if err != nil {
		if terminalAuthFailure(err) {
			h.cookies.clear(w)
		}
		writeError(w, err)
		return
	}

	h.cookies.setAccess(w, pair.Access)
	h.cookies.setRefresh(w, pair.Refresh)
	writeJSON(w, http.StatusOK, loginResponse{
		Profile: user.Profile(),
		Access:  pair.Access,
		Refresh: pair.Refresh,
	})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context(), requestcontext.UserID(r.Context()))
	h.cookies.clear(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *AuthHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.identities.Lookup(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Profile())
}
