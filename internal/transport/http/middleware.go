package httptransport

import (
	"net/http"
	"strings"
	"time"

	"apim/internal/gate"
	idmodels "apim/internal/identity/models"
	derrors "apim/pkg/domain-errors"
	"apim/pkg/requestcontext"
)

// requestClock pins one timestamp per request so every decision made
// while serving it (issuance, rotation, renewal) observes the same
// instant.
func requestClock(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuth runs every request through the authorization gate. On
// success the authenticated identity is bound into the request context;
// when the gate silently renewed the access assertion, the new value is
// delivered as both a cookie and a response header before the handler
// runs.
func requireAuth(g *gate.Gate, cookies CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access := cookieValue(r, accessCookie)
			if access == "" {
				access = bearerToken(r)
			}
			refresh := cookieValue(r, refreshCookie)
			if refresh == "" {
				refresh = r.Header.Get(refreshHeader)
			}

			result, err := g.Authenticate(r.Context(), access, refresh)
			if err != nil {
				if terminalAuthFailure(err) {
					cookies.clear(w)
				}
				writeError(w, err)
				return
			}

			if result.RenewedAccess != "" {
				cookies.setAccess(w, result.RenewedAccess)
				w.Header().Set(renewedAccessHeader, result.RenewedAccess)
			}

			ctx := requestcontext.WithUserID(r.Context(), result.UserID)
			ctx = requestcontext.WithPermissionClass(ctx, string(result.PermissionClass))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// terminalAuthFailure reports whether the session is beyond recovery,
// meaning stale cookies should not be presented again.
func terminalAuthFailure(err error) bool {
	return derrors.HasCode(err, derrors.CodeSessionSuperseded) ||
		derrors.HasCode(err, derrors.CodeAccountDisabled)
}

// requireAdmin gates elevated routes on the permission class bound by
// requireAuth. It must run inside requireAuth.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAdmin(r) {
			writeError(w, derrors.New(derrors.CodeForbidden, "administrator privileges required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAdmin(r *http.Request) bool {
	return idmodels.PermissionClass(requestcontext.PermissionClass(r.Context())).IsAdmin()
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
