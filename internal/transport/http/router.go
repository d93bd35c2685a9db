// Package httptransport is the thin HTTP layer: it parses requests,
// delegates to domain services, and translates domain errors into the
// console's JSON error envelope. No business logic lives here.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"apim/internal/gate"
)

// Handlers bundles the route handlers and the gate for router assembly.
type Handlers struct {
	Auth        *AuthHandler
	Permissions *PermissionHandler
	Catalog     *CatalogHandler
	Users       *UserHandler
	Gate        *gate.Gate
	Cookies     CookieConfig
}

// NewRouter wires all endpoints. Login and refresh sit outside the
// authorization gate; everything else under /apim requires it, and
// administrative routes additionally require the ADMIN class.
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestClock)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/apim", func(r chi.Router) {
		r.Post("/auth/login", h.Auth.handleLogin)
		r.Post("/auth/refresh", h.Auth.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth(h.Gate, h.Cookies))

			r.Post("/auth/logout", h.Auth.handleLogout)
			r.Get("/auth/profile", h.Auth.handleProfile)

			r.Post("/user/api-permission-requests", h.Permissions.handleSubmit)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)

				r.Get("/api-permissions/{user_id}", h.Permissions.handleListGrants)
				r.Post("/api-permissions/{user_id}", h.Permissions.handleReplaceGrants)

				r.Get("/api-permission-requests", h.Permissions.handleList)
				r.Get("/api-permission-requests/pending-count", h.Permissions.handlePendingCount)
				r.Post("/api-permission-requests/{request_id}/approve", h.Permissions.handleApprove)
				r.Post("/api-permission-requests/{request_id}/reject", h.Permissions.handleReject)

				r.Get("/apis", h.Catalog.handleList)
				r.Post("/apis", h.Catalog.handleCreate)
				r.Delete("/apis/{resource_id}", h.Catalog.handleDelete)

				r.Post("/users", h.Users.handleCreate)
				r.Patch("/users/{user_id}/active", h.Users.handleSetActive)
				r.Put("/users/{user_id}/password", h.Users.handleChangePassword)
				r.Delete("/users/{user_id}", h.Users.handleDelete)
			})
		})
	})

	return r
}
