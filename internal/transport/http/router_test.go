package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	catalogmodels "apim/internal/catalog/models"
	catalogservice "apim/internal/catalog/service"
	catalogstore "apim/internal/catalog/store"
	"apim/internal/gate"
	idmodels "apim/internal/identity/models"
	idservice "apim/internal/identity/service"
	idstore "apim/internal/identity/store"
	permissionservice "apim/internal/permission/service"
	permissionstore "apim/internal/permission/store"
	sessionservice "apim/internal/session/service"
	sessionstore "apim/internal/session/store"
	"apim/internal/token"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer assembles the full stack on in-memory stores, the same
// wiring as the server binary.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	users := idstore.NewMemory()
	for _, u := range []struct {
		id    string
		class idmodels.PermissionClass
	}{
		{"alice", idmodels.PermissionClassGeneral},
		{"root", idmodels.PermissionClassAdmin},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
		require.NoError(t, err)
		require.NoError(t, users.Save(ctx, idmodels.User{
			ID:              u.id,
			PasswordHash:    string(hash),
			DisplayName:     u.id,
			PermissionClass: u.class,
			Active:          true,
		}))
	}

	resources := catalogstore.NewMemory()
	require.NoError(t, resources.Save(ctx, catalogmodels.Resource{
		ID: "api-1", Name: "List widgets", Method: "GET", Path: "/widgets",
		Enabled: true, CreatedAt: time.Now(),
	}))

	tokens, err := token.New(token.Config{
		SigningKey:     "test-signing-key",
		AccessTTL:      30 * time.Minute,
		RefreshTTL:     time.Hour,
		RenewThreshold: 10 * time.Minute,
	})
	require.NoError(t, err)

	sessions := sessionstore.NewMemory()
	permissions := permissionstore.NewMemory()

	identities := idservice.New(users, testLogger(),
		idservice.WithBcryptCost(bcrypt.MinCost),
		idservice.WithCascades(sessions, permissions),
	)
	sessionSvc := sessionservice.New(identities, tokens, sessions, nil, testLogger())
	authGate := gate.New(tokens, identities, sessions, nil, testLogger())
	catalogSvc := catalogservice.New(resources, testLogger(),
		catalogservice.WithGrantCascade(permissions),
	)
	permissionSvc := permissionservice.New(permissions, identities, catalogSvc, nil, testLogger())

	cookies := CookieConfig{AccessTTL: 30 * time.Minute, RefreshTTL: time.Hour}
	router := NewRouter(Handlers{
		Auth:        NewAuthHandler(sessionSvc, identities, cookies),
		Permissions: NewPermissionHandler(permissionSvc),
		Catalog:     NewCatalogHandler(catalogSvc),
		Users:       NewUserHandler(identities),
		Gate:        authGate,
		Cookies:     cookies,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// login returns the cookies established for the user.
func login(t *testing.T, srv *httptest.Server, userID, password string) []*http.Cookie {
	t.Helper()
	resp := postJSON(t, srv, "/apim/auth/login", nil, map[string]string{
		"user_id": userID, "password": password,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return resp.Cookies()
}

func postJSON(t *testing.T, srv *httptest.Server, path string, cookies []*http.Cookie, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func get(t *testing.T, srv *httptest.Server, path string, cookies []*http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	return decode[map[string]string](t, resp)["error"]
}

func TestLoginSetsSessionCookies(t *testing.T) {
	srv := newTestServer(t)
	cookies := login(t, srv, "alice", "secret")

	names := map[string]bool{}
	for _, c := range cookies {
		names[c.Name] = true
		assert.True(t, c.HttpOnly)
	}
	assert.True(t, names["access_token"])
	assert.True(t, names["refresh_token"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv, "/apim/auth/login", nil, map[string]string{
		"user_id": "alice", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, resp))
}

func TestProfileRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	cookies := login(t, srv, "alice", "secret")

	resp := get(t, srv, "/apim/auth/profile", cookies)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decode[idmodels.Profile](t, resp)
	assert.Equal(t, "alice", profile.ID)
	assert.Equal(t, idmodels.PermissionClassGeneral, profile.PermissionClass)
}

func TestProfileWithoutCookiesIs440(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv, "/apim/auth/profile", nil)
	assert.Equal(t, 440, resp.StatusCode)
	assert.Equal(t, "UNAUTHENTICATED", errorCode(t, resp))
}

func TestRefreshRotatesAndBurnsOldValue(t *testing.T) {
	srv := newTestServer(t)
	cookies := login(t, srv, "alice", "secret")

	resp := postJSON(t, srv, "/apim/auth/refresh", cookies, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rotated := resp.Cookies()
	resp.Body.Close()
	require.NotEmpty(t, rotated)

	// Replaying the consumed refresh value must fail with 440.
	resp = postJSON(t, srv, "/apim/auth/refresh", cookies, nil)
	assert.Equal(t, 440, resp.StatusCode)
	assert.Equal(t, "SESSION_SUPERSEDED", errorCode(t, resp))

	// The rotated cookies keep working.
	resp = get(t, srv, "/apim/auth/profile", rotated)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestSecondLoginCutsOffFirstDevice(t *testing.T) {
	srv := newTestServer(t)
	first := login(t, srv, "alice", "secret")
	_ = login(t, srv, "alice", "secret")

	resp := get(t, srv, "/apim/auth/profile", first)
	assert.Equal(t, 440, resp.StatusCode)
	assert.Equal(t, "SESSION_SUPERSEDED", errorCode(t, resp))
}

func TestLogoutInvalidatesSession(t *testing.T) {
	srv := newTestServer(t)
	cookies := login(t, srv, "alice", "secret")

	resp := postJSON(t, srv, "/apim/auth/logout", cookies, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = get(t, srv, "/apim/auth/profile", cookies)
	assert.Equal(t, 419, resp.StatusCode)
	assert.Equal(t, "SESSION_EXPIRED", errorCode(t, resp))
}

func TestAdminRoutesRejectGeneralUsers(t *testing.T) {
	srv := newTestServer(t)
	cookies := login(t, srv, "alice", "secret")

	resp := get(t, srv, "/apim/api-permission-requests", cookies)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", errorCode(t, resp))
}

func TestPermissionWorkflowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	alice := login(t, srv, "alice", "secret")
	admin := login(t, srv, "root", "secret")

	// Alice asks for access.
	resp := postJSON(t, srv, "/apim/user/api-permission-requests", alice, map[string]string{
		"resource_id": "api-1", "reason": "need widget access",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]any](t, resp)
	requestID, _ := created["request_id"].(string)
	require.NotEmpty(t, requestID)

	// A duplicate ask conflicts.
	resp = postJSON(t, srv, "/apim/user/api-permission-requests", alice, map[string]string{
		"resource_id": "api-1", "reason": "asking twice",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ALREADY_PENDING", errorCode(t, resp))

	// The admin sees it pending.
	resp = get(t, srv, "/apim/api-permission-requests/pending-count", admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[map[string]int](t, resp)["pending_count"])

	// Approval grants the permission.
	resp = postJSON(t, srv, "/apim/api-permission-requests/"+requestID+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// A second approval conflicts.
	resp = postJSON(t, srv, "/apim/api-permission-requests/"+requestID+"/approve", admin, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "NOT_PENDING", errorCode(t, resp))

	// The grant shows up in Alice's listing.
	resp = get(t, srv, "/apim/api-permissions/alice", admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	grants := decode[map[string][]map[string]any](t, resp)["grants"]
	require.Len(t, grants, 1)
	assert.Equal(t, "api-1", grants[0]["resource_id"])
}

func TestListRequestsValidation(t *testing.T) {
	srv := newTestServer(t)
	admin := login(t, srv, "root", "secret")

	resp := get(t, srv, "/apim/api-permission-requests?status=BOGUS", admin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", errorCode(t, resp))
}

func TestHealthAndMetricsExposed(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = get(t, srv, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
