package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"apim/internal/identity/models"
	"apim/internal/identity/store"
	permissionmodels "apim/internal/permission/models"
	permissionstore "apim/internal/permission/store"
	sessionmodels "apim/internal/session/models"
	sessionstore "apim/internal/session/store"
	derrors "apim/pkg/domain-errors"
	"apim/pkg/platform/sentinel"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T, opts ...Option) (*Service, *store.InMemoryStore) {
	t.Helper()
	users := store.NewMemory()
	opts = append([]Option{WithBcryptCost(bcrypt.MinCost)}, opts...)
	return New(users, testLogger(), opts...), users
}

func TestCreateAndAuthenticate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, NewUser{
		ID:          "alice",
		Password:    "secret",
		DisplayName: "Alice",
		Active:      true,
	}, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.PermissionClassGeneral, created.PermissionClass, "class defaults to GENERAL")
	assert.Equal(t, "admin", created.CreatedBy)

	user, err := svc.Authenticate(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.ID)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, NewUser{ID: "  ", Password: "x"}, "admin")
	assert.True(t, derrors.HasCode(err, derrors.CodeValidation))

	_, err = svc.Create(ctx, NewUser{ID: "bob"}, "admin")
	assert.True(t, derrors.HasCode(err, derrors.CodeValidation))
}

func TestCreateDuplicateConflicts(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, NewUser{ID: "alice", Password: "secret", Active: true}, "admin")
	require.NoError(t, err)

	_, err = svc.Create(ctx, NewUser{ID: "alice", Password: "other", Active: true}, "admin")
	require.Error(t, err)
	assert.True(t, derrors.HasCode(err, derrors.CodeConflict))
}

func TestAuthenticateFailureIsUniform(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, NewUser{ID: "alice", Password: "secret", Active: true}, "admin")
	require.NoError(t, err)

	_, errWrongPassword := svc.Authenticate(ctx, "alice", "wrong")
	_, errUnknownUser := svc.Authenticate(ctx, "nobody", "secret")

	require.Error(t, errWrongPassword)
	require.Error(t, errUnknownUser)
	// An attacker probing user IDs must see identical failures.
	assert.Equal(t, errWrongPassword.Error(), errUnknownUser.Error())
	assert.True(t, derrors.HasCode(errWrongPassword, derrors.CodeUnauthorized))
	assert.True(t, derrors.HasCode(errUnknownUser, derrors.CodeUnauthorized))
}

func TestAuthenticateDisabledAfterPasswordCheck(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, NewUser{ID: "alice", Password: "secret", Active: false}, "admin")
	require.NoError(t, err)

	// Correct password reveals the disabled state.
	_, err = svc.Authenticate(ctx, "alice", "secret")
	assert.True(t, derrors.HasCode(err, derrors.CodeAccountDisabled))

	// Wrong password does not.
	_, err = svc.Authenticate(ctx, "alice", "wrong")
	assert.True(t, derrors.HasCode(err, derrors.CodeUnauthorized))
}

func TestChangePassword(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, NewUser{ID: "alice", Password: "old", Active: true}, "admin")
	require.NoError(t, err)

	require.NoError(t, svc.ChangePassword(ctx, "alice", "new", "admin"))

	_, err = svc.Authenticate(ctx, "alice", "old")
	require.Error(t, err)
	_, err = svc.Authenticate(ctx, "alice", "new")
	require.NoError(t, err)
}

func TestSetActiveUnknownUser(t *testing.T) {
	svc, _ := newService(t)
	err := svc.SetActive(context.Background(), "nobody", true, "admin")
	assert.True(t, derrors.HasCode(err, derrors.CodeNotFound))
}

func TestDeleteCascades(t *testing.T) {
	sessions := sessionstore.NewMemory()
	grants := permissionstore.NewMemory()
	svc, _ := newService(t, WithCascades(sessions, grants))
	ctx := context.Background()

	_, err := svc.Create(ctx, NewUser{ID: "alice", Password: "secret", Active: true}, "admin")
	require.NoError(t, err)
	require.NoError(t, sessions.Replace(ctx, sessionmodels.Session{
		UserID: "alice", RefreshValue: "r1", IssuedAt: time.Now(),
	}))
	require.NoError(t, grants.UpsertGrant(ctx, permissionmodels.Grant{
		ResourceID: "api-1", UserID: "alice", GrantedBy: "admin", GrantedAt: time.Now(),
	}))

	require.NoError(t, svc.Delete(ctx, "alice"))

	_, err = svc.Lookup(ctx, "alice")
	assert.True(t, derrors.HasCode(err, derrors.CodeNotFound))
	_, err = sessions.Find(ctx, "alice")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	granted, err := grants.HasGrant(ctx, "alice", "api-1")
	require.NoError(t, err)
	assert.False(t, granted)
}
