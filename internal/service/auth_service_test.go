package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sigea-dev/almacen-api/internal/models"
	"github.com/sigea-dev/almacen-api/pkg/config"
	appErrors "github.com/sigea-dev/almacen-api/pkg/errors"
)

type fakeAuthUserRepo struct {
	usuarios    map[string]*models.User
	ultimoLogin map[string]time.Time
}

func (f *fakeAuthUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.usuarios {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := f.usuarios[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthUserRepo) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	if f.ultimoLogin == nil {
		f.ultimoLogin = map[string]time.Time{}
	}
	f.ultimoLogin[id] = ts
	return nil
}

func newAuthService(t *testing.T, password string, active bool) (*AuthService, *fakeAuthUserRepo) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &fakeAuthUserRepo{usuarios: map[string]*models.User{
		"usr-1": {
			ID:           "usr-1",
			Email:        "almacenero@colegio.edu.pe",
			PasswordHash: string(hash),
			FullName:     "Marta Ramos",
			Role:         models.RoleAlmacenero,
			Active:       active,
		},
	}}

	cfg := config.JWTConfig{Secret: "test-secret", Expiration: time.Hour, Issuer: "almacen-api"}
	return NewAuthService(repo, cfg, nil, nil), repo
}

func TestLoginIssuesToken(t *testing.T) {
	svc, repo := newAuthService(t, "clave-segura", true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "almacenero@colegio.edu.pe",
		Password: "clave-segura",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, time.Minute)
	assert.Contains(t, repo.ultimoLogin, "usr-1")

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "usr-1", claims.UserID)
	assert.Equal(t, models.RoleAlmacenero, claims.Role)
	assert.Equal(t, "almacen-api", claims.Issuer)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthService(t, "clave-segura", true)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "almacenero@colegio.edu.pe",
		Password: "otra-clave",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthService(t, "clave-segura", true)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nadie@colegio.edu.pe",
		Password: "clave-segura",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, _ := newAuthService(t, "clave-segura", false)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "almacenero@colegio.edu.pe",
		Password: "clave-segura",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	svc, _ := newAuthService(t, "clave-segura", true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "almacenero@colegio.edu.pe",
		Password: "clave-segura",
	})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.AccessToken + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
