package service

import (
	"testing"

	"skillcert_backend/internal/model"
	"skillcert_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	u := &model.User{Name: "Grace", Email: "  Grace@Example.com ", Password: "password1", Role: model.Freelancer}
	require.NoError(t, env.auth.Register(u))
	assert.Equal(t, "grace@example.com", u.Email)
	assert.NotEqual(t, "password1", u.Password)

	dup := &model.User{Name: "Grace", Email: "GRACE@example.com", Password: "password2", Role: model.Freelancer}
	assert.ErrorIs(t, env.auth.Register(dup), util.ErrEmailRegistered)

	token, user, err := env.auth.Login("Grace@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, user.ID)
	claims, err := util.VerifySession(token, env.cfg.JWT.Secret)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)

	_, _, err = env.auth.Login("grace@example.com", "wrong")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	_, _, err = env.auth.Login("nobody@example.com", "password1")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
}
