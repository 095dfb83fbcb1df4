package service

import (
	"context"
	"testing"
	"time"

	"skillcert_backend/internal/config"
	"skillcert_backend/internal/gate"
	"skillcert_backend/internal/model"
	"skillcert_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCertificationPolicy(t *testing.T) {
	p := NewCertificationPolicy(config.CertificationConfig{PassScore: 0, ValidityDays: 10})
	assert.Equal(t, gate.DefaultPassScore, p.PassScore())
	assert.Equal(t, 85, p.PassScoreFor(&model.SkillTest{PassScore: 85}))
	assert.Equal(t, 70, p.PassScoreFor(nil))

	now := time.Now()
	cert, err := p.Issue(&model.TestSubmission{UserID: 3, Skill: "go"}, 88, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(10*24*time.Hour), cert.ExpiresAt)

	p.Update(config.CertificationConfig{PassScore: 80, ValidityDays: 1})
	assert.Equal(t, 80, p.PassScore())
}

func TestProfileAndSellerGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.learner(t, "seller@example.com")

	profile, err := env.certs.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, profile.Certifications)
	assert.Empty(t, profile.Certifications)

	decision, err := env.certs.RegisterSeller(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, gate.MessageNoCertification, decision.Message)

	require.NoError(t, env.certRepo.Create(&model.Certification{UserID: u.ID, Skill: "go", Score: 50,
		IssuedAt: env.now, ExpiresAt: env.now.Add(time.Hour), Status: model.CertificationActive}))
	decision, err = env.certs.RegisterSeller(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, gate.BlockedBelowThreshold, decision.Outcome)

	require.NoError(t, env.certRepo.Create(&model.Certification{UserID: u.ID, Skill: "sql", Score: 75,
		IssuedAt: env.now, ExpiresAt: env.now.Add(time.Hour), Status: model.CertificationActive}))
	decision, err = env.certs.RegisterSeller(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, decision.Allowed())

	user, err := env.users.FindByID(u.ID)
	require.NoError(t, err)
	assert.True(t, user.IsSeller)

	_, err = env.certs.GetProfile(ctx, 4242)
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}

func TestListForUserReportsExpiry(t *testing.T) {
	env := newTestEnv(t)
	u := env.learner(t, "exp@example.com")
	require.NoError(t, env.certRepo.Create(&model.Certification{UserID: u.ID, Skill: "go", Score: 90,
		IssuedAt: env.now.Add(-48 * time.Hour), ExpiresAt: env.now.Add(-time.Hour), Status: model.CertificationActive}))

	certs, err := env.certs.ListForUser(context.Background(), u.ID)
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, model.CertificationExpired, certs[0].Status)

	require.NoError(t, env.certs.ExpireOverdue(context.Background()))
	stored, err := env.certRepo.ListByUser(u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CertificationExpired, stored[0].Status)
}
