package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluationStatusOnlyMovesForward(t *testing.T) {
	cases := []struct {
		from, to EvaluationStatus
		ok       bool
	}{
		{EvaluationPending, EvaluationPending, true},
		{EvaluationPending, EvaluationInProgress, true},
		{EvaluationPending, EvaluationCompleted, true},
		{EvaluationInProgress, EvaluationCompleted, true},
		{EvaluationInProgress, EvaluationPending, false},
		{EvaluationCompleted, EvaluationPending, false},
		{EvaluationCompleted, EvaluationInProgress, false},
		{EvaluationCompleted, EvaluationCompleted, false},
		{EvaluationPending, "graded", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanAdvanceTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestScoreInRange(t *testing.T) {
	assert.True(t, ScoreInRange(0))
	assert.True(t, ScoreInRange(100))
	assert.False(t, ScoreInRange(-1))
	assert.False(t, ScoreInRange(101))
}

func TestCertificationWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Certification{IssuedAt: now, ExpiresAt: now}
	assert.ErrorIs(t, c.Validate(), ErrCertificationWindow)

	c.ExpiresAt = now.Add(time.Hour)
	assert.NoError(t, c.Validate())
	assert.Equal(t, CertificationActive, c.EffectiveStatus(now))
	assert.Equal(t, CertificationExpired, c.EffectiveStatus(now.Add(time.Hour)))
}

func TestPracticalLookup(t *testing.T) {
	s := TestSubmission{PracticalSubmissions: []PracticalSubmission{{QuestionID: 3}, {QuestionID: 7}}}
	p := s.Practical(7)
	if assert.NotNil(t, p) {
		assert.Equal(t, uint(7), p.QuestionID)
	}
	assert.Nil(t, s.Practical(9))
}

func TestUUIDBaseKeepsPresetID(t *testing.T) {
	var fresh UUIDBase
	assert.NoError(t, fresh.BeforeCreate(nil))
	assert.Len(t, fresh.ID, 36)

	preset := UUIDBase{ID: "sub-1"}
	assert.NoError(t, preset.BeforeCreate(nil))
	assert.Equal(t, "sub-1", preset.ID)
}
