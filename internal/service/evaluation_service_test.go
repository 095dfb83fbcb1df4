package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"skillcert_backend/internal/model"
	"skillcert_backend/internal/util"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateScores(t *testing.T) {
	assert.NoError(t, ValidateScores(map[string]float64{"1": 0, "2": 100, "3": 55.5}))

	err := ValidateScores(map[string]float64{"1": 50, "2": 101})
	require.ErrorIs(t, err, util.ErrScoreOutOfRange)
	var se *ScoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "2", se.QuestionID)

	assert.ErrorIs(t, ValidateScores(map[string]float64{"1": -0.5}), util.ErrScoreOutOfRange)
}

func TestFinalScore(t *testing.T) {
	sub := &model.TestSubmission{Score: 60, PracticalSubmissions: []model.PracticalSubmission{
		{Score: util.IntPtr(80)}, {Score: util.IntPtr(91)},
	}}
	assert.Equal(t, 77, FinalScore(sub, true))
	assert.Equal(t, 86, FinalScore(sub, false))
}

func TestListPendingSummaries(t *testing.T) {
	env := newTestEnv(t)
	u := env.learner(t, "list@example.com")
	test := env.practicalTest(t, false)
	sub := env.submitPractical(t, u.ID, test, "5")

	rows, err := env.evals.ListPending(model.EvaluationPending)
	require.NoError(t, err)
	want := []SubmissionSummary{{
		ID:               sub.ID,
		UserID:           u.ID,
		LearnerName:      "Learner",
		LearnerEmail:     "list@example.com",
		TestID:           test.ID,
		Skill:            "go",
		Score:            0,
		EvaluationStatus: model.EvaluationPending,
		PracticalCount:   1,
	}}
	if diff := cmp.Diff(want, rows, cmp.FilterPath(func(p cmp.Path) bool {
		return p.Last().String() == ".SubmittedAt"
	}, cmp.Ignore())); diff != "" {
		t.Errorf("ListPending mismatch (-want +got):\n%s", diff)
	}

	_, err = env.evals.ListPending("graded")
	assert.ErrorIs(t, err, util.ErrInvalidStatus)
}

func TestGetEvaluationMovesPendingToInProgress(t *testing.T) {
	env := newTestEnv(t)
	u := env.learner(t, "open@example.com")
	sub := env.submitPractical(t, u.ID, env.practicalTest(t, false), "4")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := env.evals.Watch(ctx)
	require.NoError(t, err)

	detail, err := env.evals.GetEvaluation(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EvaluationInProgress, detail.Submission.EvaluationStatus)
	assert.Len(t, detail.Questions, 2)
	assert.Equal(t, 70, detail.PassScore)

	select {
	case ev := <-events:
		assert.Equal(t, sub.ID, ev.SubmissionID)
		assert.Equal(t, model.EvaluationInProgress, ev.EvaluationStatus)
	case <-time.After(time.Second):
		t.Fatal("no status event published")
	}

	// opening again does not publish or change anything
	detail, err = env.evals.GetEvaluation(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EvaluationInProgress, detail.Submission.EvaluationStatus)

	_, err = env.evals.GetEvaluation(ctx, "missing")
	assert.ErrorIs(t, err, util.ErrSubmissionNotFound)
}

func TestSaveEvaluationCompletesAndCertifies(t *testing.T) {
	env := newTestEnv(t)
	u := env.learner(t, "grade@example.com")
	test := env.practicalTest(t, false)
	sub := env.submitPractical(t, u.ID, test, "4")
	qid := strconv.FormatUint(uint64(test.Questions[1].ID), 10)

	saved, err := env.evals.SaveEvaluation(context.Background(), sub.ID, 7, SaveEvaluationRequest{
		OverallFeedback:   "solid",
		PracticalScores:   map[string]float64{qid: 80},
		PracticalFeedback: map[string]string{qid: "clean handler"},
		EvaluationStatus:  model.EvaluationCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, model.EvaluationCompleted, saved.EvaluationStatus)
	assert.True(t, saved.Passed)

	reloaded, err := env.subs.FindByID(sub.ID)
	require.NoError(t, err)
	p := reloaded.PracticalSubmissions[0]
	assert.Equal(t, model.PracticalEvaluated, p.Status)
	require.NotNil(t, p.Score)
	assert.Equal(t, 80, *p.Score)
	require.NotNil(t, p.Feedback)
	assert.Equal(t, "clean handler", *p.Feedback)
	require.NotNil(t, reloaded.EvaluatedBy)
	assert.Equal(t, uint(7), *reloaded.EvaluatedBy)

	certs, err := env.certs.ListForUser(context.Background(), u.ID)
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, 90, certs[0].Score)
	assert.Equal(t, env.now.Add(30*24*time.Hour), certs[0].ExpiresAt.UTC())

	// completed is terminal
	_, err = env.evals.SaveEvaluation(context.Background(), sub.ID, 7, SaveEvaluationRequest{
		PracticalScores: map[string]float64{qid: 10},
	})
	assert.ErrorIs(t, err, util.ErrStatusRegression)
}

func TestSaveEvaluationRejectsBadInputWithoutWriting(t *testing.T) {
	env := newTestEnv(t)
	u := env.learner(t, "bad@example.com")
	test := env.practicalTest(t, false)
	sub := env.submitPractical(t, u.ID, test, "4")
	qid := strconv.FormatUint(uint64(test.Questions[1].ID), 10)
	ctx := context.Background()

	_, err := env.evals.SaveEvaluation(ctx, sub.ID, 1, SaveEvaluationRequest{PracticalScores: map[string]float64{qid: 120}})
	assert.ErrorIs(t, err, util.ErrScoreOutOfRange)

	_, err = env.evals.SaveEvaluation(ctx, sub.ID, 1, SaveEvaluationRequest{PracticalScores: map[string]float64{"999": 50}})
	assert.ErrorIs(t, err, util.ErrUnknownQuestion)

	_, err = env.evals.SaveEvaluation(ctx, sub.ID, 1, SaveEvaluationRequest{EvaluationStatus: model.EvaluationCompleted})
	assert.ErrorIs(t, err, util.ErrMissingPracticalScore)

	_, err = env.evals.SaveEvaluation(ctx, sub.ID, 1, SaveEvaluationRequest{EvaluationStatus: "reviewed"})
	assert.ErrorIs(t, err, util.ErrInvalidStatus)

	reloaded, err := env.subs.FindByID(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EvaluationPending, reloaded.EvaluationStatus)
	assert.Nil(t, reloaded.PracticalSubmissions[0].Score)
}

func TestSaveEvaluationInProgressCannotRegress(t *testing.T) {
	env := newTestEnv(t)
	u := env.learner(t, "partial@example.com")
	test := env.practicalTest(t, false)
	sub := env.submitPractical(t, u.ID, test, "4")
	qid := strconv.FormatUint(uint64(test.Questions[1].ID), 10)
	ctx := context.Background()

	saved, err := env.evals.SaveEvaluation(ctx, sub.ID, 1, SaveEvaluationRequest{
		PracticalScores:  map[string]float64{qid: 40},
		EvaluationStatus: model.EvaluationInProgress,
	})
	require.NoError(t, err)
	assert.Equal(t, model.EvaluationInProgress, saved.EvaluationStatus)

	_, err = env.evals.SaveEvaluation(ctx, sub.ID, 1, SaveEvaluationRequest{EvaluationStatus: model.EvaluationPending})
	assert.ErrorIs(t, err, util.ErrStatusRegression)
}

func TestSaveEvaluationExplicitFail(t *testing.T) {
	env := newTestEnv(t)
	u := env.learner(t, "explicit@example.com")
	test := env.practicalTest(t, false)
	sub := env.submitPractical(t, u.ID, test, "4")
	qid := strconv.FormatUint(uint64(test.Questions[1].ID), 10)
	failed := false

	saved, err := env.evals.SaveEvaluation(context.Background(), sub.ID, 1, SaveEvaluationRequest{
		PracticalScores: map[string]float64{qid: 95},
		Passed:          &failed,
	})
	require.NoError(t, err)
	assert.False(t, saved.Passed)

	certs, err := env.certRepo.ListByUser(u.ID)
	require.NoError(t, err)
	assert.Empty(t, certs)
}

func TestSaveEvaluationExplicitPassBelowThreshold(t *testing.T) {
	env := newTestEnv(t)
	u := env.learner(t, "override@example.com")
	test := env.practicalTest(t, false)
	sub := env.submitPractical(t, u.ID, test, "5")
	qid := strconv.FormatUint(uint64(test.Questions[1].ID), 10)
	passed := true

	saved, err := env.evals.SaveEvaluation(context.Background(), sub.ID, 1, SaveEvaluationRequest{
		PracticalScores: map[string]float64{qid: 40},
		Passed:          &passed,
	})
	require.NoError(t, err)
	assert.True(t, saved.Passed)
	assert.Equal(t, model.EvaluationCompleted, saved.EvaluationStatus)

	certs, err := env.certRepo.ListByUser(u.ID)
	require.NoError(t, err)
	assert.Empty(t, certs)
}
