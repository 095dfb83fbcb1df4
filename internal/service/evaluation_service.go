package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"skillcert_backend/internal/model"
	"skillcert_backend/internal/repository"
	"skillcert_backend/internal/util"
	"skillcert_backend/pkg/logger"
	"skillcert_backend/pkg/monitoring"
	"skillcert_backend/pkg/tracing"
	"sort"
	"strconv"
	"time"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type EvaluationService struct {
	Repo     *repository.SubmissionRepository
	Policy   *CertificationPolicy
	Certs    *CertificationService
	Notifier EvaluationNotifier
	now      func() time.Time
}

func NewEvaluationService(repo *repository.SubmissionRepository, policy *CertificationPolicy, certs *CertificationService, notifier EvaluationNotifier) *EvaluationService {
	return &EvaluationService{
		Repo:     repo,
		Policy:   policy,
		Certs:    certs,
		Notifier: notifier,
		now:      time.Now,
	}
}

// SubmissionSummary is one row of the admin review queue.
type SubmissionSummary struct {
	ID               string                 `json:"_id"`
	UserID           uint                   `json:"userId"`
	LearnerName      string                 `json:"learnerName"`
	LearnerEmail     string                 `json:"learnerEmail"`
	TestID           uint                   `json:"testId"`
	Skill            string                 `json:"skill"`
	Score            int                    `json:"score"`
	Passed           bool                   `json:"passed"`
	EvaluationStatus model.EvaluationStatus `json:"evaluationStatus"`
	SubmittedAt      time.Time              `json:"submittedAt"`
	PracticalCount   int                    `json:"practicalCount"`
}

// ListPending lists submissions for review. An empty status lists the whole queue.
func (s *EvaluationService) ListPending(status model.EvaluationStatus) ([]SubmissionSummary, error) {
	if status != "" && !status.Valid() {
		return nil, util.ErrInvalidStatus
	}
	subs, err := s.Repo.ListForEvaluation(status)
	if err != nil {
		return nil, err
	}

	out := make([]SubmissionSummary, len(subs))
	for i := range subs {
		if err := copier.Copy(&out[i], &subs[i]); err != nil {
			return nil, err
		}
		if subs[i].User != nil {
			out[i].LearnerName = subs[i].User.Name
			out[i].LearnerEmail = subs[i].User.Email
		}
		out[i].PracticalCount = len(subs[i].PracticalSubmissions)
	}
	return out, nil
}

// EvaluationDetail is everything the grader needs on one screen.
type EvaluationDetail struct {
	Submission *model.TestSubmission `json:"submission"`
	Questions  []model.TestQuestion  `json:"questions"`
	PassScore  int                   `json:"passScore"`
}

func (s *EvaluationService) load(id string) (*model.TestSubmission, error) {
	sub, err := s.Repo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSubmissionNotFound
		}
		return nil, err
	}
	return sub, nil
}

// GetEvaluation returns the submission detail. Opening a pending submission moves it
// to in_progress; that transition exists only on the server.
func (s *EvaluationService) GetEvaluation(ctx context.Context, id string) (*EvaluationDetail, error) {
	sub, err := s.load(id)
	if err != nil {
		return nil, err
	}

	if sub.EvaluationStatus == model.EvaluationPending {
		err := s.Repo.TransitionStatus(sub.ID, model.EvaluationPending, model.EvaluationInProgress)
		switch {
		case err == nil:
			sub.EvaluationStatus = model.EvaluationInProgress
			publishStatus(ctx, s.Notifier, sub, s.now())
		case errors.Is(err, repository.ErrStaleStatus):
			// another grader got there first; reload for the current status
			if sub, err = s.load(id); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}

	detail := &EvaluationDetail{Submission: sub, PassScore: s.Policy.PassScoreFor(sub.Test)}
	if sub.Test != nil {
		detail.Questions = sub.Test.Questions
		sub.Test.Questions = nil
	}
	return detail, nil
}

// SaveEvaluationRequest mirrors the editor's POST body. Map keys are question ids.
type SaveEvaluationRequest struct {
	OverallFeedback   string                 `json:"overallFeedback"`
	PracticalFeedback map[string]string      `json:"practicalFeedback"`
	PracticalScores   map[string]float64     `json:"practicalScores"`
	EvaluationStatus  model.EvaluationStatus `json:"evaluationStatus"`
	Passed            *bool                  `json:"passed"`
}

// ScoreError names the question whose score was rejected.
type ScoreError struct {
	QuestionID string
	Score      float64
}

func (e *ScoreError) Error() string {
	return fmt.Sprintf("question %s: score %v is outside [%d,%d]", e.QuestionID, e.Score, model.MinScore, model.MaxScore)
}

func (e *ScoreError) Unwrap() error { return util.ErrScoreOutOfRange }

// ValidateScores checks every score against [0,100] before anything is written.
func ValidateScores(scores map[string]float64) error {
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := scores[k]
		if math.IsNaN(v) || v < model.MinScore || v > model.MaxScore {
			return &ScoreError{QuestionID: k, Score: v}
		}
	}
	return nil
}

func parseQuestionID(key string) (uint, error) {
	id, err := strconv.ParseUint(key, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", util.ErrUnknownQuestion, key)
	}
	return uint(id), nil
}

// FinalScore averages the multiple-choice score (when the test has any) with every
// practical score, rounded to the nearest integer.
func FinalScore(sub *model.TestSubmission, hasMC bool) int {
	sum, n := 0, 0
	if hasMC {
		sum += sub.Score
		n++
	}
	for _, p := range sub.PracticalSubmissions {
		if p.Score != nil {
			sum += *p.Score
			n++
		}
	}
	if n == 0 {
		return sub.Score
	}
	return int(math.Round(float64(sum) / float64(n)))
}

// SaveEvaluation applies grader scores and feedback and advances the status.
// Completing a passed submission issues a certification in the same transaction.
func (s *EvaluationService) SaveEvaluation(ctx context.Context, id string, graderID uint, req SaveEvaluationRequest) (*model.TestSubmission, error) {
	ctx, span := tracing.Start(ctx, "evaluation.save", tracing.SubmissionID.String(id), tracing.UserID.Int64(int64(graderID)))
	sub, err := s.saveEvaluation(ctx, id, graderID, req)
	tracing.Finish(span, err)
	return sub, err
}

func (s *EvaluationService) saveEvaluation(ctx context.Context, id string, graderID uint, req SaveEvaluationRequest) (*model.TestSubmission, error) {
	next := req.EvaluationStatus
	if next == "" {
		next = model.EvaluationCompleted
	}
	if !next.Valid() {
		return nil, util.ErrInvalidStatus
	}
	if err := ValidateScores(req.PracticalScores); err != nil {
		return nil, err
	}

	sub, err := s.load(id)
	if err != nil {
		return nil, err
	}
	loadedStatus := sub.EvaluationStatus
	if !loadedStatus.CanAdvanceTo(next) {
		return nil, util.ErrStatusRegression
	}

	for key, v := range req.PracticalScores {
		qid, err := parseQuestionID(key)
		if err != nil {
			return nil, err
		}
		p := sub.Practical(qid)
		if p == nil {
			return nil, fmt.Errorf("%w: %s", util.ErrUnknownQuestion, key)
		}
		score := int(math.Round(v))
		p.Score = &score
		p.Status = model.PracticalEvaluated
	}
	for key, text := range req.PracticalFeedback {
		qid, err := parseQuestionID(key)
		if err != nil {
			return nil, err
		}
		p := sub.Practical(qid)
		if p == nil {
			return nil, fmt.Errorf("%w: %s", util.ErrUnknownQuestion, key)
		}
		fb := text
		p.Feedback = &fb
	}

	sub.OverallFeedback = req.OverallFeedback
	sub.EvaluationStatus = next

	var cert *model.Certification
	if next == model.EvaluationCompleted {
		for _, p := range sub.PracticalSubmissions {
			if p.Score == nil {
				return nil, fmt.Errorf("%w: question %d", util.ErrMissingPracticalScore, p.QuestionID)
			}
		}

		_, hasMC := ScoreMultipleChoice(testQuestions(sub), nil)
		final := FinalScore(sub, hasMC)
		reached := final >= s.Policy.PassScoreFor(sub.Test)
		sub.Passed = reached
		if req.Passed != nil {
			sub.Passed = *req.Passed
		}

		now := s.now()
		sub.EvaluatedAt = &now
		sub.EvaluatedBy = &graderID
		// a grader may pass a submission below the threshold, but a certification
		// is only issued for a final score that reaches it
		if sub.Passed && !reached {
			logger.Log.Info("submission passed below threshold, no certification issued",
				zap.String("submissionId", sub.ID), zap.Int("final", final))
		}
		if sub.Passed && reached {
			if cert, err = s.Policy.Issue(sub, final, now); err != nil {
				return nil, err
			}
		}
	}

	if err := s.Repo.SaveEvaluation(sub, loadedStatus, cert); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, util.ErrStatusRegression
		}
		return nil, err
	}

	monitoring.EvaluationsSaved.WithLabelValues(string(next)).Inc()
	if cert != nil {
		monitoring.CertificationsIssued.WithLabelValues(cert.Skill).Inc()
		s.Certs.Invalidate(ctx, sub.UserID)
		logger.Log.Info("certification issued",
			zap.Uint("userId", sub.UserID),
			zap.String("skill", cert.Skill),
			zap.Int("score", cert.Score),
		)
	}
	publishStatus(ctx, s.Notifier, sub, s.now())

	return sub, nil
}

func testQuestions(sub *model.TestSubmission) []model.TestQuestion {
	if sub.Test == nil {
		return nil
	}
	return sub.Test.Questions
}

// Watch streams status events to a subscriber until ctx ends.
func (s *EvaluationService) Watch(ctx context.Context) (<-chan StatusEvent, error) {
	if s.Notifier == nil {
		return nil, errors.New("evaluation notifier not configured")
	}
	return s.Notifier.Subscribe(ctx)
}
