package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"skillcert_backend/internal/model"
	"skillcert_backend/internal/repository"
	"skillcert_backend/internal/util"
	"skillcert_backend/pkg/logger"
	"skillcert_backend/pkg/monitoring"
	"skillcert_backend/pkg/tracing"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const uploadConcurrency = 4

type SkillTestService struct {
	TestRepo       *repository.SkillTestRepository
	SubmissionRepo *repository.SubmissionRepository
	Storage        *StorageService
	Media          *MediaService
	Policy         *CertificationPolicy
	Notifier       EvaluationNotifier
	Certs          *CertificationService
	TempDir        string
	now            func() time.Time
}

func NewSkillTestService(
	testRepo *repository.SkillTestRepository,
	submissionRepo *repository.SubmissionRepository,
	storage *StorageService,
	media *MediaService,
	policy *CertificationPolicy,
	notifier EvaluationNotifier,
	certs *CertificationService,
	tempDir string,
) *SkillTestService {
	return &SkillTestService{
		TestRepo:       testRepo,
		SubmissionRepo: submissionRepo,
		Storage:        storage,
		Media:          media,
		Policy:         policy,
		Notifier:       notifier,
		Certs:          certs,
		TempDir:        tempDir,
		now:            time.Now,
	}
}

// PublicQuestion is a question as shown to a test taker, without the answer key.
type PublicQuestion struct {
	ID                uint               `json:"id"`
	Kind              model.QuestionKind `json:"kind"`
	Prompt            string             `json:"prompt"`
	Options           datatypes.JSON     `json:"options,omitempty"`
	Points            int                `json:"points"`
	Order             int                `json:"order"`
	RequiresRecording bool               `json:"requiresRecording"`
}

type PublicTest struct {
	ID          uint             `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Skill       string           `json:"skill"`
	PassScore   int              `json:"passScore"`
	TimeLimit   int              `json:"timeLimit"`
	Questions   []PublicQuestion `json:"questions,omitempty"`
}

func (s *SkillTestService) ListTests() ([]PublicTest, error) {
	tests, err := s.TestRepo.List(true)
	if err != nil {
		return nil, err
	}
	out := make([]PublicTest, len(tests))
	for i := range tests {
		if err := copier.Copy(&out[i], &tests[i]); err != nil {
			return nil, err
		}
		out[i].PassScore = s.Policy.PassScoreFor(&tests[i])
	}
	return out, nil
}

func (s *SkillTestService) loadPublished(testID uint) (*model.SkillTest, error) {
	test, err := s.TestRepo.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTestNotFound
		}
		return nil, err
	}
	if !test.IsPublished {
		return nil, util.ErrTestNotPublished
	}
	return test, nil
}

func (s *SkillTestService) GetTest(testID uint) (*PublicTest, error) {
	test, err := s.loadPublished(testID)
	if err != nil {
		return nil, err
	}
	var out PublicTest
	// copier matches fields by name, so Answer never reaches PublicQuestion
	if err := copier.Copy(&out, test); err != nil {
		return nil, err
	}
	out.PassScore = s.Policy.PassScoreFor(test)
	return &out, nil
}

// Upload abstracts a multipart file so the service can be driven without an HTTP request.
type Upload struct {
	Filename    string
	Size        int64
	ContentType string
	Open        func() (multipart.File, error)
}

func UploadFromHeader(fh *multipart.FileHeader) Upload {
	return Upload{
		Filename:    fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Open:        fh.Open,
	}
}

type PracticalUpload struct {
	Files     []Upload
	Recording *Upload
}

type SubmitTestRequest struct {
	Answers   []model.AnswerSheet
	Practical map[uint]PracticalUpload
}

// ScoreMultipleChoice returns the percentage of multiple-choice points earned, 0..100.
// A test without multiple-choice questions scores 0 and hasMC is false.
func ScoreMultipleChoice(questions []model.TestQuestion, answers []model.AnswerSheet) (score int, hasMC bool) {
	given := make(map[uint]string, len(answers))
	for _, a := range answers {
		given[a.QuestionID] = strings.TrimSpace(a.Answer)
	}

	total, earned := 0, 0
	for _, q := range questions {
		if q.Kind != model.MultipleChoice {
			continue
		}
		hasMC = true
		total += q.Points
		if ans, ok := given[q.ID]; ok && ans == strings.TrimSpace(q.Answer) {
			earned += q.Points
		}
	}
	if total == 0 {
		return 0, hasMC
	}
	return (earned*100 + total/2) / total, hasMC
}

// SubmitTest scores the multiple-choice part, stores practical uploads and creates a
// pending submission. Tests without practical questions are completed immediately.
func (s *SkillTestService) SubmitTest(ctx context.Context, userID, testID uint, req SubmitTestRequest) (*model.TestSubmission, error) {
	ctx, span := tracing.Start(ctx, "submission.submit",
		tracing.UserID.Int64(int64(userID)), tracing.TestID.Int64(int64(testID)))
	sub, err := s.submitTest(ctx, userID, testID, req)
	if sub != nil {
		span.SetAttributes(tracing.SubmissionID.String(sub.ID))
	}
	tracing.Finish(span, err)
	return sub, err
}

func (s *SkillTestService) submitTest(ctx context.Context, userID, testID uint, req SubmitTestRequest) (*model.TestSubmission, error) {
	test, err := s.loadPublished(testID)
	if err != nil {
		return nil, err
	}

	score, _ := ScoreMultipleChoice(test.Questions, req.Answers)
	answersJSON, err := json.Marshal(req.Answers)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sub := &model.TestSubmission{
		UserID:           userID,
		TestID:           test.ID,
		Skill:            test.Skill,
		Answers:          datatypes.JSON(answersJSON),
		Score:            score,
		EvaluationStatus: model.EvaluationPending,
		SubmittedAt:      now,
	}
	sub.ID = model.NewRecordID()

	var practical []model.TestQuestion
	for _, q := range test.Questions {
		if q.Kind != model.Practical {
			continue
		}
		if q.RequiresRecording && req.Practical[q.ID].Recording == nil {
			return nil, fmt.Errorf("question %d: %w", q.ID, util.ErrRecordingRequired)
		}
		practical = append(practical, q)
	}

	// stored objects are removed again unless the submission is committed
	batch := s.Storage.Batch()
	committed := false
	defer func() {
		if !committed {
			batch.Discard(context.WithoutCancel(ctx))
		}
	}()

	// uploads for different questions go out in parallel; order follows the test
	entries := make([]*model.PracticalSubmission, len(practical))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, q := range practical {
		g.Go(func() error {
			entry, err := s.storePractical(gctx, batch, sub.ID, q, req.Practical[q.ID])
			if err != nil {
				return fmt.Errorf("question %d: %w", q.ID, err)
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, e := range entries {
		sub.PracticalSubmissions = append(sub.PracticalSubmissions, *e)
	}

	// nothing for a human to grade
	var cert *model.Certification
	if len(sub.PracticalSubmissions) == 0 {
		sub.EvaluationStatus = model.EvaluationCompleted
		sub.Passed = score >= s.Policy.PassScoreFor(test)
		sub.EvaluatedAt = &now
		if sub.Passed {
			if cert, err = s.Policy.Issue(sub, score, now); err != nil {
				return nil, err
			}
		}
	}

	if err := s.SubmissionRepo.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sub).Error; err != nil {
			return err
		}
		if cert != nil {
			return tx.Create(cert).Error
		}
		return nil
	}); err != nil {
		return nil, err
	}
	committed = true

	monitoring.SubmissionsReceived.WithLabelValues(sub.Skill).Inc()
	if cert != nil {
		monitoring.CertificationsIssued.WithLabelValues(cert.Skill).Inc()
		s.Certs.Invalidate(ctx, userID)
	}
	publishStatus(ctx, s.Notifier, sub, s.now())

	return sub, nil
}

func (s *SkillTestService) storePractical(ctx context.Context, batch *UploadBatch, submissionID string, q model.TestQuestion, upload PracticalUpload) (*model.PracticalSubmission, error) {
	entry := &model.PracticalSubmission{
		SubmissionID: submissionID,
		QuestionID:   q.ID,
		Status:       model.PracticalPending,
		Order:        q.Order,
		Files:        []string{},
	}

	for _, f := range upload.Files {
		url, err := s.storeFile(ctx, batch, PracticalKey(submissionID, q.ID, f.Filename), f)
		if err != nil {
			return nil, err
		}
		entry.Files = append(entry.Files, url)
	}

	if upload.Recording != nil {
		url, seconds, err := s.storeRecording(ctx, batch, submissionID, q.ID, *upload.Recording)
		if err != nil {
			return nil, err
		}
		entry.RecordingURL = url
		entry.RecordingSeconds = seconds
	}
	return entry, nil
}

func (s *SkillTestService) storeFile(ctx context.Context, batch *UploadBatch, key string, f Upload) (string, error) {
	src, err := f.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	mime, err := util.ValidateMimeType(src, util.AllowedPracticalTypes)
	if err != nil {
		return "", fmt.Errorf("%s: %w", f.Filename, err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	contentType := f.ContentType
	if contentType == "" {
		contentType = mime
	}
	return batch.Put(ctx, key, src, f.Size, contentType)
}

// storeRecording spools the recording to disk so ffprobe can read its duration, then uploads it.
func (s *SkillTestService) storeRecording(ctx context.Context, batch *UploadBatch, submissionID string, questionID uint, f Upload) (string, float64, error) {
	if !util.HasVideoExtension(f.Filename) {
		return "", 0, util.ErrInvalidVideoExt
	}

	src, err := f.Open()
	if err != nil {
		return "", 0, err
	}
	defer src.Close()

	if _, err := util.ValidateMimeType(src, []string{util.MimeVideo}); err != nil {
		return "", 0, fmt.Errorf("%w: %v", util.ErrInvalidVideoExt, err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(s.TempDir, 0755); err != nil {
		return "", 0, err
	}
	tmp, err := os.CreateTemp(s.TempDir, "recording-*"+strings.ToLower(filepath.Ext(f.Filename)))
	if err != nil {
		return "", 0, err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		return "", 0, err
	}

	var seconds float64
	if info, err := s.Media.Probe(tmp.Name()); err != nil {
		logger.Log.Warn("probe recording failed", zap.String("file", f.Filename), zap.Error(err))
	} else {
		seconds = info.Duration
	}

	contentType := f.ContentType
	if contentType == "" {
		contentType = "video/webm"
	}
	url, err := batch.PutFile(ctx, RecordingKey(submissionID, questionID, filepath.Ext(f.Filename)), tmp.Name(), contentType)
	if err != nil {
		return "", 0, err
	}
	return url, seconds, nil
}
