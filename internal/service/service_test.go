package service

import (
	"bytes"
	"context"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"
	"time"

	"skillcert_backend/internal/config"
	"skillcert_backend/internal/model"
	"skillcert_backend/internal/repository"
	"skillcert_backend/internal/util"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

func memUpload(name, contentType string, data []byte) Upload {
	return Upload{
		Filename:    name,
		Size:        int64(len(data)),
		ContentType: contentType,
		Open: func() (multipart.File, error) {
			return memFile{bytes.NewReader(data)}, nil
		},
	}
}

var webmBytes = append([]byte{0x1A, 0x45, 0xDF, 0xA3}, bytes.Repeat([]byte{0x42}, 64)...)

type testEnv struct {
	db         *gorm.DB
	cfg        *config.Config
	users      *repository.UserRepository
	tests      *repository.SkillTestRepository
	subs       *repository.SubmissionRepository
	certRepo   *repository.CertificationRepository
	policy     *CertificationPolicy
	notifier   *LocalNotifier
	certs      *CertificationService
	skillTests *SkillTestService
	evals      *EvaluationService
	auth       *AuthService
	uploadDir  string
	now        time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.SkillTest{}, &model.TestQuestion{},
		&model.TestSubmission{}, &model.PracticalSubmission{}, &model.Certification{},
	))

	dir := t.TempDir()
	cfg := &config.Config{
		JWT:           config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour},
		Storage:       config.StorageConfig{Type: util.StorageLocal, LocalPath: filepath.Join(dir, "uploads")},
		Certification: config.CertificationConfig{PassScore: 70, ValidityDays: 30},
	}

	env := &testEnv{
		db:        db,
		cfg:       cfg,
		users:     repository.NewUserRepository(db),
		tests:     repository.NewSkillTestRepository(db),
		subs:      repository.NewSubmissionRepository(db),
		certRepo:  repository.NewCertificationRepository(db),
		policy:    NewCertificationPolicy(cfg.Certification),
		notifier:  NewLocalNotifier(),
		uploadDir: cfg.Storage.LocalPath,
		now:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return env.now }

	env.certs = NewCertificationService(env.users, env.certRepo, env.policy, nil)
	env.certs.now = clock
	media := NewMediaServiceWithProbe(func(string) (*util.VideoInfo, error) {
		return &util.VideoInfo{Duration: 42.5}, nil
	})
	env.skillTests = NewSkillTestService(env.tests, env.subs, NewStorageService(cfg), media,
		env.policy, env.notifier, env.certs, filepath.Join(dir, "tmp"))
	env.skillTests.now = clock
	env.evals = NewEvaluationService(env.subs, env.policy, env.certs, env.notifier)
	env.evals.now = clock
	env.auth = NewAuthService(env.users, cfg)
	env.auth.HashCost = bcrypt.MinCost
	return env
}

func (e *testEnv) learner(t *testing.T, email string) *model.User {
	t.Helper()
	u := &model.User{Name: "Learner", Email: email, Password: "password1", Role: model.Freelancer}
	require.NoError(t, e.auth.Register(u))
	return u
}

// practicalTest has one multiple-choice question worth 1 point and one practical question.
func (e *testEnv) practicalTest(t *testing.T, requireRecording bool) *model.SkillTest {
	t.Helper()
	test := &model.SkillTest{
		Title: "Go services", Skill: "go", IsPublished: true,
		Questions: []model.TestQuestion{
			{Kind: model.MultipleChoice, Prompt: "2+2", Answer: "4", Points: 1, Order: 1},
			{Kind: model.Practical, Prompt: "write a handler", Points: 1, Order: 2, RequiresRecording: requireRecording},
		},
	}
	require.NoError(t, e.tests.Create(test))
	return test
}

func (e *testEnv) submitPractical(t *testing.T, userID uint, test *model.SkillTest, mcAnswer string) *model.TestSubmission {
	t.Helper()
	practicalID := test.Questions[1].ID
	sub, err := e.skillTests.SubmitTest(context.Background(), userID, test.ID, SubmitTestRequest{
		Answers: []model.AnswerSheet{{QuestionID: test.Questions[0].ID, Answer: mcAnswer}},
		Practical: map[uint]PracticalUpload{
			practicalID: {
				Files:     []Upload{memUpload("main.go", "", []byte("package main\n\nfunc main() {}\n"))},
				Recording: func() *Upload { u := memUpload("screen.webm", "video/webm", webmBytes); return &u }(),
			},
		},
	})
	require.NoError(t, err)
	return sub
}

func fileExists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	return err == nil
}
