package repository

import (
	"testing"
	"time"

	"skillcert_backend/internal/model"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type RepositorySuite struct {
	suite.Suite
	db          *gorm.DB
	users       *UserRepository
	tests       *SkillTestRepository
	submissions *SubmissionRepository
	certs       *CertificationRepository
	learner     *model.User
	test        *model.SkillTest
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	// every new connection to :memory: would see an empty database
	sqlDB.SetMaxOpenConns(1)
	s.Require().NoError(db.AutoMigrate(
		&model.User{},
		&model.SkillTest{},
		&model.TestQuestion{},
		&model.TestSubmission{},
		&model.PracticalSubmission{},
		&model.Certification{},
	))
	s.db = db
	s.users = NewUserRepository(db)
	s.tests = NewSkillTestRepository(db)
	s.submissions = NewSubmissionRepository(db)
	s.certs = NewCertificationRepository(db)

	s.learner = &model.User{Name: "Lee", Email: "lee@example.com", Password: "x", Role: model.Freelancer}
	s.Require().NoError(s.users.Create(s.learner))

	s.test = &model.SkillTest{
		Title: "Go basics", Skill: "go", IsPublished: true,
		Questions: []model.TestQuestion{
			{Kind: model.Practical, Prompt: "build a server", Order: 2},
			{Kind: model.MultipleChoice, Prompt: "pick one", Answer: "a", Order: 1},
		},
	}
	s.Require().NoError(s.tests.Create(s.test))
}

func (s *RepositorySuite) TearDownTest() {
	sqlDB, err := s.db.DB()
	if err == nil {
		sqlDB.Close()
	}
}

func (s *RepositorySuite) newSubmission(submittedAt time.Time) *model.TestSubmission {
	sub := &model.TestSubmission{
		UserID:           s.learner.ID,
		TestID:           s.test.ID,
		Skill:            "go",
		Score:            60,
		EvaluationStatus: model.EvaluationPending,
		SubmittedAt:      submittedAt,
		PracticalSubmissions: []model.PracticalSubmission{
			{QuestionID: s.test.Questions[0].ID, Files: []string{"/uploads/a.zip"}, Status: model.PracticalPending},
		},
	}
	s.Require().NoError(s.submissions.Create(sub))
	return sub
}

func (s *RepositorySuite) TestQuestionsComeBackOrdered() {
	got, err := s.tests.FindByID(s.test.ID)
	s.Require().NoError(err)
	s.Require().Len(got.Questions, 2)
	s.Equal(model.MultipleChoice, got.Questions[0].Kind)
}

func (s *RepositorySuite) TestCreateAndFindSubmission() {
	sub := s.newSubmission(time.Now())
	s.NotEmpty(sub.ID)

	got, err := s.submissions.FindByID(sub.ID)
	s.Require().NoError(err)
	s.Equal("Lee", got.User.Name)
	s.Require().Len(got.PracticalSubmissions, 1)
	s.Equal([]string{"/uploads/a.zip"}, got.PracticalSubmissions[0].Files)
	s.Equal(sub.ID, got.PracticalSubmissions[0].SubmissionID)
}

func (s *RepositorySuite) TestListForEvaluationFiltersAndOrders() {
	older := s.newSubmission(time.Now().Add(-time.Hour))
	newer := s.newSubmission(time.Now())
	s.Require().NoError(s.submissions.TransitionStatus(newer.ID, model.EvaluationPending, model.EvaluationInProgress))

	pending, err := s.submissions.ListForEvaluation(model.EvaluationPending)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(older.ID, pending[0].ID)

	all, err := s.submissions.ListForEvaluation("")
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(older.ID, all[0].ID)
}

func (s *RepositorySuite) TestTransitionStatusIsConditional() {
	sub := s.newSubmission(time.Now())
	s.Require().NoError(s.submissions.TransitionStatus(sub.ID, model.EvaluationPending, model.EvaluationInProgress))
	s.ErrorIs(s.submissions.TransitionStatus(sub.ID, model.EvaluationPending, model.EvaluationInProgress), ErrStaleStatus)
}

func (s *RepositorySuite) TestSaveEvaluationRefusesStaleStatus() {
	sub := s.newSubmission(time.Now())
	loaded, err := s.submissions.FindByID(sub.ID)
	s.Require().NoError(err)
	s.Require().Equal(model.EvaluationPending, loaded.EvaluationStatus)

	// another grader opened the submission after it was loaded
	s.Require().NoError(s.submissions.TransitionStatus(sub.ID, model.EvaluationPending, model.EvaluationInProgress))

	loaded.OverallFeedback = "stale"
	s.ErrorIs(s.submissions.SaveEvaluation(loaded, model.EvaluationPending, nil), ErrStaleStatus)

	again, err := s.submissions.FindByID(sub.ID)
	s.Require().NoError(err)
	s.Equal(model.EvaluationInProgress, again.EvaluationStatus)
	s.Empty(again.OverallFeedback)

	again.EvaluationStatus = model.EvaluationInProgress
	again.OverallFeedback = "fresh"
	s.NoError(s.submissions.SaveEvaluation(again, model.EvaluationInProgress, nil))

	s.ErrorIs(s.submissions.SaveEvaluation(again, model.EvaluationCompleted, nil), ErrStaleStatus)
}

func (s *RepositorySuite) TestSaveEvaluationIssuesCertificationOnce() {
	sub := s.newSubmission(time.Now())
	loaded, err := s.submissions.FindByID(sub.ID)
	s.Require().NoError(err)

	now := time.Now()
	score := 85
	loaded.EvaluationStatus = model.EvaluationCompleted
	loaded.Passed = true
	loaded.EvaluatedAt = &now
	loaded.PracticalSubmissions[0].Status = model.PracticalEvaluated
	loaded.PracticalSubmissions[0].Score = &score

	cert := &model.Certification{UserID: s.learner.ID, Skill: "go", SubmissionID: sub.ID, Score: 85,
		IssuedAt: now, ExpiresAt: now.Add(24 * time.Hour), Status: model.CertificationActive}
	s.Require().NoError(s.submissions.SaveEvaluation(loaded, model.EvaluationPending, cert))

	again, err := s.submissions.FindByID(sub.ID)
	s.Require().NoError(err)
	s.Equal(model.EvaluationCompleted, again.EvaluationStatus)
	s.Require().NotNil(again.PracticalSubmissions[0].Score)
	s.Equal(85, *again.PracticalSubmissions[0].Score)

	// a second save on a completed row is refused and issues nothing
	s.ErrorIs(s.submissions.SaveEvaluation(loaded, model.EvaluationPending, &model.Certification{UserID: s.learner.ID,
		IssuedAt: now, ExpiresAt: now.Add(time.Hour)}), ErrStaleStatus)

	certs, err := s.certs.ListByUser(s.learner.ID)
	s.Require().NoError(err)
	s.Len(certs, 1)

	user, err := s.users.FindWithCertifications(s.learner.ID)
	s.Require().NoError(err)
	s.Len(user.Certifications, 1)
}

func (s *RepositorySuite) TestExpireOverdue() {
	now := time.Now()
	s.Require().NoError(s.certs.Create(&model.Certification{UserID: s.learner.ID, Skill: "go",
		IssuedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-time.Hour), Status: model.CertificationActive}))
	s.Require().NoError(s.certs.Create(&model.Certification{UserID: s.learner.ID, Skill: "sql",
		IssuedAt: now, ExpiresAt: now.Add(time.Hour), Status: model.CertificationActive}))

	ids, err := s.certs.ExpireOverdue(now)
	s.Require().NoError(err)
	s.Equal([]uint{s.learner.ID}, ids)

	certs, err := s.certs.ListByUser(s.learner.ID)
	s.Require().NoError(err)
	statuses := map[string]model.CertificationStatus{}
	for _, c := range certs {
		statuses[c.Skill] = c.Status
	}
	s.Equal(model.CertificationExpired, statuses["go"])
	s.Equal(model.CertificationActive, statuses["sql"])
}

func TestMarkSeller(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Certification{}))

	repo := NewUserRepository(db)
	u := &model.User{Name: "Kim", Email: "kim@example.com", Password: "x"}
	require.NoError(t, repo.Create(u))
	require.NoError(t, repo.MarkSeller(u.ID, time.Now()))

	got, err := repo.FindByID(u.ID)
	require.NoError(t, err)
	require.True(t, got.IsSeller)
	require.NotNil(t, got.SellerSince)
}
