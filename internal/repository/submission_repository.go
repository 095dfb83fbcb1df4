package repository

import (
	"errors"
	"skillcert_backend/internal/model"

	"gorm.io/gorm"
)

// ErrStaleStatus is returned when a conditional status update matched no row.
var ErrStaleStatus = errors.New("submission status changed concurrently")

type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

func orderedPractical(db *gorm.DB) *gorm.DB {
	return db.Order("`order` asc, id asc")
}

// Create inserts the submission and its practical entries in one statement batch.
func (r *SubmissionRepository) Create(s *model.TestSubmission) error {
	return r.DB.Create(s).Error
}

func (r *SubmissionRepository) FindByID(id string) (*model.TestSubmission, error) {
	var s model.TestSubmission
	err := r.DB.
		Preload("User").
		Preload("Test").
		Preload("Test.Questions", orderedQuestions).
		Preload("PracticalSubmissions", orderedPractical).
		Where("id = ?", id).
		First(&s).Error
	return &s, err
}

// ListForEvaluation returns submissions in the given status (all when empty),
// oldest submission first so graders work the queue in order.
func (r *SubmissionRepository) ListForEvaluation(status model.EvaluationStatus) ([]model.TestSubmission, error) {
	var ss []model.TestSubmission
	query := r.DB.Model(&model.TestSubmission{}).
		Preload("User").
		Preload("PracticalSubmissions", orderedPractical)
	if status != "" {
		query = query.Where("evaluation_status = ?", status)
	}
	err := query.Order("submitted_at asc").Find(&ss).Error
	return ss, err
}

func (r *SubmissionRepository) ListByUser(userID uint) ([]model.TestSubmission, error) {
	var ss []model.TestSubmission
	err := r.DB.Where("user_id = ?", userID).Order("submitted_at desc").Find(&ss).Error
	return ss, err
}

// TransitionStatus moves the submission from one status to another only if it is still in from.
func (r *SubmissionRepository) TransitionStatus(id string, from, to model.EvaluationStatus) error {
	res := r.DB.Model(&model.TestSubmission{}).
		Where("id = ? AND evaluation_status = ?", id, from).
		Update("evaluation_status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// SaveEvaluation writes the graded submission, its practical entries and an optional
// certification atomically. from is the status s was loaded with; the update is
// refused with ErrStaleStatus when the row has moved on since.
func (r *SubmissionRepository) SaveEvaluation(s *model.TestSubmission, from model.EvaluationStatus, cert *model.Certification) error {
	if from == model.EvaluationCompleted {
		return ErrStaleStatus
	}
	return r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.TestSubmission{}).
			Where("id = ? AND evaluation_status = ?", s.ID, from).
			Updates(map[string]interface{}{
				"evaluation_status": s.EvaluationStatus,
				"passed":            s.Passed,
				"overall_feedback":  s.OverallFeedback,
				"evaluated_at":      s.EvaluatedAt,
				"evaluated_by":      s.EvaluatedBy,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleStatus
		}

		for i := range s.PracticalSubmissions {
			p := &s.PracticalSubmissions[i]
			if err := tx.Model(&model.PracticalSubmission{}).
				Where("id = ?", p.ID).
				Updates(map[string]interface{}{
					"status":   p.Status,
					"score":    p.Score,
					"feedback": p.Feedback,
				}).Error; err != nil {
				return err
			}
		}

		if cert != nil {
			if err := tx.Create(cert).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
