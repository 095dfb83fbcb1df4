package model

import (
	"time"

	"gorm.io/datatypes"
)

type EvaluationStatus string

const (
	EvaluationPending    EvaluationStatus = "pending"
	EvaluationInProgress EvaluationStatus = "in_progress"
	EvaluationCompleted  EvaluationStatus = "completed"
)

var evaluationRank = map[EvaluationStatus]int{
	EvaluationPending:    0,
	EvaluationInProgress: 1,
	EvaluationCompleted:  2,
}

func (s EvaluationStatus) Valid() bool {
	_, ok := evaluationRank[s]
	return ok
}

// CanAdvanceTo reports whether moving from s to next keeps the status monotonic.
// Staying put is allowed except on completed, which is terminal.
func (s EvaluationStatus) CanAdvanceTo(next EvaluationStatus) bool {
	from, ok := evaluationRank[s]
	if !ok {
		return false
	}
	to, ok := evaluationRank[next]
	if !ok {
		return false
	}
	if s == EvaluationCompleted {
		return false
	}
	return to >= from
}

type PracticalStatus string

const (
	PracticalPending   PracticalStatus = "pending"
	PracticalEvaluated PracticalStatus = "evaluated"
)

const (
	MinScore = 0
	MaxScore = 100
)

func ScoreInRange(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// swagger:model TestSubmission
type TestSubmission struct {
	UUIDBase
	UserID               uint                  `gorm:"index" json:"userId"`
	User                 *User                 `gorm:"foreignKey:UserID" json:"user,omitempty"`
	TestID               uint                  `gorm:"index" json:"testId"`
	Test                 *SkillTest            `gorm:"foreignKey:TestID" json:"test,omitempty"`
	Skill                string                `gorm:"size:100;index" json:"skill"`
	Answers              datatypes.JSON        `json:"answers,omitempty"`
	Score                int                   `gorm:"default:0" json:"score"`
	Passed               bool                  `gorm:"default:false" json:"passed"`
	EvaluationStatus     EvaluationStatus      `gorm:"size:20;default:'pending';index" json:"evaluationStatus"`
	OverallFeedback      string                `gorm:"type:text" json:"overallFeedback"`
	SubmittedAt          time.Time             `json:"submittedAt"`
	EvaluatedAt          *time.Time            `json:"evaluatedAt,omitempty"`
	EvaluatedBy          *uint                 `json:"evaluatedBy,omitempty"`
	PracticalSubmissions []PracticalSubmission `gorm:"foreignKey:SubmissionID" json:"practicalSubmissions"`
}

func (TestSubmission) TableName() string {
	return "test_submissions"
}

// Practical returns the practical entry for a question, or nil.
func (s *TestSubmission) Practical(questionID uint) *PracticalSubmission {
	for i := range s.PracticalSubmissions {
		if s.PracticalSubmissions[i].QuestionID == questionID {
			return &s.PracticalSubmissions[i]
		}
	}
	return nil
}

// swagger:model PracticalSubmission
type PracticalSubmission struct {
	BaseModel
	SubmissionID     string          `gorm:"index;type:varchar(36)" json:"submissionId"`
	QuestionID       uint            `gorm:"index" json:"questionId"`
	Files            []string        `gorm:"serializer:json;type:text" json:"files"`
	RecordingURL     string          `gorm:"size:512" json:"recordingUrl,omitempty"`
	RecordingSeconds float64         `json:"recordingSeconds,omitempty"`
	Status           PracticalStatus `gorm:"size:20;default:'pending'" json:"status"`
	Score            *int            `json:"score,omitempty"`
	Feedback         *string         `gorm:"type:text" json:"feedback,omitempty"`
	Order            int             `gorm:"default:0" json:"order"`
}

func (PracticalSubmission) TableName() string {
	return "practical_submissions"
}
