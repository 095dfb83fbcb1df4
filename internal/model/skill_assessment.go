package model

import "gorm.io/datatypes"

type QuestionKind string

const (
	MultipleChoice QuestionKind = "multiple_choice"
	Practical      QuestionKind = "practical"
)

// SkillTest is a certification test for one skill. PassScore of zero means the configured default.
// swagger:model SkillTest
type SkillTest struct {
	BaseModel
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Skill       string         `gorm:"size:100;index;not null" json:"skill"`
	PassScore   int            `gorm:"default:0" json:"passScore"`
	TimeLimit   int            `gorm:"default:0" json:"timeLimit"` // minutes
	IsPublished bool           `gorm:"default:false" json:"isPublished"`
	Questions   []TestQuestion `gorm:"foreignKey:TestID" json:"questions,omitempty"`
}

func (SkillTest) TableName() string {
	return "skill_tests"
}

// swagger:model TestQuestion
type TestQuestion struct {
	BaseModel
	TestID            uint           `gorm:"index" json:"testId"`
	Kind              QuestionKind   `gorm:"size:30;not null" json:"kind"`
	Prompt            string         `gorm:"type:text;not null" json:"prompt"`
	Options           datatypes.JSON `json:"options,omitempty"`
	Answer            string         `gorm:"type:text" json:"answer,omitempty"`
	Points            int            `gorm:"default:1" json:"points"`
	Order             int            `gorm:"default:0" json:"order"`
	RequiresRecording bool           `gorm:"default:false" json:"requiresRecording"`
}

func (TestQuestion) TableName() string {
	return "test_questions"
}

type AnswerSheet struct {
	QuestionID uint   `json:"questionId"`
	Answer     string `json:"answer"`
}
