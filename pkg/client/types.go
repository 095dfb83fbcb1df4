package client

import (
	"encoding/json"
	"time"
)

// Evaluation statuses as reported by the server.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

const (
	KindMultipleChoice = "multiple_choice"
	KindPractical      = "practical"
)

type User struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsSeller bool   `json:"isSeller"`
}

type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Certification struct {
	ID           string    `json:"_id"`
	UserID       uint      `json:"userId"`
	Skill        string    `json:"skill"`
	SubmissionID string    `json:"submissionId"`
	Score        int       `json:"score"`
	IssuedAt     time.Time `json:"issuedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Status       string    `json:"status"`
}

// UserProfile is GET /api/users/:id. Certifications is never nil after a successful fetch.
type UserProfile struct {
	ID             uint            `json:"_id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Role           string          `json:"role"`
	IsSeller       bool            `json:"isSeller"`
	Certifications []Certification `json:"certifications"`
}

type Question struct {
	ID                uint            `json:"id"`
	Kind              string          `json:"kind"`
	Prompt            string          `json:"prompt"`
	Options           json.RawMessage `json:"options,omitempty"`
	Answer            string          `json:"answer,omitempty"`
	Points            int             `json:"points"`
	Order             int             `json:"order"`
	RequiresRecording bool            `json:"requiresRecording"`
}

// Choices decodes Options, which the server stores as a JSON array of strings.
func (q Question) Choices() []string {
	var out []string
	if len(q.Options) > 0 {
		_ = json.Unmarshal(q.Options, &out)
	}
	return out
}

type Test struct {
	ID          uint       `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Skill       string     `json:"skill"`
	PassScore   int        `json:"passScore"`
	TimeLimit   int        `json:"timeLimit"`
	Questions   []Question `json:"questions,omitempty"`
}

type Answer struct {
	QuestionID uint   `json:"questionId"`
	Answer     string `json:"answer"`
}

type PracticalSubmission struct {
	ID               uint     `json:"id"`
	QuestionID       uint     `json:"questionId"`
	Files            []string `json:"files"`
	RecordingURL     string   `json:"recordingUrl,omitempty"`
	RecordingSeconds float64  `json:"recordingSeconds,omitempty"`
	Status           string   `json:"status"`
	Score            *int     `json:"score,omitempty"`
	Feedback         *string  `json:"feedback,omitempty"`
	Order            int      `json:"order"`
}

type Submission struct {
	ID                   string                `json:"_id"`
	UserID               uint                  `json:"userId"`
	User                 *User                 `json:"user,omitempty"`
	TestID               uint                  `json:"testId"`
	Skill                string                `json:"skill"`
	Score                int                   `json:"score"`
	Passed               bool                  `json:"passed"`
	EvaluationStatus     string                `json:"evaluationStatus"`
	OverallFeedback      string                `json:"overallFeedback"`
	SubmittedAt          time.Time             `json:"submittedAt"`
	EvaluatedAt          *time.Time            `json:"evaluatedAt,omitempty"`
	PracticalSubmissions []PracticalSubmission `json:"practicalSubmissions"`
}

// SubmissionSummary is one row of GET /api/tests/pending-evaluation.
type SubmissionSummary struct {
	ID               string    `json:"_id"`
	UserID           uint      `json:"userId"`
	LearnerName      string    `json:"learnerName"`
	LearnerEmail     string    `json:"learnerEmail"`
	TestID           uint      `json:"testId"`
	Skill            string    `json:"skill"`
	Score            int       `json:"score"`
	Passed           bool      `json:"passed"`
	EvaluationStatus string    `json:"evaluationStatus"`
	SubmittedAt      time.Time `json:"submittedAt"`
	PracticalCount   int       `json:"practicalCount"`
}

type EvaluationDetail struct {
	Submission Submission `json:"submission"`
	Questions  []Question `json:"questions"`
	PassScore  int        `json:"passScore"`
}

// EvaluationUpdate is the POST /api/tests/evaluation/:id body. Map keys are question ids.
type EvaluationUpdate struct {
	OverallFeedback   string             `json:"overallFeedback"`
	PracticalFeedback map[string]string  `json:"practicalFeedback"`
	PracticalScores   map[string]float64 `json:"practicalScores"`
	EvaluationStatus  string             `json:"evaluationStatus"`
	Passed            *bool              `json:"passed,omitempty"`
}

type SellerResult struct {
	Outcome       string         `json:"outcome"`
	Certification *Certification `json:"certification,omitempty"`
}

type StatusEvent struct {
	SubmissionID     string    `json:"submissionId"`
	UserID           uint      `json:"userId"`
	EvaluationStatus string    `json:"evaluationStatus"`
	Passed           bool      `json:"passed"`
	At               time.Time `json:"at"`
}
