package portal

import (
	"context"
	"fmt"
	"time"

	"skillcert_backend/pkg/client"
)

const (
	ActionEvaluate = "Evaluate"
	ActionView     = "View"
)

// Row is one line of the review queue.
type Row struct {
	ID          string
	Learner     string
	Email       string
	Skill       string
	SubmittedAt time.Time
	Status      string
	Badge       string
	Score       int
	Action      string
}

// SubmissionList is the admin review queue. It only reads and navigates.
type SubmissionList struct {
	api API
	// Status filters the queue; empty lists everything the server returns by default.
	Status string
	Rows   []Row
}

func NewSubmissionList(api API) *SubmissionList {
	return &SubmissionList{api: api}
}

func (l *SubmissionList) Load(ctx context.Context) error {
	items, err := l.api.PendingEvaluations(ctx, l.Status)
	if err != nil {
		return failure("Failed to load submissions", err)
	}
	rows := make([]Row, 0, len(items))
	for _, it := range items {
		rows = append(rows, rowFor(it))
	}
	l.Rows = rows
	return nil
}

func rowFor(s client.SubmissionSummary) Row {
	learner := s.LearnerName
	if learner == "" {
		learner = s.LearnerEmail
	}
	action := ActionEvaluate
	if s.EvaluationStatus == client.StatusCompleted {
		action = ActionView
	}
	return Row{
		ID:          s.ID,
		Learner:     learner,
		Email:       s.LearnerEmail,
		Skill:       s.Skill,
		SubmittedAt: s.SubmittedAt,
		Status:      s.EvaluationStatus,
		Badge:       StatusBadge(s.EvaluationStatus),
		Score:       s.Score,
		Action:      action,
	}
}

func StatusBadge(status string) string {
	switch status {
	case client.StatusPending:
		return "Pending"
	case client.StatusInProgress:
		return "In Progress"
	case client.StatusCompleted:
		return "Completed"
	}
	return status
}

// Select returns the editor route for row i.
func (l *SubmissionList) Select(i int) (string, error) {
	if i < 0 || i >= len(l.Rows) {
		return "", fmt.Errorf("row %d: %w", i, ErrNotLoaded)
	}
	return EditorRoute(l.Rows[i].ID), nil
}
