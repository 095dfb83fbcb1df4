package portal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"skillcert_backend/internal/model"
	"skillcert_backend/pkg/client"
)

// PracticalItem is one gradable answer as shown in the editor.
type PracticalItem struct {
	QuestionID   uint
	Prompt       string
	Files        []string
	RecordingURL string
	Status       string
}

// EvaluationEditor grades one submission. Scores and feedback are edited locally
// and only sent on Save.
type EvaluationEditor struct {
	api API

	Submission *client.Submission
	Questions  map[uint]client.Question
	Items      []PracticalItem
	Scores     map[uint]float64
	Feedback   map[uint]string
	Overall    string
	// NotFound is set when the submission does not exist.
	NotFound bool
}

func NewEvaluationEditor(api API) *EvaluationEditor {
	return &EvaluationEditor{api: api}
}

// Open loads the submission and seeds the editable maps from what was saved before.
func (e *EvaluationEditor) Open(ctx context.Context, submissionID string) error {
	e.Submission, e.NotFound = nil, false
	detail, err := e.api.GetEvaluation(ctx, submissionID)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			e.NotFound = true
			return err
		}
		return failure("Failed to load submission", err)
	}

	e.Submission = &detail.Submission
	e.Questions = make(map[uint]client.Question, len(detail.Questions))
	for _, q := range detail.Questions {
		e.Questions[q.ID] = q
	}
	e.Scores = make(map[uint]float64)
	e.Feedback = make(map[uint]string)
	e.Items = e.Items[:0]
	for _, p := range detail.Submission.PracticalSubmissions {
		e.Items = append(e.Items, PracticalItem{
			QuestionID:   p.QuestionID,
			Prompt:       e.Questions[p.QuestionID].Prompt,
			Files:        p.Files,
			RecordingURL: p.RecordingURL,
			Status:       p.Status,
		})
		if p.Score != nil {
			e.Scores[p.QuestionID] = float64(*p.Score)
		}
		if p.Feedback != nil {
			e.Feedback[p.QuestionID] = *p.Feedback
		}
	}
	e.Overall = detail.Submission.OverallFeedback
	return nil
}

func (e *EvaluationEditor) item(questionID uint) error {
	if e.Submission == nil {
		return ErrNotLoaded
	}
	for _, it := range e.Items {
		if it.QuestionID == questionID {
			return nil
		}
	}
	return fmt.Errorf("question %d: %w", questionID, ErrUnknownQuestion)
}

func checkScore(questionID uint, v float64) error {
	if math.IsNaN(v) || v < model.MinScore || v > model.MaxScore {
		return fmt.Errorf("question %d: %v: %w", questionID, v, ErrScoreOutOfRange)
	}
	return nil
}

// SetScore rejects values outside [0,100] and leaves the previous score in place.
func (e *EvaluationEditor) SetScore(questionID uint, v float64) error {
	if err := e.item(questionID); err != nil {
		return err
	}
	if err := checkScore(questionID, v); err != nil {
		return err
	}
	e.Scores[questionID] = v
	return nil
}

func (e *EvaluationEditor) SetFeedback(questionID uint, text string) error {
	if err := e.item(questionID); err != nil {
		return err
	}
	e.Feedback[questionID] = text
	return nil
}

// Update builds the request body, checking every score again.
func (e *EvaluationEditor) Update() (client.EvaluationUpdate, error) {
	if e.Submission == nil {
		return client.EvaluationUpdate{}, ErrNotLoaded
	}
	ids := make([]uint, 0, len(e.Items))
	for _, it := range e.Items {
		ids = append(ids, it.QuestionID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	up := client.EvaluationUpdate{
		OverallFeedback:   e.Overall,
		PracticalScores:   make(map[string]float64, len(ids)),
		PracticalFeedback: make(map[string]string, len(ids)),
		EvaluationStatus:  client.StatusCompleted,
	}
	for _, id := range ids {
		v, ok := e.Scores[id]
		if !ok {
			return client.EvaluationUpdate{}, fmt.Errorf("question %d: %w", id, ErrMissingScore)
		}
		if err := checkScore(id, v); err != nil {
			return client.EvaluationUpdate{}, err
		}
		key := strconv.FormatUint(uint64(id), 10)
		up.PracticalScores[key] = v
		if fb, ok := e.Feedback[id]; ok {
			up.PracticalFeedback[key] = fb
		}
	}
	return up, nil
}

// Save completes the evaluation and returns the route back to the list.
func (e *EvaluationEditor) Save(ctx context.Context) (string, error) {
	up, err := e.Update()
	if err != nil {
		return "", failure("Please fix the scores before saving", err)
	}
	saved, err := e.api.SaveEvaluation(ctx, e.Submission.ID, up)
	if err != nil {
		return "", failure("Failed to save evaluation", err)
	}
	e.Submission = saved
	return ListRoute, nil
}
