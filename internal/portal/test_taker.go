package portal

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"skillcert_backend/pkg/client"
	"skillcert_backend/pkg/logger"
	"skillcert_backend/pkg/recorder"
)

// TestTaker collects a learner's answers and practical uploads for one test.
type TestTaker struct {
	api API

	Test       *client.Test
	answers    map[uint]string
	files      map[uint][]client.File
	recordings map[uint]*recorder.Recording

	// active recording, at most one at a time
	rec  *recorder.Recorder
	recQ uint
}

func NewTestTaker(api API) *TestTaker {
	return &TestTaker{api: api}
}

func (t *TestTaker) Load(ctx context.Context, testID uint) error {
	test, err := t.api.GetTest(ctx, testID)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return err
		}
		return failure("Failed to load test", err)
	}
	t.Test = test
	t.answers = make(map[uint]string)
	t.files = make(map[uint][]client.File)
	t.recordings = make(map[uint]*recorder.Recording)
	return nil
}

func (t *TestTaker) question(id uint) (client.Question, error) {
	if t.Test == nil {
		return client.Question{}, ErrNotLoaded
	}
	for _, q := range t.Test.Questions {
		if q.ID == id {
			return q, nil
		}
	}
	return client.Question{}, fmt.Errorf("question %d: %w", id, ErrUnknownQuestion)
}

func (t *TestTaker) Answer(questionID uint, option string) error {
	q, err := t.question(questionID)
	if err != nil {
		return err
	}
	if q.Kind != client.KindMultipleChoice || !slices.Contains(q.Choices(), option) {
		return fmt.Errorf("question %d: %q: %w", questionID, option, ErrInvalidAnswer)
	}
	t.answers[questionID] = option
	return nil
}

func (t *TestTaker) Attach(questionID uint, f client.File) error {
	q, err := t.question(questionID)
	if err != nil {
		return err
	}
	if q.Kind != client.KindPractical {
		return fmt.Errorf("question %d: %w", questionID, ErrNotPractical)
	}
	t.files[questionID] = append(t.files[questionID], f)
	return nil
}

// StartRecording records the screen for a practical question. If the capture
// ends on its own the recording is kept as if StopRecording had been called.
func (t *TestTaker) StartRecording(ctx context.Context, questionID uint, rec *recorder.Recorder) error {
	q, err := t.question(questionID)
	if err != nil {
		return err
	}
	if q.Kind != client.KindPractical {
		return fmt.Errorf("question %d: %w", questionID, ErrNotPractical)
	}
	if t.rec != nil {
		return ErrRecordingActive
	}
	if err := rec.Start(ctx); err != nil {
		return failure("Could not start screen recording", err)
	}
	t.rec, t.recQ = rec, questionID
	return nil
}

// StopRecording finishes the active recording and attaches it to its question.
func (t *TestTaker) StopRecording() (*recorder.Recording, error) {
	if t.rec == nil {
		return nil, recorder.ErrNotRecording
	}
	rec, qid := t.rec, t.recQ
	t.rec = nil
	defer rec.Close()

	out, err := rec.Stop()
	if err != nil {
		return nil, failure("Screen recording failed", err)
	}
	t.recordings[qid] = out
	logger.Log.Debug("recording attached",
		zap.Uint("question", qid),
		zap.Int("bytes", len(out.Data)),
		zap.Duration("duration", out.Duration),
		zap.Bool("autoEnded", out.AutoEnded))
	return out, nil
}

// Close releases an active recording without keeping it.
func (t *TestTaker) Close() error {
	if t.rec == nil {
		return nil
	}
	err := t.rec.Close()
	t.rec = nil
	return err
}

// Request assembles what Submit sends. Questions that require a recording must have one.
func (t *TestTaker) Request() (client.SubmitRequest, error) {
	if t.Test == nil {
		return client.SubmitRequest{}, ErrNotLoaded
	}
	req := client.SubmitRequest{Practical: make(map[uint]client.PracticalFiles)}
	for _, q := range t.Test.Questions {
		switch q.Kind {
		case client.KindMultipleChoice:
			if a, ok := t.answers[q.ID]; ok {
				req.Answers = append(req.Answers, client.Answer{QuestionID: q.ID, Answer: a})
			}
		case client.KindPractical:
			pf := client.PracticalFiles{Files: t.files[q.ID]}
			if r := t.recordings[q.ID]; r != nil {
				f := client.FileFromBytes(recorder.OutputName(r), r.Data)
				pf.Recording = &f
			} else if q.RequiresRecording {
				return client.SubmitRequest{}, fmt.Errorf("question %d: %w", q.ID, ErrMissingRecording)
			}
			req.Practical[q.ID] = pf
		}
	}
	return req, nil
}

func (t *TestTaker) Submit(ctx context.Context) (*client.Submission, error) {
	if t.rec != nil {
		if _, err := t.StopRecording(); err != nil {
			return nil, err
		}
	}
	req, err := t.Request()
	if err != nil {
		return nil, failure("Your answers are incomplete", err)
	}
	sub, err := t.api.SubmitTest(ctx, t.Test.ID, req)
	if err != nil {
		return nil, failure("Failed to submit test", err)
	}
	return sub, nil
}
