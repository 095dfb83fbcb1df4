// Package portal holds the interactive flows of the marketplace client: the admin
// review queue and grading editor, the seller gate and test taking. Each flow is
// a plain state holder driven by the caller; nothing here renders.
package portal

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"skillcert_backend/pkg/client"
)

const (
	ListRoute           = "/admin/evaluations"
	SellerRegisterRoute = "/seller/register"
)

func EditorRoute(submissionID string) string {
	return ListRoute + "/" + url.PathEscape(submissionID)
}

// API is the part of *client.Client the flows call.
type API interface {
	PendingEvaluations(ctx context.Context, status string) ([]client.SubmissionSummary, error)
	GetEvaluation(ctx context.Context, submissionID string) (*client.EvaluationDetail, error)
	SaveEvaluation(ctx context.Context, submissionID string, in client.EvaluationUpdate) (*client.Submission, error)
	GetUser(ctx context.Context, userID uint) (*client.UserProfile, error)
	RegisterSeller(ctx context.Context, userID uint) (*client.SellerResult, error)
	GetTest(ctx context.Context, testID uint) (*client.Test, error)
	SubmitTest(ctx context.Context, testID uint, in client.SubmitRequest) (*client.Submission, error)
}

var _ API = (*client.Client)(nil)

var (
	ErrScoreOutOfRange  = errors.New("score must be between 0 and 100")
	ErrUnknownQuestion  = errors.New("no practical submission for this question")
	ErrMissingScore     = errors.New("every practical submission needs a score")
	ErrNotLoaded        = errors.New("nothing loaded")
	ErrInvalidAnswer    = errors.New("not an option of this question")
	ErrNotPractical     = errors.New("question does not accept uploads")
	ErrRecordingActive  = errors.New("a recording is already running")
	ErrMissingRecording = errors.New("screen recording required for this question")
)

type NoticeLevel int

const (
	NoticeError NoticeLevel = iota
	NoticeSuccess
)

// Notice is a transient message for the user. Failed requests come back as a
// *Notice wrapping the cause; the operation is abandoned and not retried.
type Notice struct {
	Level   NoticeLevel
	Message string
	Err     error
}

func (n *Notice) Error() string {
	if n.Err == nil {
		return n.Message
	}
	return fmt.Sprintf("%s: %v", n.Message, n.Err)
}

func (n *Notice) Unwrap() error { return n.Err }

func failure(message string, err error) *Notice {
	return &Notice{Level: NoticeError, Message: message, Err: err}
}
