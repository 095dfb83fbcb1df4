package util

import "errors"

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrEmailRegistered       = errors.New("email already registered")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrTestNotFound          = errors.New("skill test not found")
	ErrTestNotPublished      = errors.New("skill test not published")
	ErrSubmissionNotFound    = errors.New("submission not found")
	ErrStatusRegression      = errors.New("evaluation status cannot move backwards")
	ErrInvalidStatus         = errors.New("unknown evaluation status")
	ErrScoreOutOfRange       = errors.New("score must be between 0 and 100")
	ErrUnknownQuestion       = errors.New("question does not belong to this submission")
	ErrMissingPracticalScore = errors.New("every practical submission needs a score before completion")
	ErrRecordingRequired     = errors.New("screen recording required for this question")
	ErrInvalidVideoExt       = errors.New("unsupported recording format")
	ErrInvalidFileType       = errors.New("invalid file type")
)
