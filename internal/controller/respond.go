package controller

import (
	"errors"
	"net/http"
	"skillcert_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

// writeError maps service sentinels onto the response envelope.
func writeError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrUserNotFound),
		errors.Is(err, util.ErrTestNotFound),
		errors.Is(err, util.ErrTestNotPublished),
		errors.Is(err, util.ErrSubmissionNotFound):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, util.ErrStatusRegression),
		errors.Is(err, util.ErrEmailRegistered):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrScoreOutOfRange),
		errors.Is(err, util.ErrInvalidStatus),
		errors.Is(err, util.ErrUnknownQuestion),
		errors.Is(err, util.ErrMissingPracticalScore),
		errors.Is(err, util.ErrRecordingRequired),
		errors.Is(err, util.ErrInvalidVideoExt),
		errors.Is(err, util.ErrInvalidFileType):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrInvalidCredentials):
		util.Error(ctx, http.StatusUnauthorized, err.Error())
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}

func uintParam(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
