package controller

import (
	"net/http"
	"skillcert_backend/internal/model"
	"skillcert_backend/internal/service"
	"skillcert_backend/internal/util"
	"skillcert_backend/pkg/logger"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const eventKeepAlive = 25 * time.Second

type EvaluationController struct {
	EvaluationService *service.EvaluationService
}

func NewEvaluationController(evaluationService *service.EvaluationService) *EvaluationController {
	return &EvaluationController{EvaluationService: evaluationService}
}

// ListPending godoc
// @Summary Submissions awaiting evaluation
// @Description Oldest first. status narrows the list; omit it for every submission.
// @Tags Evaluation
// @Produce  json
// @Security ApiKeyAuth
// @Param   status query string false "pending, in_progress or completed"
// @Success 200 {object} util.Response{data=[]service.SubmissionSummary}
// @Failure 400 {object} util.Response
// @Router /tests/pending-evaluation [get]
func (c *EvaluationController) ListPending(ctx *gin.Context) {
	rows, err := c.EvaluationService.ListPending(model.EvaluationStatus(ctx.Query("status")))
	if err != nil {
		writeError(ctx, err)
		return
	}
	util.Success(ctx, rows)
}

// GetEvaluation godoc
// @Summary Submission detail for grading
// @Description Opening a pending submission marks it in_progress.
// @Tags Evaluation
// @Produce  json
// @Security ApiKeyAuth
// @Param   testId path string true "submission id"
// @Success 200 {object} util.Response{data=service.EvaluationDetail}
// @Failure 404 {object} util.Response
// @Router /tests/evaluation/{testId} [get]
func (c *EvaluationController) GetEvaluation(ctx *gin.Context) {
	detail, err := c.EvaluationService.GetEvaluation(ctx.Request.Context(), ctx.Param("testId"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// SaveEvaluation godoc
// @Summary Save scores and feedback
// @Description practicalScores and practicalFeedback are keyed by question id. Scores must be within [0,100].
// @Tags Evaluation
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   testId path string true "submission id"
// @Param   body body service.SaveEvaluationRequest true "evaluation"
// @Success 200 {object} util.Response{data=model.TestSubmission}
// @Failure 400 {object} util.Response "score out of range or unknown question"
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response "status would move backwards"
// @Router /tests/evaluation/{testId} [post]
func (c *EvaluationController) SaveEvaluation(ctx *gin.Context) {
	var req service.SaveEvaluationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BindError(ctx, err)
		return
	}
	claims := util.ClaimsFrom(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	sub, err := c.EvaluationService.SaveEvaluation(ctx.Request.Context(), ctx.Param("testId"), claims.UserID, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	util.Success(ctx, sub)
}

// Events godoc
// @Summary Evaluation status stream
// @Description Server-sent events, one "status" event per change. Pass ?token= when headers cannot be set.
// @Tags Evaluation
// @Produce  text/event-stream
// @Security ApiKeyAuth
// @Router /tests/evaluation/events [get]
func (c *EvaluationController) Events(ctx *gin.Context) {
	events, err := c.EvaluationService.Watch(ctx.Request.Context())
	if err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, err.Error())
		return
	}

	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")
	ctx.Status(http.StatusOK)
	ctx.Writer.Flush()

	ticker := time.NewTicker(eventKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			ctx.SSEvent("status", ev)
			ctx.Writer.Flush()
		case <-ticker.C:
			ctx.SSEvent("ping", time.Now().Unix())
			ctx.Writer.Flush()
		case <-ctx.Request.Context().Done():
			logger.Log.Debug("evaluation stream closed", zap.Error(ctx.Request.Context().Err()))
			return
		}
	}
}
