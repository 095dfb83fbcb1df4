package controller

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"skillcert_backend/internal/service"
	"skillcert_backend/internal/util"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	filesFieldPrefix     = "files_"
	recordingFieldPrefix = "recording_"
)

type SkillTestController struct {
	SkillTestService *service.SkillTestService
	MaxUploadBytes   int64
}

func NewSkillTestController(skillTestService *service.SkillTestService, maxUploadMB int64) *SkillTestController {
	if maxUploadMB <= 0 {
		maxUploadMB = 512
	}
	return &SkillTestController{
		SkillTestService: skillTestService,
		MaxUploadBytes:   maxUploadMB << 20,
	}
}

// ListTests godoc
// @Summary List published skill tests
// @Tags Tests
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.PublicTest}
// @Router /tests [get]
func (c *SkillTestController) ListTests(ctx *gin.Context) {
	tests, err := c.SkillTestService.ListTests()
	if err != nil {
		writeError(ctx, err)
		return
	}
	util.Success(ctx, tests)
}

// GetTest godoc
// @Summary Get a skill test without its answer key
// @Tags Tests
// @Produce  json
// @Security ApiKeyAuth
// @Param   testId path int true "test id"
// @Success 200 {object} util.Response{data=service.PublicTest}
// @Failure 404 {object} util.Response
// @Router /tests/{testId} [get]
func (c *SkillTestController) GetTest(ctx *gin.Context) {
	id, ok := uintParam(ctx, "testId")
	if !ok {
		return
	}
	test, err := c.SkillTestService.GetTest(id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	util.Success(ctx, test)
}

// SubmitTest godoc
// @Summary Submit answers, practical files and screen recordings
// @Description multipart form: answers is a JSON array of {questionId, answer};
// @Description files_<questionId> and recording_<questionId> carry practical uploads.
// @Tags Tests
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   testId path int true "test id"
// @Param   answers formData string true "JSON answers"
// @Success 201 {object} util.Response{data=model.TestSubmission}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /tests/{testId}/submit [post]
func (c *SkillTestController) SubmitTest(ctx *gin.Context) {
	testID, ok := uintParam(ctx, "testId")
	if !ok {
		return
	}
	claims := util.ClaimsFrom(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, c.MaxUploadBytes)
	form, err := ctx.MultipartForm()
	if err != nil {
		util.BadRequest(ctx, "invalid multipart form: "+err.Error())
		return
	}

	req, err := parseSubmitForm(form.Value["answers"], form.File)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	sub, err := c.SkillTestService.SubmitTest(ctx.Request.Context(), claims.UserID, testID, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	util.Created(ctx, sub)
}

// parseSubmitForm groups files_<qid> and recording_<qid> parts by question.
func parseSubmitForm(answers []string, files map[string][]*multipart.FileHeader) (service.SubmitTestRequest, error) {
	req := service.SubmitTestRequest{Practical: map[uint]service.PracticalUpload{}}

	if len(answers) > 0 && strings.TrimSpace(answers[0]) != "" {
		if err := json.Unmarshal([]byte(answers[0]), &req.Answers); err != nil {
			return req, fmt.Errorf("invalid answers: %w", err)
		}
	}

	for field, headers := range files {
		var prefix string
		switch {
		case strings.HasPrefix(field, filesFieldPrefix):
			prefix = filesFieldPrefix
		case strings.HasPrefix(field, recordingFieldPrefix):
			prefix = recordingFieldPrefix
		default:
			continue
		}
		qid, err := strconv.ParseUint(strings.TrimPrefix(field, prefix), 10, 64)
		if err != nil {
			return req, fmt.Errorf("invalid form field %s", field)
		}

		upload := req.Practical[uint(qid)]
		if prefix == filesFieldPrefix {
			for _, fh := range headers {
				upload.Files = append(upload.Files, service.UploadFromHeader(fh))
			}
		} else if len(headers) > 0 {
			rec := service.UploadFromHeader(headers[0])
			upload.Recording = &rec
		}
		req.Practical[uint(qid)] = upload
	}
	return req, nil
}
