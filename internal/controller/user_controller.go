package controller

import (
	"net/http"
	"skillcert_backend/internal/service"
	"skillcert_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	CertService *service.CertificationService
}

func NewUserController(certService *service.CertificationService) *UserController {
	return &UserController{CertService: certService}
}

// GetUser godoc
// @Summary Get a user with certifications
// @Description certifications is always an array, empty when the user holds none
// @Tags Users
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "user id"
// @Success 200 {object} util.Response{data=service.UserProfile}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /users/{id} [get]
func (c *UserController) GetUser(ctx *gin.Context) {
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}

	profile, err := c.CertService.GetProfile(ctx.Request.Context(), id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	util.Success(ctx, profile)
}

// RegisterSeller godoc
// @Summary Start selling
// @Description Registers the user as a seller when they hold a passing certification.
// @Tags Users
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "user id"
// @Success 200 {object} util.Response{data=object} "registered"
// @Failure 403 {object} util.Response "gate refused, message explains why"
// @Router /users/{id}/seller [post]
func (c *UserController) RegisterSeller(ctx *gin.Context) {
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}

	decision, err := c.CertService.RegisterSeller(ctx.Request.Context(), id)
	if err != nil {
		writeError(ctx, err)
		return
	}

	if !decision.Allowed() {
		ctx.JSON(http.StatusForbidden, util.Response{
			Code:    http.StatusForbidden,
			Message: decision.Message,
			Data:    gin.H{"outcome": decision.Outcome.String()},
		})
		return
	}

	util.Success(ctx, gin.H{
		"outcome":       decision.Outcome.String(),
		"certification": decision.Qualifying,
	})
}
