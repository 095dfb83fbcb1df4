package util

import (
	"errors"
	"net/http"

	"skillcert_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Response is the envelope every handler writes; Code mirrors the HTTP status.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Code: status, Message: message, Data: data})
}

func Success(c *gin.Context, data interface{}) { Respond(c, http.StatusOK, "success", data) }

func Created(c *gin.Context, data interface{}) { Respond(c, http.StatusCreated, "created", data) }

func Error(c *gin.Context, status int, message string) { Respond(c, status, message, nil) }

func Unauthorized(c *gin.Context) { Error(c, http.StatusUnauthorized, "Unauthorized") }

func Forbidden(c *gin.Context) { Error(c, http.StatusForbidden, "Forbidden") }

func BadRequest(c *gin.Context, message string) { Error(c, http.StatusBadRequest, message) }

func NotFound(c *gin.Context) { Error(c, http.StatusNotFound, "Resource not found") }

func Conflict(c *gin.Context, message string) { Error(c, http.StatusConflict, message) }

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

// BindError reports a failed ShouldBind. Validation failures list each field with
// the rule it broke.
func BindError(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		BadRequest(c, err.Error())
		return
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	Respond(c, http.StatusBadRequest, "validation failed", fields)
}

// LogInternalError hides err from the caller and logs it with the route and user.
func LogInternalError(c *gin.Context, err error) {
	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("route", c.FullPath()),
		zap.Error(err),
	}
	if claims := ClaimsFrom(c); claims != nil {
		fields = append(fields, zap.Uint("userID", claims.UserID))
	}
	logger.Log.Error("request failed", fields...)
	InternalServerError(c)
}
