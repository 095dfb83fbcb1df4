package middleware

import (
	"errors"
	"skillcert_backend/internal/config"
	"skillcert_backend/internal/model"
	"skillcert_backend/internal/util"
	"skillcert_backend/pkg/logger"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware accepts a bearer token, or ?token= for EventSource clients that cannot set headers.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.VerifySession(tokenString, cfg.JWT.Secret)
		if err != nil {
			logger.Log.Debug("session rejected", zap.Bool("expired", errors.Is(err, util.ErrSessionExpired)), zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		util.SetClaims(c, claims)
		c.Next()
	}
}

// RoleMiddleware lets admins through every role check.
func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.ClaimsFrom(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := user.IsAdmin()
		for _, role := range roles {
			if user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// SelfOrAdmin restricts a route to the user named by the path parameter.
func SelfOrAdmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.ClaimsFrom(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		id, err := strconv.ParseUint(c.Param(param), 10, 64)
		if err != nil {
			util.BadRequest(c, "invalid user id")
			c.Abort()
			return
		}

		if !user.IsAdmin() && uint(id) != user.UserID {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
