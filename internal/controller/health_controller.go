package controller

import (
	"context"
	"net/http"
	"time"

	"skillcert_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const probeTimeout = 2 * time.Second

// componentCheck reports a version or "up". Only required components turn the endpoint into a 503.
type componentCheck struct {
	name     string
	required bool
	check    func(ctx context.Context) (string, error)
}

type HealthController struct {
	checks []componentCheck
}

// NewHealthController checks the database, and redis and ffmpeg when present.
// Submissions keep working without either: notifications stay in-process and
// recordings are stored without a duration.
func NewHealthController(db *gorm.DB, rdb *redis.Client) *HealthController {
	checks := []componentCheck{{name: "database", required: true, check: func(ctx context.Context) (string, error) {
		sqlDB, err := db.DB()
		if err != nil {
			return "", err
		}
		return "up", sqlDB.PingContext(ctx)
	}}}
	if rdb != nil {
		checks = append(checks, componentCheck{name: "redis", check: func(ctx context.Context) (string, error) {
			return "up", rdb.Ping(ctx).Err()
		}})
	}
	checks = append(checks, componentCheck{name: "ffmpeg", check: func(context.Context) (string, error) {
		return util.GetFFmpegVersion()
	}})
	return &HealthController{checks: checks}
}

// @Summary Health check
// @Description Database, redis and media tooling status
// @Tags System
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	probeCtx, cancel := context.WithTimeout(ctx.Request.Context(), probeTimeout)
	defer cancel()

	components := gin.H{}
	healthy := true
	for _, pc := range c.checks {
		status, err := pc.check(probeCtx)
		if err != nil {
			status = "unavailable"
			healthy = healthy && !pc.required
		}
		components[pc.name] = status
	}

	if !healthy {
		util.Respond(ctx, http.StatusServiceUnavailable, "Service degraded", gin.H{"status": "degraded", "components": components})
		return
	}
	util.Success(ctx, gin.H{"status": "ok", "components": components})
}
