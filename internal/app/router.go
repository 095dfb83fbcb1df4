package app

import (
	"skillcert_backend/docs"
	"skillcert_backend/internal/config"
	"skillcert_backend/internal/middleware"
	"skillcert_backend/internal/model"
	"skillcert_backend/internal/util"
	"skillcert_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. public
	a.registerPublicRoutes(router, c)

	// 2. signed-in users
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerLearnerRoutes(authGroup, c)

		// 3. graders
		a.registerAdminRoutes(authGroup, c)
	}

	router.NoRoute(util.NotFound)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}
}

func (a *App) registerLearnerRoutes(group *gin.RouterGroup, c *controllers) {
	tests := group.Group("/tests")
	{
		tests.GET("", c.skillTest.ListTests)
		tests.GET("/:testId", c.skillTest.GetTest)
		tests.POST("/:testId/submit", c.skillTest.SubmitTest)
	}

	users := group.Group("/users")
	{
		users.GET("/:id", c.user.GetUser)
		users.POST("/:id/seller", middleware.SelfOrAdmin("id"), c.user.RegisterSeller)
	}
}

func (a *App) registerAdminRoutes(group *gin.RouterGroup, c *controllers) {
	admin := group.Group("/tests")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/pending-evaluation", c.evaluation.ListPending)
		admin.GET("/evaluation/events", c.evaluation.Events)
		admin.GET("/evaluation/:testId", c.evaluation.GetEvaluation)
		admin.POST("/evaluation/:testId", c.evaluation.SaveEvaluation)
	}
}
