package app

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"skillcert_backend/internal/config"
	"skillcert_backend/internal/controller"
	"skillcert_backend/internal/model"
	"skillcert_backend/internal/repository"
	"skillcert_backend/internal/service"
	"skillcert_backend/internal/util"
	"skillcert_backend/pkg/configwatcher"
	"skillcert_backend/pkg/database"
	"skillcert_backend/pkg/logger"
	"skillcert_backend/pkg/monitoring"
	"skillcert_backend/pkg/security"
	"skillcert_backend/pkg/tracing"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	expirySweepInterval = time.Hour
	defaultConfigFile   = "configs/config.yaml"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client
	// ConfigPath is watched for certification policy changes while the server runs.
	ConfigPath string

	services        *services
	tracer          *sdktrace.TracerProvider
	mu              sync.Mutex
	configCallbacks []func(*config.Config)
	ctx             context.Context
	cancel          context.CancelFunc
}

type repositories struct {
	user       *repository.UserRepository
	skillTest  *repository.SkillTestRepository
	submission *repository.SubmissionRepository
	cert       *repository.CertificationRepository
}

type services struct {
	auth       *service.AuthService
	storage    *service.StorageService
	media      *service.MediaService
	policy     *service.CertificationPolicy
	notifier   service.EvaluationNotifier
	cert       *service.CertificationService
	skillTest  *service.SkillTestService
	evaluation *service.EvaluationService
}

type controllers struct {
	auth       *controller.AuthController
	skillTest  *controller.SkillTestController
	evaluation *controller.EvaluationController
	user       *controller.UserController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

// applyConfig runs every registered callback with a freshly loaded config.
func (a *App) applyConfig(cfg *config.Config) {
	a.mu.Lock()
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.mu.Unlock()
	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		skillTest:  repository.NewSkillTestRepository(db),
		submission: repository.NewSubmissionRepository(db),
		cert:       repository.NewCertificationRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.media = service.NewMediaService()
	s.auth = service.NewAuthService(repos.user, cfg)
	s.policy = service.NewCertificationPolicy(cfg.Certification)

	var cache service.CertificationCache
	if rdb != nil {
		s.notifier = service.NewRedisNotifier(rdb, cfg.Evaluation.NotifyChannel)
		cache = service.NewRedisCertificationCache(rdb, time.Duration(cfg.Certification.CacheMinutes)*time.Minute)
	} else {
		s.notifier = service.NewLocalNotifier()
	}

	s.cert = service.NewCertificationService(repos.user, repos.cert, s.policy, cache)
	s.skillTest = service.NewSkillTestService(
		repos.skillTest,
		repos.submission,
		s.storage,
		s.media,
		s.policy,
		s.notifier,
		s.cert,
		filepath.Join(os.TempDir(), "skillcert"),
	)
	s.evaluation = service.NewEvaluationService(repos.submission, s.policy, s.cert, s.notifier)

	a.RegisterConfigCallback(func(c *config.Config) {
		s.policy.Update(c.Certification)
		logger.Log.Info("Certification policy updated",
			zap.Int("passScore", s.policy.PassScore()),
			zap.Int("validityDays", c.Certification.ValidityDays),
		)
	})

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, cfg *config.Config) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.auth),
		skillTest:  controller.NewSkillTestController(s.skillTest, cfg.Storage.MaxUploadMB),
		evaluation: controller.NewEvaluationController(s.evaluation),
		user:       controller.NewUserController(s.cert),
		health:     controller.NewHealthController(db, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	if cfg.RateLimit.MaxRequests > 0 {
		window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
		if window <= 0 {
			window = time.Minute
		}
		router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, window))
	}

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// ensureAdmin creates the configured admin account once.
func (a *App) ensureAdmin(repos *repositories, s *services, cfg *config.Config) {
	if cfg.Admin.Email == "" || cfg.Admin.Password == "" {
		return
	}
	if _, err := repos.user.FindByEmail(cfg.Admin.Email); err == nil {
		return
	}
	admin := &model.User{
		Name:     cfg.Admin.Name,
		Email:    cfg.Admin.Email,
		Password: cfg.Admin.Password,
		Role:     model.Admin,
	}
	if err := s.auth.Register(admin); err != nil && !errors.Is(err, util.ErrEmailRegistered) {
		logger.Log.Error("Failed to create admin account", zap.Error(err))
		return
	}
	logger.Log.Info("Admin account created", zap.String("email", admin.Email))
}

func (a *App) startBackgroundTasks(ctx context.Context, s *services) {
	go func() {
		ticker := time.NewTicker(expirySweepInterval)
		defer ticker.Stop()
		for {
			if err := s.cert.ExpireOverdue(ctx); err != nil {
				logger.Log.Error("certification expiry sweep failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	if a.ConfigPath == "" {
		return
	}
	go func() {
		if err := configwatcher.WatchConfig(ctx, a.ConfigPath, a.applyConfig); err != nil {
			logger.Log.Warn("Config hot reload disabled", zap.Error(err))
		}
	}()
}

// NewApp connects to MySQL and Redis and builds the server. Redis is optional.
func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg.Server.Mode, "")
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, using in-process notifications without cache", zap.Error(err))
		rdb = nil
	}

	var tp *sdktrace.TracerProvider
	if cfg.Tracing.Enabled {
		tp, err = tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app := New(cfg, db, rdb)
	app.tracer = tp
	app.ConfigPath = defaultConfigFile
	return app
}

// New wires repositories, services and routes on an open database. rdb may be nil.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, cfg)
	app.ensureAdmin(repos, services, cfg)

	monitoring.Init()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

// Start launches the background sweeps. Run calls it; tests may call it directly.
func (a *App) Start() {
	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.startBackgroundTasks(a.ctx, a.services)
}

// Stop cancels background work and flushes traces.
func (a *App) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
}

func (a *App) Run() {
	a.Start()

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
		// request contexts end with the app so open event streams let Shutdown finish
		BaseContext: func(net.Listener) context.Context { return a.ctx },
	}

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// graceful shutdown, 5s to drain
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	a.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
	a.Stop()

	logger.Log.Info("Server exiting")
}
