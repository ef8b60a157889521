package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"quiz_portal/internal/config"
	"quiz_portal/internal/controller"
	"quiz_portal/internal/service"
	"quiz_portal/internal/session"
	"quiz_portal/internal/upstream"
	"quiz_portal/internal/util"
	"quiz_portal/pkg/broker"
	"quiz_portal/pkg/cache"
	"quiz_portal/pkg/configwatcher"
	"quiz_portal/pkg/database"
	"quiz_portal/pkg/logger"
	"quiz_portal/pkg/monitoring"
	"quiz_portal/pkg/security"
	"quiz_portal/pkg/tracing"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 口令尝试：每个 用户+测验 每分钟最多 10 次
const (
	passcodeAttempts = 10
	passcodeWindow   = time.Minute
)

type App struct {
	Config    *config.Config
	ConfigDir string
	Router    *gin.Engine
	DB        *gorm.DB
	Redis     *redis.Client

	cfgMu           sync.RWMutex
	services        *services
	configCallbacks []func(*config.Config)
	publisher       broker.Publisher
	tracer          *sdktrace.TracerProvider
}

type services struct {
	ai       *service.AIService
	auth     *service.AuthService
	storage  *service.StorageService
	catalog  *service.CatalogService
	attempt  *service.AttemptService
	composer *service.ComposerService
	review   *service.ReviewService
	category *service.CategoryService
	manager  *session.Manager
}

type controllers struct {
	auth     *controller.AuthController
	catalog  *controller.CatalogController
	attempt  *controller.AttemptController
	composer *controller.ComposerController
	category *controller.CategoryController
	review   *controller.ReviewController
	upload   *controller.UploadController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// CurrentConfig 返回最近一次加载的配置，热更新后会变化
func (a *App) CurrentConfig() *config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.Config
}

func (a *App) reload(cfg *config.Config) {
	a.cfgMu.Lock()
	// 运行时标志不来自配置文件
	cfg.ForceMigrate = a.Config.ForceMigrate
	cfg.MigrateOnly = a.Config.MigrateOnly
	a.Config = cfg
	a.cfgMu.Unlock()

	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

// initBackend 选择测验后端：remote 走外部 REST API，local 直接读写数据库
func (a *App) initBackend(cfg *config.Config, ai *service.AIService) (service.Backend, error) {
	switch cfg.Backend.Mode {
	case util.BackendRemote:
		logger.Log.Info("Using remote quiz backend", zap.String("base_url", cfg.Backend.BaseURL))
		return upstream.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout), nil
	case util.BackendLocal:
		return service.NewLocalBackend(a.DB, service.NewExtractService(ai), ai), nil
	}
	return nil, fmt.Errorf("unknown backend mode %q", cfg.Backend.Mode)
}

// initKV 优先使用 Redis；不可用时退化为进程内存储，作答记录在重启后丢失
func (a *App) initKV(cfg *config.Config) cache.KV {
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, falling back to in-memory store", zap.Error(err))
		return cache.NewMemoryKV()
	}
	a.Redis = rdb
	return cache.NewRedisKV(rdb)
}

func (a *App) initPublisher(cfg *config.Config) broker.Publisher {
	if !cfg.Broker.Enabled {
		return broker.Noop{}
	}
	p, err := broker.NewRabbitPublisher(cfg.Broker.URL, cfg.Broker.Exchange, logger.Log)
	if err != nil {
		logger.Log.Warn("RabbitMQ unavailable, domain events disabled", zap.Error(err))
		return broker.Noop{}
	}
	return p
}

func (a *App) initServices(cfg *config.Config, backend service.Backend, kv cache.KV, ai *service.AIService) *services {
	s := &services{ai: ai}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(backend, cfg)

	limiter := security.PasscodeLimiter(passcodeAttempts, passcodeWindow)
	s.catalog = service.NewCatalogService(backend, limiter, cfg.Catalog.PasscodeLength, cfg.Catalog.PageSize)

	store := session.NewStore(kv, cfg.Session.KeyPrefix, cfg.Session.RecordGrace, cfg.Session.PayloadTTL)
	s.manager = session.NewManager(session.Options{
		Store:  store,
		Source: backend,
		Grader: backend,
		Logger: logger.Log,
	}, session.ManagerConfig{
		TickInterval:  cfg.Session.TickInterval,
		SubmitTimeout: cfg.Session.SubmitTimeout,
	}, a.publisher)
	s.attempt = service.NewAttemptService(s.manager, s.catalog)

	s.composer = service.NewComposerService(backend, kv, a.publisher, s.catalog)
	s.review = service.NewReviewService(backend, a.publisher)
	s.category = service.NewCategoryService(backend)

	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		auth:     controller.NewAuthController(s.auth),
		catalog:  controller.NewCatalogController(s.catalog),
		attempt:  controller.NewAttemptController(s.attempt),
		composer: controller.NewComposerController(s.composer, s.review, s.catalog.PageSize),
		category: controller.NewCategoryController(s.category),
		review:   controller.NewReviewController(s.review),
		upload:   controller.NewUploadController(s.storage),
		health:   controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// NewApp 初始化全部依赖；MigrateOnly 时只完成迁移，不构建路由
func NewApp(cfg *config.Config, configDir string) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	app := &App{Config: cfg, ConfigDir: configDir}

	if cfg.Backend.Mode == util.BackendLocal {
		db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == "debug")
		if err != nil {
			logger.Log.Fatal("Failed to initialize database", zap.Error(err))
			log.Fatalf("Failed to initialize database: %v", err)
		}
		app.DB = db

		// release 模式默认不迁移，需显式 --migrate
		if cfg.Server.Mode != "release" || cfg.ForceMigrate {
			if err := database.Migrate(db); err != nil {
				logger.Log.Fatal("Failed to migrate database", zap.Error(err))
			}
		}
	} else if cfg.MigrateOnly {
		logger.Log.Warn("Nothing to migrate in remote backend mode")
	}
	if cfg.MigrateOnly {
		return app
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	// 监控初始化
	monitoring.Init()

	kv := app.initKV(cfg)
	app.publisher = app.initPublisher(cfg)

	// 本地后端用它抽题与出题；远程模式下由后端负责
	ai := service.NewAIService(cfg.AI)
	backend, err := app.initBackend(cfg, ai)
	if err != nil {
		logger.Log.Fatal("Failed to initialize quiz backend", zap.Error(err))
	}

	svc := app.initServices(cfg, backend, kv, ai)
	app.services = svc

	app.RegisterConfigCallback(func(c *config.Config) {
		svc.ai.UpdateConfig(c.AI)
		svc.catalog.SetLimits(c.Catalog.PasscodeLength, c.Catalog.PageSize)
	})

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, app.initControllers(svc))

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go func() {
		if err := configwatcher.WatchConfig(watchCtx, a.ConfigDir, a.reload); err != nil {
			logger.Log.Warn("Config hot reload disabled", zap.Error(err))
		}
	}()

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port), zap.String("backend", a.Config.Backend.Mode))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	// 停止所有倒计时；作答记录保留在缓存中，重启后可恢复
	if a.services != nil {
		a.services.manager.Shutdown()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			logger.Log.Warn("Failed to close publisher", zap.Error(err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	logger.Log.Info("Server exiting")
}
