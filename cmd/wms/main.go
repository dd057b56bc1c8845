package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bitfantasy/nimo-wms/internal/config"
	"github.com/bitfantasy/nimo-wms/internal/middleware"
	"github.com/bitfantasy/nimo-wms/internal/shared/feishu"
	"github.com/bitfantasy/nimo-wms/internal/shared/lock"
	"github.com/bitfantasy/nimo-wms/internal/shared/notify"
	"github.com/bitfantasy/nimo-wms/internal/shared/storage"
	"github.com/bitfantasy/nimo-wms/internal/wms/entity"
	"github.com/bitfantasy/nimo-wms/internal/wms/handler"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository/memory"
	"github.com/bitfantasy/nimo-wms/internal/wms/service"
	"github.com/bitfantasy/nimo-wms/internal/wms/sse"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	issue := flag.String("issue-token", "", "print a token for the given user id and exit")
	roles := flag.String("roles", middleware.RoleOperator, "comma separated roles for -issue-token")
	flag.Parse()

	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *issue != "" {
		token, err := middleware.IssueToken(cfg.JWT.Secret, cfg.JWT.Issuer, *issue, *issue, strings.Split(*roles, ","), cfg.JWT.AccessTokenExpire)
		if err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting nimo-wms service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	store, err := initStore(cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to open store", zap.Error(err))
	}

	// 越库分配锁：多实例部署时用 Redis
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Enabled {
		rdb := initRedis(cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			zapLogger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, "wms:", cfg.Engine.LockTTL, zapLogger)
		zapLogger.Info("Redis locker enabled", zap.String("addr", rdb.Options().Addr))
	}

	// 签收单和托盘照片存储
	var objects storage.ObjectStore = storage.NewMemoryStore()
	if cfg.MinIO.Endpoint != "" {
		mstore, err := storage.NewMinIOStore(cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.Bucket, cfg.MinIO.UseSSL, cfg.MinIO.URLExpiry)
		if err != nil {
			zapLogger.Fatal("Failed to init MinIO", zap.Error(err))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = mstore.EnsureBucket(ctx)
		cancel()
		if err != nil {
			zapLogger.Fatal("Failed to ensure MinIO bucket", zap.Error(err))
		}
		objects = mstore
		zapLogger.Info("MinIO storage enabled", zap.String("bucket", cfg.MinIO.Bucket))
	} else {
		zapLogger.Warn("MinIO not configured, documents are kept in memory")
	}

	notifier := notify.NewNotifier(initDispatcher(cfg, zapLogger), cfg.Engine.NotifyMaxAttempts,
		cfg.Engine.NotifyBaseBackoff, cfg.Engine.NotifyMaxBackoff, zapLogger)

	hub := sse.NewHub(zapLogger)
	services := service.NewServices(service.Deps{
		Store:     store,
		Locker:    locker,
		Notifier:  notifier,
		Objects:   objects,
		Publisher: hub,
		Logger:    zapLogger,
	}, service.Options{
		ReceivingTerminalStatus: entity.ReceivingStatus(cfg.Engine.ReceivingTerminalStatus),
		AllocationRetries:       cfg.Engine.AllocationRetries,
		StoreTimeout:            cfg.Engine.StoreTimeout,
		StoreRetryBackoff:       cfg.Engine.StoreRetryBackoff,
	})
	handlers := handler.NewHandlers(services, hub, zapLogger)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/wms/events"})))

	registerRoutes(router, handlers, hub, cfg)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// SSE 长连接不设写超时
		WriteTimeout: 0,
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := notifier.Wait(ctx); err != nil {
		zapLogger.Warn("Pending notifications abandoned", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initStore(cfg config.DatabaseConfig, zapLogger *zap.Logger) (repository.Store, error) {
	if cfg.Driver == "memory" {
		zapLogger.Warn("Using in-memory store, data is lost on restart")
		return memory.New(), nil
	}
	db, err := initDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := entity.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}
	return repository.NewGormStore(db), nil
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// initDispatcher 发货通知：飞书机器人和邮件，都未配置时只记日志
func initDispatcher(cfg *config.Config, zapLogger *zap.Logger) notify.Dispatcher {
	var multi notify.Multi
	if cfg.Feishu.WebhookURL != "" {
		multi = append(multi, notify.NewFeishuDispatcher(feishu.NewBotClient(cfg.Feishu.WebhookURL, cfg.Feishu.Secret)))
	}
	if cfg.SMTP.Host != "" && len(cfg.SMTP.To) > 0 {
		multi = append(multi, notify.NewSMTPDispatcher(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, cfg.SMTP.To))
	}
	if len(multi) == 0 {
		zapLogger.Warn("No notification channel configured")
		return notify.Nop{}
	}
	return multi
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, hub *sse.Hub, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sse_clients": hub.Count()})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	api := r.Group("/api/v1/wms", middleware.JWTAuth(cfg.JWT.Secret))
	h.RegisterRoutes(api)
}
