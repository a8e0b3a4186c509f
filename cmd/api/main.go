package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/damoang/angple-messenger/internal/config"
	"github.com/damoang/angple-messenger/internal/events"
	"github.com/damoang/angple-messenger/internal/handler"
	"github.com/damoang/angple-messenger/internal/messenger"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/internal/routes"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/damoang/angple-messenger/internal/tree"
	"github.com/damoang/angple-messenger/internal/ws"
	pkgcache "github.com/damoang/angple-messenger/pkg/cache"
	pkges "github.com/damoang/angple-messenger/pkg/elasticsearch"
	"github.com/damoang/angple-messenger/pkg/jwt"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
	pkgredis "github.com/damoang/angple-messenger/pkg/redis"
	pkgstorage "github.com/damoang/angple-messenger/pkg/storage"
	"github.com/redis/go-redis/v9"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// @title           Angple Messenger API
// @version         1.0
// @description     Realtime company messenger: chats, messages, contacts, presence
//
// @host            localhost:8082
// @BasePath        /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Authorization header using the Bearer scheme. Example: "Bearer {token}"

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	dotenvFiles := config.LoadDotEnv(".")

	// 로거 초기화
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	log := pkglogger.GetLogger()
	pkglogger.Info("APP_ENV=%s, loaded env files: %v", env, dotenvFiles)

	// 설정 로드
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("failed to load config")
	}
	config.LogResolved(cfg)
	gin.SetMode(cfg.Server.Mode)

	// DB 연결 (tree store 저장소)
	db, err := initDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to connect to database")
	}
	if err := tree.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("tree migration failed")
	}

	// Redis 연결 (없으면 단일 인스턴스 모드)
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(pkgredis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			pkglogger.Info("Warning: Failed to connect to Redis: %v (continuing without Redis)", err)
			redisClient = nil
		} else {
			pkglogger.Info("Connected to Redis")
		}
	}
	cacheService := pkgcache.NewService(redisClient)

	notifier := tree.NewNotifier(redisClient)
	store := tree.New(db, tree.WithNotifier(notifier), tree.WithMaxRetries(cfg.Messenger.MaxRetries))

	// Repositories
	chatRepo := repository.NewChatRepository(store)
	messageRepo := repository.NewMessageRepository(store)
	prefRepo := repository.NewPreferenceRepository(store)
	profileRepo := repository.NewProfileRepository(store, cacheService)
	contactRepo := repository.NewContactRepository(store)
	statusRepo := repository.NewStatusRepository(store)
	categoryRepo := repository.NewCategoryRepository(store)
	notificationRepo := repository.NewNotificationRepository(store)

	// Services
	bus := events.NewBus()
	wsHub := ws.NewHub(redisClient)
	go wsHub.Run()

	chatService := service.NewChatService(chatRepo)
	messageService := service.NewMessageService(chatRepo, messageRepo, profileRepo, prefRepo, bus)
	contactService := service.NewContactService(contactRepo, profileRepo, statusRepo, bus)
	statusService := service.NewStatusService(statusRepo)
	prefService := service.NewPreferenceService(prefRepo)
	categoryService := service.NewCategoryService(categoryRepo, chatRepo)
	notificationService := service.NewNotificationService(notificationRepo, prefRepo, wsHub)
	notificationService.Register(bus)

	// Elasticsearch (선택)
	if cfg.Elasticsearch.Enabled && len(cfg.Elasticsearch.Addresses) > 0 {
		esClient, esErr := pkges.NewClient(cfg.Elasticsearch.Addresses, cfg.Elasticsearch.Username, cfg.Elasticsearch.Password)
		if esErr != nil {
			pkglogger.Info("Warning: Elasticsearch connection failed: %v (continuing without ES)", esErr)
		} else {
			index := service.NewESSearchIndex(esClient)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := index.EnsureIndex(ctx); err != nil {
				pkglogger.Info("Warning: search index setup failed: %v", err)
			}
			cancel()
			service.RegisterSearchIndexer(bus, index)
			messageService.WithSearchIndex(index)
			pkglogger.Info("Connected to Elasticsearch")
		}
	}

	// S3 스토리지 (선택)
	var uploader service.Uploader
	if cfg.Storage.Enabled && cfg.Storage.Bucket != "" {
		s3Client, s3Err := pkgstorage.NewS3Client(pkgstorage.S3Config{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Bucket:          cfg.Storage.Bucket,
			CDNURL:          cfg.Storage.CDNURL,
			BasePath:        cfg.Storage.BasePath,
			ForcePathStyle:  cfg.Storage.ForcePathStyle,
		})
		if s3Err != nil {
			pkglogger.Info("Warning: S3 storage init failed: %v (continuing without S3)", s3Err)
		} else {
			uploader = s3Client
			pkglogger.Info("Connected to S3 storage")
		}
	}
	attachmentService := service.NewAttachmentService(uploader, cfg.Storage.MaxFileSize)

	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn, cfg.JWT.RefreshIn)

	// Gin 라우터 생성
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins(),
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", middleware.HeaderCompanyID, middleware.HeaderSiteID, middleware.HeaderSubsiteID, middleware.HeaderDepartmentID, middleware.HeaderRoleID},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID"},
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "ok"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "down"
		}
		c.JSON(status, gin.H{
			"status":   dbStatus,
			"service":  "angple-messenger",
			"redis":    redisClient != nil,
			"watchers": notifier.WatcherCount(),
			"time":     time.Now().Unix(),
		})
	})

	sessionServices := messenger.Services{
		Chats:       chatService,
		Messages:    messageService,
		Contacts:    contactService,
		Statuses:    statusService,
		Preferences: prefService,
	}
	routes.Setup(router, &routes.Handlers{
		Chat:         handler.NewChatHandler(chatService, categoryService),
		Message:      handler.NewMessageHandler(messageService, chatService, attachmentService, cfg.Messenger.MessageWindow),
		Contact:      handler.NewContactHandler(contactService, statusService),
		Preference:   handler.NewPreferenceHandler(prefService),
		Notification: handler.NewNotificationHandler(notificationService),
		Session:      handler.NewSessionHandler(sessionServices, cfg.Messenger.MessageWindow, cfg.AllowOrigins()),
		WS:           handler.NewWSHandler(wsHub, cfg.AllowOrigins()),
	}, jwtManager, redisClient)

	// 서버 시작
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		pkglogger.Info("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	pkglogger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	wsHub.Stop()
	bus.Wait()
	notifier.Close()
	if redisClient != nil {
		_ = redisClient.Close()
	}
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.Database.GetDSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.GetDSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	logLevel := gormlogger.Warn
	if cfg.IsDevelopment() {
		logLevel = gormlogger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver == "sqlite" {
		// sqlite 는 단일 writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)
	}
	return db, nil
}
