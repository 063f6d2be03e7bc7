package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/yukikurage/task-tracker/internal/cache"
	"github.com/yukikurage/task-tracker/internal/config"
	"github.com/yukikurage/task-tracker/internal/constants"
	"github.com/yukikurage/task-tracker/internal/database"
	apierrors "github.com/yukikurage/task-tracker/internal/errors"
	"github.com/yukikurage/task-tracker/internal/handlers"
	"github.com/yukikurage/task-tracker/internal/logger"
	"github.com/yukikurage/task-tracker/internal/middleware"
	"github.com/yukikurage/task-tracker/internal/repository"
	"github.com/yukikurage/task-tracker/internal/routes"
	"github.com/yukikurage/task-tracker/internal/services"
	"github.com/yukikurage/task-tracker/internal/web"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		logger.Log.Fatalf("Invalid log level %q: %v", cfg.LogLevel, err)
	}

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.Migrate(db); err != nil {
		logger.Log.Fatalf("Failed to run migrations: %v", err)
	}

	shutdownOps := map[string]gfshutdown.Operation{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}

	// Task list cache
	var listCache cache.TaskListCache
	if cfg.CacheEnabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
		})
		redisCache := cache.NewRedisTaskListCache(client, "task-tracker:", cfg.CacheTTL)
		if err := redisCache.Ping(context.Background()); err != nil {
			logger.Log.WithError(err).Warn("Redis not reachable, task list cache will miss until it is")
		}
		listCache = redisCache
		shutdownOps["redis-cache"] = func(ctx context.Context) error {
			return client.Close()
		}
	}

	// Initialize AI service
	var generator services.TaskGenerator
	if cfg.OpenAIAPIKey != "" {
		generator = services.NewAIService(cfg.OpenAIAPIKey)
	} else {
		logger.Log.Info("OPENAI_API_KEY not set, task generation disabled")
	}

	taskService := services.NewTaskService(repository.NewTaskRepository(db), listCache, generator)
	taskHandler := handlers.NewTaskHandler(taskService)

	// Initialize Gin router
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(), middleware.Metrics())
	r.SetHTMLTemplate(web.MustTemplates())

	store, err := newSessionStore(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to create session store: %v", err)
	}
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.Register(r, taskHandler, middleware.LoadTask(taskService))
	r.NoRoute(func(c *gin.Context) {
		apierrors.NotFound(c, "")
	})

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: r,
	}
	shutdownOps["http-server"] = func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	}

	go func() {
		logger.Log.WithField("port", cfg.HTTPPort).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout, shutdownOps)

	exitCode := <-wait
	logger.Log.WithField("exit_code", exitCode).Info("Server stopped")
	os.Exit(exitCode)
}

// newSessionStore returns the flash message store selected by SESSION_STORE
func newSessionStore(cfg *config.Config) (sessions.Store, error) {
	var store sessions.Store
	if cfg.SessionStore == "redis" {
		redisSessions, err := redisStore.NewStore(
			10,    // Redis pool size
			"tcp", // network type
			cfg.RedisAddr(),
			cfg.RedisPassword,
			[]byte(cfg.SessionSecret),
		)
		if err != nil {
			return nil, err
		}
		store = redisSessions
	} else {
		store = cookie.NewStore([]byte(cfg.SessionSecret))
	}

	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}
