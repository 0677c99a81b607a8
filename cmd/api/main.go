package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/redmonkez12/bookshelf/internal/auth"
	"github.com/redmonkez12/bookshelf/internal/book"
	"github.com/redmonkez12/bookshelf/internal/config"
	"github.com/redmonkez12/bookshelf/internal/database"
	"github.com/redmonkez12/bookshelf/internal/email"
	httpServer "github.com/redmonkez12/bookshelf/internal/http"
	"github.com/redmonkez12/bookshelf/internal/logging"
	"github.com/redmonkez12/bookshelf/internal/ratelimit"
	"github.com/redmonkez12/bookshelf/internal/storage"
	"github.com/redmonkez12/bookshelf/internal/user"
	"github.com/redmonkez12/bookshelf/internal/validation"
	"github.com/redmonkez12/bookshelf/internal/web"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"token_format", cfg.Auth.TokenFormat,
	)

	ctx := context.Background()

	// Initialize database connection
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// Initialize Redis connection; without it requests are not throttled
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = initRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn("redis disabled, rate limiting is off")
	}
	rateLimiter := ratelimit.NewLimiter(redisClient)

	// Initialize object storage for profile pictures
	var objectStore auth.ObjectStore
	s3Store, err := storage.NewS3Store(ctx, cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		logger.Warn("S3_BUCKET not set, profile picture uploads are disabled")
	case err != nil:
		return fmt.Errorf("failed to initialize object storage: %w", err)
	default:
		objectStore = s3Store
	}

	// Initialize session token service
	tokenService, err := auth.NewTokenService(cfg.Auth.TokenFormat, cfg.Auth.PasetoKey, cfg.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	hasher := auth.NewHasher(cfg.Auth.Argon2Time, cfg.Auth.Argon2Memory, cfg.Auth.Argon2Threads)
	validator := validation.New(validation.PolicyFromConfig(cfg.Password))
	emailService := email.NewService(cfg.Email, cfg.Server.BaseURL)

	// Initialize repositories
	userRepo := user.NewRepository(db)
	bookRepo := book.NewRepository(db)

	// Initialize services
	authService := auth.NewService(
		userRepo,
		tokenService,
		hasher,
		validator,
		emailService,
		objectStore,
		logger,
		auth.Settings{
			SessionDuration: cfg.Auth.SessionDuration,
			ResetDuration:   cfg.Auth.ResetDuration,
			UploadMaxBytes:  cfg.Server.UploadMaxBytes,
		},
	)
	bookService := book.NewService(bookRepo, validator)

	renderer, err := web.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}

	// Initialize HTTP handlers
	authHandler := auth.NewHandler(authService, rateLimiter, renderer, bookService, cfg.Server.SecureCookies)
	bookHandler := book.NewHandler(bookService, renderer)
	authMiddleware := auth.NewMiddleware(tokenService, userRepo, cfg.Server.SecureCookies)

	// Initialize router
	router := httpServer.NewRouter(cfg, authHandler, bookHandler, authMiddleware, logger)

	// Initialize HTTP server
	serverAddr := ":" + cfg.Server.Port
	server := httpServer.NewServer(
		serverAddr,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		// Let in-flight reset emails finish before the process exits
		authService.Wait()
	}

	return nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
