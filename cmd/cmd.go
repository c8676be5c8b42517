package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"messenger-backend/internal/blobstore"
	"messenger-backend/internal/config"
	"messenger-backend/internal/handlers"
	"messenger-backend/internal/kvstore"
	"messenger-backend/internal/middleware"
	"messenger-backend/internal/repository"
	"messenger-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx := context.Background()

	// Connect the hierarchical store
	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open store")
	}
	defer closeBackend()
	log.Info().Str("driver", cfg.Store.Driver).Msg("Store connection established")

	// Connect blob storage
	storage, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to open blob storage")
	}

	// Push notifications
	var notifier services.Notifier = services.NoopNotifier{}
	if cfg.APNs.KeyPath != "" {
		apns, err := services.NewAPNsNotifier(services.APNsConfig{
			KeyPath:    cfg.APNs.KeyPath,
			KeyID:      cfg.APNs.KeyID,
			TeamID:     cfg.APNs.TeamID,
			Topic:      cfg.APNs.Topic,
			Production: cfg.APNs.Production,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs notifier")
		}
		notifier = apns
		log.Info().Bool("production", cfg.APNs.Production).Msg("APNs push enabled")
	}

	// Initialize repositories
	chatTree := kvstore.New(backend, "chat")
	userRepo := repository.NewUserRepository(chatTree)
	convRepo := repository.NewConversationRepository(chatTree)
	credRepo := repository.NewCredentialRepository(
		kvstore.New(backend, "auth"),
		kvstore.New(backend, "devices"),
	)

	// Initialize services
	mediaService := services.NewMediaService(storage, cfg.Storage.URLExpiry)
	userService := services.NewUserService(userRepo, credRepo, mediaService, cfg.JWT.Secret)
	wsHub := services.NewWSHub()
	chatService := services.NewChatService(userRepo, convRepo, credRepo, mediaService, wsHub, notifier)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	conversationHandler := handlers.NewConversationHandler(chatService)
	wsHandler := handlers.NewWebSocketHandler(wsHub, userService, chatService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.Register)
		r.Post("/sessions", userHandler.Login)
		r.Get("/users/exists", userHandler.UserExists)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))
			r.Get("/users", userHandler.SearchUsers)
			r.Get("/users/me", userHandler.GetMe)
			r.Put("/users/me/picture", userHandler.UploadPicture)
			r.Put("/users/me/push-token", userHandler.RegisterPushToken)
			r.Get("/users/{email}/picture", userHandler.GetPicture)
			r.Get("/conversations", conversationHandler.ListConversations)
			r.Post("/conversations", conversationHandler.CreateConversation)
			r.Get("/conversations/{id}/messages", conversationHandler.GetMessages)
			r.Post("/conversations/{id}/messages", conversationHandler.SendMessage)
		})
	})

	// Local blobs are served by the API itself
	if cfg.Storage.Driver == "local" {
		r.Get("/media/*", handlers.NewMediaHandler(storage).ServeMedia)
	}

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openBackend connects the store backend selected by store.driver
func openBackend(ctx context.Context, cfg *config.Config) (kvstore.Backend, func(), error) {
	switch cfg.Store.Driver {
	case "postgres":
		db, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		backend := kvstore.NewPostgresBackend(db)
		if err := backend.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return backend, db.Close, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return kvstore.NewRedisBackend(rdb), func() { rdb.Close() }, nil
	default:
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		return kvstore.NewMemoryBackend(), func() {}, nil
	}
}

// openStorage creates the blob storage selected by storage.driver
func openStorage(ctx context.Context, cfg *config.Config) (blobstore.Storage, error) {
	if cfg.Storage.Driver == "s3" {
		return blobstore.NewS3Storage(ctx, blobstore.S3Config{
			Region:       cfg.AWS.Region,
			Bucket:       cfg.AWS.S3Bucket,
			AccessKey:    cfg.AWS.AccessKey,
			SecretKey:    cfg.AWS.SecretKey,
			Endpoint:     cfg.AWS.Endpoint,
			UsePathStyle: cfg.AWS.UsePathStyle,
			PublicURL:    cfg.AWS.PublicURL,
		})
	}
	return blobstore.NewLocalStorage(cfg.Local.BasePath, cfg.Local.BaseURL)
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
