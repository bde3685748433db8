package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"lunchly-backend/internal/config"
	"lunchly-backend/internal/handlers"
	"lunchly-backend/internal/metrics"
	"lunchly-backend/internal/middleware"
	"lunchly-backend/internal/places"
	"lunchly-backend/internal/realtime"
	"lunchly-backend/internal/repository"
	"lunchly-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

func Run() {
	// Load configuration
	path := os.Getenv("LUNCHLY_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log)

	ctx := context.Background()

	// Connect to database
	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	if err := repository.ApplyMigrations(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	// Connect to redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping redis")
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connection established")

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
	}

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db)
	userRepo := repository.NewUserRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	sessionRepo := repository.NewSessionRepository(rdb)

	s3Client, err := services.NewS3Client(ctx, cfg.AWS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create object storage client")
	}

	// Initialize services
	wsHub := services.NewWSHub()
	broker := realtime.NewRedisBroker(rdb)
	placesClient := places.NewClient(cfg.Places, nil)
	if !placesClient.Configured() {
		log.Warn().Msg("Places API key missing, serving fixture restaurants")
	}

	authService := services.NewAuthService(accountRepo, sessionRepo, cfg.JWT.Secret, cfg.JWT.TTL)
	userService := services.NewUserService(userRepo, cfg.Discovery.AvailabilityWindow)
	discoveryService := services.NewDiscoveryService(userRepo, cfg.Discovery)
	avatarService := services.NewAvatarService(userRepo, s3Client, cfg.AWS)
	proposalService := services.NewProposalService(
		matchRepo,
		userRepo,
		wsHub,
		services.NewNotifier(cfg.APNs),
		services.NewReminderScheduler(cfg.Notifications.ReminderLead),
	)
	defer proposalService.Stop()
	chatService := services.NewChatService(matchRepo, messageRepo, broker)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.PlacesPerSecond, cfg.RateLimit.PlacesBurst)
	defer limiter.Stop()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService, avatarService)
	discoveryHandler := handlers.NewDiscoveryHandler(discoveryService, userService, placesClient, cfg.Places)
	placesHandler := handlers.NewPlacesHandler(placesClient, places.NewRedisDetailsCache(rdb, cfg.Places.DetailsCacheTTL))
	matchHandler := handlers.NewMatchHandler(proposalService, chatService)
	wsHandler := handlers.NewWebSocketHandler(wsHub, authService, chatService, placesClient, cfg.Places, limiter)
	healthHandler := handlers.NewHealthHandler(map[string]handlers.HealthCheck{
		"database": db.Ping,
		"redis": func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	})

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/signup", authHandler.SignUp)
		r.Post("/auth/signin", authHandler.SignIn)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(authService))
			r.Post("/auth/signout", authHandler.SignOut)

			r.Get("/me", userHandler.Me)
			r.Patch("/me", userHandler.UpdateProfile)
			r.Post("/me/profile", userHandler.SetupProfile)
			r.Post("/me/availability", userHandler.SetAvailability)
			r.Post("/me/avatar", userHandler.UploadAvatar)
			r.Put("/me/push-token", userHandler.UpdatePushToken)

			r.Get("/discovery/partners", discoveryHandler.Partners)
			r.Get("/restaurants", discoveryHandler.Restaurants)

			r.Route("/places", func(r chi.Router) {
				r.With(limiter.Middleware).Get("/autocomplete", placesHandler.Autocomplete)
				r.With(limiter.Middleware).Post("/resolve", placesHandler.Resolve)
				r.Get("/photo", placesHandler.Photo)
				r.Get("/{place_id}", placesHandler.Details)
				r.Get("/{place_id}/link", placesHandler.Link)
			})

			r.Route("/matches", func(r chi.Router) {
				r.Post("/", matchHandler.Create)
				r.Get("/", matchHandler.List)
				r.Get("/{match_id}", matchHandler.Get)
				r.Delete("/{match_id}", matchHandler.Cancel)
				r.Post("/{match_id}/accept", matchHandler.Accept)
				r.Post("/{match_id}/decline", matchHandler.Decline)
				r.Post("/{match_id}/feedback", matchHandler.Feedback)
				r.Get("/{match_id}/messages", matchHandler.Messages)
				r.Post("/{match_id}/messages", matchHandler.SendMessage)
			})
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)
	r.Handle("/metrics", metrics.Handler())
	r.Method(http.MethodGet, "/healthz", healthHandler)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown; they close with the process
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Int("pending_reminders", proposalService.Reminders().Pending()).Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var out io.Writer = os.Stderr
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	if cfg.File != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	switch cfg.Level {
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

// requestLogger logs every request with zerolog
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("request_id", chiMiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Msg("Request handled")
	})
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
