package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"todo-server/internal/auth"
	"todo-server/internal/config"
	"todo-server/internal/database"
	"todo-server/internal/events"
	"todo-server/internal/handlers"
	"todo-server/internal/logger"
	"todo-server/internal/middleware"
	"todo-server/internal/telemetry"
	"todo-server/internal/userstore"
)

const serviceName = "todo-server"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// OpenTelemetry tracing, optional
	otelActive := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), serviceName, cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				otelActive = true
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Signing keys load once at startup and never change while running
	keys, err := auth.LoadKeySet(auth.KeyMaterial{
		AccessPublic:   cfg.AccessTokenPublicKey,
		AccessPrivate:  cfg.AccessTokenPrivateKey,
		RefreshPublic:  cfg.RefreshTokenPublicKey,
		RefreshPrivate: cfg.RefreshTokenPrivateKey,
	})
	if err != nil {
		zapLogger.Fatal("failed_to_load_signing_keys", zap.Error(err))
	}
	tokenService := auth.NewTokenService(keys)
	sessionService := auth.NewSessionService(tokenService)

	// Postgres holds todos and comments
	db, err := database.New(cfg.AppDatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	// MongoDB holds user credentials
	mongoCtx, mongoCancel := context.WithTimeout(context.Background(), 30*time.Second)
	users, err := userstore.New(mongoCtx, cfg.AuthDatabaseURL, cfg.AuthDatabase)
	mongoCancel()
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_auth_database", zap.Error(err))
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := users.Close(closeCtx); err != nil {
			zapLogger.Warn("failed_to_close_auth_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_auth_database")

	// Redis backs the rate limiter
	rateLimiter, err := middleware.NewRateLimiter(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := rateLimiter.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	rateLimitMW, err := rateLimiter.Middleware(cfg.RateLimit)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	// Activity events go to RabbitMQ when a broker is configured
	publisher := connectPublisher(cfg.RabbitMQURL, zapLogger)
	defer func() {
		if err := publisher.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	todoRepo := database.NewTodoRepository(db)
	commentRepo := database.NewCommentRepository(db)

	authHandler := handlers.NewAuthHandler(users, sessionService, publisher, zapLogger)
	todoHandler := handlers.NewTodoHandler(todoRepo, commentRepo, publisher, zapLogger)
	commentHandler := handlers.NewCommentHandler(todoRepo, commentRepo, publisher, zapLogger)
	healthChecker := handlers.NewHealthChecker(map[string]handlers.Pinger{
		"database":      handlers.PingerFunc(db.PingContext),
		"auth_database": handlers.PingerFunc(users.Ping),
		"cache":         handlers.PingerFunc(rateLimiter.Ping),
		"queue":         handlers.PingerFunc(publisher.HealthCheck),
	})

	r := mux.NewRouter()

	if otelActive {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", auth.ClientKindHeader},
		ExposedHeaders:   []string{auth.AccessTokenHeader, auth.RefreshTokenHeader},
		AllowCredentials: true,
	})
	r.Use(corsHandler.Handler)
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(time.Duration(cfg.RequestTimeout) * time.Second))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")

	// Credential endpoints sit outside the auth gate but behind the rate
	// limiter
	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.Use(rateLimitMW)
	authHandler.RegisterRoutes(authRouter)

	// Everything under /api requires a session
	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(middleware.Auth(tokenService, sessionService, zapLogger))

	todoHandler.RegisterRoutes(apiRouter.PathPrefix("/todos").Subrouter())
	commentHandler.RegisterRoutes(apiRouter.PathPrefix("/todos/{todoId}/comments").Subrouter())

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectPublisher dials RabbitMQ with backoff. Without a configured
// broker the server runs with event publishing disabled.
func connectPublisher(amqpURL string, zapLogger *zap.Logger) events.Publisher {
	if amqpURL == "" {
		zapLogger.Info("rabbitmq_not_configured_events_disabled")
		return events.NoopPublisher{}
	}

	const maxRetries = 10
	delay := 2 * time.Second
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		publisher, err := events.NewRabbitMQPublisher(amqpURL)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return publisher
		}

		lastErr = err
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
		delay *= 2
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
	}

	zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries",
		zap.Int("max_retries", maxRetries),
		zap.Error(lastErr),
	)
	return nil
}
