package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lodgetix/api/routes"
	"lodgetix/internal/auth"
	"lodgetix/internal/events"
	"lodgetix/internal/notifications"
	"lodgetix/internal/packages"
	"lodgetix/internal/realtime"
	"lodgetix/internal/registrations"
	"lodgetix/internal/reservations"
	"lodgetix/internal/shared/config"
	"lodgetix/internal/shared/database"
	"lodgetix/internal/tickets"
	"lodgetix/pkg/cache"
	"lodgetix/pkg/logger"
	"lodgetix/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	appLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// Initialize DB (runs migrations)
	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("failed to connect:", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Preload Redis Lua scripts for the atomic counter mirror
	counters := tickets.NewAtomicCounterOperations(db.GetRedis())
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := counters.PreloadScripts(ctx); err != nil {
			// Scripts fall back to EVAL on first use
			appLogger.Error("Failed to preload Redis Lua scripts", slog.Any("error", err))
		} else {
			appLogger.Info("Redis Lua scripts preloaded for atomic ticket counters")
		}
		cancel()
	}

	cacheService := cache.NewService(db.GetRedis())

	// Rate limiter
	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = ratelimit.NewRateLimiter(db.GetRedis(), cfg.RateLimit)
		appLogger.Info("Rate limiter initialized",
			slog.Bool("enabled", cfg.RateLimit.Enabled),
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("reservation_requests", cfg.RateLimit.ReservationRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	// Root context for background workers
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Realtime plumbing
	channelManager := realtime.NewChannelManager(db.GetRedis(), cfg.Reservation.OperationTimeout, cfg.Realtime.BroadcastBuffer)
	presenceTracker := realtime.NewPresenceTracker(db.GetRedis(), cfg.Realtime.PresenceTTL)
	presenceEmitter := realtime.NewPresenceEmitter(cfg.Realtime.BroadcastBuffer)
	hub := realtime.NewHub(presenceTracker, presenceEmitter, channelManager, cfg.Realtime.BroadcastBuffer)
	rowNotifier := realtime.NewNotifier(channelManager)

	go func() {
		if err := hub.RunWithContext(rootCtx); err != nil && err != context.Canceled {
			appLogger.Error("websocket hub stopped", slog.Any("error", err))
		}
	}()

	// Domain services
	eventService := events.NewService(events.NewRepository(db.GetPostgreSQL()))
	eventService.SetCacheService(cacheService)

	ticketService := tickets.NewService(tickets.NewRepository(db.GetPostgreSQL()), counters)
	ticketService.SetNotifier(rowNotifier)
	ticketService.SetEventService(eventService)

	packageService := packages.NewService(packages.NewRepository(db.GetPostgreSQL()))
	packageService.SetCacheService(cacheService)
	packageService.SetTicketProvisioner(ticketService)

	orchestrator := reservations.NewService(
		reservations.NewEngineAdapter(ticketService),
		channelManager,
		presenceEmitter,
		db.GetRedis(),
		cfg.Reservation,
	)
	defer orchestrator.Dispose()

	registrationService := registrations.NewService(
		registrations.NewRepository(db.GetPostgreSQL()),
		orchestrator,
		ticketService,
	)
	registrationService.SetEventService(eventService)

	authService := auth.NewService(auth.NewRepository(db.GetPostgreSQL()), cfg)
	authService.SetCacheService(cacheService)

	// Reserve calls without a session bootstrap one; the reserving flag
	// feeds the event's presence channel
	orchestrator.SetSessionBootstrapper(reservations.NewSessionAdapter(authService))
	orchestrator.SetPresence(hub)

	// Kafka-backed notifications; the API runs degraded without them
	if cfg.Kafka.Enabled {
		notificationService, err := notifications.NewService(cfg, rowNotifier)
		if err != nil {
			appLogger.Error("Failed to initialize notification service", slog.Any("error", err))
			appLogger.Info("Continuing without notification service")
		} else {
			if err := notificationService.Start(rootCtx); err != nil {
				appLogger.Error("Failed to start notification service", slog.Any("error", err))
			} else {
				authService.SetOTPSender(notificationService)
				registrationService.SetPublisher(notificationService)
				appLogger.Info("Notification service started")
			}
			defer func() {
				if err := notificationService.Stop(); err != nil {
					appLogger.Error("Error stopping notification service", slog.Any("error", err))
				}
			}()
		}
	}

	// Background sweep for expired holds
	ticketService.StartExpirySweeper(rootCtx, time.Minute)
	defer ticketService.StopExpirySweeper()

	services := &routes.Services{
		Auth:          authService,
		Events:        eventService,
		Packages:      packageService,
		Tickets:       ticketService,
		Registrations: registrationService,
		Orchestrator:  orchestrator,
		Hub:           hub,
	}

	router := setupRouter(cfg, db, rateLimiter, services)

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("version", cfg.APIVersion),
			slog.Bool("redis_cache", db.Redis != nil),
			slog.Bool("rate_limiting", cfg.RateLimit.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	// Stop background workers and realtime channels after the listener drains
	rootCancel()
	channelManager.Close()

	appLogger.Info("Server exited gracefully")
}

func setupRouter(cfg *config.Config, db *database.DB, rateLimiter *ratelimit.RateLimiter, services *routes.Services) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	engine.Use(RequestLoggerMiddleware(appLogger), gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Client-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
	}

	appRouter := routes.NewRouter(cfg, db, services)
	appRouter.SetupRoutes(engine)

	return engine
}

func RequestLoggerMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		l.LogHTTPRequest(c, duration)
	}
}
