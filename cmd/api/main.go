package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/colefleming/vouch/internal/auth"
	"github.com/colefleming/vouch/internal/background"
	"github.com/colefleming/vouch/internal/config"
	"github.com/colefleming/vouch/internal/database"
	"github.com/colefleming/vouch/internal/handlers"
	middlewareCustom "github.com/colefleming/vouch/internal/middleware"
	"github.com/colefleming/vouch/internal/models"
	"github.com/colefleming/vouch/internal/notify"
	"github.com/colefleming/vouch/internal/repositories"
	"github.com/colefleming/vouch/internal/routes"
	"github.com/colefleming/vouch/internal/services"
	pkghttp "github.com/colefleming/vouch/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	requestRepo := repositories.NewAuthRequestRepository(db)
	attemptRepo := repositories.NewAuthAttemptRepository(db)
	auditRepo := repositories.NewAuditLogRepository(db)
	securityRepo := repositories.NewSecurityEventRepository(db)
	inviteRepo := repositories.NewInviteRepository(db)

	// Token manager
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)

	// Policy is static for now; services read it per call so a provider
	// with reload semantics can be swapped in without touching them
	policy := services.NewStaticPolicy(cfg.Auth)

	// Approver notifications
	var notifier services.Notifier
	if cfg.Notify.Enabled {
		sesNotifier, err := notify.NewSESNotifier(cfg.Notify.AWSRegion, cfg.Notify.FromAddress, cfg.Notify.BaseURL, logger)
		if err != nil {
			logger.Error("failed to initialize notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
	} else {
		notifier = notify.NewNoopNotifier(logger)
	}

	// Initialize services
	auditService := services.NewAuditService(auditRepo, securityRepo, logger)
	sessionService := services.NewSessionService(sessionRepo, userRepo, tokenManager, auditService, logger, cfg.Auth.SessionTTL)
	rateLimitService := services.NewRateLimitService(attemptRepo, auditService, policy, logger)
	loginService := services.NewLoginService(userRepo, requestRepo, sessionService, rateLimitService, auditService, notifier, policy, logger)
	approvalService := services.NewApprovalService(requestRepo, userRepo, sessionService, auditService, policy, logger)
	inviteService := services.NewInviteService(inviteRepo, userRepo, sessionService, auditService, policy, logger)

	// Initialize handlers
	ipConfig := pkghttp.DefaultIPConfig()
	authHandler := handlers.NewAuthHandler(loginService, inviteService, sessionService, ipConfig)
	approvalHandler := handlers.NewApprovalHandler(approvalService)
	inviteHandler := handlers.NewInviteHandler(inviteService)
	auditHandler := handlers.NewAuditHandler(auditService)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Background sweep
	sweepManager := background.NewSweepManager(loginService, sessionRepo, rateLimitService, logger, cfg.Auth.SweepInterval)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, approvalHandler, inviteHandler, auditHandler, sessionService, ipConfig)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start sweep task
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	go sweepManager.Start(sweepCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweepCancel()
	sweepManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_USERNAME is set.
// Someone has to hold admin before any invite can be minted.
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminUsername := os.Getenv("ADMIN_USERNAME")
	if adminUsername == "" {
		logger.Info("no ADMIN_USERNAME set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByUsername(ctx, adminUsername)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	admin := &models.User{
		Username: adminUsername,
		Roles:    []string{models.RoleAdmin},
	}
	if adminEmail := os.Getenv("ADMIN_EMAIL"); adminEmail != "" {
		admin.Email = &adminEmail
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created", slog.String("username", adminUsername))
	return nil
}
