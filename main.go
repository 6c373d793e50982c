package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"licensegate/config"
	"licensegate/database"
	_ "licensegate/docs"
	"licensegate/handlers"
	"licensegate/logger"
	"licensegate/metrics"
	"licensegate/middleware"
	"licensegate/scheduler"
	"licensegate/services"
	"licensegate/utils"

	httpSwagger "github.com/swaggo/http-swagger"
)

//go:generate swag init -g main.go -o docs

// @title licensegate API
// @version 1.0
// @description License issuance, device activation and verification service

// @contact.name API Support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token. Format: Bearer {token}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration: %v", err)
	}

	logConfig := logger.Config{
		Level:    logger.ParseLevel(cfg.LogLevel),
		LogDir:   cfg.LogDir,
		MaxSize:  10 * 1024 * 1024,
		MaxAge:   7,
		UseColor: cfg.LogColor,
	}
	if err := logger.Initialize(logConfig); err != nil {
		logger.Fatal("Failed to initialize logger: %v", err)
	}

	logger.WithFields(map[string]interface{}{
		"env":       cfg.AppEnv,
		"addr":      cfg.Addr,
		"db_driver": cfg.DBDriver,
	}).Info("licensegate starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, database.Options{
		Driver:   cfg.DBDriver,
		DSN:      cfg.DBURL,
		Password: cfg.DBPassword,
	})
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Services
	sqlExecutor := services.NewSQLExecutor(store)
	licenseService := services.NewLicenseService(sqlExecutor, cfg.KeyPrefix)
	activityLog := services.NewActivityLog(sqlExecutor)
	activationService := services.NewActivationService(sqlExecutor, licenseService, activityLog)
	adminService := services.NewAdminService(sqlExecutor)

	if cfg.WebhookSecret == "" {
		logger.Warn("WEBHOOK_SECRET is not set; /generate will refuse order events")
	}
	verifier := services.NewSignatureVerifier(cfg.WebhookSecret)

	writer := services.NewOrderWriter(services.StoreOptions{
		BaseURL:        cfg.StoreURL,
		ConsumerKey:    cfg.StoreConsumerKey,
		ConsumerSecret: cfg.StoreConsumerSecret,
		Timeout:        cfg.StoreTimeout,
	})
	if !cfg.WriteBackEnabled() {
		logger.Warn("Store API is not configured; issued keys will not be written back to orders")
	}
	issuer := services.NewOrderIssuer(licenseService, writer, services.PlanResolver{
		DefaultPlan:       cfg.DefaultPlan,
		DefaultMaxDevices: cfg.DefaultMaxDevices,
		PlanDevices:       cfg.PlanDevices,
		PaidStatuses:      cfg.PaidStatuses,
	})

	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if tokens == nil {
		logger.Warn("JWT_SECRET is not set; admin API is disabled")
	} else if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		if _, err := adminService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			logger.Fatal("Failed to seed admin account: %v", err)
		}
	}

	m := metrics.New()
	limiter := middleware.NewRateLimiter(cfg.RPS, cfg.Burst)
	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		logger.Fatal("Invalid TRUSTED_PROXIES: %v", err)
	}
	limiter.TrustProxies(proxies)

	jobs := scheduler.New(
		scheduler.Job{Name: "license_gauges", Interval: cfg.MetricsInterval, Run: scheduler.RefreshLicenseGauges(licenseService, m)},
		scheduler.Job{Name: "rate_limit_prune", Interval: 5 * time.Minute, Run: scheduler.PruneRateLimiter(limiter)},
	)
	jobs.Start(ctx)

	// Handlers
	production := cfg.IsProduction()
	clientHandler := handlers.NewClientHandler(activationService, m, production)
	webhookHandler := handlers.NewWebhookHandler(verifier, issuer, m, production)
	adminHandler := handlers.NewAdminHandler(adminService, licenseService, activationService, activityLog, tokens, production)
	healthHandler := handlers.NewHealthHandler(store)

	mux := http.NewServeMux()

	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", middleware.ChainMiddleware(healthHandler.Health, middleware.SetJSONHeader))

	// Client endpoints
	client := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.ChainMiddleware(h,
			middleware.LoggingMiddleware,
			middleware.CORSMiddleware,
			limiter.Middleware,
			middleware.SetJSONHeader,
		)
	}
	mux.HandleFunc("/activate", client(clientHandler.Activate))
	mux.HandleFunc("/deactivate", client(clientHandler.Deactivate))
	mux.HandleFunc("/verify", client(clientHandler.Verify))

	// Order webhook
	mux.HandleFunc("/generate", middleware.ChainMiddleware(webhookHandler.Generate,
		middleware.LoggingMiddleware,
		middleware.SetJSONHeader,
	))

	// Admin API
	mux.HandleFunc("/api/admin/login", middleware.ChainMiddleware(adminHandler.Login,
		middleware.LoggingMiddleware,
		middleware.CORSMiddleware,
		limiter.Middleware,
		middleware.SetJSONHeader,
	))
	admin := func(h http.HandlerFunc, extra ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
		chain := []func(http.HandlerFunc) http.HandlerFunc{
			middleware.LoggingMiddleware,
			middleware.CORSMiddleware,
			middleware.AuthMiddleware(tokens),
		}
		chain = append(chain, extra...)
		chain = append(chain, middleware.SetJSONHeader)
		return middleware.ChainMiddleware(h, chain...)
	}
	mux.HandleFunc("/api/admin/licenses", admin(adminHandler.Licenses))
	mux.HandleFunc("/api/admin/licenses/revoke", admin(adminHandler.Revoke,
		middleware.RequireRoles(adminService, services.RoleSuperAdmin, services.RoleAdmin)))
	mux.HandleFunc("/api/admin/devices/logs", admin(adminHandler.DeviceLogs))

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Fatal("Server failed to start: %v", err)
		}
	case <-ctx.Done():
		logger.Warn("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
	stop()
	jobs.Wait()
	logger.Info("Server stopped")
}
