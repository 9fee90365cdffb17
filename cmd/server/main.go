package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"agency_portal_echo/internal/bootstrap"
	"agency_portal_echo/internal/config"
	"agency_portal_echo/internal/handlers"
	"agency_portal_echo/internal/logging"
	"agency_portal_echo/internal/middleware"
	"agency_portal_echo/internal/services"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Firebase is optional in development: without it every protected
	// route answers 401 and login is unavailable.
	var (
		verifier middleware.SessionVerifier
		minter   handlers.SessionMinter
	)
	authClient, err := services.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		zap.S().Warnw("Firebase initialization failed, auth features disabled", "error", err)
	} else {
		verifier, minter = authClient, authClient
	}

	db, err := bootstrap.Database(cfg)
	if err != nil {
		zap.S().Fatalw("Failed to connect to database", "error", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		zap.S().Fatalw("Failed to run database migrations", "error", err)
	}

	cache, closeCache := bootstrap.Cache(cfg)
	defer closeCache()
	events, closeEvents := bootstrap.Events(cfg)
	defer closeEvents()

	duitku, midtrans, err := bootstrap.Gateways(cfg)
	if err != nil {
		zap.S().Fatalw("Invalid payment gateway configuration", "error", err)
	}

	payments := services.NewPaymentService(db, bootstrap.PaymentConfig(cfg), events, duitku, midtrans)
	sweeper := services.NewExpirationSweeper(db, events)
	users := services.NewUserService(db)
	methods := services.NewPaymentMethodService(db, cache)
	sessions := services.NewWhatsAppSessionService(db, bootstrap.WhatsAppGateway(cfg))
	bots := services.NewAIBotService(db)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.CustomErrorHandler
	e.Validator = middleware.NewRequestValidator()

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(echomw.Recover())

	e.Static("/static", "web/static")

	handlers.RegisterRoutes(e, handlers.Handlers{
		Auth: handlers.NewAuthHandler(minter, handlers.FirebaseWebConfig{
			APIKey:     cfg.FirebaseAPIKey,
			AuthDomain: cfg.FirebaseAuthDomain,
			ProjectID:  cfg.FirebaseProjectID,
		}, cfg.IsProduction()),
		Dashboard: handlers.NewDashboardHandler(payments, sessions),
		Payments:  handlers.NewPaymentHandler(payments),
		Callbacks: handlers.NewCallbackHandler(payments),
		Catalog: handlers.NewCatalogHandler(
			methods,
			services.NewBankDetailService(db, methods),
			services.NewPackageService(db),
		),
		Public:   handlers.NewPublicHandler(services.NewPortfolioService(db), services.NewLocaleService(cache)),
		Users:    handlers.NewUserHandler(users),
		WhatsApp: handlers.NewWhatsAppHandler(sessions, bots),
		Internal: handlers.NewInternalHandler(bots),
	}, handlers.Guards{
		Auth:     middleware.RequireAuth(verifier, users),
		Admin:    middleware.RequireAdmin(),
		Internal: middleware.RequireInternalKey(cfg.InternalAPIKey),
		Sweep:    middleware.OpportunisticSweep(sweeper, cfg.SweepMinInterval),
	})

	go func() {
		zap.S().Infow("Server starting", "port", cfg.Port, "env", cfg.Env)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Fatalw("Server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	zap.S().Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zap.S().Errorw("Graceful shutdown failed", "error", err)
	}
}
