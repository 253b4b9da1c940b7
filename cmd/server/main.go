package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"marketbrief/internal/auth"
	"marketbrief/internal/config"
	"marketbrief/internal/handler"
	"marketbrief/internal/market"
	"marketbrief/internal/middleware"
	"marketbrief/internal/repository/postgres"
	"marketbrief/internal/service"
	"marketbrief/internal/vapi"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	// Session verifier for the browser REST endpoints
	sessionVerifier, err := auth.NewSessionVerifier(cfg.SessionJWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create session verifier: %v", err)
	}
	defer func() { _ = sessionVerifier.Close() }()

	userTokens := auth.NewUserTokenService(cfg.UserTokenSecret)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)
	if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}
	logger.Info("database connected")

	// Repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	userRepo := postgres.NewUserRepository(repoConfig)
	convRepo := postgres.NewConversationRepository(repoConfig)
	msgRepo := postgres.NewMessageRepository(repoConfig)
	profileRepo := postgres.NewProfileRepository(repoConfig)
	watchlistRepo := postgres.NewWatchlistRepository(repoConfig)
	confirmationRepo := postgres.NewPendingConfirmationRepository(repoConfig)
	toolCallRepo := postgres.NewProcessedToolCallRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)

	// Market data: Finnhub behind a short read-through cache
	marketSource := market.NewCachedSource(
		market.NewClientWithConfig(cfg.FinnhubAPIKey, cfg.FinnhubBaseURL, market.DefaultTimeout))

	// Services
	conversationService := service.NewConversationService(convRepo, msgRepo, userRepo, txManager, logger)
	profileService := service.NewProfileService(profileRepo, userRepo, logger)
	watchlistService := service.NewWatchlistService(watchlistRepo, userRepo, logger)
	briefService := service.NewBriefService(marketSource, profileRepo, watchlistRepo, logger)

	// Webhook collaborators
	confirmations := vapi.NewConfirmationStore(confirmationRepo, logger)
	ledger := vapi.NewLedger(toolCallRepo, logger)
	resolver := vapi.NewUserResolver(userTokens, userRepo, logger)
	registry := vapi.NewRegistry(marketSource, briefService, watchlistService, profileService, confirmations, logger)

	// Handlers
	webhookHandler := handler.NewWebhookHandler(registry, resolver, confirmations, ledger, cfg, logger)
	conversationHandler := handler.NewConversationHandler(conversationService, logger)
	profileHandler := handler.NewProfileHandler(profileService, logger)
	watchlistHandler := handler.NewWatchlistHandler(watchlistService, logger)
	tokenHandler := handler.NewTokenHandler(userTokens, cfg, logger)
	healthHandler := handler.NewHealthHandler(pool)

	logger.Info("services initialized")

	// HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler.Check)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Voice platform webhook
	mux.HandleFunc("GET /webhook", webhookHandler.Liveness)
	mux.HandleFunc("POST /webhook", webhookHandler.Handle)

	// Conversation routes
	mux.HandleFunc("GET /conversations", conversationHandler.List)
	mux.HandleFunc("POST /conversations", conversationHandler.Create)
	mux.HandleFunc("POST /conversations/import", conversationHandler.Import) // Must come before {id} route
	mux.HandleFunc("GET /conversations/{id}", conversationHandler.Get)
	mux.HandleFunc("POST /conversations/{id}/messages", conversationHandler.AppendMessage)

	// Profile routes
	mux.HandleFunc("GET /profile", profileHandler.Get)
	mux.HandleFunc("POST /profile", profileHandler.Update)

	// Watchlist routes
	mux.HandleFunc("GET /watchlist", watchlistHandler.List)
	mux.HandleFunc("POST /watchlist", watchlistHandler.Add)
	mux.HandleFunc("DELETE /watchlist", watchlistHandler.Remove)

	// Voice session token routes
	mux.HandleFunc("GET /vapi/user-token", tokenHandler.UserToken)
	mux.HandleFunc("POST /vapi/call-token", tokenHandler.CallToken)

	// Build middleware chain
	var root http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → Routes
	root = middleware.AuthMiddleware(sessionVerifier)(root)
	root = middleware.Recovery(logger)(root)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			"x-webhook-secret", "x-mb-user-token", "x-from-browser", "x-allow-demo",
		},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
