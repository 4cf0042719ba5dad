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

	"github.com/gin-gonic/gin"

	"mediatheque/internal/config"
	"mediatheque/internal/database"
	"mediatheque/internal/handlers"
	"mediatheque/internal/repositories"
	"mediatheque/internal/services"
	"mediatheque/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}

	db, err := database.Open(ctx, cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		log.Printf("[INFO] schema migrated")
	}

	subscriberRepo := repositories.NewSubscriberRepository(db)
	documentRepo := repositories.NewDocumentRepository(db)
	loanRepo := repositories.NewLoanRepository(db)

	catalog := services.NewCatalog(documentRepo, loanRepo)
	directory := services.NewSubscriberDirectory(subscriberRepo, loanRepo)
	ledger := services.NewLoanLedger(repositories.NewTransactor(db), subscriberRepo, documentRepo, loanRepo,
		services.WithLoanPeriod(cfg.LoanPeriod))
	stats := services.NewStatsAggregator(catalog, directory, ledger)

	router := gin.Default()

	handlers.RegisterRoutes(router, handlers.NewLibraryHandler(catalog, directory, ledger, stats),
		handlers.CORS(cfg.AllowedOrigins),
		handlers.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] server shutdown: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("[ERROR] tracing shutdown: %v", err)
	}
	if err := database.Close(db); err != nil {
		log.Printf("[ERROR] database close: %v", err)
	}
}
