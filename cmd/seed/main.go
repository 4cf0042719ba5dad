// Command seed loads subscribers, documents and loans from a JSON or YAML fixture file.
//
// Usage:
//
//	DATABASE_URL=postgres://... go run ./cmd/seed -file fixtures.json [-migrate]
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"mediatheque/internal/config"
	"mediatheque/internal/database"
	"mediatheque/internal/repositories"
	"mediatheque/internal/services"
)

func main() {
	file := flag.String("file", "", "fixture file (.json, .yaml or .yml)")
	migrate := flag.Bool("migrate", false, "migrate the schema before seeding")
	flag.Parse()

	if *file == "" {
		log.Fatal("Usage: seed -file <fixture> [-migrate]")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	fh, err := os.Open(*file)
	if err != nil {
		log.Fatalf("failed to open fixture: %v", err)
	}
	defer fh.Close()

	f, err := decodeFixture(*file, fh)
	if err != nil {
		log.Fatalf("invalid fixture: %v", err)
	}

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close(db)

	if *migrate || cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
	}

	subscriberRepo := repositories.NewSubscriberRepository(db)
	documentRepo := repositories.NewDocumentRepository(db)
	loanRepo := repositories.NewLoanRepository(db)

	res, err := f.apply(ctx,
		services.NewSubscriberDirectory(subscriberRepo, loanRepo),
		services.NewCatalog(documentRepo, loanRepo),
		services.NewLoanLedger(repositories.NewTransactor(db), subscriberRepo, documentRepo, loanRepo,
			services.WithLoanPeriod(cfg.LoanPeriod)),
	)
	if err != nil {
		log.Fatalf("seed failed after %d subscribers, %d documents, %d loans: %v", res.Subscribers, res.Documents, res.Loans, err)
	}
	log.Printf("[INFO] seed: imported %d subscribers, %d documents, %d loans", res.Subscribers, res.Documents, res.Loans)
}
