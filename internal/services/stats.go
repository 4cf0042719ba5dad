package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"mediatheque/internal/models"
)

// StatsAggregator produces the library-wide counters. It only reads.
type StatsAggregator interface {
	Stats(ctx context.Context) (*models.Stats, error)
}

type statsAggregator struct {
	catalog   Catalog
	directory SubscriberDirectory
	ledger    LoanLedger
}

func NewStatsAggregator(catalog Catalog, directory SubscriberDirectory, ledger LoanLedger) StatsAggregator {
	return &statsAggregator{catalog: catalog, directory: directory, ledger: ledger}
}

// Stats runs the six counts concurrently. Each count is read on its own, so the result is
// not a point-in-time snapshot.
func (s *statsAggregator) Stats(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats
	g, ctx := errgroup.WithContext(ctx)

	count := func(dst *int64, what string, fn func(context.Context) (int64, error)) {
		g.Go(func() error {
			n, err := fn(ctx)
			if err != nil {
				return fmt.Errorf("count %s: %w", what, err)
			}
			*dst = n
			return nil
		})
	}
	count(&stats.TotalDocuments, "documents", s.catalog.CountTotal)
	count(&stats.AvailableDocuments, "available documents", s.catalog.CountAvailable)
	count(&stats.LoanedDocuments, "loaned documents", s.catalog.CountLoaned)
	count(&stats.TotalSubscribers, "subscribers", s.directory.CountSubscribers)
	count(&stats.ActiveLoans, "active loans", s.ledger.CountActiveLoans)
	count(&stats.OverdueLoans, "overdue loans", s.ledger.CountOverdueLoans)

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}
