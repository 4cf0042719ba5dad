package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediatheque/internal/models"
)

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stats, err := f.stats.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.Stats{}, stats)

	s1 := f.subscriber(t, "martin")
	s2 := f.subscriber(t, "durand")
	d1 := f.document(t, "Dune", "book")
	d2 := f.document(t, "Alien", "dvd")
	f.document(t, "Solaris", "book")

	_, err = f.ledger.CreateLoan(ctx, s1, d1)
	require.NoError(t, err)
	f.clock.Advance(5 * 24 * time.Hour)
	_, err = f.ledger.CreateLoan(ctx, s2, d2)
	require.NoError(t, err)
	f.clock.Advance(10 * 24 * time.Hour)

	stats, err = f.stats.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.Stats{
		TotalDocuments:     3,
		AvailableDocuments: 1,
		LoanedDocuments:    2,
		TotalSubscribers:   2,
		ActiveLoans:        2,
		OverdueLoans:       1,
	}, stats)
}

func TestStats_PropagatesErrors(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	f.store.FailOn("loans.CountOverdue", boom)

	_, err := f.stats.Stats(context.Background())
	assert.ErrorIs(t, err, boom)
}
