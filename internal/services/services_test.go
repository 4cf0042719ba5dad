package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"mediatheque/internal/models"
	"mediatheque/internal/repositories/repotest"
)

var epoch = time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)

// fakeClock is a settable time source for the ledger.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	store     *repotest.Store
	clock     *fakeClock
	catalog   Catalog
	directory SubscriberDirectory
	ledger    LoanLedger
	stats     StatsAggregator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repotest.NewStore()
	clock := &fakeClock{now: epoch}
	f := &fixture{
		store:     store,
		clock:     clock,
		catalog:   NewCatalog(store.DocumentRepo(), store.LoanRepo()),
		directory: NewSubscriberDirectory(store.SubscriberRepo(), store.LoanRepo()),
		ledger: NewLoanLedger(store, store.SubscriberRepo(), store.DocumentRepo(), store.LoanRepo(),
			WithClock(clock.Now)),
	}
	f.stats = NewStatsAggregator(f.catalog, f.directory, f.ledger)
	return f
}

func (f *fixture) subscriber(t *testing.T, name string) uuid.UUID {
	t.Helper()
	id, err := f.directory.RegisterSubscriber(context.Background(), &models.Subscriber{
		Name:      name,
		FirstName: "Test",
		Email:     name + "@example.org",
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) document(t *testing.T, title, docType string) uuid.UUID {
	t.Helper()
	id, err := f.catalog.CreateDocument(context.Background(), &models.Document{
		Title:  title,
		Author: "Author of " + title,
		Type:   docType,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) getDocument(t *testing.T, id uuid.UUID) *models.Document {
	t.Helper()
	doc, err := f.catalog.GetDocument(context.Background(), id)
	require.NoError(t, err)
	return doc
}

func (f *fixture) getSubscriber(t *testing.T, id uuid.UUID) *models.Subscriber {
	t.Helper()
	sub, err := f.directory.GetSubscriber(context.Background(), id)
	require.NoError(t, err)
	return sub
}
