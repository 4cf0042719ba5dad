package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediatheque/internal/models"
)

func TestRegisterSubscriber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.directory.RegisterSubscriber(ctx, &models.Subscriber{
		Name:        "Martin",
		FirstName:   "Claire",
		ActiveLoans: []string{"bogus"},
	})
	require.NoError(t, err)

	sub := f.getSubscriber(t, id)
	assert.Equal(t, "Martin", sub.Name)
	assert.False(t, sub.RegisteredAt.IsZero())
	assert.Empty(t, sub.ActiveLoans)
	assert.Empty(t, sub.LoanHistory)
	assert.NotNil(t, sub.ActiveLoans)
	assert.NotNil(t, sub.LoanHistory)
}

func TestSubscriberDirectory_UpdateDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.subscriber(t, "martin")

	n, err := f.directory.UpdateSubscriber(ctx, id, models.SubscriberPatch{Phone: strPtr("0102030405")})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	sub := f.getSubscriber(t, id)
	assert.Equal(t, "0102030405", sub.Phone)
	assert.Equal(t, "martin", sub.Name)

	n, err = f.directory.UpdateSubscriber(ctx, uuid.New(), models.SubscriberPatch{Phone: strPtr("x")})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.directory.DeleteSubscriber(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.directory.DeleteSubscriber(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = f.directory.GetSubscriber(ctx, id)
	assert.ErrorIs(t, err, ErrSubscriberNotFound)

	count, err := f.directory.CountSubscribers(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestListSubscribers_DerivedLoanLists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	martin := f.subscriber(t, "martin")
	durand := f.subscriber(t, "durand")

	first, err := f.ledger.CreateLoan(ctx, martin, f.document(t, "Dune", "book"))
	require.NoError(t, err)
	f.clock.Advance(1)
	second, err := f.ledger.CreateLoan(ctx, martin, f.document(t, "Alien", "dvd"))
	require.NoError(t, err)
	_, err = f.ledger.ReturnLoan(ctx, first.ID)
	require.NoError(t, err)

	subs, err := f.directory.ListSubscribers(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	byID := map[uuid.UUID]models.Subscriber{subs[0].ID: subs[0], subs[1].ID: subs[1]}
	assert.Equal(t, []string{second.ID.String()}, byID[martin].ActiveLoans)
	assert.Equal(t, []string{first.ID.String(), second.ID.String()}, byID[martin].LoanHistory)
	assert.Empty(t, byID[durand].ActiveLoans)
	assert.Empty(t, byID[durand].LoanHistory)
}

func TestSubscriberDirectory_StoreErrors(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")

	f.store.FailOn("subscribers.Create", boom)
	_, err := f.directory.RegisterSubscriber(context.Background(), &models.Subscriber{Name: "x"})
	assert.ErrorIs(t, err, boom)

	f.store.FailOn("loans.RefsBySubscribers", boom)
	_, err = f.directory.ListSubscribers(context.Background())
	assert.ErrorIs(t, err, boom)
}
