package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"pgregory.net/rapid"

	"mediatheque/internal/models"
	"mediatheque/internal/repositories/repotest"
)

// ledgerMachine drives random sequences of ledger operations and checks after each step
// that a document is unavailable exactly when an active loan references it.
type ledgerMachine struct {
	store  *repotest.Store
	clock  *fakeClock
	ledger LoanLedger

	documents   []uuid.UUID
	subscribers []uuid.UUID
	loans       []uuid.UUID
}

func newLedgerMachine(t *rapid.T) *ledgerMachine {
	store := repotest.NewStore()
	clock := &fakeClock{now: epoch}
	m := &ledgerMachine{
		store:  store,
		clock:  clock,
		ledger: NewLoanLedger(store, store.SubscriberRepo(), store.DocumentRepo(), store.LoanRepo(), WithClock(clock.Now)),
	}
	catalog := NewCatalog(store.DocumentRepo(), store.LoanRepo())
	n := rapid.IntRange(1, 4).Draw(t, "documents")
	for i := 0; i < n; i++ {
		id, err := catalog.CreateDocument(context.Background(), &models.Document{Title: "t", Author: "a", Type: "book"})
		if err != nil {
			t.Fatalf("create document: %v", err)
		}
		m.documents = append(m.documents, id)
	}
	for i := 0; i < 3; i++ {
		m.subscribers = append(m.subscribers, uuid.New())
	}
	return m
}

func (m *ledgerMachine) createLoan(t *rapid.T) {
	doc := rapid.SampledFrom(m.documents).Draw(t, "document")
	sub := rapid.SampledFrom(m.subscribers).Draw(t, "subscriber")
	wasAvailable := m.available(doc)

	loan, err := m.ledger.CreateLoan(context.Background(), sub, doc)
	switch {
	case wasAvailable && err != nil:
		t.Fatalf("loan of available document failed: %v", err)
	case !wasAvailable && !errors.Is(err, ErrNotLoanable):
		t.Fatalf("loan of unavailable document: got %v, want ErrNotLoanable", err)
	case err == nil:
		m.loans = append(m.loans, loan.ID)
	}
}

func (m *ledgerMachine) returnLoan(t *rapid.T) {
	if len(m.loans) == 0 {
		t.Skip("no loans")
	}
	id := rapid.SampledFrom(m.loans).Draw(t, "loan")
	if _, err := m.ledger.ReturnLoan(context.Background(), id); err != nil {
		t.Fatalf("return loan: %v", err)
	}
}

func (m *ledgerMachine) deleteLoan(t *rapid.T) {
	if len(m.loans) == 0 {
		t.Skip("no loans")
	}
	i := rapid.IntRange(0, len(m.loans)-1).Draw(t, "loan index")
	if err := m.ledger.DeleteLoan(context.Background(), m.loans[i]); err != nil {
		t.Fatalf("delete loan: %v", err)
	}
	m.loans = append(m.loans[:i], m.loans[i+1:]...)
}

func (m *ledgerMachine) failingCreate(t *rapid.T) {
	doc := rapid.SampledFrom(m.documents).Draw(t, "document")
	op := rapid.SampledFrom([]string{"loans.Create", "documents.UpdateAvailability"}).Draw(t, "failing op")
	m.store.FailOn(op, errors.New("injected"))
	if loan, err := m.ledger.CreateLoan(context.Background(), uuid.New(), doc); err == nil {
		m.loans = append(m.loans, loan.ID)
	}
	// Drop the fault when the call never reached it.
	m.store.ClearFaults()
}

func (m *ledgerMachine) advance(t *rapid.T) {
	m.clock.Advance(time.Duration(rapid.IntRange(1, 20*24).Draw(t, "hours")) * time.Hour)
}

func (m *ledgerMachine) available(id uuid.UUID) bool {
	for _, d := range m.store.Documents() {
		if d.ID == id {
			return d.Available
		}
	}
	return false
}

func (m *ledgerMachine) check(t *rapid.T) {
	active := map[uuid.UUID]int{}
	for _, l := range m.store.Loans() {
		if l.Status == models.LoanStatusActive {
			active[l.DocumentID]++
		}
	}
	for _, d := range m.store.Documents() {
		if active[d.ID] > 1 {
			t.Fatalf("document %s has %d active loans", d.ID, active[d.ID])
		}
		if d.Available == (active[d.ID] == 1) {
			t.Fatalf("document %s: available=%t with %d active loans", d.ID, d.Available, active[d.ID])
		}
	}
}

func TestLoanLedger_AvailabilityMatchesActiveLoans(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := newLedgerMachine(t)
		t.Repeat(map[string]func(*rapid.T){
			"create":         m.createLoan,
			"return":         m.returnLoan,
			"delete":         m.deleteLoan,
			"failing create": m.failingCreate,
			"advance":        m.advance,
			"":               m.check,
		})
	})
}

func TestListOverdueLoans_MatchesPredicate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := newLedgerMachine(t)
		ctx := context.Background()

		steps := rapid.IntRange(1, 12).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			m.advance(t)
			if rapid.Bool().Draw(t, "create") {
				m.createLoan(t)
			} else if len(m.loans) > 0 {
				m.returnLoan(t)
			}
		}
		m.advance(t)

		overdue, err := m.ledger.ListOverdueLoans(ctx)
		if err != nil {
			t.Fatalf("list overdue: %v", err)
		}
		got := map[uuid.UUID]bool{}
		for _, l := range overdue {
			got[l.ID] = true
		}
		now := m.clock.Now()
		for _, l := range m.store.Loans() {
			want := l.Status == models.LoanStatusActive && l.DueAt.Before(now)
			if got[l.ID] != want {
				t.Fatalf("loan %s (status %s, due %s, now %s): overdue=%t, want %t",
					l.ID, l.Status, l.DueAt, models.NewTimestamp(now), got[l.ID], want)
			}
		}
	})
}
