// Package repotest provides an in-memory implementation of the repositories, for tests
// of the services and handlers that must not depend on a running PostgreSQL.
//
// All three collections live in one Store. Store.Transaction snapshots the collections
// and restores the snapshot when the callback fails, so multi-record operations are
// atomic the same way they are against PostgreSQL. FailOn injects a one-shot error
// into a named operation ("loans.Create", "documents.UpdateAvailability", ...).
package repotest

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mediatheque/internal/models"
)

type entry[T any] struct {
	seq    int64
	record T
}

type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	seq         int64
	subscribers map[uuid.UUID]entry[models.Subscriber]
	documents   map[uuid.UUID]entry[models.Document]
	loans       map[uuid.UUID]entry[models.Loan]
	faults      map[string]error
}

func NewStore() *Store {
	return &Store{
		subscribers: map[uuid.UUID]entry[models.Subscriber]{},
		documents:   map[uuid.UUID]entry[models.Document]{},
		loans:       map[uuid.UUID]entry[models.Loan]{},
		faults:      map[string]error{},
	}
}

// FailOn makes the next call of op return err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// ClearFaults drops every fault that has not fired yet.
func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.faults)
}

func (s *Store) fault(op string) error {
	if err, ok := s.faults[op]; ok {
		delete(s.faults, op)
		return err
	}
	return nil
}

// Transaction serializes callers and rolls every collection back when fn fails.
func (s *Store) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	subscribers, documents, loans := maps.Clone(s.subscribers), maps.Clone(s.documents), maps.Clone(s.loans)
	s.mu.Unlock()

	if err := fn(nil); err != nil {
		s.mu.Lock()
		s.subscribers, s.documents, s.loans = subscribers, documents, loans
		s.mu.Unlock()
		return err
	}
	return nil
}

// Loans returns every stored loan, bypassing the repository interfaces.
func (s *Store) Loans() []models.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sorted(s.loans, func(l models.Loan) time.Time { return l.LoanedAt.Time })
}

// Documents returns every stored document, bypassing the repository interfaces.
func (s *Store) Documents() []models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sorted(s.documents, func(d models.Document) time.Time { return d.CreatedAt.Time })
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func sorted[T any](m map[uuid.UUID]entry[T], at func(T) time.Time) []T {
	entries := make([]entry[T], 0, len(m))
	for _, e := range m {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		ti, tj := at(entries[i].record), at(entries[j].record)
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return entries[i].seq < entries[j].seq
	})
	out := make([]T, len(entries))
	for i, e := range entries {
		out[i] = e.record
	}
	return out
}

func filter[T any](records []T, keep func(T) bool) []T {
	out := []T{}
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
