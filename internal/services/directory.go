package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mediatheque/internal/models"
	"mediatheque/internal/repositories"
)

// SubscriberDirectory manages library members. Update and delete on a missing id affect
// zero rows and do not fail.
type SubscriberDirectory interface {
	RegisterSubscriber(ctx context.Context, subscriber *models.Subscriber) (uuid.UUID, error)
	ListSubscribers(ctx context.Context) ([]models.Subscriber, error)
	GetSubscriber(ctx context.Context, id uuid.UUID) (*models.Subscriber, error)
	UpdateSubscriber(ctx context.Context, id uuid.UUID, patch models.SubscriberPatch) (int64, error)
	DeleteSubscriber(ctx context.Context, id uuid.UUID) (int64, error)
	CountSubscribers(ctx context.Context) (int64, error)
}

type subscriberDirectory struct {
	subscriberRepo repositories.SubscriberRepository
	loanRepo       repositories.LoanRepository
	now            func() time.Time
}

func NewSubscriberDirectory(subscriberRepo repositories.SubscriberRepository, loanRepo repositories.LoanRepository) SubscriberDirectory {
	return &subscriberDirectory{
		subscriberRepo: subscriberRepo,
		loanRepo:       loanRepo,
		now:            time.Now,
	}
}

// RegisterSubscriber stores a new subscriber stamped with the registration time.
func (s *subscriberDirectory) RegisterSubscriber(ctx context.Context, subscriber *models.Subscriber) (uuid.UUID, error) {
	subscriber.ID = uuid.New()
	subscriber.RegisteredAt = models.NewTimestamp(s.now())
	subscriber.ActiveLoans = []string{}
	subscriber.LoanHistory = []string{}

	if err := s.subscriberRepo.Create(ctx, nil, subscriber); err != nil {
		log.Printf("[ERROR] RegisterSubscriber: failed to create subscriber %s %s: %v", subscriber.FirstName, subscriber.Name, err)
		return uuid.Nil, fmt.Errorf("create subscriber: %w", err)
	}
	log.Printf("[INFO] RegisterSubscriber: registered subscriber %s (id=%s)", subscriber.Email, subscriber.ID)
	return subscriber.ID, nil
}

func (s *subscriberDirectory) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	subscribers, err := s.subscriberRepo.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	return s.withLoans(ctx, subscribers)
}

func (s *subscriberDirectory) GetSubscriber(ctx context.Context, id uuid.UUID) (*models.Subscriber, error) {
	subscriber, err := s.subscriberRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriberNotFound
		}
		return nil, err
	}
	subscribers, err := s.withLoans(ctx, []models.Subscriber{*subscriber})
	if err != nil {
		return nil, err
	}
	return &subscribers[0], nil
}

func (s *subscriberDirectory) UpdateSubscriber(ctx context.Context, id uuid.UUID, patch models.SubscriberPatch) (int64, error) {
	n, err := s.subscriberRepo.Update(ctx, nil, id, patch)
	if err != nil {
		log.Printf("[ERROR] UpdateSubscriber: failed to update subscriber %s: %v", id, err)
		return 0, err
	}
	return n, nil
}

func (s *subscriberDirectory) DeleteSubscriber(ctx context.Context, id uuid.UUID) (int64, error) {
	n, err := s.subscriberRepo.Delete(ctx, nil, id)
	if err != nil {
		log.Printf("[ERROR] DeleteSubscriber: failed to delete subscriber %s: %v", id, err)
		return 0, err
	}
	if n > 0 {
		log.Printf("[INFO] DeleteSubscriber: deleted subscriber %s", id)
	}
	return n, nil
}

func (s *subscriberDirectory) CountSubscribers(ctx context.Context) (int64, error) {
	return s.subscriberRepo.Count(ctx, nil)
}

// withLoans fills the active and historical loan lists from the loans table.
func (s *subscriberDirectory) withLoans(ctx context.Context, subscribers []models.Subscriber) ([]models.Subscriber, error) {
	ids := make([]uuid.UUID, len(subscribers))
	for i := range subscribers {
		ids[i] = subscribers[i].ID
	}
	refs, err := s.loanRepo.RefsBySubscribers(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	bySubscriber := func(r models.LoanRef) uuid.UUID { return r.SubscriberID }
	history := groupLoanIDs(refs, bySubscriber, nil)
	active := groupLoanIDs(refs, bySubscriber, func(r models.LoanRef) bool { return r.Status == models.LoanStatusActive })

	out := make([]models.Subscriber, len(subscribers))
	for i, sub := range subscribers {
		sub.ActiveLoans = nonNil(active[sub.ID])
		sub.LoanHistory = nonNil(history[sub.ID])
		out[i] = sub
	}
	return out, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
