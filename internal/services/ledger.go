package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"mediatheque/internal/models"
	"mediatheque/internal/repositories"
)

// DefaultLoanPeriod is how long a subscriber may keep a document.
const DefaultLoanPeriod = 14 * 24 * time.Hour

const instrumentationName = "mediatheque/internal/services"

// LoanLedger owns the loan lifecycle. It is the only component that writes to more than
// one collection per operation; every such write sequence runs in one store transaction.
type LoanLedger interface {
	CreateLoan(ctx context.Context, subscriberID, documentID uuid.UUID) (*models.Loan, error)
	ReturnLoan(ctx context.Context, loanID uuid.UUID) (*models.Loan, error)
	DeleteLoan(ctx context.Context, loanID uuid.UUID) error

	ListLoans(ctx context.Context) ([]models.LoanView, error)
	ListSubscriberLoans(ctx context.Context, subscriberID uuid.UUID) ([]models.LoanView, error)
	ListOverdueLoans(ctx context.Context) ([]models.Loan, error)

	CountActiveLoans(ctx context.Context) (int64, error)
	CountOverdueLoans(ctx context.Context) (int64, error)
}

// LedgerOption configures a LoanLedger.
type LedgerOption func(*loanLedger)

// WithClock replaces time.Now as the ledger's source of the current time.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *loanLedger) {
		l.now = now
	}
}

// WithLoanPeriod sets the time between a loan's creation and its due date.
func WithLoanPeriod(period time.Duration) LedgerOption {
	return func(l *loanLedger) {
		if period > 0 {
			l.loanPeriod = period
		}
	}
}

type loanLedger struct {
	tx             repositories.Transactor
	subscriberRepo repositories.SubscriberRepository
	documentRepo   repositories.DocumentRepository
	loanRepo       repositories.LoanRepository

	now        func() time.Time
	loanPeriod time.Duration

	tracer        trace.Tracer
	loansCreated  metric.Int64Counter
	loansReturned metric.Int64Counter
	loansDeleted  metric.Int64Counter
}

func NewLoanLedger(
	tx repositories.Transactor,
	subscriberRepo repositories.SubscriberRepository,
	documentRepo repositories.DocumentRepository,
	loanRepo repositories.LoanRepository,
	opts ...LedgerOption,
) LoanLedger {
	meter := otel.Meter(instrumentationName)
	l := &loanLedger{
		tx:             tx,
		subscriberRepo: subscriberRepo,
		documentRepo:   documentRepo,
		loanRepo:       loanRepo,
		now:            time.Now,
		loanPeriod:     DefaultLoanPeriod,
		tracer:         otel.Tracer(instrumentationName),
		loansCreated:   counter(meter, "library.loans.created", "Loans created"),
		loansReturned:  counter(meter, "library.loans.returned", "Loans returned"),
		loansDeleted:   counter(meter, "library.loans.deleted", "Loans deleted"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateLoan lends a document to a subscriber.
//
// Inside one transaction the document row is locked, checked for availability, a loan is
// inserted with status active and due date now + loan period, and the document is marked
// unavailable. The subscriber is not looked up: a loan may reference a subscriber that
// does not exist.
func (l *loanLedger) CreateLoan(ctx context.Context, subscriberID, documentID uuid.UUID) (*models.Loan, error) {
	ctx, span := l.tracer.Start(ctx, "LoanLedger.CreateLoan", trace.WithAttributes(
		attribute.String("subscriber.id", subscriberID.String()),
		attribute.String("document.id", documentID.String()),
	))
	defer span.End()

	var created *models.Loan
	err := l.tx.Transaction(ctx, func(tx *gorm.DB) error {
		document, err := l.documentRepo.GetByIDForUpdate(ctx, tx, documentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: document %s does not exist", ErrNotLoanable, documentID)
			}
			return err
		}
		if !document.Available {
			return fmt.Errorf("%w: document %s is already on loan", ErrNotLoanable, documentID)
		}

		now := l.now().UTC()
		loan := &models.Loan{
			ID:           uuid.New(),
			SubscriberID: subscriberID,
			DocumentID:   documentID,
			LoanedAt:     models.NewTimestamp(now),
			DueAt:        models.NewTimestamp(now.Add(l.loanPeriod)),
			Status:       models.LoanStatusActive,
		}
		if err := l.loanRepo.Create(ctx, tx, loan); err != nil {
			log.Printf("[ERROR] CreateLoan: failed to insert loan for document %s: %v", documentID, err)
			return err
		}
		if _, err := l.documentRepo.UpdateAvailability(ctx, tx, documentID, false); err != nil {
			log.Printf("[ERROR] CreateLoan: failed to mark document %s unavailable: %v", documentID, err)
			return err
		}
		created = loan
		return nil
	})
	if err != nil {
		failSpan(span, err)
		if errors.Is(err, ErrNotLoanable) {
			log.Printf("[WARN] CreateLoan: %v (subscriber %s)", err, subscriberID)
		} else {
			log.Printf("[ERROR] CreateLoan: transaction failed for document %s / subscriber %s: %v", documentID, subscriberID, err)
		}
		return nil, err
	}

	l.loansCreated.Add(ctx, 1)
	span.SetAttributes(attribute.String("loan.id", created.ID.String()))
	log.Printf("[INFO] CreateLoan: loan %s created for subscriber %s / document %s, due %s",
		created.ID, subscriberID, documentID, created.DueAt.Format(time.DateOnly))
	return created, nil
}

// ReturnLoan records the return of a loan and makes its document available again.
//
// Returning an already returned loan re-stamps the return time without error, but leaves
// the document alone: it may have been lent again since.
func (l *loanLedger) ReturnLoan(ctx context.Context, loanID uuid.UUID) (*models.Loan, error) {
	ctx, span := l.tracer.Start(ctx, "LoanLedger.ReturnLoan", trace.WithAttributes(
		attribute.String("loan.id", loanID.String()),
	))
	defer span.End()

	var returned *models.Loan
	err := l.tx.Transaction(ctx, func(tx *gorm.DB) error {
		loan, err := l.loanRepo.GetByIDForUpdate(ctx, tx, loanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLoanNotFound
			}
			return err
		}
		wasActive := loan.Status == models.LoanStatusActive

		now := l.now().UTC()
		if _, err := l.loanRepo.MarkReturned(ctx, tx, loan.ID, now); err != nil {
			log.Printf("[ERROR] ReturnLoan: failed to mark loan %s returned: %v", loanID, err)
			return err
		}
		if wasActive {
			if _, err := l.documentRepo.UpdateAvailability(ctx, tx, loan.DocumentID, true); err != nil {
				log.Printf("[ERROR] ReturnLoan: failed to mark document %s available: %v", loan.DocumentID, err)
				return err
			}
		} else {
			log.Printf("[WARN] ReturnLoan: loan %s was already returned, re-stamping return time", loanID)
		}

		ts := models.NewTimestamp(now)
		loan.ReturnedAt = &ts
		loan.Status = models.LoanStatusReturned
		returned = loan
		return nil
	})
	if err != nil {
		failSpan(span, err)
		logLoanFailure("ReturnLoan", loanID, err)
		return nil, err
	}

	l.loansReturned.Add(ctx, 1)
	log.Printf("[INFO] ReturnLoan: loan %s returned (document %s, subscriber %s)", loanID, returned.DocumentID, returned.SubscriberID)
	return returned, nil
}

// DeleteLoan removes a loan record. Deleting a loan that is still active also makes its
// document available again, so no document stays blocked by a loan that no longer exists.
func (l *loanLedger) DeleteLoan(ctx context.Context, loanID uuid.UUID) error {
	ctx, span := l.tracer.Start(ctx, "LoanLedger.DeleteLoan", trace.WithAttributes(
		attribute.String("loan.id", loanID.String()),
	))
	defer span.End()

	err := l.tx.Transaction(ctx, func(tx *gorm.DB) error {
		loan, err := l.loanRepo.GetByIDForUpdate(ctx, tx, loanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLoanNotFound
			}
			return err
		}
		if loan.Status == models.LoanStatusActive {
			if _, err := l.documentRepo.UpdateAvailability(ctx, tx, loan.DocumentID, true); err != nil {
				log.Printf("[ERROR] DeleteLoan: failed to release document %s: %v", loan.DocumentID, err)
				return err
			}
		}
		if _, err := l.loanRepo.Delete(ctx, tx, loan.ID); err != nil {
			log.Printf("[ERROR] DeleteLoan: failed to delete loan %s: %v", loanID, err)
			return err
		}
		return nil
	})
	if err != nil {
		failSpan(span, err)
		logLoanFailure("DeleteLoan", loanID, err)
		return err
	}

	l.loansDeleted.Add(ctx, 1)
	log.Printf("[INFO] DeleteLoan: loan %s deleted", loanID)
	return nil
}

// ListLoans returns every loan with live snapshots of its subscriber and document.
func (l *loanLedger) ListLoans(ctx context.Context) ([]models.LoanView, error) {
	loans, err := l.loanRepo.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	return l.enrich(ctx, loans)
}

func (l *loanLedger) ListSubscriberLoans(ctx context.Context, subscriberID uuid.UUID) ([]models.LoanView, error) {
	loans, err := l.loanRepo.ListBySubscriber(ctx, nil, subscriberID)
	if err != nil {
		return nil, err
	}
	return l.enrich(ctx, loans)
}

// ListOverdueLoans returns the active loans whose due date is before now.
func (l *loanLedger) ListOverdueLoans(ctx context.Context) ([]models.Loan, error) {
	loans, err := l.loanRepo.ListOverdue(ctx, nil, l.now())
	if err != nil {
		return nil, err
	}
	if loans == nil {
		loans = []models.Loan{}
	}
	return loans, nil
}

func (l *loanLedger) CountActiveLoans(ctx context.Context) (int64, error) {
	return l.loanRepo.CountActive(ctx, nil)
}

func (l *loanLedger) CountOverdueLoans(ctx context.Context) (int64, error) {
	return l.loanRepo.CountOverdue(ctx, nil, l.now())
}

func (l *loanLedger) enrich(ctx context.Context, loans []models.Loan) ([]models.LoanView, error) {
	subscriberIDs := make([]uuid.UUID, 0, len(loans))
	documentIDs := make([]uuid.UUID, 0, len(loans))
	for _, loan := range loans {
		subscriberIDs = append(subscriberIDs, loan.SubscriberID)
		documentIDs = append(documentIDs, loan.DocumentID)
	}

	subscribers, err := l.subscriberRepo.GetByIDs(ctx, nil, subscriberIDs)
	if err != nil {
		return nil, err
	}
	documents, err := l.documentRepo.GetByIDs(ctx, nil, documentIDs)
	if err != nil {
		return nil, err
	}
	subscriberByID := make(map[uuid.UUID]*models.Subscriber, len(subscribers))
	for i := range subscribers {
		subscriberByID[subscribers[i].ID] = &subscribers[i]
	}
	documentByID := make(map[uuid.UUID]*models.Document, len(documents))
	for i := range documents {
		documentByID[documents[i].ID] = &documents[i]
	}

	now := l.now()
	views := make([]models.LoanView, len(loans))
	for i, loan := range loans {
		views[i] = models.LoanView{Loan: loan, Overdue: loan.IsOverdue(now)}
		if sub, ok := subscriberByID[loan.SubscriberID]; ok {
			views[i].Subscriber = sub.Snapshot()
		}
		if doc, ok := documentByID[loan.DocumentID]; ok {
			views[i].Document = doc.Snapshot()
		}
	}
	return views, nil
}

func logLoanFailure(op string, loanID uuid.UUID, err error) {
	if errors.Is(err, ErrLoanNotFound) {
		log.Printf("[WARN] %s: loan %s not found", op, loanID)
		return
	}
	log.Printf("[ERROR] %s: transaction failed for loan %s: %v", op, loanID, err)
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		log.Printf("[WARN] metrics: cannot create counter %s: %v", name, err)
		c, _ = noop.NewMeterProvider().Meter(instrumentationName).Int64Counter(name)
	}
	return c
}
