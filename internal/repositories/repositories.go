package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mediatheque/internal/models"
)

// Every repository method takes an optional db handle: nil means the repository's own
// connection, a transaction handle makes the call part of that transaction.

type SubscriberRepository interface {
	Create(ctx context.Context, db *gorm.DB, subscriber *models.Subscriber) error
	List(ctx context.Context, db *gorm.DB) ([]models.Subscriber, error)
	GetByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.Subscriber, error)
	GetByIDs(ctx context.Context, db *gorm.DB, ids []uuid.UUID) ([]models.Subscriber, error)
	Update(ctx context.Context, db *gorm.DB, id uuid.UUID, patch models.SubscriberPatch) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, id uuid.UUID) (int64, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
}

type DocumentRepository interface {
	Create(ctx context.Context, db *gorm.DB, document *models.Document) error
	List(ctx context.Context, db *gorm.DB) ([]models.Document, error)
	GetByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.Document, error)
	GetByIDForUpdate(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.Document, error)
	GetByIDs(ctx context.Context, db *gorm.DB, ids []uuid.UUID) ([]models.Document, error)
	Update(ctx context.Context, db *gorm.DB, id uuid.UUID, patch models.DocumentPatch) (int64, error)
	UpdateAvailability(ctx context.Context, db *gorm.DB, id uuid.UUID, available bool) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, id uuid.UUID) (int64, error)
	Search(ctx context.Context, db *gorm.DB, text string) ([]models.Document, error)
	ListByType(ctx context.Context, db *gorm.DB, docType string) ([]models.Document, error)
	ListByAvailability(ctx context.Context, db *gorm.DB, available bool) ([]models.Document, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
	CountByAvailability(ctx context.Context, db *gorm.DB, available bool) (int64, error)
	CountByType(ctx context.Context, db *gorm.DB) (map[string]int64, error)
	DistinctTypes(ctx context.Context, db *gorm.DB) ([]string, error)
}

type LoanRepository interface {
	Create(ctx context.Context, db *gorm.DB, loan *models.Loan) error
	List(ctx context.Context, db *gorm.DB) ([]models.Loan, error)
	ListBySubscriber(ctx context.Context, db *gorm.DB, subscriberID uuid.UUID) ([]models.Loan, error)
	ListOverdue(ctx context.Context, db *gorm.DB, now time.Time) ([]models.Loan, error)
	GetByIDForUpdate(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.Loan, error)
	MarkReturned(ctx context.Context, db *gorm.DB, id uuid.UUID, returnedAt time.Time) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, id uuid.UUID) (int64, error)
	RefsBySubscribers(ctx context.Context, db *gorm.DB, subscriberIDs []uuid.UUID) ([]models.LoanRef, error)
	RefsByDocuments(ctx context.Context, db *gorm.DB, documentIDs []uuid.UUID) ([]models.LoanRef, error)
	CountActive(ctx context.Context, db *gorm.DB) (int64, error)
	CountOverdue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}

// Transactor runs fn inside a single store transaction, committing when fn returns nil.
type Transactor interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

func (t *gormTransactor) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.WithContext(ctx).Transaction(fn)
}

func conn(ctx context.Context, db, fallback *gorm.DB) *gorm.DB {
	if db == nil {
		db = fallback
	}
	return db.WithContext(ctx)
}
