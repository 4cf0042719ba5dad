package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mediatheque/internal/models"
)

type loanRepository struct {
	db *gorm.DB
}

func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, db *gorm.DB, loan *models.Loan) error {
	return conn(ctx, db, r.db).Create(loan).Error
}

func (r *loanRepository) List(ctx context.Context, db *gorm.DB) ([]models.Loan, error) {
	return r.find(conn(ctx, db, r.db))
}

func (r *loanRepository) ListBySubscriber(ctx context.Context, db *gorm.DB, subscriberID uuid.UUID) ([]models.Loan, error) {
	return r.find(conn(ctx, db, r.db).Where("subscriber_id = ?", subscriberID))
}

func (r *loanRepository) ListOverdue(ctx context.Context, db *gorm.DB, now time.Time) ([]models.Loan, error) {
	return r.find(overdue(conn(ctx, db, r.db), now))
}

func (r *loanRepository) GetByIDForUpdate(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	err := conn(ctx, db, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&loan, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) MarkReturned(ctx context.Context, db *gorm.DB, id uuid.UUID, returnedAt time.Time) (int64, error) {
	res := conn(ctx, db, r.db).Model(&models.Loan{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"returned_at": models.NewTimestamp(returnedAt),
			"status":      models.LoanStatusReturned,
		})
	return res.RowsAffected, res.Error
}

func (r *loanRepository) Delete(ctx context.Context, db *gorm.DB, id uuid.UUID) (int64, error) {
	res := conn(ctx, db, r.db).Delete(&models.Loan{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

func (r *loanRepository) RefsBySubscribers(ctx context.Context, db *gorm.DB, subscriberIDs []uuid.UUID) ([]models.LoanRef, error) {
	return r.refs(conn(ctx, db, r.db), "subscriber_id", subscriberIDs)
}

func (r *loanRepository) RefsByDocuments(ctx context.Context, db *gorm.DB, documentIDs []uuid.UUID) ([]models.LoanRef, error) {
	return r.refs(conn(ctx, db, r.db), "document_id", documentIDs)
}

func (r *loanRepository) CountActive(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := conn(ctx, db, r.db).Model(&models.Loan{}).
		Where("status = ?", models.LoanStatusActive).
		Count(&n).Error
	return n, err
}

func (r *loanRepository) CountOverdue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	var n int64
	err := overdue(conn(ctx, db, r.db).Model(&models.Loan{}), now).Count(&n).Error
	return n, err
}

func (r *loanRepository) refs(q *gorm.DB, column string, ids []uuid.UUID) ([]models.LoanRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var refs []models.LoanRef
	err := q.Model(&models.Loan{}).
		Select("id, subscriber_id, document_id, status").
		Where(column+" IN ?", ids).
		Order("loaned_at, id").
		Scan(&refs).Error
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *loanRepository) find(q *gorm.DB) ([]models.Loan, error) {
	var loans []models.Loan
	if err := q.Order("loaned_at, id").Find(&loans).Error; err != nil {
		return nil, err
	}
	return loans, nil
}

func overdue(q *gorm.DB, now time.Time) *gorm.DB {
	return q.Where("status = ? AND due_at < ?", models.LoanStatusActive, now.UTC())
}
