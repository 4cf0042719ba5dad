package repotest

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mediatheque/internal/models"
	"mediatheque/internal/repositories"
)

var (
	_ repositories.SubscriberRepository = (*SubscriberRepository)(nil)
	_ repositories.DocumentRepository   = (*DocumentRepository)(nil)
	_ repositories.LoanRepository       = (*LoanRepository)(nil)
	_ repositories.Transactor           = (*Store)(nil)
)

type SubscriberRepository struct {
	s *Store
}

func (s *Store) SubscriberRepo() *SubscriberRepository { return &SubscriberRepository{s: s} }

func subscriberTime(sub models.Subscriber) time.Time { return sub.RegisteredAt.Time }

func (r *SubscriberRepository) Create(ctx context.Context, db *gorm.DB, subscriber *models.Subscriber) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("subscribers.Create"); err != nil {
		return err
	}
	if subscriber.ID == uuid.Nil {
		subscriber.ID = uuid.New()
	}
	stored := *subscriber
	stored.ActiveLoans, stored.LoanHistory = nil, nil
	r.s.subscribers[stored.ID] = entry[models.Subscriber]{seq: r.s.nextSeq(), record: stored}
	return nil
}

func (r *SubscriberRepository) List(ctx context.Context, db *gorm.DB) ([]models.Subscriber, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("subscribers.List"); err != nil {
		return nil, err
	}
	return sorted(r.s.subscribers, subscriberTime), nil
}

func (r *SubscriberRepository) GetByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.Subscriber, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("subscribers.GetByID"); err != nil {
		return nil, err
	}
	e, ok := r.s.subscribers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	sub := e.record
	return &sub, nil
}

func (r *SubscriberRepository) GetByIDs(ctx context.Context, db *gorm.DB, ids []uuid.UUID) ([]models.Subscriber, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return filter(sorted(r.s.subscribers, subscriberTime), func(sub models.Subscriber) bool {
		return slices.Contains(ids, sub.ID)
	}), nil
}

func (r *SubscriberRepository) Update(ctx context.Context, db *gorm.DB, id uuid.UUID, patch models.SubscriberPatch) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("subscribers.Update"); err != nil {
		return 0, err
	}
	e, ok := r.s.subscribers[id]
	if !ok || len(patch.Columns()) == 0 {
		return 0, nil
	}
	sub := &e.record
	assign(&sub.Name, patch.Name)
	assign(&sub.FirstName, patch.FirstName)
	assign(&sub.Email, patch.Email)
	assign(&sub.Address, patch.Address)
	assign(&sub.Phone, patch.Phone)
	r.s.subscribers[id] = e
	return 1, nil
}

func (r *SubscriberRepository) Delete(ctx context.Context, db *gorm.DB, id uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("subscribers.Delete"); err != nil {
		return 0, err
	}
	if _, ok := r.s.subscribers[id]; !ok {
		return 0, nil
	}
	delete(r.s.subscribers, id)
	return 1, nil
}

func (r *SubscriberRepository) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("subscribers.Count"); err != nil {
		return 0, err
	}
	return int64(len(r.s.subscribers)), nil
}

type DocumentRepository struct {
	s *Store
}

func (s *Store) DocumentRepo() *DocumentRepository { return &DocumentRepository{s: s} }

func documentTime(d models.Document) time.Time { return d.CreatedAt.Time }

func (r *DocumentRepository) Create(ctx context.Context, db *gorm.DB, document *models.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("documents.Create"); err != nil {
		return err
	}
	if document.ID == uuid.Nil {
		document.ID = uuid.New()
	}
	stored := *document
	stored.Loans = nil
	r.s.documents[stored.ID] = entry[models.Document]{seq: r.s.nextSeq(), record: stored}
	return nil
}

func (r *DocumentRepository) List(ctx context.Context, db *gorm.DB) ([]models.Document, error) {
	return r.where("documents.List", func(models.Document) bool { return true })
}

func (r *DocumentRepository) GetByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.Document, error) {
	return r.get("documents.GetByID", id)
}

func (r *DocumentRepository) GetByIDForUpdate(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.Document, error) {
	return r.get("documents.GetByIDForUpdate", id)
}

func (r *DocumentRepository) GetByIDs(ctx context.Context, db *gorm.DB, ids []uuid.UUID) ([]models.Document, error) {
	return r.where("documents.GetByIDs", func(d models.Document) bool { return slices.Contains(ids, d.ID) })
}

func (r *DocumentRepository) Update(ctx context.Context, db *gorm.DB, id uuid.UUID, patch models.DocumentPatch) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("documents.Update"); err != nil {
		return 0, err
	}
	e, ok := r.s.documents[id]
	if !ok || len(patch.Columns()) == 0 {
		return 0, nil
	}
	doc := &e.record
	assign(&doc.Title, patch.Title)
	assign(&doc.Author, patch.Author)
	assign(&doc.Type, patch.Type)
	assign(&doc.ISBN, patch.ISBN)
	if patch.PublishedAt != nil {
		published := *patch.PublishedAt
		doc.PublishedAt = &published
	}
	r.s.documents[id] = e
	return 1, nil
}

func (r *DocumentRepository) UpdateAvailability(ctx context.Context, db *gorm.DB, id uuid.UUID, available bool) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("documents.UpdateAvailability"); err != nil {
		return 0, err
	}
	e, ok := r.s.documents[id]
	if !ok {
		return 0, nil
	}
	e.record.Available = available
	r.s.documents[id] = e
	return 1, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, db *gorm.DB, id uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("documents.Delete"); err != nil {
		return 0, err
	}
	if _, ok := r.s.documents[id]; !ok {
		return 0, nil
	}
	delete(r.s.documents, id)
	return 1, nil
}

func (r *DocumentRepository) Search(ctx context.Context, db *gorm.DB, text string) ([]models.Document, error) {
	needle := strings.ToLower(text)
	return r.where("documents.Search", func(d models.Document) bool {
		return strings.Contains(strings.ToLower(d.Title), needle) ||
			strings.Contains(strings.ToLower(d.Author), needle)
	})
}

func (r *DocumentRepository) ListByType(ctx context.Context, db *gorm.DB, docType string) ([]models.Document, error) {
	return r.where("documents.ListByType", func(d models.Document) bool { return d.Type == docType })
}

func (r *DocumentRepository) ListByAvailability(ctx context.Context, db *gorm.DB, available bool) ([]models.Document, error) {
	return r.where("documents.ListByAvailability", func(d models.Document) bool { return d.Available == available })
}

func (r *DocumentRepository) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	docs, err := r.where("documents.Count", func(models.Document) bool { return true })
	return int64(len(docs)), err
}

func (r *DocumentRepository) CountByAvailability(ctx context.Context, db *gorm.DB, available bool) (int64, error) {
	docs, err := r.where("documents.CountByAvailability", func(d models.Document) bool { return d.Available == available })
	return int64(len(docs)), err
}

func (r *DocumentRepository) CountByType(ctx context.Context, db *gorm.DB) (map[string]int64, error) {
	docs, err := r.where("documents.CountByType", func(models.Document) bool { return true })
	if err != nil {
		return nil, err
	}
	counts := map[string]int64{}
	for _, d := range docs {
		counts[d.Type]++
	}
	return counts, nil
}

func (r *DocumentRepository) DistinctTypes(ctx context.Context, db *gorm.DB) ([]string, error) {
	counts, err := r.CountByType(ctx, db)
	if err != nil {
		return nil, err
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	return types, nil
}

func (r *DocumentRepository) get(op string, id uuid.UUID) (*models.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(op); err != nil {
		return nil, err
	}
	e, ok := r.s.documents[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	doc := e.record
	return &doc, nil
}

func (r *DocumentRepository) where(op string, keep func(models.Document) bool) ([]models.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(op); err != nil {
		return nil, err
	}
	return filter(sorted(r.s.documents, documentTime), keep), nil
}

type LoanRepository struct {
	s *Store
}

func (s *Store) LoanRepo() *LoanRepository { return &LoanRepository{s: s} }

func loanTime(l models.Loan) time.Time { return l.LoanedAt.Time }

func (r *LoanRepository) Create(ctx context.Context, db *gorm.DB, loan *models.Loan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("loans.Create"); err != nil {
		return err
	}
	if loan.ID == uuid.Nil {
		loan.ID = uuid.New()
	}
	r.s.loans[loan.ID] = entry[models.Loan]{seq: r.s.nextSeq(), record: *loan}
	return nil
}

func (r *LoanRepository) List(ctx context.Context, db *gorm.DB) ([]models.Loan, error) {
	return r.where("loans.List", func(models.Loan) bool { return true })
}

func (r *LoanRepository) ListBySubscriber(ctx context.Context, db *gorm.DB, subscriberID uuid.UUID) ([]models.Loan, error) {
	return r.where("loans.ListBySubscriber", func(l models.Loan) bool { return l.SubscriberID == subscriberID })
}

func (r *LoanRepository) ListOverdue(ctx context.Context, db *gorm.DB, now time.Time) ([]models.Loan, error) {
	return r.where("loans.ListOverdue", func(l models.Loan) bool { return l.IsOverdue(now) })
}

func (r *LoanRepository) GetByIDForUpdate(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("loans.GetByIDForUpdate"); err != nil {
		return nil, err
	}
	e, ok := r.s.loans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	loan := e.record
	return &loan, nil
}

func (r *LoanRepository) MarkReturned(ctx context.Context, db *gorm.DB, id uuid.UUID, returnedAt time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("loans.MarkReturned"); err != nil {
		return 0, err
	}
	e, ok := r.s.loans[id]
	if !ok {
		return 0, nil
	}
	ts := models.NewTimestamp(returnedAt)
	e.record.ReturnedAt = &ts
	e.record.Status = models.LoanStatusReturned
	r.s.loans[id] = e
	return 1, nil
}

func (r *LoanRepository) Delete(ctx context.Context, db *gorm.DB, id uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("loans.Delete"); err != nil {
		return 0, err
	}
	if _, ok := r.s.loans[id]; !ok {
		return 0, nil
	}
	delete(r.s.loans, id)
	return 1, nil
}

func (r *LoanRepository) RefsBySubscribers(ctx context.Context, db *gorm.DB, subscriberIDs []uuid.UUID) ([]models.LoanRef, error) {
	loans, err := r.where("loans.RefsBySubscribers", func(l models.Loan) bool { return slices.Contains(subscriberIDs, l.SubscriberID) })
	return refs(loans), err
}

func (r *LoanRepository) RefsByDocuments(ctx context.Context, db *gorm.DB, documentIDs []uuid.UUID) ([]models.LoanRef, error) {
	loans, err := r.where("loans.RefsByDocuments", func(l models.Loan) bool { return slices.Contains(documentIDs, l.DocumentID) })
	return refs(loans), err
}

func (r *LoanRepository) CountActive(ctx context.Context, db *gorm.DB) (int64, error) {
	loans, err := r.where("loans.CountActive", func(l models.Loan) bool { return l.Status == models.LoanStatusActive })
	return int64(len(loans)), err
}

func (r *LoanRepository) CountOverdue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	loans, err := r.where("loans.CountOverdue", func(l models.Loan) bool { return l.IsOverdue(now) })
	return int64(len(loans)), err
}

func (r *LoanRepository) where(op string, keep func(models.Loan) bool) ([]models.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(op); err != nil {
		return nil, err
	}
	return filter(sorted(r.s.loans, loanTime), keep), nil
}

func refs(loans []models.Loan) []models.LoanRef {
	out := make([]models.LoanRef, 0, len(loans))
	for _, l := range loans {
		out = append(out, models.LoanRef{ID: l.ID, SubscriberID: l.SubscriberID, DocumentID: l.DocumentID, Status: l.Status})
	}
	return out
}

func assign(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
