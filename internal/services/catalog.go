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

// DocumentRequiredFields are the fields CreateDocument refuses to do without.
var DocumentRequiredFields = []string{"title", "author", "type"}

// Catalog manages documents. Update and delete on a missing id affect zero rows and
// do not fail.
type Catalog interface {
	CreateDocument(ctx context.Context, document *models.Document) (uuid.UUID, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	UpdateDocument(ctx context.Context, id uuid.UUID, patch models.DocumentPatch) (int64, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) (int64, error)

	SearchDocuments(ctx context.Context, text string) ([]models.Document, error)
	ListDocumentsByType(ctx context.Context, docType string) ([]models.Document, error)
	ListDocumentsByAvailability(ctx context.Context, available bool) ([]models.Document, error)
	UpdateAvailability(ctx context.Context, id uuid.UUID, available bool) (int64, error)

	CountTotal(ctx context.Context) (int64, error)
	CountAvailable(ctx context.Context) (int64, error)
	CountLoaned(ctx context.Context) (int64, error)
	CountByType(ctx context.Context) (map[string]int64, error)
	ListTypes(ctx context.Context) ([]string, error)
	DocumentStats(ctx context.Context) (*models.DocumentStats, error)
}

type catalog struct {
	documentRepo repositories.DocumentRepository
	loanRepo     repositories.LoanRepository
	now          func() time.Time
}

func NewCatalog(documentRepo repositories.DocumentRepository, loanRepo repositories.LoanRepository) Catalog {
	return &catalog{
		documentRepo: documentRepo,
		loanRepo:     loanRepo,
		now:          time.Now,
	}
}

// CreateDocument stores a new document. Availability is forced to true and the loan list
// to empty, whatever the input says.
func (s *catalog) CreateDocument(ctx context.Context, document *models.Document) (uuid.UUID, error) {
	if err := requireFields(
		[2]string{"title", document.Title},
		[2]string{"author", document.Author},
		[2]string{"type", document.Type},
	); err != nil {
		return uuid.Nil, err
	}

	document.ID = uuid.New()
	document.Available = true
	document.Loans = []string{}
	document.CreatedAt = models.NewTimestamp(s.now())

	if err := s.documentRepo.Create(ctx, nil, document); err != nil {
		log.Printf("[ERROR] CreateDocument: failed to create document %q: %v", document.Title, err)
		return uuid.Nil, fmt.Errorf("create document: %w", err)
	}
	log.Printf("[INFO] CreateDocument: created document %q (id=%s, type=%s)", document.Title, document.ID, document.Type)
	return document.ID, nil
}

func (s *catalog) ListDocuments(ctx context.Context) ([]models.Document, error) {
	return s.withLoans(ctx)(s.documentRepo.List(ctx, nil))
}

func (s *catalog) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	document, err := s.documentRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	docs, err := s.withLoans(ctx)([]models.Document{*document}, nil)
	if err != nil {
		return nil, err
	}
	return &docs[0], nil
}

func (s *catalog) UpdateDocument(ctx context.Context, id uuid.UUID, patch models.DocumentPatch) (int64, error) {
	n, err := s.documentRepo.Update(ctx, nil, id, patch)
	if err != nil {
		log.Printf("[ERROR] UpdateDocument: failed to update document %s: %v", id, err)
		return 0, err
	}
	return n, nil
}

func (s *catalog) DeleteDocument(ctx context.Context, id uuid.UUID) (int64, error) {
	n, err := s.documentRepo.Delete(ctx, nil, id)
	if err != nil {
		log.Printf("[ERROR] DeleteDocument: failed to delete document %s: %v", id, err)
		return 0, err
	}
	if n > 0 {
		log.Printf("[INFO] DeleteDocument: deleted document %s", id)
	}
	return n, nil
}

func (s *catalog) SearchDocuments(ctx context.Context, text string) ([]models.Document, error) {
	return s.withLoans(ctx)(s.documentRepo.Search(ctx, nil, text))
}

func (s *catalog) ListDocumentsByType(ctx context.Context, docType string) ([]models.Document, error) {
	return s.withLoans(ctx)(s.documentRepo.ListByType(ctx, nil, docType))
}

func (s *catalog) ListDocumentsByAvailability(ctx context.Context, available bool) ([]models.Document, error) {
	return s.withLoans(ctx)(s.documentRepo.ListByAvailability(ctx, nil, available))
}

func (s *catalog) UpdateAvailability(ctx context.Context, id uuid.UUID, available bool) (int64, error) {
	n, err := s.documentRepo.UpdateAvailability(ctx, nil, id, available)
	if err != nil {
		log.Printf("[ERROR] UpdateAvailability: failed to set availability of document %s: %v", id, err)
		return 0, err
	}
	return n, nil
}

func (s *catalog) CountTotal(ctx context.Context) (int64, error) {
	return s.documentRepo.Count(ctx, nil)
}

func (s *catalog) CountAvailable(ctx context.Context) (int64, error) {
	return s.documentRepo.CountByAvailability(ctx, nil, true)
}

func (s *catalog) CountLoaned(ctx context.Context) (int64, error) {
	return s.documentRepo.CountByAvailability(ctx, nil, false)
}

func (s *catalog) CountByType(ctx context.Context) (map[string]int64, error) {
	return s.documentRepo.CountByType(ctx, nil)
}

func (s *catalog) ListTypes(ctx context.Context) ([]string, error) {
	types, err := s.documentRepo.DistinctTypes(ctx, nil)
	if err != nil {
		return nil, err
	}
	return nonNil(types), nil
}

func (s *catalog) DocumentStats(ctx context.Context) (*models.DocumentStats, error) {
	var (
		stats models.DocumentStats
		err   error
	)
	if stats.Total, err = s.CountTotal(ctx); err != nil {
		return nil, err
	}
	if stats.Available, err = s.CountAvailable(ctx); err != nil {
		return nil, err
	}
	if stats.Loaned, err = s.CountLoaned(ctx); err != nil {
		return nil, err
	}
	if stats.ByType, err = s.CountByType(ctx); err != nil {
		return nil, err
	}
	return &stats, nil
}

// withLoans returns a function that fills the derived loan list of each document.
func (s *catalog) withLoans(ctx context.Context) func([]models.Document, error) ([]models.Document, error) {
	return func(docs []models.Document, err error) ([]models.Document, error) {
		if err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, len(docs))
		for i := range docs {
			ids[i] = docs[i].ID
		}
		refs, err := s.loanRepo.RefsByDocuments(ctx, nil, ids)
		if err != nil {
			return nil, err
		}
		byDocument := groupLoanIDs(refs, func(r models.LoanRef) uuid.UUID { return r.DocumentID }, nil)
		out := make([]models.Document, len(docs))
		for i, d := range docs {
			d.Loans = nonNil(byDocument[d.ID])
			out[i] = d
		}
		return out, nil
	}
}

// groupLoanIDs groups loan ids by key, keeping the order of refs. A nil keep keeps all.
func groupLoanIDs(refs []models.LoanRef, key func(models.LoanRef) uuid.UUID, keep func(models.LoanRef) bool) map[uuid.UUID][]string {
	grouped := make(map[uuid.UUID][]string)
	for _, r := range refs {
		if keep != nil && !keep(r) {
			continue
		}
		k := key(r)
		grouped[k] = append(grouped[k], r.ID.String())
	}
	return grouped
}
