package repositories

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mediatheque/internal/models"
)

type documentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, db *gorm.DB, document *models.Document) error {
	return conn(ctx, db, r.db).Create(document).Error
}

func (r *documentRepository) List(ctx context.Context, db *gorm.DB) ([]models.Document, error) {
	return r.find(conn(ctx, db, r.db))
}

func (r *documentRepository) GetByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.Document, error) {
	var document models.Document
	if err := conn(ctx, db, r.db).First(&document, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &document, nil
}

// GetByIDForUpdate locks the document row until the surrounding transaction ends.
func (r *documentRepository) GetByIDForUpdate(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.Document, error) {
	var document models.Document
	err := conn(ctx, db, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&document, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &document, nil
}

func (r *documentRepository) GetByIDs(ctx context.Context, db *gorm.DB, ids []uuid.UUID) ([]models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.find(conn(ctx, db, r.db).Where("id IN ?", ids))
}

func (r *documentRepository) Update(ctx context.Context, db *gorm.DB, id uuid.UUID, patch models.DocumentPatch) (int64, error) {
	cols := patch.Columns()
	if len(cols) == 0 {
		return 0, nil
	}
	res := conn(ctx, db, r.db).Model(&models.Document{}).Where("id = ?", id).Updates(cols)
	return res.RowsAffected, res.Error
}

func (r *documentRepository) UpdateAvailability(ctx context.Context, db *gorm.DB, id uuid.UUID, available bool) (int64, error) {
	res := conn(ctx, db, r.db).Model(&models.Document{}).Where("id = ?", id).Update("available", available)
	return res.RowsAffected, res.Error
}

func (r *documentRepository) Delete(ctx context.Context, db *gorm.DB, id uuid.UUID) (int64, error) {
	res := conn(ctx, db, r.db).Delete(&models.Document{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

// Search matches text as a case-insensitive substring of the title or the author.
func (r *documentRepository) Search(ctx context.Context, db *gorm.DB, text string) ([]models.Document, error) {
	pattern := "%" + escapeLike(text) + "%"
	return r.find(conn(ctx, db, r.db).Where("title ILIKE ? OR author ILIKE ?", pattern, pattern))
}

func (r *documentRepository) ListByType(ctx context.Context, db *gorm.DB, docType string) ([]models.Document, error) {
	return r.find(conn(ctx, db, r.db).Where("type = ?", docType))
}

func (r *documentRepository) ListByAvailability(ctx context.Context, db *gorm.DB, available bool) ([]models.Document, error) {
	return r.find(conn(ctx, db, r.db).Where("available = ?", available))
}

func (r *documentRepository) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := conn(ctx, db, r.db).Model(&models.Document{}).Count(&n).Error
	return n, err
}

func (r *documentRepository) CountByAvailability(ctx context.Context, db *gorm.DB, available bool) (int64, error) {
	var n int64
	err := conn(ctx, db, r.db).Model(&models.Document{}).Where("available = ?", available).Count(&n).Error
	return n, err
}

func (r *documentRepository) CountByType(ctx context.Context, db *gorm.DB) (map[string]int64, error) {
	var rows []struct {
		Type  string
		Count int64
	}
	err := conn(ctx, db, r.db).Model(&models.Document{}).
		Select("type, COUNT(*) AS count").
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Type] = row.Count
	}
	return counts, nil
}

func (r *documentRepository) DistinctTypes(ctx context.Context, db *gorm.DB) ([]string, error) {
	var types []string
	err := conn(ctx, db, r.db).Model(&models.Document{}).
		Distinct().
		Order("type").
		Pluck("type", &types).Error
	if err != nil {
		return nil, err
	}
	return types, nil
}

func (r *documentRepository) find(q *gorm.DB) ([]models.Document, error) {
	var documents []models.Document
	if err := q.Order("created_at, id").Find(&documents).Error; err != nil {
		return nil, err
	}
	return documents, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
