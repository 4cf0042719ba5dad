package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mediatheque/internal/models"
)

type subscriberRepository struct {
	db *gorm.DB
}

func NewSubscriberRepository(db *gorm.DB) SubscriberRepository {
	return &subscriberRepository{db: db}
}

func (r *subscriberRepository) Create(ctx context.Context, db *gorm.DB, subscriber *models.Subscriber) error {
	return conn(ctx, db, r.db).Create(subscriber).Error
}

func (r *subscriberRepository) List(ctx context.Context, db *gorm.DB) ([]models.Subscriber, error) {
	var subscribers []models.Subscriber
	if err := conn(ctx, db, r.db).Order("registered_at, id").Find(&subscribers).Error; err != nil {
		return nil, err
	}
	return subscribers, nil
}

func (r *subscriberRepository) GetByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.Subscriber, error) {
	var subscriber models.Subscriber
	if err := conn(ctx, db, r.db).First(&subscriber, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &subscriber, nil
}

func (r *subscriberRepository) GetByIDs(ctx context.Context, db *gorm.DB, ids []uuid.UUID) ([]models.Subscriber, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var subscribers []models.Subscriber
	if err := conn(ctx, db, r.db).Where("id IN ?", ids).Find(&subscribers).Error; err != nil {
		return nil, err
	}
	return subscribers, nil
}

func (r *subscriberRepository) Update(ctx context.Context, db *gorm.DB, id uuid.UUID, patch models.SubscriberPatch) (int64, error) {
	cols := patch.Columns()
	if len(cols) == 0 {
		return 0, nil
	}
	res := conn(ctx, db, r.db).Model(&models.Subscriber{}).Where("id = ?", id).Updates(cols)
	return res.RowsAffected, res.Error
}

func (r *subscriberRepository) Delete(ctx context.Context, db *gorm.DB, id uuid.UUID) (int64, error) {
	res := conn(ctx, db, r.db).Delete(&models.Subscriber{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

func (r *subscriberRepository) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := conn(ctx, db, r.db).Model(&models.Subscriber{}).Count(&n).Error
	return n, err
}
