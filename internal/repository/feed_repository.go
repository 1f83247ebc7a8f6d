package repository

import (
	"context"

	"github.com/softadastra-group/softadastra-chat/internal/models"

	"gorm.io/gorm"
)

type FeedRepository interface {
	Create(ctx context.Context, post *models.FeedPost) error
	ListRecent(ctx context.Context, beforeID uint, limit int) ([]models.FeedPost, error)
	FindByID(ctx context.Context, id uint) (*models.FeedPost, error)
}

type feedRepository struct {
	db *gorm.DB
}

func NewFeedRepository(db *gorm.DB) FeedRepository {
	return &feedRepository{db: db}
}

func (r *feedRepository) Create(ctx context.Context, post *models.FeedPost) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *feedRepository) ListRecent(ctx context.Context, beforeID uint, limit int) ([]models.FeedPost, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	q := r.db.WithContext(ctx)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}
	var posts []models.FeedPost
	err := q.Order("id DESC").Limit(limit).Find(&posts).Error
	return posts, err
}

func (r *feedRepository) FindByID(ctx context.Context, id uint) (*models.FeedPost, error) {
	var post models.FeedPost
	err := r.db.WithContext(ctx).First(&post, id).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}
