package repository

import (
	"context"
	"errors"

	"github.com/softadastra-group/softadastra-chat/internal/models"

	"gorm.io/gorm"
)

type LikeRepository interface {
	// Toggle inserts or deletes the caller's like row and recounts inside
	// one transaction, so the returned count matches the committed state.
	Toggle(ctx context.Context, productID uint64, userID uint) (liked bool, count int64, err error)
	Count(ctx context.Context, productID uint64) (int64, error)
}

type likeRepository struct {
	db *gorm.DB
}

func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) Toggle(ctx context.Context, productID uint64, userID uint) (bool, int64, error) {
	var liked bool
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ProductLike
		err := tx.Where("product_id = ? AND user_id = ?", productID, userID).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			liked = false
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&models.ProductLike{ProductID: productID, UserID: userID}).Error; err != nil {
				return err
			}
			liked = true
		default:
			return err
		}
		return tx.Model(&models.ProductLike{}).
			Where("product_id = ?", productID).
			Count(&count).Error
	})
	return liked, count, err
}

func (r *likeRepository) Count(ctx context.Context, productID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductLike{}).
		Where("product_id = ?", productID).
		Count(&count).Error
	return count, err
}
