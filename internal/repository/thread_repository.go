package repository

import (
	"context"
	"errors"

	"github.com/softadastra-group/softadastra-chat/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CanonicalPair orders two participant ids so the unordered pair (a,b) and
// (b,a) map to the same thread row.
func CanonicalPair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}

type ThreadRepository interface {
	// ResolveOrCreate returns the thread for the unordered pair of
	// participants, creating it if none exists. The second return reports
	// whether a new thread was created.
	ResolveOrCreate(ctx context.Context, a, b uint) (*models.Thread, bool, error)
	FindByID(ctx context.Context, id uint) (*models.Thread, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Thread, error)
}

type threadRepository struct {
	db *gorm.DB
}

func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

func (r *threadRepository) ResolveOrCreate(ctx context.Context, a, b uint) (*models.Thread, bool, error) {
	lo, hi := CanonicalPair(a, b)

	var thread models.Thread
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? AND user_b_id = ?", lo, hi).
		First(&thread).Error
	if err == nil {
		return &thread, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	thread = models.Thread{UserAID: lo, UserBID: hi}
	// Two concurrent senders can race the insert; the unique index on the
	// pair makes one of them lose, after which the row is fetched instead.
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&thread).Error
	if err != nil {
		return nil, false, err
	}
	if thread.ID == 0 {
		err = r.db.WithContext(ctx).
			Where("user_a_id = ? AND user_b_id = ?", lo, hi).
			First(&thread).Error
		return &thread, false, err
	}
	return &thread, true, nil
}

func (r *threadRepository) FindByID(ctx context.Context, id uint) (*models.Thread, error) {
	var thread models.Thread
	err := r.db.WithContext(ctx).First(&thread, id).Error
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

func (r *threadRepository) ListForUser(ctx context.Context, userID uint) ([]models.Thread, error) {
	var threads []models.Thread
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("id DESC").
		Find(&threads).Error
	return threads, err
}

// Peer returns the other participant of a thread.
func Peer(t *models.Thread, userID uint) uint {
	if t.UserAID == userID {
		return t.UserBID
	}
	return t.UserAID
}
