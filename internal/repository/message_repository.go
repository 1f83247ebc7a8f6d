package repository

import (
	"context"

	"github.com/softadastra-group/softadastra-chat/internal/models"

	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	ListByThread(ctx context.Context, threadID uint, beforeID uint, limit int) ([]models.Message, error)
	// MarkSeen flags every message in the thread authored by someone other
	// than seenBy, returning the number of rows updated.
	MarkSeen(ctx context.Context, threadID, seenBy uint) (int64, error)
	// UnreadCount counts unseen messages addressed to userID across all of
	// their threads.
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	UnreadCountByThread(ctx context.Context, threadID, userID uint) (int64, error)
	LastByThread(ctx context.Context, threadID uint) (*models.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) ListByThread(ctx context.Context, threadID uint, beforeID uint, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Where("thread_id = ?", threadID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}
	var messages []models.Message
	err := q.Order("id DESC").Limit(limit).Find(&messages).Error
	return messages, err
}

func (r *messageRepository) MarkSeen(ctx context.Context, threadID, seenBy uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("thread_id = ? AND sender_id <> ? AND seen = ?", threadID, seenBy, false).
		Update("seen", true)
	return res.RowsAffected, res.Error
}

func (r *messageRepository) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Joins("JOIN threads ON threads.id = messages.thread_id").
		Where("(threads.user_a_id = ? OR threads.user_b_id = ?)", userID, userID).
		Where("messages.sender_id <> ? AND messages.seen = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (r *messageRepository) UnreadCountByThread(ctx context.Context, threadID, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("thread_id = ? AND sender_id <> ? AND seen = ?", threadID, userID, false).
		Count(&count).Error
	return count, err
}

func (r *messageRepository) LastByThread(ctx context.Context, threadID uint) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("id DESC").
		First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}
