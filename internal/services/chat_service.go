package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/softadastra-group/softadastra-chat/internal/models"
	"github.com/softadastra-group/softadastra-chat/internal/repository"
	"github.com/softadastra-group/softadastra-chat/internal/websocket"
)

var ErrNotThreadParticipant = errors.New("not a thread participant")

// ChatService backs both the chat hub (websocket.ChatStore) and the REST
// messaging endpoints with the same thread and message repositories.
type ChatService struct {
	threads       repository.ThreadRepository
	messages      repository.MessageRepository
	notifications repository.NotificationRepository
	users         repository.UserRepository
}

func NewChatService(
	threads repository.ThreadRepository,
	messages repository.MessageRepository,
	notifications repository.NotificationRepository,
	users repository.UserRepository,
) *ChatService {
	return &ChatService{
		threads:       threads,
		messages:      messages,
		notifications: notifications,
		users:         users,
	}
}

/* websocket.ChatStore */

func (s *ChatService) ResolveThread(ctx context.Context, a, b uint) (uint, bool, error) {
	thread, created, err := s.threads.ResolveOrCreate(ctx, a, b)
	if err != nil {
		return 0, false, err
	}
	return thread.ID, created, nil
}

func (s *ChatService) ThreadPeer(ctx context.Context, threadID, userID uint) (uint, error) {
	thread, err := s.threads.FindByID(ctx, threadID)
	if err != nil {
		return 0, err
	}
	return repository.Peer(thread, userID), nil
}

func (s *ChatService) SaveMessage(ctx context.Context, msg *websocket.StoredMessage) error {
	row := models.Message{
		ThreadID: msg.ThreadID,
		SenderID: msg.SenderID,
		Content:  msg.Content,
	}
	if len(msg.ImageURLs) > 0 {
		data, err := json.Marshal(msg.ImageURLs)
		if err != nil {
			return fmt.Errorf("failed to encode image urls: %w", err)
		}
		row.ImageURLs = string(data)
	}
	if len(msg.ExtraData) > 0 {
		data, err := json.Marshal(msg.ExtraData)
		if err != nil {
			return fmt.Errorf("failed to encode extra data: %w", err)
		}
		row.ExtraData = string(data)
	}
	if err := s.messages.Create(ctx, &row); err != nil {
		return err
	}
	msg.ID = row.ID
	msg.CreatedAt = row.CreatedAt
	return nil
}

func (s *ChatService) MarkThreadSeen(ctx context.Context, threadID, seenBy uint) (int64, error) {
	return s.messages.MarkSeen(ctx, threadID, seenBy)
}

func (s *ChatService) CreateNotification(ctx context.Context, userID uint, kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode notification payload: %w", err)
	}
	return s.notifications.Create(ctx, &models.Notification{
		UserID:  userID,
		Kind:    kind,
		Payload: string(data),
	})
}

func (s *ChatService) NavCounts(ctx context.Context, userID uint) (websocket.NavCounts, error) {
	unreadNotifications, err := s.notifications.UnreadCount(ctx, userID)
	if err != nil {
		return websocket.NavCounts{}, err
	}
	unreadMessages, err := s.messages.UnreadCount(ctx, userID)
	if err != nil {
		return websocket.NavCounts{}, err
	}
	return websocket.NavCounts{Notifications: unreadNotifications, Messages: unreadMessages}, nil
}

/* REST messaging */

// ListThreads returns the caller's conversations with per-thread unread
// counts and the latest message for preview rendering.
func (s *ChatService) ListThreads(ctx context.Context, userID uint) ([]models.ThreadSummary, error) {
	threads, err := s.threads.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ThreadSummary, 0, len(threads))
	for i := range threads {
		t := &threads[i]
		unread, err := s.messages.UnreadCountByThread(ctx, t.ID, userID)
		if err != nil {
			return nil, err
		}
		summary := models.ThreadSummary{
			ThreadID: t.ID,
			PeerID:   repository.Peer(t, userID),
			Unread:   unread,
		}
		if last, err := s.messages.LastByThread(ctx, t.ID); err == nil && last != nil {
			resp := messageResponse(last)
			summary.LastMessage = &resp
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ThreadHistory pages messages backwards from beforeID (0 means newest).
// Only thread participants may read it.
func (s *ChatService) ThreadHistory(ctx context.Context, threadID, userID, beforeID uint, limit int) ([]models.MessageResponse, error) {
	thread, err := s.threads.FindByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread.UserAID != userID && thread.UserBID != userID {
		return nil, ErrNotThreadParticipant
	}

	rows, err := s.messages.ListByThread(ctx, threadID, beforeID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.MessageResponse, 0, len(rows))
	for i := range rows {
		out = append(out, messageResponse(&rows[i]))
	}
	return out, nil
}

func (s *ChatService) ListNotifications(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	return s.notifications.ListForUser(ctx, userID, limit)
}

func (s *ChatService) MarkNotificationsRead(ctx context.Context, userID uint) error {
	return s.notifications.MarkAllRead(ctx, userID)
}

func messageResponse(m *models.Message) models.MessageResponse {
	resp := models.MessageResponse{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Seen:      m.Seen,
		CreatedAt: m.CreatedAt,
	}
	if m.ImageURLs != "" {
		// Tolerate rows written before image support; a decode failure just
		// leaves the list empty.
		_ = json.Unmarshal([]byte(m.ImageURLs), &resp.ImageURLs)
	}
	if m.ExtraData != "" {
		_ = json.Unmarshal([]byte(m.ExtraData), &resp.ExtraData)
	}
	return resp
}
