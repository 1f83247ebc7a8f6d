package models

import (
	"time"

	"gorm.io/gorm"
)

/** --------------------ENTITIES-------------------- */

// User represents a marketplace account.
type User struct {
	gorm.Model
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `json:"-"`
	Role     string `gorm:"default:user" json:"role"` // user || admin
	Avatar   string `json:"avatar,omitempty"`
}

// Thread is a direct-message conversation keyed by the unordered pair of
// participants. UserAID is always the smaller id so (a,b) and (b,a) resolve
// to the same row.
type Thread struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserAID   uint      `gorm:"not null;uniqueIndex:idx_thread_pair" json:"user_a_id"`
	UserBID   uint      `gorm:"not null;uniqueIndex:idx_thread_pair" json:"user_b_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one direct message inside a thread.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ThreadID  uint      `gorm:"not null;index" json:"thread_id"`
	SenderID  uint      `gorm:"not null;index" json:"sender_id"`
	Content   string    `gorm:"type:text" json:"content"`
	ImageURLs string    `gorm:"type:text" json:"-"` // JSON-encoded []string
	ExtraData string    `gorm:"type:text" json:"-"` // JSON-encoded object, optional
	Seen      bool      `gorm:"default:false;index" json:"seen"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is a durable notification row pushed to users on delivery.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Kind      string    `gorm:"not null" json:"kind"` // new_message || feed_like || system
	Payload   string    `gorm:"type:text" json:"-"`   // JSON-encoded object
	Read      bool      `gorm:"default:false;index" json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// ProductLike is one user's like on a product listing.
type ProductLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint64    `gorm:"not null;uniqueIndex:idx_product_user" json:"product_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_product_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedPost is a social-feed entry.
type FeedPost struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	ImageURLs string    `gorm:"type:text" json:"-"` // JSON-encoded []string
	CreatedAt time.Time `json:"created_at"`
}

// AnalyticsEvent is the durable copy of one ingested client event. The
// in-memory aggregator works off the live stream; these rows back the
// snapshot queries served to freshly-connected dashboard sockets.
type AnalyticsEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Kind       string    `gorm:"not null;index" json:"kind"` // page_view || product_view || event
	Name       string    `gorm:"index" json:"name,omitempty"`
	Path       string    `gorm:"index" json:"path,omitempty"`
	VisitorID  string    `gorm:"size:64;index" json:"visitor_id,omitempty"`
	UserID     uint      `gorm:"index" json:"user_id,omitempty"`
	OccurredAt time.Time `gorm:"index" json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

/** -------------------- DTOs -------------------- */

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UserResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginResponse is returned on successful authentication.
// swagger:model
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type CreateFeedPostRequest struct {
	Body      string   `json:"body" binding:"required,max=4000"`
	ImageURLs []string `json:"image_urls" binding:"omitempty,max=10"`
}

type FeedPostResponse struct {
	ID        uint      `json:"id"`
	AuthorID  uint      `json:"author_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	ImageURLs []string  `json:"image_urls,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type MessageResponse struct {
	ID        uint           `json:"id"`
	ThreadID  uint           `json:"thread_id"`
	SenderID  uint           `json:"sender_id"`
	Content   string         `json:"content"`
	ImageURLs []string       `json:"image_urls,omitempty"`
	ExtraData map[string]any `json:"extra_data,omitempty"`
	Seen      bool           `json:"seen"`
	CreatedAt time.Time      `json:"created_at"`
}

type ThreadSummary struct {
	ThreadID    uint             `json:"thread_id"`
	PeerID      uint             `json:"peer_id"`
	Unread      int64            `json:"unread"`
	LastMessage *MessageResponse `json:"last_message,omitempty"`
}

// IngestEvent is one raw client event as posted by the tracking snippet.
type IngestEvent struct {
	Kind      string `json:"kind" binding:"required"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	VisitorID string `json:"visitor_id"`
	Timestamp int64  `json:"timestamp"` // epoch ms, optional
}

type IngestRequest struct {
	Events []IngestEvent `json:"events" binding:"required,min=1,max=100"`
}
