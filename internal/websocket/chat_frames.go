package websocket

import (
	"encoding/json"
	"time"
)

// Inbound chat frame variants. Decoding dispatches on the type discriminator
// into exactly one of these; anything unrecognized becomes chatUnknown and
// is ignored by the hub.

type chatFrame interface{ isChatFrame() }

type chatAuth struct {
	UserID flexID `json:"user_id"`
}

type chatTyping struct {
	From flexID `json:"from"`
	To   flexID `json:"to"`
}

type chatSeen struct {
	ThreadID flexID `json:"thread_id"`
	UserID   flexID `json:"user_id"`
}

type chatSend struct {
	SenderID   flexID         `json:"sender_id"`
	ReceiverID flexID         `json:"receiver_id"`
	ThreadID   flexID         `json:"thread_id"`
	Content    string         `json:"content"`
	ImageURLs  []string       `json:"image_urls"`
	TempID     string         `json:"temp_id"`
	ExtraData  map[string]any `json:"extra_data"`
}

type chatEcho struct {
	raw json.RawMessage
}

type chatNavCounts struct{}

type chatWhoIsOnline struct{}

type chatUnknown struct {
	kind string
}

func (chatAuth) isChatFrame()        {}
func (chatTyping) isChatFrame()      {}
func (chatSeen) isChatFrame()        {}
func (chatSend) isChatFrame()        {}
func (chatEcho) isChatFrame()        {}
func (chatNavCounts) isChatFrame()   {}
func (chatWhoIsOnline) isChatFrame() {}
func (chatUnknown) isChatFrame()     {}

func decodeChatFrame(data []byte) (chatFrame, error) {
	switch t := frameType(data); t {
	case "auth":
		var f chatAuth
		err := json.Unmarshal(data, &f)
		return f, err
	case "typing":
		var f chatTyping
		err := json.Unmarshal(data, &f)
		return f, err
	case "message_seen":
		var f chatSeen
		err := json.Unmarshal(data, &f)
		return f, err
	case "message_send", "message":
		var f chatSend
		err := json.Unmarshal(data, &f)
		return f, err
	case "echo":
		return chatEcho{raw: append(json.RawMessage(nil), data...)}, nil
	case "nav_counts":
		return chatNavCounts{}, nil
	case "who_is_online", "subscribe":
		// subscribe is a legacy alias older clients send on connect; both
		// get the online roster back.
		return chatWhoIsOnline{}, nil
	default:
		return chatUnknown{kind: t}, nil
	}
}

// Outbound chat frames.

type authOKFrame struct {
	Type   string `json:"type"`
	UserID uint   `json:"user_id"`
	TS     int64  `json:"ts"`
}

func newAuthOK(userID uint) authOKFrame {
	return authOKFrame{Type: "auth_ok", UserID: userID, TS: time.Now().Unix()}
}

// NavCounts is the unread badge snapshot pushed after auth and after every
// delivery.
type NavCounts struct {
	Notifications int64 `json:"notifications"`
	Messages      int64 `json:"messages"`
}

type navCountsFrame struct {
	Type    string    `json:"type"`
	Payload NavCounts `json:"payload"`
}

type presenceFrame struct {
	Type   string `json:"type"` // user_online || user_offline
	UserID uint   `json:"user_id"`
}

type typingFrame struct {
	Type string `json:"type"` // typing || stop_typing
	From uint   `json:"from"`
}

type newThreadFrame struct {
	Type     string `json:"type"`
	ThreadID uint   `json:"thread_id"`
}

type messageAckFrame struct {
	Type      string `json:"type"`
	TempID    string `json:"temp_id"`
	MessageID uint   `json:"message_id"`
	ThreadID  uint   `json:"thread_id"`
}

type newMessageFrame struct {
	Type      string         `json:"type"`
	ID        uint           `json:"id"`
	ThreadID  uint           `json:"thread_id"`
	SenderID  uint           `json:"sender_id"`
	Content   string         `json:"content"`
	ImageURLs []string       `json:"image_urls"`
	CreatedAt time.Time      `json:"created_at"`
	ExtraData map[string]any `json:"extra_data,omitempty"`
}

type messagesSeenFrame struct {
	Type     string `json:"type"`
	ThreadID uint   `json:"thread_id"`
	SeenBy   uint   `json:"seen_by"`
}

type notificationFrame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type whoIsOnlineFrame struct {
	Type    string `json:"type"`
	UserIDs []uint `json:"user_ids"`
}
