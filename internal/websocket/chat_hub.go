package websocket

import (
	"context"
	"log/slog"
	"time"
)

// StoredMessage is the hub's view of a persisted direct message.
type StoredMessage struct {
	ID        uint
	ThreadID  uint
	SenderID  uint
	Content   string
	ImageURLs []string
	ExtraData map[string]any
	CreatedAt time.Time
}

// ChatStore is the durable collaborator behind the chat hub: thread
// resolution, message persistence, seen-marking, notifications and unread
// counts all live outside the hub.
type ChatStore interface {
	// ResolveThread returns the thread id for the unordered participant
	// pair, creating the thread when none exists.
	ResolveThread(ctx context.Context, a, b uint) (threadID uint, created bool, err error)
	// ThreadPeer returns the other participant of a thread.
	ThreadPeer(ctx context.Context, threadID, userID uint) (uint, error)
	SaveMessage(ctx context.Context, msg *StoredMessage) error
	MarkThreadSeen(ctx context.Context, threadID, seenBy uint) (int64, error)
	CreateNotification(ctx context.Context, userID uint, kind string, payload any) error
	NavCounts(ctx context.Context, userID uint) (NavCounts, error)
}

// PresenceMirror reflects online state into a shared cache for the REST
// side. Optional; a nil mirror disables it.
type PresenceMirror interface {
	SetOnline(ctx context.Context, userID uint) error
	SetOffline(ctx context.Context, userID uint) error
}

// ChatClient is one chat socket. identity is zero until authenticated and
// is only touched from the hub goroutine.
type ChatClient struct {
	*client
	identity uint
	// handshake-verified identity; a later auth frame cannot override it
	bound bool
}

type chatInbound struct {
	client *ChatClient
	data   []byte
}

// ChatHub owns the presence registry and all chat connections. Every
// mutation runs on the hub goroutine, so registry access needs no lock.
type ChatHub struct {
	store  ChatStore
	mirror PresenceMirror

	clients  map[*ChatClient]struct{}
	registry map[uint]*ChatClient // identity -> live connection, last writer wins

	register   chan *ChatClient
	unregister chan *ChatClient
	inbound    chan chatInbound

	heartbeat time.Duration
	done      chan struct{}
}

func NewChatHub(store ChatStore, mirror PresenceMirror) *ChatHub {
	return &ChatHub{
		store:      store,
		mirror:     mirror,
		clients:    make(map[*ChatClient]struct{}),
		registry:   make(map[uint]*ChatClient),
		register:   make(chan *ChatClient),
		unregister: make(chan *ChatClient),
		inbound:    make(chan chatInbound, 64),
		heartbeat:  heartbeatInterval,
		done:       make(chan struct{}),
	}
}

func (h *ChatHub) Run() {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case c := <-h.register:
			h.handleRegister(c)
		case c := <-h.unregister:
			h.handleUnregister(c)
		case in := <-h.inbound:
			h.dispatch(in.client, in.data)
		case <-ticker.C:
			h.sweep()
		case <-h.done:
			slog.Info("Chat hub shutting down")
			for c := range h.clients {
				c.terminate()
				c.shutdownSend()
			}
			return
		}
	}
}

func (h *ChatHub) Stop() {
	close(h.done)
}

// sweep terminates connections that missed the previous heartbeat, then
// marks everyone not-alive and pings; a pong flips them back before the
// next sweep.
func (h *ChatHub) sweep() {
	for c := range h.clients {
		if !c.alive.Load() {
			slog.Debug("Terminating unresponsive chat connection", "clientID", c.id, "userID", c.identity)
			c.terminate()
			continue
		}
		c.alive.Store(false)
		c.ping()
	}
}

func (h *ChatHub) handleRegister(c *ChatClient) {
	h.clients[c] = struct{}{}
	slog.Info("Chat connection registered", "clientID", c.id, "bound", c.bound)
	if c.bound && c.identity != 0 {
		h.bindIdentity(c, c.identity)
	}
}

func (h *ChatHub) handleUnregister(c *ChatClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.shutdownSend()

	if c.identity != 0 && h.registry[c.identity] == c {
		// Guard: a stale connection must not evict a newer one's entry.
		delete(h.registry, c.identity)
		if h.mirror != nil {
			if err := h.mirror.SetOffline(context.Background(), c.identity); err != nil {
				slog.Warn("Presence mirror offline update failed", "userID", c.identity, "error", err)
			}
		}
		h.broadcastPresence("user_offline", c.identity, c)
	}
	slog.Info("Chat connection unregistered", "clientID", c.id, "userID", c.identity)
}

// bindIdentity registers the connection in the presence registry and runs
// the post-auth pushes. Re-binding the same identity from a second socket
// overwrites the registry entry (last writer wins).
func (h *ChatHub) bindIdentity(c *ChatClient, identity uint) {
	c.identity = identity
	h.registry[identity] = c

	if h.mirror != nil {
		if err := h.mirror.SetOnline(context.Background(), identity); err != nil {
			slog.Warn("Presence mirror online update failed", "userID", identity, "error", err)
		}
	}

	c.enqueue(newAuthOK(identity))
	h.pushNavCounts(c, identity)
	h.broadcastPresence("user_online", identity, c)
}

func (h *ChatHub) pushNavCounts(c *ChatClient, identity uint) {
	counts, err := h.store.NavCounts(context.Background(), identity)
	if err != nil {
		slog.Warn("Failed to load nav counts", "userID", identity, "error", err)
		return
	}
	c.enqueue(navCountsFrame{Type: "nav_counts", Payload: counts})
}

// broadcastPresence notifies every other authenticated connection.
func (h *ChatHub) broadcastPresence(kind string, identity uint, except *ChatClient) {
	frame := presenceFrame{Type: kind, UserID: identity}
	for c := range h.clients {
		if c == except || c.identity == 0 {
			continue
		}
		c.enqueue(frame)
	}
}

// dispatch decodes one inbound frame and routes it. A handler panic is
// contained here so one bad frame cannot take the hub down.
func (h *ChatHub) dispatch(c *ChatClient, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Chat frame handler panicked", "clientID", c.id, "panic", r)
		}
	}()

	frame, err := decodeChatFrame(data)
	if err != nil {
		slog.Debug("Malformed chat frame ignored", "clientID", c.id, "error", err)
		return
	}

	switch f := frame.(type) {
	case chatAuth:
		h.handleAuth(c, f)
	case chatTyping:
		h.handleTyping(c, f)
	case chatSeen:
		h.handleSeen(c, f)
	case chatSend:
		h.handleSend(c, f)
	case chatEcho:
		c.enqueueRaw(f.raw)
	case chatNavCounts:
		if c.identity != 0 {
			h.pushNavCounts(c, c.identity)
		}
	case chatWhoIsOnline:
		h.handleWhoIsOnline(c)
	case chatUnknown:
		// Unrecognized types are ignored without closing the connection.
		slog.Debug("Unknown chat frame type ignored", "clientID", c.id, "type", f.kind)
	}
}

func (h *ChatHub) handleAuth(c *ChatClient, f chatAuth) {
	if c.bound {
		// Identity came from the verified upgrade credentials; the frame's
		// claim is not trusted. Re-ack so older clients settle.
		c.enqueue(newAuthOK(c.identity))
		return
	}
	identity := f.UserID.Uint()
	if identity == 0 {
		return
	}
	h.bindIdentity(c, identity)
}

func (h *ChatHub) handleTyping(c *ChatClient, f chatTyping) {
	if c.identity == 0 {
		return
	}
	target, ok := h.registry[f.To.Uint()]
	if !ok {
		return
	}
	target.enqueue(typingFrame{Type: "typing", From: c.identity})
}

func (h *ChatHub) handleSeen(c *ChatClient, f chatSeen) {
	if c.identity == 0 || f.ThreadID == 0 {
		return
	}
	ctx := context.Background()
	threadID := uint(f.ThreadID)

	updated, err := h.store.MarkThreadSeen(ctx, threadID, c.identity)
	if err != nil {
		slog.Warn("Mark seen failed", "threadID", threadID, "userID", c.identity, "error", err)
		return
	}
	if updated == 0 {
		return
	}

	peer, err := h.store.ThreadPeer(ctx, threadID, c.identity)
	if err != nil {
		return
	}
	if target, ok := h.registry[peer]; ok {
		target.enqueue(messagesSeenFrame{Type: "messages_seen", ThreadID: threadID, SeenBy: c.identity})
	}
}

func (h *ChatHub) handleSend(c *ChatClient, f chatSend) {
	if c.identity == 0 {
		return
	}
	if f.Content == "" && len(f.ImageURLs) == 0 {
		return
	}
	ctx := context.Background()
	sender := c.identity

	// Resolve the thread from the unordered participant pair, or look up
	// the peer when the client addressed an existing thread.
	var threadID, receiver uint
	switch {
	case f.ReceiverID != 0:
		receiver = f.ReceiverID.Uint()
		id, created, err := h.store.ResolveThread(ctx, sender, receiver)
		if err != nil {
			slog.Error("Thread resolution failed", "sender", sender, "receiver", receiver, "error", err)
			return
		}
		threadID = id
		if created {
			c.enqueue(newThreadFrame{Type: "new_thread", ThreadID: threadID})
			if target, ok := h.registry[receiver]; ok {
				target.enqueue(newThreadFrame{Type: "new_thread", ThreadID: threadID})
			}
		}
	case f.ThreadID != 0:
		threadID = uint(f.ThreadID)
		peer, err := h.store.ThreadPeer(ctx, threadID, sender)
		if err != nil {
			slog.Warn("Unknown thread on message_send", "threadID", threadID, "error", err)
			return
		}
		receiver = peer
	default:
		return
	}

	msg := &StoredMessage{
		ThreadID:  threadID,
		SenderID:  sender,
		Content:   f.Content,
		ImageURLs: f.ImageURLs,
		ExtraData: f.ExtraData,
	}
	if err := h.store.SaveMessage(ctx, msg); err != nil {
		slog.Error("Message persistence failed", "threadID", threadID, "sender", sender, "error", err)
		return
	}

	if f.TempID != "" {
		c.enqueue(messageAckFrame{Type: "message_ack", TempID: f.TempID, MessageID: msg.ID, ThreadID: threadID})
	}

	out := newMessageFrame{
		Type:      "new_message",
		ID:        msg.ID,
		ThreadID:  threadID,
		SenderID:  sender,
		Content:   msg.Content,
		ImageURLs: msg.ImageURLs,
		CreatedAt: msg.CreatedAt,
		ExtraData: msg.ExtraData,
	}
	// Echo to the sender so its UI converges on the persisted record.
	c.enqueue(out)

	target, online := h.registry[receiver]
	if !online {
		return
	}
	target.enqueue(out)
	target.enqueue(typingFrame{Type: "stop_typing", From: sender})

	notice := map[string]any{
		"kind":       "new_message",
		"thread_id":  threadID,
		"sender_id":  sender,
		"message_id": msg.ID,
	}
	if err := h.store.CreateNotification(ctx, receiver, "new_message", notice); err != nil {
		slog.Warn("Notification creation failed", "userID", receiver, "error", err)
	} else {
		target.enqueue(notificationFrame{Type: "notification", Payload: notice})
	}
	h.pushNavCounts(target, receiver)
}

func (h *ChatHub) handleWhoIsOnline(c *ChatClient) {
	ids := make([]uint, 0, len(h.registry))
	for id := range h.registry {
		ids = append(ids, id)
	}
	c.enqueue(whoIsOnlineFrame{Type: "who_is_online", UserIDs: ids})
}

// ServeChat upgrades are done by the caller; this binds the raw conn to the
// hub. identity is non-zero when the upgrade carried verified credentials.
func (h *ChatHub) ServeChat(conn Conn, identity uint) {
	c := &ChatClient{client: newClient(conn), identity: identity, bound: identity != 0}
	c.installPongHandler()

	select {
	case h.register <- c:
	case <-h.done:
		c.terminate()
		return
	}
	go c.writePump()
	go h.readPump(c)
}

func (h *ChatHub) readPump(c *ChatClient) {
	defer func() {
		c.terminate()
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case h.inbound <- chatInbound{client: c, data: data}:
		case <-h.done:
			return
		}
	}
}
