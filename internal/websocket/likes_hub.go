package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// maxProductSubscriptions bounds one connection's subscription set so a
// misbehaving client cannot grow memory without limit.
const maxProductSubscriptions = 500

// LikeCounter is the durable like-records collaborator; the hub only ever
// reads aggregate counts from it.
type LikeCounter interface {
	CountLikes(ctx context.Context, productID uint64) (int64, error)
}

// LikesClient is one likes socket and its product subscription set. The set
// is only touched from the hub goroutine.
type LikesClient struct {
	*client
	subscriptions map[uint64]struct{}
}

type likesInbound struct {
	client *LikesClient
	data   []byte
}

type likeUpdate struct {
	productID uint64
	count     int64
}

// LikesHub fans out like-count updates to the connections subscribed to the
// toggled product; everyone else never sees the frame.
type LikesHub struct {
	counter LikeCounter

	clients map[*LikesClient]struct{}

	register   chan *LikesClient
	unregister chan *LikesClient
	inbound    chan likesInbound
	updates    chan likeUpdate

	heartbeat time.Duration
	done      chan struct{}
}

func NewLikesHub(counter LikeCounter) *LikesHub {
	return &LikesHub{
		counter:    counter,
		clients:    make(map[*LikesClient]struct{}),
		register:   make(chan *LikesClient),
		unregister: make(chan *LikesClient),
		inbound:    make(chan likesInbound, 64),
		updates:    make(chan likeUpdate, 64),
		heartbeat:  heartbeatInterval,
		done:       make(chan struct{}),
	}
}

func (h *LikesHub) Run() {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			slog.Debug("Likes connection registered", "clientID", c.id)
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.shutdownSend()
			}
		case in := <-h.inbound:
			h.dispatch(in.client, in.data)
		case u := <-h.updates:
			h.fanOut(u)
		case <-ticker.C:
			for c := range h.clients {
				if !c.alive.Load() {
					c.terminate()
					continue
				}
				c.alive.Store(false)
				c.ping()
			}
		case <-h.done:
			slog.Info("Likes hub shutting down")
			for c := range h.clients {
				c.terminate()
				c.shutdownSend()
			}
			return
		}
	}
}

func (h *LikesHub) Stop() {
	close(h.done)
}

// BroadcastLikeUpdate is the one-way callback the REST like-toggle invokes
// after its transaction commits. Non-blocking for the caller.
func (h *LikesHub) BroadcastLikeUpdate(productID uint64, count int64) {
	select {
	case h.updates <- likeUpdate{productID: productID, count: count}:
	case <-h.done:
	}
}

func (h *LikesHub) fanOut(u likeUpdate) {
	frame := likeUpdateFrame{Type: "like:update", ProductID: u.productID, LikesCount: u.count}
	for c := range h.clients {
		if _, subscribed := c.subscriptions[u.productID]; subscribed {
			c.enqueue(frame)
		}
	}
}

func (h *LikesHub) dispatch(c *LikesClient, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Likes frame handler panicked", "clientID", c.id, "panic", r)
		}
	}()

	frame, err := decodeLikesFrame(data)
	if err != nil {
		slog.Debug("Malformed likes frame ignored", "clientID", c.id, "error", err)
		return
	}

	switch f := frame.(type) {
	case likesPing:
		c.enqueue(pongFrame{Type: "pong", T: f.T})
	case likesSubscribe:
		h.handleSubscribe(c, uint64(f.ProductID))
	case likesUnsubscribe:
		delete(c.subscriptions, uint64(f.ProductID))
		c.enqueue(likeAckFrame{Type: "like:unsubscribed", ProductID: uint64(f.ProductID)})
	case likesUnknown:
		slog.Debug("Unknown likes frame type ignored", "clientID", c.id, "type", f.kind)
	}
}

func (h *LikesHub) handleSubscribe(c *LikesClient, productID uint64) {
	if productID == 0 {
		return
	}
	if _, ok := c.subscriptions[productID]; !ok {
		if len(c.subscriptions) >= maxProductSubscriptions {
			slog.Warn("Subscription cap reached", "clientID", c.id, "cap", maxProductSubscriptions)
			return
		}
		c.subscriptions[productID] = struct{}{}
	}
	c.enqueue(likeAckFrame{Type: "like:subscribed", ProductID: productID})

	// Immediate count push so the subscriber renders current state without
	// waiting for the next toggle.
	count, err := h.counter.CountLikes(context.Background(), productID)
	if err != nil {
		slog.Warn("Like count query failed", "productID", productID, "error", err)
		return
	}
	c.enqueue(likeUpdateFrame{Type: "like:update", ProductID: productID, LikesCount: count})
}

// ServeLikes binds an upgraded conn to the hub. The likes path is public.
func (h *LikesHub) ServeLikes(conn Conn) {
	c := &LikesClient{client: newClient(conn), subscriptions: make(map[uint64]struct{})}
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

func (h *LikesHub) readPump(c *LikesClient) {
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
		case h.inbound <- likesInbound{client: c, data: data}:
		case <-h.done:
			return
		}
	}
}

// Inbound likes frames.

type likesFrame interface{ isLikesFrame() }

type likesPing struct {
	T int64 `json:"t"`
}

type likesSubscribe struct {
	ProductID flexID `json:"product_id"`
}

type likesUnsubscribe struct {
	ProductID flexID `json:"product_id"`
}

type likesUnknown struct {
	kind string
}

func (likesPing) isLikesFrame()        {}
func (likesSubscribe) isLikesFrame()   {}
func (likesUnsubscribe) isLikesFrame() {}
func (likesUnknown) isLikesFrame()     {}

func decodeLikesFrame(data []byte) (likesFrame, error) {
	switch t := frameType(data); t {
	case "ping":
		var f likesPing
		err := json.Unmarshal(data, &f)
		return f, err
	case "like:subscribe":
		var f likesSubscribe
		err := json.Unmarshal(data, &f)
		return f, err
	case "like:unsubscribe":
		var f likesUnsubscribe
		err := json.Unmarshal(data, &f)
		return f, err
	default:
		return likesUnknown{kind: t}, nil
	}
}

// Outbound likes frames.

type pongFrame struct {
	Type string `json:"type"`
	T    int64  `json:"t"`
}

type likeAckFrame struct {
	Type      string `json:"type"`
	ProductID uint64 `json:"product_id"`
}

type likeUpdateFrame struct {
	Type       string `json:"type"`
	ProductID  uint64 `json:"product_id"`
	LikesCount int64  `json:"likes_count"`
}
