package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/softadastra-group/softadastra-chat/internal/analytics"
	"github.com/softadastra-group/softadastra-chat/internal/repository"
)

// SnapshotStore serves the durable aggregates a freshly-connected dashboard
// needs before the first live diff arrives.
type SnapshotStore interface {
	TopPagesSnapshot(ctx context.Context) ([]repository.PageAggregate, error)
	FunnelSnapshot(ctx context.Context) (repository.FunnelAggregate, error)
}

// ActiveNowSource is the aggregator's on-demand active-visitor count.
type ActiveNowSource interface {
	ActiveNow() int
}

// AnalyticsClient is one authenticated dashboard socket.
type AnalyticsClient struct {
	*client
	userID uint
}

type analyticsInbound struct {
	client *AnalyticsClient
	data   []byte
}

// AnalyticsHub pushes aggregator diffs to every connected dashboard. Unlike
// the likes hub there is no per-product filtering; every frame goes to every
// socket.
type AnalyticsHub struct {
	snapshots SnapshotStore
	active    ActiveNowSource

	clients map[*AnalyticsClient]struct{}

	register   chan *AnalyticsClient
	unregister chan *AnalyticsClient
	inbound    chan analyticsInbound
	outbound   chan any

	heartbeat time.Duration
	done      chan struct{}
}

func NewAnalyticsHub(snapshots SnapshotStore, active ActiveNowSource) *AnalyticsHub {
	return &AnalyticsHub{
		snapshots:  snapshots,
		active:     active,
		clients:    make(map[*AnalyticsClient]struct{}),
		register:   make(chan *AnalyticsClient),
		unregister: make(chan *AnalyticsClient),
		inbound:    make(chan analyticsInbound, 64),
		outbound:   make(chan any, 256),
		heartbeat:  heartbeatInterval,
		done:       make(chan struct{}),
	}
}

// SetSources late-binds the snapshot and active-count providers. The
// analytics service is built around the aggregator, which broadcasts through
// this hub, so the providers cannot exist at construction time. Must be
// called before Run.
func (h *AnalyticsHub) SetSources(snapshots SnapshotStore, active ActiveNowSource) {
	h.snapshots = snapshots
	h.active = active
}

func (h *AnalyticsHub) Run() {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.greet(c)
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.shutdownSend()
			}
		case in := <-h.inbound:
			h.dispatch(in.client, in.data)
		case frame := <-h.outbound:
			for c := range h.clients {
				c.enqueue(frame)
			}
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
			slog.Info("Analytics hub shutting down")
			for c := range h.clients {
				c.terminate()
				c.shutdownSend()
			}
			return
		}
	}
}

func (h *AnalyticsHub) Stop() {
	close(h.done)
}

// Broadcast satisfies the aggregator's broadcaster contract. It never
// blocks the flush timer: if the hub loop is saturated the frame is dropped.
func (h *AnalyticsHub) Broadcast(frame any) {
	select {
	case h.outbound <- frame:
	case <-h.done:
	default:
		slog.Warn("Analytics broadcast queue full, dropping frame")
	}
}

// greet sends the hello plus the durable snapshots so the dashboard renders
// immediately instead of waiting for the next flush tick.
func (h *AnalyticsHub) greet(c *AnalyticsClient) {
	slog.Info("Analytics connection registered", "clientID", c.id, "userID", c.userID)
	c.enqueue(helloFrame{Type: "hello", Now: time.Now().UnixMilli()})

	if h.active != nil {
		c.enqueue(analytics.ActiveNowFrame{Type: "active_now", Count: h.active.ActiveNow()})
	}
	if h.snapshots == nil {
		return
	}
	ctx := context.Background()
	if rows, err := h.snapshots.TopPagesSnapshot(ctx); err != nil {
		slog.Warn("Top pages snapshot failed", "error", err)
	} else {
		c.enqueue(topPagesSnapshotFrame{Type: "top_pages_snapshot", Rows: rows})
	}
	if funnel, err := h.snapshots.FunnelSnapshot(ctx); err != nil {
		slog.Warn("Funnel snapshot failed", "error", err)
	} else {
		c.enqueue(funnelSnapshotFrame{
			Type:          "funnel_snapshot",
			ProductView:   funnel.ProductView,
			AddToCart:     funnel.AddToCart,
			CheckoutStart: funnel.CheckoutStart,
		})
	}
}

func (h *AnalyticsHub) dispatch(c *AnalyticsClient, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Analytics frame handler panicked", "clientID", c.id, "panic", r)
		}
	}()
	// The dashboard is push-only; the only inbound frame honored is ping.
	if frameType(data) == "ping" {
		c.enqueue(pongFrame{Type: "pong", T: time.Now().UnixMilli()})
	}
}

// ServeAnalytics binds an upgraded, already-authorized conn to the hub.
func (h *AnalyticsHub) ServeAnalytics(conn Conn, userID uint) {
	c := &AnalyticsClient{client: newClient(conn), userID: userID}
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

func (h *AnalyticsHub) readPump(c *AnalyticsClient) {
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
		case h.inbound <- analyticsInbound{client: c, data: data}:
		case <-h.done:
			return
		}
	}
}

// Outbound analytics frames owned by the hub; diff frames come from the
// aggregator already shaped.

type helloFrame struct {
	Type string `json:"type"`
	Now  int64  `json:"now"`
}

type topPagesSnapshotFrame struct {
	Type string                     `json:"type"`
	Rows []repository.PageAggregate `json:"rows"`
}

type funnelSnapshotFrame struct {
	Type          string `json:"type"`
	ProductView   int64  `json:"product_view"`
	AddToCart     int64  `json:"add_to_cart"`
	CheckoutStart int64  `json:"checkout_start"`
}
