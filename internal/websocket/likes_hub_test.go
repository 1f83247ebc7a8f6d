package websocket

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLikesHub(t *testing.T, counter LikeCounter) (*LikesHub, func()) {
	t.Helper()
	h := NewLikesHub(counter)
	done := make(chan struct{})
	go func() {
		h.Run()
		close(done)
	}()
	return h, func() {
		h.Stop()
		<-done
	}
}

func connectLikes(t *testing.T, h *LikesHub) *LikesClient {
	t.Helper()
	c := &LikesClient{client: newClient(&fakeConn{}), subscriptions: make(map[uint64]struct{})}
	h.register <- c
	return c
}

func subscribe(t *testing.T, h *LikesHub, c *LikesClient, productID uint64) {
	t.Helper()
	h.inbound <- likesInbound{client: c, data: []byte(fmt.Sprintf(`{"type":"like:subscribe","product_id":%d}`, productID))}
	frame := recvFrame(t, c.client)
	require.Equal(t, "like:subscribed", frame["type"])
	frame = recvFrame(t, c.client)
	require.Equal(t, "like:update", frame["type"])
}

func TestSubscribePushesCurrentCount(t *testing.T) {
	counter := &fakeLikeCounter{counts: map[uint64]int64{42: 7}}
	h, stop := startLikesHub(t, counter)
	defer stop()

	c := connectLikes(t, h)
	h.inbound <- likesInbound{client: c, data: []byte(`{"type":"like:subscribe","product_id":42}`)}

	frame := recvFrame(t, c.client)
	assert.Equal(t, "like:subscribed", frame["type"])
	assert.Equal(t, float64(42), frame["product_id"])

	frame = recvFrame(t, c.client)
	assert.Equal(t, "like:update", frame["type"])
	assert.Equal(t, float64(42), frame["product_id"])
	assert.Equal(t, float64(7), frame["likes_count"])
}

func TestStringProductIDNormalized(t *testing.T) {
	counter := &fakeLikeCounter{counts: map[uint64]int64{42: 3}}
	h, stop := startLikesHub(t, counter)
	defer stop()

	c := connectLikes(t, h)
	h.inbound <- likesInbound{client: c, data: []byte(`{"type":"like:subscribe","product_id":"42"}`)}
	drainFrames(c.client)

	// A numeric-id update reaches the subscriber that sent a string id.
	h.BroadcastLikeUpdate(42, 4)
	frame := recvFrame(t, c.client)
	assert.Equal(t, "like:update", frame["type"])
	assert.Equal(t, float64(4), frame["likes_count"])
}

func TestUpdateOnlyReachesSubscribers(t *testing.T) {
	counter := &fakeLikeCounter{counts: map[uint64]int64{}}
	h, stop := startLikesHub(t, counter)
	defer stop()

	c7 := connectLikes(t, h)
	subscribe(t, h, c7, 7)
	c8 := connectLikes(t, h)
	subscribe(t, h, c8, 8)

	h.BroadcastLikeUpdate(7, 12)

	frame := recvFrame(t, c7.client)
	assert.Equal(t, "like:update", frame["type"])
	assert.Equal(t, float64(7), frame["product_id"])
	assert.Equal(t, float64(12), frame["likes_count"])
	expectNoFrame(t, c8.client)
}

func TestUnsubscribeStopsUpdates(t *testing.T) {
	counter := &fakeLikeCounter{counts: map[uint64]int64{}}
	h, stop := startLikesHub(t, counter)
	defer stop()

	c := connectLikes(t, h)
	subscribe(t, h, c, 7)

	h.inbound <- likesInbound{client: c, data: []byte(`{"type":"like:unsubscribe","product_id":7}`)}
	frame := recvFrame(t, c.client)
	assert.Equal(t, "like:unsubscribed", frame["type"])

	h.BroadcastLikeUpdate(7, 99)
	expectNoFrame(t, c.client)
}

func TestSubscriptionCap(t *testing.T) {
	counter := &fakeLikeCounter{counts: map[uint64]int64{}}
	h, stop := startLikesHub(t, counter)

	c := connectLikes(t, h)
	for i := 1; i <= maxProductSubscriptions; i++ {
		h.inbound <- likesInbound{client: c, data: []byte(fmt.Sprintf(`{"type":"like:subscribe","product_id":%d}`, i))}
		flushSend(c.client) // keep the send buffer from filling up
	}
	h.inbound <- likesInbound{client: c, data: []byte(`{"type":"like:subscribe","product_id":99999}`)}

	// Inbound is buffered; the pong confirms everything before it was
	// dispatched.
	h.inbound <- likesInbound{client: c, data: []byte(`{"type":"ping","t":1}`)}
	for recvFrame(t, c.client)["type"] != "pong" {
	}

	stop()
	assert.Len(t, c.subscriptions, maxProductSubscriptions)
	_, over := c.subscriptions[99999]
	assert.False(t, over)
}

func TestResubscribeIsIdempotent(t *testing.T) {
	counter := &fakeLikeCounter{counts: map[uint64]int64{}}
	h, stop := startLikesHub(t, counter)

	c := connectLikes(t, h)
	subscribe(t, h, c, 7)
	subscribe(t, h, c, 7)

	stop()
	assert.Len(t, c.subscriptions, 1)
}

func TestPingPong(t *testing.T) {
	h, stop := startLikesHub(t, &fakeLikeCounter{})
	defer stop()

	c := connectLikes(t, h)
	h.inbound <- likesInbound{client: c, data: []byte(`{"type":"ping","t":123}`)}
	frame := recvFrame(t, c.client)
	assert.Equal(t, "pong", frame["type"])
	assert.Equal(t, float64(123), frame["t"])
}

func TestZeroProductIDIgnored(t *testing.T) {
	h, stop := startLikesHub(t, &fakeLikeCounter{})
	defer stop()

	c := connectLikes(t, h)
	h.inbound <- likesInbound{client: c, data: []byte(`{"type":"like:subscribe","product_id":0}`)}
	h.inbound <- likesInbound{client: c, data: []byte(`{"type":"like:subscribe"}`)}
	expectNoFrame(t, c.client)
}

func TestServeLikesReturnsAfterStop(t *testing.T) {
	h := NewLikesHub(&fakeLikeCounter{})
	h.Stop()

	conn := &fakeConn{}
	served := make(chan struct{})
	go func() {
		h.ServeLikes(conn)
		close(served)
	}()

	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("ServeLikes blocked against a stopped hub")
	}
	assert.True(t, conn.isClosed())
}
