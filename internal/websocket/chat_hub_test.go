package websocket

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startChatHub(t *testing.T, store ChatStore) (*ChatHub, func()) {
	t.Helper()
	h := NewChatHub(store, nil)
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

func newTestChatClient() *ChatClient {
	return &ChatClient{client: newClient(&fakeConn{})}
}

func connectChat(t *testing.T, h *ChatHub) *ChatClient {
	t.Helper()
	c := newTestChatClient()
	h.register <- c
	return c
}

func authAs(t *testing.T, h *ChatHub, c *ChatClient, userID uint) {
	t.Helper()
	h.inbound <- chatInbound{client: c, data: []byte(fmt.Sprintf(`{"type":"auth","user_id":%d}`, userID))}
	frame := recvFrame(t, c.client)
	require.Equal(t, "auth_ok", frame["type"])
	assert.Equal(t, float64(userID), frame["user_id"])
	frame = recvFrame(t, c.client)
	require.Equal(t, "nav_counts", frame["type"])
}

func TestAuthAckAndPresenceBroadcast(t *testing.T) {
	h, stop := startChatHub(t, newFakeChatStore())
	defer stop()

	c1 := connectChat(t, h)
	authAs(t, h, c1, 1)

	c2 := connectChat(t, h)
	authAs(t, h, c2, 2)

	// c1 was already authenticated, so it sees c2 come online; c2 does not
	// see its own presence event.
	frame := recvFrame(t, c1.client)
	assert.Equal(t, "user_online", frame["type"])
	assert.Equal(t, float64(2), frame["user_id"])
	expectNoFrame(t, c2.client)
}

func TestPresenceLastWriterWins(t *testing.T) {
	h, stop := startChatHub(t, newFakeChatStore())

	first := connectChat(t, h)
	authAs(t, h, first, 1)
	second := connectChat(t, h)
	authAs(t, h, second, 1)

	stop()
	assert.Same(t, second, h.registry[1])
	assert.Len(t, h.registry, 1)
}

func TestStaleConnectionCannotEvictNewer(t *testing.T) {
	h, stop := startChatHub(t, newFakeChatStore())

	first := connectChat(t, h)
	authAs(t, h, first, 1)
	second := connectChat(t, h)
	authAs(t, h, second, 1)

	// The stale first connection closing must not delete the second's
	// registry entry.
	h.unregister <- first

	stop()
	assert.Same(t, second, h.registry[1])
}

func TestBoundIdentityIgnoresAuthClaim(t *testing.T) {
	h, stop := startChatHub(t, newFakeChatStore())

	c := &ChatClient{client: newClient(&fakeConn{}), identity: 5, bound: true}
	h.register <- c
	frame := recvFrame(t, c.client)
	require.Equal(t, "auth_ok", frame["type"])
	assert.Equal(t, float64(5), frame["user_id"])
	recvFrame(t, c.client) // nav_counts

	// A frame claiming another identity is answered with the bound one.
	h.inbound <- chatInbound{client: c, data: []byte(`{"type":"auth","user_id":9}`)}
	frame = recvFrame(t, c.client)
	assert.Equal(t, "auth_ok", frame["type"])
	assert.Equal(t, float64(5), frame["user_id"])

	stop()
	assert.Same(t, c, h.registry[5])
	assert.Nil(t, h.registry[9])
}

func TestMessageSendScenario(t *testing.T) {
	store := newFakeChatStore()
	h, stop := startChatHub(t, store)
	defer stop()

	c1 := connectChat(t, h)
	authAs(t, h, c1, 1)
	c2 := connectChat(t, h)
	authAs(t, h, c2, 2)
	recvFrame(t, c1.client) // user_online for 2

	h.inbound <- chatInbound{client: c1, data: []byte(
		`{"type":"message_send","sender_id":1,"receiver_id":2,"content":"hi","temp_id":"t1"}`)}

	sender := drainFrames(c1.client)
	require.Len(t, sender["new_thread"], 1)
	require.Len(t, sender["message_ack"], 1)
	require.Len(t, sender["new_message"], 1)
	ack := sender["message_ack"][0]
	assert.Equal(t, "t1", ack["temp_id"])
	assert.Equal(t, float64(1), ack["message_id"])
	assert.Equal(t, "hi", sender["new_message"][0]["content"])

	recipient := drainFrames(c2.client)
	require.Len(t, recipient["new_thread"], 1)
	require.Len(t, recipient["new_message"], 1)
	require.Len(t, recipient["stop_typing"], 1)
	require.Len(t, recipient["notification"], 1)
	require.Len(t, recipient["nav_counts"], 1)
	assert.Equal(t, float64(1), recipient["stop_typing"][0]["from"])
	assert.Equal(t, "hi", recipient["new_message"][0]["content"])
}

func TestMessageSendAliasAndThreadCanonicalization(t *testing.T) {
	store := newFakeChatStore()
	h, stop := startChatHub(t, store)
	defer stop()

	c1 := connectChat(t, h)
	authAs(t, h, c1, 1)
	c2 := connectChat(t, h)
	authAs(t, h, c2, 2)
	recvFrame(t, c1.client) // user_online

	h.inbound <- chatInbound{client: c1, data: []byte(
		`{"type":"message","receiver_id":2,"content":"a"}`)}
	first := drainFrames(c1.client)
	threadID := first["new_message"][0]["thread_id"]
	drainFrames(c2.client) // discard c2's frames from the first send

	// The reverse direction lands on the same thread.
	h.inbound <- chatInbound{client: c2, data: []byte(
		`{"type":"message_send","receiver_id":1,"content":"b"}`)}
	reply := drainFrames(c2.client)
	assert.Empty(t, reply["new_thread"])
	assert.Equal(t, threadID, reply["new_message"][0]["thread_id"])
}

func TestMessageSendRequiresContentOrAttachment(t *testing.T) {
	h, stop := startChatHub(t, newFakeChatStore())
	defer stop()

	c1 := connectChat(t, h)
	authAs(t, h, c1, 1)

	h.inbound <- chatInbound{client: c1, data: []byte(
		`{"type":"message_send","receiver_id":2}`)}
	expectNoFrame(t, c1.client)
}

func TestTypingForwardedOnlyWhenOnline(t *testing.T) {
	h, stop := startChatHub(t, newFakeChatStore())
	defer stop()

	c1 := connectChat(t, h)
	authAs(t, h, c1, 1)
	c2 := connectChat(t, h)
	authAs(t, h, c2, 2)
	recvFrame(t, c1.client) // user_online

	h.inbound <- chatInbound{client: c1, data: []byte(`{"type":"typing","from":1,"to":2}`)}
	frame := recvFrame(t, c2.client)
	assert.Equal(t, "typing", frame["type"])
	assert.Equal(t, float64(1), frame["from"])

	// Offline target is a silent no-op.
	h.inbound <- chatInbound{client: c1, data: []byte(`{"type":"typing","from":1,"to":99}`)}
	expectNoFrame(t, c1.client)
}

func TestSeenReceiptReachesPeer(t *testing.T) {
	store := newFakeChatStore()
	h, stop := startChatHub(t, store)
	defer stop()

	c1 := connectChat(t, h)
	authAs(t, h, c1, 1)
	c2 := connectChat(t, h)
	authAs(t, h, c2, 2)
	recvFrame(t, c1.client) // user_online

	h.inbound <- chatInbound{client: c1, data: []byte(
		`{"type":"message_send","receiver_id":2,"content":"hi"}`)}
	drainFrames(c1.client)
	drainFrames(c2.client)

	h.inbound <- chatInbound{client: c2, data: []byte(
		`{"type":"message_seen","thread_id":1,"user_id":2}`)}
	frame := recvFrame(t, c1.client)
	assert.Equal(t, "messages_seen", frame["type"])
	assert.Equal(t, float64(1), frame["thread_id"])
	assert.Equal(t, float64(2), frame["seen_by"])
}

func TestOfflineBroadcastOnClose(t *testing.T) {
	h, stop := startChatHub(t, newFakeChatStore())
	defer stop()

	c1 := connectChat(t, h)
	authAs(t, h, c1, 1)
	c2 := connectChat(t, h)
	authAs(t, h, c2, 2)
	recvFrame(t, c1.client) // user_online

	h.unregister <- c2
	frame := recvFrame(t, c1.client)
	assert.Equal(t, "user_offline", frame["type"])
	assert.Equal(t, float64(2), frame["user_id"])
}

func TestUnknownAndMalformedFramesIgnored(t *testing.T) {
	h, stop := startChatHub(t, newFakeChatStore())
	defer stop()

	c1 := connectChat(t, h)
	authAs(t, h, c1, 1)

	h.inbound <- chatInbound{client: c1, data: []byte(`{"type":"wat","x":1}`)}
	h.inbound <- chatInbound{client: c1, data: []byte(`{not json`)}
	expectNoFrame(t, c1.client)

	// Connection still works afterwards.
	h.inbound <- chatInbound{client: c1, data: []byte(`{"type":"nav_counts"}`)}
	frame := recvFrame(t, c1.client)
	assert.Equal(t, "nav_counts", frame["type"])
}

func TestWhoIsOnline(t *testing.T) {
	h, stop := startChatHub(t, newFakeChatStore())
	defer stop()

	c1 := connectChat(t, h)
	authAs(t, h, c1, 1)
	c2 := connectChat(t, h)
	authAs(t, h, c2, 2)
	recvFrame(t, c1.client) // user_online

	h.inbound <- chatInbound{client: c1, data: []byte(`{"type":"who_is_online"}`)}
	frame := recvFrame(t, c1.client)
	require.Equal(t, "who_is_online", frame["type"])
	assert.Len(t, frame["user_ids"], 2)
}

func TestUnauthenticatedCannotSend(t *testing.T) {
	store := newFakeChatStore()
	h, stop := startChatHub(t, store)
	defer stop()

	c := connectChat(t, h)
	h.inbound <- chatInbound{client: c, data: []byte(
		`{"type":"message_send","sender_id":1,"receiver_id":2,"content":"hi"}`)}
	expectNoFrame(t, c.client)
	assert.Empty(t, store.messages)
}

func TestServeChatReturnsAfterStop(t *testing.T) {
	h := NewChatHub(newFakeChatStore(), nil)
	h.Stop()

	conn := &fakeConn{}
	served := make(chan struct{})
	go func() {
		h.ServeChat(conn, 1)
		close(served)
	}()

	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("ServeChat blocked against a stopped hub")
	}
	assert.True(t, conn.isClosed())
}
