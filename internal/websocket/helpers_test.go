package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/softadastra-group/softadastra-chat/internal/repository"
)

// fakeConn satisfies Conn without a network. Hub tests inject frames
// straight into the hub's inbound channel and read replies off the client's
// send queue, so only Close needs real behavior.
type fakeConn struct {
	mu     sync.Mutex
	closed bool
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {} // tests never drive the read pump
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error { return nil }

func (f *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	return nil
}

func (f *fakeConn) SetReadLimit(limit int64)            {}
func (f *fakeConn) SetReadDeadline(t time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(t time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(h func(string) error) {}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func recvFrame(t *testing.T, c *client) map[string]any {
	t.Helper()
	select {
	case data := <-c.send:
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("bad frame %q: %v", data, err)
		}
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

// drainFrames collects everything queued so far, keyed by frame type.
func drainFrames(c *client) map[string][]map[string]any {
	out := make(map[string][]map[string]any)
	for {
		select {
		case data := <-c.send:
			var m map[string]any
			if json.Unmarshal(data, &m) == nil {
				t, _ := m["type"].(string)
				out[t] = append(out[t], m)
			}
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

// flushSend discards whatever is queued right now without waiting.
func flushSend(c *client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func expectNoFrame(t *testing.T, c *client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

// fakeChatStore is an in-memory ChatStore.
type fakeChatStore struct {
	mu            sync.Mutex
	nextThread    uint
	nextMessage   uint
	threads       map[[2]uint]uint // canonical pair -> thread id
	peers         map[uint][2]uint // thread id -> pair
	messages      []*StoredMessage
	seenCalls     []uint
	notifications map[uint][]any
	counts        map[uint]NavCounts
}

func newFakeChatStore() *fakeChatStore {
	return &fakeChatStore{
		threads:       make(map[[2]uint]uint),
		peers:         make(map[uint][2]uint),
		notifications: make(map[uint][]any),
		counts:        make(map[uint]NavCounts),
	}
}

func (s *fakeChatStore) ResolveThread(ctx context.Context, a, b uint) (uint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lo, hi := repository.CanonicalPair(a, b)
	key := [2]uint{lo, hi}
	if id, ok := s.threads[key]; ok {
		return id, false, nil
	}
	s.nextThread++
	s.threads[key] = s.nextThread
	s.peers[s.nextThread] = key
	return s.nextThread, true, nil
}

func (s *fakeChatStore) ThreadPeer(ctx context.Context, threadID, userID uint) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pair := s.peers[threadID]
	if pair[0] == userID {
		return pair[1], nil
	}
	return pair[0], nil
}

func (s *fakeChatStore) SaveMessage(ctx context.Context, msg *StoredMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMessage++
	msg.ID = s.nextMessage
	msg.CreatedAt = time.Now()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeChatStore) MarkThreadSeen(ctx context.Context, threadID, seenBy uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seenCalls = append(s.seenCalls, threadID)
	return 1, nil
}

func (s *fakeChatStore) CreateNotification(ctx context.Context, userID uint, kind string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[userID] = append(s.notifications[userID], payload)
	return nil
}

func (s *fakeChatStore) NavCounts(ctx context.Context, userID uint) (NavCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[userID], nil
}

// fakeLikeCounter returns canned counts per product.
type fakeLikeCounter struct {
	mu     sync.Mutex
	counts map[uint64]int64
}

func (f *fakeLikeCounter) CountLikes(ctx context.Context, productID uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[productID], nil
}

// fakeSnapshotStore serves fixed snapshot rows.
type fakeSnapshotStore struct {
	pages  []repository.PageAggregate
	funnel repository.FunnelAggregate
}

func (f *fakeSnapshotStore) TopPagesSnapshot(ctx context.Context) ([]repository.PageAggregate, error) {
	return f.pages, nil
}

func (f *fakeSnapshotStore) FunnelSnapshot(ctx context.Context) (repository.FunnelAggregate, error) {
	return f.funnel, nil
}

type fixedActive struct{ n int }

func (f fixedActive) ActiveNow() int { return f.n }
