package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureBroadcaster struct {
	frames []any
}

func (c *captureBroadcaster) Broadcast(frame any) {
	c.frames = append(c.frames, frame)
}

func (c *captureBroadcaster) framesOfType(t string) []any {
	var out []any
	for _, f := range c.frames {
		switch v := f.(type) {
		case ActiveNowFrame:
			if v.Type == t {
				out = append(out, v)
			}
		case TopPagesDiffFrame:
			if v.Type == t {
				out = append(out, v)
			}
		case FunnelDiffFrame:
			if v.Type == t {
				out = append(out, v)
			}
		}
	}
	return out
}

func newTestAggregator(b Broadcaster) *Aggregator {
	return NewAggregator(b, 2*time.Second, 5*time.Minute)
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/shop", NormalizePath("/shop?x=1"))
	assert.Equal(t, "/shop", NormalizePath("/shop"))
	assert.Equal(t, "/", NormalizePath(""))
	assert.Equal(t, "/", NormalizePath("?only=query"))
	assert.Equal(t, "/a/b", NormalizePath("/a/b#frag"))
}

func TestPageDiffMergesQueryVariants(t *testing.T) {
	b := &captureBroadcaster{}
	a := newTestAggregator(b)

	a.RecordEvent(Event{Kind: KindPageView, Path: "/shop?x=1", VisitorID: "v1"})
	a.RecordEvent(Event{Kind: KindPageView, Path: "/shop", VisitorID: "v2"})
	a.Flush()

	diffs := b.framesOfType("top_pages_diff")
	require.Len(t, diffs, 1)
	rows := diffs[0].(TopPagesDiffFrame).Rows
	require.Len(t, rows, 1)
	assert.Equal(t, PageRow{Path: "/shop", Views: 2, Visitors: 2}, rows[0])
}

func TestActiveNowBroadcastUnconditional(t *testing.T) {
	b := &captureBroadcaster{}
	a := newTestAggregator(b)

	a.Flush()
	a.Flush()

	frames := b.framesOfType("active_now")
	require.Len(t, frames, 2)
	assert.Equal(t, 0, frames[0].(ActiveNowFrame).Count)
}

func TestActiveNowEviction(t *testing.T) {
	b := &captureBroadcaster{}
	a := newTestAggregator(b)

	stale := time.Now().Add(-6 * time.Minute).UnixMilli()
	a.RecordEvent(Event{Kind: KindEvent, Name: "click", VisitorID: "old", Timestamp: stale})
	a.RecordEvent(Event{Kind: KindEvent, Name: "click", VisitorID: "fresh"})

	assert.Equal(t, 1, a.ActiveNow())

	// Eviction is a side effect: the stale visitor is gone from the table.
	a.mu.Lock()
	_, stillThere := a.lastSeen["old"]
	a.mu.Unlock()
	assert.False(t, stillThere)
}

func TestFunnelResetAfterBroadcast(t *testing.T) {
	b := &captureBroadcaster{}
	a := newTestAggregator(b)

	a.RecordEvent(Event{Kind: KindProductView, Path: "/p/1", VisitorID: "v1"})
	a.RecordEvent(Event{Kind: KindEvent, Name: StepAddToCart, VisitorID: "v1"})
	a.RecordEvent(Event{Kind: KindEvent, Name: StepCheckoutStart, VisitorID: "v1"})
	a.Flush()

	funnels := b.framesOfType("funnel_diff")
	require.Len(t, funnels, 1)
	f := funnels[0].(FunnelDiffFrame)
	assert.Equal(t, int64(1), f.ProductView)
	assert.Equal(t, int64(1), f.AddToCart)
	assert.Equal(t, int64(1), f.CheckoutStart)

	// With no new events the next flush emits no funnel frame at all.
	a.Flush()
	assert.Len(t, b.framesOfType("funnel_diff"), 1)
}

func TestProductViewCountsPageHitAndFunnel(t *testing.T) {
	b := &captureBroadcaster{}
	a := newTestAggregator(b)

	a.RecordEvent(Event{Kind: KindProductView, Path: "/products/9", VisitorID: "v1"})
	a.Flush()

	require.Len(t, b.framesOfType("top_pages_diff"), 1)
	require.Len(t, b.framesOfType("funnel_diff"), 1)
}

func TestFlushAtomicity(t *testing.T) {
	b := &captureBroadcaster{}
	a := newTestAggregator(b)

	a.RecordEvent(Event{Kind: KindPageView, Path: "/first", VisitorID: "v1"})
	a.Flush()
	a.RecordEvent(Event{Kind: KindPageView, Path: "/second", VisitorID: "v1"})
	a.Flush()

	diffs := b.framesOfType("top_pages_diff")
	require.Len(t, diffs, 2)
	assert.Equal(t, "/first", diffs[0].(TopPagesDiffFrame).Rows[0].Path)
	assert.Equal(t, "/second", diffs[1].(TopPagesDiffFrame).Rows[0].Path)
	// No double counting: each diff carries exactly one row with one view.
	assert.Equal(t, int64(1), diffs[0].(TopPagesDiffFrame).Rows[0].Views)
	assert.Equal(t, int64(1), diffs[1].(TopPagesDiffFrame).Rows[0].Views)
}

type panickyBroadcaster struct {
	inner captureBroadcaster
}

func (p *panickyBroadcaster) Broadcast(frame any) {
	if _, ok := frame.(ActiveNowFrame); ok {
		panic("socket write exploded")
	}
	p.inner.Broadcast(frame)
}

func TestFlushSurvivesBroadcastPanic(t *testing.T) {
	p := &panickyBroadcaster{}
	a := newTestAggregator(p)

	a.RecordEvent(Event{Kind: KindPageView, Path: "/shop", VisitorID: "v1"})
	a.RecordEvent(Event{Kind: KindEvent, Name: StepAddToCart, VisitorID: "v1"})

	// The active_now step panics, but the other two broadcasts still run.
	assert.NotPanics(t, func() { a.Flush() })
	assert.Len(t, p.inner.framesOfType("top_pages_diff"), 1)
	assert.Len(t, p.inner.framesOfType("funnel_diff"), 1)
}

func TestStopCancelsTimer(t *testing.T) {
	b := &captureBroadcaster{}
	a := NewAggregator(b, 10*time.Millisecond, time.Minute)

	done := make(chan struct{})
	go func() {
		a.Run()
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	a.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	a.Stop() // idempotent
}
