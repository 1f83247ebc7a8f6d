// Package analytics accumulates ingested tracking events in memory and
// flushes diffs to the live dashboard on a fixed timer, so the database is
// never queried on the hot event path.
package analytics

import (
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"
)

// Event kinds and funnel step names recognized by the aggregator.
const (
	KindPageView    = "page_view"
	KindProductView = "product_view"
	KindEvent       = "event"

	NamePageview      = "pageview"
	StepProductView   = "product_view"
	StepAddToCart     = "add_to_cart"
	StepCheckoutStart = "checkout_start"
)

// Event is one normalized tracking event.
type Event struct {
	Kind      string
	Name      string
	Path      string
	VisitorID string
	Timestamp int64 // epoch ms; zero means "now"
}

// Broadcaster pushes one frame to every connected dashboard socket. Send
// failures to individual sockets are the implementation's problem and must
// never surface here.
type Broadcaster interface {
	Broadcast(frame any)
}

type ActiveNowFrame struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type PageRow struct {
	Path     string `json:"path"`
	Views    int64  `json:"views"`
	Visitors int64  `json:"visitors"`
}

type TopPagesDiffFrame struct {
	Type string    `json:"type"`
	Rows []PageRow `json:"rows"`
}

type FunnelDiffFrame struct {
	Type          string `json:"type"`
	ProductView   int64  `json:"product_view"`
	AddToCart     int64  `json:"add_to_cart"`
	CheckoutStart int64  `json:"checkout_start"`
}

type pageDiff struct {
	views    int64
	visitors map[string]struct{}
}

type funnelCounters struct {
	productView   int64
	addToCart     int64
	checkoutStart int64
}

func (f funnelCounters) empty() bool {
	return f.productView == 0 && f.addToCart == 0 && f.checkoutStart == 0
}

// Aggregator owns the page-diff accumulator, the visitor last-seen table and
// the funnel counters. All state is instance-scoped so tests can run several
// aggregators side by side.
type Aggregator struct {
	mu       sync.Mutex
	pages    map[string]*pageDiff
	lastSeen map[string]int64 // visitor id -> last activity, epoch ms
	funnel   funnelCounters

	broadcaster   Broadcaster
	flushInterval time.Duration
	activeWindow  time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

func NewAggregator(b Broadcaster, flushInterval, activeWindow time.Duration) *Aggregator {
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	if activeWindow <= 0 {
		activeWindow = 5 * time.Minute
	}
	return &Aggregator{
		pages:         make(map[string]*pageDiff),
		lastSeen:      make(map[string]int64),
		broadcaster:   b,
		flushInterval: flushInterval,
		activeWindow:  activeWindow,
		done:          make(chan struct{}),
	}
}

// RecordEvent folds one event into the accumulators.
func (a *Aggregator) RecordEvent(e Event) {
	ts := e.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if e.VisitorID != "" {
		a.lastSeen[e.VisitorID] = ts
	}

	if e.Kind == KindPageView || e.Kind == KindProductView ||
		(e.Kind == KindEvent && e.Name == NamePageview) {
		path := NormalizePath(e.Path)
		diff, ok := a.pages[path]
		if !ok {
			diff = &pageDiff{visitors: make(map[string]struct{})}
			a.pages[path] = diff
		}
		diff.views++
		if e.VisitorID != "" {
			diff.visitors[e.VisitorID] = struct{}{}
		}
	}

	// A product_view is both a page hit and a funnel step.
	switch {
	case e.Kind == KindProductView:
		a.funnel.productView++
	case e.Kind == KindEvent && e.Name == StepProductView:
		a.funnel.productView++
	case e.Kind == KindEvent && e.Name == StepAddToCart:
		a.funnel.addToCart++
	case e.Kind == KindEvent && e.Name == StepCheckoutStart:
		a.funnel.checkoutStart++
	}
}

// ActiveNow counts visitors seen inside the active window, evicting stale
// entries as a side effect so the table does not grow without bound.
func (a *Aggregator) ActiveNow() int {
	cutoff := time.Now().Add(-a.activeWindow).UnixMilli()

	a.mu.Lock()
	defer a.mu.Unlock()
	for visitor, seen := range a.lastSeen {
		if seen < cutoff {
			delete(a.lastSeen, visitor)
		}
	}
	return len(a.lastSeen)
}

// Run drives the periodic flush until Stop is called. It never returns early:
// a panic inside one tick is logged and the ticker keeps firing.
func (a *Aggregator) Run() {
	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.Flush()
		case <-a.done:
			return
		}
	}
}

// Stop cancels the flush timer. Safe to call more than once.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() { close(a.done) })
}

// Flush runs one tick: active-now broadcast (unconditional), page-diff
// broadcast-and-reset, funnel broadcast-and-reset. Each step is isolated so
// a failure in one cannot suppress the others or kill the timer.
func (a *Aggregator) Flush() {
	a.safely("active_now", func() {
		a.broadcaster.Broadcast(ActiveNowFrame{Type: "active_now", Count: a.ActiveNow()})
	})

	pages, funnel := a.drain()

	a.safely("top_pages_diff", func() {
		if len(pages) == 0 {
			return
		}
		a.broadcaster.Broadcast(TopPagesDiffFrame{Type: "top_pages_diff", Rows: pages})
	})

	a.safely("funnel_diff", func() {
		if funnel.empty() {
			return
		}
		a.broadcaster.Broadcast(FunnelDiffFrame{
			Type:          "funnel_diff",
			ProductView:   funnel.productView,
			AddToCart:     funnel.addToCart,
			CheckoutStart: funnel.checkoutStart,
		})
	})
}

// drain snapshots and clears the page and funnel accumulators atomically
// with respect to RecordEvent, so no event is lost or double-counted across
// consecutive flushes.
func (a *Aggregator) drain() ([]PageRow, funnelCounters) {
	a.mu.Lock()
	pages := a.pages
	a.pages = make(map[string]*pageDiff)
	funnel := a.funnel
	a.funnel = funnelCounters{}
	a.mu.Unlock()

	rows := make([]PageRow, 0, len(pages))
	for path, diff := range pages {
		rows = append(rows, PageRow{
			Path:     path,
			Views:    diff.views,
			Visitors: int64(len(diff.visitors)),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Views != rows[j].Views {
			return rows[i].Views > rows[j].Views
		}
		return rows[i].Path < rows[j].Path
	})
	return rows, funnel
}

func (a *Aggregator) safely(step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Analytics flush step panicked", "step", step, "panic", r)
		}
	}()
	fn()
}

// NormalizePath reduces a raw location to a clean pathname: query string and
// fragment stripped, empty or unparseable input collapsed to "/".
func NormalizePath(raw string) string {
	if raw == "" {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
