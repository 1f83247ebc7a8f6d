package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/softadastra-group/softadastra-chat/internal/analytics"
	"github.com/softadastra-group/softadastra-chat/internal/models"
	"github.com/softadastra-group/softadastra-chat/internal/repository"
)

const topPagesLimit = 20

// EventPublisher forwards ingested events to the firehose topic. Best
// effort; a broker outage must never fail the ingest request.
type EventPublisher interface {
	Publish(key string, event any) error
}

// AnalyticsService normalizes ingested tracking events, feeds the in-memory
// aggregator, persists the durable copies and republishes to Kafka. It also
// serves the snapshot queries for freshly-connected dashboards.
type AnalyticsService struct {
	repo       repository.AnalyticsRepository
	aggregator *analytics.Aggregator
	publisher  EventPublisher

	snapshotWindow time.Duration
}

func NewAnalyticsService(
	repo repository.AnalyticsRepository,
	aggregator *analytics.Aggregator,
	publisher EventPublisher,
	snapshotWindow time.Duration,
) *AnalyticsService {
	if snapshotWindow <= 0 {
		snapshotWindow = 24 * time.Hour
	}
	return &AnalyticsService{
		repo:           repo,
		aggregator:     aggregator,
		publisher:      publisher,
		snapshotWindow: snapshotWindow,
	}
}

// Ingest processes one batch from the tracking snippet. userID is zero for
// anonymous visitors.
func (s *AnalyticsService) Ingest(ctx context.Context, events []models.IngestEvent, userID uint) (int, error) {
	now := time.Now()
	rows := make([]models.AnalyticsEvent, 0, len(events))

	for _, e := range events {
		if !validEventKind(e.Kind) {
			continue
		}
		path := analytics.NormalizePath(e.Path)
		ts := e.Timestamp
		// Clock-skewed or replayed timestamps are clamped to arrival time.
		if ts <= 0 || ts > now.UnixMilli() {
			ts = now.UnixMilli()
		}

		s.aggregator.RecordEvent(analytics.Event{
			Kind:      e.Kind,
			Name:      e.Name,
			Path:      path,
			VisitorID: e.VisitorID,
			Timestamp: ts,
		})

		rows = append(rows, models.AnalyticsEvent{
			Kind:       e.Kind,
			Name:       e.Name,
			Path:       path,
			VisitorID:  e.VisitorID,
			UserID:     userID,
			OccurredAt: time.UnixMilli(ts),
		})

		if s.publisher != nil {
			if err := s.publisher.Publish(e.VisitorID, rows[len(rows)-1]); err != nil {
				slog.Warn("Event publish failed", "kind", e.Kind, "error", err)
			}
		}
	}

	if len(rows) == 0 {
		return 0, nil
	}
	if err := s.repo.InsertEvents(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

/* websocket.SnapshotStore */

func (s *AnalyticsService) TopPagesSnapshot(ctx context.Context) ([]repository.PageAggregate, error) {
	return s.repo.TopPages(ctx, time.Now().Add(-s.snapshotWindow), topPagesLimit)
}

func (s *AnalyticsService) FunnelSnapshot(ctx context.Context) (repository.FunnelAggregate, error) {
	return s.repo.FunnelTotals(ctx, time.Now().Add(-s.snapshotWindow))
}

// ActiveNow exposes the aggregator's live visitor count to HTTP callers.
func (s *AnalyticsService) ActiveNow() int {
	return s.aggregator.ActiveNow()
}

func validEventKind(kind string) bool {
	switch kind {
	case analytics.KindPageView, analytics.KindProductView, analytics.KindEvent:
		return true
	}
	return false
}
