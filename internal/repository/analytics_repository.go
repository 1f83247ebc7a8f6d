package repository

import (
	"context"
	"time"

	"github.com/softadastra-group/softadastra-chat/internal/models"

	"gorm.io/gorm"
)

// PageAggregate is one row of the durable top-pages snapshot.
type PageAggregate struct {
	Path     string `json:"path"`
	Views    int64  `json:"views"`
	Visitors int64  `json:"visitors"`
}

// FunnelAggregate holds the durable funnel totals.
type FunnelAggregate struct {
	ProductView   int64 `json:"product_view"`
	AddToCart     int64 `json:"add_to_cart"`
	CheckoutStart int64 `json:"checkout_start"`
}

type AnalyticsRepository interface {
	InsertEvents(ctx context.Context, events []models.AnalyticsEvent) error
	TopPages(ctx context.Context, since time.Time, limit int) ([]PageAggregate, error)
	FunnelTotals(ctx context.Context, since time.Time) (FunnelAggregate, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) InsertEvents(ctx context.Context, events []models.AnalyticsEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(events, 100).Error
}

func (r *analyticsRepository) TopPages(ctx context.Context, since time.Time, limit int) ([]PageAggregate, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var rows []PageAggregate
	err := r.db.WithContext(ctx).
		Model(&models.AnalyticsEvent{}).
		Select("path, COUNT(*) AS views, COUNT(DISTINCT visitor_id) AS visitors").
		Where("occurred_at >= ?", since).
		Where("kind IN ?", []string{"page_view", "product_view"}).
		Where("path <> ''").
		Group("path").
		Order("views DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *analyticsRepository) FunnelTotals(ctx context.Context, since time.Time) (FunnelAggregate, error) {
	type row struct {
		Step  string
		Total int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.AnalyticsEvent{}).
		Select("CASE WHEN kind = 'product_view' THEN 'product_view' ELSE name END AS step, COUNT(*) AS total").
		Where("occurred_at >= ?", since).
		Where("kind = 'product_view' OR (kind = 'event' AND name IN ?)",
			[]string{"add_to_cart", "checkout_start"}).
		Group("step").
		Scan(&rows).Error
	if err != nil {
		return FunnelAggregate{}, err
	}

	var out FunnelAggregate
	for _, r := range rows {
		switch r.Step {
		case "product_view":
			out.ProductView = r.Total
		case "add_to_cart":
			out.AddToCart = r.Total
		case "checkout_start":
			out.CheckoutStart = r.Total
		}
	}
	return out, nil
}
