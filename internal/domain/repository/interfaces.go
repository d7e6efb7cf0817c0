package repository

import (
	"context"

	"MandiPulse/internal/domain/models"
)

// PriceStream is a live feed of intraday price ticks.
type PriceStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.PriceTick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher emits pipeline events to the bus. Notification delivery
// itself is an external collaborator consuming these events.
type Publisher interface {
	PublishPricePoints(ctx context.Context, points []models.PricePoint) error
	PublishAlertEvent(ctx context.Context, ev models.AlertEvent) error
	Close() error
}

// Metrics records pipeline observability signals.
type Metrics interface {
	RecordFetched(source string, n int)
	RecordRejected(source string, n int)
	RecordMerged(series string, n int)
	RecordAlertFired(series string)
	RecordError(kind string)
	RecordLastPrice(series string, price float64)
	RecordLatency(op string, seconds float64)
}
