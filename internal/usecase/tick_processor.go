package usecase

import (
	"context"

	"MandiPulse/internal/domain/models"
	domrepo "MandiPulse/internal/domain/repository"
)

// TickProcessor routes validated live ticks into alert evaluation and
// the last-price gauge. Ticks are intraday signals only; they never
// touch the canonical store.
type TickProcessor struct {
	alerts  AlertEvaluator
	metrics domrepo.Metrics
}

// NewTickProcessor creates a new TickProcessor instance.
func NewTickProcessor(alerts AlertEvaluator, metrics domrepo.Metrics) *TickProcessor {
	return &TickProcessor{alerts: alerts, metrics: metrics}
}

func (p *TickProcessor) Process(ctx context.Context, t *models.PriceTick) error {
	p.metrics.RecordLastPrice(t.Key.String(), t.Price)
	if p.alerts == nil {
		return nil
	}
	_, err := p.alerts.Evaluate(ctx, t.Key, t.Price, t.At)
	return err
}
