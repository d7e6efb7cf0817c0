package repository

import (
	"context"

	"MandiPulse/internal/domain/models"
	domrepo "MandiPulse/internal/domain/repository"
	"MandiPulse/pkg/queue"
)

const alertEventMsgType = "alert_event"

// QueuedPublisher decorates a Publisher with a redis-backed redelivery
// path for alert events. An alert fires exactly once, so a publish that
// fails at the broker would otherwise lose the notification; instead
// the event is parked on the queue and retried out of band. Price point
// publishes pass through untouched.
type QueuedPublisher struct {
	inner domrepo.Publisher
	q     queue.QueueService
}

func NewQueuedPublisher(inner domrepo.Publisher, q queue.QueueService) domrepo.Publisher {
	return &QueuedPublisher{inner: inner, q: q}
}

func (p *QueuedPublisher) PublishPricePoints(ctx context.Context, points []models.PricePoint) error {
	return p.inner.PublishPricePoints(ctx, points)
}

func (p *QueuedPublisher) PublishAlertEvent(ctx context.Context, ev models.AlertEvent) error {
	err := p.inner.PublishAlertEvent(ctx, ev)
	if err == nil || p.q == nil {
		return err
	}
	if qerr := p.q.PublishMessage(ctx, alertEventMsgType, ev); qerr != nil {
		return err
	}
	return nil
}

func (p *QueuedPublisher) Close() error {
	return p.inner.Close()
}

// AlertRedeliveryJob drains parked alert events back to the bus. Queue
// retry and dead-letter handling apply on repeated failure.
type AlertRedeliveryJob struct {
	pub domrepo.Publisher
}

func NewAlertRedeliveryJob(pub domrepo.Publisher) *AlertRedeliveryJob {
	return &AlertRedeliveryJob{pub: pub}
}

func (j *AlertRedeliveryJob) Name() string { return "alert-redelivery" }

func (j *AlertRedeliveryJob) Type() string { return alertEventMsgType }

func (j *AlertRedeliveryJob) Handle(ctx context.Context, payload interface{}) error {
	ev, err := queue.ParsePayload[models.AlertEvent](payload)
	if err != nil {
		return err
	}
	return j.pub.PublishAlertEvent(ctx, *ev)
}

var _ queue.Job = (*AlertRedeliveryJob)(nil)
