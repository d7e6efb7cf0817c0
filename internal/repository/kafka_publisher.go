package repository

import (
	"context"

	"MandiPulse/internal/domain/models"
	domrepo "MandiPulse/internal/domain/repository"
	pkgkafka "MandiPulse/pkg/kafka"
	"MandiPulse/pkg/util"
)

// KafkaPublisher implements Publisher for Kafka. Points and alert events
// go to separate topics, both keyed by series so one series stays in
// partition order.
type KafkaPublisher struct {
	producer    *pkgkafka.Producer
	pointsTopic string
	alertsTopic string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, pointsTopic, alertsTopic string) domrepo.Publisher {
	return &KafkaPublisher{producer: producer, pointsTopic: pointsTopic, alertsTopic: alertsTopic}
}

func pointValue(p models.PricePoint) map[string]interface{} {
	return map[string]interface{}{
		"commodity":    p.Key.Commodity,
		"market":       p.Key.Market,
		"date":         util.DayKey(p.Date),
		"unit":         string(p.Unit),
		"min":          p.Min,
		"max":          p.Max,
		"avg":          p.Average,
		"sources":      p.SourceIDs,
		"interpolated": p.Interpolated,
	}
}

func (p *KafkaPublisher) PublishPricePoints(ctx context.Context, points []models.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(points))
	for i, point := range points {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(point.Key.String()),
			Value: pointValue(point),
		}
	}
	return p.producer.PublishBatch(ctx, p.pointsTopic, msgs)
}

func (p *KafkaPublisher) PublishAlertEvent(ctx context.Context, ev models.AlertEvent) error {
	return p.producer.Publish(ctx, p.alertsTopic, []byte(ev.Key.String()), map[string]interface{}{
		"alert_id":     ev.AlertID,
		"user_id":      ev.UserID,
		"commodity":    ev.Key.Commodity,
		"market":       ev.Key.Market,
		"direction":    string(ev.Direction),
		"target_price": ev.TargetPrice,
		"value":        ev.Value,
		"at":           ev.At.Unix(),
	})
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
