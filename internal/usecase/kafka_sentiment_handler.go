package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MandiPulse/internal/domain/models"
	domrepo "MandiPulse/internal/domain/repository"
	pkgkafka "MandiPulse/pkg/kafka"
)

// KafkaSentimentHandler consumes sentiment scores produced by the
// external news classifier and writes them to the sentiment store.
type KafkaSentimentHandler struct {
	topic   string
	store   domrepo.SentimentStore
	metrics domrepo.Metrics
}

func NewKafkaSentimentHandler(topic string, store domrepo.SentimentStore, metrics domrepo.Metrics) *KafkaSentimentHandler {
	return &KafkaSentimentHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaSentimentHandler) Topic() string { return h.topic }

// incoming message schema: {commodity, date, score, label, article_ids}
func (h *KafkaSentimentHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Commodity  string   `json:"commodity"`
		Date       string   `json:"date"`
		Score      float64  `json:"score"`
		Label      string   `json:"label"`
		ArticleIDs []string `json:"article_ids"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.Commodity == "" {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("sentiment message without commodity")
	}
	if m.Score < -1 || m.Score > 1 {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("sentiment score %v out of range", m.Score)
	}
	date, err := time.Parse("2006-01-02", m.Date)
	if err != nil {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("sentiment message date: %w", err)
	}

	start := time.Now()
	err = h.store.Put(ctx, models.SentimentScore{
		Commodity:        m.Commodity,
		Date:             models.Day(date.UTC()),
		Score:            m.Score,
		Label:            models.LabelOrDerive(m.Label, m.Score),
		SourceArticleIDs: m.ArticleIDs,
	})
	h.metrics.RecordLatency("sentiment_store_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSentimentHandler)(nil)
