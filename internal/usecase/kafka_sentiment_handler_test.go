package usecase

import (
	"context"
	"testing"

	"MandiPulse/internal/domain/models"
	internalrepo "MandiPulse/internal/repository"
)

func TestSentimentHandlerStoresScore(t *testing.T) {
	store := internalrepo.NewMemorySentimentStore()
	h := NewKafkaSentimentHandler("sentiment", store, noopMetrics{})

	msg := []byte(`{"commodity":"wheat","date":"2024-10-19","score":0.4,"article_ids":["a1","a2"]}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	scores, err := store.Recent(context.Background(), "wheat", testNow, 7)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(scores) != 1 {
		t.Fatalf("scores = %d, want 1", len(scores))
	}
	if scores[0].Label != models.SentimentPositive {
		t.Fatalf("label = %q, want positive", scores[0].Label)
	}
	if len(scores[0].SourceArticleIDs) != 2 {
		t.Fatalf("article ids = %v", scores[0].SourceArticleIDs)
	}
}

func TestSentimentHandlerTrustsSuppliedLabel(t *testing.T) {
	store := internalrepo.NewMemorySentimentStore()
	h := NewKafkaSentimentHandler("sentiment", store, noopMetrics{})

	// The classifier's label wins over the score-derived one; an unknown
	// label falls back to derivation.
	msgs := []struct {
		body []byte
		want models.SentimentLabel
	}{
		{[]byte(`{"commodity":"wheat","date":"2024-10-18","score":0.4,"label":"neutral"}`), models.SentimentNeutral},
		{[]byte(`{"commodity":"wheat","date":"2024-10-19","score":0.4,"label":"bullish"}`), models.SentimentPositive},
	}
	for _, m := range msgs {
		if err := h.Handle(context.Background(), m.body); err != nil {
			t.Fatalf("Handle %s: %v", m.body, err)
		}
	}

	scores, err := store.Recent(context.Background(), "wheat", testNow, 7)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("scores = %d, want 2", len(scores))
	}
	byDate := make(map[string]models.SentimentLabel)
	for _, s := range scores {
		byDate[s.Date.Format("2006-01-02")] = s.Label
	}
	if byDate["2024-10-18"] != models.SentimentNeutral {
		t.Fatalf("supplied label ignored: %q", byDate["2024-10-18"])
	}
	if byDate["2024-10-19"] != models.SentimentPositive {
		t.Fatalf("unknown label not derived from score: %q", byDate["2024-10-19"])
	}
}

func TestSentimentHandlerRejectsBadMessages(t *testing.T) {
	store := internalrepo.NewMemorySentimentStore()
	h := NewKafkaSentimentHandler("sentiment", store, noopMetrics{})

	bad := [][]byte{
		[]byte(`not json`),
		[]byte(`{"date":"2024-10-19","score":0.4}`),
		[]byte(`{"commodity":"wheat","date":"2024-10-19","score":1.5}`),
		[]byte(`{"commodity":"wheat","date":"19-10-2024","score":0.4}`),
	}
	for _, msg := range bad {
		if err := h.Handle(context.Background(), msg); err == nil {
			t.Fatalf("message %s accepted", msg)
		}
	}
}
