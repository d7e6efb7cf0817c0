package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"MandiPulse/internal/domain/models"
)

// scriptedStream fails its first read session and serves a buffered
// tick from the second.
type scriptedStream struct {
	reads      atomic.Int32
	reconnects atomic.Int32
	tick       *models.PriceTick
}

func (s *scriptedStream) Connect(context.Context) error   { return nil }
func (s *scriptedStream) Subscribe(context.Context) error { return nil }
func (s *scriptedStream) Close() error                    { return nil }
func (s *scriptedStream) IsConnected() bool               { return true }

func (s *scriptedStream) Reconnect(context.Context) error {
	s.reconnects.Add(1)
	return nil
}

func (s *scriptedStream) Read(context.Context) (<-chan *models.PriceTick, <-chan error) {
	ticks := make(chan *models.PriceTick, 1)
	errs := make(chan error, 1)
	if s.reads.Add(1) == 1 {
		errs <- errors.New("read failed")
		close(ticks)
		close(errs)
		return ticks, errs
	}
	ticks <- s.tick
	return ticks, errs
}

type chanEvaluator struct {
	evaluated chan evalCall
}

func (e *chanEvaluator) Evaluate(_ context.Context, key models.SeriesKey, value float64, at time.Time) ([]*models.PriceAlert, error) {
	e.evaluated <- evalCall{key, value, at}
	return nil, nil
}

func TestFeedCollectorResumesAfterStreamError(t *testing.T) {
	key := models.SeriesKey{Commodity: "wheat", Market: "azadpur"}
	stream := &scriptedStream{tick: &models.PriceTick{Key: key, Price: 2450, At: testNow}}
	eval := &chanEvaluator{evaluated: make(chan evalCall, 1)}
	c := NewFeedCollector(stream, NewTickProcessor(eval, noopMetrics{}), noopMetrics{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case call := <-eval.evaluated:
		if call.key != key || call.value != 2450 {
			t.Fatalf("evaluated %+v", call)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("tick from the reconnected stream never processed")
	}
	if got := stream.reconnects.Load(); got != 1 {
		t.Fatalf("reconnects = %d, want 1", got)
	}
	if got := stream.reads.Load(); got != 2 {
		t.Fatalf("read sessions = %d, want 2", got)
	}
}
