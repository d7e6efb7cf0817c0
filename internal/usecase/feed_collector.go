package usecase

import (
	"context"

	"MandiPulse/internal/domain/models"
	drepo "MandiPulse/internal/domain/repository"
	mid "MandiPulse/internal/middleware"
)

// FeedCollector collects live ticks from the price stream and pushes
// them through the tick pipeline.
type FeedCollector struct {
	stream  drepo.PriceStream
	proc    *TickProcessor
	metrics drepo.Metrics
	pipe    *mid.TickPipeline
}

// NewFeedCollector creates a new FeedCollector instance.
func NewFeedCollector(stream drepo.PriceStream, proc *TickProcessor, metrics drepo.Metrics, pipe *mid.TickPipeline) *FeedCollector {
	return &FeedCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the price stream is connected.
func (c *FeedCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *FeedCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	tickCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, tickCh, errCh)
	return nil
}

// consume drains one read session at a time. The stream's read goroutine
// closes both channels when it dies; once both are closed the collector
// reconnects and opens a fresh session with a new Read call.
func (c *FeedCollector) consume(ctx context.Context, tickCh <-chan *models.PriceTick, errCh <-chan error) {
	for {
		if tickCh == nil && errCh == nil {
			if !c.reestablish(ctx) {
				return
			}
			tickCh, errCh = c.stream.Read(ctx)
		}
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				c.metrics.RecordError("stream")
			}
		case t, ok := <-tickCh:
			if !ok {
				tickCh = nil
				continue
			}
			if t == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, t)
			} else {
				_ = c.proc.Process(ctx, t)
			}
		}
	}
}

// reestablish reconnects until it succeeds or ctx is cancelled. The
// stream applies its own delay between attempts.
func (c *FeedCollector) reestablish(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		if err := c.stream.Reconnect(ctx); err != nil {
			c.metrics.RecordError("stream_reconnect")
			continue
		}
		return true
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *FeedCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
