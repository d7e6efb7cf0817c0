package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MandiPulse/internal/domain/repository"
	"MandiPulse/internal/usecase"
	"MandiPulse/pkg/cache"
	pkgch "MandiPulse/pkg/clickhouse"
	"MandiPulse/pkg/config"
	xhttp "MandiPulse/pkg/http"
	pkgkafka "MandiPulse/pkg/kafka"
	applogger "MandiPulse/pkg/logger"
	"MandiPulse/pkg/queue"
)

// Params collects the application's wired dependencies. Optional parts
// (collector, consumer, queue, clickhouse, redis) may be nil and are
// skipped at startup.
type Params struct {
	Cfg              *config.Config
	Logger           *applogger.Logger
	Handler          xhttp.Handler
	Sync             *usecase.SyncUseCase
	Collector        *usecase.FeedCollector
	Consumer         *pkgkafka.Consumer
	SentimentHandler *usecase.KafkaSentimentHandler
	Queue            *queue.RedisQueue
	RedeliveryJob    queue.Job
	Publisher        repository.Publisher
	CHClient         *pkgch.Client
	RedisCache       *cache.RedisCache
}

// App encapsulates the entire application lifecycle.
type App struct {
	p          Params
	httpServer *xhttp.Server
}

// New creates a new App instance.
func New(p Params) *App {
	return &App{p: p}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := a.p.Cfg
	l := a.p.Logger

	a.httpServer = xhttp.NewServer(a.p.Handler,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(l, time.Second),
	)

	// Redelivery queue first so a failed alert publish during startup
	// sync already has somewhere to go.
	if a.p.Queue != nil {
		if a.p.RedeliveryJob != nil {
			a.p.Queue.RegisterJob(a.p.RedeliveryJob)
		}
		if err := a.p.Queue.Start(); err != nil {
			l.Error("queue start error", applogger.Error(err))
			return err
		}
	}

	// Live tick feed
	if a.p.Collector != nil {
		go func() {
			if err := a.p.Collector.Start(ctx); err != nil {
				l.Error("feed collector error", applogger.Error(err))
			}
		}()
		l.Info("feed collector started",
			applogger.Strings("commodities", cfg.Markets.Commodities),
			applogger.Strings("mandis", cfg.Markets.Mandis))
	}

	// Sentiment consumer
	if a.p.Consumer != nil && a.p.SentimentHandler != nil {
		a.p.Consumer.RegisterHandler(a.p.SentimentHandler)
		go func() {
			if err := a.p.Consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.p.SentimentHandler.Topic()))
	}

	// Periodic source sync
	if a.p.Sync != nil && cfg.Sync.Interval > 0 {
		go a.syncLoop(ctx)
		l.Info("sync loop started", applogger.Duration("interval", cfg.Sync.Interval))
	}

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// syncLoop runs one sync immediately, then on every tick.
func (a *App) syncLoop(ctx context.Context) {
	l := a.p.Logger

	run := func() {
		if _, err := a.p.Sync.SyncLatest(ctx); err != nil {
			l.Warn("sync cycle error", applogger.Error(err))
		}
	}
	run()

	ticker := time.NewTicker(a.p.Cfg.Sync.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.p.Logger
	l.Info("shutting down...")

	if a.p.Collector != nil {
		if err := a.p.Collector.Shutdown(ctx); err != nil {
			l.Warn("feed collector stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.p.Cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.p.Consumer != nil {
		if err := a.p.Consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.p.Queue != nil {
		if err := a.p.Queue.Stop(shutdownCtx); err != nil {
			l.Warn("queue stop error", applogger.Error(err))
		}
	}

	if a.p.Publisher != nil {
		if err := a.p.Publisher.Close(); err != nil {
			l.Warn("publisher close error", applogger.Error(err))
		}
	}

	if a.p.CHClient != nil {
		if err := a.p.CHClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if a.p.RedisCache != nil {
		if err := a.p.RedisCache.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
