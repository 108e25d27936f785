package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"LevelScan/internal/handler/api"
	"LevelScan/internal/usecase"
	pkgch "LevelScan/pkg/clickhouse"
	"LevelScan/pkg/config"
	xhttp "LevelScan/pkg/http"
	pkgkafka "LevelScan/pkg/kafka"
	applogger "LevelScan/pkg/logger"
	pkgpg "LevelScan/pkg/postgres"
	"LevelScan/pkg/queue"
)

// Deps bundles everything the application lifecycle owns.
type Deps struct {
	Handler         *api.Handler
	Sweep           *usecase.Sweep
	Collector       *usecase.CandleCollector
	CapCollector    *usecase.MarketCapCollector
	StreamCollector *usecase.CandleStreamCollector
	Consumer        *pkgkafka.Consumer
	CandlesHandler  *usecase.KafkaCandlesHandler
	QueuePublisher  *queue.RedisQueue
	QueueWorker     *queue.RedisQueue
	ClickHouse      *pkgch.Client
	Postgres        *pkgpg.Client
	Producer        *pkgkafka.Producer
}

// App encapsulates the entire application lifecycle: HTTP server, queue
// workers, Kafka consumer, live stream, and the sweep/collect schedulers.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	deps       Deps
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, logger *applogger.Logger, deps Deps) *App {
	return &App{cfg: cfg, logger: logger, deps: deps}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger

	// Aggregate error logs onto the queue so repeated failures show up as
	// one entry instead of a flood.
	if a.deps.QueuePublisher != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          usecase.ErrorLogType,
			Publisher:      a.deps.QueuePublisher,
		})
	}

	a.httpServer = xhttp.NewServer(a.deps.Handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Queue workers: candle refresh jobs.
	if a.deps.QueueWorker != nil {
		if err := a.deps.QueueWorker.Start(); err != nil {
			l.Error("queue worker start error", applogger.Error(err))
			return err
		}
		l.Info("queue workers started")
	}

	// Kafka consumer: live candles into ClickHouse.
	if a.deps.Consumer != nil && a.deps.CandlesHandler != nil {
		a.deps.Consumer.RegisterHandler(a.deps.CandlesHandler)
		go func() {
			if err := a.deps.Consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.deps.CandlesHandler.Topic()))
	}

	// Live kline stream into Kafka.
	if a.deps.StreamCollector != nil {
		go func() {
			if err := a.deps.StreamCollector.Start(ctx); err != nil {
				l.Error("stream collector error", applogger.Error(err))
			}
		}()
		l.Info("stream collector started", applogger.Strings("symbols", a.cfg.Binance.StreamSymbols))
	}

	go a.runCollectLoop(ctx)
	go a.runSweepLoop(ctx)

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// runCollectLoop schedules candle collection and market cap sampling. The
// first cycle runs immediately so a fresh deployment has data to sweep.
func (a *App) runCollectLoop(ctx context.Context) {
	if a.deps.Collector == nil {
		return
	}

	run := func() {
		if err := a.deps.Collector.RunCollect(ctx); err != nil {
			a.logger.Error("collect cycle error", applogger.Error(err))
		}
		if a.deps.CapCollector != nil {
			if err := a.deps.CapCollector.RunFetch(ctx); err != nil {
				a.logger.Warn("market cap fetch error", applogger.Error(err))
			}
		}
	}

	run()
	ticker := time.NewTicker(a.cfg.Analysis.CollectInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			run()
		case <-ctx.Done():
			return
		}
	}
}

// runSweepLoop schedules the analysis sweep. The first sweep waits one full
// interval so the initial collection has time to land.
func (a *App) runSweepLoop(ctx context.Context) {
	if a.deps.Sweep == nil {
		return
	}

	ticker := time.NewTicker(a.cfg.Analysis.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			signals, err := a.deps.Sweep.RunSweep(ctx)
			if err != nil {
				a.logger.Error("sweep error", applogger.Error(err))
				continue
			}
			a.logger.Info("sweep finished", applogger.Int("signals", len(signals)))
		case <-ctx.Done():
			return
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	l := a.logger
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.deps.StreamCollector != nil {
		if err := a.deps.StreamCollector.Shutdown(ctx); err != nil {
			l.Warn("stream collector stop error", applogger.Error(err))
		}
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.deps.Consumer != nil {
		if err := a.deps.Consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.deps.QueueWorker != nil {
		if err := a.deps.QueueWorker.Stop(ctx); err != nil {
			l.Warn("queue worker stop error", applogger.Error(err))
		}
	}

	if a.deps.Producer != nil {
		if err := a.deps.Producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.deps.ClickHouse != nil {
		if err := a.deps.ClickHouse.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if a.deps.Postgres != nil {
		if err := a.deps.Postgres.Close(); err != nil {
			l.Warn("postgres close error", applogger.Error(err))
		}
	}

	l.RemoveCollector()
	l.Info("shutdown complete")
	return nil
}
