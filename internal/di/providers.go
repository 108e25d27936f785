package di

import (
	"context"
	"fmt"
	"time"

	"LevelScan/internal/domain/repository"
	"LevelScan/internal/handler/api"
	mid "LevelScan/internal/middleware"
	internalrepo "LevelScan/internal/repository"
	"LevelScan/internal/service/binance"
	icache "LevelScan/internal/service/cache"
	"LevelScan/internal/service/marketcap"
	"LevelScan/internal/services/alerts"
	"LevelScan/internal/services/fibo"
	"LevelScan/internal/services/indicators"
	"LevelScan/internal/services/levels"
	"LevelScan/internal/services/scoring"
	"LevelScan/internal/services/trend"
	"LevelScan/internal/usecase"
	pkgcache "LevelScan/pkg/cache"
	pkgch "LevelScan/pkg/clickhouse"
	"LevelScan/pkg/config"
	pkgkafka "LevelScan/pkg/kafka"
	applogger "LevelScan/pkg/logger"
	"LevelScan/pkg/metrics"
	pkgpg "LevelScan/pkg/postgres"
	"LevelScan/pkg/queue"
	"LevelScan/pkg/server"

	kafkago "github.com/segmentio/kafka-go"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	l, err := applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates the ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvidePostgresClient creates the Postgres client and runs schema setup.
func ProvidePostgresClient(cfg *config.Config) (*pkgpg.Client, error) {
	client, err := pkgpg.NewClient(
		pkgpg.WithHost(cfg.Postgres.Host),
		pkgpg.WithPort(cfg.Postgres.Port),
		pkgpg.WithDatabase(cfg.Postgres.Database),
		pkgpg.WithCredentials(cfg.Postgres.User, cfg.Postgres.Password),
		pkgpg.WithSSLMode(cfg.Postgres.SSLMode),
		pkgpg.WithMaxConnections(cfg.Postgres.MaxOpen, cfg.Postgres.MaxIdle),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := internalrepo.InitPostgresSchema(ctx, client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return client, nil
}

// ProvideCandleStore creates the ClickHouse candle store with its schema.
func ProvideCandleStore(chClient *pkgch.Client, l *applogger.Logger) (repository.CandleStore, error) {
	store := internalrepo.NewCHCandleStore(chClient)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

func ProvideLevelStore(pg *pkgpg.Client) repository.LevelStore {
	return internalrepo.NewPGLevelStore(pg)
}

func ProvideTrendStore(pg *pkgpg.Client) repository.TrendStore {
	return internalrepo.NewPGTrendStore(pg)
}

func ProvideIndicatorStore(pg *pkgpg.Client) repository.IndicatorStore {
	return internalrepo.NewPGIndicatorStore(pg)
}

func ProvideAlertStore(pg *pkgpg.Client) repository.AlertStore {
	return internalrepo.NewPGAlertStore(pg)
}

func ProvideSignalStore(pg *pkgpg.Client) repository.SignalStore {
	return internalrepo.NewPGSignalStore(pg)
}

func ProvideMarketCapStore(pg *pkgpg.Client) repository.MarketCapStore {
	return internalrepo.NewPGMarketCapStore(pg)
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideSignalPublisher fans persisted signals out to Kafka.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalsTopic)
}

// ProvideBinanceClient creates the exchange REST client.
func ProvideBinanceClient(cfg *config.Config) *binance.Client {
	return binance.New(
		cfg.Binance.RestURL,
		cfg.Binance.FuturesURL,
		cfg.Binance.Quote,
		binance.WithCandleLimit(cfg.Binance.CandleLimit),
		binance.WithRequestTimeout(cfg.Binance.RequestTimeout),
		binance.WithFetchRPS(cfg.Binance.FetchRPS),
	)
}

func ProvideMarketCapClient(cfg *config.Config) *marketcap.Client {
	return marketcap.New(cfg.MarketCap.URL, cfg.MarketCap.CacheTTL)
}

// ProvideRedisCache creates the shared Redis connection. The queue and the
// API response cache both ride on it.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// QueuePublisher and QueueWorker give the injector distinct types for the
// two queue roles. Either may wrap nil when Redis is disabled.
type QueuePublisher struct{ *queue.RedisQueue }

type QueueWorker struct{ *queue.RedisQueue }

// ProvideQueuePublisher creates the producer side of the refresh queue.
func ProvideQueuePublisher(l *applogger.Logger, rc *pkgcache.RedisCache) QueuePublisher {
	if rc == nil {
		return QueuePublisher{}
	}
	return QueuePublisher{queue.NewRedisPublisher(l, rc.Client())}
}

// ProvideQueueWorker creates the worker side of the queue with every job
// registered. The error-log drain rides the same consumer as the refresh
// jobs; without it collector batches would dead-end in dispatch.
func ProvideQueueWorker(
	l *applogger.Logger,
	rc *pkgcache.RedisCache,
	refresh *usecase.CandleRefreshJob,
) QueueWorker {
	if rc == nil {
		return QueueWorker{}
	}
	return QueueWorker{queue.NewRedisConsumer(l, &queue.QueueConfig{
		Workers:    4,
		RetryLimit: 3,
		RetryDelay: 5 * time.Second,
	}, rc.Client(), []queue.Job{refresh, usecase.NewErrorLogJob(l)})}
}

func ProvideCandleRefreshJob(
	source *binance.Client,
	store repository.CandleStore,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.CandleRefreshJob {
	return usecase.NewCandleRefreshJob(source, store, m, l)
}

func ProvideCandleCollector(
	cfg *config.Config,
	source *binance.Client,
	pub QueuePublisher,
	store repository.CandleStore,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.CandleCollector {
	return usecase.NewCandleCollector(source, pub.RedisQueue, store, m, l,
		cfg.Binance.CandleLimit, cfg.Analysis.CandleRetention)
}

func ProvideMarketCapCollector(
	cfg *config.Config,
	client *marketcap.Client,
	store repository.MarketCapStore,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.MarketCapCollector {
	return usecase.NewMarketCapCollector(client, store, m, l, cfg.MarketCap.Days)
}

// ProvideSweep assembles the full analysis pipeline.
func ProvideSweep(
	cfg *config.Config,
	candles repository.CandleStore,
	levelStore repository.LevelStore,
	trends repository.TrendStore,
	indicatorStore repository.IndicatorStore,
	alertStore repository.AlertStore,
	signals repository.SignalStore,
	caps repository.MarketCapStore,
	source *binance.Client,
	publisher repository.SignalPublisher,
	rc *pkgcache.RedisCache,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Sweep {
	// the tradable pair universe barely changes between sweeps; keep it in
	// memory, backed by redis when it is around
	var uniCache pkgcache.Service = pkgcache.NewMemoryCache()
	if rc != nil {
		uniCache = pkgcache.NewLayeredCache(rc)
	}
	universe := internalrepo.NewCachedUniverse(source, uniCache, cfg.Analysis.CollectInterval, l)

	return usecase.NewSweep(cfg.Analysis, usecase.SweepDeps{
		Candles:    candles,
		Levels:     levelStore,
		Trends:     trends,
		Indicators: indicatorStore,
		Alerts:     alertStore,
		Signals:    signals,
		MarketCap:  caps,
		Universe:   universe,
		Funding:    source,
		Publisher:  publisher,
		Metrics:    m,

		LevelDetector: levels.NewDetector(cfg.Analysis.Levels),
		IndEngine:     indicators.NewEngine(),
		TrendEngine:   trend.NewEngine(),
		AlertDetector: alerts.NewDetector(candles, cfg.Analysis.AlertThresholdPct, l),
		FiboEngine:    fibo.NewEngine(),
		Scorer:        scoring.New(cfg.Analysis.Scoring),

		Logger: l,
	})
}

// ProvideStreamCollector builds the live kline path: WebSocket to pipeline
// to Kafka.
func ProvideStreamCollector(
	cfg *config.Config,
	producer *pkgkafka.Producer,
	m repository.Metrics,
) *usecase.CandleStreamCollector {
	if len(cfg.Binance.StreamSymbols) == 0 {
		return nil
	}
	stream := binance.NewStream(
		cfg.Binance.WebSocketURL,
		cfg.Binance.StreamSymbols,
		"1h",
		cfg.Binance.ReconnectDelay,
		cfg.Binance.PingInterval,
	)
	pub := usecase.NewCandlePublisher(producer, cfg.Kafka.CandlesTopic, m)
	pipe := mid.NewCandlePipeline(pub, m,
		mid.WithMaxRPS(20),
		mid.WithBufferSize(1000),
	)
	return usecase.NewCandleStreamCollector(stream, pipe, m)
}

// ProvideKafkaCandlesHandler registers the candles topic handler.
func ProvideKafkaCandlesHandler(cfg *config.Config, store repository.CandleStore, m repository.Metrics) *usecase.KafkaCandlesHandler {
	return usecase.NewKafkaCandlesHandler(cfg.Kafka.CandlesTopic, store, m)
}

// ProvideHTTPHandler builds the Echo read API.
func ProvideHTTPHandler(
	l *applogger.Logger,
	signals repository.SignalStore,
	levelStore repository.LevelStore,
	trends repository.TrendStore,
	alertStore repository.AlertStore,
	candles repository.CandleStore,
	sweep *usecase.Sweep,
	cfg *config.Config,
) *api.Handler {
	h := api.NewHandler(l, signals, levelStore, trends, alertStore, candles, sweep)
	if cfg.Redis.Enabled {
		h.SetCache(icache.NewRedisCache(icache.RedisConfig{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	} else {
		h.SetCache(icache.NewTTLCache())
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.Handler,
	sweep *usecase.Sweep,
	collector *usecase.CandleCollector,
	capCollector *usecase.MarketCapCollector,
	streamCollector *usecase.CandleStreamCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaCandlesHandler,
	queuePub QueuePublisher,
	queueWorker QueueWorker,
	chClient *pkgch.Client,
	pgClient *pkgpg.Client,
	producer *pkgkafka.Producer,
	m repository.Metrics,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(consumerTimingHook(l, m))
	}
	return server.New(cfg, l, server.Deps{
		Handler:         handler,
		Sweep:           sweep,
		Collector:       collector,
		CapCollector:    capCollector,
		StreamCollector: streamCollector,
		Consumer:        consumer,
		CandlesHandler:  kh,
		QueuePublisher:  queuePub.RedisQueue,
		QueueWorker:     queueWorker.RedisQueue,
		ClickHouse:      chClient,
		Postgres:        pgClient,
		Producer:        producer,
	})
}

// consumerTimingHook times candle-message handling and surfaces
// failures with their trace id.
func consumerTimingHook(l *applogger.Logger, m repository.Metrics) pkgkafka.HookFuncs {
	return pkgkafka.HookFuncs{
		Before: func(ctx context.Context, topic string, km kafkago.Message, data []byte) (context.Context, kafkago.Message, []byte, error) {
			return pkgkafka.WithStartTime(ctx, time.Now()), km, data, nil
		},
		After: func(ctx context.Context, topic string, km kafkago.Message, data []byte, err error) {
			if start, ok := pkgkafka.StartTime(ctx); ok {
				m.RecordLatency("kafka_handle", time.Since(start).Seconds())
			}
		},
		Err: func(ctx context.Context, topic string, km kafkago.Message, data []byte, err error) {
			m.RecordError("kafka_consume")
			l.Warn("kafka message handling failed",
				applogger.String("topic", topic),
				applogger.String("trace_id", pkgkafka.ExtractTraceID(km)),
				applogger.Error(err))
		},
	}
}
