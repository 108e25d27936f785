package usecase

import (
	"context"
	"fmt"

	domrepo "LevelScan/internal/domain/repository"
	mid "LevelScan/internal/middleware"
	"LevelScan/internal/service/binance"
	pkgkafka "LevelScan/pkg/kafka"
)

// CandlePublisher forwards closed candles to the Kafka candles topic, keyed
// by instrument for per-symbol ordering.
type CandlePublisher struct {
	producer *pkgkafka.Producer
	topic    string
	metrics  domrepo.Metrics
}

var _ mid.Proc = (*CandlePublisher)(nil)

func NewCandlePublisher(producer *pkgkafka.Producer, topic string, metrics domrepo.Metrics) *CandlePublisher {
	return &CandlePublisher{producer: producer, topic: topic, metrics: metrics}
}

func (p *CandlePublisher) Process(ctx context.Context, c binance.StreamCandle) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(c.Candle.Symbol), c); err != nil {
		p.metrics.RecordError("publish_candle")
		return fmt.Errorf("publish candle: %w", err)
	}
	return nil
}

func (p *CandlePublisher) Close() error { return p.producer.Close() }

// CandleStreamCollector pumps the live kline stream through the pipeline.
type CandleStreamCollector struct {
	stream  *binance.Stream
	pipe    *mid.CandlePipeline
	metrics domrepo.Metrics
}

func NewCandleStreamCollector(stream *binance.Stream, pipe *mid.CandlePipeline, metrics domrepo.Metrics) *CandleStreamCollector {
	return &CandleStreamCollector{stream: stream, pipe: pipe, metrics: metrics}
}

// IsConnected reports stream connectivity.
func (c *CandleStreamCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *CandleStreamCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	candleCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, candleCh, errCh)
	return nil
}

func (c *CandleStreamCollector) consume(ctx context.Context, candleCh <-chan binance.StreamCandle, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
				candleCh, errCh = c.stream.Read(ctx)
			}
		case sc, ok := <-candleCh:
			if !ok {
				continue
			}
			_ = c.pipe.Process(ctx, sc)
			c.metrics.RecordLastPrice(sc.Candle.Symbol, sc.Candle.Close)
		}
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *CandleStreamCollector) Shutdown(ctx context.Context) error {
	c.pipe.Stop()
	return c.stream.Close()
}
