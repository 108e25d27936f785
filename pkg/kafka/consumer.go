package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// MessageHandler consumes messages from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// ConsumerOption configures the consumer.
type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig holds reader and worker-pool settings.
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	WorkerCount int
	BufferSize  int
	RetryMax    int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	DLQTopic    string
	MinBytes    int
	MaxBytes    int
}

func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) { c.Brokers = brokers }
}

func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) { c.GroupID = groupID }
}

func WithConsumerWorkers(count int) ConsumerOption {
	return func(c *ConsumerConfig) { c.WorkerCount = count }
}

// WithConsumerRetry bounds handler retries and the backoff window
// between attempts.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerDLQ names the topic that receives messages whose retries
// are exhausted. Empty disables dead-lettering.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) { c.DLQTopic = topic }
}

func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

// Consumer reads registered topics through a shared worker pool.
// Messages of one partition are handled one at a time so candle order
// per symbol survives, while distinct partitions progress in parallel.
type Consumer struct {
	cfg       *ConsumerConfig
	readers   map[string]*kafka.Reader
	handlers  map[string]MessageHandler
	stopChan  chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	msgChan   chan *message
	dlq       *kafka.Writer
	plMu      sync.Mutex
	partLocks map[string]map[int]*sync.Mutex
	hook      ConsumerHook
}

type message struct {
	topic string
	data  []byte
	km    kafka.Message
}

// NewConsumer builds a consumer. Topics come from RegisterHandler,
// readers are created on Start.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "default",
		WorkerCount: 1,
		BufferSize:  10,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    10e3,
		MaxBytes:    10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := &Consumer{
		cfg:       cfg,
		readers:   make(map[string]*kafka.Reader),
		handlers:  make(map[string]MessageHandler),
		stopChan:  make(chan struct{}),
		msgChan:   make(chan *message, cfg.BufferSize),
		partLocks: make(map[string]map[int]*sync.Mutex),
		hook:      NoopHook{},
	}

	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}

	return c, nil
}

// RegisterHandler binds a handler to its topic. First registration
// wins.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		log.Warn().Str("topic", topic).Msg("kafka handler already registered")
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook installs lifecycle hooks. Call before Start.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start creates one reader per registered topic and launches the
// worker pool.
func (c *Consumer) Start() error {
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
		log.Info().Str("topic", topic).Msg("kafka consumer: topic registered")
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.wg.Add(1)
		go c.worker()
	}

	for topic, reader := range c.readers {
		c.wg.Add(1)
		go c.readLoop(topic, reader)
	}

	log.Info().Int("workers", c.cfg.WorkerCount).Msg("kafka consumer started")
	return nil
}

// Stop shuts the consumer down, waiting for in-flight work up to the
// context deadline.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error

	c.stopOnce.Do(func() {
		close(c.stopChan)
		close(c.msgChan)

		stopErr = c.waitForWorkers(ctx)

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				log.Error().Err(err).Str("topic", topic).Msg("close kafka reader")
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				log.Error().Err(err).Msg("close dlq writer")
			}
		}

		if stopErr == nil {
			log.Info().Msg("kafka consumer stopped")
		}
	})

	return stopErr
}

func (c *Consumer) waitForWorkers(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("consumer stop: %w", ctx.Err())
	case <-done:
		return nil
	}
}

func (c *Consumer) readLoop(topic string, reader *kafka.Reader) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		msg, err := reader.ReadMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				log.Error().Err(err).Str("topic", topic).Msg("kafka read")
			}
			continue
		}

		if !c.enqueue(&message{topic: topic, data: msg.Value, km: msg}) {
			return
		}
	}
}

// enqueue hands a message to the worker pool. Instead of dropping when
// the channel is full it backs off, harder as fullness grows. Returns
// false on shutdown.
func (c *Consumer) enqueue(msg *message) bool {
	for {
		select {
		case c.msgChan <- msg:
			consumerQueueDepth.WithLabelValues(msg.topic).Set(float64(len(c.msgChan)))
			consumerQueueFullness.WithLabelValues(msg.topic).Set(fullness(c.msgChan))
			return true
		case <-c.stopChan:
			return false
		default:
			full := fullness(c.msgChan)
			consumerQueueFullness.WithLabelValues(msg.topic).Set(full)
			if full > 0.8 {
				time.Sleep(10 * time.Millisecond)
			} else {
				runtime.Gosched()
			}
		}
	}
}

func fullness(ch chan *message) float64 {
	return float64(len(ch)) / float64(cap(ch))
}

func (c *Consumer) worker() {
	defer c.wg.Done()

	for msg := range c.msgChan {
		handler, exists := c.handlers[msg.topic]
		if !exists {
			continue
		}
		c.handleOne(msg, handler)
	}
}

// handleOne runs the retry loop for a single message under its
// partition lock, then commits the offset when the message is either
// handled or dead-lettered.
func (c *Consumer) handleOne(msg *message, handler MessageHandler) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("topic", msg.topic).Interface("panic", r).Msg("panic in kafka handler")
		}
	}()

	pl := c.partitionLock(msg.topic, msg.km.Partition)
	pl.Lock()
	defer pl.Unlock()

	var err error
	attempts := 0
	for {
		attempts++

		hctx, hmsg, hdata, berr := c.hook.BeforeHandle(context.Background(), msg.topic, msg.km, msg.data)
		if berr != nil {
			err = berr
			break
		}

		err = handler.Handle(hctx, hdata)
		c.hook.AfterHandle(hctx, msg.topic, hmsg, hdata, err)
		if err == nil || attempts > c.cfg.RetryMax {
			break
		}

		c.hook.OnError(hctx, msg.topic, hmsg, hdata, err)
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)):
		case <-c.stopChan:
			return
		}
	}

	if err != nil {
		c.hook.OnError(context.Background(), msg.topic, msg.km, msg.data, err)
		log.Error().Err(err).Str("topic", msg.topic).Int("attempts", attempts).Msg("kafka message failed")
		c.sendToDLQ(msg)
	}

	// Commit on success or after dead-lettering, so a poison message
	// cannot wedge the partition.
	if err == nil || c.dlq != nil {
		if reader := c.readers[msg.topic]; reader != nil {
			_ = c.commitWithRetry(reader, msg.km, 3)
		}
	}

	consumerHandleLatency.WithLabelValues(msg.topic).Observe(time.Since(start).Seconds())
}

func (c *Consumer) sendToDLQ(msg *message) {
	if c.dlq == nil {
		return
	}
	err := c.dlq.WriteMessages(context.Background(), kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Value:   msg.data,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(msg.topic)}},
	})
	if err != nil {
		log.Error().Err(err).Str("dlq", c.cfg.DLQTopic).Msg("dead-letter write failed")
	}
}

func (c *Consumer) commitWithRetry(reader *kafka.Reader, km kafka.Message, max int) error {
	if max <= 0 {
		max = 1
	}
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = reader.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	log.Error().Err(err).Int("attempts", max).Msg("kafka commit failed")
	return err
}

// partitionLock returns the mutex serializing one (topic, partition).
// Workers race to create it, hence plMu.
func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	c.plMu.Lock()
	defer c.plMu.Unlock()

	m, ok := c.partLocks[topic]
	if !ok {
		m = make(map[int]*sync.Mutex)
		c.partLocks[topic] = m
	}
	l, ok := m[partition]
	if !ok {
		l = &sync.Mutex{}
		m[partition] = l
	}
	return l
}

// backoffWithJitter grows exponentially from min, caps at max, and
// subtracts up to half the delay so retries spread out.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min * time.Duration(1<<uint(attempt-1))
	if exp > max {
		exp = max
	}
	jitter := time.Duration(rand.Int63n(int64(exp) / 2))
	return exp - jitter
}

var (
	consumerQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Name: "levelscan_kafka_consumer_queue_depth", Help: "Number of messages waiting in the consumer queue"},
		[]string{"topic"},
	)
	consumerQueueFullness = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Name: "levelscan_kafka_consumer_queue_fullness", Help: "Queue utilization ratio (len/cap)"},
		[]string{"topic"},
	)
	consumerHandleLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{Name: "levelscan_kafka_consumer_handle_seconds", Help: "Handling time per message"},
		[]string{"topic"},
	)
)
