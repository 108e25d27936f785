package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"LevelScan/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a redis-list backed job queue with delayed retries and
// a dead-letter list. A queue instance either publishes or consumes,
// never both.
type RedisQueue struct {
	logger    *logger.Logger
	config    *QueueConfig
	client    *redis.Client
	jobs      map[string]Job
	wg        sync.WaitGroup
	mu        sync.RWMutex
	running   bool
	consuming bool
	stopCh    chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	keyPrefix string
}

func newRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, consuming bool) *RedisQueue {
	if config == nil {
		config = &QueueConfig{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &RedisQueue{
		logger:    lgr,
		config:    config,
		client:    client,
		jobs:      make(map[string]Job),
		stopCh:    make(chan struct{}),
		consuming: consuming,
		ctx:       ctx,
		cancel:    cancel,
		keyPrefix: "levelscan:queue",
	}
}

// NewRedisPublisher builds a publish-only queue and starts it immediately.
func NewRedisPublisher(lgr *logger.Logger, client *redis.Client) *RedisQueue {
	q := newRedisQueue(lgr, &QueueConfig{}, client, false)
	if err := q.Start(); err != nil {
		lgr.Error("redis publisher start failed", logger.Error(err))
	}
	return q
}

// NewRedisConsumer builds a consuming queue with the given jobs
// registered. The caller starts it.
func NewRedisConsumer(lgr *logger.Logger, config *QueueConfig, client *redis.Client, jobs []Job) *RedisQueue {
	q := newRedisQueue(lgr, config, client, true)
	for _, job := range jobs {
		q.RegisterJob(job)
	}
	return q
}

// RegisterJob binds a job to its message type. Later registrations for
// the same type are ignored.
func (r *RedisQueue) RegisterJob(job Job) {
	if !r.consuming {
		r.logger.Warn("job registration ignored on publisher",
			logger.String("job", job.Name()))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.Type()]; exists {
		r.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}

	r.jobs[job.Type()] = job
	r.logger.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

// Start verifies the redis connection and, on consumers, launches the
// worker pool and the retry mover.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	r.running = true
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		return fmt.Errorf("redis ping: %w", err)
	}

	if !r.consuming {
		r.logger.Info("redis publisher started",
			logger.String("addr", r.client.Options().Addr))
		return nil
	}

	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.retryMover()

	r.logger.Info("redis queue started",
		logger.Int("workers", r.config.Workers),
		logger.String("addr", r.client.Options().Addr))
	return nil
}

// Stop cancels in-flight handlers and waits for workers up to the
// context deadline.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	if r.consuming {
		close(r.stopCh)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		r.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("queue stop: %w", ctx.Err())
	case <-done:
		r.logger.Info("redis queue stopped gracefully")
		return nil
	}
}

// PublishMessage wraps the payload in an envelope and pushes it onto
// the queue list.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.running {
		return fmt.Errorf("queue not running")
	}
	if r.consuming {
		if _, exists := r.jobs[msgType]; !exists {
			return fmt.Errorf("no job registered for type %s", msgType)
		}
	}

	msg := Message{
		ID:        strconv.FormatInt(time.Now().UnixNano(), 10),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.queueKey(), raw).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	r.logger.Info("queue worker started", logger.Int("worker_id", id))

	for {
		select {
		case <-r.stopCh:
			return
		case <-r.ctx.Done():
			return
		default:
			r.pollOnce()
		}
	}
}

// pollOnce blocks on the list for up to a second, so the enclosing
// loop stays responsive to shutdown.
func (r *RedisQueue) pollOnce() {
	ctx, cancel := context.WithTimeout(r.ctx, time.Second)
	defer cancel()

	result, err := r.client.BRPop(ctx, time.Second, r.queueKey()).Result()
	if err != nil {
		switch {
		case errors.Is(err, redis.Nil),
			errors.Is(err, context.DeadlineExceeded),
			errors.Is(err, context.Canceled):
			return
		}
		r.logger.Error("brpop error", logger.Error(err))
		time.Sleep(time.Second)
		return
	}
	if len(result) < 2 {
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		r.logger.Error("unmarshal message", logger.Error(err))
		return
	}
	r.dispatch(msg)
}

func (r *RedisQueue) dispatch(msg Message) {
	job, exists := r.jobs[msg.Type]
	if !exists {
		r.logger.Error("no job for message type",
			logger.String("type", msg.Type),
			logger.String("id", msg.ID))
		return
	}

	err := job.Handle(r.ctx, normalizePayload(msg.Payload))
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		r.logger.Warn("message cancelled during shutdown",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()))
		return
	}
	r.retryOrDrop(msg, job, err)
}

// normalizePayload re-encodes decoded JSON objects as RawMessage so
// ParsePayload can target a concrete type.
func normalizePayload(payload interface{}) interface{} {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return payload
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return payload
	}
	return json.RawMessage(raw)
}

func (r *RedisQueue) retryOrDrop(msg Message, job Job, err error) {
	r.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts >= r.config.RetryLimit {
		r.logger.Error("max retries reached, dead-lettering",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()))
		r.deadLetter(msg)
		return
	}

	msg.Attempts++
	retryAt := time.Now().Add(r.config.RetryDelay)

	raw, merr := json.Marshal(msg)
	if merr != nil {
		r.logger.Error("marshal retry", logger.Error(merr))
		return
	}
	zerr := r.client.ZAdd(context.Background(), r.retryKey(), redis.Z{
		Score:  float64(retryAt.Unix()),
		Member: raw,
	}).Err()
	if zerr != nil {
		r.logger.Error("zadd retry", logger.Error(zerr))
		return
	}
	r.logger.Info("scheduled retry",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.String("retry_at", retryAt.Format(time.RFC3339)))
}

func (r *RedisQueue) deadLetter(msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal dead letter", logger.Error(err))
		return
	}
	if err := r.client.LPush(context.Background(), r.deadLetterKey(), raw).Err(); err != nil {
		r.logger.Error("lpush dead letter", logger.Error(err))
	}
}

// retryMover periodically moves due retries back onto the queue list.
func (r *RedisQueue) retryMover() {
	defer r.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.moveDueRetries()
		}
	}
}

func (r *RedisQueue) moveDueRetries() {
	due, err := r.client.ZRangeByScoreWithScores(r.ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		r.logger.Error("fetch due retries", logger.Error(err))
		return
	}

	for _, z := range due {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		raw := z.Member.(string)

		pipe := r.client.TxPipeline()
		pipe.ZRem(r.ctx, r.retryKey(), raw)
		pipe.LPush(r.ctx, r.queueKey(), raw)
		if _, err := pipe.Exec(r.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.logger.Error("requeue retry", logger.Error(err))
		}
	}
}

func (r *RedisQueue) queueKey() string      { return r.keyPrefix + ":messages" }
func (r *RedisQueue) retryKey() string      { return r.keyPrefix + ":retry" }
func (r *RedisQueue) deadLetterKey() string { return r.keyPrefix + ":dlq" }
