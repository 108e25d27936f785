package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	domrepo "LevelScan/internal/domain/repository"
	"LevelScan/internal/service/binance"
)

// Proc is the minimal downstream interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, c binance.StreamCandle) error
}

// CandlePipeline sits between the kline WebSocket and Kafka. It validates,
// throttles per symbol, and buffers closed candles when downstream is
// unavailable.
type CandlePipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan binance.StreamCandle
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted time
}

type PipelineOption func(*CandlePipeline)

// WithMaxRPS sets the max candles per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *CandlePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *CandlePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewCandlePipeline creates a new pipeline.
func NewCandlePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *CandlePipeline {
	p := &CandlePipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   20,
		bufSize:  1000,
		bufCh:    make(chan binance.StreamCandle, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan binance.StreamCandle, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered candles.
func (p *CandlePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case c := <-p.bufCh:
				if err := p.proc.Process(ctx, c); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- c:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *CandlePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards a candle downstream, buffering
// on errors.
func (p *CandlePipeline) Process(ctx context.Context, c binance.StreamCandle) error {
	start := time.Now()
	if err := validateCandle(c); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(c.Candle.Symbol, start) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, c); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- c:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateCandle(c binance.StreamCandle) error {
	if c.Candle.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if c.Candle.Time <= 0 {
		return fmt.Errorf("open time invalid")
	}
	if !domrepo.IsValidTimeframe(c.Timeframe) {
		return fmt.Errorf("unknown timeframe %q", c.Timeframe)
	}
	if c.Candle.High < c.Candle.Low || c.Candle.Close < 0 || c.Candle.Volume < 0 {
		return fmt.Errorf("malformed candle")
	}
	return nil
}

func (p *CandlePipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[symbol]
	if last.IsZero() || now.Sub(last) >= time.Second/time.Duration(p.maxRPS) {
		p.lastSeen[symbol] = now
		return true
	}
	return false
}
