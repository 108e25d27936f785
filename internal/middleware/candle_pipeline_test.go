package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"LevelScan/internal/domain/models"
	"LevelScan/internal/service/binance"
)

type recordingProc struct {
	mu   sync.Mutex
	got  []binance.StreamCandle
	fail bool
}

func (r *recordingProc) Process(_ context.Context, c binance.StreamCandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("downstream down")
	}
	r.got = append(r.got, c)
	return nil
}

func (r *recordingProc) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{errors: make(map[string]int)}
}

func (m *countingMetrics) RecordPairAnalyzed(string)       {}
func (m *countingMetrics) RecordSignalEmitted(_, _ string) {}
func (m *countingMetrics) RecordLastPrice(string, float64) {}
func (m *countingMetrics) RecordLatency(string, float64)   {}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *countingMetrics) errCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func validStream(symbol string, ts int64) binance.StreamCandle {
	return binance.StreamCandle{
		Candle: models.Candle{
			Time:   ts,
			Symbol: symbol,
			Open:   100,
			High:   101,
			Low:    99,
			Close:  100.5,
			Volume: 10,
		},
		Timeframe: "1h",
	}
}

func TestProcessForwardsValidCandle(t *testing.T) {
	proc := &recordingProc{}
	p := NewCandlePipeline(proc, newCountingMetrics())

	if err := p.Process(context.Background(), validStream("BTCUSDT", 1700000000000)); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if proc.count() != 1 {
		t.Fatalf("forwarded %d, want 1", proc.count())
	}
}

func TestProcessRejectsMalformed(t *testing.T) {
	proc := &recordingProc{}
	m := newCountingMetrics()
	p := NewCandlePipeline(proc, m)

	cases := []struct {
		name string
		c    binance.StreamCandle
	}{
		{"empty symbol", binance.StreamCandle{Candle: models.Candle{Time: 1, High: 1}, Timeframe: "1h"}},
		{"zero time", binance.StreamCandle{Candle: models.Candle{Symbol: "BTCUSDT", High: 1}, Timeframe: "1h"}},
		{"bad timeframe", binance.StreamCandle{Candle: models.Candle{Symbol: "BTCUSDT", Time: 1, High: 1}, Timeframe: "2h"}},
		{"high below low", binance.StreamCandle{Candle: models.Candle{Symbol: "BTCUSDT", Time: 1, High: 1, Low: 2}, Timeframe: "1h"}},
		{"negative volume", binance.StreamCandle{Candle: models.Candle{Symbol: "BTCUSDT", Time: 1, High: 1, Volume: -1}, Timeframe: "1h"}},
	}
	for _, tc := range cases {
		if err := p.Process(context.Background(), tc.c); err == nil {
			t.Fatalf("%s: want a validation error", tc.name)
		}
	}
	if proc.count() != 0 {
		t.Fatalf("malformed candles reached downstream: %d", proc.count())
	}
	if m.errCount("pipeline_validate") != len(cases) {
		t.Fatalf("validate errors = %d, want %d", m.errCount("pipeline_validate"), len(cases))
	}
}

func TestProcessThrottlesPerSymbol(t *testing.T) {
	proc := &recordingProc{}
	m := newCountingMetrics()
	p := NewCandlePipeline(proc, m, WithMaxRPS(1))

	// two candles for the same symbol inside one second: second one dropped
	_ = p.Process(context.Background(), validStream("BTCUSDT", 1))
	_ = p.Process(context.Background(), validStream("BTCUSDT", 2))
	// a different symbol is not affected
	_ = p.Process(context.Background(), validStream("ETHUSDT", 3))

	if proc.count() != 2 {
		t.Fatalf("forwarded %d, want 2", proc.count())
	}
	if m.errCount("pipeline_throttle") != 1 {
		t.Fatalf("throttle count = %d, want 1", m.errCount("pipeline_throttle"))
	}
}

func TestProcessBuffersOnDownstreamError(t *testing.T) {
	proc := &recordingProc{fail: true}
	m := newCountingMetrics()
	p := NewCandlePipeline(proc, m, WithBufferSize(4))

	if err := p.Process(context.Background(), validStream("BTCUSDT", 1)); err == nil {
		t.Fatal("want the downstream error surfaced")
	}
	if m.errCount("pipeline_process") != 1 {
		t.Fatalf("process errors = %d, want 1", m.errCount("pipeline_process"))
	}

	// recover downstream and start flushing: the buffered candle drains
	proc.mu.Lock()
	proc.fail = false
	proc.mu.Unlock()

	p.Start(context.Background())
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for proc.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if proc.count() != 1 {
		t.Fatalf("flushed %d, want 1", proc.count())
	}
}

func TestBufferDropWhenFull(t *testing.T) {
	proc := &recordingProc{fail: true}
	m := newCountingMetrics()
	p := NewCandlePipeline(proc, m, WithBufferSize(1), WithMaxRPS(0x7fffffff))

	_ = p.Process(context.Background(), validStream("A1USDT", 1))
	_ = p.Process(context.Background(), validStream("A2USDT", 2))

	if m.errCount("pipeline_buffer_full") != 1 {
		t.Fatalf("buffer_full = %d, want 1", m.errCount("pipeline_buffer_full"))
	}
}
