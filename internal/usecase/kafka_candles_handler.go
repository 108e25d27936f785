package usecase

import (
	"context"
	"encoding/json"
	"time"

	"LevelScan/internal/domain/models"
	domrepo "LevelScan/internal/domain/repository"
	pkgkafka "LevelScan/pkg/kafka"
)

// KafkaCandlesHandler consumes closed candles from the candles topic and
// writes them to the candle store.
type KafkaCandlesHandler struct {
	topic   string
	store   domrepo.CandleStore
	metrics domrepo.Metrics
}

var _ pkgkafka.MessageHandler = (*KafkaCandlesHandler)(nil)

func NewKafkaCandlesHandler(topic string, store domrepo.CandleStore, metrics domrepo.Metrics) *KafkaCandlesHandler {
	return &KafkaCandlesHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaCandlesHandler) Topic() string { return h.topic }

// message schema matches binance.StreamCandle: {candle:{...}, timeframe}.
func (h *KafkaCandlesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Candle    models.Candle `json:"candle"`
		Timeframe string        `json:"timeframe"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	tf := domrepo.Timeframe(m.Timeframe)
	if !domrepo.IsValidTimeframe(tf) || m.Candle.Symbol == "" {
		h.metrics.RecordError("consumer_malformed")
		return nil // poison message; do not retry
	}

	// E2E latency from candle open to ingestion (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(m.Candle.OpenedAt()).Seconds())

	start := time.Now()
	err := h.store.StoreBatch(ctx, m.Candle.Symbol, tf, []models.Candle{m.Candle})
	h.metrics.RecordLatency("candle_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}
