package models

// TrendDirection is the multi-timeframe bias of an instrument.
type TrendDirection string

const (
	TrendBullish TrendDirection = "bullish"
	TrendBearish TrendDirection = "bearish"
)

// Trend holds one instrument's EMA crossover state. One row per instrument,
// latest computation wins.
type Trend struct {
	Symbol    string         `json:"symbol"`
	Direction TrendDirection `json:"direction"`
	EMA50     float64        `json:"ema50"`
	EMA200    float64        `json:"ema200"`
	UpdatedAt int64          `json:"updated_at"` // epoch seconds
}
