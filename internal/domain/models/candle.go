package models

import "time"

// Candle represents one OHLCV record. Series are ordered ascending by Time,
// unique per Time within an (instrument, timeframe) pair.
type Candle struct {
	Time   int64   `json:"time"` // epoch milliseconds
	Symbol string  `json:"symbol"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// OpenedAt returns the candle open time as time.Time.
func (c Candle) OpenedAt() time.Time {
	return time.UnixMilli(c.Time)
}

// Closes extracts the close series from candles.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
