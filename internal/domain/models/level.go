package models

// LevelType classifies a price level.
type LevelType string

const (
	LevelSupport    LevelType = "support"
	LevelResistance LevelType = "resistance"
	LevelEMA50      LevelType = "ema50"
	LevelEMA200     LevelType = "ema200"
)

// Level is a price at which price action has historically reacted, or a key
// moving average injected with a fixed strength. The full set is recomputed
// and replaced wholesale each analysis cycle.
type Level struct {
	Symbol      string    `json:"symbol"`
	Timeframe   string    `json:"timeframe"`
	Price       float64   `json:"price"`
	Type        LevelType `json:"type"`
	Strength    int       `json:"strength"` // pivot count for cluster levels, fixed for EMA levels
	Upper       float64   `json:"upper"`    // channel bounds; equal to Price for EMA levels
	Lower       float64   `json:"lower"`
	Distance    float64   `json:"distance"` // |price - last close| / last close
	Touched     int       `json:"touched"`
	Broken      bool      `json:"broken"`
	LastTouched int64     `json:"last_touched"` // epoch seconds
}
