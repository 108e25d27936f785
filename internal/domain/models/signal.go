package models

// Direction is a trade hypothesis side.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Recommendation classifies a signal's accumulated score.
type Recommendation string

const (
	RecommendationStrong   Recommendation = "strong"
	RecommendationModerate Recommendation = "moderate"
	RecommendationWeak     Recommendation = "weak"
)

// Hypothesis fixes the inputs of one scoring call: instrument, timeframe,
// direction and a reference price.
type Hypothesis struct {
	Symbol       string
	Timeframe    string
	Direction    Direction
	Price        float64
	CurrentPrice float64
}

// Score is the scorer's verdict for one hypothesis.
type Score struct {
	Value          int
	Recommendation Recommendation
	Details        []string // rationale lines in fixed rule order
}

// Signal is the final persisted, scored trade hypothesis for one
// (instrument, timeframe). SignalType is a single direction or a merged
// label when both directions qualified (e.g. "long+short").
type Signal struct {
	Symbol         string         `json:"symbol"`
	Timeframe      string         `json:"timeframe"`
	SignalType     string         `json:"signal_type"`
	CurrentPrice   float64        `json:"current_price"`
	Score          int            `json:"score"`
	Recommendation Recommendation `json:"recommendation"`
	Details        []string       `json:"details"`
	Time           int64          `json:"time"` // epoch milliseconds
}

// FiboLevels maps a retracement ratio to its price for one pair.
type FiboLevels struct {
	Symbol    string
	Timeframe string
	High      float64
	Low       float64
	Levels    map[float64]float64
}

// MarketCapPoint is one sample of the global capitalization series,
// ordered ascending by FetchedAt.
type MarketCapPoint struct {
	TotalCap  float64 `json:"total_cap"`
	FetchedAt int64   `json:"fetched_at"` // epoch seconds
}
