package models

// Requests for the read API. Defined in domain for consistency and reuse.

type SignalsRequest struct {
	Limit int `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type LevelsRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	TF     string `query:"tf" json:"tf" validate:"omitempty,oneof=15m 1h 4h 1d"`
}

type AlertsRequest struct {
	Limit int `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type TrendRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

// CandlesRequest carries the from/to bounds as raw strings; the handler
// accepts RFC3339 or unix seconds and aligns them to candle boundaries.
type CandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	TF     string `query:"tf" json:"tf" default:"1h" validate:"oneof=15m 1h 4h 1d"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
}
