package models

import "math"

// IndicatorKind is the closed enumeration of indicator names the engine
// computes. Stores key rows by kind; nothing past the store boundary deals
// with raw strings.
type IndicatorKind string

const (
	KindRSI         IndicatorKind = "RSI"
	KindMACD        IndicatorKind = "MACD"
	KindMACDSignal  IndicatorKind = "MACD_SIGNAL"
	KindMACDHist    IndicatorKind = "MACD_HIST"
	KindEMA20       IndicatorKind = "EMA20"
	KindEMA50       IndicatorKind = "EMA50"
	KindEMA200      IndicatorKind = "EMA200"
	KindBBUpper     IndicatorKind = "BB_UPPER"
	KindBBMid       IndicatorKind = "BB_MID"
	KindBBLower     IndicatorKind = "BB_LOWER"
	KindStochK      IndicatorKind = "STOCH_K"
	KindStochD      IndicatorKind = "STOCH_D"
	KindOBV         IndicatorKind = "OBV"
	KindVWAP        IndicatorKind = "VWAP"
	KindATR         IndicatorKind = "ATR"
	KindADX         IndicatorKind = "ADX"
	KindSupertrend  IndicatorKind = "SUPERTREND"
	KindPOC         IndicatorKind = "POC"
	KindFundingRate IndicatorKind = "FUND_RATE"
)

// NumericKinds lists every numeric indicator in persistence order.
var NumericKinds = []IndicatorKind{
	KindRSI, KindMACD, KindMACDSignal, KindMACDHist,
	KindEMA20, KindEMA50, KindEMA200,
	KindBBUpper, KindBBMid, KindBBLower,
	KindStochK, KindStochD,
	KindOBV, KindVWAP, KindATR, KindADX,
	KindSupertrend, KindPOC, KindFundingRate,
}

// Advice is the advisory three-way classification derived from indicators.
// It is metadata, not the final score.
type Advice string

const (
	AdviceBuy  Advice = "buy"
	AdviceSell Advice = "sell"
	AdviceHold Advice = "hold"
)

// IndicatorSet is the latest snapshot for one (instrument, timeframe).
// Absent values are NaN: a degenerate denominator propagates as NaN rather
// than raising, and NaN is excluded from scoring.
//
// Supertrend encodes the binary flag as +1 (bullish) / -1 (bearish).
type IndicatorSet struct {
	Symbol    string
	Timeframe string

	RSI         float64
	MACD        float64
	MACDSignal  float64
	MACDHist    float64
	EMA20       float64
	EMA50       float64
	EMA200      float64
	BBUpper     float64
	BBMid       float64
	BBLower     float64
	StochK      float64
	StochD      float64
	OBV         float64
	VWAP        float64
	ATR         float64
	ADX         float64
	Supertrend  float64
	POC         float64
	FundingRate float64

	Recommendation Advice
	ComputedAt     int64 // epoch seconds
}

// NewIndicatorSet returns a snapshot with every numeric field absent.
func NewIndicatorSet(symbol, timeframe string) *IndicatorSet {
	s := &IndicatorSet{Symbol: symbol, Timeframe: timeframe, Recommendation: AdviceHold}
	nan := math.NaN()
	s.RSI, s.MACD, s.MACDSignal, s.MACDHist = nan, nan, nan, nan
	s.EMA20, s.EMA50, s.EMA200 = nan, nan, nan
	s.BBUpper, s.BBMid, s.BBLower = nan, nan, nan
	s.StochK, s.StochD = nan, nan
	s.OBV, s.VWAP, s.ATR, s.ADX = nan, nan, nan, nan
	s.Supertrend, s.POC, s.FundingRate = nan, nan, nan
	return s
}

// Value returns the numeric value for kind; NaN when unknown or absent.
func (s *IndicatorSet) Value(kind IndicatorKind) float64 {
	switch kind {
	case KindRSI:
		return s.RSI
	case KindMACD:
		return s.MACD
	case KindMACDSignal:
		return s.MACDSignal
	case KindMACDHist:
		return s.MACDHist
	case KindEMA20:
		return s.EMA20
	case KindEMA50:
		return s.EMA50
	case KindEMA200:
		return s.EMA200
	case KindBBUpper:
		return s.BBUpper
	case KindBBMid:
		return s.BBMid
	case KindBBLower:
		return s.BBLower
	case KindStochK:
		return s.StochK
	case KindStochD:
		return s.StochD
	case KindOBV:
		return s.OBV
	case KindVWAP:
		return s.VWAP
	case KindATR:
		return s.ATR
	case KindADX:
		return s.ADX
	case KindSupertrend:
		return s.Supertrend
	case KindPOC:
		return s.POC
	case KindFundingRate:
		return s.FundingRate
	default:
		return math.NaN()
	}
}

// SetValue assigns the numeric value for kind; unknown kinds are ignored.
func (s *IndicatorSet) SetValue(kind IndicatorKind, v float64) {
	switch kind {
	case KindRSI:
		s.RSI = v
	case KindMACD:
		s.MACD = v
	case KindMACDSignal:
		s.MACDSignal = v
	case KindMACDHist:
		s.MACDHist = v
	case KindEMA20:
		s.EMA20 = v
	case KindEMA50:
		s.EMA50 = v
	case KindEMA200:
		s.EMA200 = v
	case KindBBUpper:
		s.BBUpper = v
	case KindBBMid:
		s.BBMid = v
	case KindBBLower:
		s.BBLower = v
	case KindStochK:
		s.StochK = v
	case KindStochD:
		s.StochD = v
	case KindOBV:
		s.OBV = v
	case KindVWAP:
		s.VWAP = v
	case KindATR:
		s.ATR = v
	case KindADX:
		s.ADX = v
	case KindSupertrend:
		s.Supertrend = v
	case KindPOC:
		s.POC = v
	case KindFundingRate:
		s.FundingRate = v
	}
}

// Has reports whether kind carries a defined value.
func (s *IndicatorSet) Has(kind IndicatorKind) bool {
	return !math.IsNaN(s.Value(kind))
}
