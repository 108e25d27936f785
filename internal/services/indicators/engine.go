package indicators

import (
	"math"
	"time"

	"LevelScan/internal/domain/models"
)

const (
	// MinCandles is the floor for the basic battery; EMA200 additionally
	// requires LongCandles.
	MinCandles  = 100
	LongCandles = 200

	rsiPeriod        = 14
	macdFast         = 12
	macdSlow         = 26
	macdSignal       = 9
	bbPeriod         = 20
	bbSigma          = 2.0
	stochK           = 14
	stochD           = 3
	vwapWindow       = 20
	atrPeriod        = 14
	adxPeriod        = 14
	supertrendPeriod = 10
	supertrendMult   = 3.0
	pocBins          = 20
)

// Engine computes the fixed indicator battery for one candle series.
// Compute is a pure function of its input; persistence is the caller's job.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Compute returns the latest indicator snapshot for the series, or nil when
// the series is below the minimum length floor. Undefined values stay NaN and
// are treated as absent downstream.
func (e *Engine) Compute(symbol, timeframe string, candles []models.Candle) *models.IndicatorSet {
	if len(candles) < MinCandles {
		return nil
	}

	closes := models.Closes(candles)
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
	}

	set := models.NewIndicatorSet(symbol, timeframe)
	set.ComputedAt = time.Now().Unix()

	set.RSI = last(RSI(closes, rsiPeriod))

	line, sig, hist := MACD(closes, macdFast, macdSlow, macdSignal)
	set.MACD = last(line)
	set.MACDSignal = last(sig)
	set.MACDHist = last(hist)

	set.EMA20 = last(EMA(closes, 20))
	set.EMA50 = last(EMA(closes, 50))
	if len(candles) >= LongCandles {
		set.EMA200 = last(EMA(closes, 200))
	}

	mid, upper, lower := Bollinger(closes, bbPeriod, bbSigma)
	set.BBMid = last(mid)
	set.BBUpper = last(upper)
	set.BBLower = last(lower)

	k, d := Stochastic(highs, lows, closes, stochK, stochD)
	set.StochK = last(k)
	set.StochD = last(d)

	set.OBV = last(OBV(candles))
	set.VWAP = last(VWAP(candles, vwapWindow))
	set.ATR = last(ATR(candles, atrPeriod))
	set.ADX = last(ADX(candles, adxPeriod))
	set.Supertrend = last(Supertrend(candles, supertrendPeriod, supertrendMult))
	set.POC = PointOfControl(candles, pocBins)

	set.Recommendation = recommend(closes[len(closes)-1], set)
	return set
}

// recommend derives the advisory three-way classification from EMA20 vs the
// Bollinger middle band, the RSI band and MACD polarity.
func recommend(lastClose float64, s *models.IndicatorSet) models.Advice {
	if math.IsNaN(s.EMA20) || math.IsNaN(s.BBMid) || math.IsNaN(s.RSI) ||
		math.IsNaN(s.MACD) || math.IsNaN(s.MACDSignal) {
		return models.AdviceHold
	}
	switch {
	case s.EMA20 > s.BBMid && s.RSI > 50 && s.RSI < 70 && s.MACD > s.MACDSignal && lastClose > s.BBMid:
		return models.AdviceBuy
	case s.EMA20 < s.BBMid && s.RSI > 30 && s.RSI < 50 && s.MACD < s.MACDSignal && lastClose < s.BBMid:
		return models.AdviceSell
	default:
		return models.AdviceHold
	}
}
