package alerts

import (
	"context"
	"time"

	"LevelScan/internal/domain/models"
	domrepo "LevelScan/internal/domain/repository"
	applogger "LevelScan/pkg/logger"
)

// Detector flags levels the current price has approached. Its alerts are the
// only trigger feeding the scoring stage: a pair with no level within range
// produces no signal that cycle.
type Detector struct {
	candles      domrepo.CandleStore
	thresholdPct float64
	logger       *applogger.Logger
}

func NewDetector(candles domrepo.CandleStore, thresholdPct float64, logger *applogger.Logger) *Detector {
	return &Detector{candles: candles, thresholdPct: thresholdPct, logger: logger}
}

// Check computes the percentage distance from the latest close to every
// stored level and emits an alert for each one within the threshold.
func (d *Detector) Check(ctx context.Context, levels []models.Level) []models.Alert {
	now := time.Now().Unix()
	var out []models.Alert
	for _, lvl := range levels {
		price, err := d.candles.GetLatestClose(ctx, lvl.Symbol, domrepo.Timeframe(lvl.Timeframe))
		if err != nil {
			d.logger.Debug("alert check: no latest close",
				applogger.String("symbol", lvl.Symbol),
				applogger.String("tf", lvl.Timeframe),
				applogger.Error(err),
			)
			continue
		}
		distancePct := abs(price-lvl.Price) / lvl.Price * 100
		if distancePct > d.thresholdPct {
			continue
		}
		out = append(out, models.Alert{
			Symbol:       lvl.Symbol,
			Timeframe:    lvl.Timeframe,
			LevelPrice:   lvl.Price,
			CurrentPrice: price,
			Type:         lvl.Type,
			Distance:     distancePct,
			Strength:     lvl.Strength,
			Source:       "level",
			CreatedAt:    now,
		})
	}
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
