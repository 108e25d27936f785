package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"LevelScan/internal/domain/models"
	domrepo "LevelScan/internal/domain/repository"
	applogger "LevelScan/pkg/logger"
)

type fakeCloses struct {
	prices map[string]float64
}

func (f *fakeCloses) GetLatestClose(_ context.Context, symbol string, _ domrepo.Timeframe) (float64, error) {
	p, ok := f.prices[symbol]
	if !ok {
		return 0, errors.New("no data")
	}
	return p, nil
}

func (f *fakeCloses) GetCandles(context.Context, string, domrepo.Timeframe) ([]models.Candle, error) {
	return nil, nil
}

func (f *fakeCloses) GetCandleRange(context.Context, string, domrepo.Timeframe, time.Time, time.Time) ([]models.Candle, error) {
	return nil, nil
}

func (f *fakeCloses) GetAllCandles(context.Context, domrepo.Timeframe) (map[domrepo.PairKey][]models.Candle, error) {
	return nil, nil
}

func (f *fakeCloses) StoreBatch(context.Context, string, domrepo.Timeframe, []models.Candle) error {
	return nil
}

func (f *fakeCloses) TrimOldest(context.Context, int) error { return nil }
func (f *fakeCloses) Close() error                          { return nil }

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func TestCheckFlagsLevelsWithinThreshold(t *testing.T) {
	store := &fakeCloses{prices: map[string]float64{"BTCUSDT": 100}}
	d := NewDetector(store, 1.0, testLogger(t))

	levels := []models.Level{
		{Symbol: "BTCUSDT", Timeframe: "1h", Price: 100.5, Type: models.LevelResistance, Strength: 4}, // 0.497% away
		{Symbol: "BTCUSDT", Timeframe: "1h", Price: 104, Type: models.LevelResistance, Strength: 4},   // too far
	}
	alerts := d.Check(context.Background(), levels)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	a := alerts[0]
	if a.LevelPrice != 100.5 || a.CurrentPrice != 100 {
		t.Fatalf("prices = %v/%v", a.LevelPrice, a.CurrentPrice)
	}
	if a.Distance <= 0 || a.Distance > 1.0 {
		t.Fatalf("distance = %v, want within (0, 1]", a.Distance)
	}
	if a.Source != "level" || a.CreatedAt == 0 {
		t.Fatalf("alert metadata: %+v", a)
	}
}

func TestCheckThresholdCutoff(t *testing.T) {
	store := &fakeCloses{prices: map[string]float64{"BTCUSDT": 100.999}}
	d := NewDetector(store, 1.0, testLogger(t))

	inside := []models.Level{{Symbol: "BTCUSDT", Timeframe: "1h", Price: 100, Type: models.LevelSupport}}
	if alerts := d.Check(context.Background(), inside); len(alerts) != 1 {
		t.Fatalf("0.999%% away: got %d alerts, want 1", len(alerts))
	}

	store.prices["BTCUSDT"] = 101.01
	if alerts := d.Check(context.Background(), inside); len(alerts) != 0 {
		t.Fatalf("1.01%% away: got %d alerts, want 0", len(alerts))
	}
}

func TestCheckSkipsSymbolsWithoutData(t *testing.T) {
	store := &fakeCloses{prices: map[string]float64{}}
	d := NewDetector(store, 1.0, testLogger(t))

	levels := []models.Level{{Symbol: "NODATA", Timeframe: "1h", Price: 100}}
	if alerts := d.Check(context.Background(), levels); len(alerts) != 0 {
		t.Fatalf("got %d alerts, want 0 when the close is unknown", len(alerts))
	}
}

func TestCheckNoLevelsNoAlerts(t *testing.T) {
	d := NewDetector(&fakeCloses{}, 1.0, testLogger(t))
	if alerts := d.Check(context.Background(), nil); alerts != nil {
		t.Fatalf("got %v, want nil", alerts)
	}
}
