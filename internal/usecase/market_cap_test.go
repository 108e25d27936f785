package usecase

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"LevelScan/internal/domain/models"
	"LevelScan/internal/service/marketcap"
)

type recordingCapStore struct {
	saved    []models.MarketCapPoint
	trimDays []int
	trimErr  error
}

func (s *recordingCapStore) SavePoint(_ context.Context, p models.MarketCapPoint) error {
	s.saved = append(s.saved, p)
	return nil
}

func (s *recordingCapStore) GetMarketCap(context.Context, int) ([]models.MarketCapPoint, error) {
	return s.saved, nil
}

func (s *recordingCapStore) TrimOldest(_ context.Context, days int) error {
	s.trimDays = append(s.trimDays, days)
	return s.trimErr
}

func capTestClient(t *testing.T) *marketcap.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"total_market_cap":{"usd":1500000000000}}}`))
	}))
	t.Cleanup(srv.Close)
	return marketcap.New(srv.URL, time.Minute)
}

func TestMarketCapCollectorTrimsAfterSave(t *testing.T) {
	store := &recordingCapStore{}
	c := NewMarketCapCollector(capTestClient(t), store, noopMetrics{}, testLogger(t), 30)

	if err := c.RunFetch(context.Background()); err != nil {
		t.Fatalf("run fetch: %v", err)
	}
	if len(store.saved) != 1 || store.saved[0].TotalCap != 1.5e12 {
		t.Fatalf("saved = %+v", store.saved)
	}
	if len(store.trimDays) != 1 || store.trimDays[0] != 30 {
		t.Fatalf("trim calls = %v, want one with the 30 day horizon", store.trimDays)
	}
}

func TestMarketCapCollectorTrimErrorIsNonFatal(t *testing.T) {
	store := &recordingCapStore{trimErr: errors.New("locked")}
	c := NewMarketCapCollector(capTestClient(t), store, noopMetrics{}, testLogger(t), 7)

	if err := c.RunFetch(context.Background()); err != nil {
		t.Fatalf("trim failure must not fail the fetch: %v", err)
	}
	if len(store.saved) != 1 {
		t.Fatalf("sample not stored: %+v", store.saved)
	}
}
