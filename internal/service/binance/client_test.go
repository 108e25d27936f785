package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domrepo "LevelScan/internal/domain/repository"
)

func TestParseKline(t *testing.T) {
	row := []json.RawMessage{
		json.RawMessage(`1700000000000`),
		json.RawMessage(`"42000.5"`),
		json.RawMessage(`"42100.0"`),
		json.RawMessage(`"41900.25"`),
		json.RawMessage(`"42050.75"`),
		json.RawMessage(`"1234.56"`),
	}
	c, err := parseKline("BTCUSDT", row)
	if err != nil {
		t.Fatalf("parseKline: %v", err)
	}
	if c.Time != 1700000000000 || c.Symbol != "BTCUSDT" {
		t.Fatalf("identity: %+v", c)
	}
	if c.Open != 42000.5 || c.High != 42100.0 || c.Low != 41900.25 || c.Close != 42050.75 || c.Volume != 1234.56 {
		t.Fatalf("values: %+v", c)
	}
}

func TestParseKlineErrors(t *testing.T) {
	short := []json.RawMessage{json.RawMessage(`1700000000000`)}
	if _, err := parseKline("BTCUSDT", short); err == nil {
		t.Fatal("want error on a short row")
	}

	bad := []json.RawMessage{
		json.RawMessage(`1700000000000`),
		json.RawMessage(`"not-a-number"`),
		json.RawMessage(`"1"`),
		json.RawMessage(`"1"`),
		json.RawMessage(`"1"`),
		json.RawMessage(`"1"`),
	}
	if _, err := parseKline("BTCUSDT", bad); err == nil {
		t.Fatal("want error on a malformed price")
	}
}

func TestKlinesAgainstFakeServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("interval"); got != "1h" {
			t.Errorf("interval = %s", got)
		}
		_, _ = w.Write([]byte(`[
			[1700000000000,"100","101","99","100.5","10",0,"0",0,"0","0","0"],
			[1700003600000,"100.5","102","100","101.5","12",0,"0",0,"0","0","0"]
		]`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.URL, "USDT", WithFetchRPS(1000))
	candles, err := c.Klines(context.Background(), "BTCUSDT", domrepo.TF1h, 2)
	if err != nil {
		t.Fatalf("Klines: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2", len(candles))
	}
	if candles[1].Close != 101.5 || candles[1].Time != 1700003600000 {
		t.Fatalf("second candle: %+v", candles[1])
	}
}

func TestFetchUniverseFiltersQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"symbol":"BTCUSDT"},
			{"symbol":"ETHBTC"},
			{"symbol":"SOLUSDT"}
		]`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.URL, "USDT", WithFetchRPS(1000))
	got, err := c.FetchUniverse(context.Background())
	if err != nil {
		t.Fatalf("FetchUniverse: %v", err)
	}
	want := []string{"BTCUSDT", "SOLUSDT"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFundingRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/premiumIndex" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","lastFundingRate":"0.00012345"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.URL, "USDT", WithFetchRPS(1000))
	rate, err := c.FundingRate(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("FundingRate: %v", err)
	}
	if rate != 0.00012345 {
		t.Fatalf("rate = %v", rate)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	// a bucket this small never accumulates a whole token
	c := New("http://localhost", "http://localhost", "USDT", WithFetchRPS(0.0001))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.wait(ctx); err == nil {
		t.Fatal("want context error once the bucket is empty")
	}
}

func TestToCandleParsesStrings(t *testing.T) {
	k := wsKline{OpenTime: 1700000000000, Open: "1.5", High: "2", Low: "1", Close: "1.8", Volume: "42", Closed: true}
	c, err := k.toCandle("ETHUSDT")
	if err != nil {
		t.Fatalf("toCandle: %v", err)
	}
	if c.Symbol != "ETHUSDT" || c.Open != 1.5 || c.Volume != 42 {
		t.Fatalf("candle: %+v", c)
	}

	k.High = "bogus"
	if _, err := k.toCandle("ETHUSDT"); err == nil {
		t.Fatal("want error on a malformed field")
	}
}
