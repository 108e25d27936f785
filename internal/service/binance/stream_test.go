package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	domrepo "LevelScan/internal/domain/repository"
)

func wsTestServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		handler(c)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamDeliversOnlyClosedKlines(t *testing.T) {
	open := `{"e":"kline","s":"BTCUSDT","k":{"t":1700000000000,"o":"1","h":"2","l":"0.5","c":"1.2","v":"10","x":false}}`
	closed := `{"e":"kline","s":"BTCUSDT","k":{"t":1700000000000,"o":"1","h":"2","l":"0.5","c":"1.5","v":"10","x":true}}`

	srv := wsTestServer(t, func(c *websocket.Conn) {
		if _, _, err := c.ReadMessage(); err != nil { // subscribe
			return
		}
		_ = c.WriteMessage(websocket.TextMessage, []byte(open))
		_ = c.WriteMessage(websocket.TextMessage, []byte(closed))
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	s := NewStream(wsURL(srv), []string{"BTCUSDT"}, domrepo.TF1h, time.Millisecond, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()
	if err := s.Subscribe(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	candles, _ := s.Read(ctx)
	select {
	case sc := <-candles:
		if sc.Candle.Symbol != "BTCUSDT" || sc.Candle.Close != 1.5 {
			t.Fatalf("unexpected candle: %+v", sc.Candle)
		}
		if sc.Timeframe != domrepo.TF1h {
			t.Fatalf("timeframe = %q", sc.Timeframe)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no candle within 2s")
	}
}

// Reconnect cycles used to stack one ping goroutine per Read call on the
// shared connection, so pings and the re-subscribe write could hit the
// socket concurrently. Run with -race.
func TestStreamReconnectCyclesKeepSingleWriter(t *testing.T) {
	srv := wsTestServer(t, func(c *websocket.Conn) {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	s := NewStream(wsURL(srv), []string{"BTCUSDT", "ETHUSDT"}, domrepo.TF1h, time.Millisecond, 2*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Subscribe(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	s.Read(ctx)

	for i := 0; i < 5; i++ {
		time.Sleep(10 * time.Millisecond) // let the pinger fire a few times
		if err := s.Reconnect(ctx); err != nil {
			t.Fatalf("reconnect %d: %v", i, err)
		}
		s.Read(ctx)
	}
	time.Sleep(10 * time.Millisecond)

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if s.IsConnected() {
		t.Fatal("still connected after close")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestStreamReadWithoutConnection(t *testing.T) {
	s := NewStream("ws://unused", []string{"BTCUSDT"}, domrepo.TF1h, time.Millisecond, time.Millisecond)

	candles, errs := s.Read(context.Background())
	if err := <-errs; err == nil {
		t.Fatal("want error reading an unconnected stream")
	}
	if _, ok := <-candles; ok {
		t.Fatal("candle channel should be closed")
	}
	if err := s.Subscribe(context.Background()); err == nil {
		t.Fatal("want subscribe error before connect")
	}
}
