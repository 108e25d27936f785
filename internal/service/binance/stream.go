package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"LevelScan/internal/domain/models"
	domrepo "LevelScan/internal/domain/repository"
)

// StreamCandle is one closed candle received over the kline stream.
type StreamCandle struct {
	Candle    models.Candle     `json:"candle"`
	Timeframe domrepo.Timeframe `json:"timeframe"`
}

// Stream consumes the Binance kline WebSocket for a fixed symbol set. Only
// closed klines are forwarded; in-progress updates are dropped.
type Stream struct {
	websocketURL   string
	symbols        []string
	timeframe      domrepo.Timeframe
	reconnectDelay time.Duration
	pingInterval   time.Duration

	// mu guards the connection fields and serializes writes; gorilla
	// connections tolerate one reader but never concurrent writers.
	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	connDone  chan struct{}
}

// NewStream creates a kline stream for symbols on one timeframe.
func NewStream(websocketURL string, symbols []string, tf domrepo.Timeframe, reconnectDelay, pingInterval time.Duration) *Stream {
	return &Stream{
		websocketURL:   websocketURL,
		symbols:        symbols,
		timeframe:      tf,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("binance connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.connDone = make(chan struct{})
	s.mu.Unlock()
	return nil
}

// Subscribe subscribes to the kline stream of every configured symbol.
func (s *Stream) Subscribe(ctx context.Context) error {
	params := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		params = append(params, fmt.Sprintf("%s@kline_%s", strings.ToLower(sym), s.timeframe))
	}
	msg := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     1,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || !s.connected {
		return fmt.Errorf("binance not connected")
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe klines: %w", err)
	}
	return nil
}

// writePing sends one control ping under the write lock.
func (s *Stream) writePing() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || !s.connected {
		return fmt.Errorf("binance not connected")
	}
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

type wsKline struct {
	OpenTime int64  `json:"t"`
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Volume   string `json:"v"`
	Closed   bool   `json:"x"`
}

type wsMessage struct {
	Event  string  `json:"e"`
	Symbol string  `json:"s"`
	Kline  wsKline `json:"k"`
}

// Read streams closed candles and errors for the current connection. The
// candle channel closes when the connection drops or ctx is cancelled; the
// ping loop dies with the connection, so a reconnect followed by another
// Read never stacks pingers on the new socket.
func (s *Stream) Read(ctx context.Context) (<-chan StreamCandle, <-chan error) {
	candles := make(chan StreamCandle, 1024)
	errs := make(chan error, 1)

	s.mu.Lock()
	conn := s.conn
	done := s.connDone
	s.mu.Unlock()

	if conn == nil {
		errs <- fmt.Errorf("binance conn nil")
		close(candles)
		close(errs)
		return candles, errs
	}

	// ping loop, scoped to this connection
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if err := s.writePing(); err != nil {
					return
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(candles)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("binance read: %w", err)
					return
				}
				var m wsMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// subscription acks and other non-kline frames
					continue
				}
				if m.Event != "kline" || !m.Kline.Closed {
					continue
				}
				candle, err := m.Kline.toCandle(m.Symbol)
				if err != nil {
					continue
				}
				select {
				case candles <- StreamCandle{Candle: candle, Timeframe: s.timeframe}:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return candles, errs
}

// Reconnect closes and reconnects.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	time.Sleep(s.reconnectDelay)
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close tears down the connection and releases its ping loop.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if s.connDone != nil {
		close(s.connDone)
		s.connDone = nil
	}
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (k wsKline) toCandle(symbol string) (models.Candle, error) {
	vals := make([]float64, 5)
	for i, raw := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("kline field %d: %w", i, err)
		}
		vals[i] = v
	}
	return models.Candle{
		Time:   k.OpenTime,
		Symbol: symbol,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
