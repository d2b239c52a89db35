package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"marketbond/internal/domain"
)

// DefaultStreamURL is the CLOB market-channel websocket endpoint.
const DefaultStreamURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

// StreamConfig configures the order-book stream.
type StreamConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the reconnect backoff.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout bounds a single read.
	ReadTimeout time.Duration
	// WriteTimeout bounds a single write.
	WriteTimeout time.Duration
	// Buffer is the update channel capacity.
	Buffer int
}

// DefaultStreamConfig returns the default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		Buffer:            256,
	}
}

// BookUpdate is one pushed order-book snapshot for an outcome token.
type BookUpdate struct {
	TokenID string
	Book    domain.OrderBook
}

// BookStream maintains a websocket subscription to the CLOB market channel
// and pushes full book snapshots for the subscribed tokens. The price
// updater uses it to skip polling for tokens with a live stream.
type BookStream struct {
	endpoint string
	config   StreamConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	tokenIDs   []string
	tokenIDsMu sync.RWMutex

	updates chan BookUpdate
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewBookStream connects and subscribes to book updates for tokenIDs.
func NewBookStream(ctx context.Context, endpoint string, tokenIDs []string, config *StreamConfig) (*BookStream, error) {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}
	if endpoint == "" {
		endpoint = DefaultStreamURL
	}

	s := &BookStream{
		endpoint: endpoint,
		config:   cfg,
		tokenIDs: append([]string(nil), tokenIDs...),
		updates:  make(chan BookUpdate, cfg.Buffer),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	if err := s.subscribe(); err != nil {
		s.conn.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()
	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// Updates returns the channel of pushed book snapshots. Closed on shutdown.
func (s *BookStream) Updates() <-chan BookUpdate {
	return s.updates
}

// Close shuts down the stream and its goroutines.
func (s *BookStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.updates)
	return nil
}

func (s *BookStream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	s.conn = conn
	return nil
}

type subscribeMessage struct {
	Type     string   `json:"type"`
	AssetIDs []string `json:"assets_ids"`
}

func (s *BookStream) subscribe() error {
	s.tokenIDsMu.RLock()
	msg := subscribeMessage{Type: "market", AssetIDs: s.tokenIDs}
	s.tokenIDsMu.RUnlock()

	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// bookEvent is a market-channel message. Only event_type "book" carries a
// full snapshot; other event types are ignored.
type bookEvent struct {
	EventType string          `json:"event_type"`
	AssetID   string          `json:"asset_id"`
	Bids      []clobBookLevel `json:"bids"`
	Asks      []clobBookLevel `json:"asks"`
	Timestamp string          `json:"timestamp"`
}

func (s *BookStream) readLoop() {
	defer s.wg.Done()

	delay := s.config.ReconnectDelay
	for {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			// Reconnect with backoff and resubscribe.
			select {
			case <-s.done:
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > s.config.MaxReconnectDelay {
				delay = s.config.MaxReconnectDelay
			}
			if err := s.connect(context.Background()); err != nil {
				continue
			}
			if err := s.subscribe(); err != nil {
				continue
			}
			delay = s.config.ReconnectDelay
			continue
		}

		s.dispatch(payload)
	}
}

// dispatch decodes one message, which may be a single event or an array.
func (s *BookStream) dispatch(payload []byte) {
	var events []bookEvent
	if err := json.Unmarshal(payload, &events); err != nil {
		var single bookEvent
		if err := json.Unmarshal(payload, &single); err != nil {
			return
		}
		events = []bookEvent{single}
	}

	for _, ev := range events {
		if ev.EventType != "book" || ev.AssetID == "" {
			continue
		}
		book, ok := translateEvent(ev)
		if !ok {
			continue
		}
		select {
		case s.updates <- BookUpdate{TokenID: ev.AssetID, Book: book}:
		default:
			// Consumer is behind; drop rather than block the read loop.
		}
	}
}

func translateEvent(ev bookEvent) (domain.OrderBook, bool) {
	book := domain.OrderBook{Timestamp: time.Now().UTC()}
	if ev.Timestamp != "" {
		if ms, err := strconv.ParseInt(ev.Timestamp, 10, 64); err == nil {
			book.Timestamp = time.UnixMilli(ms).UTC()
		}
	}

	for _, l := range ev.Bids {
		level, err := parseLevel(l)
		if err != nil {
			return domain.OrderBook{}, false
		}
		book.Bids = append(book.Bids, level)
	}
	for _, l := range ev.Asks {
		level, err := parseLevel(l)
		if err != nil {
			return domain.OrderBook{}, false
		}
		book.Asks = append(book.Asks, level)
	}

	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	return book, true
}

func (s *BookStream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			s.conn.WriteMessage(websocket.PingMessage, nil)
			s.connMu.Unlock()
		}
	}
}
