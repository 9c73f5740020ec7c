package market

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/GoPolymarket/levergate/internal/pkg/logger"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	ReconnBaseDelay = 1 * time.Second
	ReconnMaxDelay  = 30 * time.Second
	PingPeriod      = 15 * time.Second // Keep-alive interval
)

var _ Provider = (*PriceFeed)(nil)

// PriceFeed keeps the latest price per feed from a websocket stream and refuses
// to serve prices older than maxStale.
type PriceFeed struct {
	url         string
	maxStale    time.Duration
	conn        *websocket.Conn
	writeMu     sync.Mutex
	mu          sync.RWMutex
	quotes      map[string]*Quote
	subs        []string
	ctx         context.Context
	cancel      context.CancelFunc
	isConnected bool
	now         func() time.Time
}

func NewPriceFeed(url string, maxStale time.Duration) *PriceFeed {
	if maxStale <= 0 {
		maxStale = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PriceFeed{
		url:      url,
		maxStale: maxStale,
		quotes:   make(map[string]*Quote),
		subs:     make([]string, 0),
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
}

// Start launches the connection loop in a background goroutine
func (f *PriceFeed) Start() {
	go f.runLoop()
}

func (f *PriceFeed) Stop() {
	f.cancel()
	f.mu.RLock()
	conn := f.conn
	f.mu.RUnlock()
	if conn != nil {
		conn.Close()
	}
}

// Subscribe adds feeds and subscribes immediately when connected.
func (f *PriceFeed) Subscribe(feeds []string) {
	f.mu.Lock()
	added := make([]string, 0, len(feeds))
	for _, feed := range feeds {
		if _, ok := f.quotes[feed]; ok {
			continue
		}
		f.quotes[feed] = NewQuote(feed)
		f.subs = append(f.subs, feed)
		added = append(added, feed)
	}
	connected := f.isConnected
	f.mu.Unlock()

	if len(added) > 0 && connected {
		if err := f.sendSubscribe(added); err != nil {
			logger.Error("Failed to subscribe", "error", err, "feeds", added)
		}
	}
}

func (f *PriceFeed) Price(ctx context.Context, feed string) (decimal.Decimal, error) {
	f.mu.RLock()
	q, ok := f.quotes[feed]
	f.mu.RUnlock()
	if !ok {
		return decimal.Zero, fmt.Errorf("feed %q not subscribed", feed)
	}
	price, updated := q.Get()
	if updated.IsZero() {
		return decimal.Zero, fmt.Errorf("no price received for %q", feed)
	}
	if age := f.now().Sub(updated); age > f.maxStale {
		return decimal.Zero, fmt.Errorf("price for %q is stale (%s old)", feed, age.Round(time.Second))
	}
	return price, nil
}

func (f *PriceFeed) runLoop() {
	delay := ReconnBaseDelay

	for {
		select {
		case <-f.ctx.Done():
			return
		default:
		}

		if err := f.connect(); err != nil {
			logger.Error("Price feed connection failed", "error", err, "retry_in", delay)
			select {
			case <-f.ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > ReconnMaxDelay {
				delay = ReconnMaxDelay
			}
			continue
		}

		delay = ReconnBaseDelay
		f.mu.Lock()
		f.isConnected = true
		allSubs := append([]string(nil), f.subs...)
		f.mu.Unlock()

		if len(allSubs) > 0 {
			if err := f.sendSubscribe(allSubs); err != nil {
				logger.Error("Failed to resubscribe", "error", err)
				f.closeConn()
				continue
			}
		}

		f.readLoop()

		f.mu.Lock()
		f.isConnected = false
		f.mu.Unlock()
	}
}

func (f *PriceFeed) connect() error {
	conn, _, err := websocket.DefaultDialer.DialContext(f.ctx, f.url, nil)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	// Zombie Check: no data or pong within PingPeriod + buffer means dead
	readTimeout := PingPeriod + 10*time.Second
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go func() {
		ticker := time.NewTicker(PingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-f.ctx.Done():
				return
			case <-ticker.C:
				f.writeMu.Lock()
				err := conn.WriteMessage(websocket.PingMessage, []byte{})
				f.writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	return nil
}

type WSMessage struct {
	EventType string `json:"event_type"` // "price"
	Feed      string `json:"feed"`
	Price     string `json:"price"`
	Timestamp int64  `json:"timestamp"` // unix millis, optional
}

func (f *PriceFeed) readLoop() {
	f.mu.RLock()
	conn := f.conn
	f.mu.RUnlock()
	defer conn.Close()

	readTimeout := PingPeriod + 10*time.Second

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			logger.Error("Price feed read error", "error", err)
			return
		}

		var msgs []WSMessage
		if err := json.Unmarshal(message, &msgs); err != nil {
			var single WSMessage
			if err2 := json.Unmarshal(message, &single); err2 != nil {
				continue
			}
			msgs = []WSMessage{single}
		}

		for _, m := range msgs {
			if m.EventType == "price" && m.Feed != "" {
				f.processPrice(m)
			}
		}
	}
}

func (f *PriceFeed) processPrice(msg WSMessage) {
	f.mu.RLock()
	q, ok := f.quotes[msg.Feed]
	f.mu.RUnlock()
	if !ok {
		return
	}
	at := f.now()
	if msg.Timestamp > 0 {
		at = time.UnixMilli(msg.Timestamp)
	}
	if err := q.Update(msg.Price, at); err != nil {
		logger.Warn("Dropping price update", "feed", msg.Feed, "error", err)
	}
}

func (f *PriceFeed) sendSubscribe(feeds []string) error {
	msg := map[string]interface{}{
		"type":  "subscribe",
		"feeds": feeds,
	}

	f.mu.RLock()
	conn := f.conn
	f.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("no connection")
	}
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

func (f *PriceFeed) closeConn() {
	f.mu.RLock()
	conn := f.conn
	f.mu.RUnlock()
	if conn != nil {
		conn.Close()
	}
}
