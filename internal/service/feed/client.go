// Package feed implements a MarketStream over a WebSocket quote feed.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"PortPulse/internal/domain/models"
	drepo "PortPulse/internal/domain/repository"
	"PortPulse/pkg/logger"
)

// Client connects to a quote feed that pushes JSON frames of the form
// {"type":"quote","data":[{...}]}. Non-quote frames are ignored.
type Client struct {
	log            *logger.Logger
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	mu        sync.Mutex // guards conn and connected
	wmu       sync.Mutex // serializes control-frame writes
	conn      *websocket.Conn
	connected bool
}

// New creates a feed client.
func New(log *logger.Logger, apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration) drepo.MarketStream {
	return &Client{
		log:            log,
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect dials the WebSocket endpoint.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("feed connected", logger.String("url", c.websocketURL))
	return nil
}

// Subscribe registers the configured symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	conn := c.current()
	if conn == nil {
		return fmt.Errorf("feed not connected")
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	for _, s := range c.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	c.log.Info("feed subscribed", logger.Strings("symbols", c.symbols))
	return nil
}

type wireQuote struct {
	S   string  `json:"s"`
	Bid float64 `json:"b"`
	Ask float64 `json:"a"`
	P   float64 `json:"p"`
	V   float64 `json:"v"`
	T   int64   `json:"t"` // ms since epoch
}

type wireFrame struct {
	Type string      `json:"type"`
	Data []wireQuote `json:"data"`
}

// Read streams raw ticks and errors from the current connection. Both
// channels close when the read loop exits; the ping loop exits with it. A
// slow consumer drops ticks rather than blocking the socket.
func (c *Client) Read(ctx context.Context) (<-chan models.RawTick, <-chan error) {
	ticks := make(chan models.RawTick, 1024)
	errs := make(chan error, 1)
	done := make(chan struct{})
	conn := c.current()

	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if conn != nil {
					c.wmu.Lock()
					_ = conn.WriteMessage(websocket.PingMessage, nil)
					c.wmu.Unlock()
				}
			}
		}
	}()

	go func() {
		defer close(done)
		defer close(ticks)
		defer close(errs)
		if conn == nil {
			errs <- fmt.Errorf("feed conn nil")
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			default:
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("feed read: %w", err)
					return
				}
				var frame wireFrame
				if err := json.Unmarshal(b, &frame); err != nil {
					continue
				}
				if frame.Type != "quote" {
					continue
				}
				for _, q := range frame.Data {
					tick := models.RawTick{
						Symbol:    q.S,
						Bid:       q.Bid,
						Ask:       q.Ask,
						Last:      q.P,
						Volume:    q.V,
						Timestamp: time.UnixMilli(q.T).UTC(),
					}
					select {
					case ticks <- tick:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return ticks, errs
}

// Reconnect closes the current connection and dials again after the
// configured delay.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected reports connection status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}
