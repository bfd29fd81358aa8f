package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"PolySwarm/internal/domain/models"
	drepo "PolySwarm/internal/domain/repository"
	applogger "PolySwarm/pkg/logger"
)

// Client is a MarketStream backed by the exchange WebSocket feed.
type Client struct {
	apiKey         string
	websocketURL   string
	markets        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	logger         *applogger.Logger

	conn      *websocket.Conn
	connected bool
}

// New creates a market data stream for the given markets.
func New(apiKey, websocketURL string, markets []string, reconnectDelay, pingInterval time.Duration, logger *applogger.Logger) drepo.MarketStream {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		markets:        markets,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		logger:         logger,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("marketdata connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	c.logger.Info("marketdata: connected")
	return nil
}

// Subscribe subscribes to the configured markets. An empty market list
// subscribes to the firehose.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("marketdata not connected")
	}
	if len(c.markets) == 0 {
		if err := c.conn.WriteJSON(map[string]string{"type": "subscribe", "channel": "all"}); err != nil {
			return fmt.Errorf("subscribe all: %w", err)
		}
		return nil
	}
	for _, m := range c.markets {
		msg := map[string]string{"type": "subscribe", "market": m}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", m, err)
		}
		c.logger.Debug("marketdata: subscribed", applogger.String("market", m))
	}
	return nil
}

type wsMarket struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	EndDate  string `json:"end_date"` // RFC3339, optional
}

type wsTrade struct {
	ID      string  `json:"id"`
	Trader  string  `json:"trader"`
	Side    string  `json:"side"`
	Price   float64 `json:"price"`
	SizeUSD float64 `json:"size_usd"`
	T       int64   `json:"t"` // ms
}

type wsFrame struct {
	Type   string   `json:"type"` // trade or price
	Market wsMarket `json:"market"`
	Trade  *wsTrade `json:"trade,omitempty"`
	Price  float64  `json:"price,omitempty"`
	T      int64    `json:"t,omitempty"` // ms, price frames
}

// Read pumps feed frames into typed event channels. Unparseable frames
// are skipped; events are dropped on backpressure rather than stalling
// the socket.
func (c *Client) Read(ctx context.Context) (<-chan models.TradeEvent, <-chan models.PriceEvent, <-chan error) {
	trades := make(chan models.TradeEvent, 1024)
	prices := make(chan models.PriceEvent, 1024)
	errs := make(chan error, 1)

	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	go func() {
		defer close(trades)
		defer close(prices)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if c.conn == nil {
				errs <- fmt.Errorf("marketdata conn nil")
				return
			}
			_, b, err := c.conn.ReadMessage()
			if err != nil {
				errs <- fmt.Errorf("marketdata read: %w", err)
				return
			}
			var frame wsFrame
			if err := json.Unmarshal(b, &frame); err != nil {
				continue
			}
			market := frame.Market.toModel()
			switch frame.Type {
			case "trade":
				if frame.Trade == nil || market == nil {
					continue
				}
				event := models.TradeEvent{
					Trade: models.WhaleTrade{
						ID:        frame.Trade.ID,
						MarketID:  market.ID,
						Trader:    frame.Trade.Trader,
						Side:      models.Decision(frame.Trade.Side),
						Price:     frame.Trade.Price,
						SizeUSD:   frame.Trade.SizeUSD,
						Timestamp: time.UnixMilli(frame.Trade.T),
					},
					Market: market,
				}
				select {
				case trades <- event:
				default:
					// drop on backpressure
				}
			case "price":
				if market == nil {
					continue
				}
				event := models.PriceEvent{
					Snapshot: models.PriceSnapshot{
						MarketID:  market.ID,
						Price:     frame.Price,
						Timestamp: time.UnixMilli(frame.T),
					},
					Market: market,
				}
				select {
				case prices <- event:
				default:
				}
			}
		}
	}()

	return trades, prices, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// IsConnected reports whether the socket is up.
func (c *Client) IsConnected() bool {
	return c.connected && c.conn != nil
}

// Close closes the WebSocket connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (m wsMarket) toModel() *models.Market {
	if m.ID == "" {
		return nil
	}
	out := &models.Market{ID: m.ID, Question: m.Question}
	if m.EndDate != "" {
		if t, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
			out.EndDate = &t
		}
	}
	return out
}
