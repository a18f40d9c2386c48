package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/apexpool/feetier/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second
)

// readingMessage is the wire format of one volatility update from the feed.
// Readings are ordered shortest window first, in pips.
type readingMessage struct {
	PoolID   string  `json:"pool_id"`
	Readings []int64 `json:"readings"`
	Ts       int64   `json:"ts"` // unix milliseconds
}

// subscribeCommand asks the feed to stream updates for the given pools.
type subscribeCommand struct {
	Type  string   `json:"type"`
	Pools []string `json:"pools"`
}

// WSFeed connects to a volatility oracle websocket, subscribes to updates for
// the configured pools, and writes every reading set into the reading cache.
// It reconnects with a fixed delay on disconnect.
type WSFeed struct {
	wsURL   string
	poolIDs []string
	cache   domain.ReadingCache
	logger  *slog.Logger
}

// NewWSFeed creates a feed that will subscribe to the given pool IDs.
func NewWSFeed(wsURL string, poolIDs []string, cache domain.ReadingCache, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		wsURL:   wsURL,
		poolIDs: poolIDs,
		cache:   cache,
		logger:  logger.With(slog.String("component", "oracle_ws_feed")),
	}
}

// Run connects, subscribes, and consumes reading messages until ctx is
// cancelled. Disconnects trigger a reconnect after a short delay.
func (f *WSFeed) Run(ctx context.Context) error {
	if len(f.poolIDs) == 0 {
		f.logger.Info("no pools to subscribe, exiting")
		return nil
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("oracle ws disconnected, reconnecting", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

// runConnection handles one connection lifetime: dial, subscribe, read until
// failure or cancellation.
func (f *WSFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("oracle/ws: connect: %w", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	cmd := subscribeCommand{Type: "subscribe", Pools: f.poolIDs}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("oracle/ws: subscribe: %w", err)
	}
	f.logger.Info("oracle ws subscribed", slog.Int("pools", len(f.poolIDs)))

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("oracle/ws: read: %w", err)
		}
		f.handleMessage(ctx, payload)
	}
}

// handleMessage decodes one reading message and stores it. Malformed or
// empty messages are logged and skipped; the stream keeps going.
func (f *WSFeed) handleMessage(ctx context.Context, payload []byte) {
	var msg readingMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		f.logger.Warn("oracle ws: malformed message", slog.String("error", err.Error()))
		return
	}
	if msg.PoolID == "" || len(msg.Readings) == 0 {
		return
	}

	ts := time.UnixMilli(msg.Ts)
	if msg.Ts == 0 {
		ts = time.Now()
	}
	if err := f.cache.SetReadings(ctx, msg.PoolID, msg.Readings, ts); err != nil {
		f.logger.Warn("oracle ws: store readings failed",
			slog.String("pool_id", msg.PoolID),
			slog.String("error", err.Error()),
		)
	}
}
