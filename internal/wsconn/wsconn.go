// Package wsconn streams state snapshots to WebSocket clients.
package wsconn

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/fd1az/portfolio-optimizer/internal/logger"
)

// Source publishes snapshots. Subscribe returns a channel of updates and a
// cancel func; the channel may drop intermediate values.
type Source[T any] interface {
	Snapshot() T
	Subscribe() (<-chan T, func())
}

// Config holds stream settings.
type Config struct {
	PingInterval   time.Duration // 0 disables pings
	WriteTimeout   time.Duration
	OriginPatterns []string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PingInterval: 30 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// Streamer is an http.Handler that sends the current snapshot on connect and
// every update afterwards as JSON text frames. Client messages are ignored.
type Streamer[T any] struct {
	src     Source[T]
	cfg     Config
	log     logger.LoggerInterface
	clients atomic.Int64
}

// NewStreamer creates a Streamer over src.
func NewStreamer[T any](src Source[T], cfg Config, log logger.LoggerInterface) *Streamer[T] {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Streamer[T]{src: src, cfg: cfg, log: log}
}

// Clients returns the number of connected clients.
func (s *Streamer[T]) Clients() int64 {
	return s.clients.Load()
}

func (s *Streamer[T]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.OriginPatterns,
	})
	if err != nil {
		s.log.Warn(r.Context(), "websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	s.clients.Add(1)
	defer s.clients.Add(-1)

	// CloseRead keeps the read side drained (pongs, close frames) and cancels
	// ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	updates, cancel := s.src.Subscribe()
	defer cancel()

	if err := s.write(ctx, conn, s.src.Snapshot()); err != nil {
		return
	}

	var ping <-chan time.Time
	if s.cfg.PingInterval > 0 {
		t := time.NewTicker(s.cfg.PingInterval)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case snap, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "stream closed")
				return
			}
			if err := s.write(ctx, conn, snap); err != nil {
				return
			}
		case <-ping:
			pingCtx, cancelPing := context.WithTimeout(ctx, s.cfg.WriteTimeout)
			err := conn.Ping(pingCtx)
			cancelPing()
			if err != nil {
				s.log.Debug(ctx, "websocket ping failed", "error", err)
				return
			}
		}
	}
}

func (s *Streamer[T]) write(ctx context.Context, conn *websocket.Conn, v T) error {
	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	err := wsjson.Write(writeCtx, conn, v)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Debug(ctx, "websocket write failed", "error", err)
	}
	return err
}
