package wsconn

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/fd1az/portfolio-optimizer/internal/logger"
)

type state struct {
	Status string `json:"status"`
	Seq    int    `json:"seq"`
}

type fakeSource struct {
	mu      sync.Mutex
	current state
	subs    []chan state
}

func (f *fakeSource) Snapshot() state {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeSource) Subscribe() (<-chan state, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan state, 4)
	f.subs = append(f.subs, ch)
	return ch, func() {}
}

func (f *fakeSource) publish(s state) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.current = s
	for _, ch := range f.subs {
		ch <- s
	}
}

func (f *fakeSource) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestStreamer_SendsSnapshotThenUpdates(t *testing.T) {
	src := &fakeSource{current: state{Status: "disconnected"}}
	cfg := DefaultConfig()
	cfg.PingInterval = 0

	srv := httptest.NewServer(NewStreamer[state](src, cfg, logger.NewDiscard()))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.CloseNow()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got state
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if got.Status != "disconnected" {
		t.Errorf("expected initial snapshot, got %+v", got)
	}

	deadline := time.Now().Add(time.Second)
	for src.subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	src.publish(state{Status: "connected", Seq: 1})

	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if got.Status != "connected" || got.Seq != 1 {
		t.Errorf("expected connected update, got %+v", got)
	}
}

func TestStreamer_TracksClients(t *testing.T) {
	src := &fakeSource{}
	cfg := DefaultConfig()
	cfg.PingInterval = 10 * time.Millisecond

	streamer := NewStreamer[state](src, cfg, logger.NewDiscard())
	srv := httptest.NewServer(streamer)
	defer srv.Close()

	conn := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got state
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}

	if streamer.Clients() != 1 {
		t.Errorf("expected 1 client, got %d", streamer.Clients())
	}

	// Keep reading so pings get answered, then leave.
	readCtx := conn.CloseRead(ctx)
	time.Sleep(50 * time.Millisecond)
	if readCtx.Err() != nil {
		t.Fatalf("connection closed unexpectedly: %v", readCtx.Err())
	}
	conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(time.Second)
	for streamer.Clients() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if streamer.Clients() != 0 {
		t.Errorf("expected client to be released, got %d", streamer.Clients())
	}
}
