package chessclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-chess-web/pkg/chessdto"
)

// streamServer sends one state frame per connection. The first connection
// is dropped right after, later ones stay open until the client leaves.
func streamServer(t *testing.T, gotHeader *atomic.Value) *httptest.Server {
	t.Helper()
	var conns atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader.Store(r.Header.Get("X-Player"))
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		n := conns.Add(1)
		frame := chessdto.StreamFrame{
			Event: chessdto.Event{Kind: chessdto.FrameState, SessionID: "s1", Generation: uint64(n)},
			State: &chessdto.SessionState{SessionID: "s1", Generation: uint64(n)},
		}
		if err := wsjson.Write(r.Context(), conn, frame); err != nil {
			return
		}
		if n == 1 {
			_ = conn.Close(websocket.StatusGoingAway, "restart")
			return
		}
		ctx := conn.CloseRead(r.Context())
		<-ctx.Done()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamReconnectsAndResyncs(t *testing.T) {
	var header atomic.Value
	srv := streamServer(t, &header)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	frames := make(chan *chessdto.StreamFrame, 8)
	var mu sync.Mutex
	var states []State

	s := NewStream(wsURL,
		WithReconnect(3, 10*time.Millisecond),
		WithHeaderProvider(func() map[string]string { return map[string]string{"X-Player": "p1", "": "skip"} }),
	)
	s.OnFrame(func(f *chessdto.StreamFrame) { frames <- f })
	s.OnStateChange(func(st State) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	for want := uint64(1); want <= 2; want++ {
		select {
		case f := <-frames:
			if f.Kind != chessdto.FrameState || f.Generation != want || f.State == nil {
				t.Fatalf("unexpected frame %+v", f)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for frame %d", want)
		}
	}
	if got, _ := header.Load().(string); got != "p1" {
		t.Fatalf("handshake header missing, got %q", got)
	}

	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if s.State() != StateDisconnected {
		t.Fatalf("expected disconnected after close, got %s", s.State())
	}

	mu.Lock()
	defer mu.Unlock()
	seen := map[State]bool{}
	for _, st := range states {
		seen[st] = true
	}
	if !seen[StateConnecting] || !seen[StateConnected] || !seen[StateReconnecting] {
		t.Fatalf("unexpected state history %v", states)
	}
}

func TestStreamFailsWithoutReconnect(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := NewStream("ws"+strings.TrimPrefix(srv.URL, "http"), WithReconnect(0, 0))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Connect(ctx); err == nil {
		t.Fatalf("expected a handshake error")
	}
	if s.State() != StateFailed {
		t.Fatalf("expected failed, got %s", s.State())
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestBackoffCaps(t *testing.T) {
	s := NewStream("ws://unused", WithReconnect(3, time.Second))
	if s.backoff(1) != time.Second || s.backoff(3) != 4*time.Second {
		t.Fatalf("unexpected backoff %v %v", s.backoff(1), s.backoff(3))
	}
	if s.backoff(40) != maxBackoff {
		t.Fatalf("backoff should cap at %v, got %v", maxBackoff, s.backoff(40))
	}
}
