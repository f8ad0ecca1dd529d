// Package chessclient is a Go client for the chess-web event stream.
package chessclient

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-chess-web/pkg/chessdto"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

const (
	dialTimeout     = 10 * time.Second
	pingTimeout     = 3 * time.Second
	maxBackoff      = 30 * time.Second
	maxPingFailures = 2
)

type FrameCallback func(frame *chessdto.StreamFrame)

type StateCallback func(state State)

// HeaderProvider injects handshake headers.
type HeaderProvider func() map[string]string

type frameEntry struct {
	id       int
	callback FrameCallback
}

type stateEntry struct {
	id       int
	callback StateCallback
}

// Stream follows /ws and re-dials with backoff when the connection drops.
// Every (re)connect starts with a FrameState frame.
type Stream struct {
	wsURL          string
	httpClient     *http.Client
	headers        HeaderProvider
	maxReconnects  int
	reconnectDelay time.Duration
	pingInterval   time.Duration

	mu    sync.Mutex
	conn  *websocket.Conn
	state State

	cbMu     sync.RWMutex
	frameCbs []frameEntry
	stateCbs []stateEntry
	nextID   int

	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	rootCtx    context.Context
	rootCancel context.CancelFunc
}

type Option func(*Stream)

// WithHTTPClient sets the client used for the handshake, e.g. one with a
// cookie jar holding the player cookie.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Stream) { s.httpClient = c }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(s *Stream) { s.headers = h }
}

// WithReconnect allows up to max re-dials, the first after delay. Zero
// disables reconnecting.
func WithReconnect(max int, delay time.Duration) Option {
	return func(s *Stream) {
		s.maxReconnects = max
		if delay > 0 {
			s.reconnectDelay = delay
		}
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(s *Stream) {
		if d > 0 {
			s.pingInterval = d
		}
	}
}

func NewStream(wsURL string, opts ...Option) *Stream {
	s := &Stream{
		wsURL:          wsURL,
		state:          StateDisconnected,
		maxReconnects:  5,
		reconnectDelay: time.Second,
		pingInterval:   30 * time.Second,
		stopCh:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rootCtx, s.rootCancel = context.WithCancel(context.Background())
	return s
}

// Connect dials once. On failure a reconnect loop is scheduled and the dial
// error is returned.
func (s *Stream) Connect(ctx context.Context) error {
	switch s.State() {
	case StateConnected, StateConnecting, StateReconnecting:
		return nil
	}
	s.setState(StateConnecting)

	conn, err := s.dial(ctx)
	if err != nil {
		s.setState(StateFailed)
		s.scheduleReconnect()
		return err
	}
	s.attach(conn)
	return nil
}

func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Stream) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, s.wsURL, &websocket.DialOptions{
		HTTPClient:      s.httpClient,
		HTTPHeader:      s.buildHeaders(),
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	return conn, err
}

func (s *Stream) attach(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.setState(StateConnected)

	s.wg.Add(1)
	go s.serve(conn)
}

func (s *Stream) serve(conn *websocket.Conn) {
	defer s.wg.Done()
	ctx, cancel := context.WithCancel(s.rootCtx)
	defer cancel()

	s.wg.Add(1)
	go s.pingLoop(ctx, conn)

	for {
		var frame chessdto.StreamFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			if s.isStopping() {
				return
			}
			s.detach(conn, websocket.StatusGoingAway, "reconnect")
			s.setState(StateDisconnected)
			s.scheduleReconnect()
			return
		}
		s.dispatch(&frame)
	}
}

// pingLoop closes conn after consecutive ping failures; serve then sees the
// read error and reconnects.
func (s *Stream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer s.wg.Done()
	t := time.NewTicker(s.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= maxPingFailures {
				_ = conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (s *Stream) scheduleReconnect() {
	if s.maxReconnects <= 0 {
		s.setState(StateFailed)
		return
	}
	s.setState(StateReconnecting)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for attempt := 1; attempt <= s.maxReconnects; attempt++ {
			select {
			case <-s.stopCh:
				return
			case <-time.After(s.backoff(attempt)):
			}
			conn, err := s.dial(s.rootCtx)
			if err != nil {
				continue
			}
			if s.isStopping() {
				_ = conn.Close(websocket.StatusNormalClosure, "close")
				return
			}
			s.attach(conn)
			return
		}
		s.setState(StateFailed)
	}()
}

func (s *Stream) backoff(attempt int) time.Duration {
	d := s.reconnectDelay
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	return min(d, maxBackoff)
}

// OnFrame registers cb for every frame and returns an id for RemoveFrameCallback.
func (s *Stream) OnFrame(cb FrameCallback) int {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.nextID++
	s.frameCbs = append(s.frameCbs, frameEntry{id: s.nextID, callback: cb})
	return s.nextID
}

func (s *Stream) RemoveFrameCallback(id int) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	for i, cb := range s.frameCbs {
		if cb.id == id {
			s.frameCbs = append(s.frameCbs[:i], s.frameCbs[i+1:]...)
			return
		}
	}
}

func (s *Stream) OnStateChange(cb StateCallback) int {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.nextID++
	s.stateCbs = append(s.stateCbs, stateEntry{id: s.nextID, callback: cb})
	return s.nextID
}

func (s *Stream) RemoveStateCallback(id int) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	for i, cb := range s.stateCbs {
		if cb.id == id {
			s.stateCbs = append(s.stateCbs[:i], s.stateCbs[i+1:]...)
			return
		}
	}
}

func (s *Stream) dispatch(frame *chessdto.StreamFrame) {
	s.cbMu.RLock()
	callbacks := make([]frameEntry, len(s.frameCbs))
	copy(callbacks, s.frameCbs)
	s.cbMu.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(frame)
		}
	}
}

func (s *Stream) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.cbMu.RLock()
	callbacks := make([]stateEntry, len(s.stateCbs))
	copy(callbacks, s.stateCbs)
	s.cbMu.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

// Close stops reconnecting, closes the connection and waits for the
// background goroutines or ctx.
func (s *Stream) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	s.rootCancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		s.setState(StateDisconnected)
		return nil
	}
}

func (s *Stream) detach(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close(code, reason)
}

func (s *Stream) isStopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *Stream) buildHeaders() http.Header {
	hdr := http.Header{}
	if s.headers == nil {
		return hdr
	}
	for k, v := range s.headers() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
