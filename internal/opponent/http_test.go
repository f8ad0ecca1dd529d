package opponent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/cheese-chess-web/internal/domain"
)

const afterE4 = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"

func TestHTTPClientPostsFENAndDifficulty(t *testing.T) {
	var got predictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("missing injected header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"move": " e7e5 "})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/predict",
		WithTimeout(2*time.Second),
		WithHeaderProvider(func() map[string]string { return map[string]string{"X-Api-Key": "secret", "": "skip"} }),
	)
	move, err := c.RequestMove(context.Background(), Request{FEN: afterE4, Difficulty: domain.DifficultyHard})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if move != "e7e5" {
		t.Fatalf("expected trimmed move e7e5, got %q", move)
	}
	if got.FEN != afterE4 || got.Difficulty != "hard" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestHTTPClientStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model offline", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithRetry(3))
	_, err := c.RequestMove(context.Background(), Request{FEN: afterE4, Difficulty: domain.DifficultyEasy})
	if !errors.Is(err, ErrBadStatus) {
		t.Fatalf("expected ErrBadStatus, got %v", err)
	}
}

func TestHTTPClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"move":"g8f6"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithRetry(2))
	move, err := c.RequestMove(context.Background(), Request{FEN: afterE4, Difficulty: domain.DifficultyMedium})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if move != "g8f6" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected retry to succeed, move=%q calls=%d", move, calls)
	}
}

func TestHTTPClientMalformedAndEmpty(t *testing.T) {
	bodies := map[string]error{
		`not json`:    ErrMalformedResponse,
		`{"move":""}`: ErrEmptyMove,
		`{}`:          ErrEmptyMove,
	}
	for body, want := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		c := NewHTTPClient(srv.URL)
		_, err := c.RequestMove(context.Background(), Request{FEN: afterE4})
		srv.Close()
		if !errors.Is(err, want) {
			t.Fatalf("body %q: expected %v, got %v", body, want, err)
		}
	}
}

func TestHTTPClientTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(url, WithTimeout(500*time.Millisecond))
	_, err := c.RequestMove(context.Background(), Request{FEN: afterE4})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestHTTPClientHonoursCancelledContext(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1/predict")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.RequestMove(ctx, Request{FEN: afterE4}); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport on cancelled ctx, got %v", err)
	}
}

func TestBackoffDuration(t *testing.T) {
	if backoffDuration(1) != 100*time.Millisecond || backoffDuration(2) != 200*time.Millisecond {
		t.Fatalf("unexpected early backoff")
	}
	if backoffDuration(99) != backoffDuration(6) {
		t.Fatalf("backoff must cap")
	}
}

func TestNewHTTPClientDefaultsEndpoint(t *testing.T) {
	if got := NewHTTPClient("  ").Endpoint(); got != DefaultEndpoint {
		t.Fatalf("expected default endpoint, got %q", got)
	}
}
