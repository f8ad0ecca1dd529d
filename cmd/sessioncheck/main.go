package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/park285/cheese-chess-web/internal/domain"
	"github.com/park285/cheese-chess-web/internal/httpapi"
	"github.com/park285/cheese-chess-web/internal/opponent"
	"github.com/park285/cheese-chess-web/internal/rules"
	"github.com/park285/cheese-chess-web/pkg/chessclient"
	"github.com/park285/cheese-chess-web/pkg/chessdto"
)

// sessioncheck probes a deployment: one predictor request, then a short
// look at the event stream of a running chess-web server.
func main() {
	predictURL := strings.TrimSpace(os.Getenv("OPPONENT_URL"))
	apiKey := strings.TrimSpace(os.Getenv("OPPONENT_API_KEY"))
	serverURL := strings.TrimSpace(os.Getenv("CHESS_WEB_URL"))

	if predictURL == "" && serverURL == "" {
		log.Fatal("OPPONENT_URL or CHESS_WEB_URL is required")
	}

	if predictURL != "" {
		checkPredictor(predictURL, apiKey)
	} else {
		log.Println("OPPONENT_URL not set; skipping predictor check")
	}

	if serverURL == "" {
		log.Println("CHESS_WEB_URL not set; skipping stream check")
		return
	}
	if err := checkStream(serverURL); err != nil {
		log.Printf("stream check error: %v", err)
	}
}

func checkPredictor(endpoint, apiKey string) {
	client := opponent.NewHTTPClient(endpoint,
		opponent.WithTimeout(8*time.Second),
		opponent.WithHeaderProvider(func() map[string]string {
			if apiKey == "" {
				return nil
			}
			return map[string]string{"X-API-Key": apiKey}
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	move, err := client.RequestMove(ctx, opponent.Request{FEN: rules.StartFEN, Difficulty: domain.DifficultyMedium})
	if err != nil {
		log.Printf("predict error: %v", err)
		return
	}
	log.Printf("predict ok: endpoint=%s move=%s", client.Endpoint(), move)
}

func checkStream(serverURL string) error {
	base, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("parse CHESS_WEB_URL: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	jar.SetCookies(base, []*http.Cookie{{Name: httpapi.PlayerCookie, Value: uuid.NewString(), Path: "/"}})

	wsURL := *base
	if wsURL.Scheme == "https" {
		wsURL.Scheme = "wss"
	} else {
		wsURL.Scheme = "ws"
	}
	wsURL.Path = strings.TrimSuffix(wsURL.Path, "/") + "/ws"

	stream := chessclient.NewStream(wsURL.String(),
		chessclient.WithHTTPClient(&http.Client{Jar: jar}),
		chessclient.WithReconnect(3, time.Second),
	)
	stream.OnStateChange(func(state chessclient.State) {
		log.Printf("WS state: %s", state)
	})
	stream.OnFrame(func(f *chessdto.StreamFrame) {
		if f.State != nil {
			fmt.Printf("WS %s session=%s tail=%d turn=%s\n", f.Kind, f.State.SessionID, f.State.TailIndex, f.State.SideToMove)
			return
		}
		fmt.Printf("WS %s side=%s label=%s\n", f.Kind, f.Side, f.Label)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := stream.Connect(cctx); err != nil {
		_ = stream.Close(context.Background())
		return fmt.Errorf("connect %s: %w", wsURL.String(), err)
	}

	// Observe for a short window
	t := time.NewTimer(10 * time.Second)
	<-t.C

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return stream.Close(closeCtx)
}
