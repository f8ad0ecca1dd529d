package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-chess-web/internal/adapter/chesspresenter"
	"github.com/park285/cheese-chess-web/pkg/chessdto"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
	wsBuffer       = 128
)

// Stream pushes the player's session events over a websocket until either
// side closes.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	player := playerFrom(r.Context())
	c, err := h.sessions.GetOrCreate(r.Context(), player)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		h.logger.Debug("ws_accept_failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	sub := c.Subscribe(wsBuffer)
	defer sub.Close()

	// inbound frames are ignored; CloseRead cancels ctx when the peer leaves
	ctx := conn.CloseRead(r.Context())

	snap, err := c.Snapshot(ctx)
	if err != nil {
		_ = conn.Close(websocket.StatusTryAgainLater, "session unavailable")
		return
	}
	hello := chessdto.StreamFrame{
		Event: chessdto.Event{Kind: chessdto.FrameState, SessionID: snap.SessionID, Generation: snap.Generation},
		State: h.presenter.State(ctx, snap, false),
	}
	if err := writeFrame(ctx, conn, hello); err != nil {
		return
	}
	h.logger.Debug("ws_stream_opened", zap.String("session", snap.SessionID))

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	color := snap.Settings.PlayerColor
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				h.logger.Debug("ws_ping_failed", zap.Error(err))
				return
			}
		case ev, ok := <-sub.C:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "session closed")
				return
			}
			if ev.Generation != snap.Generation {
				// a new game started; the player's colour may have changed
				if fresh, err := c.Snapshot(ctx); err == nil {
					snap = fresh
					color = snap.Settings.PlayerColor
				}
			}
			if err := writeFrame(ctx, conn, chesspresenter.ToDTOEvent(ev, color)); err != nil {
				if !errors.Is(err, context.Canceled) {
					h.logger.Debug("ws_write_failed", zap.Error(err))
				}
				return
			}
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, v any) error {
	wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, v)
}
