package chesspresenter

import (
	"context"
	"encoding/base64"
	"errors"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-web/internal/domain"
	"github.com/park285/cheese-chess-web/internal/render"
	"github.com/park285/cheese-chess-web/internal/session"
	"github.com/park285/cheese-chess-web/pkg/chessdto"
)

var errNoRenderer = errors.New("board renderer not configured")

// BoardRenderer draws a position as PNG.
type BoardRenderer interface {
	RenderPNG(ctx context.Context, fen string, opts render.Options) ([]byte, error)
}

// Presenter turns snapshots into wire state, attaching a board image when a
// renderer is configured.
type Presenter struct {
	renderer BoardRenderer
	logger   *zap.Logger
}

func NewPresenter(renderer BoardRenderer, logger *zap.Logger) *Presenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presenter{renderer: renderer, logger: logger}
}

// State converts snap. withImage embeds the cursor board as base64 PNG.
func (p *Presenter) State(ctx context.Context, snap session.Snapshot, withImage bool) *chessdto.SessionState {
	state := ToDTOState(snap)
	if !withImage || p == nil || p.renderer == nil {
		return state
	}
	png, err := p.Board(ctx, snap)
	if err != nil {
		p.logger.Warn("board_render_failed", zap.String("session", snap.SessionID), zap.Error(err))
		return state
	}
	state.BoardImage = base64.StdEncoding.EncodeToString(png)
	return state
}

// Board renders the cursor position from the player's side.
func (p *Presenter) Board(ctx context.Context, snap session.Snapshot) ([]byte, error) {
	if p == nil || p.renderer == nil {
		return nil, errNoRenderer
	}
	return p.renderer.RenderPNG(ctx, snap.CursorFEN, BoardOptions(snap))
}

func BoardOptions(snap session.Snapshot) render.Options {
	opts := render.Options{
		Flip:   snap.Settings.PlayerColor == domain.Black,
		Header: snap.Opening,
		Status: StatusLine(snap),
	}
	if snap.Cursor > 0 && snap.Cursor <= len(snap.Moves) {
		opts.LastMove = snap.Moves[snap.Cursor-1]
	}
	return opts
}
