// Package httpapi exposes the session controller over HTTP and a websocket
// notification stream.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-web/internal/adapter/chesspresenter"
	"github.com/park285/cheese-chess-web/internal/domain"
	"github.com/park285/cheese-chess-web/internal/session"
	"github.com/park285/cheese-chess-web/internal/settings"
	"github.com/park285/cheese-chess-web/pkg/chessdto"
)

const (
	maxBodyBytes     = 16 << 10
	defaultHistory   = 20
	maxHistory       = 100
	operationTimeout = 10 * time.Second
)

// Sessions resolves the live controller for a player.
type Sessions interface {
	GetOrCreate(ctx context.Context, playerID string) (*session.Controller, error)
}

// Archive reads finished games.
type Archive interface {
	List(ctx context.Context, playerID string, limit int) ([]*domain.FinishedGame, error)
	Get(ctx context.Context, id int64, playerID string) (*domain.FinishedGame, error)
}

type Config struct {
	Sessions  Sessions
	Settings  settings.Store
	Archive   Archive
	Presenter *chesspresenter.Presenter
	Logger    *zap.Logger
	// StaticDir is served at / when set.
	StaticDir string
	// SecureCookie marks the player cookie Secure.
	SecureCookie bool
}

type Handler struct {
	sessions     Sessions
	settings     settings.Store
	archive      Archive
	presenter    *chesspresenter.Presenter
	logger       *zap.Logger
	staticDir    string
	secureCookie bool
}

func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("session registry is required")
	}
	if cfg.Settings == nil {
		return nil, errors.New("settings store is required")
	}
	h := &Handler{
		sessions:     cfg.Sessions,
		settings:     cfg.Settings,
		archive:      cfg.Archive,
		presenter:    cfg.Presenter,
		logger:       cfg.Logger,
		staticDir:    strings.TrimSpace(cfg.StaticDir),
		secureCookie: cfg.SecureCookie,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.presenter == nil {
		h.presenter = chesspresenter.NewPresenter(nil, h.logger)
	}
	return h, nil
}

// Routes returns the API mux wrapped with the player cookie middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Health)

	mux.HandleFunc("GET /api/settings", h.GetSettings)
	mux.HandleFunc("PUT /api/settings", h.PutSettings)

	mux.HandleFunc("POST /api/game/new", h.NewGame)
	mux.HandleFunc("GET /api/game", h.State)
	mux.HandleFunc("POST /api/game/move", h.Move)
	mux.HandleFunc("POST /api/game/navigate", h.Navigate)
	mux.HandleFunc("POST /api/game/retry", h.Retry)
	mux.HandleFunc("GET /api/game/board.png", h.Board)

	mux.HandleFunc("GET /api/games", h.ListGames)
	mux.HandleFunc("GET /api/games/{id}", h.GetGame)

	mux.HandleFunc("GET /ws", h.Stream)

	if h.staticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(h.staticDir)))
	}
	return h.withPlayer(mux)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Get(r.Context(), playerFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chessdto.SettingsResponse{Settings: chesspresenter.ToDTOSettings(s)})
}

func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var patch chessdto.SettingsPatch
	if !h.decode(w, r, &patch) {
		return
	}
	s, err := settings.Update(r.Context(), h.settings, playerFrom(r.Context()), chesspresenter.FromDTOPatch(&patch))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chessdto.SettingsResponse{Settings: chesspresenter.ToDTOSettings(s)})
}

// NewGame starts a game with the stored settings, after applying and saving
// an optional patch.
func (h *Handler) NewGame(w http.ResponseWriter, r *http.Request) {
	var req chessdto.NewGameRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), operationTimeout)
	defer cancel()
	player := playerFrom(ctx)

	var (
		s   domain.Settings
		err error
	)
	if req.Settings != nil {
		s, err = settings.Update(ctx, h.settings, player, chesspresenter.FromDTOPatch(req.Settings))
	} else {
		s, err = h.settings.Get(ctx, player)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	c, err := h.sessions.GetOrCreate(ctx, player)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	snap, err := c.StartNewGame(ctx, s)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.presenter.State(ctx, snap, wantImage(r)))
}

func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	h.withController(w, r, func(ctx context.Context, c *session.Controller) {
		snap, err := c.Snapshot(ctx)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, h.presenter.State(ctx, snap, wantImage(r)))
	})
}

func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	var req chessdto.MoveRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.From) == "" || strings.TrimSpace(req.To) == "" {
		h.writeDomainError(w, http.StatusBadRequest, chessdto.DomainError{Code: chessdto.CodeInvalidRequest, Message: "from and to are required"})
		return
	}
	h.withController(w, r, func(ctx context.Context, c *session.Controller) {
		out, err := c.SubmitHumanMove(ctx, strings.ToLower(req.From), strings.ToLower(req.To), strings.ToLower(req.Promotion))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		snap, err := c.Snapshot(ctx)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, chessdto.MoveResult{
			Accepted:   out.Accepted,
			Terminal:   out.Terminal.IsSet(),
			Outcome:    chesspresenter.ToDTOOutcome(out.Terminal, snap.Settings.PlayerColor),
			Dispatched: out.Dispatched,
			State:      h.presenter.State(ctx, snap, wantImage(r)),
		})
	})
}

func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req chessdto.NavigateRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.withController(w, r, func(ctx context.Context, c *session.Controller) {
		snap, err := c.NavigateToHalfMove(ctx, req.Index)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, h.presenter.State(ctx, snap, wantImage(r)))
	})
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	h.withController(w, r, func(ctx context.Context, c *session.Controller) {
		if err := c.RetryOpponent(ctx); err != nil {
			h.writeError(w, r, err)
			return
		}
		snap, err := c.Snapshot(ctx)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, h.presenter.State(ctx, snap, false))
	})
}

func (h *Handler) Board(w http.ResponseWriter, r *http.Request) {
	h.withController(w, r, func(ctx context.Context, c *session.Controller) {
		snap, err := c.Snapshot(ctx)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		png, err := h.presenter.Board(ctx, snap)
		if err != nil {
			h.logger.Warn("board_render_failed", zap.String("session", snap.SessionID), zap.Error(err))
			h.writeDomainError(w, http.StatusServiceUnavailable, chessdto.DomainError{Code: chessdto.CodeUnavailable, Message: "board image unavailable"})
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	})
}

func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeJSON(w, http.StatusOK, chessdto.HistoryResponse{Games: []*chessdto.ChessGame{}})
		return
	}
	limit := defaultHistory
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeDomainError(w, http.StatusBadRequest, chessdto.DomainError{Code: chessdto.CodeInvalidRequest, Message: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistory)
	}
	games, err := h.archive.List(r.Context(), playerFrom(r.Context()), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chessdto.HistoryResponse{Games: chesspresenter.ToDTOGames(games)})
}

func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeDomainError(w, http.StatusBadRequest, chessdto.DomainError{Code: chessdto.CodeInvalidRequest, Message: "invalid game id"})
		return
	}
	if h.archive == nil {
		h.writeDomainError(w, http.StatusNotFound, chessdto.DomainError{Code: chessdto.CodeNotFound, Message: "game not found"})
		return
	}
	game, err := h.archive.Get(r.Context(), id, playerFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "pgn" {
		w.Header().Set("Content-Type", "application/x-chess-pgn")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=game-%d.pgn", id))
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, game.PGN)
		return
	}
	writeJSON(w, http.StatusOK, chessdto.GameResponse{Game: chesspresenter.ToDTOGame(game)})
}

func (h *Handler) withController(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, c *session.Controller)) {
	ctx, cancel := context.WithTimeout(r.Context(), operationTimeout)
	defer cancel()
	c, err := h.sessions.GetOrCreate(ctx, playerFrom(ctx))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	fn(ctx, c)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeDomainError(w, http.StatusBadRequest, chessdto.DomainError{Code: chessdto.CodeInvalidRequest, Message: "invalid JSON body"})
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func (h *Handler) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	h.writeDomainError(w, http.StatusBadRequest, chessdto.DomainError{Code: chessdto.CodeInvalidRequest, Message: "invalid JSON body"})
	return false
}

func wantImage(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("image")) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
