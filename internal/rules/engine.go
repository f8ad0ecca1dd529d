package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
	"go.uber.org/zap"

	"github.com/park285/cheese-chess-web/internal/domain"
)

var (
	ErrIllegalMove     = errors.New("illegal move")
	ErrMalformedMove   = errors.New("malformed move")
	ErrInvalidFEN      = errors.New("invalid fen")
	ErrGameAlreadyOver = errors.New("game already over")
)

// DefaultPromotion is used when a pawn promotes without an explicit hint.
const DefaultPromotion = "q"

// Result describes the outcome of applying one move.
type Result struct {
	Position  Position
	UCI       string
	SAN       string
	Mover     domain.Side
	Capture   bool
	Checkmate bool
	Draw      bool
	Winner    domain.Side
	Method    string
	Outcome   string
}

// Terminal reports whether the move ended the game.
func (r Result) Terminal() bool { return r.Checkmate || r.Draw }

// Engine validates and applies moves. It holds no game state; every call
// rebuilds the game from the Position it was given.
type Engine struct {
	logger *zap.Logger

	ecoOnce sync.Once
	eco     *opening.BookECO
}

func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Initial returns the standard start position.
func (e *Engine) Initial() Position {
	return Position{startFEN: StartFEN, fen: StartFEN, turn: domain.White}
}

// FromFEN builds a root position from an arbitrary FEN.
func (e *Engine) FromFEN(fen string) (Position, error) {
	if isStartFEN(fen) {
		return e.Initial(), nil
	}
	opt, err := nchess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	game := nchess.NewGame(opt)
	return Position{
		startFEN: strings.TrimSpace(fen),
		fen:      game.FEN(),
		turn:     sideOf(game.Position().Turn()),
	}, nil
}

// Apply validates from/to against pos and returns the resulting position.
// promo is consulted only when the pawn on from promotes on to.
func (e *Engine) Apply(pos Position, from, to, promo string) (Result, error) {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	if !validSquare(from) || !validSquare(to) {
		return Result{}, fmt.Errorf("%w: %q-%q", ErrMalformedMove, from, to)
	}

	game, err := e.playable(pos)
	if err != nil {
		return Result{}, err
	}
	valid := game.ValidMoves()
	if mv := findMove(valid, from+to); mv != nil {
		return e.play(pos, game, mv)
	}
	if findMove(valid, from+to+DefaultPromotion) == nil {
		return Result{}, fmt.Errorf("%w: %q", ErrIllegalMove, from+to)
	}

	promo = strings.ToLower(strings.TrimSpace(promo))
	if promo == "" {
		promo = DefaultPromotion
	}
	if !validPromotion(promo) {
		return Result{}, fmt.Errorf("%w: promotion %q", ErrMalformedMove, promo)
	}
	mv := findMove(valid, from+to+promo)
	if mv == nil {
		return Result{}, fmt.Errorf("%w: %q", ErrIllegalMove, from+to+promo)
	}
	return e.play(pos, game, mv)
}

// ApplyNotation accepts a UCI string and falls back to SAN.
func (e *Engine) ApplyNotation(pos Position, text string) (Result, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Result{}, fmt.Errorf("%w: empty", ErrMalformedMove)
	}
	uci := strings.ToLower(raw)
	if looksLikeUCI(uci) {
		return e.applyUCI(pos, uci)
	}

	game, err := e.playable(pos)
	if err != nil {
		return Result{}, err
	}
	before := game.Position()
	mv, err := nchess.AlgebraicNotation{}.Decode(before, raw)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %q: %v", ErrIllegalMove, raw, err)
	}
	if err := game.Move(mv, nil); err != nil {
		return Result{}, fmt.Errorf("%w: %q: %v", ErrIllegalMove, raw, err)
	}
	return e.resultFrom(pos, game, before, mv), nil
}

// Game rebuilds a corentings game for pos, e.g. for PGN export or rendering.
func (e *Engine) Game(pos Position) (*nchess.Game, error) {
	return e.replay(pos)
}

// LegalMoves lists the UCI moves available in pos, sorted.
func (e *Engine) LegalMoves(pos Position) ([]string, error) {
	game, err := e.replay(pos)
	if err != nil {
		return nil, err
	}
	if game.Outcome() != nchess.NoOutcome {
		return nil, nil
	}
	valid := game.ValidMoves()
	out := make([]string, 0, len(valid))
	for _, mv := range valid {
		out = append(out, mv.String())
	}
	sort.Strings(out)
	return out, nil
}

// applyUCI resolves uci against the legal moves of pos. UCINotation.Decode
// panics on an empty from-square, so raw input never reaches it.
func (e *Engine) applyUCI(pos Position, uci string) (Result, error) {
	game, err := e.playable(pos)
	if err != nil {
		return Result{}, err
	}
	mv := findMove(game.ValidMoves(), uci)
	if mv == nil {
		return Result{}, fmt.Errorf("%w: %q", ErrIllegalMove, uci)
	}
	return e.play(pos, game, mv)
}

func (e *Engine) playable(pos Position) (*nchess.Game, error) {
	game, err := e.replay(pos)
	if err != nil {
		return nil, err
	}
	if game.Outcome() != nchess.NoOutcome {
		return nil, ErrGameAlreadyOver
	}
	return game, nil
}

func (e *Engine) play(pos Position, game *nchess.Game, mv *nchess.Move) (Result, error) {
	before := game.Position()
	if err := game.Move(mv, nil); err != nil {
		return Result{}, fmt.Errorf("%w: %q: %v", ErrIllegalMove, mv.String(), err)
	}
	return e.resultFrom(pos, game, before, mv), nil
}

func findMove(valid []nchess.Move, uci string) *nchess.Move {
	for i := range valid {
		if valid[i].String() == uci {
			return &valid[i]
		}
	}
	return nil
}

func (e *Engine) resultFrom(pos Position, game *nchess.Game, before *nchess.Position, mv *nchess.Move) Result {
	claimDraw(game)

	uci := nchess.UCINotation{}.Encode(before, mv)
	res := Result{
		UCI:     uci,
		SAN:     nchess.AlgebraicNotation{}.Encode(before, mv),
		Mover:   sideOf(before.Turn()),
		Capture: mv.HasTag(nchess.Capture),
		Outcome: game.Outcome().String(),
	}

	switch game.Outcome() {
	case nchess.WhiteWon:
		res.Checkmate = game.Method() == nchess.Checkmate
		res.Winner = domain.White
		res.Method = methodName(game.Method())
	case nchess.BlackWon:
		res.Checkmate = game.Method() == nchess.Checkmate
		res.Winner = domain.Black
		res.Method = methodName(game.Method())
	case nchess.Draw:
		res.Draw = true
		res.Method = methodName(game.Method())
	}

	res.Position = pos.withMove(uci, game.FEN(), sideOf(game.Position().Turn()), e.openingFor(game))
	return res
}

func (e *Engine) replay(pos Position) (*nchess.Game, error) {
	var game *nchess.Game
	if isStartFEN(pos.startFEN) {
		game = nchess.NewGame()
	} else {
		opt, err := nchess.FEN(pos.startFEN)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
		}
		game = nchess.NewGame(opt)
	}
	for _, mv := range pos.moves {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			e.logger.Warn("rules_replay_failed", zap.String("move", mv), zap.Int("ply", len(pos.moves)), zap.Error(err))
			return nil, fmt.Errorf("replay move %s: %w", mv, err)
		}
	}
	return game, nil
}

func (e *Engine) openingFor(game *nchess.Game) string {
	e.ecoOnce.Do(func() {
		e.eco = opening.NewBookECO()
	})
	if e.eco == nil {
		return ""
	}
	found := e.eco.Find(game.Moves())
	if found == nil {
		return ""
	}
	code := strings.TrimSpace(found.Code())
	title := strings.TrimSpace(found.Title())
	switch {
	case code == "":
		return title
	case title == "":
		return code
	}
	return code + " " + title
}

// claimDraw ends the game on a claimable threefold repetition or fifty-move draw.
func claimDraw(game *nchess.Game) {
	if game.Outcome() != nchess.NoOutcome {
		return
	}
	for _, method := range game.EligibleDraws() {
		if method == nchess.ThreefoldRepetition || method == nchess.FiftyMoveRule {
			_ = game.Draw(method)
			return
		}
	}
}

func methodName(m nchess.Method) string {
	switch m {
	case nchess.Checkmate:
		return "checkmate"
	case nchess.Resignation:
		return "resignation"
	case nchess.DrawOffer:
		return "draw_offer"
	case nchess.Stalemate:
		return "stalemate"
	case nchess.ThreefoldRepetition:
		return "threefold_repetition"
	case nchess.FivefoldRepetition:
		return "fivefold_repetition"
	case nchess.FiftyMoveRule:
		return "fifty_move_rule"
	case nchess.SeventyFiveMoveRule:
		return "seventy_five_move_rule"
	case nchess.InsufficientMaterial:
		return "insufficient_material"
	default:
		return ""
	}
}

func sideOf(c nchess.Color) domain.Side {
	if c == nchess.Black {
		return domain.Black
	}
	return domain.White
}

func validSquare(sq string) bool {
	return len(sq) == 2 && sq[0] >= 'a' && sq[0] <= 'h' && sq[1] >= '1' && sq[1] <= '8'
}

func validPromotion(p string) bool {
	switch p {
	case "q", "r", "b", "n":
		return true
	}
	return false
}

func looksLikeUCI(s string) bool {
	switch len(s) {
	case 4:
		return validSquare(s[:2]) && validSquare(s[2:4])
	case 5:
		return validSquare(s[:2]) && validSquare(s[2:4]) && validPromotion(s[4:])
	}
	return false
}
