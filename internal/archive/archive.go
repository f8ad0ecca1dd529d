package archive

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-web/internal/domain"
)

var (
	ErrDuplicateGame = errors.New("chess game already archived")
	ErrGameNotFound  = errors.New("chess game not found")
)

const defaultListLimit = 20

type Repository interface {
	InsertGame(ctx context.Context, game *domain.FinishedGame) (int64, error)
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]*domain.FinishedGame, error)
	GetGame(ctx context.Context, id int64, playerID string) (*domain.FinishedGame, error)
}

// Archiver stores finished sessions. It satisfies session.Recorder.
type Archiver struct {
	repo   Repository
	logger *zap.Logger
}

func NewArchiver(repo Repository, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{repo: repo, logger: logger}
}

// Record fills in the PGN and duration and inserts the game. A session that
// was already archived is not an error.
func (a *Archiver) Record(ctx context.Context, game domain.FinishedGame) error {
	if a == nil || a.repo == nil {
		return nil
	}
	if game.Duration <= 0 && !game.StartedAt.IsZero() && game.EndedAt.After(game.StartedAt) {
		game.Duration = game.EndedAt.Sub(game.StartedAt)
	}
	if game.PGN == "" {
		game.PGN = BuildPGN(&game)
	}

	id, err := a.repo.InsertGame(ctx, &game)
	if errors.Is(err, ErrDuplicateGame) {
		a.logger.Debug("archive_duplicate_skipped", zap.String("session", game.SessionID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("archive game %s: %w", game.SessionID, err)
	}
	a.logger.Info("archive_game_stored",
		zap.Int64("id", id),
		zap.String("session", game.SessionID),
		zap.String("player", game.PlayerID),
		zap.String("result", game.Result),
		zap.Int("plies", len(game.MovesUCI)),
	)
	return nil
}

func (a *Archiver) List(ctx context.Context, playerID string, limit int) ([]*domain.FinishedGame, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return a.repo.ListByPlayer(ctx, playerID, limit)
}

func (a *Archiver) Get(ctx context.Context, id int64, playerID string) (*domain.FinishedGame, error) {
	return a.repo.GetGame(ctx, id, playerID)
}
