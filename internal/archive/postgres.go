package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/cheese-chess-web/internal/domain"
)

// Schema creates the archive table. It is safe to run on every start.
const Schema = `
CREATE TABLE IF NOT EXISTS chess_games (
	id           BIGSERIAL PRIMARY KEY,
	session_id   TEXT NOT NULL UNIQUE,
	player_id    TEXT NOT NULL,
	difficulty   TEXT NOT NULL,
	player_color TEXT NOT NULL,
	time_control TEXT NOT NULL,
	result       TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	winner       TEXT NOT NULL DEFAULT '',
	moves_uci    JSONB NOT NULL DEFAULT '[]'::jsonb,
	moves_san    JSONB NOT NULL DEFAULT '[]'::jsonb,
	pgn          TEXT NOT NULL DEFAULT '',
	opening      TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMPTZ NOT NULL,
	ended_at     TIMESTAMPTZ NOT NULL,
	duration_ms  BIGINT
);
CREATE INDEX IF NOT EXISTS chess_games_player_ended_idx ON chess_games (player_id, ended_at DESC);
`

const selectColumns = `
			id,
			session_id,
			player_id,
			difficulty,
			player_color,
			time_control,
			result,
			reason,
			winner,
			moves_uci,
			moves_san,
			pgn,
			opening,
			started_at,
			ended_at,
			duration_ms`

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

// OpenPostgres opens a pooled connection and verifies it with a ping.
func OpenPostgres(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate chess_games: %w", err)
	}
	return nil
}

func (r *postgresRepository) InsertGame(ctx context.Context, game *domain.FinishedGame) (int64, error) {
	if game == nil {
		return 0, fmt.Errorf("nil finished game payload")
	}

	movesUCI, err := marshalMoves(game.MovesUCI)
	if err != nil {
		return 0, fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := marshalMoves(game.MovesSAN)
	if err != nil {
		return 0, fmt.Errorf("marshal moves_san: %w", err)
	}

	const query = `
		INSERT INTO chess_games (
			session_id,
			player_id,
			difficulty,
			player_color,
			time_control,
			result,
			reason,
			winner,
			moves_uci,
			moves_san,
			pgn,
			opening,
			started_at,
			ended_at,
			duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10::jsonb, $11, $12, $13, $14, $15)
		ON CONFLICT (session_id) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = r.db.QueryRowContext(
		ctx,
		query,
		game.SessionID,
		game.PlayerID,
		string(game.Difficulty),
		string(game.PlayerColor),
		string(game.TimeControl),
		game.Result,
		game.Reason,
		string(game.Winner),
		movesUCI,
		movesSAN,
		game.PGN,
		game.Opening,
		game.StartedAt,
		game.EndedAt,
		game.Duration.Milliseconds(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return 0, ErrDuplicateGame
	}
	if err != nil {
		return 0, fmt.Errorf("insert chess game: %w", err)
	}
	return id.Int64, nil
}

func (r *postgresRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]*domain.FinishedGame, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `SELECT` + selectColumns + `
		FROM chess_games
		WHERE player_id = $1
		ORDER BY ended_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("select chess games: %w", err)
	}
	defer rows.Close()

	games := make([]*domain.FinishedGame, 0, limit)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chess games: %w", err)
	}
	return games, nil
}

func (r *postgresRepository) GetGame(ctx context.Context, id int64, playerID string) (*domain.FinishedGame, error) {
	query := `SELECT` + selectColumns + `
		FROM chess_games
		WHERE id = $1 AND player_id = $2`

	game, err := scanGame(r.db.QueryRowContext(ctx, query, id, playerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	return game, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*domain.FinishedGame, error) {
	var (
		game         domain.FinishedGame
		difficulty   string
		color        string
		timeControl  string
		winner       string
		movesUCIJSON []byte
		movesSANJSON []byte
		durationMS   sql.NullInt64
	)
	if err := row.Scan(
		&game.ID,
		&game.SessionID,
		&game.PlayerID,
		&difficulty,
		&color,
		&timeControl,
		&game.Result,
		&game.Reason,
		&winner,
		&movesUCIJSON,
		&movesSANJSON,
		&game.PGN,
		&game.Opening,
		&game.StartedAt,
		&game.EndedAt,
		&durationMS,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan chess game: %w", err)
	}
	game.Difficulty = domain.Difficulty(difficulty)
	game.PlayerColor = domain.Side(color)
	game.TimeControl = domain.TimeControl(timeControl)
	game.Winner = domain.Side(winner)
	if durationMS.Valid {
		game.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	}
	if err := json.Unmarshal(movesUCIJSON, &game.MovesUCI); err != nil {
		return nil, fmt.Errorf("unmarshal moves_uci: %w", err)
	}
	if err := json.Unmarshal(movesSANJSON, &game.MovesSAN); err != nil {
		return nil, fmt.Errorf("unmarshal moves_san: %w", err)
	}
	return &game, nil
}

func marshalMoves(moves []string) ([]byte, error) {
	if moves == nil {
		moves = []string{}
	}
	return json.Marshal(moves)
}
