package archive

import (
	"context"
	"sort"
	"sync"

	"github.com/park285/cheese-chess-web/internal/domain"
)

// memrepo keeps finished games in memory when no database is configured.
type memrepo struct {
	mu sync.RWMutex

	nextID int64

	gamesByID      map[int64]*domain.FinishedGame
	gamesByPlayer  map[string][]*domain.FinishedGame
	gamesBySession map[string]*domain.FinishedGame
}

func NewMemoryRepository() Repository {
	return &memrepo{
		gamesByID:      make(map[int64]*domain.FinishedGame),
		gamesByPlayer:  make(map[string][]*domain.FinishedGame),
		gamesBySession: make(map[string]*domain.FinishedGame),
	}
}

func (m *memrepo) InsertGame(ctx context.Context, game *domain.FinishedGame) (int64, error) {
	if game == nil {
		return 0, ErrDuplicateGame
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.gamesBySession[game.SessionID]; exists {
		return 0, ErrDuplicateGame
	}

	m.nextID++
	stored := cloneGame(game)
	stored.ID = m.nextID

	m.gamesByID[stored.ID] = stored
	m.gamesBySession[stored.SessionID] = stored
	m.gamesByPlayer[stored.PlayerID] = append(m.gamesByPlayer[stored.PlayerID], stored)
	return stored.ID, nil
}

func (m *memrepo) ListByPlayer(ctx context.Context, playerID string, limit int) ([]*domain.FinishedGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.gamesByPlayer[playerID]
	items := make([]*domain.FinishedGame, 0, len(list))
	for _, g := range list {
		items = append(items, cloneGame(g))
	}
	// latest first, ID breaks ties
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memrepo) GetGame(ctx context.Context, id int64, playerID string) (*domain.FinishedGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	game, ok := m.gamesByID[id]
	if !ok || game.PlayerID != playerID {
		return nil, ErrGameNotFound
	}
	return cloneGame(game), nil
}

func cloneGame(g *domain.FinishedGame) *domain.FinishedGame {
	out := *g
	out.MovesUCI = append([]string(nil), g.MovesUCI...)
	out.MovesSAN = append([]string(nil), g.MovesSAN...)
	return &out
}
