package settings

import (
	"context"
	"strings"
	"sync"

	"github.com/park285/cheese-chess-web/internal/domain"
)

// Store persists each player's game settings. Get returns the defaults for
// a player who never saved any.
type Store interface {
	Get(ctx context.Context, playerID string) (domain.Settings, error)
	Save(ctx context.Context, playerID string, s domain.Settings) error
}

// Update applies patch on top of the stored settings and saves the result.
func Update(ctx context.Context, store Store, playerID string, patch domain.SettingsPatch) (domain.Settings, error) {
	current, err := store.Get(ctx, playerID)
	if err != nil {
		return domain.Settings{}, err
	}
	next, err := current.Apply(patch)
	if err != nil {
		return current, err
	}
	if err := store.Save(ctx, playerID, next); err != nil {
		return current, err
	}
	return next, nil
}

// MemoryStore keeps settings in process; used when REDIS_URL is unset.
type MemoryStore struct {
	mu       sync.RWMutex
	defaults domain.Settings
	byPlayer map[string]domain.Settings
}

func NewMemoryStore(defaults domain.Settings) *MemoryStore {
	return &MemoryStore{defaults: defaults, byPlayer: make(map[string]domain.Settings)}
}

func (m *MemoryStore) Get(_ context.Context, playerID string) (domain.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.byPlayer[strings.TrimSpace(playerID)]; ok {
		return s, nil
	}
	return m.defaults, nil
}

func (m *MemoryStore) Save(_ context.Context, playerID string, s domain.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.byPlayer[strings.TrimSpace(playerID)] = s
	m.mu.Unlock()
	return nil
}
