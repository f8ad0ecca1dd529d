package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-web/internal/domain"
)

const (
	DefaultSessionTTL  = 2 * time.Hour
	DefaultMaxSessions = 1000
)

// SettingsSource supplies the settings a player's first game starts with.
type SettingsSource interface {
	Get(ctx context.Context, playerID string) (domain.Settings, error)
}

// Factory builds a controller for playerID.
type Factory func(playerID string, settings domain.Settings) (*Controller, error)

type RegistryConfig struct {
	Factory  Factory
	Settings SettingsSource
	TTL      time.Duration
	Max      int
	Logger   *zap.Logger
	Now      func() time.Time
}

// Registry keeps one controller per player and evicts idle ones.
type Registry struct {
	factory  Factory
	settings SettingsSource
	ttl      time.Duration
	max      int
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Controller
	closed   bool
}

func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Factory == nil {
		return nil, errors.New("controller factory is required")
	}
	r := &Registry{
		factory:  cfg.Factory,
		settings: cfg.Settings,
		ttl:      cfg.TTL,
		max:      cfg.Max,
		logger:   cfg.Logger,
		now:      cfg.Now,
		sessions: make(map[string]*Controller),
	}
	if r.ttl <= 0 {
		r.ttl = DefaultSessionTTL
	}
	if r.max <= 0 {
		r.max = DefaultMaxSessions
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Get returns the player's controller if one is live.
func (r *Registry) Get(playerID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[playerID]
	return c, ok
}

// GetOrCreate returns the player's controller, starting one with the
// player's stored settings when none is live.
func (r *Registry) GetOrCreate(ctx context.Context, playerID string) (*Controller, error) {
	if c, ok := r.Get(playerID); ok {
		return c, nil
	}

	settings := domain.DefaultSettings()
	if r.settings != nil {
		stored, err := r.settings.Get(ctx, playerID)
		if err != nil {
			r.logger.Warn("session_settings_load_failed", zap.String("player", playerID), zap.Error(err))
		} else {
			settings = stored
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrControllerClosed
	}
	if c, ok := r.sessions[playerID]; ok {
		return c, nil
	}
	if len(r.sessions) >= r.max {
		return nil, fmt.Errorf("%w: limit %d", ErrTooManySessions, r.max)
	}
	c, err := r.factory(playerID, settings)
	if err != nil {
		return nil, err
	}
	r.sessions[playerID] = c
	r.logger.Info("session_registered", zap.String("player", playerID), zap.Int("active", len(r.sessions)))
	return c, nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes controllers idle for longer than the TTL.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)
	var idle []*Controller

	r.mu.Lock()
	for id, c := range r.sessions {
		if c.LastSeen().Before(cutoff) {
			idle = append(idle, c)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, c := range idle {
		_ = c.Close()
		r.logger.Info("session_evicted", zap.String("player", c.PlayerID()))
	}
	return len(idle)
}

// Run sweeps every interval until ctx ends.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}

func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	all := make([]*Controller, 0, len(r.sessions))
	for id, c := range r.sessions {
		all = append(all, c)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, c := range all {
		_ = c.Close()
	}
	return nil
}
