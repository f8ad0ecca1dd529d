package settings

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-chess-web/internal/domain"
)

const (
	keyPrefix  = "chess:settings:"
	DefaultTTL = 30 * 24 * time.Hour
)

// RedisStore keeps one JSON document per player with a sliding TTL.
type RedisStore struct {
	rdb      *redis.Client
	defaults domain.Settings
	ttl      time.Duration
	logger   *zap.Logger
}

func NewRedisStore(rdb *redis.Client, defaults domain.Settings, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{rdb: rdb, defaults: defaults, ttl: ttl, logger: logger}
}

// NewClient dials REDIS_URL and pings it once.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func key(playerID string) string { return keyPrefix + strings.TrimSpace(playerID) }

func (s *RedisStore) Get(ctx context.Context, playerID string) (domain.Settings, error) {
	raw, err := s.rdb.Get(ctx, key(playerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return s.defaults, nil
	}
	if err != nil {
		return s.defaults, fmt.Errorf("load settings: %w", err)
	}
	var out domain.Settings
	if err := json.Unmarshal(raw, &out); err != nil {
		s.logger.Warn("settings_decode_failed", zap.String("player", playerID), zap.Error(err))
		return s.defaults, nil
	}
	if err := out.Validate(); err != nil {
		s.logger.Warn("settings_invalid_stored", zap.String("player", playerID), zap.Error(err))
		return s.defaults, nil
	}
	return out, nil
}

func (s *RedisStore) Save(ctx context.Context, playerID string, v domain.Settings) error {
	if err := v.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, key(playerID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// ParseRedisURL accepts redis:// and rediss:// URLs; the path selects the DB.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	opts := &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}
	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}
