package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/park285/cheese-chess-web/internal/domain"
)

const (
	OpponentModeHTTP = "http"
	OpponentModeUCI  = "uci"

	defaultHTTPAddr        = ":8080"
	defaultOpponentURL     = "http://localhost:5000/predict"
	defaultOpponentTimeout = 30 * time.Second
	defaultOpponentRetry   = 1
	defaultSessionTTL      = 2 * time.Hour
	defaultMaxSessions     = 1000
	defaultBoardSquare     = 64
)

type AppConfig struct {
	HTTPAddr     string
	StaticDir    string
	MessagesDir  string
	SecureCookie bool

	OpponentMode    string
	OpponentURL     string
	OpponentAPIKey  string
	OpponentTimeout time.Duration
	OpponentRetry   int

	StockfishPath     string
	StockfishPoolSize int
	PolyglotBookPath  string

	RedisURL    string
	DatabaseURL string

	DefaultSettings domain.Settings
	SessionTTL      time.Duration
	MaxSessions     int
	BoardSquareSize int
}

// fileConfig mirrors AppConfig for the optional YAML file. Unset keys keep
// the defaults; environment variables override both.
type fileConfig struct {
	HTTPAddr     *string `yaml:"http_addr"`
	StaticDir    *string `yaml:"static_dir"`
	MessagesDir  *string `yaml:"messages_dir"`
	SecureCookie *bool   `yaml:"secure_cookie"`

	Opponent struct {
		Mode      *string `yaml:"mode"`
		URL       *string `yaml:"url"`
		APIKey    *string `yaml:"api_key"`
		TimeoutMS *int    `yaml:"timeout_ms"`
		Retry     *int    `yaml:"retry"`
	} `yaml:"opponent"`

	Stockfish struct {
		Path     *string `yaml:"path"`
		PoolSize *int    `yaml:"pool_size"`
		BookPath *string `yaml:"polyglot_book"`
	} `yaml:"stockfish"`

	RedisURL    *string `yaml:"redis_url"`
	DatabaseURL *string `yaml:"database_url"`

	Chess struct {
		Defaults        *domain.Settings `yaml:"defaults"`
		SessionTTL      *string          `yaml:"session_ttl"`
		MaxSessions     *int             `yaml:"max_sessions"`
		BoardSquareSize *int             `yaml:"board_square_size"`
	} `yaml:"chess"`
}

// Load reads CHESS_CONFIG_FILE (if set) and then the environment.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:        defaultHTTPAddr,
		OpponentMode:    OpponentModeHTTP,
		OpponentURL:     defaultOpponentURL,
		OpponentTimeout: defaultOpponentTimeout,
		OpponentRetry:   defaultOpponentRetry,
		DefaultSettings: domain.DefaultSettings(),
		SessionTTL:      defaultSessionTTL,
		MaxSessions:     defaultMaxSessions,
		BoardSquareSize: defaultBoardSquare,
	}

	if path := strings.TrimSpace(os.Getenv("CHESS_CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.HTTPAddr, fc.HTTPAddr)
	setString(&c.StaticDir, fc.StaticDir)
	setString(&c.MessagesDir, fc.MessagesDir)
	if fc.SecureCookie != nil {
		c.SecureCookie = *fc.SecureCookie
	}
	setString(&c.OpponentMode, fc.Opponent.Mode)
	setString(&c.OpponentURL, fc.Opponent.URL)
	setString(&c.OpponentAPIKey, fc.Opponent.APIKey)
	if fc.Opponent.TimeoutMS != nil && *fc.Opponent.TimeoutMS > 0 {
		c.OpponentTimeout = time.Duration(*fc.Opponent.TimeoutMS) * time.Millisecond
	}
	if fc.Opponent.Retry != nil && *fc.Opponent.Retry >= 0 {
		c.OpponentRetry = *fc.Opponent.Retry
	}
	setString(&c.StockfishPath, fc.Stockfish.Path)
	setString(&c.PolyglotBookPath, fc.Stockfish.BookPath)
	if fc.Stockfish.PoolSize != nil && *fc.Stockfish.PoolSize > 0 {
		c.StockfishPoolSize = *fc.Stockfish.PoolSize
	}
	setString(&c.RedisURL, fc.RedisURL)
	setString(&c.DatabaseURL, fc.DatabaseURL)

	if d := fc.Chess.Defaults; d != nil {
		if d.Difficulty != "" {
			c.DefaultSettings.Difficulty = d.Difficulty
		}
		if d.PlayerColor != "" {
			c.DefaultSettings.PlayerColor = d.PlayerColor
		}
		if d.TimeControl != "" {
			c.DefaultSettings.TimeControl = d.TimeControl
		}
	}
	if fc.Chess.SessionTTL != nil {
		ttl, err := parseDuration(*fc.Chess.SessionTTL)
		if err != nil {
			return fmt.Errorf("chess.session_ttl: %w", err)
		}
		c.SessionTTL = ttl
	}
	if fc.Chess.MaxSessions != nil && *fc.Chess.MaxSessions > 0 {
		c.MaxSessions = *fc.Chess.MaxSessions
	}
	if fc.Chess.BoardSquareSize != nil && *fc.Chess.BoardSquareSize > 0 {
		c.BoardSquareSize = *fc.Chess.BoardSquareSize
	}
	return nil
}

func (c *AppConfig) applyEnv() error {
	if v := getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := getenv("STATIC_DIR"); v != "" {
		c.StaticDir = v
	}
	if v := getenv("CHESS_MESSAGES_DIR"); v != "" {
		c.MessagesDir = v
	}
	if v := getenv("COOKIE_SECURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.SecureCookie = b
		}
	}

	if v := getenv("OPPONENT_MODE"); v != "" {
		c.OpponentMode = strings.ToLower(v)
	}
	if v := getenv("OPPONENT_URL"); v != "" {
		c.OpponentURL = v
	}
	if v := getenv("OPPONENT_API_KEY"); v != "" {
		c.OpponentAPIKey = v
	}
	if v := getenv("OPPONENT_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.OpponentTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if v := getenv("OPPONENT_RETRY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.OpponentRetry = n
		}
	}

	if v := getenv("STOCKFISH_PATH"); v != "" {
		c.StockfishPath = v
	}
	if v := getenv("STOCKFISH_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.StockfishPoolSize = n
		}
	}
	if v := getenv("CHESS_POLYGLOT_BOOK_PATH"); v != "" {
		c.PolyglotBookPath = v
	}

	if v := getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}

	if v := getenv("CHESS_DEFAULT_DIFFICULTY"); v != "" {
		c.DefaultSettings.Difficulty = domain.Difficulty(strings.ToLower(v))
	}
	if v := getenv("CHESS_DEFAULT_COLOR"); v != "" {
		c.DefaultSettings.PlayerColor = domain.Side(strings.ToLower(v))
	}
	if v := getenv("CHESS_DEFAULT_TIME_CONTROL"); v != "" {
		c.DefaultSettings.TimeControl = domain.TimeControl(strings.ToLower(v))
	}
	if v := getenv("CHESS_SESSION_TTL"); v != "" {
		ttl, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("CHESS_SESSION_TTL: %w", err)
		}
		c.SessionTTL = ttl
	}
	if v := getenv("CHESS_MAX_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxSessions = n
		}
	}
	if v := getenv("CHESS_BOARD_SQUARE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.BoardSquareSize = n
		}
	}
	return nil
}

func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("HTTP_ADDR is required")
	}
	switch c.OpponentMode {
	case OpponentModeHTTP:
		if strings.TrimSpace(c.OpponentURL) == "" {
			return errors.New("OPPONENT_URL is required")
		}
	case OpponentModeUCI:
		if strings.TrimSpace(c.StockfishPath) == "" {
			return errors.New("STOCKFISH_PATH is required when OPPONENT_MODE=uci")
		}
	default:
		return fmt.Errorf("OPPONENT_MODE must be %q or %q, got %q", OpponentModeHTTP, OpponentModeUCI, c.OpponentMode)
	}
	if err := c.DefaultSettings.Validate(); err != nil {
		return fmt.Errorf("default settings: %w", err)
	}
	if c.SessionTTL <= 0 {
		return errors.New("CHESS_SESSION_TTL must be positive")
	}
	return nil
}

// parseDuration accepts Go durations ("90m") or bare seconds ("3600").
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("must be positive, got %d", n)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, v *string) {
	if v == nil {
		return
	}
	if s := strings.TrimSpace(*v); s != "" {
		*dst = s
	}
}
