package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/park285/cheese-chess-web/internal/domain"
)

var configEnvKeys = []string{
	"CHESS_CONFIG_FILE", "HTTP_ADDR", "STATIC_DIR", "CHESS_MESSAGES_DIR", "COOKIE_SECURE",
	"OPPONENT_MODE", "OPPONENT_URL", "OPPONENT_API_KEY", "OPPONENT_TIMEOUT_MS", "OPPONENT_RETRY",
	"STOCKFISH_PATH", "STOCKFISH_POOL_SIZE", "CHESS_POLYGLOT_BOOK_PATH",
	"REDIS_URL", "DATABASE_URL",
	"CHESS_DEFAULT_DIFFICULTY", "CHESS_DEFAULT_COLOR", "CHESS_DEFAULT_TIME_CONTROL",
	"CHESS_SESSION_TTL", "CHESS_MAX_SESSIONS", "CHESS_BOARD_SQUARE_SIZE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.OpponentMode != OpponentModeHTTP || cfg.OpponentURL != "http://localhost:5000/predict" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.DefaultSettings != domain.DefaultSettings() || cfg.SessionTTL != 2*time.Hour || cfg.OpponentTimeout != 30*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("OPPONENT_TIMEOUT_MS", "2500")
	t.Setenv("OPPONENT_RETRY", "0")
	t.Setenv("CHESS_DEFAULT_DIFFICULTY", "HARD")
	t.Setenv("CHESS_DEFAULT_COLOR", "black")
	t.Setenv("CHESS_DEFAULT_TIME_CONTROL", "3min")
	t.Setenv("CHESS_SESSION_TTL", "900")
	t.Setenv("COOKIE_SECURE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" || cfg.OpponentTimeout != 2500*time.Millisecond || cfg.OpponentRetry != 0 || !cfg.SecureCookie {
		t.Fatalf("env not applied: %+v", cfg)
	}
	want := domain.Settings{Difficulty: domain.DifficultyHard, PlayerColor: domain.Black, TimeControl: domain.TimeControl3Min}
	if cfg.DefaultSettings != want || cfg.SessionTTL != 15*time.Minute {
		t.Fatalf("unexpected chess defaults %+v ttl=%v", cfg.DefaultSettings, cfg.SessionTTL)
	}
}

func TestLoadFileWithEnvPrecedence(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "chess.yaml")
	body := `
http_addr: ":7000"
messages_dir: /etc/chess/messages
opponent:
  mode: uci
  timeout_ms: 4000
stockfish:
  path: /usr/bin/stockfish
  pool_size: 3
chess:
  defaults:
    difficulty: easy
    time_control: no-time
  session_ttl: 45m
  max_sessions: 12
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CHESS_CONFIG_FILE", path)
	t.Setenv("HTTP_ADDR", ":7001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":7001" {
		t.Fatalf("env should win over the file, got %s", cfg.HTTPAddr)
	}
	if cfg.MessagesDir != "/etc/chess/messages" {
		t.Fatalf("messages dir not applied: %q", cfg.MessagesDir)
	}
	if cfg.OpponentMode != OpponentModeUCI || cfg.StockfishPath != "/usr/bin/stockfish" || cfg.StockfishPoolSize != 3 {
		t.Fatalf("file opponent settings not applied: %+v", cfg)
	}
	if cfg.DefaultSettings.Difficulty != domain.DifficultyEasy || cfg.DefaultSettings.PlayerColor != domain.White ||
		cfg.DefaultSettings.TimeControl != domain.TimeControlNoTime {
		t.Fatalf("unexpected defaults %+v", cfg.DefaultSettings)
	}
	if cfg.SessionTTL != 45*time.Minute || cfg.MaxSessions != 12 || cfg.OpponentTimeout != 4*time.Second {
		t.Fatalf("unexpected chess limits %+v", cfg)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"STOCKFISH_PATH is required": {"OPPONENT_MODE": "uci"},
		"OPPONENT_MODE must be":      {"OPPONENT_MODE": "carrier-pigeon"},
		"default settings":           {"CHESS_DEFAULT_TIME_CONTROL": "forever"},
		"CHESS_SESSION_TTL":          {"CHESS_SESSION_TTL": "soon"},
	}
	for want, env := range cases {
		clearEnv(t)
		for k, v := range env {
			t.Setenv(k, v)
		}
		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("env %v: expected error containing %q, got %v", env, want, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHESS_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}
