package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	USIEnginePath    string
	USIDefaultPreset string
	USIPoolCapacity  int

	LLMBaseURL      string
	LLMAPIKey       string
	LLMDefaultModel string
	LLMTimeout      time.Duration

	DefaultStrategy string
	DefaultMode     string
	OpponentDelay   time.Duration
	SessionTTL      time.Duration
	PrefsTTL        time.Duration

	MsgOverrideDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:       ":8080",
		USIDefaultPreset: "level3",
		LLMTimeout:       30 * time.Second,
		DefaultStrategy:  "random",
		DefaultMode:      "llm",
		OpponentDelay:    500 * time.Millisecond,
		SessionTTL:       6 * time.Hour,
		PrefsTTL:         30 * 24 * time.Hour,
	}

	if v := env("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")

	cfg.USIEnginePath = env("USI_ENGINE_PATH")
	if v := env("USI_DEFAULT_PRESET"); v != "" {
		cfg.USIDefaultPreset = v
	}
	if n, ok := positiveInt("USI_POOL_CAPACITY"); ok {
		cfg.USIPoolCapacity = n
	}

	cfg.LLMBaseURL = strings.TrimRight(env("LLM_BASE_URL"), "/")
	cfg.LLMAPIKey = env("LLM_API_KEY")
	cfg.LLMDefaultModel = env("LLM_DEFAULT_MODEL")
	if n, ok := positiveInt("LLM_TIMEOUT_SEC"); ok {
		cfg.LLMTimeout = time.Duration(n) * time.Second
	}

	if v := env("SHOGI_DEFAULT_STRATEGY"); v != "" {
		cfg.DefaultStrategy = v
	}
	if v := env("SHOGI_DEFAULT_MODE"); v != "" {
		cfg.DefaultMode = strings.ToLower(v)
	}
	if n, ok := positiveInt("SHOGI_OPPONENT_DELAY_MS"); ok {
		cfg.OpponentDelay = time.Duration(n) * time.Millisecond
	}
	// seconds or a Go duration
	if d, ok := duration("SHOGI_SESSION_TTL"); ok {
		cfg.SessionTTL = d
	}
	if d, ok := duration("SHOGI_PREFS_TTL"); ok {
		cfg.PrefsTTL = d
	}
	cfg.MsgOverrideDir = env("MSG_OVERRIDE_DIR")

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	switch cfg.DefaultMode {
	case "human", "llm", "selfplay":
	default:
		return nil, errors.New("SHOGI_DEFAULT_MODE must be human, llm or selfplay")
	}
	kind, _, _ := strings.Cut(strings.ToLower(cfg.DefaultStrategy), ":")
	if kind == "engine" && cfg.USIEnginePath == "" {
		return nil, errors.New("USI_ENGINE_PATH is required for an engine default strategy")
	}
	if kind == "llm" && cfg.LLMBaseURL == "" {
		return nil, errors.New("LLM_BASE_URL is required for an llm default strategy")
	}
	return cfg, nil
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func positiveInt(k string) (int, bool) {
	v := env(k)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func duration(k string) (time.Duration, bool) {
	v := env(k)
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second, true
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d, true
	}
	return 0, false
}
