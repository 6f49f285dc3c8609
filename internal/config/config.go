package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
	"live-quiz-service/internal/app"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" env:"PORT" validate:"omitempty,numeric"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB" validate:"gte=0,lte=15"`
		TTL      string `yaml:"ttl" env:"REDIS_TTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"POSTGRES_URL" validate:"omitempty,url"`
	} `yaml:"postgres"`
	AMQP struct {
		URL   string `yaml:"url" env:"AMQP_URL" validate:"omitempty,url"`
		Queue string `yaml:"queue" env:"AMQP_QUEUE"`
	} `yaml:"amqp"`
	Quiz struct {
		TTL string `yaml:"ttl" env:"QUIZ_TTL"`
	} `yaml:"quiz"`
	Game struct {
		SessionTTL        string `yaml:"sessionTtl" env:"GAME_SESSION_TTL"`
		CleanupDelay      string `yaml:"cleanupDelay" env:"GAME_CLEANUP_DELAY"`
		HostGrace         string `yaml:"hostGrace" env:"GAME_HOST_GRACE"`
		AutoAdvanceDelay  string `yaml:"autoAdvanceDelay" env:"GAME_AUTO_ADVANCE_DELAY"`
		AdvanceGuard      string `yaml:"advanceGuard" env:"GAME_ADVANCE_GUARD"`
		DefaultMaxPlayers int    `yaml:"defaultMaxPlayers" env:"GAME_DEFAULT_MAX_PLAYERS" validate:"gte=0"`
		MaxPlayersLimit   int    `yaml:"maxPlayersLimit" env:"GAME_MAX_PLAYERS_LIMIT" validate:"gte=0"`
		AnswerBufferTTL   string `yaml:"answerBufferTtl" env:"GAME_ANSWER_BUFFER_TTL"`
		AnswerBufferLimit int    `yaml:"answerBufferLimit" env:"GAME_ANSWER_BUFFER_LIMIT" validate:"gte=0"`
		RecorderQueue     int    `yaml:"recorderQueue" env:"GAME_RECORDER_QUEUE" validate:"gte=0"`
	} `yaml:"game"`
	Gateway struct {
		RateLimit  int    `yaml:"rateLimit" env:"GATEWAY_RATE_LIMIT" validate:"gte=0"`
		RateWindow string `yaml:"rateWindow" env:"GATEWAY_RATE_WINDOW"`
		BatchSize  int    `yaml:"batchSize" env:"GATEWAY_BATCH_SIZE" validate:"gte=0"`
		BatchPause string `yaml:"batchPause" env:"GATEWAY_BATCH_PAUSE"`
	} `yaml:"gateway"`
}

// Load reads YAML config from path, applies environment overrides and validates the result.
// A missing file is not an error; the service then runs on defaults and environment.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return cfg, err
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Game.MaxPlayersLimit > 0 && cfg.Game.DefaultMaxPlayers > cfg.Game.MaxPlayersLimit {
		return cfg, fmt.Errorf("invalid config: defaultMaxPlayers %d exceeds maxPlayersLimit %d",
			cfg.Game.DefaultMaxPlayers, cfg.Game.MaxPlayersLimit)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// GameOptions maps the game section onto service options. Zero values fall back to the service defaults.
func (c Config) GameOptions() app.Options {
	return app.Options{
		SessionTTL:        TTLDuration(c.Game.SessionTTL, 0),
		CleanupDelay:      TTLDuration(c.Game.CleanupDelay, 0),
		HostGrace:         TTLDuration(c.Game.HostGrace, 0),
		AutoAdvanceDelay:  TTLDuration(c.Game.AutoAdvanceDelay, 0),
		AdvanceGuard:      TTLDuration(c.Game.AdvanceGuard, 0),
		DefaultMaxPlayers: c.Game.DefaultMaxPlayers,
		MaxPlayersLimit:   c.Game.MaxPlayersLimit,
	}
}
