package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	RoomIdleTTL             time.Duration `env:"ROOM_IDLE_TTL" envDefault:"1h"`
	RoomSweepInterval       time.Duration `env:"ROOM_SWEEP_INTERVAL" envDefault:"5m"`
	GateActionsDuringVoting bool          `env:"GATE_ACTIONS_DURING_VOTING" envDefault:"false"`
	WelcomePrompt           string        `env:"WELCOME_PROMPT" envDefault:"Welcome to the quest."`

	SendBuffer   int           `env:"SEND_BUFFER" envDefault:"16"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"5s"`
	ChatRate     float64       `env:"CHAT_RATE" envDefault:"5"`
	ChatBurst    int           `env:"CHAT_BURST" envDefault:"10"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.SendBuffer < 1 {
		return Config{}, fmt.Errorf("SEND_BUFFER must be positive, got %d", cfg.SendBuffer)
	}
	if cfg.RoomSweepInterval <= 0 {
		return Config{}, fmt.Errorf("ROOM_SWEEP_INTERVAL must be positive, got %s", cfg.RoomSweepInterval)
	}
	return cfg, nil
}
