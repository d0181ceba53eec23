package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"panelchat/pkg/logger"
)

// Config holds everything the client needs to reach the panel backend.
type Config struct {
	API       APIConfig
	Realtime  RealtimeConfig
	Chat      ChatConfig
	AuthToken string `env:"AUTH_TOKEN"`
}

type APIConfig struct {
	BaseURL string        `env:"API_BASE_URL" envDefault:"http://localhost:8000/api/v1"`
	Timeout time.Duration `env:"API_TIMEOUT" envDefault:"15s"`
}

type RealtimeConfig struct {
	URL               string        `env:"WS_URL" envDefault:"ws://localhost:8000/ws/chat"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"30s"`
	ReconnectDelay    time.Duration `env:"RECONNECT_DELAY" envDefault:"3s"`
	HandshakeTimeout  time.Duration `env:"HANDSHAKE_TIMEOUT" envDefault:"10s"`
}

type ChatConfig struct {
	HistoryLimit int `env:"HISTORY_LIMIT" envDefault:"50"`
	FeedCapacity int `env:"FEED_CAPACITY" envDefault:"10"`
}

// Load reads configuration from the environment, with a .env file as an
// optional source.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded: %v", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
