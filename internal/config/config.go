package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrSampleWritten signals that no config file existed and a sample was
// written in its place for the operator to fill in.
var ErrSampleWritten = errors.New("config file missing, sample written")

// DefaultPath is used when no config path argument is given.
const DefaultPath = "config.yaml"

// Config holds the bot's persisted settings. AdminChatID is zero until the
// admin chat has been verified; it is written back by Save after /verify.
type Config struct {
	TelegramToken string `yaml:"telegram_token"`
	AdminChatID   int64  `yaml:"admin_chat_id"`
	NATSURL       string `yaml:"nats_url"`
	GatewayAddr   string `yaml:"gateway_addr"`
}

func sample() Config {
	return Config{
		TelegramToken: "abcd",
		AdminChatID:   0,
		NATSURL:       "",
		GatewayAddr:   ":8090",
	}
}

// Load reads the config file at path and applies environment overrides.
// If the file does not exist, a sample is written and ErrSampleWritten is
// returned so the caller can tell the operator to edit it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s := sample()
		if werr := s.Save(path); werr != nil {
			return nil, fmt.Errorf("write sample config: %w", werr)
		}
		return nil, ErrSampleWritten
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.TelegramToken = getEnv("TELEGRAM_TOKEN", cfg.TelegramToken)
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.GatewayAddr = getEnv("GATEWAY_ADDR", cfg.GatewayAddr)
	if v := os.Getenv("ADMIN_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse ADMIN_CHAT_ID: %w", err)
		}
		cfg.AdminChatID = id
	}

	return &cfg, nil
}

// Save writes the config back to path.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
