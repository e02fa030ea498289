package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"pingpong-ladder/internal/constants"
)

type Config struct {
	DBPath         string
	ServerPort     string
	EloKFactor     int
	BackdateWindow time.Duration
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:         getEnv("DB_PATH", "ladder.db"),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		EloKFactor:     getEnvInt("ELO_K_FACTOR", constants.DefaultKFactor, logger),
		BackdateWindow: time.Duration(getEnvInt("BACKDATE_WINDOW_HOURS", int(constants.BackdateWindow/time.Hour), logger)) * time.Hour,
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Int("elo_k_factor", cfg.EloKFactor).
		Dur("backdate_window", cfg.BackdateWindow).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int, logger zerolog.Logger) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Msg("invalid integer in environment, using fallback")
		return fallback
	}
	return n
}
