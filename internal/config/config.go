package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"rankboard/internal/constants"
	"rankboard/internal/domain"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// GameOutput is the public publish target for one game. MessageID is
// empty until the first publish creates the webhook message; the new
// id is surfaced in the logs for permanent configuration.
type GameOutput struct {
	WebhookURL string
	MessageID  string
}

type Config struct {
	DiscordToken    string
	ListenChannelID string
	FetchLimit      int
	APIDelay        time.Duration
	LogLevel        string

	// StateBackend selects where state blobs live: "pinned" (a pinned
	// message per game in the listen channel) or "sqlite".
	StateBackend string
	DBPath       string

	Outputs map[domain.Game]*GameOutput
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DiscordToken:    getEnv("DISCORD_TOKEN", ""),
		ListenChannelID: getEnv("LISTENING_CHANNEL_ID", ""),
		FetchLimit:      getEnvInt("FETCH_LIMIT", constants.DefaultFetchLimit),
		APIDelay:        time.Duration(getEnvInt("API_DELAY_MS", int(constants.DefaultAPIDelay/time.Millisecond))) * time.Millisecond,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		StateBackend:    getEnv("STATE_BACKEND", "pinned"),
		DBPath:          getEnv("DB_PATH", "rankboard.db"),
		Outputs:         make(map[domain.Game]*GameOutput),
	}

	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}
	if cfg.ListenChannelID == "" {
		return nil, fmt.Errorf("LISTENING_CHANNEL_ID is required")
	}
	if cfg.StateBackend != "pinned" && cfg.StateBackend != "sqlite" {
		return nil, fmt.Errorf("STATE_BACKEND must be pinned or sqlite, got %q", cfg.StateBackend)
	}
	if cfg.FetchLimit > constants.MaxFetchLimit {
		cfg.FetchLimit = constants.MaxFetchLimit
	}

	for _, spec := range domain.Specs() {
		webhook := getEnv(WebhookURLKey(spec.Game), "")
		if webhook == "" {
			return nil, fmt.Errorf("%s is required", WebhookURLKey(spec.Game))
		}
		cfg.Outputs[spec.Game] = &GameOutput{
			WebhookURL: webhook,
			MessageID:  getEnv(MessageIDKey(spec.Game), ""),
		}
	}

	logger.Info().
		Str("listen_channel", cfg.ListenChannelID).
		Int("fetch_limit", cfg.FetchLimit).
		Dur("api_delay", cfg.APIDelay).
		Str("state_backend", cfg.StateBackend).
		Str("log_level", cfg.LogLevel).
		Msg("configuration loaded")

	return cfg, nil
}

// WebhookURLKey returns the env var holding a game's webhook URL.
func WebhookURLKey(game domain.Game) string {
	return string(game) + "_WEBHOOK_URL"
}

// MessageIDKey returns the env var holding a game's published
// leaderboard message id.
func MessageIDKey(game domain.Game) string {
	return string(game) + "_MESSAGE_ID"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

var Module = fx.Provide(Load)
