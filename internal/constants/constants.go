package constants

import "time"

const (
	DiscordAPIBase = "https://discord.com/api/v10"
)

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RunTimeout         = 10 * time.Minute
)

const (
	// MaxRetryAttempts bounds every outbound Discord/webhook call.
	MaxRetryAttempts  = 3
	RetryBaseDelay    = 1 * time.Second
	RateLimitFallback = 2 * time.Second
)

const (
	DefaultFetchLimit = 50
	MaxFetchLimit     = 100
	DefaultAPIDelay   = 1 * time.Second
)

const (
	// Discord caps embed descriptions at 4096 characters; truncation
	// leaves room for the marker.
	MaxEmbedDescription = 4096
	TruncateAt          = 4070
	TruncationMarker    = "\n…*(truncated)*"
)

const (
	DBBusyTimeout = 5000
)
