package constants

import "time"

const (
	// BaseRating is every player's rating in a season before any confirmed match.
	BaseRating = 1000
	// DefaultKFactor is the Elo sensitivity constant; overridable via ELO_K_FACTOR.
	DefaultKFactor = 32
	// BackdateWindow bounds how far in the past a non-admin may report a match.
	BackdateWindow = 48 * time.Hour
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	RecentMatchesLimit = 20
	EventFeedLimit     = 50
)
