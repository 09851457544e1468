package loadgen

import "time"

// Defaults applied by Normalize.
const (
	DefaultUsers         = 200
	DefaultFixtures      = 10
	DefaultTopN          = 50
	MaxTopN              = 100
	DefaultTimeout       = 10 * time.Second
	DefaultSettleTimeout = 30 * time.Second
	DefaultPollInterval  = 100 * time.Millisecond
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Generation ranges.
const (
	maxGoals       = 5
	kickoffSpacing = 15 * time.Minute
	roundStartedAt = 3 * time.Hour
)

// Normalize fills zero fields with defaults. TopN is capped at MaxTopN, the
// server's default max_leaderboard_limit.
func (c *Config) Normalize() {
	if c.Round < 1 {
		c.Round = 1
	}
	if c.Users < 1 {
		c.Users = DefaultUsers
	}
	if c.Fixtures < 1 {
		c.Fixtures = DefaultFixtures
	}
	if c.TopN < 1 {
		c.TopN = DefaultTopN
	}
	if c.TopN > MaxTopN {
		c.TopN = MaxTopN
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = DefaultSettleTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
}
