// Package config loads environment variables and provides a typed Config used across the bot.
// It applies sensible defaults so the binary can run locally with minimal setup.
// Missing credentials are logged as warnings rather than failing startup; use
// ValidateChatReady when you actually need the IRC session.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Twitch
	TwitchChannel      string
	TwitchBotNick      string
	TwitchOAuthToken   string
	TwitchClientID     string
	TwitchClientSecret string

	// FACEIT
	FaceitAPIKey string
	FaceitNick   string

	// IRC transport
	IRCAddr string

	// Elo history
	EloFilePath string
	ResetHour   int
	Timezone    *time.Location

	// Dispatch
	EloCooldown time.Duration

	// Enable the Helix stream-live gate instead of the always-live default.
	LiveCheck bool
}

// requiredEnv mirrors the set the bot warns about at startup. None of these
// are fatal: the session loop simply keeps retrying and the FACEIT client
// degrades to zero results.
var requiredEnv = []string{
	"TWITCH_OAUTH_TOKEN", "TWITCH_BOT_NICK", "TWITCH_CHANNEL",
	"FACEIT_API_KEY", "FACEIT_NICK", "TWITCH_CLIENT_ID", "TWITCH_CLIENT_SECRET",
}

// Load reads environment variables and applies defaults. It only fails on
// values that cannot be interpreted (bad timezone, bad reset hour); missing
// credentials are warned about and left empty.
func Load() (*Config, error) {
	cfg := &Config{}

	for _, v := range requiredEnv {
		if os.Getenv(v) == "" {
			slog.Warn("env variable not set", slog.String("var", v))
		}
	}

	cfg.TwitchChannel = os.Getenv("TWITCH_CHANNEL")
	cfg.TwitchBotNick = os.Getenv("TWITCH_BOT_NICK")
	cfg.TwitchOAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")
	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")

	cfg.FaceitAPIKey = os.Getenv("FACEIT_API_KEY")
	cfg.FaceitNick = os.Getenv("FACEIT_NICK")

	cfg.IRCAddr = os.Getenv("IRC_ADDR")
	if cfg.IRCAddr == "" {
		cfg.IRCAddr = "irc.chat.twitch.tv:6667"
	}

	cfg.EloFilePath = os.Getenv("ELO_FILE_PATH")
	if cfg.EloFilePath == "" {
		cfg.EloFilePath = "elo_history.json"
	}

	cfg.ResetHour = 4
	if v := os.Getenv("ELO_RESET_HOUR"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 23 {
			return nil, fmt.Errorf("invalid ELO_RESET_HOUR %q: want 0-23", v)
		}
		cfg.ResetHour = n
	}

	tz := os.Getenv("BOT_TIMEZONE")
	if tz == "" {
		tz = "Europe/Kiev"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid BOT_TIMEZONE %q: %w", tz, err)
	}
	cfg.Timezone = loc

	cfg.EloCooldown = 5 * time.Second
	if v := os.Getenv("ELO_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.EloCooldown = d
		}
	}

	cfg.LiveCheck = os.Getenv("LIVE_CHECK") == "1"

	return cfg, nil
}

// ValidateChatReady checks required fields before opening the IRC session.
func (c *Config) ValidateChatReady() error {
	if c.TwitchChannel == "" || c.TwitchBotNick == "" || c.TwitchOAuthToken == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CHANNEL, TWITCH_BOT_NICK, TWITCH_OAUTH_TOKEN")
	}
	return nil
}
