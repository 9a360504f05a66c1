package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{
		"TWITCH_OAUTH_TOKEN", "TWITCH_BOT_NICK", "TWITCH_CHANNEL",
		"FACEIT_API_KEY", "FACEIT_NICK", "TWITCH_CLIENT_ID", "TWITCH_CLIENT_SECRET",
		"IRC_ADDR", "ELO_FILE_PATH", "ELO_RESET_HOUR", "BOT_TIMEZONE",
		"ELO_COOLDOWN", "LIVE_CHECK",
	} {
		t.Setenv(v, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.IRCAddr != "irc.chat.twitch.tv:6667" {
		t.Errorf("IRCAddr = %s", cfg.IRCAddr)
	}
	if cfg.EloFilePath != "elo_history.json" {
		t.Errorf("EloFilePath = %s", cfg.EloFilePath)
	}
	if cfg.ResetHour != 4 {
		t.Errorf("ResetHour = %d, want 4", cfg.ResetHour)
	}
	if cfg.Timezone.String() != "Europe/Kiev" {
		t.Errorf("Timezone = %s, want Europe/Kiev", cfg.Timezone)
	}
	if cfg.EloCooldown != 5*time.Second {
		t.Errorf("EloCooldown = %v, want 5s", cfg.EloCooldown)
	}
	if cfg.LiveCheck {
		t.Error("LiveCheck = true, want false by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TWITCH_CHANNEL", "somechannel")
	t.Setenv("TWITCH_BOT_NICK", "elobot")
	t.Setenv("TWITCH_OAUTH_TOKEN", "oauth:secret")
	t.Setenv("FACEIT_NICK", "s1mple")
	t.Setenv("ELO_FILE_PATH", "/tmp/history.json")
	t.Setenv("ELO_RESET_HOUR", "6")
	t.Setenv("BOT_TIMEZONE", "UTC")
	t.Setenv("ELO_COOLDOWN", "10s")
	t.Setenv("LIVE_CHECK", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TwitchChannel != "somechannel" || cfg.TwitchBotNick != "elobot" {
		t.Errorf("twitch identity = %s/%s", cfg.TwitchChannel, cfg.TwitchBotNick)
	}
	if cfg.EloFilePath != "/tmp/history.json" {
		t.Errorf("EloFilePath = %s", cfg.EloFilePath)
	}
	if cfg.ResetHour != 6 {
		t.Errorf("ResetHour = %d, want 6", cfg.ResetHour)
	}
	if cfg.Timezone != time.UTC {
		t.Errorf("Timezone = %v, want UTC", cfg.Timezone)
	}
	if cfg.EloCooldown != 10*time.Second {
		t.Errorf("EloCooldown = %v, want 10s", cfg.EloCooldown)
	}
	if !cfg.LiveCheck {
		t.Error("LiveCheck = false, want true")
	}
}

func TestLoadInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("ELO_RESET_HOUR", "25")
	if _, err := Load(); err == nil {
		t.Error("Load() with ELO_RESET_HOUR=25 succeeded, want error")
	}

	clearEnv(t)
	t.Setenv("BOT_TIMEZONE", "Mars/Olympus_Mons")
	if _, err := Load(); err == nil {
		t.Error("Load() with bad BOT_TIMEZONE succeeded, want error")
	}

	// An unparseable cooldown falls back to the default rather than failing.
	clearEnv(t)
	t.Setenv("ELO_COOLDOWN", "soon")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.EloCooldown != 5*time.Second {
		t.Errorf("EloCooldown = %v, want default 5s", cfg.EloCooldown)
	}
}

func TestValidateChatReady(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.ValidateChatReady(); err == nil {
		t.Error("ValidateChatReady() with empty creds succeeded, want error")
	}

	cfg.TwitchChannel = "somechannel"
	cfg.TwitchBotNick = "elobot"
	cfg.TwitchOAuthToken = "oauth:secret"
	if err := cfg.ValidateChatReady(); err != nil {
		t.Errorf("ValidateChatReady() error = %v", err)
	}
}
