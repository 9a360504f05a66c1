// Command faceit-elo-bot is the main entrypoint for the FACEIT elo Twitch bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Seeds the elo history file and starts the daily reset job.
//   - Runs the IRC session loop with the command dispatcher attached.
//   - Exposes a minimal HTTP server with /healthz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/faceit-elo-bot/bot"
	"github.com/onnwee/faceit-elo-bot/config"
	"github.com/onnwee/faceit-elo-bot/elostore"
	"github.com/onnwee/faceit-elo-bot/faceit"
	"github.com/onnwee/faceit-elo-bot/irc"
	"github.com/onnwee/faceit-elo-bot/server"
	"github.com/onnwee/faceit-elo-bot/telemetry"
	"github.com/onnwee/faceit-elo-bot/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("faceit-elo-bot", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Best-effort: fetch a Twitch app access token if client id/secret provided.
	// It backs the Helix liveness probe; it is NOT used for IRC chat.
	tokenSource := &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret}
	if cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		ctx2, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		if tok, err := tokenSource.Get(ctx2); err != nil {
			slog.Warn("twitch app token fetch failed", slog.Any("err", err))
		} else if len(tok) > 6 {
			masked := "***" + tok[len(tok)-6:]
			slog.Info("twitch app token acquired", slog.String("tail", masked))
		}
		cancel()
	}

	// Elo history store
	store := elostore.New(cfg.EloFilePath, cfg.Timezone)
	if err := store.Init(); err != nil {
		slog.Error("failed to init elo history", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("elo history ready", slog.String("path", cfg.EloFilePath))

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Daily reset job runs regardless of session state.
	go elostore.StartDailyResetJob(ctx, store, cfg.ResetHour)

	// IRC session + command dispatcher
	session := irc.NewSession(cfg.IRCAddr, cfg.TwitchOAuthToken, cfg.TwitchBotNick, cfg.TwitchChannel)
	session.OnConnect = func() {
		if err := store.TruncateToToday(); err != nil {
			slog.Warn("failed to truncate old elo records", slog.Any("err", err))
		}
	}
	if cfg.LiveCheck {
		helix := &twitchapi.HelixClient{AppTokenSource: tokenSource, ClientID: cfg.TwitchClientID}
		session.Live = func(lctx context.Context) bool {
			lctx, cancel := context.WithTimeout(lctx, 10*time.Second)
			defer cancel()
			live, err := helix.IsLive(lctx, cfg.TwitchChannel)
			if err != nil {
				slog.Warn("live check failed; assuming live", slog.Any("err", err))
				return true
			}
			return live
		}
	}

	dispatcher := bot.NewDispatcher(faceit.NewClient(cfg.FaceitAPIKey), store, session, cfg.FaceitNick, cfg.EloCooldown)

	if err := cfg.ValidateChatReady(); err != nil {
		slog.Warn("chat session not fully configured; connecting anyway", slog.Any("err", err))
	}
	go session.Run(ctx, dispatcher.HandleLine)

	// HTTP server (health/status/metrics)
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	handlers := server.NewHandlers(store, session, cfg.TwitchChannel)
	go func() {
		if err := server.Start(ctx, handlers, addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
