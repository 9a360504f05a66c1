// Package bot parses inbound chat lines into commands and runs the
// handlers. The !elo report runs in the background behind a cooldown and a
// single-flight gate so repeated requests can never pile up against the
// FACEIT API or interleave history writes; the diagnostic commands run
// synchronously and are developer-facing.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/faceit-elo-bot/elostore"
	"github.com/onnwee/faceit-elo-bot/faceit"
	"github.com/onnwee/faceit-elo-bot/telemetry"
)

// StatsClient is the slice of the FACEIT client the dispatcher needs.
type StatsClient interface {
	PlayerStats(ctx context.Context, nickname string) (faceit.Stats, error)
	DailyMatches(ctx context.Context, playerID string) (wins, losses int, err error)
	History(ctx context.Context, playerID string, from, to time.Time, limit int) ([]faceit.Match, error)
	MatchCount(ctx context.Context, playerID string, from, to time.Time) (int, error)
}

// Sender delivers one line back to the chat channel.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Dispatcher holds the process-lifetime command state: the completion
// timestamp the cooldown is measured from and the in-flight flag for the
// single background dispatch. Both are owned here and mutated only on the
// dispatch path and in the goroutine it spawns.
type Dispatcher struct {
	Faceit     StatsClient
	Store      *elostore.Store
	Sender     Sender
	FaceitNick string
	Cooldown   time.Duration

	mu       sync.Mutex
	lastDone time.Time
	inFlight bool

	// now is swappable for tests.
	now func() time.Time
}

func NewDispatcher(client StatsClient, store *elostore.Store, sender Sender, faceitNick string, cooldown time.Duration) *Dispatcher {
	return &Dispatcher{
		Faceit:     client,
		Store:      store,
		Sender:     sender,
		FaceitNick: faceitNick,
		Cooldown:   cooldown,
		now:        time.Now,
	}
}

// ParseLine extracts (username, message) from a raw PRIVMSG line. The
// username sits between the leading ':' and the first '!'; the message
// follows the first ':' after the PRIVMSG marker.
func ParseLine(line string) (user, message string, err error) {
	bang := strings.Index(line, "!")
	if bang <= 0 {
		return "", "", fmt.Errorf("no username delimiter in line")
	}
	user = strings.TrimPrefix(line[:bang], ":")
	if user == "" {
		return "", "", fmt.Errorf("empty username in line")
	}
	_, rest, ok := strings.Cut(line, "PRIVMSG")
	if !ok {
		return "", "", fmt.Errorf("no PRIVMSG marker in line")
	}
	_, msg, ok := strings.Cut(rest, ":")
	if !ok {
		return "", "", fmt.Errorf("no message delimiter in line")
	}
	return user, strings.TrimSpace(msg), nil
}

// HandleLine is the session manager's inbound hook. Malformed lines are
// logged and dropped; unrecognized messages are ignored.
func (d *Dispatcher) HandleLine(ctx context.Context, line string) {
	user, message, err := ParseLine(line)
	if err != nil {
		slog.Error("failed to parse chat line", slog.Any("err", err))
		return
	}
	slog.Info("chat message", slog.String("user", user), slog.String("message", message))

	switch strings.ToLower(strings.TrimSpace(message)) {
	case "!elo":
		d.handleElo(ctx, user)
	case "!checkelo":
		telemetry.CommandsProcessed.WithLabelValues("checkelo").Inc()
		d.handleCheckElo(ctx, user)
	case "!debug":
		telemetry.CommandsProcessed.WithLabelValues("debug").Inc()
		d.handleDebug(ctx, user)
	case "!testapi":
		telemetry.CommandsProcessed.WithLabelValues("testapi").Inc()
		d.handleTestAPI(ctx, user)
	}
}

// handleElo applies the cooldown and single-flight gates, then spawns the
// background dispatch. Both gates drop silently: no reply, no error.
func (d *Dispatcher) handleElo(ctx context.Context, user string) {
	d.mu.Lock()
	if !d.lastDone.IsZero() && d.now().Sub(d.lastDone) < d.Cooldown {
		d.mu.Unlock()
		telemetry.CooldownDrops.Inc()
		slog.Info("!elo dropped (cooldown)", slog.String("user", user))
		return
	}
	if d.inFlight {
		d.mu.Unlock()
		telemetry.SingleFlightDrops.Inc()
		slog.Info("!elo dropped (dispatch in flight)", slog.String("user", user))
		return
	}
	d.inFlight = true
	d.mu.Unlock()

	telemetry.CommandsProcessed.WithLabelValues("elo").Inc()
	go d.processElo(ctx, user)
}

// processElo is the background dispatch: fetch, persist, reply. The
// completion timestamp is written only after the reply is sent, so slow
// FACEIT calls naturally extend the effective cooldown.
func (d *Dispatcher) processElo(ctx context.Context, user string) {
	defer func() {
		d.mu.Lock()
		d.lastDone = d.now()
		d.inFlight = false
		d.mu.Unlock()
	}()

	ctx = telemetry.WithCorrelation(ctx, uuid.New().String())
	ctx, span := telemetry.StartSpan(ctx, "bot", "elo-dispatch",
		telemetry.CommandAttr("!elo"), telemetry.UserAttr(user))
	defer span.End()
	log := telemetry.LoggerWithCorr(ctx)

	var stats faceit.Stats
	var wins, losses int
	telemetry.TimeFunc(telemetry.FetchDuration, func() {
		var err error
		stats, err = d.Faceit.PlayerStats(ctx, d.FaceitNick)
		if err != nil {
			telemetry.RecordError(span, err)
			log.Error("faceit player fetch failed", slog.Any("err", err))
			return
		}
		wins, losses, err = d.Faceit.DailyMatches(ctx, stats.PlayerID)
		if err != nil {
			telemetry.RecordError(span, err)
			log.Error("faceit match fetch failed", slog.Any("err", err))
		}
	})

	// An elo of exactly 0 means "unavailable" and is never persisted; the
	// daily-delta seed detection depends on that.
	if stats.Elo > 0 {
		if err := d.Store.Append(stats.Elo); err != nil {
			log.Error("failed to save elo snapshot", slog.Any("err", err))
		} else {
			telemetry.SnapshotsSaved.Inc()
		}
	}
	delta := d.Store.DailyDelta()

	reply := fmt.Sprintf("@%s → Elo: %d | Win: %d | Lose: %d | %s",
		user, stats.Elo, wins, losses, formatDelta(delta))
	log.Info("sending elo report", slog.String("user", user))
	if err := d.Sender.Send(ctx, reply); err != nil {
		telemetry.RecordError(span, err)
		log.Error("failed to send elo report", slog.Any("err", err))
		return
	}
	telemetry.SetSpanSuccess(span)
}

// handleCheckElo prints the same report to the console, with hints when the
// day's counters come back empty. Synchronous and ungated.
func (d *Dispatcher) handleCheckElo(ctx context.Context, user string) {
	slog.Info("handling !checkelo", slog.String("user", user))
	stats, err := d.Faceit.PlayerStats(ctx, d.FaceitNick)
	if err != nil {
		slog.Error("faceit player fetch failed", slog.Any("err", err))
	}
	var wins, losses int
	if stats.PlayerID != "" {
		if wins, losses, err = d.Faceit.DailyMatches(ctx, stats.PlayerID); err != nil {
			slog.Error("faceit match fetch failed", slog.Any("err", err))
		}
	}
	delta := d.Store.DailyDelta()

	fmt.Printf("\n=== Check for @%s ===\n", user)
	fmt.Printf("Current elo: %d\n", stats.Elo)
	fmt.Printf("Wins (today): %d\n", wins)
	fmt.Printf("Losses (today): %d\n", losses)
	fmt.Printf("Daily elo change: %s\n", formatDelta(delta))
	fmt.Println(strings.Repeat("=", 35))

	if wins == 0 && losses == 0 {
		fmt.Println("\nNOTE: wins and losses are both 0. Possible causes:")
		fmt.Println("1. No matches played today")
		fmt.Println("2. Matches not yet visible in the FACEIT API")
		fmt.Println("3. Wrong nickname or player id")
		fmt.Println("4. Timezone window mismatch")
		fmt.Println("Check the log above for request details")
		fmt.Println(strings.Repeat("=", 50))
	}
}

// handleDebug is a two-stage console probe: the player endpoint, then the
// last 24h of match history with a sample match. Synchronous and ungated.
func (d *Dispatcher) handleDebug(ctx context.Context, user string) {
	slog.Info("handling !debug", slog.String("user", user))
	fmt.Printf("\n=== DEBUG for @%s ===\n", user)

	stats, err := d.Faceit.PlayerStats(ctx, d.FaceitNick)
	if err != nil {
		fmt.Printf("1. Player API failed: %v\n", err)
		return
	}
	fmt.Printf("1. Player API ok\n")
	fmt.Printf("   Player ID: %s\n", stats.PlayerID)
	fmt.Printf("   CS2 elo: %d\n", stats.Elo)

	to := d.now()
	from := to.Add(-24 * time.Hour)
	matches, err := d.Faceit.History(ctx, stats.PlayerID, from, to, 10)
	if err != nil {
		fmt.Printf("2. Matches API failed: %v\n", err)
		return
	}
	fmt.Printf("2. Matches API ok\n")
	fmt.Printf("   Matches in the last 24h: %d\n", len(matches))
	if len(matches) > 0 {
		m := matches[0]
		fmt.Println("   Most recent match:")
		fmt.Printf("     Match ID: %s\n", m.MatchID)
		fmt.Printf("     Status: %s\n", m.Status)
		fmt.Printf("     Started: %s\n", time.Unix(m.StartedAt, 0).UTC().Format(time.RFC3339))
	}
	fmt.Println(strings.Repeat("=", 40))
}

// handleTestAPI counts matches over several windows (console output) and
// confirms completion in chat. Synchronous and ungated.
func (d *Dispatcher) handleTestAPI(ctx context.Context, user string) {
	slog.Info("handling !testapi", slog.String("user", user))

	stats, err := d.Faceit.PlayerStats(ctx, d.FaceitNick)
	if err != nil {
		_ = d.Sender.Send(ctx, fmt.Sprintf("@%s API error: %v", user, err))
		return
	}

	now := d.now()
	periods := []struct {
		name    string
		daysAgo int
	}{
		{"today", 0},
		{"yesterday", 1},
		{"2 days ago", 2},
		{"last week", 7},
	}
	for _, p := range periods {
		from := now.AddDate(0, 0, -(p.daysAgo + 1))
		to := now
		if p.daysAgo > 0 {
			to = now.AddDate(0, 0, -p.daysAgo)
		}
		n, err := d.Faceit.MatchCount(ctx, stats.PlayerID, from, to)
		if err != nil {
			fmt.Printf("%s: API error: %v\n", p.name, err)
			continue
		}
		fmt.Printf("%s: %d matches\n", p.name, n)
	}
	_ = d.Sender.Send(ctx, fmt.Sprintf("@%s API test complete, check console", user))
}

func formatDelta(delta int) string {
	if delta > 0 {
		return fmt.Sprintf("+%d", delta)
	}
	return fmt.Sprintf("%d", delta)
}
