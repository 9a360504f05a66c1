// Package faceit contains a minimal client for the FACEIT Data API v4:
// nickname resolution with the current cs2 elo, and day-scoped match history
// with win/loss classification. Every request is bearer-authorized, bounded
// by a timeout, and routed through a circuit breaker; failures degrade to
// zero-valued results that callers log and move past.
package faceit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/onnwee/faceit-elo-bot/telemetry"
)

const (
	defaultBaseURL = "https://open.faceit.com/data/v4"
	game           = "cs2"
	historyLimit   = 100
)

// defaultHTTPClient bounds every FACEIT call; no request may hang the bot.
var defaultHTTPClient = &http.Client{Timeout: 15 * time.Second}

// Stats is the resolved identity and current rating for the tracked player.
// A zero PlayerID means the lookup failed; an Elo of 0 means "unavailable"
// and is never persisted.
type Stats struct {
	Elo      int
	PlayerID string
}

// Outcome classifies one match from the tracked player's perspective.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeWin
	OutcomeLoss
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "win"
	case OutcomeLoss:
		return "loss"
	default:
		return "unknown"
	}
}

// Match is one record from the player history endpoint.
type Match struct {
	MatchID   string `json:"match_id"`
	Status    string `json:"status"`
	StartedAt int64  `json:"started_at"`
	Teams     map[string]struct {
		Players []struct {
			PlayerID string `json:"player_id"`
		} `json:"players"`
	} `json:"teams"`
	Results struct {
		Winner string `json:"winner"`
	} `json:"results"`
}

// Client talks to the FACEIT Data API.
type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client

	breaker *gobreaker.CircuitBreaker
}

// NewClient builds a client with a circuit breaker tripping on three
// consecutive failures; the breaker state feeds the circuit-open gauge.
func NewClient(apiKey string) *Client {
	st := gobreaker.Settings{Name: "faceit"}
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}
	st.OnStateChange = func(_ string, from, to gobreaker.State) {
		slog.Warn("faceit circuit state change", slog.String("from", from.String()), slog.String("to", to.String()))
		telemetry.UpdateCircuitGauge(to == gobreaker.StateOpen)
	}
	return &Client{APIKey: apiKey, breaker: gobreaker.NewCircuitBreaker(st)}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return defaultHTTPClient
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

// getJSON issues a bearer-authorized GET through the breaker and decodes the
// body into out. Non-2xx is an error (and counts as a breaker failure).
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	do := func() (any, error) {
		u := c.base() + path
		if len(q) > 0 {
			u += "?" + q.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
		resp, err := c.http().Do(req)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				slog.Warn("failed to close response body", slog.Any("err", err))
			}
		}()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("faceit %s: %s: %s", path, resp.Status, string(b))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("faceit %s: decode: %w", path, err)
		}
		return nil, nil
	}
	var err error
	if c.breaker != nil {
		_, err = c.breaker.Execute(do)
	} else {
		_, err = do()
	}
	if err != nil {
		telemetry.APIErrors.Inc()
	}
	return err
}

// PlayerStats resolves nickname to player id and the current cs2 elo.
// Any failure yields the zero Stats plus the error for logging; callers
// never treat the error as fatal.
func (c *Client) PlayerStats(ctx context.Context, nickname string) (Stats, error) {
	if nickname == "" {
		return Stats{}, fmt.Errorf("nickname empty")
	}
	var body struct {
		PlayerID string `json:"player_id"`
		Nickname string `json:"nickname"`
		Games    map[string]struct {
			FaceitElo int `json:"faceit_elo"`
		} `json:"games"`
	}
	q := url.Values{}
	q.Set("nickname", nickname)
	if err := c.getJSON(ctx, "/players", q, &body); err != nil {
		return Stats{}, err
	}
	if body.PlayerID == "" {
		return Stats{}, fmt.Errorf("player_id missing for %q", nickname)
	}
	return Stats{Elo: body.Games[game].FaceitElo, PlayerID: body.PlayerID}, nil
}

// DailyMatches counts wins and losses over the current UTC calendar day,
// from midnight to now. The window is computed in UTC on purpose: the remote
// service has no reliable local-day filter, and skew against its clock is
// worse than the mismatch with the user-facing local boundary.
func (c *Client) DailyMatches(ctx context.Context, playerID string) (wins, losses int, err error) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	matches, err := c.History(ctx, playerID, from, now, historyLimit)
	if err != nil {
		return 0, 0, err
	}
	for _, m := range matches {
		switch Classify(m, playerID) {
		case OutcomeWin:
			wins++
		case OutcomeLoss:
			losses++
		}
	}
	return wins, losses, nil
}

// History lists the player's matches within [from,to].
func (c *Client) History(ctx context.Context, playerID string, from, to time.Time, limit int) ([]Match, error) {
	if playerID == "" {
		return nil, fmt.Errorf("playerID empty")
	}
	if limit <= 0 {
		limit = historyLimit
	}
	var body struct {
		Items []Match `json:"items"`
	}
	q := url.Values{}
	q.Set("game", game)
	q.Set("from", fmt.Sprintf("%d", from.Unix()))
	q.Set("to", fmt.Sprintf("%d", to.Unix()))
	q.Set("limit", fmt.Sprintf("%d", limit))
	if err := c.getJSON(ctx, "/players/"+playerID+"/history", q, &body); err != nil {
		return nil, err
	}
	return body.Items, nil
}

// MatchCount returns how many matches fall in [from,to]; used by the
// !testapi probe.
func (c *Client) MatchCount(ctx context.Context, playerID string, from, to time.Time) (int, error) {
	matches, err := c.History(ctx, playerID, from, to, 20)
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

// Classify derives the outcome of one match for playerID. Anything
// ambiguous is Unknown and counts toward neither wins nor losses: an
// unfinished match, a roster that doesn't contain the player, or a missing
// declared winner.
func Classify(m Match, playerID string) Outcome {
	if m.Status != "finished" {
		return OutcomeUnknown
	}
	faction := ""
	for name, team := range m.Teams {
		for _, p := range team.Players {
			if p.PlayerID == playerID {
				faction = name
				break
			}
		}
		if faction != "" {
			break
		}
	}
	if faction == "" {
		return OutcomeUnknown
	}
	if m.Results.Winner == "" {
		return OutcomeUnknown
	}
	if faction == m.Results.Winner {
		return OutcomeWin
	}
	return OutcomeLoss
}
