package faceit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onnwee/faceit-elo-bot/telemetry"
)

func init() {
	telemetry.Init()
}

func newTestClient(url string) *Client {
	c := NewClient("test-key")
	c.BaseURL = url
	return c
}

func matchJSON(id, status, winner string, factions map[string][]string) map[string]any {
	teams := map[string]any{}
	for faction, players := range factions {
		roster := make([]map[string]string, 0, len(players))
		for _, p := range players {
			roster = append(roster, map[string]string{"player_id": p})
		}
		teams[faction] = map[string]any{"players": roster}
	}
	return map[string]any{
		"match_id":   id,
		"status":     status,
		"started_at": time.Now().Unix(),
		"teams":      teams,
		"results":    map[string]string{"winner": winner},
	}
}

func TestPlayerStats(t *testing.T) {
	tests := []struct {
		name         string
		response     any
		rawBody      string
		statusCode   int
		wantErr      bool
		wantElo      int
		wantPlayerID string
	}{
		{
			name: "successful lookup",
			response: map[string]any{
				"player_id": "p-123",
				"nickname":  "s1mple",
				"games":     map[string]any{"cs2": map[string]any{"faceit_elo": 3999}},
			},
			statusCode:   http.StatusOK,
			wantElo:      3999,
			wantPlayerID: "p-123",
		},
		{
			name:       "non-success status",
			response:   map[string]any{"errors": []string{"not found"}},
			statusCode: http.StatusNotFound,
			wantErr:    true,
		},
		{
			name:       "missing player id",
			response:   map[string]any{"nickname": "s1mple"},
			statusCode: http.StatusOK,
			wantErr:    true,
		},
		{
			name:       "malformed payload",
			rawBody:    "{not json",
			statusCode: http.StatusOK,
			wantErr:    true,
		},
		{
			name: "player without cs2 stats",
			response: map[string]any{
				"player_id": "p-123",
				"games":     map[string]any{},
			},
			statusCode:   http.StatusOK,
			wantElo:      0,
			wantPlayerID: "p-123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "Bearer test-key" {
					t.Errorf("missing or wrong Authorization header")
				}
				if r.URL.Path != "/players" {
					t.Errorf("path = %s, want /players", r.URL.Path)
				}
				if got := r.URL.Query().Get("nickname"); got != "s1mple" {
					t.Errorf("nickname query param = %s, want s1mple", got)
				}
				w.WriteHeader(tt.statusCode)
				if tt.rawBody != "" {
					_, _ = w.Write([]byte(tt.rawBody))
					return
				}
				_ = json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			stats, err := newTestClient(server.URL).PlayerStats(context.Background(), "s1mple")

			if tt.wantErr {
				if err == nil {
					t.Fatal("PlayerStats() error = nil, want error")
				}
				if stats != (Stats{}) {
					t.Errorf("PlayerStats() on error = %+v, want zero Stats", stats)
				}
				return
			}
			if err != nil {
				t.Fatalf("PlayerStats() unexpected error = %v", err)
			}
			if stats.Elo != tt.wantElo || stats.PlayerID != tt.wantPlayerID {
				t.Errorf("PlayerStats() = %+v, want elo %d player %s", stats, tt.wantElo, tt.wantPlayerID)
			}
		})
	}
}

func TestPlayerStatsEmptyNickname(t *testing.T) {
	if _, err := newTestClient("http://unused").PlayerStats(context.Background(), ""); err == nil {
		t.Fatal("PlayerStats(\"\") error = nil, want error")
	}
}

func TestDailyMatches(t *testing.T) {
	items := []map[string]any{
		matchJSON("m1", "finished", "faction1", map[string][]string{
			"faction1": {"p-123", "x1"}, "faction2": {"x2"},
		}),
		matchJSON("m2", "finished", "faction2", map[string][]string{
			"faction1": {"p-123"}, "faction2": {"x2"},
		}),
		matchJSON("m3", "finished", "faction1", map[string][]string{
			"faction1": {"p-123"}, "faction2": {"x2"},
		}),
		// Unfinished and foreign-roster matches must count nothing.
		matchJSON("m4", "ongoing", "faction1", map[string][]string{
			"faction1": {"p-123"},
		}),
		matchJSON("m5", "finished", "faction1", map[string][]string{
			"faction1": {"x1"}, "faction2": {"x2"},
		}),
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/players/p-123/history" {
			t.Errorf("path = %s, want /players/p-123/history", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("game") != "cs2" {
			t.Errorf("game query param = %s, want cs2", q.Get("game"))
		}
		if q.Get("from") == "" || q.Get("to") == "" || q.Get("limit") != "100" {
			t.Errorf("unexpected window params: %v", q)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	}))
	defer server.Close()

	wins, losses, err := newTestClient(server.URL).DailyMatches(context.Background(), "p-123")
	if err != nil {
		t.Fatalf("DailyMatches() error = %v", err)
	}
	if wins != 2 || losses != 1 {
		t.Errorf("DailyMatches() = %d wins %d losses, want 2 wins 1 loss", wins, losses)
	}
}

func TestDailyMatchesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	wins, losses, err := newTestClient(server.URL).DailyMatches(context.Background(), "p-123")
	if err == nil {
		t.Fatal("DailyMatches() error = nil, want error")
	}
	if wins != 0 || losses != 0 {
		t.Errorf("DailyMatches() on error = %d/%d, want 0/0", wins, losses)
	}
}

func TestClassify(t *testing.T) {
	roster := map[string][]string{"faction1": {"p-123"}, "faction2": {"x2"}}
	tests := []struct {
		name     string
		status   string
		winner   string
		factions map[string][]string
		want     Outcome
	}{
		{"player on winning faction", "finished", "faction1", roster, OutcomeWin},
		{"player on losing faction", "finished", "faction2", roster, OutcomeLoss},
		{"match not finished", "ongoing", "faction1", roster, OutcomeUnknown},
		{"player not in any roster", "finished", "faction1", map[string][]string{"faction1": {"x1"}}, OutcomeUnknown},
		{"winner absent", "finished", "", roster, OutcomeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := matchJSON("m", tt.status, tt.winner, tt.factions)
			b, _ := json.Marshal(raw)
			var m Match
			if err := json.Unmarshal(b, &m); err != nil {
				t.Fatalf("decode match: %v", err)
			}
			if got := Classify(m, "p-123"); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMatchCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "20" {
			t.Errorf("limit query param = %s, want 20", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{
			matchJSON("m1", "finished", "faction1", nil),
			matchJSON("m2", "finished", "faction1", nil),
		}})
	}))
	defer server.Close()

	to := time.Now()
	n, err := newTestClient(server.URL).MatchCount(context.Background(), "p-123", to.Add(-24*time.Hour), to)
	if err != nil {
		t.Fatalf("MatchCount() error = %v", err)
	}
	if n != 2 {
		t.Errorf("MatchCount() = %d, want 2", n)
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	for i := 0; i < 5; i++ {
		if _, err := c.PlayerStats(context.Background(), "s1mple"); err == nil {
			t.Fatalf("call %d: error = nil, want error", i)
		}
	}
	// The breaker trips after three consecutive failures; the remaining
	// calls must fail fast without reaching the server.
	if got := hits.Load(); got != 3 {
		t.Errorf("server hits = %d, want 3", got)
	}
}
