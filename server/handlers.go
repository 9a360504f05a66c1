package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/onnwee/faceit-elo-bot/elostore"
)

// ConnectionState reports whether the chat session is currently connected.
type ConnectionState interface {
	Connected() bool
}

// Handlers carries the dependencies the HTTP endpoints read from.
type Handlers struct {
	Store   *elostore.Store
	Session ConnectionState
	Channel string
	Started time.Time
}

func NewHandlers(store *elostore.Store, session ConnectionState, channel string) *Handlers {
	return &Handlers{Store: store, Session: session, Channel: channel, Started: time.Now()}
}

// HandleHealthz responds to liveness probes by checking that the history
// file is readable.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleStatus reports the session and rating state as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := struct {
		Connected  bool   `json:"connected"`
		Channel    string `json:"channel"`
		LastElo    int    `json:"last_elo"`
		LastEloAt  string `json:"last_elo_at,omitempty"`
		DailyDelta int    `json:"daily_delta"`
		UptimeSecs int64  `json:"uptime_seconds"`
	}{
		Connected:  h.Session != nil && h.Session.Connected(),
		Channel:    h.Channel,
		DailyDelta: h.Store.DailyDelta(),
		UptimeSecs: int64(time.Since(h.Started).Seconds()),
	}
	if snap, ok := h.Store.Last(); ok {
		status.LastElo = snap.Elo
		status.LastEloAt = snap.Timestamp.Format(time.RFC3339)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(status)
}
