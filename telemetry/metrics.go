// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	CommandsProcessed *prometheus.CounterVec
	CooldownDrops     prometheus.Counter
	SingleFlightDrops prometheus.Counter
	Reconnects        prometheus.Counter
	APIErrors         prometheus.Counter
	SnapshotsSaved    prometheus.Counter
	ResetsRun         prometheus.Counter

	// Histograms (seconds)
	FetchDuration prometheus.Observer

	// Gauges
	ConnectedGauge   prometheus.Gauge // 1=connected,0=disconnected
	CircuitOpenGauge prometheus.Gauge // 1=open,0=closed
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CommandsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_commands_total", Help: "Chat commands handled, by command"}, []string{"command"})
		CooldownDrops = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_elo_cooldown_dropped_total", Help: "!elo commands dropped by the cooldown gate"})
		SingleFlightDrops = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_elo_singleflight_dropped_total", Help: "!elo commands dropped while a prior dispatch was in flight"})
		Reconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_irc_reconnects_total", Help: "IRC reconnect attempts"})
		APIErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_faceit_api_errors_total", Help: "FACEIT API calls that failed or returned non-success"})
		SnapshotsSaved = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_elo_snapshots_saved_total", Help: "Elo snapshots appended to the history file"})
		ResetsRun = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_daily_resets_total", Help: "Daily history resets executed"})
		FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bot_faceit_fetch_duration_seconds", Help: "FACEIT stats fetch duration seconds", Buckets: prometheus.DefBuckets})
		ConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_irc_connected", Help: "IRC session connected=1 disconnected=0"})
		CircuitOpenGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_faceit_circuit_open", Help: "FACEIT circuit breaker open=1 closed=0"})
	})
}

// UpdateConnectedGauge sets gauge to 1 if connected else 0.
func UpdateConnectedGauge(connected bool) {
	if ConnectedGauge != nil {
		if connected {
			ConnectedGauge.Set(1)
		} else {
			ConnectedGauge.Set(0)
		}
	}
}

// UpdateCircuitGauge sets gauge to 1 if open else 0.
func UpdateCircuitGauge(open bool) {
	if CircuitOpenGauge != nil {
		if open {
			CircuitOpenGauge.Set(1)
		} else {
			CircuitOpenGauge.Set(0)
		}
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
