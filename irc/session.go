// Package irc owns the line-level Twitch IRC session: dialing, the
// PASS/NICK/JOIN handshake, keep-alive replies, rate-limited sends, and the
// supervisory loop that reconnects on any read failure. Nothing in here
// terminates the process; only context cancellation ends Run.
package irc

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/onnwee/faceit-elo-bot/telemetry"
)

const (
	dialTimeout  = 30 * time.Second
	writeTimeout = 10 * time.Second

	// Twitch PINGs roughly every five minutes; silence beyond that means a
	// dead link, so the read deadline doubles as the liveness bound.
	readTimeout = 6 * time.Minute

	reconnectPause   = 5 * time.Second
	connectRetryWait = 10 * time.Second
	offlineWait      = 60 * time.Second

	// Twitch allows ~20 messages per 30s; half a second between sends keeps
	// the bot far under the flood limit.
	sendInterval = 500 * time.Millisecond
)

// Handler receives each raw inbound line that contains a PRIVMSG.
type Handler func(ctx context.Context, line string)

// Session is the bot's IRC connection state machine:
// Disconnected -> Connecting -> Connected -> (Disconnected on any error).
type Session struct {
	Addr    string
	Token   string
	Nick    string
	Channel string

	// Live gates connecting at all. In this deployment it is always true;
	// wiring LIVE_CHECK swaps in a Helix stream probe.
	Live func(ctx context.Context) bool

	// OnConnect runs after a successful handshake (history cleanup hook).
	OnConnect func()

	limiter *rate.Limiter

	// wait tunables, defaulted from the package constants
	reconnectPause   time.Duration
	connectRetryWait time.Duration
	offlineWait      time.Duration
	readTimeout      time.Duration

	mu        sync.Mutex
	conn      net.Conn
	connected bool
}

func NewSession(addr, token, nick, channel string) *Session {
	return &Session{
		Addr:             addr,
		Token:            token,
		Nick:             nick,
		Channel:          channel,
		limiter:          rate.NewLimiter(rate.Every(sendInterval), 1),
		reconnectPause:   reconnectPause,
		connectRetryWait: connectRetryWait,
		offlineWait:      offlineWait,
		readTimeout:      readTimeout,
	}
}

// Connected reports the current session state.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Connect dials with a bounded timeout and performs the auth handshake.
// Any failure leaves the session disconnected and is returned to the caller;
// the run loop decides when to try again.
func (s *Session) Connect(ctx context.Context) error {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.Addr, err)
	}
	for _, line := range []string{
		"PASS " + s.Token,
		"NICK " + s.Nick,
		"JOIN #" + s.Channel,
	} {
		if err := writeLine(conn, line); err != nil {
			_ = conn.Close()
			return fmt.Errorf("handshake: %w", err)
		}
	}
	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	telemetry.UpdateConnectedGauge(true)
	slog.Info("connected to twitch irc", slog.String("nick", s.Nick), slog.String("channel", s.Channel))
	return nil
}

// Send writes one rate-limited chat message to the joined channel. Write
// failures are logged and returned; callers never treat them as fatal.
func (s *Session) Send(ctx context.Context, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	conn := s.conn
	connected := s.connected
	s.mu.Unlock()
	if !connected || conn == nil {
		slog.Warn("send skipped: not connected")
		return fmt.Errorf("not connected")
	}
	if err := writeLine(conn, "PRIVMSG #"+s.Channel+" :"+text); err != nil {
		slog.Error("send failed", slog.Any("err", err))
		return err
	}
	slog.Info("sent chat message", slog.String("text", text))
	return nil
}

// Run is the supervisory loop. It gates on liveness, connects, pumps the
// read loop, and reconnects after a pause on any failure. It returns only
// when ctx is cancelled.
func (s *Session) Run(ctx context.Context, handle Handler) {
	slog.Info("irc session loop starting", slog.String("addr", s.Addr))
	for {
		if ctx.Err() != nil {
			s.close()
			slog.Info("irc session loop stopped")
			return
		}
		if s.Live != nil && !s.Live(ctx) {
			slog.Info("stream not live; waiting")
			sleepCtx(ctx, s.offlineWait)
			continue
		}
		if err := s.Connect(ctx); err != nil {
			slog.Error("twitch connect failed", slog.Any("err", err))
			sleepCtx(ctx, s.connectRetryWait)
			continue
		}
		if s.OnConnect != nil {
			s.OnConnect()
		}
		s.readLoop(ctx, handle)
		// Any exit from the read loop is a disconnect: close, pause once,
		// and let the top of the loop make the single retry attempt.
		s.close()
		if ctx.Err() == nil {
			telemetry.Reconnects.Inc()
			slog.Warn("connection lost; reconnecting")
			sleepCtx(ctx, s.reconnectPause)
		}
	}
}

// readLoop pumps inbound lines until a read fails or ctx is cancelled.
// A deadline expiry or an empty read is treated identically to a connection
// error. PING is answered before anything else; PRIVMSG lines go to the
// handler.
func (s *Session) readLoop(ctx context.Context, handle Handler) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	reader := bufio.NewReader(conn)
	for {
		if ctx.Err() != nil {
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			slog.Warn("set read deadline failed", slog.Any("err", err))
			return
		}
		raw, err := reader.ReadString('\n')
		if err != nil {
			slog.Warn("irc read failed", slog.Any("err", err))
			return
		}
		line := strings.TrimRight(raw, "\r\n")
		if line == "" {
			slog.Warn("empty read from server")
			return
		}
		if strings.HasPrefix(line, "PING") {
			if err := writeLine(conn, "PONG"); err != nil {
				slog.Warn("pong failed", slog.Any("err", err))
				return
			}
			continue
		}
		if strings.Contains(line, "PRIVMSG") {
			handle(ctx, line)
		}
	}
}

// close tears the connection down, ignoring close errors.
func (s *Session) close() {
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.connected = false
	s.mu.Unlock()
	telemetry.UpdateConnectedGauge(false)
}

func writeLine(conn net.Conn, line string) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err := conn.Write([]byte(line + "\r\n"))
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
