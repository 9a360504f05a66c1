// Package elostore persists the tracked player's elo history as a single
// JSON array file and answers daily-delta queries over it. The file is the
// whole truth: every mutation reads the full history and rewrites the file
// atomically, so a crash can never leave a half-written array behind.
package elostore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrCorrupt marks a history file that exists but cannot be decoded.
// Callers treat it as "no history" and keep going.
var ErrCorrupt = errors.New("elo history corrupt")

// Snapshot is one timestamped elo observation. Timestamps carry the
// configured zone offset on disk (RFC 3339).
type Snapshot struct {
	Elo       int       `json:"elo"`
	Timestamp time.Time `json:"timestamp"`
}

// Store serializes all read-modify-write cycles over the history file.
// The elo command goroutine and the daily reset job share one Store.
type Store struct {
	path string
	loc  *time.Location

	mu sync.Mutex

	// now is swappable for tests.
	now func() time.Time
}

func New(path string, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	s := &Store{path: path, loc: loc}
	s.now = func() time.Time { return time.Now().In(loc) }
	return s
}

// Init seeds the history file with a single zero-elo snapshot if it does not
// exist yet. Idempotent: an existing file is never touched.
func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat history: %w", err)
	}
	seed := []Snapshot{{Elo: 0, Timestamp: s.now()}}
	return s.write(seed)
}

// Append records elo at the current instant. The whole history is read and
// rewritten; callers treat a returned error as best-effort (log and move on).
func (s *Store) Append(elo int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	history, err := s.read()
	if err != nil {
		return err
	}
	history = append(history, Snapshot{Elo: elo, Timestamp: s.now()})
	return s.write(history)
}

// TruncateToToday drops snapshots older than today's date in the configured
// timezone. Run at connection start so a bot that was down over a day
// boundary doesn't report stale deltas.
func (s *Store) TruncateToToday() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	history, err := s.read()
	if err != nil {
		return err
	}
	today := dateOf(s.now())
	kept := history[:0]
	for _, snap := range history {
		if !dateOf(snap.Timestamp.In(s.loc)).Before(today) {
			kept = append(kept, snap)
		}
	}
	return s.write(kept)
}

// ResetForNewDay collapses the history to a single snapshot carrying the
// last known elo at the current instant. The rating value survives the day
// boundary; the win/loss/delta window starts over.
func (s *Store) ResetForNewDay() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	history, err := s.read()
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return err
	}
	last := 0
	if len(history) > 0 {
		last = history[len(history)-1].Elo
	}
	return s.write([]Snapshot{{Elo: last, Timestamp: s.now()}})
}

// DailyDelta returns last minus first among today's snapshots, skipping
// leading zero-elo seed entries. Zero when fewer than two qualify. Read
// failures count as no history.
func (s *Store) DailyDelta() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	history, err := s.read()
	if err != nil {
		return 0
	}
	today := dateOf(s.now())
	var daily []Snapshot
	for _, snap := range history {
		if dateOf(snap.Timestamp.In(s.loc)).Equal(today) {
			daily = append(daily, snap)
		}
	}
	for len(daily) > 0 && daily[0].Elo == 0 {
		daily = daily[1:]
	}
	if len(daily) < 2 {
		return 0
	}
	return daily[len(daily)-1].Elo - daily[0].Elo
}

// Last returns the most recent snapshot, if any.
func (s *Store) Last() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history, err := s.read()
	if err != nil || len(history) == 0 {
		return Snapshot{}, false
	}
	return history[len(history)-1], true
}

// Ping reports whether the history file is readable. Used by the health
// endpoint.
func (s *Store) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.read()
	return err
}

// read loads the full history. Missing file yields an empty history without
// error; a present-but-undecodable file yields an empty history plus
// ErrCorrupt so the caller can log it. Callers must hold s.mu.
func (s *Store) read() ([]Snapshot, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var history []Snapshot
	if err := json.Unmarshal(b, &history); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}
	return history, nil
}

// write replaces the file contents atomically (temp file + rename) so a
// concurrent reader or a crash never observes a partial array.
func (s *Store) write(history []Snapshot) error {
	if history == nil {
		history = []Snapshot{}
	}
	b, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp history: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
