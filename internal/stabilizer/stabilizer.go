// Package stabilizer smooths noisy per-frame OCR output into a single code by
// majority vote over a bounded window of recent readings.
package stabilizer

import (
	"sync"
	"unicode/utf8"
)

const (
	// DefaultHistorySize is the number of readings kept for voting.
	DefaultHistorySize = 60
	// DefaultPushMinLength: readings must be strictly longer than this to vote.
	DefaultPushMinLength = 9
	// DefaultCandidateMinLength: readings strictly longer than this are passed
	// through as raw candidates, independent of the vote.
	DefaultCandidateMinLength = 8
)

// Config controls the voting window and the two acceptance gates.
type Config struct {
	HistorySize        int
	PushMinLength      int
	CandidateMinLength int
}

// DefaultConfig returns the stock window and gates.
func DefaultConfig() Config {
	return Config{
		HistorySize:        DefaultHistorySize,
		PushMinLength:      DefaultPushMinLength,
		CandidateMinLength: DefaultCandidateMinLength,
	}
}

// Update is what one observation produced. Either part may be absent.
type Update struct {
	Stabilized    string
	HasStabilized bool
	Candidate     string
	HasCandidate  bool
}

// Empty reports whether the observation produced nothing.
func (u Update) Empty() bool { return !u.HasStabilized && !u.HasCandidate }

// Count is one entry of the frequency tally.
type Count struct {
	Text  string
	Count int
}

// Snapshot is a copy of the stabilizer state.
type Snapshot struct {
	History []string
	Tally   []Count // ordered by first appearance in History
	Best    string
}

// Stabilizer keeps the voting window. It is safe for concurrent use, although
// a scanning session drives it from a single goroutine.
type Stabilizer struct {
	mu      sync.Mutex
	cfg     Config
	history *History
	best    string
}

// New creates a stabilizer. Non-positive history sizes fall back to the default.
func New(cfg Config) *Stabilizer {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	return &Stabilizer{cfg: cfg, history: NewHistory(cfg.HistorySize)}
}

// Observe feeds one trimmed per-frame reading through both gates.
func (s *Stabilizer) Observe(text string) Update {
	var u Update
	if text == "" {
		return u
	}
	n := utf8.RuneCountInString(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if n > s.cfg.PushMinLength {
		s.history.Push(text)
		tally := Tally(s.history.Items())
		s.best = Winner(tally)
		u.Stabilized = s.best
		u.HasStabilized = true
	}
	if n > s.cfg.CandidateMinLength {
		u.Candidate = text
		u.HasCandidate = true
	}
	return u
}

// Best returns the current stabilized code, or "" before the first vote.
func (s *Stabilizer) Best() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.best
}

// Len returns the number of readings in the window.
func (s *Stabilizer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Len()
}

// Snapshot returns a copy of the window and its tally.
func (s *Stabilizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.history.Items()
	return Snapshot{History: items, Tally: Tally(items), Best: s.best}
}

// Reset clears the window. Used when a scanning session restarts.
func (s *Stabilizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Clear()
	s.best = ""
}

// Tally counts occurrences of each distinct reading, ordered by first
// appearance.
func Tally(items []string) []Count {
	index := make(map[string]int, len(items))
	out := make([]Count, 0, len(items))
	for _, it := range items {
		if i, ok := index[it]; ok {
			out[i].Count++
			continue
		}
		index[it] = len(out)
		out = append(out, Count{Text: it, Count: 1})
	}
	return out
}

// Winner returns the most frequent reading. Ties go to the reading seen first.
func Winner(tally []Count) string {
	best := -1
	for i, c := range tally {
		if best < 0 || c.Count > tally[best].Count {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return tally[best].Text
}
