package stabilizer

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve_SameStringOverflowsWindow(t *testing.T) {
	s := New(DefaultConfig())

	var u Update
	for range 61 {
		u = s.Observe("ABCDE12345")
	}

	assert.Equal(t, 60, s.Len())
	assert.True(t, u.HasStabilized)
	assert.Equal(t, "ABCDE12345", u.Stabilized)
	assert.Equal(t, "ABCDE12345", s.Best())
}

func TestObserve_MajorityWins(t *testing.T) {
	s := New(DefaultConfig())

	s.Observe("ABCDE12345")
	s.Observe("ABCDE12345")
	u := s.Observe("XYZ9999999")

	assert.Equal(t, "ABCDE12345", u.Stabilized)
	assert.Equal(t, "XYZ9999999", u.Candidate)
}

func TestObserve_TieGoesToFirstSeen(t *testing.T) {
	s := New(DefaultConfig())

	s.Observe("XYZ9999999")
	u := s.Observe("ABCDE12345")
	assert.Equal(t, "XYZ9999999", u.Stabilized)

	u = s.Observe("ABCDE12345")
	assert.Equal(t, "ABCDE12345", u.Stabilized)
}

func TestObserve_LengthGates(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantPushed    bool
		wantCandidate bool
	}{
		{"empty", "", false, false},
		{"eight chars", "ABCD1234", false, false},
		{"nine chars", "ABCD12345", false, true},
		{"ten chars", "ABCD123456", true, true},
		{"multibyte counted by rune", "ÄÖÜÄÖÜÄÖÜ", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(DefaultConfig())
			u := s.Observe(tt.text)

			assert.Equal(t, tt.wantPushed, u.HasStabilized)
			assert.Equal(t, tt.wantCandidate, u.HasCandidate)
			if tt.wantPushed {
				assert.Equal(t, 1, s.Len())
			} else {
				assert.Equal(t, 0, s.Len())
			}
			if tt.wantCandidate {
				assert.Equal(t, tt.text, u.Candidate)
			}
		})
	}
}

func TestObserve_EvictionChangesWinner(t *testing.T) {
	s := New(Config{HistorySize: 3, PushMinLength: 9, CandidateMinLength: 8})

	s.Observe("AAAAAAAAAA")
	s.Observe("AAAAAAAAAA")
	s.Observe("BBBBBBBBBB")
	assert.Equal(t, "AAAAAAAAAA", s.Best())

	s.Observe("BBBBBBBBBB")
	// Window is now [A, B, B].
	assert.Equal(t, "BBBBBBBBBB", s.Best())

	snap := s.Snapshot()
	assert.Equal(t, []string{"AAAAAAAAAA", "BBBBBBBBBB", "BBBBBBBBBB"}, snap.History)
	assert.Equal(t, []Count{{"AAAAAAAAAA", 1}, {"BBBBBBBBBB", 2}}, snap.Tally)
}

func TestReset(t *testing.T) {
	s := New(DefaultConfig())
	s.Observe("ABCDE12345")
	require.Equal(t, 1, s.Len())

	s.Reset()

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Best())
	assert.Empty(t, s.Snapshot().Tally)
}

func TestNew_DefaultsHistorySize(t *testing.T) {
	s := New(Config{PushMinLength: 0, CandidateMinLength: 0})
	for i := range 100 {
		s.Observe(fmt.Sprintf("x%d", i))
	}
	assert.Equal(t, DefaultHistorySize, s.Len())
}

func TestWinner_Empty(t *testing.T) {
	assert.Equal(t, "", Winner(nil))
}

func TestStabilizer_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	pool := []string{"ABCDE12345", "ABCDE1234S", "XYZ9999999", "short", "ABCD12345"}
	readings := gen.SliceOf(gen.IntRange(0, len(pool)-1))

	properties.Property("window never exceeds capacity", prop.ForAll(
		func(in []int, capacity int) bool {
			s := New(Config{HistorySize: capacity, PushMinLength: 9, CandidateMinLength: 8})
			for _, i := range in {
				s.Observe(pool[i])
			}
			return s.Len() <= capacity
		},
		readings,
		gen.IntRange(1, 80),
	))

	properties.Property("winner has the highest count", prop.ForAll(
		func(in []int) bool {
			s := New(DefaultConfig())
			for _, i := range in {
				s.Observe(pool[i])
			}
			snap := s.Snapshot()
			if len(snap.History) == 0 {
				return snap.Best == ""
			}
			top := 0
			for _, c := range snap.Tally {
				if c.Count > top {
					top = c.Count
				}
			}
			for _, c := range snap.Tally {
				if c.Text == snap.Best {
					return c.Count == top
				}
			}
			return false
		},
		readings,
	))

	properties.TestingRun(t)
}

func TestHistory_RingOrder(t *testing.T) {
	h := NewHistory(3)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		h.Push(s)
	}
	assert.Equal(t, []string{"c", "d", "e"}, h.Items())
	assert.Equal(t, 3, h.Cap())

	h.Clear()
	assert.Empty(t, h.Items())
	h.Push("f")
	assert.Equal(t, []string{"f"}, h.Items())
}
