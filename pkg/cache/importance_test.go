package cache

import (
	"testing"
	"time"
)

func TestHeuristicScorer_Bounds(t *testing.T) {
	s := NewHeuristicScorer()

	cases := []struct {
		name string
		sig  Signals
	}{
		{"zero value", Signals{}},
		{"maximal", Signals{
			CreatedAt:     time.Now(),
			Confidence:    1.0,
			HasConfidence: true,
			VertexCount:   15,
			EdgeCount:     14,
			Query:         "alpha",
			RecentQueries: []string{"alpha", "alpha"},
		}},
		{"stale", Signals{CreatedAt: time.Now().Add(-365 * 24 * time.Hour)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := s.Score(tc.sig)
			if got < 0 || got > 1 {
				t.Fatalf("Score() = %v, want within [0, 1]", got)
			}
		})
	}
}

func TestHeuristicScorer_FreshBeatsStale(t *testing.T) {
	s := NewHeuristicScorer()
	base := Signals{Confidence: 0.5, HasConfidence: true}

	fresh := base
	fresh.CreatedAt = time.Now()
	stale := base
	stale.CreatedAt = time.Now().Add(-30 * 24 * time.Hour)

	if s.Score(fresh) <= s.Score(stale) {
		t.Fatalf("fresh %v should outscore stale %v", s.Score(fresh), s.Score(stale))
	}
}

func TestHeuristicScorer_ConfidenceRaisesScore(t *testing.T) {
	s := NewHeuristicScorer()
	now := time.Now()

	low := s.Score(Signals{CreatedAt: now, Confidence: 0.1, HasConfidence: true})
	high := s.Score(Signals{CreatedAt: now, Confidence: 0.9, HasConfidence: true})
	if high <= low {
		t.Fatalf("high confidence %v should outscore low %v", high, low)
	}
}

func TestHeuristicScorer_MissingConfidenceIsNeutral(t *testing.T) {
	s := NewHeuristicScorer()
	now := time.Now()

	absent := s.Score(Signals{CreatedAt: now})
	zero := s.Score(Signals{CreatedAt: now, HasConfidence: true})
	if absent <= zero {
		t.Fatalf("absent confidence %v should outscore explicit zero %v", absent, zero)
	}
}

func TestHeuristicScorer_RichnessSaturates(t *testing.T) {
	s := NewHeuristicScorer()
	now := time.Now()

	small := s.Score(Signals{CreatedAt: now, VertexCount: 2, EdgeCount: 1})
	big := s.Score(Signals{CreatedAt: now, VertexCount: 15, EdgeCount: 14})
	huge := s.Score(Signals{CreatedAt: now, VertexCount: 100, EdgeCount: 99})

	if big <= small {
		t.Fatalf("richer path %v should outscore sparse %v", big, small)
	}
	if huge != big {
		t.Fatalf("richness should saturate at the cap: %v vs %v", huge, big)
	}
}

func TestHeuristicScorer_Relevance(t *testing.T) {
	s := NewHeuristicScorer()
	now := time.Now()

	unrelated := s.Score(Signals{
		CreatedAt:     now,
		Query:         "alpha",
		RecentQueries: []string{"x", "y"},
	})
	related := s.Score(Signals{
		CreatedAt:     now,
		Query:         "alpha",
		RecentQueries: []string{"Alpha cluster", "y"},
	})
	if related <= unrelated {
		t.Fatalf("related query %v should outscore unrelated %v", related, unrelated)
	}
}

func TestQueryWindow_DropsOldest(t *testing.T) {
	w := newQueryWindow(3)
	for _, q := range []string{"a", "b", "c", "d"} {
		w.record(q)
	}
	got := w.snapshot()
	if len(got) != 3 || got[0] != "b" || got[2] != "d" {
		t.Fatalf("snapshot() = %v", got)
	}

	w.record("")
	if len(w.snapshot()) != 3 {
		t.Fatal("empty queries should be ignored")
	}
}
