package indexdb

import (
	"testing"

	"gridarena.ai/internal/sim/env"
	"gridarena.ai/internal/sim/tuning"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: env.TickSummary{Tick: 1}}

	_ = s.WriteTick(env.TickSummary{Tick: 2})
	s.RecordEpisode("ep", 1, tuning.Defaults())
	s.RecordSummary(env.EpisodeSummary{EpisodeID: "ep"})

	st := s.Stats()
	if st.DropTickTotal != 1 {
		t.Fatalf("DropTickTotal=%d want=1", st.DropTickTotal)
	}
	if st.DropEpisodeTotal != 1 {
		t.Fatalf("DropEpisodeTotal=%d want=1", st.DropEpisodeTotal)
	}
	if st.DropSummaryTotal != 1 {
		t.Fatalf("DropSummaryTotal=%d want=1", st.DropSummaryTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_NilIsNoop(t *testing.T) {
	var s *SQLiteIndex
	if err := s.WriteTick(env.TickSummary{}); err != nil {
		t.Fatalf("WriteTick on nil: %v", err)
	}
	s.RecordEpisode("ep", 1, tuning.Defaults())
	s.RecordSummary(env.EpisodeSummary{})
	if st := s.Stats(); st.QueueCapacity != 0 {
		t.Fatalf("nil stats=%+v", st)
	}
}
