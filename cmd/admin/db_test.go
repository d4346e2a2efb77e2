package main

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"gridarena.ai/internal/persistence/indexdb"
	"gridarena.ai/internal/sim/env"
	"gridarena.ai/internal/sim/tuning"
)

func seedIndex(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arena.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	tune := tuning.Defaults()
	for _, ep := range []string{"ep1", "ep2"} {
		idx.RecordEpisode(ep, 7, tune)
		_ = idx.WriteTick(env.TickSummary{EpisodeID: ep, Tick: 1, Digest: "d1", Rewards: []float64{1, 1}, Success: []bool{true, true}})
		idx.RecordSummary(env.EpisodeSummary{
			EpisodeID: ep,
			Ticks:     1,
			Rewards:   []float64{1, 1},
			Agents: []env.AgentStats{
				{Agent: 0, Group: "red", Reward: 1, Values: map[string]float64{"action.noop.success": 1}},
				{Agent: 1, Group: "blue", Reward: 3, Values: map[string]float64{}},
			},
		})
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func openDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestQueryEpisodes(t *testing.T) {
	db := openDB(t, seedIndex(t))
	rows, err := queryEpisodes(db, 10)
	if err != nil {
		t.Fatalf("queryEpisodes: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d want 2", len(rows))
	}
	for _, r := range rows {
		if r.Ticks == nil || *r.Ticks != 1 || r.TotalReward == nil || *r.TotalReward != 2 {
			t.Fatalf("episode row=%+v", r)
		}
	}
	if _, err := latestEpisode(db); err != nil {
		t.Fatalf("latestEpisode: %v", err)
	}
}

func TestQueryTicksAndAgents(t *testing.T) {
	db := openDB(t, seedIndex(t))
	ticks, err := queryTicks(db, "ep1", 10)
	if err != nil {
		t.Fatalf("queryTicks: %v", err)
	}
	if len(ticks) != 1 || ticks[0].Digest != "d1" || ticks[0].Successes != 2 {
		t.Fatalf("ticks=%+v", ticks)
	}
	agents, err := queryAgents(db, "ep2")
	if err != nil {
		t.Fatalf("queryAgents: %v", err)
	}
	if len(agents) != 2 || agents[0].Stats["action.noop.success"] != 1 {
		t.Fatalf("agents=%+v", agents)
	}
}

func TestQueryGroups(t *testing.T) {
	db := openDB(t, seedIndex(t))
	groups, err := queryGroups(db)
	if err != nil {
		t.Fatalf("queryGroups: %v", err)
	}
	if len(groups) != 2 || groups[0].Group != "blue" || groups[0].Reward != 6 || groups[0].MeanPer != 3 {
		t.Fatalf("groups=%+v", groups)
	}
	if groups[1].Episodes != 2 {
		t.Fatalf("red episodes=%d want 2", groups[1].Episodes)
	}
}

func TestListEpisodes(t *testing.T) {
	data := t.TempDir()
	for _, id := range []string{"b", "a"} {
		if err := os.MkdirAll(filepath.Join(data, "episodes", id, "events"), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	ids, err := listEpisodes(data)
	if err != nil {
		t.Fatalf("listEpisodes: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" {
		t.Fatalf("ids=%v", ids)
	}
}
