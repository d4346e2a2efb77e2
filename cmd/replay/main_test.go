package main

import (
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	persistlog "gridarena.ai/internal/persistence/log"
	"gridarena.ai/internal/sim/catalogs"
	"gridarena.ai/internal/sim/env"
	"gridarena.ai/internal/sim/tuning"
)

func loadConfigs(t *testing.T) (*catalogs.Catalogs, tuning.Tuning) {
	t.Helper()
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	tune, err := tuning.Load("../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load tuning: %v", err)
	}
	return cats, tune
}

// record runs an episode and logs every tick, optionally corrupting one.
func record(t *testing.T, seed int64, ticks int, corrupt uint64) string {
	t.Helper()
	cats, tune := loadConfigs(t)
	e, err := env.New(tune, cats, seed, nil)
	if err != nil {
		t.Fatalf("env: %v", err)
	}
	dir := t.TempDir()
	l := persistlog.NewTickLogger(dir)
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < ticks; i++ {
		sum := e.Step(e.SampleActions(rng))
		if sum.Tick == corrupt {
			sum.Digest = "bad"
		}
		if err := l.WriteTick(sum); err != nil {
			t.Fatalf("write tick: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return filepath.Join(dir, "events")
}

func replayDir(t *testing.T, dir string, seed int64) (uint64, error) {
	t.Helper()
	cats, tune := loadConfigs(t)
	e, err := env.New(tune, cats, seed, nil)
	if err != nil {
		t.Fatalf("env: %v", err)
	}
	files, err := listEventFiles(dir)
	if err != nil || len(files) == 0 {
		t.Fatalf("list events: files=%v err=%v", files, err)
	}
	var checked uint64
	for _, f := range files {
		if err := replayFile(e, f, 0, &checked); err != nil {
			return checked, err
		}
	}
	return checked, nil
}

func TestReplay_MatchesRecordedDigests(t *testing.T) {
	dir := record(t, 9, 60, 0)
	checked, err := replayDir(t, dir, 9)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if checked != 60 {
		t.Fatalf("checked=%d want 60", checked)
	}
}

func TestReplay_DetectsDigestMismatch(t *testing.T) {
	dir := record(t, 9, 20, 7)
	_, err := replayDir(t, dir, 9)
	if err == nil || !strings.Contains(err.Error(), "digest mismatch at tick 7") {
		t.Fatalf("err=%v want digest mismatch at tick 7", err)
	}
}

func TestReplay_WrongSeedDiverges(t *testing.T) {
	dir := record(t, 9, 5, 0)
	if _, err := replayDir(t, dir, 10); err == nil {
		t.Fatalf("expected mismatch when replaying with another seed")
	}
}
