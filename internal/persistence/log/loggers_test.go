package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zstd"

	"gridarena.ai/internal/sim/env"
)

func readJSONL(t *testing.T, dir string) []json.RawMessage {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join(dir, "*.jsonl.zst"))
	if err != nil || len(paths) == 0 {
		t.Fatalf("glob %s: paths=%v err=%v", dir, paths, err)
	}
	sort.Strings(paths)

	var out []json.RawMessage
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		dec, err := zstd.NewReader(f)
		if err != nil {
			t.Fatalf("zstd reader: %v", err)
		}
		sc := bufio.NewScanner(dec)
		for sc.Scan() {
			out = append(out, append(json.RawMessage(nil), sc.Bytes()...))
		}
		err = sc.Err()
		dec.Close()
		_ = f.Close()
		if err != nil {
			t.Fatalf("scan %s: %v", p, err)
		}
	}
	return out
}

func TestTickLogger_WritesCompressedJSONL(t *testing.T) {
	dir := EpisodeDir(t.TempDir(), "ep1")
	l := NewTickLogger(dir)
	for i := uint64(1); i <= 3; i++ {
		err := l.WriteTick(env.TickSummary{
			EpisodeID:    "ep1",
			Tick:         i,
			Rewards:      []float64{0, 1.5},
			Success:      []bool{true, false},
			ActionCounts: map[string]int{"noop": 2},
		})
		if err != nil {
			t.Fatalf("write tick %d: %v", i, err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readJSONL(t, filepath.Join(dir, "events"))
	if len(lines) != 3 {
		t.Fatalf("lines=%d want 3", len(lines))
	}
	var got env.TickSummary
	if err := json.Unmarshal(lines[2], &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Tick != 3 || got.Rewards[1] != 1.5 || got.ActionCounts["noop"] != 2 {
		t.Fatalf("entry=%+v", got)
	}
}

func TestSummaryLogger_WritesEntry(t *testing.T) {
	data := t.TempDir()
	l := NewSummaryLogger(data)
	if err := l.WriteSummary(env.EpisodeSummary{EpisodeID: "ep2", Seed: 5, Ticks: 10}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	lines := readJSONL(t, filepath.Join(data, "summaries"))
	var got env.EpisodeSummary
	if err := json.Unmarshal(lines[0], &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.EpisodeID != "ep2" || got.Ticks != 10 || got.Seed != 5 {
		t.Fatalf("summary=%+v", got)
	}
}

func TestSegmentWriter_CloseWithoutWrite(t *testing.T) {
	dir := t.TempDir()
	w := NewSegmentWriter(dir, "x", 0)
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if paths, _ := filepath.Glob(filepath.Join(dir, "*")); len(paths) != 0 {
		t.Fatalf("files created without a write: %v", paths)
	}
}

func TestSegmentWriter_RollsOverAndContinuesNumbering(t *testing.T) {
	dir := t.TempDir()
	w := NewSegmentWriter(dir, "events", 2)
	for i := 1; i <= 5; i++ {
		if err := w.Write(map[string]int{"n": i}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	paths, _ := filepath.Glob(filepath.Join(dir, "events-*.jsonl.zst"))
	if len(paths) != 3 {
		t.Fatalf("segments=%v want 3", paths)
	}

	// A second writer on the same dir must not clobber existing segments.
	w2 := NewSegmentWriter(dir, "events", 2)
	if err := w2.Write(map[string]int{"n": 6}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w2.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "events-000004.jsonl.zst")); err != nil {
		t.Fatalf("fourth segment: %v", err)
	}

	lines := readJSONL(t, dir)
	if len(lines) != 6 {
		t.Fatalf("lines=%d want 6", len(lines))
	}
	for i, raw := range lines {
		var v map[string]int
		if err := json.Unmarshal(raw, &v); err != nil || v["n"] != i+1 {
			t.Fatalf("line %d=%s err=%v", i, raw, err)
		}
	}
}
