package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"gridarena.ai/internal/sim/env"
)

// SegmentWriter appends JSON lines to zstd-compressed files named
// <prefix>-NNNNNN.jsonl.zst, starting a new segment every maxLines entries.
// Segment numbers continue after the highest one already in dir, so names
// sort in write order.
type SegmentWriter struct {
	dir      string
	prefix   string
	maxLines int

	mu    sync.Mutex
	seg   int
	lines int
	f     *os.File
	enc   *zstd.Encoder
	w     *bufio.Writer
}

func NewSegmentWriter(dir, prefix string, maxLines int) *SegmentWriter {
	if maxLines <= 0 {
		maxLines = 10000
	}
	return &SegmentWriter{dir: dir, prefix: prefix, maxLines: maxLines}
}

func (w *SegmentWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *SegmentWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil || w.lines >= w.maxLines {
		if err := w.nextSegmentLocked(); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.lines++
	return w.w.Flush()
}

func (w *SegmentWriter) nextSegmentLocked() error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if w.seg == 0 {
		if err := os.MkdirAll(w.dir, 0o755); err != nil {
			return err
		}
		last, err := w.lastSegment()
		if err != nil {
			return err
		}
		w.seg = last
	}
	w.seg++

	f, err := os.OpenFile(w.segmentPath(w.seg), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.lines = 0
	return nil
}

// lastSegment is the highest segment number present in dir, 0 if none.
func (w *SegmentWriter) lastSegment() (int, error) {
	paths, err := filepath.Glob(filepath.Join(w.dir, w.prefix+"-*.jsonl.zst"))
	if err != nil {
		return 0, err
	}
	last := 0
	for _, p := range paths {
		num := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), w.prefix+"-"), ".jsonl.zst")
		if n, err := strconv.Atoi(num); err == nil && n > last {
			last = n
		}
	}
	return last, nil
}

func (w *SegmentWriter) closeLocked() error {
	var err error
	if w.w != nil {
		err = w.w.Flush()
	}
	if w.enc != nil {
		if cerr := w.enc.Close(); err == nil {
			err = cerr
		}
		w.enc = nil
	}
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
		w.f = nil
	}
	w.w = nil
	return err
}

func (w *SegmentWriter) segmentPath(seg int) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%06d.jsonl.zst", w.prefix, seg))
}

// TickLogger writes one JSONL entry per tick (compressed).
type TickLogger struct{ w *SegmentWriter }

func NewTickLogger(episodeDir string) *TickLogger {
	return &TickLogger{w: NewSegmentWriter(filepath.Join(episodeDir, "events"), "events", 10000)}
}

func (l *TickLogger) WriteTick(v env.TickSummary) error { return l.w.Write(v) }
func (l *TickLogger) Close() error                      { return l.w.Close() }

// SummaryLogger writes one entry per finished episode (compressed).
type SummaryLogger struct{ w *SegmentWriter }

func NewSummaryLogger(dataDir string) *SummaryLogger {
	return &SummaryLogger{w: NewSegmentWriter(filepath.Join(dataDir, "summaries"), "summaries", 1000)}
}

func (l *SummaryLogger) WriteSummary(v env.EpisodeSummary) error { return l.w.Write(v) }
func (l *SummaryLogger) Close() error                            { return l.w.Close() }

// EpisodeDir is where one episode's tick log lives under dataDir.
func EpisodeDir(dataDir, episodeID string) string {
	return filepath.Join(dataDir, "episodes", episodeID)
}
