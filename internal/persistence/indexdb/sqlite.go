package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"gridarena.ai/internal/sim/catalogs"
	"gridarena.ai/internal/sim/env"
	"gridarena.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable secondary index over episodes. Writes are
// queued to a single writer goroutine and dropped when the queue is full;
// the JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropEpisodeTotal atomic.Uint64
	dropTickTotal    atomic.Uint64
	dropSummaryTotal atomic.Uint64
	writeFailTotal   atomic.Uint64
}

type Stats struct {
	QueueDepth       int
	QueueCapacity    int
	DropEpisodeTotal uint64
	DropTickTotal    uint64
	DropSummaryTotal uint64
	WriteFailTotal   uint64
}

type reqKind int

const (
	reqEpisode reqKind = iota + 1
	reqTick
	reqSummary
)

type req struct {
	kind reqKind

	episode episodeRow
	tick    env.TickSummary
	summary env.EpisodeSummary
}

type episodeRow struct {
	ID        string
	Seed      int64
	Agents    int
	MaxSteps  int
	Width     int
	Height    int
	StartedAt string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			agents INTEGER NOT NULL,
			max_steps INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			ticks INTEGER,
			total_reward REAL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			episode_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			frozen INTEGER NOT NULL,
			successes INTEGER NOT NULL,
			reward_sum REAL NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (episode_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS agent_stats (
			episode_id TEXT NOT NULL,
			agent INTEGER NOT NULL,
			group_name TEXT NOT NULL,
			reward REAL NOT NULL,
			stats_json TEXT NOT NULL,
			PRIMARY KEY (episode_id, agent)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_agent_stats_group ON agent_stats(group_name, episode_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropEpisodeTotal: s.dropEpisodeTotal.Load(),
		DropTickTotal:    s.dropTickTotal.Load(),
		DropSummaryTotal: s.dropSummaryTotal.Load(),
		WriteFailTotal:   s.writeFailTotal.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

// RecordEpisode registers an episode before its first tick.
func (s *SQLiteIndex) RecordEpisode(id string, seed int64, tune tuning.Tuning) {
	if s == nil || s.closed.Load() {
		return
	}
	s.enqueue(req{kind: reqEpisode, episode: episodeRow{
		ID:        id,
		Seed:      seed,
		Agents:    tune.Agents(),
		MaxSteps:  tune.MaxSteps,
		Width:     tune.Width,
		Height:    tune.Height,
		StartedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}}, &s.dropEpisodeTotal)
}

func (s *SQLiteIndex) WriteTick(entry env.TickSummary) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqTick, tick: entry}, &s.dropTickTotal)
	return nil
}

// RecordSummary closes out an episode and stores per-agent stats.
func (s *SQLiteIndex) RecordSummary(sum env.EpisodeSummary) {
	if s == nil || s.closed.Load() {
		return
	}
	s.enqueue(req{kind: reqSummary, summary: sum}, &s.dropSummaryTotal)
}

// UpsertCatalogs stores the item catalog and the applied tuning so episodes
// can be matched to the configuration that produced them.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "items.json")); err == nil {
			rows = append(rows, kv{name: "items_defs", digest: cats.Items.DefsDigest, json: b})
		}
	}
	if b, _ := json.Marshal(cats.Items.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "items_palette", digest: cats.Items.PaletteDigest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertEpisode, _ := s.db.Prepare(`INSERT OR REPLACE INTO episodes(id,seed,agents,max_steps,width,height,started_at) VALUES(?,?,?,?,?,?,?)`)
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(episode_id,tick,digest,frozen,successes,reward_sum,raw_json) VALUES(?,?,?,?,?,?,?)`)
	endEpisode, _ := s.db.Prepare(`UPDATE episodes SET ended_at=?, ticks=?, total_reward=? WHERE id=?`)
	insertAgent, _ := s.db.Prepare(`INSERT OR REPLACE INTO agent_stats(episode_id,agent,group_name,reward,stats_json) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertEpisode, insertTick, endEpisode, insertAgent} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeFailTotal.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		s.writeFailTotal.Add(1)
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqEpisode:
			e := r.episode
			exec(insertEpisode, e.ID, e.Seed, e.Agents, e.MaxSteps, e.Width, e.Height, e.StartedAt)

		case reqTick:
			t := r.tick
			b, _ := json.Marshal(t)
			successes := 0
			for _, ok := range t.Success {
				if ok {
					successes++
				}
			}
			sum := 0.0
			for _, v := range t.Rewards {
				sum += v
			}
			exec(insertTick, t.EpisodeID, int64(t.Tick), t.Digest, t.Frozen, successes, sum, string(b))

		case reqSummary:
			sm := r.summary
			total := 0.0
			for _, v := range sm.Rewards {
				total += v
			}
			if !exec(endEpisode, time.Now().UTC().Format(time.RFC3339Nano), int64(sm.Ticks), total, sm.EpisodeID) {
				continue
			}
			for _, a := range sm.Agents {
				b, _ := json.Marshal(a.Values)
				if !exec(insertAgent, sm.EpisodeID, a.Agent, a.Group, a.Reward, string(b)) {
					break
				}
			}
			// Summaries mark an episode boundary; make it visible right away.
			commit()
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
