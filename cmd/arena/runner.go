package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync/atomic"
	"time"

	"gridarena.ai/internal/persistence/indexdb"
	persistlog "gridarena.ai/internal/persistence/log"
	"gridarena.ai/internal/sim/catalogs"
	"gridarena.ai/internal/sim/env"
	"gridarena.ai/internal/sim/tuning"
	"gridarena.ai/internal/transport/observer"
)

// tickSink receives every tick summary in step order.
type tickSink interface {
	WriteTick(env.TickSummary) error
}

type multiTickSink []tickSink

func (m multiTickSink) WriteTick(sum env.TickSummary) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.WriteTick(sum); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// runner drives episodes with uniformly random actions.
type runner struct {
	tune     tuning.Tuning
	cats     *catalogs.Catalogs
	dataDir  string
	seed     int64
	episodes int
	tickWait time.Duration

	idx    *indexdb.SQLiteIndex
	obs    *observer.Server
	logger *log.Logger

	completed atomic.Int64
	tick      atomic.Uint64
	stepNanos atomic.Int64
}

func (r *runner) Run(ctx context.Context) error {
	summaries := persistlog.NewSummaryLogger(r.dataDir)
	defer summaries.Close()

	for i := 0; r.episodes <= 0 || i < r.episodes; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		seed := r.seed + int64(i)
		sum, err := r.runEpisode(ctx, seed)
		if err != nil {
			return err
		}
		if err := summaries.WriteSummary(sum); err != nil {
			r.logger.Printf("summary log: %v", err)
		}
		r.idx.RecordSummary(sum)
		r.completed.Add(1)
		r.logger.Printf("episode %s done: ticks=%d rewards=%s", sum.EpisodeID, sum.Ticks, formatRewards(sum.Rewards))
	}
	return nil
}

func (r *runner) runEpisode(ctx context.Context, seed int64) (env.EpisodeSummary, error) {
	e, err := env.New(r.tune, r.cats, seed, r.logger)
	if err != nil {
		return env.EpisodeSummary{}, fmt.Errorf("new episode: %w", err)
	}
	r.idx.RecordEpisode(e.ID(), seed, r.tune)
	if r.obs != nil {
		r.obs.StartEpisode(e)
	}

	tickLog := persistlog.NewTickLogger(persistlog.EpisodeDir(r.dataDir, e.ID()))
	defer tickLog.Close()
	sink := multiTickSink{tickLog}
	if r.idx != nil {
		sink = append(sink, r.idx)
	}

	rng := rand.New(rand.NewSource(seed))
	for !e.Done() {
		if err := ctx.Err(); err != nil {
			return e.Summary(), err
		}
		start := time.Now()
		sum := e.Step(e.SampleActions(rng))
		r.stepNanos.Store(int64(time.Since(start)))
		r.tick.Store(sum.Tick)

		if err := sink.WriteTick(sum); err != nil {
			r.logger.Printf("tick log: %v", err)
		}
		if r.obs != nil {
			r.obs.Publish(e, sum)
		}

		if r.tickWait > 0 {
			if d := r.tickWait - time.Since(start); d > 0 {
				select {
				case <-ctx.Done():
					return e.Summary(), ctx.Err()
				case <-time.After(d):
				}
			}
		}
	}
	return e.Summary(), nil
}

func formatRewards(rs []float64) string {
	total := 0.0
	for _, v := range rs {
		total += v
	}
	return fmt.Sprintf("total=%.3f n=%d", total, len(rs))
}
