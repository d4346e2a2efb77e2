package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"gridarena.ai/internal/persistence/indexdb"
	"gridarena.ai/internal/transport/observer"
)

// Minimal Prometheus exposition format.
func writeMetrics(rw http.ResponseWriter, r *runner, obs *observer.Server, idx *indexdb.SQLiteIndex) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	writeRunnerMetrics(rw, r)

	fmt.Fprintf(rw, "# HELP gridarena_observer_subscribers Connected observer sessions.\n")
	fmt.Fprintf(rw, "# TYPE gridarena_observer_subscribers gauge\n")
	fmt.Fprintf(rw, "gridarena_observer_subscribers %d\n", obs.Subscribers())
	fmt.Fprintf(rw, "# HELP gridarena_observer_dropped_total Tick messages dropped for slow observers.\n")
	fmt.Fprintf(rw, "# TYPE gridarena_observer_dropped_total counter\n")
	fmt.Fprintf(rw, "gridarena_observer_dropped_total %d\n", obs.DropTotal())

	if idx == nil {
		return
	}
	st := idx.Stats()
	fmt.Fprintf(rw, "# HELP gridarena_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(rw, "# TYPE gridarena_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "gridarena_index_queue_depth %d\n", st.QueueDepth)
	fmt.Fprintf(rw, "# HELP gridarena_index_dropped_total Index writes dropped on a full queue.\n")
	fmt.Fprintf(rw, "# TYPE gridarena_index_dropped_total counter\n")
	fmt.Fprintf(rw, "gridarena_index_dropped_total{kind=%q} %d\n", "episode", st.DropEpisodeTotal)
	fmt.Fprintf(rw, "gridarena_index_dropped_total{kind=%q} %d\n", "tick", st.DropTickTotal)
	fmt.Fprintf(rw, "gridarena_index_dropped_total{kind=%q} %d\n", "summary", st.DropSummaryTotal)
	fmt.Fprintf(rw, "# HELP gridarena_index_write_fail_total Failed index transactions.\n")
	fmt.Fprintf(rw, "# TYPE gridarena_index_write_fail_total counter\n")
	fmt.Fprintf(rw, "gridarena_index_write_fail_total %d\n", st.WriteFailTotal)
}

func writeRunnerMetrics(w io.Writer, r *runner) {
	fmt.Fprintf(w, "# HELP gridarena_episodes_completed_total Finished episodes.\n")
	fmt.Fprintf(w, "# TYPE gridarena_episodes_completed_total counter\n")
	fmt.Fprintf(w, "gridarena_episodes_completed_total %d\n", r.completed.Load())
	fmt.Fprintf(w, "# HELP gridarena_episode_tick Tick of the running episode.\n")
	fmt.Fprintf(w, "# TYPE gridarena_episode_tick gauge\n")
	fmt.Fprintf(w, "gridarena_episode_tick %d\n", r.tick.Load())
	fmt.Fprintf(w, "# HELP gridarena_step_ms Last step duration in milliseconds.\n")
	fmt.Fprintf(w, "# TYPE gridarena_step_ms gauge\n")
	fmt.Fprintf(w, "gridarena_step_ms %.3f\n", float64(r.stepNanos.Load())/float64(time.Millisecond))
}
