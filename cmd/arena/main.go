package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"gridarena.ai/internal/persistence/indexdb"
	"gridarena.ai/internal/sim/catalogs"
	"gridarena.ai/internal/sim/tuning"
	"gridarena.ai/internal/transport/observer"
)

func main() {
	var (
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		episodes   = flag.Int("episodes", 1, "episodes to run (0 runs until interrupted)")
		maxTicks   = flag.Int("ticks", 0, "override max_steps per episode (0 keeps tuning)")
		seed       = flag.Int64("seed", 1337, "seed of the first episode; later episodes add their index")
		addr       = flag.String("addr", "127.0.0.1:8080", "observer http listen address (empty to disable)")
		tickMS     = flag.Int("tick_ms", 0, "minimum wall time per tick in milliseconds (0 runs unpaced)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite episode index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[arena] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if *maxTicks > 0 {
		tune.MaxSteps = *maxTicks
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "arena.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs := observer.NewServer(log.New(os.Stdout, "[observer] ", log.LstdFlags|log.Lmicroseconds))
	r := &runner{
		tune:     tune,
		cats:     cats,
		dataDir:  *dataDir,
		seed:     *seed,
		episodes: *episodes,
		tickWait: time.Duration(*tickMS) * time.Millisecond,
		idx:      idx,
		obs:      obs,
		logger:   logger,
	}

	g, gctx := errgroup.WithContext(ctx)
	if a := strings.TrimSpace(*addr); a != "" {
		srv := &http.Server{
			Addr:              a,
			Handler:           newMux(obs, r, idx),
			ReadHeaderTimeout: 5 * time.Second,
		}
		ln, err := net.Listen("tcp", a)
		if err != nil {
			logger.Fatalf("listen %s: %v", a, err)
		}
		logger.Printf("observer listening on http://%s", ln.Addr())
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		})
	}
	g.Go(func() error {
		err := r.Run(gctx)
		// Episodes finished on their own; let the http server go too.
		stop()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("arena: %v", err)
	}
	logger.Printf("stopped after %d episodes", r.completed.Load())
}

func newMux(obs *observer.Server, r *runner, idx *indexdb.SQLiteIndex) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, _ *http.Request) {
		writeMetrics(rw, r, obs, idx)
	})
	mux.HandleFunc("/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/observer/ws", obs.WSHandler())
	return mux
}
