package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ndrandal/stocksim/internal/api"
	"github.com/ndrandal/stocksim/internal/archive"
	"github.com/ndrandal/stocksim/internal/company"
	"github.com/ndrandal/stocksim/internal/config"
	"github.com/ndrandal/stocksim/internal/engine"
	"github.com/ndrandal/stocksim/internal/feed"
	"github.com/ndrandal/stocksim/internal/news"
	"github.com/ndrandal/stocksim/internal/recorder"
	"github.com/ndrandal/stocksim/internal/save"
)

// simClock is the in-game clock the daemon advances one minute per wall
// tick. It stands in for the host game's time signal.
type simClock struct {
	mu  sync.RWMutex
	now time.Time
}

func (c *simClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *simClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *simClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("stock simulator starting")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	// PRNG
	rng := engine.NewRNG(cfg.Sim.Seed)
	log.Printf("PRNG seed: %d", cfg.Sim.Seed)

	// News + market
	newsgen := news.NewGenerator()
	market := engine.NewMarket(cfg.MarketConfig(), rng, newsgen)

	// Company roster
	dir := company.NewDirectory(company.DemoCompanies())
	for _, c := range dir.Companies() {
		if _, err := market.InitStock(c); err != nil {
			log.Fatalf("list %q: %v", c.Name, err)
		}
	}

	clock := &simClock{}
	clock.Set(time.Now())
	market.PostStocksInitialization(engine.InitCompaniesPopulated, clock.Now())
	log.Printf("listed %d stocks", len(market.Stocks()))

	// Recorder (optional)
	rec, err := recorder.Open(ctx, cfg.Recorder.URI)
	if err != nil {
		log.Fatalf("recorder: %v", err)
	}
	defer rec.Close(context.Background())

	// Feed + news fan-out
	mgr := feed.NewManager(cfg.Sim.SendBuffer)

	// stepMu serializes clock advancement against saves, so a save never
	// interleaves with a tick and captures mismatched market/RNG state.
	var stepMu sync.Mutex

	if dir := filepath.Dir(cfg.Save.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("create save dir %s: %v", dir, err)
		}
	}

	// Restore previous session if a save exists; a missing file is a
	// fresh start.
	if _, err := os.Stat(cfg.Save.Path); err == nil {
		gameDate, err := save.Read(cfg.Save.Path, market, rng)
		if err != nil {
			log.Fatalf("load save %s: %v", cfg.Save.Path, err)
		}
		log.Printf("loaded save %s (game date %s, %d stocks)",
			cfg.Save.Path, gameDate.Format(time.DateOnly), len(market.Stocks()))
		clock.Set(gameDate)
		catchUp(market, newsgen, clock, time.Now())
	} else if !os.IsNotExist(err) {
		log.Fatalf("stat save %s: %v", cfg.Save.Path, err)
	}

	doSave := func() {
		stepMu.Lock()
		defer stepMu.Unlock()
		now := clock.Now()
		if err := save.Write(cfg.Save.Path, market, rng, now); err != nil {
			log.Printf("save: %v", err)
			return
		}
		log.Printf("saved %s", cfg.Save.Path)
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer saveCancel()
		if err := rec.RecordSave(saveCtx, cfg.Save.Path, time.Now(), len(market.Stocks())); err != nil {
			log.Printf("record save: %v", err)
		}
	}

	// Autosave + archive cron
	archiver := archive.New(cfg.Save.Path, cfg.Save.ArchiveDir, cfg.Save.ArchiveKeep)
	sched := cron.New(cron.WithSeconds())
	if _, err := sched.AddFunc(cfg.Save.AutosaveCron, doSave); err != nil {
		log.Fatalf("autosave cron %q: %v", cfg.Save.AutosaveCron, err)
	}
	if _, err := sched.AddFunc(cfg.Save.ArchiveCron, func() {
		if err := archiver.Cycle(); err != nil {
			log.Printf("archive: %v", err)
		}
	}); err != nil {
		log.Fatalf("archive cron %q: %v", cfg.Save.ArchiveCron, err)
	}
	sched.Start()
	defer sched.Stop()

	// HTTP/WebSocket server
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", feed.Handler(mgr))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","clients":%d,"stocks":%d}`,
			mgr.ClientCount(), len(market.Stocks()))
	})
	api.NewServer(market, newsgen, mgr, clock).Register(mux)

	srv := &http.Server{Addr: cfg.Addr(), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()
	go func() {
		log.Printf("feed listening on ws://%s/feed", cfg.Addr())
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	runClock(ctx, cfg.TickInterval(), market, newsgen, rec, mgr, clock, &stepMu)

	// Final save on the way out.
	doSave()
	log.Println("stock simulator stopped")
}

// runClock advances the in-game clock one minute per wall tick and fires
// the minute/hour/day signals. Blocks until ctx is cancelled.
func runClock(
	ctx context.Context,
	interval time.Duration,
	market *engine.Market,
	newsgen *news.Generator,
	rec recorder.Recorder,
	mgr *feed.Manager,
	clock *simClock,
	stepMu *sync.Mutex,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stepMu.Lock()
			prev := clock.Now()
			now := clock.Advance(time.Minute)

			updates := market.OnMinuteChanged(now)
			mgr.BroadcastPrices(now, updates)

			if now.Hour() != prev.Hour() {
				mgr.BroadcastHeadlines(now, newsgen.OnHourChanged(now))
			}
			if !engine.Day(now).Equal(engine.Day(prev)) {
				closes := market.OnDayChanged(prev)
				mgr.BroadcastCloses(now, closes)

				recCtx, recCancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := rec.RecordDaily(recCtx, prev, closes); err != nil {
					log.Printf("record daily: %v", err)
				}
				recCancel()
			}
			stepMu.Unlock()
		}
	}
}

// catchUp fast-forwards the market from the loaded game date to the
// present in simulation mode: prices move and days roll over, but news
// and the feed stay quiet.
func catchUp(market *engine.Market, newsgen *news.Generator, clock *simClock, until time.Time) {
	start := clock.Now()
	if !start.Before(until) {
		return
	}

	log.Printf("catching up %s of offline time...", until.Sub(start).Truncate(time.Minute))
	market.SetSimulation(true)

	prev := start
	for now := start.Add(time.Minute); !now.After(until); now = now.Add(time.Minute) {
		market.OnMinuteChanged(now)
		if now.Hour() != prev.Hour() {
			newsgen.OnHourChanged(now) // drained and discarded
		}
		if !engine.Day(now).Equal(engine.Day(prev)) {
			market.OnDayChanged(prev)
		}
		prev = now
	}

	market.SetSimulation(false)
	clock.Set(until)
	log.Printf("catch-up complete, resuming at %s", until.Format(time.RFC3339))
}
