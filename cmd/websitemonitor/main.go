// Command websitemonitor runs the multi-tenant website availability
// monitor: per-instance scheduled probing, persistence, and the escalating
// alert evaluator, behind a /metrics and /healthz HTTP mux.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sitewatch/sitewatch/internal/alert"
	"github.com/sitewatch/sitewatch/internal/config"
	"github.com/sitewatch/sitewatch/internal/health"
	"github.com/sitewatch/sitewatch/internal/metrics"
	"github.com/sitewatch/sitewatch/internal/persist"
	"github.com/sitewatch/sitewatch/internal/probe"
	"github.com/sitewatch/sitewatch/internal/protector"
	"github.com/sitewatch/sitewatch/internal/scheduler"
	"github.com/sitewatch/sitewatch/internal/storegate"
	"github.com/sitewatch/sitewatch/internal/store"
)

func main() {
	envFile := flag.String("env-file", ".env", "optional .env file to load before reading the environment")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Printf("load env file %s: %v", *envFile, err)
	}
	cfg := config.Load()

	s, err := store.Open(cfg.DataRoot)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer s.Close()

	if cfg.SeedFile != "" {
		if err := runSeed(cfg, s); err != nil {
			log.Printf("seed: %v", err)
		}
	}

	prot, err := protector.Open(cfg.DataRoot)
	if err != nil {
		log.Fatalf("open protector: %v", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewRegistry(reg)

	gate := storegate.New(s.WriteDB())
	p := persist.New(s, gate)
	p.Metrics = m

	engine := probe.NewEngine()
	mgr := scheduler.NewManager(s, p, engine, m)

	alertCfg := alert.Config{
		DownAfterSeconds:           cfg.DownAfterSeconds,
		RecoveredAfterSeconds:      cfg.RecoveredAfterSeconds,
		RepeatEverySecondsUnder24h: cfg.RepeatEverySecondsUnder24h,
		RepeatEverySeconds24hTo72h: cfg.RepeatEverySeconds24hTo72h,
		DailyAfterHours:            cfg.DailyAfterHours,
		DailyHourLocal:             cfg.DailyHourLocal,
		DailyMinuteLocal:           cfg.DailyMinuteLocal,
	}
	evaluator := alert.NewEvaluator(s, gate, mgr, prot, alertCfg, cfg.AlertTick(), m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.AutoStart(ctx, mgr); err != nil {
		log.Fatalf("auto-start schedulers: %v", err)
	}
	go evaluator.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", health.Handler(s))

	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		log.Printf("listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	cancel()
	stopAllWorkers(mgr)
}

func runSeed(cfg *config.Config, s *store.Store) error {
	doc, err := config.LoadSeedFile(cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("load seed file: %w", err)
	}
	return config.Seed(context.Background(), s, doc, cfg.SeedForce, cfg.SeedTimeout)
}

func stopAllWorkers(mgr *scheduler.Manager) {
	for _, w := range mgr.GetAll() {
		mgr.Stop(w.InstanceID)
	}
}
