// Command memsim drives a trace file through one of the three dispatcher
// variants, printing the stats and completion counts once the run ends and
// persisting epoch and final stats JSON on exit (§6).
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	memsim "github.com/rcolburn/memsim"
	"github.com/rcolburn/memsim/internal/logging"
	"github.com/rcolburn/memsim/internal/trace"
	"github.com/rcolburn/memsim/testctrl"
)

func main() {
	var (
		variant     = flag.String("variant", "jedec", "dispatcher variant: jedec, hmc, or ideal")
		tracePath   = flag.String("trace", "", "path to a trace file (required)")
		channels    = flag.Int("channels", 0, "JEDEC channel count and HMC link count override; 0 keeps the config defaults")
		ctrlLatency = flag.Uint64("ctrl_latency", 50, "fake controller fixed latency, in cycles")
		ctrlDepth   = flag.Int("ctrl_depth", 16, "fake controller admission capacity")
		vaults      = flag.Int("vaults", 8, "HMC vault count (ignored for jedec/ideal)")
		verbose     = flag.Bool("v", false, "verbose logging")
		httpAddr    = flag.String("http", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
		maxTicks    = flag.Uint64("max_ticks", 10_000_000, "safety bound on ticks driven after the trace is exhausted")
	)
	flag.Parse()

	if *tracePath == "" {
		log.Fatal("memsim: -trace is required")
	}

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	cfg := memsim.DefaultConfig()
	if *channels > 0 {
		cfg.Channels = *channels
		cfg.NumLinks = *channels
	}

	var obs memsim.Observer
	metrics := memsim.NewMetrics()
	obs = metrics
	if *httpAddr != "" {
		reg := prometheus.NewRegistry()
		prom := memsim.NewPrometheusObserver(reg)
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			logger.Info("serving prometheus metrics", "addr", *httpAddr)
			if err := http.ListenAndServe(*httpAddr, nil); err != nil {
				logger.Error("metrics server exited", "error", err)
			}
		}()
		obs = multiObserver{metrics, prom}
	}

	d, err := buildDispatcher(*variant, cfg, *vaults, *ctrlDepth, *ctrlLatency, logger, obs)
	if err != nil {
		log.Fatalf("memsim: %v", err)
	}

	var reads, writes int
	d.RegisterCallbacks(
		func(addr uint64) { reads++ },
		func(addr uint64) { writes++ },
	)

	f, err := os.Open(*tracePath)
	if err != nil {
		log.Fatalf("memsim: open trace: %v", err)
	}
	defer f.Close()

	cd := memsim.NewClockDriver(d, metrics, cfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, persisting stats")
		cd.Close()
		os.Exit(0)
	}()

	pending := 0
	err = trace.Scan(f, func(t memsim.Transaction) error {
		for !d.WillAcceptTransaction(t) {
			if err := cd.Tick(); err != nil {
				return err
			}
		}
		if _, err := d.AddTransaction(t); err != nil {
			return err
		}
		pending++
		return cd.Tick()
	})
	if err != nil {
		log.Fatalf("memsim: replay trace: %v", err)
	}

	for i := uint64(0); i < *maxTicks && reads+writes < pending; i++ {
		if err := cd.Tick(); err != nil {
			log.Fatalf("memsim: %v", err)
		}
	}

	fmt.Printf("%s\n", d.PrintStats())
	fmt.Printf("reads=%d writes=%d clk=%d\n", reads, writes, cd.Clk())

	if err := cd.Close(); err != nil {
		log.Fatalf("memsim: persist stats: %v", err)
	}
}

func buildDispatcher(variant string, cfg memsim.Config, vaults, capacity int, latency uint64, logger memsim.Logger, obs memsim.Observer) (*memsim.Dispatcher, error) {
	switch variant {
	case "jedec":
		ctrls := make([]memsim.Controller, cfg.Channels)
		for i := range ctrls {
			ctrls[i] = testctrl.New(capacity, latency)
		}
		return memsim.NewJEDECDispatcher(cfg, ctrls, logger, obs)
	case "hmc":
		ctrls := make([]memsim.Controller, vaults)
		for i := range ctrls {
			ctrls[i] = testctrl.New(capacity, latency)
		}
		return memsim.NewHMCDispatcher(cfg, ctrls, logger, obs)
	case "ideal":
		return memsim.NewIdealDispatcher(cfg, logger, obs)
	default:
		return nil, fmt.Errorf("unknown variant %q", variant)
	}
}

// multiObserver fans every observation out to both the in-process Metrics
// snapshot (for the persisted JSON stats file) and the Prometheus
// collectors (for /metrics).
type multiObserver struct {
	a, b memsim.Observer
}

func (m multiObserver) ObserveCompletion(kind memsim.CompletionKind, latencyCycles uint64) {
	m.a.ObserveCompletion(kind, latencyCycles)
	m.b.ObserveCompletion(kind, latencyCycles)
}

func (m multiObserver) ObserveCiMComplete(op string, latencyCycles uint64) {
	m.a.ObserveCiMComplete(op, latencyCycles)
	m.b.ObserveCiMComplete(op, latencyCycles)
}

func (m multiObserver) ObserveQueueDepth(stage string, depth int) {
	m.a.ObserveQueueDepth(stage, depth)
	m.b.ObserveQueueDepth(stage, depth)
}

func (m multiObserver) ObserveAge(stage string, age int) {
	m.a.ObserveAge(stage, age)
	m.b.ObserveAge(stage, age)
}
