package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-router/internal/blockchain/computebudget"
	"github.com/rovshanmuradov/solana-router/internal/blockchain/ledger"
	"github.com/rovshanmuradov/solana-router/internal/client"
	"github.com/rovshanmuradov/solana-router/internal/config"
	"github.com/rovshanmuradov/solana-router/internal/events"
	"github.com/rovshanmuradov/solana-router/internal/journal"
	"github.com/rovshanmuradov/solana-router/internal/logger"
	"github.com/rovshanmuradov/solana-router/internal/metrics"
	"github.com/rovshanmuradov/solana-router/internal/plan"
	"github.com/rovshanmuradov/solana-router/internal/simulator"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the simulator config file")
	planPath := flag.String("plan", "", "plan file, overrides plan_file from the config")
	flag.Parse()

	os.Exit(run(*configPath, *planPath))
}

func run(configPath, planPath string) int {
	if planPath != "" {
		os.Setenv(config.EnvPrefix+"_PLAN_FILE", planPath)
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := simulator.NewShutdownHandler(log.Logger, shutdownTimeout)
	shutdown.AddFunc("logger", log.Close)
	defer func() {
		if err := shutdown.Shutdown(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	report, p, err := simulate(ctx, cfg, log, shutdown)
	if err != nil {
		log.LogError("Simulation failed", err)
		return 1
	}

	fmt.Println(simulator.Render(report, p))
	if n := len(report.Unexpected()); n > 0 {
		log.Warn("Plan finished with unexpected outcomes", zap.Int("count", n))
		return 3
	}
	return 0
}

func simulate(ctx context.Context, cfg *config.Config, log *logger.Logger, shutdown *simulator.ShutdownHandler) (*simulator.Report, *plan.Plan, error) {
	defer log.TrackPerformance("simulate")()

	p, err := plan.NewManager(log.Logger).Load(cfg.PlanFile)
	if err != nil {
		return nil, nil, err
	}

	bus := events.NewBus(log.Logger, cfg.EventBuffer)
	collector := metrics.NewCollector()
	collector.Subscribe(bus)

	if cfg.MetricsAddr != "" {
		srv, err := metrics.Serve(cfg.MetricsAddr, collector, log.Logger)
		if err != nil {
			return nil, nil, fmt.Errorf("metrics server: %w", err)
		}
		log.Info("Serving metrics", zap.String("addr", srv.Addr()))
		shutdown.AddFunc("metrics", func() error {
			return srv.Shutdown(context.Background())
		})
	}

	if cfg.JournalFile != "" {
		rec, err := journal.NewRecorder(cfg.JournalFile, journal.DefaultFlushInterval, log.Logger)
		if err != nil {
			return nil, nil, err
		}
		rec.Subscribe(bus)
		shutdown.Add("journal", rec)
	}

	if cfg.ReportCSV != "" {
		csvReport, err := journal.NewCSVReport(cfg.ReportCSV)
		if err != nil {
			return nil, nil, err
		}
		bus.SubscribeMany(csvReport, events.RouteCompleted, events.RouteFailed)
		shutdown.Add("csv-report", csvReport)
	}

	// Шина закрывается раньше журналов, чтобы они получили все события.
	shutdown.AddFunc("event-bus", func() error {
		return bus.Shutdown(context.Background())
	})

	l := simulator.NewLedger(log.Logger, ledger.WithComputeUnitLimits(cfg.ComputeUnitLimit, cfg.MaxComputeUnitLimit))
	c := client.New(l, log.Logger,
		client.WithRetries(cfg.Retries, client.DefaultRetryDelay),
		client.WithComputeBudget(computebudget.ComputeBudgetConfig{Units: cfg.ComputeUnitLimit}),
	)
	rc := client.NewRouterClient(c)

	world, err := simulator.BuildWorld(ctx, p, l, rc)
	if err != nil {
		return nil, nil, fmt.Errorf("build world: %w", err)
	}

	report, err := simulator.NewRunner(world, rc, bus, log.Logger, cfg.Workers).Run(ctx)
	if err != nil {
		return nil, nil, err
	}
	return report, p, nil
}
