package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/airtraffic-sim/core"
	"github.com/signalsfoundry/airtraffic-sim/internal/api"
	"github.com/signalsfoundry/airtraffic-sim/internal/logging"
	"github.com/signalsfoundry/airtraffic-sim/internal/observability"
	"github.com/signalsfoundry/airtraffic-sim/internal/store"
	"github.com/signalsfoundry/airtraffic-sim/internal/terrain"
	"github.com/signalsfoundry/airtraffic-sim/kb"
	"github.com/signalsfoundry/airtraffic-sim/model"
)

// Config holds the server's command-line settings.
type Config struct {
	ListenAddress string
	SimsDir       string
	AirportsPath  string
	TerrainPath   string
	SampleCount   int
	CacheSize     int
	Tracing       observability.TracingConfig
	// Registry defaults to the global Prometheus registry.
	Registry *prometheus.Registry
}

func main() {
	cfg := Config{Tracing: observability.TracingConfigFromEnv("simserver")}
	flag.StringVar(&cfg.ListenAddress, "addr", ":8080", "HTTP listen address")
	flag.StringVar(&cfg.SimsDir, "sims", "sims", "Directory holding stored simulation definitions")
	flag.StringVar(&cfg.AirportsPath, "airports", "", "Airport registry (OpenFlights .dat/.csv or JSON); built-in hubs when empty")
	flag.StringVar(&cfg.TerrainPath, "terrain", "", "Optional terrain grid (.json, .msgpack, optionally .zst)")
	flag.IntVar(&cfg.SampleCount, "samples", model.DefaultSampleCount, "Trajectory segments per flight")
	flag.IntVar(&cfg.CacheSize, "cache", 256, "Synthesized trajectory cache size; negative disables")
	cfg.Tracing.RegisterFlags(flag.CommandLine)
	flag.Parse()

	log := logging.NewFromEnv("simserver")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		log.Warn(ctx, "tracing disabled", logging.Err(err))
	}
	defer tracing.Shutdown(context.Background())

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}
	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves the HTTP API on lis until ctx is done.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	st, err := store.Open(cfg.SimsDir)
	if err != nil {
		return err
	}

	airports, err := loadAirports(cfg.AirportsPath)
	if err != nil {
		return err
	}
	index := kb.NewAirportIndex(airports)

	var reg prometheus.Registerer
	if cfg.Registry != nil {
		reg = cfg.Registry
	}
	metrics, err := observability.NewSimCollector(reg)
	if err != nil {
		return err
	}
	metrics.SetRegistryCounts(index.Len(), index.Skipped())
	log.Info(ctx, "airport registry loaded",
		logging.Int("airports", index.Len()),
		logging.Int("skipped", index.Skipped()),
	)

	assembler, err := core.NewAssembler(core.Options{
		SampleCount: cfg.SampleCount,
		CacheSize:   cfg.CacheSize,
		Logger:      log,
		Metrics:     metrics,
	})
	if err != nil {
		return err
	}

	var candidates []terrain.Candidate
	if cfg.TerrainPath != "" {
		candidates = append(candidates, terrain.GridFile(cfg.TerrainPath))
	}
	provider := terrain.Negotiate(ctx, log, candidates...)

	srv := &http.Server{
		Handler: api.New(api.Config{
			Store:     st,
			Index:     index,
			Assembler: assembler,
			Terrain:   provider,
			Metrics:   metrics,
			Logger:    log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting simulation server",
			logging.String("addr", lis.Addr().String()),
			logging.String("sims", st.Dir()),
		)
		errCh <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	log.Info(context.Background(), "shutting down simulation server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func loadAirports(path string) ([]model.Airport, error) {
	if path == "" {
		return kb.DefaultHubs(), nil
	}
	return kb.OpenAirportFile(path)
}
