package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/signalsfoundry/airtraffic-sim/core"
	"github.com/signalsfoundry/airtraffic-sim/internal/logging"
	"github.com/signalsfoundry/airtraffic-sim/internal/observability"
	"github.com/signalsfoundry/airtraffic-sim/internal/store"
	"github.com/signalsfoundry/airtraffic-sim/internal/terrain"
	"github.com/signalsfoundry/airtraffic-sim/kb"
	"github.com/signalsfoundry/airtraffic-sim/model"
	"github.com/signalsfoundry/airtraffic-sim/timectrl"
)

const tracerName = "github.com/signalsfoundry/airtraffic-sim/cmd/simulator"

// Config holds the simulator's command-line settings.
type Config struct {
	SimPath      string
	AirportsPath string
	TerrainPath  string
	Duration     time.Duration
	Tick         time.Duration
	Multiplier   float64
	Accelerated  bool
	MetricsAddr  string
	Tracing      observability.TracingConfig
	Registry     *prometheus.Registry
}

func main() {
	cfg := Config{Tracing: observability.TracingConfigFromEnv("simulator")}
	flag.StringVar(&cfg.SimPath, "sim", "", "Simulation definition (.json or .json.zst); built-in template when empty")
	flag.StringVar(&cfg.AirportsPath, "airports", "", "Airport registry (OpenFlights .dat/.csv or JSON); built-in hubs when empty")
	flag.StringVar(&cfg.TerrainPath, "terrain", "", "Optional terrain grid (.json, .msgpack, optionally .zst)")
	flag.DurationVar(&cfg.Duration, "duration", 0, "Simulated time to play; the whole window when zero")
	flag.DurationVar(&cfg.Tick, "tick", 10*time.Second, "Simulated time per tick")
	flag.Float64Var(&cfg.Multiplier, "multiplier", timectrl.DefaultMultiplier, "Simulated seconds per wall-clock second in real-time mode")
	flag.BoolVar(&cfg.Accelerated, "accelerated", true, "Run as fast as possible instead of pacing against the wall clock")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics; disabled when empty")
	cfg.Tracing.RegisterFlags(flag.CommandLine)
	flag.Parse()

	log := logging.NewFromEnv("simulator")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, log, os.Stdout); err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
}

// run assembles the configured simulation and plays it back, writing one
// line per airborne aircraft per tick to out.
func run(ctx context.Context, cfg Config, log logging.Logger, out io.Writer) error {
	simCfg, err := loadSimulation(cfg.SimPath)
	if err != nil {
		return err
	}

	tracing, err := observability.InitTracing(ctx, cfg.Tracing, log, observability.SimulationAttributes(simCfg)...)
	if err != nil {
		return err
	}
	defer tracing.Shutdown(context.Background())
	ctx, span := otel.Tracer(tracerName).Start(ctx, "simulator.Run")
	defer span.End()

	airports := kb.DefaultHubs()
	if cfg.AirportsPath != "" {
		if airports, err = kb.OpenAirportFile(cfg.AirportsPath); err != nil {
			return err
		}
	}
	index := kb.NewAirportIndex(airports)

	var reg prometheus.Registerer
	if cfg.Registry != nil {
		reg = cfg.Registry
	}
	simMetrics, err := observability.NewSimCollector(reg)
	if err != nil {
		return err
	}
	playbackMetrics, err := observability.NewPlaybackCollector(reg)
	if err != nil {
		return err
	}
	simMetrics.SetRegistryCounts(index.Len(), index.Skipped())
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, playbackMetrics.Gatherer(), log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	assembler, err := core.NewAssembler(core.Options{Logger: log, Metrics: simMetrics})
	if err != nil {
		return err
	}
	report, err := assembler.Assemble(ctx, simCfg, index)
	if err != nil {
		return err
	}
	for _, f := range report.Flights {
		if !f.OK() {
			log.Warn(ctx, "flight skipped", logging.String("flight_id", f.ID), logging.String("error", f.Error))
		}
	}

	var candidates []terrain.Candidate
	if cfg.TerrainPath != "" {
		candidates = append(candidates, terrain.GridFile(cfg.TerrainPath))
	}

	mode := timectrl.RealTime
	if cfg.Accelerated {
		mode = timectrl.Accelerated
	}
	pb := timectrl.NewPlayback(report, timectrl.PlaybackOptions{
		Tick:       cfg.Tick,
		Mode:       mode,
		Multiplier: cfg.Multiplier,
		Terrain:    terrain.Negotiate(ctx, log, candidates...),
		Metrics:    playbackMetrics,
		Logger:     log,
	})
	pb.OnFrame(func(now time.Time, states []timectrl.AircraftState) {
		for _, s := range states {
			if !s.Airborne {
				continue
			}
			fmt.Fprintf(out, "[%s] %-8s lat=%8.4f lon=%9.4f alt=%7.0fm agl=%7.0fm hdg=%5.1f\n",
				now.Format(time.RFC3339), s.Callsign,
				s.Sample.Position.Lat, s.Sample.Position.Lon,
				s.Sample.Position.AltM, s.HeightAGLM, s.Sample.Heading,
			)
		}
	})

	duration := cfg.Duration
	if duration <= 0 {
		duration = report.Window()
	}
	log.Info(ctx, "starting playback",
		logging.String("sim_id", report.SimulationID),
		logging.Int("aircraft", len(pb.Aircraft())),
		logging.Duration("duration", duration),
		logging.Duration("tick", cfg.Tick),
	)
	<-pb.Run(ctx, duration)
	log.Info(context.Background(), "playback complete", logging.Any("sim_time", pb.Clock.Now()))
	return nil
}

// loadSimulation reads a definition through the file store so compressed
// files work too; an empty path yields the demo template.
func loadSimulation(path string) (*model.SimulationConfig, error) {
	if path == "" {
		return core.Template(time.Now()), nil
	}
	st, err := store.Open(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	return st.Load(filepath.Base(path))
}

func serveMetrics(addr string, gatherer prometheus.Gatherer, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
