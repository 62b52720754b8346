package observability

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/airtraffic-sim/internal/logging"
	"github.com/signalsfoundry/airtraffic-sim/model"
)

const (
	tracerName  = "github.com/signalsfoundry/airtraffic-sim/internal/observability"
	serviceName = "airtraffic-sim"

	defaultOTLPEndpoint = "localhost:4317"
)

// TracingConfig selects where the spans of one binary go. An empty or "none"
// exporter leaves tracing off; incoming trace context is still propagated so
// request logs carry the caller's trace ID.
type TracingConfig struct {
	// Component names the emitting binary, e.g. "simserver" or "simulator".
	Component   string
	Exporter    string // none | stdout | otlp
	Endpoint    string // otlp collector host:port
	SampleRatio float64
	// Writer receives stdout exporter output; defaults to os.Stderr so it
	// does not interleave with position output.
	Writer io.Writer
}

// TracingConfigFromEnv reads SIM_TRACE_EXPORTER, SIM_OTLP_ENDPOINT and
// SIM_TRACE_SAMPLE_RATIO. Flags registered with RegisterFlags override it.
func TracingConfigFromEnv(component string) TracingConfig {
	cfg := TracingConfig{
		Component:   component,
		Exporter:    strings.ToLower(strings.TrimSpace(os.Getenv("SIM_TRACE_EXPORTER"))),
		Endpoint:    os.Getenv("SIM_OTLP_ENDPOINT"),
		SampleRatio: 1,
	}
	if raw := os.Getenv("SIM_TRACE_SAMPLE_RATIO"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 && v <= 1 {
			cfg.SampleRatio = v
		}
	}
	return cfg
}

// RegisterFlags binds the tracing settings to fs, using the current values as
// defaults.
func (c *TracingConfig) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Exporter, "trace-exporter", c.Exporter, "Span exporter: none, stdout or otlp")
	fs.StringVar(&c.Endpoint, "trace-endpoint", c.Endpoint, "OTLP gRPC collector address (default "+defaultOTLPEndpoint+")")
	fs.Float64Var(&c.SampleRatio, "trace-sample", c.SampleRatio, "Fraction of root traces to sample")
}

// Enabled reports whether spans are exported.
func (c TracingConfig) Enabled() bool {
	e := strings.ToLower(c.Exporter)
	return e != "" && e != "none"
}

// SimulationAttributes describes a simulation definition as resource
// attributes, so every span of a run is attributable to it.
func SimulationAttributes(cfg *model.SimulationConfig) []attribute.KeyValue {
	if cfg == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String("sim.id", cfg.ID),
		attribute.String("sim.name", cfg.Name),
		attribute.Int("sim.flights", len(cfg.Flights)),
		attribute.Float64("sim.duration_min", cfg.DurationMin),
		attribute.Bool("sim.loop", cfg.Loop),
	}
}

// Tracing owns the tracer provider installed by InitTracing.
type Tracing struct {
	provider *sdktrace.TracerProvider
	log      logging.Logger
}

// InitTracing installs the W3C trace-context propagator and, when cfg is
// enabled, a sampled tracer provider exporting to cfg.Exporter. attrs are
// added to the resource alongside the service and component names.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger, attrs ...attribute.KeyValue) (*Tracing, error) {
	if log == nil {
		log = logging.Noop()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t := &Tracing{log: log}
	if !cfg.Enabled() {
		log.Debug(ctx, "span export disabled", logging.String("component", cfg.Component))
		return t, nil
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(append([]attribute.KeyValue{
			attribute.String("service.name", serviceName),
			attribute.String("service.namespace", "airtraffic"),
			attribute.String("sim.component", cfg.Component),
		}, attrs...)...),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	t.provider = sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(t.provider)

	log.Info(ctx, "exporting spans",
		logging.String("component", cfg.Component),
		logging.String("exporter", cfg.Exporter),
		logging.Float64("sample_ratio", cfg.SampleRatio),
	)
	return t, nil
}

// Shutdown flushes pending spans, waiting at most five seconds. It is safe on
// a nil or disabled Tracing.
func (t *Tracing) Shutdown(ctx context.Context) {
	if t == nil || t.provider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := t.provider.Shutdown(ctx); err != nil {
		t.log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "stdout":
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	case "otlp":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	default:
		return nil, fmt.Errorf("unsupported span exporter %q", cfg.Exporter)
	}
}

// TraceMiddleware continues the caller's trace from the request headers and
// wraps the handler in a server span named after the matched route. The
// response carries the resulting traceparent.
func TraceMiddleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			prop := otel.GetTextMapPropagator()
			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := otel.Tracer(tracerName).Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", r.Method),
					attribute.String("url.path", r.URL.Path),
				),
			)
			defer span.End()
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))

			if route != nil {
				if pattern := route(r); pattern != "" {
					span.SetName(r.Method + " " + pattern)
					span.SetAttributes(attribute.String("http.route", pattern))
				}
			}
			span.SetAttributes(attribute.Int("http.response.status_code", sw.status))
			if sw.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(sw.status))
			}
		})
	}
}

// TraceID returns the hex trace ID carried by ctx, or "" when there is none.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
