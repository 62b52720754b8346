package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestSimCollectorRecordsAssembly(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	collector.ObserveAssembly("partial", 3, 20*time.Millisecond)
	collector.ObserveFlight("ok", time.Millisecond)
	collector.ObserveFlight("ok", time.Millisecond)
	collector.ObserveFlight("unresolved", time.Millisecond)

	if got := testutil.ToFloat64(collector.Assemblies.WithLabelValues("partial")); got != 1 {
		t.Fatalf("sim_assemblies_total{partial} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Flights.WithLabelValues("ok")); got != 2 {
		t.Fatalf("sim_flights_total{ok} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Flights.WithLabelValues("unresolved")); got != 1 {
		t.Fatalf("sim_flights_total{unresolved} = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "sim_assembly_duration_seconds", map[string]string{"result": "partial"}); count != 1 {
		t.Fatalf("sim_assembly_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestSimCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	second, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("second NewSimCollector: %v", err)
	}
	first.ObserveFlight("ok", 0)
	second.ObserveFlight("ok", 0)
	if got := testutil.ToFloat64(first.Flights.WithLabelValues("ok")); got != 2 {
		t.Fatalf("shared counter = %v, want 2", got)
	}
}

func TestHTTPMiddlewareRecordsStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	h := collector.HTTPMiddleware(func(*http.Request) string { return "/api/sims/get/{name}" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "missing", http.StatusNotFound)
		}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sims/get/nope", nil))

	if got := testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("/api/sims/get/{name}", "GET", "404")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "http_request_duration_seconds", map[string]string{
		"route":  "/api/sims/get/{name}",
		"method": "GET",
	}); count != 1 {
		t.Fatalf("http_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestMetricsHandlerExposesRegistryGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	collector.SetRegistryCounts(7321, 12)
	collector.ObserveAssembly("ok", 2, time.Millisecond)

	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"sim_assemblies_total",
		"sim_assembly_duration_seconds",
		"registry_airports 7321",
		"registry_skipped_records 12",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestNilCollectorsAreSafe(t *testing.T) {
	var sc *SimCollector
	sc.ObserveAssembly("ok", 1, 0)
	sc.ObserveFlight("ok", 0)
	sc.SetRegistryCounts(1, 1)

	var pc *PlaybackCollector
	pc.ObserveTick(0, 1, 0)
	pc.IncLoops()
	if pc.Gatherer() != nil {
		t.Fatalf("nil PlaybackCollector should have no gatherer")
	}
}

func TestPlaybackCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	pc, err := NewPlaybackCollector(reg)
	if err != nil {
		t.Fatalf("NewPlaybackCollector: %v", err)
	}
	pc.ObserveTick(2*time.Millisecond, 5, 90*time.Second)
	pc.IncLoops()

	if got := testutil.ToFloat64(pc.AirborneAircraft); got != 5 {
		t.Fatalf("playback_airborne_aircraft = %v, want 5", got)
	}
	if got := testutil.ToFloat64(pc.SimulatedSeconds); got != 90 {
		t.Fatalf("playback_simulated_seconds = %v, want 90", got)
	}
	if got := testutil.ToFloat64(pc.LoopsTotal); got != 1 {
		t.Fatalf("playback_loops_total = %v, want 1", got)
	}
	if histogramSampleCount(t, pc.Gatherer(), "playback_tick_duration_seconds", nil) != 1 {
		t.Fatalf("expected one tick observation")
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
