package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/signalsfoundry/airtraffic-sim/core"
	"github.com/signalsfoundry/airtraffic-sim/internal/logging"
	"github.com/signalsfoundry/airtraffic-sim/internal/observability"
	"github.com/signalsfoundry/airtraffic-sim/internal/store"
	"github.com/signalsfoundry/airtraffic-sim/kb"
)

var testNow = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	handler http.Handler
	store   *store.FileStore
	metrics *observability.SimCollector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	asm, err := core.NewAssembler(core.Options{SampleCount: 16})
	require.NoError(t, err)
	metrics, err := observability.NewSimCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	h := New(Config{
		Store:     st,
		Index:     kb.NewAirportIndex(kb.DefaultHubs()),
		Assembler: asm,
		Metrics:   metrics,
		Now:       func() time.Time { return testNow },
	})
	return &fixture{handler: h, store: st, metrics: metrics}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func templateJSON(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, core.EncodeSimulation(&buf, core.Template(testNow)))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, name string, filename string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if name != "" {
		require.NoError(t, mw.WriteField("name", name))
	}
	if body != nil {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sims/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := f.do(t, req)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

func TestIncomingTraceIsContinued(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	var logs bytes.Buffer
	f := newFixture(t)
	asm, err := core.NewAssembler(core.Options{SampleCount: 8})
	require.NoError(t, err)
	h := New(Config{
		Store:     f.store,
		Index:     kb.NewAirportIndex(kb.DefaultHubs()),
		Assembler: asm,
		Logger:    logging.New(logging.Config{Level: "debug", Format: "json", Output: &logs}),
		Now:       func() time.Time { return testNow },
	})
	_, err = f.store.SaveConfig("demo.json", core.Template(testNow))
	require.NoError(t, err)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/api/sims/run/demo.json", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("traceparent"), traceID)
	assert.Contains(t, logs.String(), `"trace_id":"`+traceID+`"`)
}

func TestUploadListGet(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, uploadRequest(t, "My Demo", "ignored.json", templateJSON(t)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var up struct {
		OK   bool   `json:"ok"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &up))
	assert.True(t, up.OK)
	assert.Equal(t, "My-Demo.json", up.Name)

	rr = f.do(t, uploadRequest(t, "", "from-file.json", templateJSON(t)))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, httptest.NewRequest(http.MethodGet, "/api/sims/list", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"files":["My-Demo.json","from-file.json"]}`, rr.Body.String())

	rr = f.do(t, httptest.NewRequest(http.MethodGet, "/api/sims/get/My-Demo.json", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, string(templateJSON(t)), rr.Body.String())
}

func TestUploadRejections(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, uploadRequest(t, "x", "", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, uploadRequest(t, "x", "x.json", []byte(`{"id":`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, uploadRequest(t, "x", "x.json", []byte(`{"id":"x","name":"x","durationMin":0,"flights":[]}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.False(t, body.OK)
	assert.NotEmpty(t, body.Issues)

	files, err := f.store.List()
	require.NoError(t, err)
	assert.Empty(t, files, "rejected uploads must not be stored")
}

func TestGetMissing(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, httptest.NewRequest(http.MethodGet, "/api/sims/get/nope.json", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTemplate(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, httptest.NewRequest(http.MethodGet, "/api/sims/template", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	cfg, err := core.LoadSimulation(rr.Body)
	require.NoError(t, err)
	assert.Equal(t, "demo-conus", cfg.ID)
	assert.True(t, cfg.StartTimeUTC.Equal(testNow))
}

func TestValidateEndpoint(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, httptest.NewRequest(http.MethodPost, "/api/sims/validate",
		strings.NewReader(`{"id":"x","name":"","durationMin":5,"flights":[{"id":"a","from":{"iata":"JFK"},"to":{}}]}`)))
	require.Equal(t, http.StatusOK, rr.Code)

	var res core.ValidationResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.False(t, res.Valid)
	paths := map[string]bool{}
	for _, i := range res.Issues {
		paths[i.Path] = true
	}
	assert.True(t, paths["name"])
	assert.True(t, paths["flights[0].to.iata"])
}

func TestAssembleJSONAndPartialFailure(t *testing.T) {
	f := newFixture(t)
	body := `{"id":"p","name":"p","startTimeUtc":"2025-03-01T12:00:00Z","durationMin":60,"seed":3,
	  "flights":[{"id":"ok","from":{"iata":"JFK"},"to":{"iata":"LAX"}},{"id":"bad","from":{"iata":"QQQ"},"to":{"iata":"LAX"}}]}`
	rr := f.do(t, httptest.NewRequest(http.MethodPost, "/api/assemble", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var report core.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.True(t, report.OverallValid)
	require.Len(t, report.Flights, 2)
	assert.NotNil(t, report.Flights[0].Trajectory)
	assert.Len(t, report.Flights[0].Trajectory.Samples, 17)
	assert.Nil(t, report.Flights[1].Trajectory)
	assert.Contains(t, report.Flights[1].Error, "QQQ")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequests.WithLabelValues("/api/assemble", "POST", "200")))
}

func TestAssembleInvalidConfig(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, httptest.NewRequest(http.MethodPost, "/api/assemble",
		strings.NewReader(`{"id":"x","name":"x","durationMin":0,"flights":[{"id":"a","from":{"iata":"JFK"},"to":{"iata":"LAX"}}]}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "durationMin")

	rr = f.do(t, httptest.NewRequest(http.MethodPost, "/api/assemble", strings.NewReader(`nope`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRunStoredSimulationMsgpack(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.SaveConfig("demo.json", core.Template(testNow))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/sims/run/demo.json", nil)
	req.Header.Set("Accept", "application/msgpack")
	rr := f.do(t, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/msgpack", rr.Header().Get("Content-Type"))

	var report core.Report
	require.NoError(t, msgpack.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, "demo-conus", report.SimulationID)
	require.Len(t, report.Flights, 2)
	require.NotNil(t, report.Flights[1].Trajectory)
	assert.True(t, report.Flights[1].Trajectory.Departure.Equal(testNow.Add(15*time.Minute)))
	require.NotNil(t, report.Flights[0].Origin)
	assert.InDelta(t, 40.6413, report.Flights[0].Origin.Lat, 1e-9)

	rr = f.do(t, httptest.NewRequest(http.MethodGet, "/api/sims/run/missing.json", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPositions(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.SaveConfig("demo.json", core.Template(testNow))
	require.NoError(t, err)

	rr := f.do(t, httptest.NewRequest(http.MethodGet,
		"/api/sims/run/demo.json/positions?at=2025-03-01T12:05:00Z", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		Time     time.Time `json:"time"`
		Aircraft []struct {
			FlightID string `json:"flightId"`
			Airborne bool   `json:"airborne"`
		} `json:"aircraft"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Time.Equal(testNow.Add(5*time.Minute)))
	require.Len(t, body.Aircraft, 2)
	assert.True(t, body.Aircraft[0].Airborne)
	assert.False(t, body.Aircraft[1].Airborne)

	rr = f.do(t, httptest.NewRequest(http.MethodGet, "/api/sims/run/demo.json/positions?at=noon", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAirportLookup(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, httptest.NewRequest(http.MethodGet, "/api/airports/lhr", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"iata":"LHR"`)

	rr = f.do(t, httptest.NewRequest(http.MethodGet, "/api/airports/KSEA", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"icao":"KSEA"`)

	rr = f.do(t, httptest.NewRequest(http.MethodGet, "/api/airports/ZZZ", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMetricsAndCORS(t *testing.T) {
	f := newFixture(t)
	f.do(t, httptest.NewRequest(http.MethodGet, "/api/sims/list", nil))

	rr := f.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `http_requests_total{code="200",method="GET",route="/api/sims/list"} 1`)

	rr = f.do(t, httptest.NewRequest(http.MethodOptions, "/api/assemble", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(store.ErrNotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&core.ConfigError{}))
	assert.Equal(t, http.StatusBadRequest, statusFor(store.ErrEmpty))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
	assert.Equal(t, "Internal Server Error", errorResponse(assert.AnError).Message)
}
