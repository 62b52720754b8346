// Package api exposes simulation storage and assembly over HTTP.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/signalsfoundry/airtraffic-sim/core"
	"github.com/signalsfoundry/airtraffic-sim/internal/logging"
	"github.com/signalsfoundry/airtraffic-sim/internal/observability"
	"github.com/signalsfoundry/airtraffic-sim/internal/store"
	"github.com/signalsfoundry/airtraffic-sim/internal/terrain"
	"github.com/signalsfoundry/airtraffic-sim/kb"
	"github.com/signalsfoundry/airtraffic-sim/model"
	"github.com/signalsfoundry/airtraffic-sim/timectrl"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"

	defaultMaxUpload = 4 << 20
)

// Config wires the server's collaborators. Store, Index and Assembler are
// required.
type Config struct {
	Store     *store.FileStore
	Index     *kb.AirportIndex
	Assembler *core.Assembler
	Terrain   terrain.Provider
	Metrics   *observability.SimCollector
	Logger    logging.Logger
	Now       func() time.Time
	// MaxUploadBytes bounds multipart uploads.
	MaxUploadBytes int64
}

type Server struct {
	store     *store.FileStore
	index     *kb.AirportIndex
	assembler *core.Assembler
	terrain   terrain.Provider
	log       logging.Logger
	now       func() time.Time
	maxUpload int64
}

// New constructs the HTTP router.
func New(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Noop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.Terrain == nil {
		cfg.Terrain = terrain.Ellipsoid{}
	}
	s := &Server{
		store:     cfg.Store,
		index:     cfg.Index,
		assembler: cfg.Assembler,
		terrain:   cfg.Terrain,
		log:       cfg.Logger,
		now:       cfg.Now,
		maxUpload: cfg.MaxUploadBytes,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(observability.TraceMiddleware(routePattern))
	r.Use(s.requestLogger)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.HTTPMiddleware(routePattern))
	}
	r.Use(corsMiddleware)

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/airports/{code}", s.handleAirport)
		r.Post("/assemble", s.handleAssemble)

		r.Route("/sims", func(r chi.Router) {
			r.Get("/list", s.handleList)
			r.Get("/template", s.handleTemplate)
			r.Get("/get/{name}", s.handleGet)
			r.Post("/upload", s.handleUpload)
			r.Post("/validate", s.handleValidate)
			r.Get("/run/{name}", s.handleRun)
			r.Get("/run/{name}/positions", s.handlePositions)
		})
	})

	return r
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.List()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.Template(s.now()))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	data, err := s.store.Get(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleUpload accepts a multipart form with a "file" part and an optional
// "name" field. The file must hold a valid simulation definition.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: no file", ErrBadRequest))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	cfg, err := core.LoadSimulation(bytes.NewReader(data))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if res := core.ValidateConfig(cfg); !res.Valid {
		s.writeError(w, r, &core.ConfigError{Result: res})
		return
	}

	name := r.FormValue("name")
	if strings.TrimSpace(name) == "" {
		name = header.Filename
	}
	saved, err := s.store.Save(name, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logging.FromContext(r.Context(), s.log).Info(r.Context(), "simulation stored",
		logging.String("name", saved),
		logging.String("sim_id", cfg.ID),
	)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "name": saved})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	cfg, err := decodeConfig(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, core.ValidateConfig(cfg))
}

func (s *Server) handleAssemble(w http.ResponseWriter, r *http.Request) {
	cfg, err := decodeConfig(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.assembleAndWrite(w, r, cfg)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Load(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.assembleAndWrite(w, r, cfg)
}

// handlePositions samples every flight of a stored simulation at the instant
// given by the "at" query parameter (RFC 3339), defaulting to the simulation
// start. Looping simulations wrap "at" into their window.
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Load(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.assembler.Assemble(r.Context(), cfg, s.index)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	pb := timectrl.NewPlayback(report, timectrl.PlaybackOptions{Terrain: s.terrain, Logger: s.log})
	if raw := r.URL.Query().Get("at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: at must be RFC 3339: %v", ErrBadRequest, err))
			return
		}
		pb.Clock.SetTime(at)
	}
	now := pb.Clock.Now()
	s.write(w, r, http.StatusOK, map[string]any{
		"simulationId": report.SimulationID,
		"time":         now,
		"aircraft":     pb.Positions(now),
	})
}

func (s *Server) handleAirport(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	wp := model.Waypoint{IATA: code}
	if len(strings.TrimSpace(code)) == 4 {
		wp = model.Waypoint{ICAO: code}
	}
	res, err := kb.ResolveWaypoint(wp, s.index)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res.Airport)
}

func (s *Server) assembleAndWrite(w http.ResponseWriter, r *http.Request, cfg *model.SimulationConfig) {
	report, err := s.assembler.Assemble(r.Context(), cfg, s.index)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.write(w, r, http.StatusOK, report)
}

func decodeConfig(r *http.Request) (*model.SimulationConfig, error) {
	cfg, err := core.LoadSimulation(r.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return cfg, nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context(), s.log).Error(r.Context(), "request failed",
			logging.String("path", r.URL.Path),
			logging.Err(err),
		)
	}
	writeJSON(w, status, errorResponse(err))
}

// write encodes v as MessagePack when the client asks for it and as JSON
// otherwise.
func (s *Server) write(w http.ResponseWriter, r *http.Request, status int, v any) {
	if !wantsMsgpack(r) {
		writeJSON(w, status, v)
		return
	}
	data, err := msgpack.Marshal(v)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("encode msgpack: %w", err))
		return
	}
	w.Header().Set("Content-Type", contentTypeMsgpack)
	w.WriteHeader(status)
	w.Write(data)
}

func wantsMsgpack(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "msgpack") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), contentTypeMsgpack)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestLogger tags each request with an ID and a logger carrying it and,
// when the caller sent one, the trace ID.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var fields []logging.Field
		if traceID := observability.TraceID(r.Context()); traceID != "" {
			fields = append(fields, logging.String("trace_id", traceID))
		}
		ctx, l := logging.Request(r.Context(), s.log, r.Header.Get("X-Request-ID"), fields...)
		w.Header().Set("X-Request-ID", logging.RequestID(ctx))

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		l.Debug(ctx, "request handled",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Duration("duration", time.Since(start)),
		)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, X-Request-ID, traceparent, tracestate")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
