package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/air-relay/pkg/adb"
	"github.com/air-relay/pkg/config"
	"github.com/air-relay/pkg/logging"
	"github.com/air-relay/pkg/metrics"
	"github.com/air-relay/pkg/relay"
	"github.com/air-relay/pkg/room"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceVersion = "0.3.0"

// Server ties the relay engine, room store, and ADB manager to their HTTP
// and WebSocket surface.
type Server struct {
	cfg       *config.Config
	engine    *relay.Engine
	rooms     *room.Store
	adb       *adb.Manager
	registry  *prometheus.Registry
	collector *metrics.Collector
	http      *http.Server
}

// NewServer creates a relay server
func NewServer(cfg *config.Config, rooms *room.Store, adbManager *adb.Manager) *Server {
	connRegistry := relay.NewRegistry()

	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(func() map[string]int {
		return map[string]int{
			string(relay.DeviceMobile): connRegistry.Count(relay.DeviceMobile),
			string(relay.DevicePC):     connRegistry.Count(relay.DevicePC),
		}
	})
	promRegistry.MustRegister(collector)

	s := &Server{
		cfg:       cfg,
		engine:    relay.NewEngine(connRegistry, collector),
		rooms:     rooms,
		adb:       adbManager,
		registry:  promRegistry,
		collector: collector,
	}
	s.http = &http.Server{
		Addr:    cfg.Server.BindAddr,
		Handler: s.routes(),
	}
	return s
}

// Engine returns the relay engine
func (s *Server) Engine() *relay.Engine {
	return s.engine
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/rooms/create", s.handleRoomCreate)
	mux.HandleFunc("GET /api/rooms/{room_id}", s.handleRoomGet)
	mux.HandleFunc("GET /api/rooms/{room_id}/validate", s.handleRoomValidate)

	mux.HandleFunc("GET /api/adb/devices", s.handleADBDevices)
	mux.HandleFunc("POST /api/adb/forward", s.handleADBForward)
	mux.HandleFunc("POST /api/adb/reverse", s.handleADBReverse)
	mux.HandleFunc("POST /api/adb/screen", s.handleADBScreen)
	mux.HandleFunc("POST /api/adb/shell", s.handleADBShell)

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.Handle("GET "+s.cfg.Server.TelemetryPath,
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return s.corsMiddleware(mux)
}

// Start begins serving and blocks until the listener fails or is shut down
func (s *Server) Start() error {
	logging.Logf("[listen] addr=%s metrics=%s health=/api/health ws=/ws",
		s.cfg.Server.BindAddr, s.cfg.Server.TelemetryPath)
	return s.http.ListenAndServe()
}

// Shutdown closes every live relay connection, then stops the HTTP listener
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Log("Shutting down server...")
	s.engine.Shutdown()
	return s.http.Shutdown(ctx)
}

// corsMiddleware applies the configured allowed origins to API responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Air Relay Server",
		"endpoints": map[string]interface{}{
			"health":    "/api/health",
			"websocket": "/ws",
			"rooms": map[string]string{
				"create":   "/api/rooms/create",
				"get":      "/api/rooms/{room_id}",
				"validate": "/api/rooms/{room_id}/validate",
			},
			"adb": map[string]string{
				"devices": "/api/adb/devices",
				"forward": "/api/adb/forward",
				"reverse": "/api/adb/reverse",
				"screen":  "/api/adb/screen",
				"shell":   "/api/adb/shell",
			},
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": "air-relay-server",
		"version": serviceVersion,
		"clients": s.engine.ConnectedCounts(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logf("[http] error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
