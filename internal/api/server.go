// Package api provides the HTTP and WebSocket server for controlling
// the trading engine.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/atlas-desktop/papertrade/internal/analytics"
	"github.com/atlas-desktop/papertrade/internal/engine"
	"github.com/atlas-desktop/papertrade/pkg/types"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Server is the HTTP/WebSocket API server.
type Server struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	config     types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	clients    map[string]*Client
	engine     *engine.Engine
	metrics    *Metrics
}

// NewServer creates the API server and wires engine events into the
// WebSocket hub and metrics.
func NewServer(logger *zap.Logger, config types.ServerConfig, eng *engine.Engine) *Server {
	server := &Server{
		logger:  logger.Named("api"),
		config:  config,
		router:  mux.NewRouter(),
		clients: make(map[string]*Client),
		engine:  eng,
		metrics: NewMetrics(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
	}

	eng.SetCallbacks(engine.Callbacks{
		OnOrder:   server.onOrder,
		OnSignal:  server.onSignal,
		OnSession: server.onSession,
	})

	server.setupRoutes()
	return server
}

// setupRoutes configures HTTP routes.
func (s *Server) setupRoutes() {
	// Health check
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")

	// Session lifecycle
	s.router.HandleFunc("/api/v1/session/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/v1/session/configure", s.handleConfigure).Methods("POST")
	s.router.HandleFunc("/api/v1/session/start", s.handleStart).Methods("POST")
	s.router.HandleFunc("/api/v1/session/stop", s.handleStop).Methods("POST")
	s.router.HandleFunc("/api/v1/session/pause", s.handlePause).Methods("POST")
	s.router.HandleFunc("/api/v1/session/resume", s.handleResume).Methods("POST")
	s.router.HandleFunc("/api/v1/sessions", s.handleSessions).Methods("GET")

	// Portfolio
	s.router.HandleFunc("/api/v1/portfolio", s.handlePortfolio).Methods("GET")
	s.router.HandleFunc("/api/v1/portfolio/orders", s.handleOrders).Methods("GET")
	s.router.HandleFunc("/api/v1/portfolio/history", s.handleHistory).Methods("GET")
	s.router.HandleFunc("/api/v1/portfolio/performance", s.handlePerformance).Methods("GET")

	// Metrics
	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	// WebSocket
	s.router.HandleFunc(s.config.WebSocketPath, s.handleWebSocket)
}

// Start starts the HTTP server. Blocks until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting API server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for _, client := range s.clients {
		client.Conn.Close()
	}
	s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{
		"status": "healthy",
		"state":  s.engine.State(),
		"time":   time.Now().Unix(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.engine.GetStatus()
	s.metrics.ObserveStatus(status)
	s.writeJSON(w, status)
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	config := types.DefaultEngineConfig()
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		http.Error(w, "invalid configuration body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.engine.Configure(config); err != nil {
		s.writeTransitionError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"configured": true, "config": config})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.transition(w, "start", s.engine.Start)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.transition(w, "stop", s.engine.Stop)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.transition(w, "pause", s.engine.Pause)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.transition(w, "resume", s.engine.Resume)
}

func (s *Server) transition(w http.ResponseWriter, event string, fn func() error) {
	if err := fn(); err != nil {
		s.writeTransitionError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{
		"event": event,
		"state": s.engine.State(),
	})
}

func (s *Server) writeTransitionError(w http.ResponseWriter, err error) {
	var invalid *engine.InvalidTransitionError
	if errors.As(err, &invalid) {
		http.Error(w, invalid.Error(), http.StatusConflict)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.engine.Sessions()
	s.writeJSON(w, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.engine.Ledger().Summarize())
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	orders := s.engine.Ledger().RecentOrders(limit)
	s.writeJSON(w, map[string]any{
		"orders": orders,
		"count":  len(orders),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history := s.engine.Ledger().History()
	s.writeJSON(w, map[string]any{
		"points": history,
		"count":  len(history),
	})
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	book := s.engine.Ledger()
	report := analytics.Analyze(book.History(), book.RecentOrders(0))
	s.writeJSON(w, report)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encoding failed", zap.Error(err))
	}
}

// onOrder fans an order fill out to metrics and WebSocket clients.
func (s *Server) onOrder(order types.Order) {
	s.metrics.ObserveOrder(order)
	s.broadcast(&Message{
		Type:      "event",
		Method:    "order",
		Payload:   order,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) onSignal(sig types.Signal) {
	s.metrics.ObserveSignal(sig)
	if !sig.Actionable() {
		return
	}
	s.broadcast(&Message{
		Type:      "event",
		Method:    "signal",
		Payload:   sig,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) onSession(session types.TradingSession) {
	s.metrics.ObserveSessionClose(session)
	s.broadcast(&Message{
		Type:      "event",
		Method:    "session_closed",
		Payload:   session,
		Timestamp: time.Now().UnixMilli(),
	})
}
