// Package api provides the engine's HTTP status/metrics surface and a
// websocket fan-out for signal/regime/position notifications. Adapted
// from the teacher's internal/api/server.go — the backtest/data-store
// routes it served are replaced with the engine's own status endpoints,
// the client/broadcast machinery kept in shape.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/perpsignal/engine/pkg/types"
)

// StatusProvider exposes the running engine's state to the status
// endpoint; implemented by symbolengine.Engine.
type StatusProvider interface {
	Summary() types.SimulatorSummary
	Regime() types.RegimeResult
}

// Server is the engine's HTTP/WebSocket surface.
type Server struct {
	mu            sync.RWMutex
	log           *zap.SugaredLogger
	addr          string
	enableMetrics bool
	router        *mux.Router
	httpServer    *http.Server
	upgrader      websocket.Upgrader
	clients       map[string]*client
	engine        StatusProvider
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// event is one websocket push to every connected client.
type event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp int64       `json:"timestamp"`
}

// NewServer builds a server; engine may be nil before the pipeline is
// wired, in which case /status reports only the server clock.
func NewServer(log *zap.SugaredLogger, addr string, enableMetrics bool, engine StatusProvider) *Server {
	s := &Server{
		log:           log,
		addr:          addr,
		enableMetrics: enableMetrics,
		router:        mux.NewRouter(),
		clients:       make(map[string]*client),
		engine:        engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

// Router exposes the underlying mux.Router, mainly for tests that want
// to drive routes without a live listener.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebSocket)
	if s.enableMetrics {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
}

// Start runs the HTTP server until ctx is cancelled or it fails.
func (s *Server) Start(ctx context.Context) error {
	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("api server listening", "addr", s.addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return s.Stop(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Stop gracefully shuts the server down, closing every websocket client.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for _, c := range s.clients {
		c.conn.Close()
	}
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"time": time.Now().Unix()}
	if s.engine != nil {
		resp["summary"] = s.engine.Summary()
		resp["regime"] = s.engine.Regime()
	}
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorw("websocket upgrade failed", "error", err)
		return
	}

	c := &client{id: uuid.New().String(), conn: conn, send: make(chan []byte, 64)}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) readPump(c *client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, c.id)
		s.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// broadcast pushes an event of the given type to every connected client,
// dropping it for any client whose send buffer is full.
func (s *Server) broadcast(eventType string, payload interface{}) {
	msg, err := json.Marshal(event{Type: eventType, Payload: payload, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// BroadcastSignal fans a scored signal out to every websocket client.
func (s *Server) BroadcastSignal(sig types.Signal) { s.broadcast("signal", sig) }

// BroadcastRegime fans a regime change out to every websocket client.
func (s *Server) BroadcastRegime(res types.RegimeResult) { s.broadcast("regime", res) }

// BroadcastOpen fans a newly opened position out to every websocket client.
func (s *Server) BroadcastOpen(pos types.Position, plan types.RiskPlan) {
	s.broadcast("open", map[string]any{"position": pos, "plan": plan})
}

// BroadcastClose fans a position close out to every websocket client.
func (s *Server) BroadcastClose(res types.CloseResult, summary types.SimulatorSummary) {
	s.broadcast("close", map[string]any{"result": res, "summary": summary})
}
