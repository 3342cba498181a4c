// Package dashboard serves a live WebSocket feed of change events, push
// outcomes and monitor statistics.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeChange carries a detected change event.
	MessageTypeChange MessageType = "change"

	// MessageTypePush carries the outcome of a push.
	MessageTypePush MessageType = "push"

	// MessageTypeStats carries a monitor statistics snapshot.
	MessageTypeStats MessageType = "stats"
)

// Message represents a dashboard broadcast message
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Server manages WebSocket connections and broadcasts dashboard messages
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	// clients maps each connection to an id used in logs.
	clients   map[*websocket.Conn]string
	clientsMu sync.RWMutex

	broadcast chan Message

	// welcome is sent to every new client; it holds the latest stats.
	welcome   Message
	welcomeMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger zerolog.Logger
}

// Config holds server configuration
type Config struct {
	// Port to listen on. Zero picks a free port.
	Port int

	// Host to bind. Empty binds localhost only.
	Host string

	Logger zerolog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Port:   8080,
		Host:   "127.0.0.1",
		Logger: zerolog.Nop(),
	}
}

// NewServer creates a new dashboard WebSocket server
func NewServer(cfg Config) *Server {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		clients:   make(map[*websocket.Conn]string),
		broadcast: make(chan Message, 100),
		welcome:   Message{Type: MessageTypeStats},
		ctx:       ctx,
		cancel:    cancel,
		logger:    cfg.Logger,
	}
}

// Start begins the HTTP server and WebSocket handler
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("dashboard listening")
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("dashboard server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("dashboard shutdown error: %w", err)
		}
	}

	s.wg.Wait()
	s.logger.Debug().Msg("dashboard stopped")
	return nil
}

// Broadcast queues a message for all connected clients. It never blocks; a
// full queue drops the message.
func (s *Server) Broadcast(msg Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.Type == MessageTypeStats {
		s.welcomeMu.Lock()
		s.welcome = msg
		s.welcomeMu.Unlock()
	}

	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Warn().Str("type", string(msg.Type)).Msg("broadcast channel full, dropping message")
	}
}

// writeTimeout bounds a single frame write to one client.
const writeTimeout = 5 * time.Second

func (s *Server) broadcastLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.broadcast:
			s.fanOut(msg)
		}
	}
}

// fanOut writes msg to every connected client and drops those that fail.
func (s *Server) fanOut(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error().Err(err).Str("type", string(msg.Type)).Msg("failed to marshal dashboard message")
		return
	}
	for conn, id := range s.snapshot() {
		if err := s.send(conn, data); err != nil {
			s.logger.Debug().Err(err).Str("client", id).Msg("dashboard write failed")
			s.dropClient(conn)
		}
	}
}

func (s *Server) send(conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// snapshot copies the client set so writes happen without the lock held.
func (s *Server) snapshot() map[*websocket.Conn]string {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	out := make(map[*websocket.Conn]string, len(s.clients))
	for conn, id := range s.clients {
		out[conn] = id
	}
	return out
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	id := uuid.NewString()
	s.clientsMu.Lock()
	s.clients[conn] = id
	n := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.Debug().Str("client", id).Int("clients", n).Msg("dashboard client connected")

	if data, err := json.Marshal(s.welcomeMessage()); err == nil {
		if err := s.send(conn, data); err != nil {
			s.dropClient(conn)
			return
		}
	}

	// The feed is one-way. CloseRead discards the read side and its context
	// ends once the client goes away.
	closed := conn.CloseRead(s.ctx)
	go func() {
		<-closed.Done()
		s.dropClient(conn)
	}()
}

func (s *Server) welcomeMessage() Message {
	s.welcomeMu.RLock()
	msg := s.welcome
	s.welcomeMu.RUnlock()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return msg
}

// dropClient forgets conn and closes it. Only the first call for a
// connection has any effect.
func (s *Server) dropClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	id, ok := s.clients[conn]
	delete(s.clients, conn)
	n := len(s.clients)
	s.clientsMu.Unlock()
	if !ok {
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
	s.logger.Debug().Str("client", id).Int("clients", n).Msg("dashboard client disconnected")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
