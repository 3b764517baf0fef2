// Package dashboard provides the real-time WebSocket hub and HTTP API for logmon.
//
// The hub broadcasts file additions, content updates and deletions to every
// connected subscriber and answers per-subscriber listing requests. The HTTP
// API serves listings and file content out of band.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/agentlogs/logmon/internal/logging"
	"github.com/agentlogs/logmon/internal/metrics"
	"github.com/agentlogs/logmon/internal/scanner"
)

// MessageType defines the type of hub message
type MessageType string

const (
	// MessageTypeConnected is the welcome sent to a new subscriber
	MessageTypeConnected MessageType = "connected"

	// MessageTypeLogNew indicates a file was observed for the first time
	MessageTypeLogNew MessageType = "log:new"

	// MessageTypeLogUpdate carries new file content
	MessageTypeLogUpdate MessageType = "log:update"

	// MessageTypeLogDelete indicates a file was removed
	MessageTypeLogDelete MessageType = "log:delete"

	// MessageTypeLogsList is the reply to a listing request
	MessageTypeLogsList MessageType = "logs:list"

	// MessageTypeError reports a failed subscriber request
	MessageTypeError MessageType = "error"

	// MessageTypeRequestLogs is sent by a subscriber to ask for a listing
	MessageTypeRequestLogs MessageType = "request:logs"

	// MessageTypeRegisterFile is sent by a subscriber to declare a size it has seen
	MessageTypeRegisterFile MessageType = "register:file"
)

// Message represents a hub message in either direction
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ConnectedData is the payload of the welcome message
type ConnectedData struct {
	Message   string    `json:"message"`
	ClientID  string    `json:"clientId"`
	Timestamp time.Time `json:"timestamp"`
}

// NewFileData is the payload of a log:new message
type NewFileData struct {
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// ContentUpdateData is the payload of a log:update message. Content is the
// whole file on first observation and for structured files, otherwise only
// the appended bytes. Size is the file size delivered so far.
type ContentUpdateData struct {
	Filename  string    `json:"filename"`
	Content   string    `json:"content"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// DeleteData is the payload of a log:delete message
type DeleteData struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorData is the payload of an error message
type ErrorData struct {
	Message string `json:"message"`
}

// RegisterFileData is the payload of a register:file request
type RegisterFileData struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Lister answers listing requests.
type Lister interface {
	List(ctx context.Context, opts scanner.ListOptions) ([]scanner.FileRecord, error)
}

// ContentReader answers content requests.
type ContentReader interface {
	ReadFile(id string, lines int) (string, error)
}

// Config holds server configuration
type Config struct {
	// Bind address (default: all interfaces)
	Bind string

	// Port to listen on (default: 3001, 0 picks a free port)
	Port int

	// CORSOrigin is sent as Access-Control-Allow-Origin and limits
	// WebSocket origins (default: "*")
	CORSOrigin string

	// ClientBuffer is the per-subscriber send queue length (default: 64)
	ClientBuffer int

	// BroadcastBuffer is the hub queue length (default: 256)
	BroadcastBuffer int

	// RequestRate and RequestBurst limit request:logs per subscriber
	// (default: 5/s, burst 10). A rate <= 0 disables the limit.
	RequestRate  float64
	RequestBurst int

	// WriteTimeout bounds a single frame write to a subscriber (default: 5s)
	WriteTimeout time.Duration

	// Lister backs request:logs and GET /api/logs
	Lister Lister

	// Reader backs GET /api/logs/*
	Reader ContentReader

	// Logger for server activity (default: global logger)
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Port:            3001,
		CORSOrigin:      "*",
		ClientBuffer:    64,
		BroadcastBuffer: 256,
		RequestRate:     5,
		RequestBurst:    10,
		WriteTimeout:    5 * time.Second,
		Logger:          logging.L().Named("dashboard"),
	}
}

func (c *Config) withDefaults() *Config {
	out := DefaultConfig()
	if c == nil {
		return out
	}
	cfg := *c
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = out.CORSOrigin
	}
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = out.ClientBuffer
	}
	if cfg.BroadcastBuffer <= 0 {
		cfg.BroadcastBuffer = out.BroadcastBuffer
	}
	if cfg.RequestBurst <= 0 {
		cfg.RequestBurst = out.RequestBurst
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = out.WriteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = out.Logger
	}
	return &cfg
}

// client is one connected subscriber
type client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	done    chan struct{}
	once    sync.Once

	// hints holds sizes the subscriber says it has seen. They are never
	// consulted by the pipeline.
	hintsMu sync.Mutex
	hints   map[string]int64
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// enqueue offers data to the client's send queue without blocking.
func (c *client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) setHint(id string, size int64) {
	c.hintsMu.Lock()
	c.hints[id] = size
	c.hintsMu.Unlock()
}

// Server manages WebSocket subscribers and the HTTP API
type Server struct {
	config   *Config
	addr     string
	listener net.Listener
	server   *http.Server
	router   chi.Router
	started  time.Time

	// Subscriber management
	clients   map[string]*client
	clientsMu sync.RWMutex

	// Message broadcasting
	broadcast chan Message

	// Lifecycle management
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger *zap.Logger
}

// NewServer creates a new dashboard server
func NewServer(config *Config) *Server {
	config = config.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:    config,
		addr:      net.JoinHostPort(config.Bind, strconv.Itoa(config.Port)),
		clients:   make(map[string]*client),
		broadcast: make(chan Message, config.BroadcastBuffer),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
		started:   time.Now(),
	}
	s.router = s.routes()
	return s
}

// Router returns the HTTP handler, useful for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins the HTTP server and the broadcast loop
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("Dashboard server listening", zap.String("addr", ln.Addr().String()))
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop closes every subscriber and shuts down the server. Stop is idempotent.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping dashboard server")

		s.cancel()

		s.clientsMu.Lock()
		clients := make([]*client, 0, len(s.clients))
		for id, c := range s.clients {
			clients = append(clients, c)
			delete(s.clients, id)
		}
		s.clientsMu.Unlock()
		metrics.SetSubscribers(0)

		for _, c := range clients {
			c.close()
			_ = c.conn.Close(websocket.StatusGoingAway, "Server shutting down")
		}

		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serr := s.server.Shutdown(ctx); serr != nil {
				err = fmt.Errorf("server shutdown error: %w", serr)
			}
		}

		s.wg.Wait()
		s.logger.Info("Dashboard server stopped")
	})
	return err
}

// Broadcast queues a message for every connected subscriber. It never
// blocks; when the hub queue is full the message is dropped.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
		metrics.RecordBroadcast(string(msg.Type))
	case <-s.ctx.Done():
		return
	default:
		metrics.RecordDropped("hub")
		s.logger.Warn("Broadcast channel full, dropping message", zap.String("type", string(msg.Type)))
	}
}

// broadcastLoop marshals each message once and offers it to every client
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Error("Failed to marshal message", zap.Error(err))
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*client, 0, len(s.clients))
			for _, c := range s.clients {
				clients = append(clients, c)
			}
			s.clientsMu.RUnlock()

			for _, c := range clients {
				if !c.enqueue(data) {
					metrics.RecordDropped("subscriber")
					s.logger.Debug("Subscriber queue full, dropping message",
						zap.String("client", c.id),
						zap.String("type", string(msg.Type)),
					)
				}
			}
		}
	}
}

// originPatterns turns the CORS origin setting into websocket host patterns
func originPatterns(origin string) []string {
	if origin == "" || origin == "*" {
		return []string{"*"}
	}
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		return []string{u.Host}
	}
	return []string{origin}
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(s.config.CORSOrigin),
	})
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	limit := rate.Inf
	if s.config.RequestRate > 0 {
		limit = rate.Limit(s.config.RequestRate)
	}

	c := &client{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, s.config.ClientBuffer),
		limiter: rate.NewLimiter(limit, s.config.RequestBurst),
		done:    make(chan struct{}),
		hints:   make(map[string]int64),
	}

	s.clientsMu.Lock()
	select {
	case <-s.ctx.Done():
		s.clientsMu.Unlock()
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		return
	default:
	}
	s.clients[c.id] = c
	clientCount := len(s.clients)
	s.wg.Add(2)
	s.clientsMu.Unlock()

	metrics.SetSubscribers(clientCount)
	s.logger.Info("Client connected",
		zap.String("client", c.id),
		zap.String("remote", r.RemoteAddr),
		zap.Int("total", clientCount),
	)

	now := time.Now()
	s.sendTo(c, MessageTypeConnected, ConnectedData{
		Message:   "Connected to log monitor",
		ClientID:  c.id,
		Timestamp: now,
	})

	go s.writeLoop(c)
	go s.readLoop(c)
}

// writeLoop delivers queued frames to one client
func (s *Server) writeLoop(c *client) {
	defer s.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case <-s.ctx.Done():
			return
		case data := <-c.send:
			ctx, cancel := context.WithTimeout(s.ctx, s.config.WriteTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, data)
			cancel()

			if err != nil {
				s.logger.Debug("Failed to send to client", zap.String("client", c.id), zap.Error(err))
				s.removeClient(c)
				return
			}
		}
	}
}

// readLoop handles subscriber requests until the connection closes
func (s *Server) readLoop(c *client) {
	defer s.wg.Done()
	defer s.removeClient(c)

	for {
		typ, data, err := c.conn.Read(s.ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(c, "invalid message")
			continue
		}
		s.handleClientMessage(c, msg)
	}
}

func (s *Server) handleClientMessage(c *client, msg Message) {
	switch msg.Type {
	case MessageTypeRequestLogs:
		if !c.limiter.Allow() {
			s.sendError(c, "rate limit exceeded")
			return
		}
		if s.config.Lister == nil {
			s.sendError(c, "listing unavailable")
			return
		}

		ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
		files, err := s.config.Lister.List(ctx, scanner.ListOptions{})
		cancel()
		if err != nil {
			s.logger.Error("Listing failed", zap.String("client", c.id), zap.Error(err))
			s.sendError(c, "Failed to list logs")
			return
		}
		if files == nil {
			files = []scanner.FileRecord{}
		}
		s.sendTo(c, MessageTypeLogsList, files)

	case MessageTypeRegisterFile:
		var reg RegisterFileData
		if err := json.Unmarshal(msg.Data, &reg); err != nil || reg.Filename == "" {
			s.sendError(c, "invalid register:file payload")
			return
		}
		c.setHint(reg.Filename, reg.Size)
		s.logger.Debug("Client registered file",
			zap.String("client", c.id),
			zap.String("filename", reg.Filename),
			zap.Int64("size", reg.Size),
		)

	default:
		s.sendError(c, fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

// sendTo queues a single message for one client
func (s *Server) sendTo(c *client, typ MessageType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("Failed to marshal payload", zap.String("type", string(typ)), zap.Error(err))
		return
	}
	frame, err := json.Marshal(Message{Type: typ, Timestamp: time.Now(), Data: data})
	if err != nil {
		s.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	if !c.enqueue(frame) {
		metrics.RecordDropped("subscriber")
	}
}

func (s *Server) sendError(c *client, message string) {
	s.sendTo(c, MessageTypeError, ErrorData{Message: message})
}

// removeClient safely removes a client connection
func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	if _, exists := s.clients[c.id]; !exists {
		s.clientsMu.Unlock()
		return
	}
	delete(s.clients, c.id)
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	c.close()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")

	metrics.SetSubscribers(clientCount)
	s.logger.Info("Client disconnected", zap.String("client", c.id), zap.Int("total", clientCount))
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
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
