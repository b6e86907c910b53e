package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/smarteating/tray/internal/app"
	"github.com/smarteating/tray/internal/logging"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	clientQueue    = 8
	maxMessageSize = 1024
	shutdownWait   = 3 * time.Second
)

// PlateView is the controller as the server sees it.
type PlateView interface {
	Snapshot() app.View
	Subscribe() <-chan app.View
	Refetch()
}

// Visibility receives whether any display is showing the plate screen.
type Visibility interface {
	SetVisible(visible bool)
}

// ImageSource serves cached slice photos.
type ImageSource interface {
	Get(ctx context.Context, src string) (data []byte, cached bool, err error)
}

// Message is the websocket envelope in both directions.
type Message struct {
	Type    string    `json:"type"`
	Data    *app.View `json:"data,omitempty"`
	Visible *bool     `json:"visible,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Message types.
const (
	TypeView       = "view"
	TypeVisibility = "visibility"
	TypeRefetch    = "refetch"
	TypeError      = "error"
)

// Server exposes the plate view over HTTP and a websocket feed.
type Server struct {
	view       PlateView
	visibility Visibility
	images     ImageSource
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	router     *mux.Router

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	id      string
	conn    *websocket.Conn
	out     chan Message
	visible bool
}

// New builds a server. images may be nil, in which case /api/images is 404.
func New(view PlateView, visibility Visibility, images ImageSource, logger *slog.Logger) *Server {
	s := &Server{
		view:       view,
		visibility: visibility,
		images:     images,
		logger:     logging.OrNop(logger).With("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Displays are served from anywhere on the kiosk's LAN.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/plate", s.handlePlate).Methods(http.MethodGet)
	if s.images != nil {
		r.HandleFunc("/api/images", s.handleImage).Methods(http.MethodGet)
	}
	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	return r
}

// Handler returns the HTTP handler without starting the view feed.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on addr and pushes views to websocket clients until ctx ends.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go s.broadcast(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownWait)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.closeAll()
	}()

	s.logger.Info("status server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handlePlate(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.view.Snapshot()); err != nil {
		s.logger.Warn("encode plate view", "error", err)
	}
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Query().Get("src")
	if src == "" {
		http.Error(w, "missing src", http.StatusBadRequest)
		return
	}
	// Only photos of the plate on screen are served; anything else would
	// turn the kiosk into an open proxy and fill the cache.
	if !slices.Contains(s.view.Snapshot().Meal.ImageURLs(), src) {
		http.NotFound(w, r)
		return
	}
	data, cached, err := s.images.Get(r.Context(), src)
	if err != nil {
		s.logger.Warn("image unavailable", "src", src, "error", err)
		http.Error(w, "image unavailable", http.StatusBadGateway)
		return
	}
	cache := "miss"
	if cached {
		cache = "hit"
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "max-age=86400")
	w.Header().Set("X-Cache", cache)
	_, _ = w.Write(data)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:      uuid.New().String(),
		conn:    conn,
		out:     make(chan Message, clientQueue),
		visible: true,
	}
	s.add(c)
	defer s.remove(c)

	view := s.view.Snapshot()
	c.out <- Message{Type: TypeView, Data: &view}

	done := make(chan struct{})
	defer close(done)
	go s.writeLoop(c, done)

	s.readLoop(c)
}

func (s *Server) readLoop(c *client) {
	log := s.logger.With("client_id", c.id)
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read failed", "error", err)
			}
			return
		}
		switch msg.Type {
		case TypeVisibility:
			if msg.Visible == nil {
				s.send(c, Message{Type: TypeError, Message: "visibility requires visible"})
				continue
			}
			s.setClientVisible(c, *msg.Visible)
		case TypeRefetch:
			log.Info("refetch requested")
			s.view.Refetch()
		default:
			s.send(c, Message{Type: TypeError, Message: "unknown message type"})
		}
	}
}

// writeLoop owns all writes to the connection.
func (s *Server) writeLoop(c *client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case msg := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				s.logger.Debug("websocket write failed", "client_id", c.id, "error", err)
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (s *Server) broadcast(ctx context.Context) {
	views := s.view.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-views:
			s.mu.Lock()
			for _, c := range s.clients {
				s.send(c, Message{Type: TypeView, Data: &v})
			}
			s.mu.Unlock()
		}
	}
}

// send queues msg without blocking; a client too slow to drain its queue
// misses views until it catches up.
func (s *Server) send(c *client, msg Message) {
	select {
	case c.out <- msg:
	default:
		s.logger.Debug("websocket client queue full", "client_id", c.id, "type", msg.Type)
	}
}

func (s *Server) add(c *client) {
	s.mu.Lock()
	s.clients[c.id] = c
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Info("display connected", "client_id", c.id, "clients", n)
	s.updateVisibility()
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	n := len(s.clients)
	s.mu.Unlock()
	_ = c.conn.Close()
	s.logger.Info("display disconnected", "client_id", c.id, "clients", n)
	s.updateVisibility()
}

func (s *Server) setClientVisible(c *client, visible bool) {
	s.mu.Lock()
	c.visible = visible
	s.mu.Unlock()
	s.updateVisibility()
}

// updateVisibility reports the plate screen visible when no display is
// connected or when any connected display shows it.
func (s *Server) updateVisibility() {
	if s.visibility == nil {
		return
	}
	s.mu.Lock()
	visible := len(s.clients) == 0
	for _, c := range s.clients {
		if c.visible {
			visible = true
			break
		}
	}
	s.mu.Unlock()
	s.visibility.SetVisible(visible)
}

// Clients returns the number of connected displays.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = c.conn.Close()
	}
}
