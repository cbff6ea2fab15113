package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/conneroisu/reshape/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Messages carry sample lines.
	maxMessageSize = 1 << 20
)

// Client is one connected playground.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub tracks connected clients and fans broadcasts out to them. A client's
// send channel is closed only under mutex, after the client is removed from
// the map, so senders that hold the read lock and find the client present
// never write to a closed channel.
type Hub struct {
	clients   map[string]*Client
	mutex     sync.RWMutex
	broadcast chan []byte
	done      chan struct{}
	stopped   bool
	logger    logging.Logger
}

func newHub(logger logging.Logger) *Hub {
	return &Hub{
		clients:   make(map[string]*Client),
		broadcast: make(chan []byte, 16),
		done:      make(chan struct{}),
		logger:    logger.WithComponent("websocket"),
	}
}

// run fans out broadcasts until ctx is done, then disconnects every client.
func (h *Hub) run(ctx context.Context) {
	defer func() {
		h.mutex.Lock()
		h.stopped = true
		close(h.done)
		for id, client := range h.clients {
			delete(h.clients, id)
			close(client.send)
		}
		h.mutex.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case message := <-h.broadcast:
			h.mutex.Lock()
			for id, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client: drop it rather than block the hub.
					delete(h.clients, id)
					close(client.send)
					h.logger.Warn(ctx, nil, "dropping slow client", "client_id", id)
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *Hub) add(client *Client) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.stopped {
		return false
	}
	h.clients[client.id] = client
	h.logger.Info(context.Background(), "client connected", "client_id", client.id, "clients", len(h.clients))
	return true
}

func (h *Hub) remove(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client.id]; !ok {
		return
	}
	delete(h.clients, client.id)
	close(client.send)
	h.logger.Info(context.Background(), "client disconnected", "client_id", client.id, "clients", len(h.clients))
}

// send queues msg for one client. It reports false once the client has
// been removed or its queue is full.
func (h *Hub) send(client *Client, msg []byte) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, ok := h.clients[client.id]; !ok {
		return false
	}
	select {
	case client.send <- msg:
		return true
	default:
		return false
	}
}

// Broadcast sends v as JSON to every client. It does not block when the
// hub is busy or stopped.
func (h *Hub) Broadcast(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast: %w", err)
	}

	select {
	case <-h.done:
		return fmt.Errorf("hub stopped")
	default:
	}

	select {
	case h.broadcast <- data:
		return nil
	default:
		return fmt.Errorf("broadcast queue full")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.checkOrigin(r) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.allowedHosts(),
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &Client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, 32),
		hub:  s.hub,
	}

	if !s.hub.add(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go client.writePump()
	client.readPump(s.evaluator)
}

// allowedHosts lists the origin hosts accepted for websocket connections.
func (s *Server) allowedHosts() []string {
	port := s.config.Server.Port
	hosts := []string{
		fmt.Sprintf("%s:%d", s.config.Server.Host, port),
		fmt.Sprintf("localhost:%d", port),
		fmt.Sprintf("127.0.0.1:%d", port),
	}
	for _, origin := range s.config.Server.AllowedOrigins {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}

// checkOrigin validates the request origin for security
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}

	for _, allowed := range s.allowedHosts() {
		if originURL.Host == allowed {
			return true
		}
	}
	return false
}

// readPump treats every incoming message as a transform request and queues
// the response for the write pump.
func (c *Client) readPump(eval *Evaluator) {
	defer func() {
		c.hub.remove(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := context.Background()
	for {
		readCtx, cancel := context.WithTimeout(ctx, pongWait)
		_, data, err := c.conn.Read(readCtx)
		cancel()

		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				c.hub.logger.Debug(ctx, "websocket read ended", "client_id", c.id, "error", err.Error())
			}
			return
		}

		var req TransformRequest
		var reply any
		if err := json.Unmarshal(data, &req); err != nil {
			reply = UpdateMessage{Type: "error", Error: "invalid request: " + err.Error(), Timestamp: time.Now()}
		} else {
			reply = eval.Transform(req)
		}

		out, err := json.Marshal(reply)
		if err != nil {
			c.hub.logger.Error(ctx, err, "failed to marshal reply", "client_id", c.id)
			continue
		}

		if !c.hub.send(c, out) {
			return
		}
	}
}

// writePump pumps messages to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := context.Background()
	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.hub.logger.Debug(ctx, "websocket write failed", "client_id", c.id, "error", err.Error())
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
