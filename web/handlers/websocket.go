package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scrypster/energy-services/internal/chat"
	"github.com/scrypster/energy-services/internal/llm"
	"github.com/scrypster/energy-services/internal/metrics"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"        //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	"nhooyr.io/websocket/wsjson" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
)

// Socket message types.
const (
	SocketReply  = "reply"
	SocketNotice = "notice"
)

// NoticeDatasetsRefreshed tells clients the cached datasets were dropped and
// the next answer will use fresh data.
const NoticeDatasetsRefreshed = "datasets_refreshed"

// SocketMessage is one frame sent to a chat socket client.
type SocketMessage struct {
	Type   string      `json:"type"`
	Reply  *chat.Reply `json:"reply,omitempty"`
	Notice string      `json:"notice,omitempty"`
}

// ChatHubConfig configures a ChatHub.
type ChatHubConfig struct {
	AllowedOrigins    []string // Full origins (scheme://host:port) allowed to connect
	RequestsPerSecond float64  // Per-connection sustained question rate; <= 0 disables limiting
	Burst             int      // Per-connection burst
	MaxHistory        int      // Messages kept per connection; <= 0 keeps everything the service accepts
}

// ChatHub serves /ws/chat. Each connection keeps its own conversation and
// gets exactly one reply per question, in order.
type ChatHub struct {
	chatter Chatter
	cfg     ChatHubConfig
	origins []string
	metrics *metrics.Metrics

	clients    map[clientInterface]bool
	broadcast  chan interface{}
	register   chan clientInterface
	unregister chan clientInterface
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
}

// clientInterface allows for both real clients and mock clients.
type clientInterface interface {
	enqueue(data []byte) bool
	closeSend()
	close()
}

// maxQueuedQuestions bounds questions read ahead of the one being answered.
const maxQueuedQuestions = 4

// turn is one question read from the socket, already checked against the
// connection's rate limit.
type turn struct {
	req     ChatRequest
	limited bool
}

// Client is one chat socket connection. The read pump only reads; questions
// are answered in order by answerLoop, so a disconnect is noticed while an
// answer is still in flight and cancels it through ctx.
type Client struct {
	hub     *ChatHub
	conn    *websocket.Conn //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	limiter *rate.Limiter
	history []llm.Message // owned by answerLoop

	ctx    context.Context
	cancel context.CancelFunc
	turns  chan turn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// enqueue queues data for the write pump. It reports false when the client
// is closed or its buffer is full.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) close() {
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}
}

// NewChatHub creates a new chat hub. m may be nil.
func NewChatHub(chatter Chatter, cfg ChatHubConfig, m *metrics.Metrics) *ChatHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &ChatHub{
		chatter:    chatter,
		cfg:        cfg,
		origins:    originPatterns(cfg.AllowedOrigins),
		metrics:    m,
		clients:    make(map[clientInterface]bool),
		broadcast:  make(chan interface{}, 64),
		register:   make(chan clientInterface),
		unregister: make(chan clientInterface),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's message processing loop.
func (h *ChatHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.SocketClients(count)
			log.Printf("Chat socket connected (total: %d)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.SocketClients(count)
			log.Printf("Chat socket disconnected (total: %d)", count)

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				log.Printf("ERROR: Failed to marshal chat socket message: %v", err)
				continue
			}

			// Full Lock: slow clients are dropped from the map.
			h.mu.Lock()
			for client := range h.clients {
				if !client.enqueue(data) {
					client.closeSend()
					delete(h.clients, client)
				}
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.SocketClients(count)

		case <-h.ctx.Done():
			log.Println("Chat hub stopping...")
			return
		}
	}
}

// Stop gracefully shuts down the hub and closes every connection.
func (h *ChatHub) Stop() {
	h.cancel()

	h.mu.Lock()
	for client := range h.clients {
		client.closeSend()
		client.close()
	}
	h.clients = make(map[clientInterface]bool)
	h.mu.Unlock()
	h.metrics.SocketClients(0)
}

// ClientCount returns the number of registered clients.
func (h *ChatHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to all connected clients.
func (h *ChatHub) Broadcast(message interface{}) {
	select {
	case h.broadcast <- message:
	default:
		log.Println("WARNING: Chat socket broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub.
func (h *ChatHub) Register(client clientInterface) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		client.closeSend()
	}
}

// Unregister removes a client from the hub.
func (h *ChatHub) Unregister(client clientInterface) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *ChatHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{ //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		OriginPatterns: h.origins,
	})
	if err != nil {
		log.Printf("ERROR: Chat socket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(maxChatBodyBytes)

	limit := rate.Inf
	if h.cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(h.cfg.RequestsPerSecond)
	}
	ctx, cancel := context.WithCancel(h.ctx)
	client := &Client{
		hub:     h,
		conn:    conn,
		limiter: rate.NewLimiter(limit, max(h.cfg.Burst, 1)),
		ctx:     ctx,
		cancel:  cancel,
		turns:   make(chan turn, maxQueuedQuestions),
		send:    make(chan []byte, 16),
	}

	h.Register(client)

	go client.writePump()
	go client.answerLoop()
	go client.readPump()
}

// writePump sends queued frames to the connection.
func (c *Client) writePump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(c.hub.ctx, 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		cancel()

		if err != nil {
			log.Printf("ERROR: Chat socket write failed: %v", err)
			return
		}
	}
}

// readPump reads questions and queues them for answerLoop. When the socket
// goes away the connection context is cancelled, which aborts any answer
// still in flight.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		close(c.turns)
		c.hub.Unregister(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}()

	for {
		var req ChatRequest
		if err := wsjson.Read(c.ctx, c.conn, &req); err != nil { //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
			return
		}

		select {
		case c.turns <- turn{req: req, limited: !c.limiter.Allow()}:
		case <-c.ctx.Done():
			return
		}
	}
}

// answerLoop answers queued questions one at a time, in arrival order.
func (c *Client) answerLoop() {
	for t := range c.turns {
		if c.ctx.Err() != nil {
			continue
		}
		reply := c.answer(t)
		if c.ctx.Err() != nil {
			continue
		}
		data, err := json.Marshal(SocketMessage{Type: SocketReply, Reply: &reply})
		if err != nil {
			log.Printf("ERROR: Failed to marshal chat reply: %v", err)
			continue
		}
		if !c.enqueue(data) {
			c.cancel()
		}
	}
}

func (c *Client) answer(t turn) chat.Reply {
	req := t.req
	if t.limited {
		return chat.Reply{
			RequestID: uuid.New().String(),
			Content:   llm.UserMessage(llm.KindRateLimited),
			Role:      llm.RoleAssistant,
			Error:     true,
			Kind:      string(llm.KindRateLimited),
		}
	}

	reply := c.hub.chatter.Send(c.ctx, c.history, req.Message)
	if !reply.Error {
		c.history = append(c.history,
			llm.Message{Role: llm.RoleUser, Content: strings.TrimSpace(req.Message)},
			llm.Message{Role: llm.RoleAssistant, Content: reply.Content},
		)
		if limit := c.hub.cfg.MaxHistory; limit > 0 && len(c.history) > limit {
			c.history = c.history[len(c.history)-limit:]
		}
	}
	return reply
}

// originPatterns converts full origins into the host patterns the
// websocket library matches against.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}

// MockClient is a mock client for testing.
type MockClient struct {
	SendChan chan []byte
	mu       sync.Mutex
	closed   bool
}

func (m *MockClient) enqueue(data []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	select {
	case m.SendChan <- data:
		return true
	default:
		return false
	}
}

func (m *MockClient) closeSend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.SendChan)
	}
}

func (m *MockClient) close() {
	// No-op for mock client
}
