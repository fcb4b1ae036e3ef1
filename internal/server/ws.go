package server

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/vanderheijden86/blockmap/pkg/logging"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 8
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: sameOrigin,
}

// sameOrigin accepts requests without an Origin header and those whose
// Origin host matches the request host exactly.
func sameOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, strings.TrimSpace(r.Host))
}

// Message is one websocket frame in either direction. Clients send
// {"type":"command","name":"focus-in"}; the server sends "update" frames
// carrying the state and the SVG of the view, and "error" frames.
type Message struct {
	Type    string `json:"type"`
	Name    string `json:"name,omitempty"`
	State   *State `json:"state,omitempty"`
	SVG     string `json:"svg,omitempty"`
	Message string `json:"message,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	log     *logging.Logger
}

func newHub(l *logging.Logger) *hub {
	return &hub{clients: make(map[*client]struct{}), log: l}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// publish queues data for every client. Clients whose buffer is full are
// dropped.
func (h *hub) publish(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warning("dropping slow websocket client")
			delete(h.clients, c)
			c.close()
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

// update builds the frame for the current view.
func (s *Server) update() ([]byte, error) {
	st, ok := s.state()
	if !ok {
		return nil, errNothingRendered
	}
	svg, err := s.snapshotSVG()
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: "update", State: &st, SVG: string(svg)})
}

func (s *Server) broadcast() {
	if s.hub.len() == 0 {
		return
	}
	data, err := s.update()
	if err != nil {
		s.log.Warning("build update", "err", err)
		return
	}
	s.hub.publish(data)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.log.Warning("websocket upgrade", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if data, err := s.update(); err == nil {
		c.send <- data
	}
	s.hub.add(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writePump(c)
	}()
	s.readPump(c)
	s.hub.remove(c)
	<-done
	conn.Close()
}

func (s *Server) writePump(c *client) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.hub.remove(c)
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (s *Server) readPump(c *client) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warning("websocket read", "err", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reply(c, Message{Type: "error", Message: "malformed message"})
			continue
		}
		switch msg.Type {
		case "command":
			if err := s.runCommand(msg.Name); err != nil {
				s.reply(c, Message{Type: "error", Message: err.Error()})
			}
		case "ping":
			s.reply(c, Message{Type: "pong"})
		default:
			s.reply(c, Message{Type: "error", Message: "unknown message type " + msg.Type})
		}
	}
}

// reply queues msg for c only.
func (s *Server) reply(c *client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if _, ok := s.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
