package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/okayama-voice/opinion-map/internal/logger"
	"github.com/okayama-voice/opinion-map/internal/regions"
	"github.com/okayama-voice/opinion-map/internal/viewport"
)

const (
	// Time allowed to write a message to the client.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the client.
	pongWait = 60 * time.Second

	// Send pings to client with this period. Must be less than pongWait.
	pingPeriod = 15 * time.Second

	// Maximum message size allowed from client.
	maxMessageSize = 1024
)

// ClientMessage is sent by the browser.
type ClientMessage struct {
	Type  string `json:"type"` // subscribe, unsubscribe, zoomend
	Topic string `json:"topic,omitempty"`
	Zoom  int    `json:"zoom,omitempty"`
}

// ServerMessage is sent to the browser.
type ServerMessage struct {
	Type  string        `json:"type"` // event, attach, detach, tier, subscribed, unsubscribed, error
	Topic string        `json:"topic,omitempty"`
	Event *Event        `json:"event,omitempty"`
	Tier  *regions.Tier `json:"tier,omitempty"`
	Zoom  *int          `json:"zoom,omitempty"`
	URL   string        `json:"url,omitempty"`
	Error string        `json:"error,omitempty"`
}

// Server upgrades /realtime requests.
type Server struct {
	Hub *Hub
	// Origins allowed to open a socket. Empty allows any origin.
	Origins []string

	upgrader websocket.Upgrader
	once     sync.Once
}

func (s *Server) init() {
	s.once.Do(func() {
		allowed := make(map[string]bool, len(s.Origins))
		for _, o := range s.Origins {
			allowed[o] = true
		}
		s.upgrader = websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		}
	})
}

// ServeHTTP upgrades the connection and runs it until either side closes.
// ?zoom= sets the initial zoom of the connection's viewport session.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.init()

	zoom := viewport.DefaultZoom
	if z, err := parseZoom(r.URL.Query().Get("zoom")); err == nil {
		zoom = z
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.For("realtime").Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		hub:  s.Hub,
		out:  make(chan ServerMessage, 64),
	}
	c.run(r.Context(), zoom)
}

func parseZoom(s string) (int, error) {
	z, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return viewport.Clamp(z), nil
}

type client struct {
	id   string
	conn *websocket.Conn
	hub  *Hub
	out  chan ServerMessage

	ctx     context.Context
	session *viewport.Session
}

// send queues msg for the writer. It gives up once the connection is done.
func (c *client) send(msg ServerMessage) bool {
	select {
	case c.out <- msg:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// Attach and Detach make the client a viewport.Surface.
func (c *client) Attach(t regions.Tier) error {
	c.send(ServerMessage{Type: "attach", Tier: &t, URL: "/regions/" + t.String()})
	return nil
}

func (c *client) Detach(t regions.Tier) error {
	c.send(ServerMessage{Type: "detach", Tier: &t})
	return nil
}

func (c *client) run(parent context.Context, zoom int) {
	log := logger.For("realtime")
	ctx, cancel := context.WithCancel(context.Background())
	c.ctx = ctx
	defer func() {
		cancel()
		c.hub.UnsubscribeOwner(c.id)
		c.conn.Close()
		log.Debug("client disconnected", "client", c.id)
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop(parent, cancel)
	}()

	session, err := viewport.NewSession(c, zoom)
	if err == nil {
		c.session = session
		z := session.Zoom()
		tier := session.Current()
		c.send(ServerMessage{Type: "tier", Tier: &tier, Zoom: &z})
	}
	log.Debug("client connected", "client", c.id, "zoom", zoom)

	c.readLoop(cancel)
	wg.Wait()
}

func (c *client) readLoop(cancel context.CancelFunc) {
	defer cancel()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.For("realtime").Warn("websocket read failed", "client", c.id, "err", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.send(ServerMessage{Type: "error", Error: "invalid message"})
			continue
		}
		c.handle(msg)
	}
}

func (c *client) handle(msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		if !KnownTopic(msg.Topic) {
			c.send(ServerMessage{Type: "error", Topic: msg.Topic, Error: "unknown topic"})
			return
		}
		sub := c.hub.Subscribe(c.id, msg.Topic)
		go c.forward(sub)
		c.send(ServerMessage{Type: "subscribed", Topic: msg.Topic})

	case "unsubscribe":
		c.hub.UnsubscribeTopic(c.id, msg.Topic)
		c.send(ServerMessage{Type: "unsubscribed", Topic: msg.Topic})

	case "zoomend":
		if c.session == nil {
			return
		}
		tier, swapped, err := c.session.ZoomEnd(msg.Zoom)
		if err != nil {
			c.send(ServerMessage{Type: "error", Error: err.Error()})
			return
		}
		if swapped {
			z := c.session.Zoom()
			c.send(ServerMessage{Type: "tier", Tier: &tier, Zoom: &z})
		}

	default:
		c.send(ServerMessage{Type: "error", Error: "unknown message type"})
	}
}

// forward relays a subscription until it is closed.
func (c *client) forward(sub *Subscription) {
	for ev := range sub.C {
		ev := ev
		if !c.send(ServerMessage{Type: "event", Topic: ev.Topic, Event: &ev}) {
			return
		}
	}
}

func (c *client) writeLoop(parent context.Context, cancel context.CancelFunc) {
	defer func() {
		cancel()
		// Unblocks the reader when the writer stops first.
		c.conn.Close()
	}()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-parent.Done():
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
