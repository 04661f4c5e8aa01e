package hud

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/auth"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	readLimit    = 512
	// DefaultSendBuffer is the number of snapshots queued per client before it is dropped.
	DefaultSendBuffer = 16
)

// ErrHubClosed is reported to clients that connect after Close.
var ErrHubClosed = errors.New("hud hub closed")

// Options configures a Hub.
type Options struct {
	Logger       *logging.Logger
	Signer       *auth.Signer
	AllowOrigins []string
	Throttle     *Throttle
	SendBuffer   int
	// OnClients is called with the client count after every connect and disconnect.
	OnClients func(int)
}

type client struct {
	id   string
	conn *websocket.Conn
	pass *auth.Pass
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans HUD snapshots out to websocket subscribers.
type Hub struct {
	opts     Options
	log      *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	nextID    atomic.Uint64
	published atomic.Uint64
	throttled atomic.Uint64
	evicted   atomic.Uint64
}

// NewHub builds a hub. Without a signer every client is an observer.
func NewHub(opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = logging.L()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	h := &Hub{opts: opts, log: opts.Logger.With(logging.String("component", "hud")), clients: make(map[*client]struct{})}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			//1.- Non-browser clients send no origin.
			return true
		}
		_, ok := set[strings.ToLower(strings.TrimRight(origin, "/"))]
		return ok
	}
}

func (h *Hub) authenticate(r *http.Request) (*auth.Pass, error) {
	if h.opts.Signer == nil {
		return &auth.Pass{Ship: "*", Scope: auth.ScopeObserver}, nil
	}
	token := strings.TrimSpace(r.URL.Query().Get("pass"))
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-HUD-Pass"))
	}
	if token == "" {
		return nil, auth.ErrInvalidPass
	}
	return h.opts.Signer.Verify(token)
}

// ServeHTTP authenticates the pass and upgrades the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pass, err := h.authenticate(r)
	if err != nil {
		h.log.Warn("hud pass rejected", logging.String("remote", r.RemoteAddr), logging.Error(err))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("hud upgrade failed", logging.String("remote", r.RemoteAddr), logging.Error(err))
		return
	}

	c := &client{
		id:   "hud-" + strconv.FormatUint(h.nextID.Add(1), 10),
		conn: conn,
		pass: pass,
		send: make(chan []byte, h.opts.SendBuffer),
	}
	if !h.register(c) {
		conn.Close()
		return
	}
	h.log.Info("hud client connected",
		logging.String("client", c.id),
		logging.String("ship", pass.Ship),
		logging.String("scope", string(pass.Scope)))
	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.notify(count)
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	ok := h.dropLocked(c)
	count := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.notify(count)
	}
}

// dropLocked unregisters c and closes its queue. The caller holds h.mu so no
// publish can send on the closed queue.
func (h *Hub) dropLocked(c *client) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	c.close()
	h.opts.Throttle.Forget(c.id)
	return true
}

func (h *Hub) notify(count int) {
	if h.opts.OnClients != nil {
		h.opts.OnClients(count)
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	//1.- Inbound frames are ignored; the loop only exists to observe pongs and disconnects.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// Publish sends the snapshot to every client it is visible to and returns the
// number of deliveries queued. Throttled clients skip the frame. Clients whose
// queue is full are disconnected.
func (h *Hub) Publish(snap Snapshot) int {
	h.mu.Lock()
	if len(h.clients) == 0 {
		h.mu.Unlock()
		return 0
	}

	var full []byte
	delivered, evicted := 0, 0
	for c := range h.clients {
		var payload []byte
		if c.pass.Scope == auth.ScopeObserver {
			if full == nil {
				encoded, err := json.Marshal(snap)
				if err != nil {
					h.mu.Unlock()
					h.log.Error("hud encode failed", logging.Error(err))
					return delivered
				}
				full = encoded
			}
			payload = full
		} else {
			encoded, err := json.Marshal(snap.For(c.pass))
			if err != nil {
				h.log.Error("hud encode failed", logging.String("client", c.id), logging.Error(err))
				continue
			}
			payload = encoded
		}

		if !h.opts.Throttle.Allow(c.id, len(payload)) {
			h.throttled.Add(1)
			continue
		}
		//1.- Never block the frame loop on a slow reader.
		select {
		case c.send <- payload:
			delivered++
		default:
			h.evicted.Add(1)
			h.log.Warn("hud client evicted", logging.String("client", c.id))
			h.dropLocked(c)
			evicted++
		}
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.published.Add(1)
	if evicted > 0 {
		h.notify(count)
	}
	return delivered
}

// Feed returns a frame hook that publishes a snapshot once per interval of
// frame time. A non-positive interval publishes every frame.
func (h *Hub) Feed(s *sim.Sim, interval time.Duration) func(frame uint64, step time.Duration) {
	var since time.Duration
	first := true
	return func(frame uint64, step time.Duration) {
		since += step
		if !first && since < interval {
			return
		}
		first = false
		since = 0
		h.Publish(BuildSnapshot(s, frame))
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Stats reports publish counters.
func (h *Hub) Stats() (published, throttled, evicted uint64) {
	return h.published.Load(), h.throttled.Load(), h.evicted.Load()
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
	h.mu.Unlock()
	h.notify(0)
}
