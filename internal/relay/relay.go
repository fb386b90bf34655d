// Package relay forwards gaze samples from browser publishers to game subscribers.
//
// A browser running a webcam eye tracker connects to /ws/publish/:code and sends
// tracking.Message JSON. Games connect to /ws/gaze/:code and receive every valid
// message published under the same pairing code.
package relay

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/tomz197/dontblink/internal/log"
	"github.com/tomz197/dontblink/internal/tracking"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

// ErrInvalidCode is returned for malformed pairing codes.
var ErrInvalidCode = errors.New("invalid pairing code")

var codePattern = regexp.MustCompile(`^[A-Za-z0-9-]{4,64}$`)

// NewCode returns a fresh pairing code.
func NewCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// SubscribeURL returns the websocket URL a game dials to receive the samples
// published for code. base is the relay's public http(s) or ws(s) address.
func SubscribeURL(base, code string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws/gaze/" + url.PathEscape(code)
}

// PairURL returns the page a player opens in a browser to stream their gaze.
func PairURL(base, code string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	switch {
	case strings.HasPrefix(base, "wss://"):
		base = "https://" + strings.TrimPrefix(base, "wss://")
	case strings.HasPrefix(base, "ws://"):
		base = "http://" + strings.TrimPrefix(base, "ws://")
	}
	return base + "/?code=" + url.QueryEscape(code)
}

// ValidCode reports whether code can name a relay room.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

type subscriber struct {
	send chan []byte
}

// Hub fans published samples out to subscribers by pairing code.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*subscriber]struct{}
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
	rejected  atomic.Uint64

	logger *charmlog.Logger
}

// Stats are hub counters.
type Stats struct {
	Rooms       int    `json:"rooms"`
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
	Rejected    uint64 `json:"rejected"`
}

// NewHub creates an empty hub. A nil logger uses the default one.
func NewHub(logger *charmlog.Logger) *Hub {
	if logger == nil {
		logger = log.L()
	}
	return &Hub{
		rooms:  make(map[string]map[*subscriber]struct{}),
		logger: logger.With("component", "relay"),
	}
}

// subscribe registers a subscriber under code. It returns nil after Close.
func (h *Hub) subscribe(code string) *subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	sub := &subscriber{send: make(chan []byte, sendBuffer)}
	room, ok := h.rooms[code]
	if !ok {
		room = make(map[*subscriber]struct{})
		h.rooms[code] = room
	}
	room[sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(code string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[code]
	if !ok {
		return
	}
	if _, ok := room[sub]; !ok {
		return
	}
	delete(room, sub)
	close(sub.send)
	if len(room) == 0 {
		delete(h.rooms, code)
	}
}

// Publish validates data as a gaze message and delivers it to every subscriber
// of code. Slow subscribers drop the sample instead of blocking the publisher.
// It returns the number of subscribers that received it.
func (h *Hub) Publish(code string, data []byte) (int, error) {
	if !ValidCode(code) {
		return 0, ErrInvalidCode
	}
	if _, err := tracking.DecodeMessage(data); err != nil {
		h.rejected.Add(1)
		return 0, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for sub := range h.rooms[code] {
		select {
		case sub.send <- data:
			delivered++
		default:
			h.dropped.Add(1)
		}
	}
	h.published.Add(1)
	return delivered, nil
}

// Subscribers returns the number of subscribers for code.
func (h *Hub) Subscribers(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[code])
}

// Stats returns a snapshot of the hub counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	s := Stats{Rooms: len(h.rooms)}
	for _, room := range h.rooms {
		s.Subscribers += len(room)
	}
	h.mu.RUnlock()

	s.Published = h.published.Load()
	s.Dropped = h.dropped.Load()
	s.Rejected = h.rejected.Load()
	return s
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for code, room := range h.rooms {
		for sub := range room {
			close(sub.send)
		}
		delete(h.rooms, code)
	}
}

// RegisterRoutes mounts the relay endpoints on app.
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/publish/:code", checkCode, websocket.New(h.handlePublish))
	app.Get("/ws/gaze/:code", checkCode, websocket.New(h.handleSubscribe))

	app.Get("/api/pair", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"code": NewCode()})
	})
	app.Get("/api/relay/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.Stats())
	})
}

func checkCode(c *fiber.Ctx) error {
	if !ValidCode(c.Params("code")) {
		return fiber.NewError(fiber.StatusBadRequest, ErrInvalidCode.Error())
	}
	return c.Next()
}

func (h *Hub) handlePublish(c *websocket.Conn) {
	code := c.Params("code")
	logger := h.logger.With("code", code, "role", "publisher")
	logger.Info("connected")
	defer logger.Info("disconnected")

	c.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		if _, err := h.Publish(code, data); err != nil {
			logger.Debug("rejected sample", "err", err)
		}
	}
}

func (h *Hub) handleSubscribe(c *websocket.Conn) {
	code := c.Params("code")
	logger := h.logger.With("code", code, "role", "subscriber")

	sub := h.subscribe(code)
	if sub == nil {
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay closed"))
		return
	}
	logger.Info("connected", "subscribers", h.Subscribers(code))
	defer logger.Info("disconnected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(c, sub)
	}()

	// Reads only detect disconnects and keep the deadline fresh.
	c.SetReadLimit(maxMessageSize)
	_ = c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}

	h.unsubscribe(code, sub)
	<-done
}

// writePump is the only writer of data frames on c. A failed write closes the
// connection so the read loop ends too.
func (h *Hub) writePump(c *websocket.Conn, sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-sub.send:
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = c.Close()
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
