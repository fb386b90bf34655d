// Package tracking acquires gaze samples from an eye tracker or the pointer
// and feeds them through the gaze processor.
package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/tomz197/dontblink/internal/gaze"
	"github.com/tomz197/dontblink/internal/loop/config"
)

// Source delivers gaze messages with X and Y normalized to [0,1] of the viewport.
type Source interface {
	// Start acquires the source. It blocks until the source is ready or has failed.
	Start(ctx context.Context) error
	// Messages returns the sample stream. It is closed when the source stops.
	Messages() <-chan Message
	// Err returns the reason the stream closed, if any.
	Err() error
	Close() error
}

// Message is the gaze wire format shared by eye tracker publishers.
// X and Y are nil when the tracker lost the face.
type Message struct {
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	T          int64    `json:"t,omitempty"` // Unix milliseconds
	Confidence *float64 `json:"confidence,omitempty"`
}

// Lost reports whether the message signals that no gaze is available.
func (m Message) Lost() bool {
	return m.X == nil || m.Y == nil
}

// Sample converts the message to a normalized gaze sample, using now when
// the message has no timestamp.
func (m Message) Sample(now time.Time) gaze.Sample {
	s := gaze.Sample{Timestamp: now, Confidence: m.Confidence}
	if m.X != nil {
		s.X = *m.X
	}
	if m.Y != nil {
		s.Y = *m.Y
	}
	if m.T > 0 {
		s.Timestamp = time.UnixMilli(m.T)
	}
	return s
}

// DecodeMessage parses one wire message.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode gaze message: %w", err)
	}
	return m, nil
}

// EyeSource reads gaze messages from a websocket stream.
type EyeSource struct {
	url      string
	retries  int
	debounce time.Duration
	dialer   websocket.Dialer
	logger   *charmlog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	err    error
	closed bool

	out chan Message
}

// EyeSourceOptions configures an EyeSource.
type EyeSourceOptions struct {
	Retries  int           // Additional dial attempts after the first
	Debounce time.Duration // Minimum spacing between delivered samples
	Logger   *charmlog.Logger
}

// NewEyeSource creates a source that dials url on Start.
func NewEyeSource(url string, opts EyeSourceOptions) *EyeSource {
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Logger == nil {
		opts.Logger = charmlog.Default()
	}
	return &EyeSource{
		url:      url,
		retries:  opts.Retries,
		debounce: opts.Debounce,
		dialer: websocket.Dialer{
			HandshakeTimeout: config.EyeHandshakeTimeout,
		},
		logger: opts.Logger,
		out:    make(chan Message, 64),
	}
}

// Start dials the stream, retrying on failure, and starts the read loop.
func (s *EyeSource) Start(ctx context.Context) error {
	if strings.TrimSpace(s.url) == "" {
		return ErrNoSource
	}

	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var conn *websocket.Conn
		var resp *http.Response
		conn, resp, err = s.dialer.DialContext(ctx, s.url, nil)
		if err == nil {
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				conn.Close()
				return ErrTrackingLost
			}
			s.conn = conn
			s.mu.Unlock()

			go s.readLoop(conn)
			return nil
		}

		err = classifyDialError(resp, err)
		s.logger.Warn("eye tracker dial failed", "attempt", attempt+1, "err", err)
		if errors.Is(err, ErrPermissionDenied) {
			break
		}
	}
	return err
}

func classifyDialError(resp *http.Response, err error) error {
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, resp.Status)
	}
	return fmt.Errorf("%w: %v", ErrInitFailed, err)
}

func (s *EyeSource) readLoop(conn *websocket.Conn) {
	defer close(s.out)

	var last time.Time
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			if !s.closed {
				s.err = fmt.Errorf("%w: %v", ErrTrackingLost, err)
			}
			s.mu.Unlock()
			return
		}

		msg, err := DecodeMessage(data)
		if err != nil {
			s.logger.Debug("dropping gaze message", "err", err)
			continue
		}

		now := time.Now()
		if !msg.Lost() && s.debounce > 0 && now.Sub(last) < s.debounce {
			continue
		}
		last = now

		select {
		case s.out <- msg:
		default:
			// Consumer is behind; drop the sample.
		}
	}
}

// Messages returns the sample stream.
func (s *EyeSource) Messages() <-chan Message {
	return s.out
}

// Err returns why the stream stopped.
func (s *EyeSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the source.
func (s *EyeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn == nil {
		return nil
	}
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return s.conn.Close()
}

// Compile-time check that EyeSource implements Source.
var _ Source = (*EyeSource)(nil)
