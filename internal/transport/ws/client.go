// Package ws implements the room channel over a persistent websocket. Server
// events arrive as tagged frames; host commands are fire-and-forget frames;
// the rejoin handshake is a request frame correlated with its reply by id.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/quizfund/hostsync/internal/transport"
	"github.com/quizfund/hostsync/internal/wire"
)

// Config holds configuration for the websocket client.
type Config struct {
	URL            string
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	RedialBase     time.Duration
	RedialMax      time.Duration
	MaxMessageSize int64
	RequestHeader  http.Header
	EventBuffer    int
}

// DefaultConfig returns default websocket client configuration.
func DefaultConfig(url string) Config {
	return Config{
		URL:            url,
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		RedialBase:     500 * time.Millisecond,
		RedialMax:      15 * time.Second,
		MaxMessageSize: 64 * 1024,
		EventBuffer:    100,
	}
}

// frame is the wire framing shared with the server.
type frame struct {
	Kind          string          `json:"kind"` // event | publish | request | reply
	Subject       string          `json:"subject,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// Client is a websocket-backed transport.Bus with automatic redial.
type Client struct {
	config Config

	events chan wire.Event
	states chan transport.ConnState

	mu      sync.Mutex
	conn    *websocket.Conn
	send    chan frame
	pending map[string]chan frame

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

var _ transport.Bus = (*Client)(nil)

// New starts the client. The dial loop runs until Close; every successful
// dial is announced on ConnStates with a fresh connection identity.
func New(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config:  config,
		events:  make(chan wire.Event, config.EventBuffer),
		states:  make(chan transport.ConnState, 8),
		pending: make(map[string]chan frame),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go c.dialLoop()
	return c
}

// Events returns the inbound server event stream.
func (c *Client) Events() <-chan wire.Event { return c.events }

// ConnStates returns connection transitions.
func (c *Client) ConnStates() <-chan transport.ConnState { return c.states }

// dialLoop maintains the connection, redialing with exponential backoff.
func (c *Client) dialLoop() {
	defer close(c.done)

	backoff := c.config.RedialBase
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, c.config.URL, c.config.RequestHeader)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Dur("retry_in", backoff).Str("url", c.config.URL).Msg("websocket dial failed")
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > c.config.RedialMax {
				backoff = c.config.RedialMax
			}
			continue
		}
		backoff = c.config.RedialBase

		connID := uuid.New().String()
		send := make(chan frame, 64)
		c.mu.Lock()
		c.conn = conn
		c.send = send
		c.mu.Unlock()

		log.Info().Str("conn_id", connID).Str("url", c.config.URL).Msg("websocket connected")
		c.pushState(transport.ConnState{ConnID: connID, Connected: true})

		stop := make(chan struct{})
		writeDone := make(chan struct{})
		go c.writePump(conn, send, stop, writeDone)
		c.readPump(conn)

		// Read pump returned: the connection is gone. The send channel is
		// never closed; enqueue may hold a reference to it concurrently, so
		// it is detached under the mutex and left to the GC.
		conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.send = nil
		c.failPending()
		c.mu.Unlock()
		close(stop)
		<-writeDone

		c.pushState(transport.ConnState{ConnID: connID, Connected: false})
		if c.ctx.Err() != nil {
			return
		}
		log.Warn().Str("conn_id", connID).Msg("websocket connection lost, redialing")
	}
}

// readPump reads frames until the connection fails.
func (c *Client) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(c.config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}

		var f frame
		if err := json.Unmarshal(message, &f); err != nil {
			log.Warn().Err(err).Msg("dropping undecodable frame")
			continue
		}
		c.handleFrame(f)
	}
}

func (c *Client) handleFrame(f frame) {
	switch f.Kind {
	case "event":
		var event wire.Event
		if err := json.Unmarshal(f.Data, &event); err != nil {
			log.Warn().Err(err).Msg("dropping undecodable event frame")
			return
		}
		select {
		case c.events <- event:
		default:
			log.Warn().Str("event_id", event.ID).Msg("event buffer full, dropping event")
		}
	case "reply":
		c.mu.Lock()
		ch, ok := c.pending[f.CorrelationID]
		if ok {
			delete(c.pending, f.CorrelationID)
		}
		c.mu.Unlock()
		if ok {
			ch <- f
		}
	default:
		log.Debug().Str("kind", f.Kind).Msg("ignoring unexpected frame kind")
	}
}

// writePump writes outbound frames and keepalive pings until stop closes.
func (c *Client) writePump(conn *websocket.Conn, send <-chan frame, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case f := <-send:
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := conn.WriteJSON(f); err != nil {
				log.Debug().Err(err).Msg("websocket write error")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) pushState(state transport.ConnState) {
	select {
	case c.states <- state:
	default:
		log.Warn().Msg("connection state buffer full, dropping transition")
	}
}

// enqueue hands a frame to the current connection's write pump.
func (c *Client) enqueue(f frame) error {
	c.mu.Lock()
	send := c.send
	c.mu.Unlock()
	if send == nil {
		return fmt.Errorf("not connected")
	}
	select {
	case send <- f:
		return nil
	default:
		return fmt.Errorf("send buffer full")
	}
}

// Publish sends a fire-and-forget frame.
func (c *Client) Publish(ctx context.Context, subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal publish payload: %w", err)
	}
	return c.enqueue(frame{Kind: "publish", Subject: subject, Data: data})
}

// Request sends a request frame and waits for the correlated reply.
func (c *Client) Request(ctx context.Context, subject string, v interface{}, out interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal request payload: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, transport.DefaultRequestTimeout)
		defer cancel()
	}

	corrID := uuid.New().String()
	replyCh := make(chan frame, 1)
	c.mu.Lock()
	c.pending[corrID] = replyCh
	c.mu.Unlock()

	if err := c.enqueue(frame{Kind: "request", Subject: subject, CorrelationID: corrID, Data: data}); err != nil {
		c.mu.Lock()
		delete(c.pending, corrID)
		c.mu.Unlock()
		return err
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, corrID)
		c.mu.Unlock()
		return ctx.Err()
	case reply, ok := <-replyCh:
		if !ok {
			return fmt.Errorf("connection lost before reply")
		}
		if err := json.Unmarshal(reply.Data, out); err != nil {
			return fmt.Errorf("unmarshal %s reply: %w", subject, err)
		}
		return nil
	}
}

// failPending closes outstanding reply channels. Caller holds c.mu.
func (c *Client) failPending() {
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// Close stops the dial loop and closes any live connection.
func (c *Client) Close() error {
	c.cancel()
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.Unlock()
	<-c.done
	return nil
}
