// Package natsbus implements the room channel over core NATS: a subscription
// for server events, plain publishes for host commands, and request/reply for
// the rejoin handshake. JetStream is deliberately not used - recovery is
// snapshot-based, so replaying event history on reconnect would be wrong.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/quizfund/hostsync/internal/transport"
	"github.com/quizfund/hostsync/internal/wire"
)

// Config holds configuration for the NATS bus.
type Config struct {
	URL           string
	RoomID        string
	MaxReconnects int
	ReconnectWait time.Duration
	EventBuffer   int
}

// DefaultConfig returns default NATS bus configuration.
func DefaultConfig(roomID string) Config {
	return Config{
		URL:           nats.DefaultURL,
		RoomID:        roomID,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		EventBuffer:   100,
	}
}

// Bus is a NATS-backed transport.Bus.
type Bus struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	events chan wire.Event
	states chan transport.ConnState
}

var _ transport.Bus = (*Bus)(nil)

// New connects to NATS and subscribes to the room's event subject. Each
// established connection (including automatic reconnects) is announced on
// ConnStates with a fresh connection identity.
func New(config Config) (*Bus, error) {
	b := &Bus{
		events: make(chan wire.Event, config.EventBuffer),
		states: make(chan transport.ConnState, 8),
	}

	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
			b.pushState(transport.ConnState{Connected: false})
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			connID := uuid.New().String()
			log.Info().Str("url", nc.ConnectedUrl()).Str("conn_id", connID).Msg("NATS reconnected")
			b.pushState(transport.ConnState{ConnID: connID, Connected: true})
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	b.nc = nc

	sub, err := nc.Subscribe(wire.EventsSubject(config.RoomID), b.handleMessage)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe to room events: %w", err)
	}
	b.sub = sub

	// Initial connection identity
	connID := uuid.New().String()
	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("room_id", config.RoomID).
		Str("conn_id", connID).
		Msg("connected to room event channel")
	b.pushState(transport.ConnState{ConnID: connID, Connected: true})

	return b, nil
}

func (b *Bus) handleMessage(msg *nats.Msg) {
	var event wire.Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping undecodable event")
		return
	}

	select {
	case b.events <- event:
	default:
		log.Warn().
			Str("event_id", event.ID).
			Str("type", string(event.Type)).
			Msg("event buffer full, dropping event")
	}
}

func (b *Bus) pushState(state transport.ConnState) {
	select {
	case b.states <- state:
	default:
		log.Warn().Msg("connection state buffer full, dropping transition")
	}
}

// Events returns the inbound server event stream.
func (b *Bus) Events() <-chan wire.Event { return b.events }

// ConnStates returns connection transitions.
func (b *Bus) ConnStates() <-chan transport.ConnState { return b.states }

// Publish sends a fire-and-forget message.
func (b *Bus) Publish(ctx context.Context, subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal publish payload: %w", err)
	}
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Request performs a request/reply exchange, used for the rejoin handshake.
func (b *Bus) Request(ctx context.Context, subject string, v interface{}, out interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal request payload: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, transport.DefaultRequestTimeout)
		defer cancel()
	}

	msg, err := b.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("request %s: %w", subject, err)
	}
	if err := json.Unmarshal(msg.Data, out); err != nil {
		return fmt.Errorf("unmarshal %s reply: %w", subject, err)
	}
	return nil
}

// Close drains the subscription and closes the connection.
func (b *Bus) Close() error {
	if b.sub != nil {
		if err := b.sub.Unsubscribe(); err != nil {
			log.Error().Err(err).Msg("failed to unsubscribe from room events")
		}
	}
	if b.nc != nil {
		b.nc.Close()
	}
	return nil
}
