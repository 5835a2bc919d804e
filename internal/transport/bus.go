package transport

import (
	"context"
	"time"

	"github.com/quizfund/hostsync/internal/wire"
)

// ConnState reports a connection transition. ConnID is a fresh identity per
// established connection; a reconnect always produces a new ConnID even when
// the endpoint is unchanged.
type ConnState struct {
	ConnID    string
	Connected bool
}

// Bus is the persistent channel to the authoritative quiz server. Events and
// ConnStates deliver in arrival order; Publish is fire-and-forget; Request is
// the rejoin handshake.
type Bus interface {
	Events() <-chan wire.Event
	ConnStates() <-chan ConnState
	Publish(ctx context.Context, subject string, v interface{}) error
	Request(ctx context.Context, subject string, v interface{}, out interface{}) error
	Close() error
}

// DefaultRequestTimeout bounds the rejoin handshake when the caller's context
// carries no deadline.
const DefaultRequestTimeout = 5 * time.Second
