// Package event defines the events consumed by a node's handler and the two
// producers that emit them: a Decoder reading envelopes off the wire and a
// Timer emitting periodic ticks. Both producers push into the same channel,
// which must have exactly one consumer.
package event

import (
	"time"

	"github.com/arya-analytics/murmur/internal/message"
)

// Event is either a Message or a Tick.
type Event interface {
	event()
}

// Message is an envelope decoded from the inbound stream.
type Message struct {
	message.Envelope
}

// Tick marks the passing of one gossip interval.
type Tick struct {
	At time.Time
}

func (Message) event() {}

func (Tick) event() {}
