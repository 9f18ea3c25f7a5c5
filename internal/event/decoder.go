package event

import (
	"context"
	"io"

	"github.com/arya-analytics/murmur/internal/message"
	"go.uber.org/zap"
)

// Decoder turns an inbound byte stream into Message events.
type Decoder struct {
	Reader io.Reader
	Logger *zap.Logger
}

// Run decodes envelopes and pushes them onto events in arrival order. It
// returns nil when the stream ends cleanly or when ctx is cancelled, and the
// decode error otherwise.
func (d Decoder) Run(ctx context.Context, events chan<- Event) error {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dec := message.NewDecoder(d.Reader)
	for {
		env, err := dec.Decode()
		if err == io.EOF {
			logger.Debug("inbound stream closed")
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("failed to decode inbound message", zap.Error(err))
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case events <- Message{Envelope: env}:
		}
	}
}
