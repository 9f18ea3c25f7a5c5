// Package murmur runs a single node of a gossip broadcast cluster. A node reads
// envelopes from an inbound stream, answers them on an outbound stream, and
// periodically re-sends every neighbor the values it has not acknowledged yet
// until the whole cluster converges.
//
// Three goroutines make up a node. A decoder and a timer produce events into a
// single queue, and a handler consumes them one at a time. The handler is the
// only goroutine that ever touches the node's state.
package murmur

import (
	"context"
	"io"
	"sync"

	"github.com/arya-analytics/murmur/internal/event"
	"github.com/arya-analytics/murmur/internal/handler"
	"github.com/arya-analytics/murmur/internal/message"
	"github.com/arya-analytics/murmur/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Run operates a node that reads newline-delimited envelopes from r and writes
// its replies and gossip to w. It returns nil once r is exhausted, and
// otherwise the first fatal error hit while decoding or handling. If r is an
// io.Closer, it is closed when the node fails so a blocked read returns.
func Run(ctx context.Context, r io.Reader, w io.Writer, opts ...Option) error {
	o := newOptions(opts...)
	if err := validateOptions(o); err != nil {
		return err
	}
	metrics, err := telemetry.New(o.registerer)
	if err != nil {
		return err
	}
	h, err := handler.New(message.NewEncoder(w), handler.Config{
		Generator: o.generator,
		Metrics:   metrics,
		Logger:    o.logger.Named("handler"),
	})
	if err != nil {
		return err
	}

	events := make(chan event.Event, o.queueSize)
	g, gCtx := errgroup.WithContext(ctx)
	pCtx, stop := context.WithCancel(gCtx)
	decoder := event.Decoder{Reader: r, Logger: o.logger.Named("decoder")}
	timer := event.Timer{Interval: o.gossipInterval}
	var producers sync.WaitGroup
	defer stop()

	o.logger.Debug("starting node", zap.Duration("gossipInterval", o.gossipInterval))

	producers.Add(2)
	g.Go(func() error {
		defer producers.Done()
		// Ending input stops the timer.
		defer stop()
		return decoder.Run(pCtx, events)
	})
	g.Go(func() error {
		defer producers.Done()
		timer.Run(pCtx, events)
		return nil
	})
	g.Go(func() error {
		producers.Wait()
		close(events)
		return nil
	})
	g.Go(func() error {
		err := h.Process(gCtx, events)
		if err != nil {
			stop()
			if c, ok := r.(io.Closer); ok {
				_ = c.Close()
			}
		}
		return err
	})
	return g.Wait()
}
