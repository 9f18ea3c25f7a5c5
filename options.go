package murmur

import (
	"time"

	"github.com/arya-analytics/murmur/internal/ident"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Generator produces the globally unique ids handed out by generate requests.
type Generator = ident.Generator

type Option func(*options)

type options struct {
	// gossipInterval is the period between two gossip rounds. Every round sends
	// each neighbor its full unacknowledged backlog.
	gossipInterval time.Duration
	// logger is the root logger for the node. It must not write to the
	// node's outbound stream.
	logger *zap.Logger
	// generator backs generate requests.
	generator Generator
	// registerer is where the node's metrics are registered.
	registerer prometheus.Registerer
	// queueSize is the buffer of the event queue shared by the decoder and the
	// timer. Zero makes every enqueue a rendezvous with the handler.
	queueSize int
}

func newOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	mergeDefaultOptions(o)
	return o
}

func validateOptions(o *options) error {
	if o.gossipInterval <= 0 {
		return errors.Newf("gossip interval must be positive, got %s", o.gossipInterval)
	}
	if o.queueSize < 0 {
		return errors.Newf("queue size must not be negative, got %d", o.queueSize)
	}
	return nil
}

func mergeDefaultOptions(o *options) {
	def := defaultOptions()

	// |||| GOSSIP ||||

	if o.gossipInterval == 0 {
		o.gossipInterval = def.gossipInterval
	}

	// |||| LOGGING ||||

	if o.logger == nil {
		o.logger = def.logger
	}

	// |||| GENERATOR ||||

	if o.generator == nil {
		o.generator = def.generator
	}

	// |||| METRICS ||||

	if o.registerer == nil {
		o.registerer = def.registerer
	}
}

func defaultOptions() *options {
	return &options{
		gossipInterval: DefaultGossipInterval,
		logger:         zap.NewNop(),
		generator:      ident.UUID{},
		registerer:     prometheus.NewRegistry(),
	}
}

// DefaultGossipInterval is used when WithGossipInterval is not provided.
const DefaultGossipInterval = 200 * time.Millisecond

func WithGossipInterval(d time.Duration) Option {
	return func(o *options) { o.gossipInterval = d }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithGenerator(g Generator) Option {
	return func(o *options) { o.generator = g }
}

// WithRegisterer registers the node's metrics with reg instead of a private
// registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

func WithQueueSize(n int) Option {
	return func(o *options) { o.queueSize = n }
}
