// Package handler implements the node's protocol state machine. A Handler is
// the only consumer of a node's event stream and the exclusive owner of its
// cluster state, so nothing in this package synchronizes.
package handler

import (
	"context"

	"github.com/arya-analytics/murmur/internal/cluster"
	"github.com/arya-analytics/murmur/internal/event"
	"github.com/arya-analytics/murmur/internal/message"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

var (
	// ErrUninitialized is returned when a message that needs cluster state
	// arrives before init.
	ErrUninitialized = errors.New("state must be initialized")
	// ErrUnexpectedMessage is returned for acknowledgments of requests this
	// node never sends.
	ErrUnexpectedMessage = errors.New("unexpected message")
)

// Outbox receives every envelope the handler emits.
type Outbox interface {
	Encode(message.Envelope) error
}

type Handler struct {
	Config
	out    Outbox
	state  *cluster.State
	nextID uint64
}

func New(out Outbox, cfg Config) (*Handler, error) {
	cfg = cfg.Merge(DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Handler{Config: cfg, out: out, nextID: 1}, nil
}

// Process handles events one at a time, in the order they arrive, until events
// is closed, ctx is cancelled, or handling an event fails.
func (h *Handler) Process(ctx context.Context, events <-chan event.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := h.Handle(ev); err != nil {
				return err
			}
		}
	}
}

// Handle processes a single event to completion.
func (h *Handler) Handle(ev event.Event) error {
	switch ev := ev.(type) {
	case event.Message:
		return h.handleMessage(ev.Envelope)
	case event.Tick:
		return h.gossip()
	}
	return errors.AssertionFailedf("unknown event %T", ev)
}

// State returns the cluster state, or nil before init.
func (h *Handler) State() *cluster.State { return h.state }

func (h *Handler) handleMessage(env message.Envelope) error {
	t := env.Payload.Type()
	h.Metrics.ObserveReceived(t)
	h.Logger.Debug("handle", zap.String("type", string(t)), zap.String("src", env.Src))
	switch p := env.Payload.(type) {
	case message.Init:
		h.init(p)
		return h.reply(env.Header, message.InitOk{})
	case message.Echo:
		return h.reply(env.Header, message.EchoOk{Echo: p.Echo})
	case message.Generate:
		id, err := h.Generator.Generate()
		if err != nil {
			return errors.Wrap(err, "generate id")
		}
		return h.reply(env.Header, message.GenerateOk{ID: id})
	case message.Broadcast:
		s, err := h.ready()
		if err != nil {
			return err
		}
		h.receive(s, env.Src, p.Message)
		h.observe(s)
		return h.reply(env.Header, message.BroadcastOk{})
	case message.Read:
		s, err := h.ready()
		if err != nil {
			return err
		}
		return h.reply(env.Header, message.ReadOk{Messages: s.Seen()})
	case message.Topology:
		s, err := h.ready()
		if err != nil {
			return err
		}
		if err = s.SetTopology(p.Topology); err != nil {
			return err
		}
		h.Logger.Info("topology set",
			zap.String("host", s.NodeID),
			zap.Strings("neighbors", s.Neighbors()),
		)
		h.observe(s)
		return h.reply(env.Header, message.TopologyOk{})
	case message.Gossip:
		s, err := h.ready()
		if err != nil {
			return err
		}
		for _, val := range p.Seen {
			h.receive(s, env.Src, val)
		}
		h.observe(s)
		seen := p.Seen
		if seen == nil {
			seen = []message.Value{}
		}
		return h.reply(env.Header, message.GossipOk{Seen: seen})
	case message.GossipOk:
		s, err := h.ready()
		if err != nil {
			return err
		}
		if err = s.ConfirmGossip(env.Src, p.Seen); err != nil {
			return err
		}
		h.Logger.Debug("gossip confirmed", zap.String("peer", env.Src), zap.Int("size", len(p.Seen)))
		h.observe(s)
		return nil
	case message.InitOk, message.EchoOk, message.GenerateOk,
		message.BroadcastOk, message.ReadOk, message.TopologyOk:
		return errors.Wrapf(ErrUnexpectedMessage, "did not expect %s", t)
	}
	return errors.AssertionFailedf("unhandled payload %T", env.Payload)
}

func (h *Handler) init(p message.Init) {
	if h.state != nil {
		h.Logger.Warn("re-initializing, discarding state",
			zap.String("host", h.state.NodeID),
			zap.Int("seen", h.state.Len()),
		)
	}
	h.state = cluster.New(p.NodeID, p.NodeIDs)
	h.Logger.Info("initialized", zap.String("host", p.NodeID), zap.Strings("nodes", p.NodeIDs))
	h.observe(h.state)
}

// gossip sends every neighbor its entire backlog. Backlogs are only cleared by
// gossip_ok, so unacknowledged values go out again on the next tick.
func (h *Handler) gossip() error {
	if h.state == nil {
		return nil
	}
	for _, b := range h.state.Backlog() {
		h.Logger.Debug("gossip",
			zap.String("host", h.state.NodeID),
			zap.String("peer", b.To),
			zap.Int("size", len(b.Values)),
		)
		h.Metrics.GossipBatches.Inc()
		env := message.To(h.state.NodeID, b.To, h.id()).With(message.Gossip{Seen: b.Values})
		if err := h.send(env); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) receive(s *cluster.State, from string, val message.Value) {
	if s.Receive(from, val) {
		h.Logger.Debug("new value", zap.Int64("value", int64(val)), zap.String("from", from))
	}
}

func (h *Handler) ready() (*cluster.State, error) {
	if h.state == nil {
		return nil, ErrUninitialized
	}
	return h.state, nil
}

func (h *Handler) reply(req message.Header, p message.Payload) error {
	return h.send(req.Reply(h.id()).With(p))
}

func (h *Handler) send(env message.Envelope) error {
	if err := h.out.Encode(env); err != nil {
		return errors.Wrapf(err, "send %s to %s", env.Payload.Type(), env.Dest)
	}
	h.Metrics.ObserveSent(env.Payload.Type())
	return nil
}

func (h *Handler) id() uint64 {
	id := h.nextID
	h.nextID++
	return id
}

func (h *Handler) observe(s *cluster.State) {
	h.Metrics.Seen.Set(float64(s.Len()))
	h.Metrics.Pending.Set(float64(s.Pending()))
}
