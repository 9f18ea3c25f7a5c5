package mock

import (
	"sort"

	"github.com/arya-analytics/murmur/internal/event"
	"github.com/arya-analytics/murmur/internal/handler"
	"github.com/arya-analytics/murmur/internal/message"
	"github.com/cockroachdb/errors"
)

// Network is an in-memory, synchronous cluster of nodes. Envelopes addressed to
// a node in the network are queued and delivered to that node's handler;
// everything else is considered client-bound and collected in Client.
type Network struct {
	// Drop decides whether an envelope between two nodes is lost in transit.
	Drop func(message.Envelope) bool
	// Client holds every envelope sent to a destination outside the network.
	Client   []message.Envelope
	nodes    map[string]*handler.Handler
	inFlight []message.Envelope
	clientID uint64
}

// route is the outbox of a single node.
type route struct{ net *Network }

// Encode implements handler.Outbox.
func (r route) Encode(env message.Envelope) error {
	if _, ok := r.net.nodes[env.Dest]; !ok {
		r.net.Client = append(r.net.Client, env)
		return nil
	}
	if r.net.Drop != nil && r.net.Drop(env) {
		return nil
	}
	r.net.inFlight = append(r.net.inFlight, env)
	return nil
}

// NewNetwork creates one node per id and initializes each of them with the
// full list of ids.
func NewNetwork(ids ...string) (*Network, error) {
	n := &Network{nodes: make(map[string]*handler.Handler, len(ids))}
	for _, id := range ids {
		h, err := handler.New(route{net: n}, handler.Config{})
		if err != nil {
			return nil, err
		}
		n.nodes[id] = h
	}
	for _, id := range ids {
		if err := n.Request(id, message.Init{NodeID: id, NodeIDs: ids}); err != nil {
			return nil, err
		}
	}
	n.Client = nil
	return n, nil
}

// Node returns the handler for id.
func (n *Network) Node(id string) (*handler.Handler, bool) {
	h, ok := n.nodes[id]
	return h, ok
}

// IDs returns the ids of every node in the network in ascending order.
func (n *Network) IDs() []string {
	ids := make([]string, 0, len(n.nodes))
	for id := range n.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Request sends p to node id from a client and delivers every message it
// causes.
func (n *Network) Request(id string, p message.Payload) error {
	h, ok := n.nodes[id]
	if !ok {
		return errors.Newf("no node %s", id)
	}
	n.clientID++
	env := message.Header{Src: "c1", Dest: id, ID: message.ID(n.clientID)}.With(p)
	if err := h.Handle(event.Message{Envelope: env}); err != nil {
		return err
	}
	return n.Deliver()
}

// Tick fires the timer of every node, in id order, and delivers every message
// that results.
func (n *Network) Tick() error {
	for _, id := range n.IDs() {
		if err := n.nodes[id].Handle(event.Tick{}); err != nil {
			return errors.Wrapf(err, "tick %s", id)
		}
	}
	return n.Deliver()
}

// Deliver hands in-flight envelopes to their destination until none remain.
func (n *Network) Deliver() error {
	for len(n.inFlight) > 0 {
		env := n.inFlight[0]
		n.inFlight = n.inFlight[1:]
		if err := n.nodes[env.Dest].Handle(event.Message{Envelope: env}); err != nil {
			return errors.Wrapf(err, "deliver %s to %s", env.Payload.Type(), env.Dest)
		}
	}
	return nil
}
