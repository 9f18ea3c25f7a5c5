package cluster

import "github.com/arya-analytics/murmur/internal/message"

// Neighbor tracks the anti-entropy progress towards one adjacent node. A value
// is either pending (still to be gossiped), confirmed (acknowledged by the
// neighbor), or unknown to the record. It is never both pending and confirmed.
type Neighbor struct {
	ID        string
	confirmed values
	toGossip  values
}

func newNeighbor(id string) *Neighbor {
	return &Neighbor{ID: id, confirmed: make(values), toGossip: make(values)}
}

// Receive marks val as pending for the neighbor unless the neighbor already
// acknowledged it.
func (n *Neighbor) Receive(val message.Value) {
	if n.confirmed.has(val) {
		return
	}
	n.toGossip.add(val)
}

// ConfirmGossip moves every value in vals from pending to confirmed. Confirming
// a value twice is a no-op.
func (n *Neighbor) ConfirmGossip(vals []message.Value) {
	for _, val := range vals {
		delete(n.toGossip, val)
		n.confirmed.add(val)
	}
}

// ToGossip returns the pending backlog in ascending order.
func (n *Neighbor) ToGossip() []message.Value { return n.toGossip.sorted() }

// Confirmed returns the acknowledged values in ascending order.
func (n *Neighbor) Confirmed() []message.Value { return n.confirmed.sorted() }

// Pending returns the size of the backlog.
func (n *Neighbor) Pending() int { return len(n.toGossip) }
