package cluster

import (
	"sort"

	"github.com/arya-analytics/murmur/internal/message"
	"github.com/cockroachdb/errors"
)

var (
	// ErrNodeNotInTopology is returned when a topology does not list the host.
	ErrNodeNotInTopology = errors.New("topology does not contain host node")
	// ErrUnknownNeighbor is returned when confirming gossip from a node that is
	// not a neighbor of the host.
	ErrUnknownNeighbor = errors.New("unknown neighbor")
)

// Batch is the backlog owed to a single neighbor.
type Batch struct {
	To     string
	Values []message.Value
}

// State is the host's authority over everything it has seen and what each of
// its neighbors still needs. State is not safe for concurrent use; it is owned
// by a single goroutine for its entire lifetime.
type State struct {
	// NodeID is the id of the host.
	NodeID string
	// NodeIDs is every node in the cluster, the host included.
	NodeIDs   []string
	seen      values
	topology  map[string][]string
	neighbors map[string]*Neighbor
}

// New creates the state for host nodeID in a cluster of nodeIDs. Until a
// topology is set, every other node is a neighbor.
func New(nodeID string, nodeIDs []string) *State {
	s := &State{
		NodeID:    nodeID,
		NodeIDs:   append([]string(nil), nodeIDs...),
		seen:      make(values),
		neighbors: make(map[string]*Neighbor),
	}
	s.setNeighbors(nodeIDs)
	return s
}

// Receive records val as seen. It returns true only the first time val is
// observed, in which case val becomes pending for every neighbor other than
// from.
func (s *State) Receive(from string, val message.Value) bool {
	if !s.seen.add(val) {
		return false
	}
	for id, n := range s.neighbors {
		if id == from {
			continue
		}
		n.Receive(val)
	}
	return true
}

// Seen returns a snapshot of every value observed, in ascending order.
func (s *State) Seen() []message.Value { return s.seen.sorted() }

// Len returns the size of the seen-set.
func (s *State) Len() int { return len(s.seen) }

// Has returns true if val has been observed.
func (s *State) Has(val message.Value) bool { return s.seen.has(val) }

// SetTopology replaces the host's neighbors with the ones listed under its id
// in t. Progress towards previous neighbors is discarded, and each new
// neighbor starts out owing the entire seen-set.
func (s *State) SetTopology(t map[string][]string) error {
	adj, ok := t[s.NodeID]
	if !ok {
		return errors.Wrapf(ErrNodeNotInTopology, "%s", s.NodeID)
	}
	s.topology = t
	s.setNeighbors(adj)
	for _, n := range s.neighbors {
		for val := range s.seen {
			n.Receive(val)
		}
	}
	return nil
}

// Topology returns the last topology set, or nil if none has been.
func (s *State) Topology() map[string][]string { return s.topology }

// ConfirmGossip acknowledges vals as delivered to the neighbor from.
func (s *State) ConfirmGossip(from string, vals []message.Value) error {
	n, ok := s.neighbors[from]
	if !ok {
		return errors.Wrapf(ErrUnknownNeighbor, "%s", from)
	}
	n.ConfirmGossip(vals)
	return nil
}

// Neighbor returns the record for the neighbor id.
func (s *State) Neighbor(id string) (*Neighbor, bool) {
	n, ok := s.neighbors[id]
	return n, ok
}

// Neighbors returns the ids of the host's neighbors in ascending order.
func (s *State) Neighbors() []string {
	ids := make([]string, 0, len(s.neighbors))
	for id := range s.neighbors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Backlog returns one batch per neighbor with a non-empty backlog, ordered by
// neighbor id. It does not modify any backlog.
func (s *State) Backlog() []Batch {
	var batches []Batch
	for _, id := range s.Neighbors() {
		if n := s.neighbors[id]; n.Pending() > 0 {
			batches = append(batches, Batch{To: id, Values: n.ToGossip()})
		}
	}
	return batches
}

// Pending returns the total number of values owed across all neighbors.
func (s *State) Pending() (total int) {
	for _, n := range s.neighbors {
		total += n.Pending()
	}
	return total
}

func (s *State) setNeighbors(ids []string) {
	s.neighbors = make(map[string]*Neighbor, len(ids))
	for _, id := range ids {
		if id == s.NodeID {
			continue
		}
		s.neighbors[id] = newNeighbor(id)
	}
}
