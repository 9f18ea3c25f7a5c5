package message

// Value is a single broadcast datum. Values are only ever compared and ordered.
type Value int64

// Type is the wire discriminator carried in the "type" field of a message body.
type Type string

const (
	TypeInit        Type = "init"
	TypeInitOk      Type = "init_ok"
	TypeEcho        Type = "echo"
	TypeEchoOk      Type = "echo_ok"
	TypeGenerate    Type = "generate"
	TypeGenerateOk  Type = "generate_ok"
	TypeBroadcast   Type = "broadcast"
	TypeBroadcastOk Type = "broadcast_ok"
	TypeRead        Type = "read"
	TypeReadOk      Type = "read_ok"
	TypeTopology    Type = "topology"
	TypeTopologyOk  Type = "topology_ok"
	TypeGossip      Type = "gossip"
	TypeGossipOk    Type = "gossip_ok"
)

// Payload is the closed set of message bodies a node understands. Only types in
// this package implement it.
type Payload interface {
	Type() Type
	payload()
}

// |||||| LIFECYCLE ||||||

type Init struct {
	NodeID  string   `json:"node_id"`
	NodeIDs []string `json:"node_ids"`
}

type InitOk struct{}

// |||||| ECHO ||||||

type Echo struct {
	Echo string `json:"echo"`
}

type EchoOk struct {
	Echo string `json:"echo"`
}

// |||||| GENERATE ||||||

type Generate struct{}

type GenerateOk struct {
	ID string `json:"id"`
}

// |||||| BROADCAST ||||||

type Broadcast struct {
	Message Value `json:"message"`
}

type BroadcastOk struct{}

type Read struct{}

type ReadOk struct {
	Messages []Value `json:"messages"`
}

// Topology maps a node id to the ordered list of its neighbors.
type Topology struct {
	Topology map[string][]string `json:"topology"`
}

type TopologyOk struct{}

// |||||| GOSSIP ||||||

// Gossip carries a batch of values the sender believes the recipient has not
// acknowledged yet.
type Gossip struct {
	Seen []Value `json:"seen"`
}

// GossipOk acknowledges every value in Seen.
type GossipOk struct {
	Seen []Value `json:"seen"`
}

func (Init) Type() Type { return TypeInit }
func (InitOk) Type() Type { return TypeInitOk }
func (Echo) Type() Type { return TypeEcho }
func (EchoOk) Type() Type { return TypeEchoOk }
func (Generate) Type() Type { return TypeGenerate }
func (GenerateOk) Type() Type { return TypeGenerateOk }
func (Broadcast) Type() Type { return TypeBroadcast }
func (BroadcastOk) Type() Type { return TypeBroadcastOk }
func (Read) Type() Type { return TypeRead }
func (ReadOk) Type() Type { return TypeReadOk }
func (Topology) Type() Type { return TypeTopology }
func (TopologyOk) Type() Type { return TypeTopologyOk }
func (Gossip) Type() Type { return TypeGossip }
func (GossipOk) Type() Type { return TypeGossipOk }

func (Init) payload() {}
func (InitOk) payload() {}
func (Echo) payload() {}
func (EchoOk) payload() {}
func (Generate) payload() {}
func (GenerateOk) payload() {}
func (Broadcast) payload() {}
func (BroadcastOk) payload() {}
func (Read) payload() {}
func (ReadOk) payload() {}
func (Topology) payload() {}
func (TopologyOk) payload() {}
func (Gossip) payload() {}
func (GossipOk) payload() {}
