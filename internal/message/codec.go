package message

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
)

var (
	// ErrUnknownType is returned when a body carries a type this node does not
	// understand.
	ErrUnknownType = errors.New("unknown message type")
	// ErrMissingType is returned when a body has no type discriminator.
	ErrMissingType = errors.New("message body has no type")
)

type wireEnvelope struct {
	Src  string          `json:"src"`
	Dest string          `json:"dest"`
	Body json.RawMessage `json:"body"`
}

type wireHeader struct {
	Type      Type    `json:"type"`
	MsgID     *uint64 `json:"msg_id,omitempty"`
	InReplyTo *uint64 `json:"in_reply_to,omitempty"`
}

func decodeAs[P Payload](raw json.RawMessage) (Payload, error) {
	var p P
	err := json.Unmarshal(raw, &p)
	return p, err
}

var decoders = map[Type]func(json.RawMessage) (Payload, error){
	TypeInit:        decodeAs[Init],
	TypeInitOk:      decodeAs[InitOk],
	TypeEcho:        decodeAs[Echo],
	TypeEchoOk:      decodeAs[EchoOk],
	TypeGenerate:    decodeAs[Generate],
	TypeGenerateOk:  decodeAs[GenerateOk],
	TypeBroadcast:   decodeAs[Broadcast],
	TypeBroadcastOk: decodeAs[BroadcastOk],
	TypeRead:        decodeAs[Read],
	TypeReadOk:      decodeAs[ReadOk],
	TypeTopology:    decodeAs[Topology],
	TypeTopologyOk:  decodeAs[TopologyOk],
	TypeGossip:      decodeAs[Gossip],
	TypeGossipOk:    decodeAs[GossipOk],
}

// Unmarshal parses a single encoded envelope.
func Unmarshal(data []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, err
	}
	return w.envelope()
}

// Marshal encodes env as a single JSON object with a flattened body.
func Marshal(env Envelope) ([]byte, error) {
	if env.Payload == nil {
		return nil, errors.New("envelope has no payload")
	}
	fields, err := json.Marshal(env.Payload)
	if err != nil {
		return nil, err
	}
	body := make(map[string]json.RawMessage)
	if err := json.Unmarshal(fields, &body); err != nil {
		return nil, err
	}
	head, err := json.Marshal(wireHeader{
		Type:      env.Payload.Type(),
		MsgID:     env.ID,
		InReplyTo: env.InReplyTo,
	})
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(head, &body); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEnvelope{Src: env.Src, Dest: env.Dest, Body: raw})
}

func (w wireEnvelope) envelope() (Envelope, error) {
	if len(w.Body) == 0 {
		return Envelope{}, ErrMissingType
	}
	var head wireHeader
	if err := json.Unmarshal(w.Body, &head); err != nil {
		return Envelope{}, err
	}
	if head.Type == "" {
		return Envelope{}, ErrMissingType
	}
	decode, ok := decoders[head.Type]
	if !ok {
		return Envelope{}, errors.Wrapf(ErrUnknownType, "%q", head.Type)
	}
	p, err := decode(w.Body)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "%s body", head.Type)
	}
	return Envelope{
		Header: Header{
			Src:       w.Src,
			Dest:      w.Dest,
			ID:        head.MsgID,
			InReplyTo: head.InReplyTo,
		},
		Payload: p,
	}, nil
}

// Decoder reads a stream of envelopes, one JSON object at a time.
type Decoder struct {
	dec *json.Decoder
}

func NewDecoder(r io.Reader) *Decoder { return &Decoder{dec: json.NewDecoder(r)} }

// Decode reads the next envelope. It returns io.EOF, unwrapped, once the stream
// is exhausted between two envelopes.
func (d *Decoder) Decode() (Envelope, error) {
	var w wireEnvelope
	if err := d.dec.Decode(&w); err != nil {
		if err == io.EOF {
			return Envelope{}, err
		}
		return Envelope{}, errors.Wrap(err, "decode envelope")
	}
	env, err := w.envelope()
	return env, errors.Wrap(err, "decode envelope")
}

// Encoder writes envelopes as newline-delimited JSON, flushing after each one.
type Encoder struct {
	w *bufio.Writer
}

func NewEncoder(w io.Writer) *Encoder { return &Encoder{w: bufio.NewWriter(w)} }

func (e *Encoder) Encode(env Envelope) error {
	b, err := Marshal(env)
	if err != nil {
		return errors.Wrap(err, "encode envelope")
	}
	if _, err = e.w.Write(b); err != nil {
		return err
	}
	if err = e.w.WriteByte('\n'); err != nil {
		return err
	}
	return e.w.Flush()
}
