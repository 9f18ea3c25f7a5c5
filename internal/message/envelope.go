package message

// Header addresses an envelope and carries its optional identifiers.
type Header struct {
	Src  string
	Dest string
	// ID is the sender-assigned message id. Nil when the sender did not set one.
	ID *uint64
	// InReplyTo is the id of the message this one answers, if any.
	InReplyTo *uint64
}

// Reply returns the header of a response to h: source and destination are
// swapped, InReplyTo points at h's id, and the response carries id.
func (h Header) Reply(id uint64) Header {
	return Header{Src: h.Dest, Dest: h.Src, ID: &id, InReplyTo: h.ID}
}

// To returns the header of a message originated by src towards dest.
func To(src, dest string, id uint64) Header {
	return Header{Src: src, Dest: dest, ID: &id}
}

// With attaches a payload to the header.
func (h Header) With(p Payload) Envelope { return Envelope{Header: h, Payload: p} }

// Envelope is the unit exchanged between nodes.
type Envelope struct {
	Header
	Payload Payload
}

// ID returns a pointer to id, for building headers by hand.
func ID(id uint64) *uint64 { return &id }
