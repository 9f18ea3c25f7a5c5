package handler_test

import (
	"context"

	"github.com/arya-analytics/murmur/internal/cluster"
	"github.com/arya-analytics/murmur/internal/event"
	"github.com/arya-analytics/murmur/internal/handler"
	"github.com/arya-analytics/murmur/internal/ident"
	"github.com/arya-analytics/murmur/internal/message"
	"github.com/arya-analytics/murmur/internal/telemetry"
	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type outbox struct {
	sent []message.Envelope
	err  error
}

func (o *outbox) Encode(env message.Envelope) error {
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, env)
	return nil
}

func (o *outbox) take() []message.Envelope {
	sent := o.sent
	o.sent = nil
	return sent
}

var _ = Describe("Handler", func() {
	var (
		out     *outbox
		h       *handler.Handler
		metrics *telemetry.Metrics
		msgID   uint64
	)
	msg := func(src string, p message.Payload) event.Event {
		msgID++
		return event.Message{Envelope: message.Header{Src: src, Dest: "n1", ID: message.ID(msgID)}.With(p)}
	}
	handle := func(src string, p message.Payload) []message.Envelope {
		ExpectWithOffset(1, h.Handle(msg(src, p))).To(Succeed())
		return out.take()
	}
	initialize := func(nodes ...string) {
		handle("c0", message.Init{NodeID: "n1", NodeIDs: nodes})
	}
	BeforeEach(func() {
		msgID = 0
		out = &outbox{}
		metrics = telemetry.Nop()
		var err error
		h, err = handler.New(out, handler.Config{
			Metrics:   metrics,
			Generator: ident.GeneratorFunc(func() (string, error) { return "unique", nil }),
		})
		Expect(err).ToNot(HaveOccurred())
	})

	Describe("Init", func() {
		It("Should reply init_ok in reply to the init message", func() {
			Expect(h.Handle(event.Message{Envelope: message.Header{
				Src: "c1", Dest: "n3", ID: message.ID(1),
			}.With(message.Init{NodeID: "n3", NodeIDs: []string{"n1", "n2", "n3"}})})).To(Succeed())
			sent := out.take()
			Expect(sent).To(HaveLen(1))
			Expect(sent[0].Payload).To(Equal(message.InitOk{}))
			Expect(sent[0].Src).To(Equal("n3"))
			Expect(sent[0].Dest).To(Equal("c1"))
			Expect(*sent[0].InReplyTo).To(Equal(uint64(1)))
			Expect(*sent[0].ID).To(Equal(uint64(1)))
			Expect(h.State().NodeID).To(Equal("n3"))
		})
		It("Should reset state on a second init without resetting message ids", func() {
			initialize("n1", "n2")
			handle("c1", message.Broadcast{Message: 1})
			sent := handle("c0", message.Init{NodeID: "n1", NodeIDs: []string{"n1", "n3"}})
			Expect(*sent[0].ID).To(Equal(uint64(3)))
			Expect(h.State().Seen()).To(BeEmpty())
			Expect(h.State().Neighbors()).To(Equal([]string{"n3"}))
		})
	})

	Describe("Echo", func() {
		It("Should echo the payload verbatim before init", func() {
			sent := handle("c1", message.Echo{Echo: "hi"})
			Expect(sent).To(HaveLen(1))
			Expect(sent[0].Payload).To(Equal(message.EchoOk{Echo: "hi"}))
		})
	})

	Describe("Generate", func() {
		It("Should reply with an id from the generator", func() {
			sent := handle("c1", message.Generate{})
			Expect(sent[0].Payload).To(Equal(message.GenerateOk{ID: "unique"}))
		})
		It("Should fail when the generator fails", func() {
			h, err := handler.New(out, handler.Config{
				Generator: ident.GeneratorFunc(func() (string, error) { return "", errors.New("exhausted") }),
			})
			Expect(err).ToNot(HaveOccurred())
			err = h.Handle(msg("c1", message.Generate{}))
			Expect(err).To(MatchError(ContainSubstring("exhausted")))
			Expect(out.sent).To(BeEmpty())
		})
	})

	Describe("Uninitialized", func() {
		DescribeTable("Should reject operations that need state",
			func(p message.Payload) {
				Expect(h.Handle(msg("c1", p))).To(MatchError(handler.ErrUninitialized))
				Expect(out.sent).To(BeEmpty())
			},
			Entry("broadcast", message.Broadcast{Message: 1}),
			Entry("read", message.Read{}),
			Entry("topology", message.Topology{Topology: map[string][]string{"n1": {}}}),
			Entry("gossip", message.Gossip{Seen: []message.Value{1}}),
			Entry("gossip_ok", message.GossipOk{Seen: []message.Value{1}}),
		)
		It("Should ignore timer ticks", func() {
			Expect(h.Handle(event.Tick{})).To(Succeed())
			Expect(out.sent).To(BeEmpty())
		})
	})

	Describe("Unexpected acknowledgments", func() {
		DescribeTable("Should fail on acknowledgments this node never requests",
			func(p message.Payload) {
				initialize("n1", "n2")
				err := h.Handle(msg("n2", p))
				Expect(err).To(MatchError(handler.ErrUnexpectedMessage))
				Expect(err.Error()).To(ContainSubstring("did not expect " + string(p.Type())))
				Expect(out.sent).To(BeEmpty())
			},
			Entry("init_ok", message.InitOk{}),
			Entry("echo_ok", message.EchoOk{Echo: "x"}),
			Entry("generate_ok", message.GenerateOk{ID: "x"}),
			Entry("broadcast_ok", message.BroadcastOk{}),
			Entry("read_ok", message.ReadOk{}),
			Entry("topology_ok", message.TopologyOk{}),
		)
	})

	Describe("Broadcast and Read", func() {
		It("Should acknowledge a broadcast and include the value in reads", func() {
			initialize("n1", "n2")
			sent := handle("c1", message.Broadcast{Message: 5})
			Expect(sent[0].Payload).To(Equal(message.BroadcastOk{}))
			handle("c1", message.Broadcast{Message: 3})
			sent = handle("c1", message.Read{})
			Expect(sent[0].Payload).To(Equal(message.ReadOk{Messages: []message.Value{3, 5}}))
		})
		It("Should read an empty set as an empty list", func() {
			initialize("n1")
			sent := handle("c1", message.Read{})
			Expect(sent[0].Payload).To(Equal(message.ReadOk{Messages: []message.Value{}}))
		})
	})

	Describe("Topology", func() {
		It("Should replace the neighbors with the host's adjacency", func() {
			initialize("n1", "n2", "n3")
			sent := handle("c1", message.Topology{Topology: map[string][]string{"n1": {"n3"}, "n3": {"n1"}}})
			Expect(sent[0].Payload).To(Equal(message.TopologyOk{}))
			Expect(h.State().Neighbors()).To(Equal([]string{"n3"}))
		})
		It("Should fail when the host is missing", func() {
			initialize("n1", "n2")
			err := h.Handle(msg("c1", message.Topology{Topology: map[string][]string{"n2": {"n1"}}}))
			Expect(err).To(MatchError(cluster.ErrNodeNotInTopology))
		})
	})

	Describe("Gossip", func() {
		It("Should acknowledge the batch and propagate new values to other neighbors", func() {
			initialize("n1", "n2", "n3")
			sent := handle("n2", message.Gossip{Seen: []message.Value{7, 8}})
			Expect(sent).To(HaveLen(1))
			Expect(sent[0].Dest).To(Equal("n2"))
			Expect(sent[0].Payload).To(Equal(message.GossipOk{Seen: []message.Value{7, 8}}))
			Expect(h.Handle(event.Tick{})).To(Succeed())
			sent = out.take()
			Expect(sent).To(HaveLen(1))
			Expect(sent[0].Dest).To(Equal("n3"))
			Expect(sent[0].Payload).To(Equal(message.Gossip{Seen: []message.Value{7, 8}}))
		})
		It("Should acknowledge a gossip without a seen list with an empty list", func() {
			initialize("n1", "n2")
			sent := handle("n2", message.Gossip{})
			Expect(sent).To(HaveLen(1))
			ok := sent[0].Payload.(message.GossipOk)
			Expect(ok.Seen).ToNot(BeNil())
			Expect(ok.Seen).To(BeEmpty())
			b, err := message.Marshal(sent[0])
			Expect(err).ToNot(HaveOccurred())
			Expect(b).To(MatchJSON(`{"src":"n1","dest":"n2","body":{"type":"gossip_ok","msg_id":2,"in_reply_to":2,"seen":[]}}`))
		})
		It("Should fail to confirm gossip from an unknown neighbor", func() {
			initialize("n1", "n2")
			err := h.Handle(msg("n9", message.GossipOk{Seen: []message.Value{1}}))
			Expect(err).To(MatchError(cluster.ErrUnknownNeighbor))
		})
		It("Should send nothing on a tick when every backlog is empty", func() {
			initialize("n1", "n2")
			Expect(h.Handle(event.Tick{})).To(Succeed())
			Expect(out.sent).To(BeEmpty())
		})
	})

	Describe("Anti-entropy", func() {
		It("Should keep resending to a neighbor until it acknowledges", func() {
			initialize("n1", "n2", "n3")
			handle("c0", message.Topology{Topology: map[string][]string{"n1": {"n2", "n3"}}})
			sent := handle("c1", message.Broadcast{Message: 5})
			Expect(sent[0].Payload).To(Equal(message.BroadcastOk{}))

			Expect(h.Handle(event.Tick{})).To(Succeed())
			sent = out.take()
			Expect(sent).To(HaveLen(2))
			for i, dest := range []string{"n2", "n3"} {
				Expect(sent[i].Src).To(Equal("n1"))
				Expect(sent[i].Dest).To(Equal(dest))
				Expect(sent[i].InReplyTo).To(BeNil())
				Expect(sent[i].Payload).To(Equal(message.Gossip{Seen: []message.Value{5}}))
			}

			Expect(handle("n2", message.GossipOk{Seen: []message.Value{5}})).To(BeEmpty())
			n2, _ := h.State().Neighbor("n2")
			Expect(n2.Confirmed()).To(Equal([]message.Value{5}))

			for i := 0; i < 3; i++ {
				Expect(h.Handle(event.Tick{})).To(Succeed())
				sent = out.take()
				Expect(sent).To(HaveLen(1))
				Expect(sent[0].Dest).To(Equal("n3"))
				Expect(sent[0].Payload).To(Equal(message.Gossip{Seen: []message.Value{5}}))
			}

			handle("n3", message.GossipOk{Seen: []message.Value{5}})
			Expect(h.Handle(event.Tick{})).To(Succeed())
			Expect(out.sent).To(BeEmpty())
			Expect(testutil.ToFloat64(metrics.Pending)).To(Equal(0.0))
			Expect(testutil.ToFloat64(metrics.GossipBatches)).To(Equal(5.0))
		})
	})

	Describe("Message ids", func() {
		It("Should assign strictly increasing ids to every outbound message", func() {
			initialize("n1", "n2")
			handle("c1", message.Broadcast{Message: 1})
			Expect(h.Handle(event.Tick{})).To(Succeed())
			Expect(h.Handle(msg("c1", message.Echo{Echo: "x"}))).To(Succeed())
			Expect(h.Handle(event.Tick{})).To(Succeed())
			sent := out.take()
			Expect(sent).To(HaveLen(3))
			for i, env := range sent {
				Expect(*env.ID).To(Equal(uint64(i + 3)))
			}
		})
	})

	Describe("Outbox failures", func() {
		It("Should surface an error writing a reply", func() {
			out.err = errors.New("broken pipe")
			Expect(h.Handle(msg("c1", message.Echo{Echo: "x"}))).To(MatchError(ContainSubstring("broken pipe")))
		})
	})

	Describe("Process", func() {
		It("Should handle events in order and stop cleanly when the stream closes", func() {
			events := make(chan event.Event, 3)
			events <- msg("c0", message.Init{NodeID: "n1", NodeIDs: []string{"n1"}})
			events <- msg("c1", message.Broadcast{Message: 4})
			events <- msg("c1", message.Read{})
			close(events)
			Expect(h.Process(context.Background(), events)).To(Succeed())
			sent := out.take()
			Expect(sent).To(HaveLen(3))
			Expect(sent[2].Payload).To(Equal(message.ReadOk{Messages: []message.Value{4}}))
			Expect(testutil.ToFloat64(metrics.Received.WithLabelValues("broadcast"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(metrics.Sent.WithLabelValues("read_ok"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(metrics.Seen)).To(Equal(1.0))
		})
		It("Should stop at the first failing event", func() {
			events := make(chan event.Event, 2)
			events <- msg("c1", message.Read{})
			events <- msg("c1", message.Echo{Echo: "never"})
			Expect(h.Process(context.Background(), events)).To(MatchError(handler.ErrUninitialized))
			Expect(out.sent).To(BeEmpty())
		})
		It("Should return when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			Expect(h.Process(ctx, make(chan event.Event))).To(MatchError(context.Canceled))
		})
	})
})
