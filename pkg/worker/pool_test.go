package worker_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/claudekit/pkg/eventstream"
	"github.com/papercomputeco/claudekit/pkg/llm"
	"github.com/papercomputeco/claudekit/pkg/worker"
)

// recordingPublisher keeps every published event. When gate is set, each
// publish waits for it to close.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.TurnCompletedEvent
	gate   chan struct{}
	err    error
	closed bool
}

func (r *recordingPublisher) PublishTurn(ctx context.Context, ev *eventstream.TurnCompletedEvent) error {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func newEvent(id string) *eventstream.TurnCompletedEvent {
	return eventstream.NewTurnCompletedEvent(
		eventstream.EventSource{Command: "chat"},
		eventstream.TurnRequestMeta{},
		llm.ConversationTurn{Response: &llm.MessagesResponse{ID: id}},
	)
}

var _ = Describe("Pool", func() {
	var pub *recordingPublisher

	BeforeEach(func() {
		pub = &recordingPublisher{}
	})

	It("requires a publisher", func() {
		_, err := worker.NewPool(worker.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("publishes every queued event before Close returns", func() {
		p, err := worker.NewPool(worker.Config{Publisher: pub})
		Expect(err).NotTo(HaveOccurred())

		for _, id := range []string{"msg_1", "msg_2", "msg_3"} {
			Expect(p.Enqueue(newEvent(id))).To(BeTrue())
		}
		Expect(p.Close()).To(Succeed())

		Expect(pub.events).To(HaveLen(3))
		Expect(pub.closed).To(BeTrue())
		Expect(p.Stats()).To(Equal(worker.Stats{Published: 3}))
	})

	It("drops events when the queue is full", func() {
		pub.gate = make(chan struct{})
		p, err := worker.NewPool(worker.Config{Publisher: pub, NumWorkers: 1, QueueSize: 1})
		Expect(err).NotTo(HaveOccurred())

		// One event held by the worker, one in the queue.
		Expect(p.Enqueue(newEvent("a"))).To(BeTrue())
		Eventually(func() bool { return p.Enqueue(newEvent("b")) }).Should(BeTrue())

		Expect(p.Enqueue(newEvent("c"))).To(BeFalse())
		Expect(p.Stats().Dropped).To(BeNumerically(">=", 1))

		close(pub.gate)
		Expect(p.Close()).To(Succeed())
	})

	It("counts publish failures", func() {
		pub.err = errors.New("broker down")
		p, err := worker.NewPool(worker.Config{Publisher: pub})
		Expect(err).NotTo(HaveOccurred())

		Expect(p.Enqueue(newEvent("msg_1"))).To(BeTrue())
		Expect(p.Close()).To(Succeed())
		Expect(p.Stats().Failed).To(Equal(uint64(1)))
	})

	It("rejects events after Close", func() {
		p, err := worker.NewPool(worker.Config{Publisher: pub})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Close()).To(Succeed())

		Expect(p.Enqueue(newEvent("late"))).To(BeFalse())
		Expect(p.Close()).To(MatchError(worker.ErrPoolClosed))
	})
})
