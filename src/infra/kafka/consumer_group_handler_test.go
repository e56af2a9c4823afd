package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/IBM/sarama"
)

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }
func (s *fakeSession) MemberID() string { return "member" }
func (s *fakeSession) GenerationID() int32 { return 1 }
func (s *fakeSession) MarkOffset(topic string, partition int32, offset int64, _ string) {}
func (s *fakeSession) Commit() {}
func (s *fakeSession) ResetOffset(topic string, partition int32, offset int64, _ string) {}
func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

func (s *fakeSession) Marked() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64{}, s.marked...)
}

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string { return "user.deleted" }
func (c *fakeClaim) Partition() int32 { return 0 }
func (c *fakeClaim) InitialOffset() int64 { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64 { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

var _ = Describe("consumerGroupHandler", func() {
	var (
		session *fakeSession
		claim   *fakeClaim
		cancel  context.CancelFunc
	)

	newHandler := func(handler Handler) *consumerGroupHandler {
		return &consumerGroupHandler{
			logger:  slog.New(slog.NewTextHandler(GinkgoWriter, nil)),
			handler: handler,
			backoff: exponentialBackoff{initial: time.Millisecond, max: 5 * time.Millisecond},
		}
	}

	BeforeEach(func() {
		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		session = &fakeSession{ctx: ctx}
		claim = &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 10)}
	})

	AfterEach(func() {
		cancel()
	})

	It("marks messages in order once the handler accepts them", func() {
		// ARRANGE
		var seen []int64
		handler := newHandler(func(ctx context.Context, msg Message) error {
			seen = append(seen, msg.Offset)
			return nil
		})
		claim.messages <- &sarama.ConsumerMessage{Topic: "user.deleted", Offset: 1, Key: []byte("a")}
		claim.messages <- &sarama.ConsumerMessage{Topic: "user.deleted", Offset: 2, Key: []byte("b")}
		close(claim.messages)

		// ACT
		err := handler.ConsumeClaim(session, claim)

		// ASSERT
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(Equal([]int64{1, 2}))
		Expect(session.Marked()).To(Equal([]int64{1, 2}))
	})

	It("retries a failed message in place before moving on", func() {
		attempts := 0
		handler := newHandler(func(ctx context.Context, msg Message) error {
			if msg.Offset == 1 {
				attempts++
				if attempts < 3 {
					return errors.New("database down")
				}
			}
			return nil
		})
		claim.messages <- &sarama.ConsumerMessage{Offset: 1}
		claim.messages <- &sarama.ConsumerMessage{Offset: 2}
		close(claim.messages)

		err := handler.ConsumeClaim(session, claim)

		Expect(err).NotTo(HaveOccurred())
		Expect(attempts).To(Equal(3))
		Expect(session.Marked()).To(Equal([]int64{1, 2}))
	})

	It("leaves the offset unmarked when the session ends first", func() {
		handler := newHandler(func(ctx context.Context, msg Message) error {
			return errors.New("database down")
		})
		claim.messages <- &sarama.ConsumerMessage{Offset: 7}

		done := make(chan error)
		go func() {
			done <- handler.ConsumeClaim(session, claim)
		}()

		time.Sleep(20 * time.Millisecond)
		cancel()

		Eventually(done).Should(Receive(BeNil()))
		Expect(session.Marked()).To(BeEmpty())
	})

	It("does not cancel an in-flight handler when the session ends", func() {
		var handlerErr error
		handler := newHandler(func(ctx context.Context, msg Message) error {
			cancel()
			time.Sleep(5 * time.Millisecond)
			handlerErr = ctx.Err()
			return nil
		})
		claim.messages <- &sarama.ConsumerMessage{Offset: 3}

		err := handler.ConsumeClaim(session, claim)

		Expect(err).NotTo(HaveOccurred())
		Expect(handlerErr).NotTo(HaveOccurred())
		Expect(session.Marked()).To(Equal([]int64{3}))
	})

	It("converts headers", func() {
		msg := toMessage(&sarama.ConsumerMessage{
			Topic:   "product.deleted",
			Key:     []byte("p-1"),
			Headers: []*sarama.RecordHeader{{Key: []byte("event_type"), Value: []byte("product.deleted")}, nil},
		})

		Expect(msg.Key).To(Equal("p-1"))
		Expect(msg.Headers).To(HaveKeyWithValue("event_type", "product.deleted"))
	})
})

var _ = Describe("exponentialBackoff", func() {
	It("doubles up to the cap", func() {
		backoff := exponentialBackoff{initial: 100 * time.Millisecond, max: time.Second}

		Expect(backoff.Delay(1)).To(Equal(100 * time.Millisecond))
		Expect(backoff.Delay(2)).To(Equal(200 * time.Millisecond))
		Expect(backoff.Delay(4)).To(Equal(800 * time.Millisecond))
		Expect(backoff.Delay(5)).To(Equal(time.Second))
		Expect(backoff.Delay(200)).To(Equal(time.Second))
	})

	It("never goes negative when no cap is configured", func() {
		backoff := exponentialBackoff{initial: 200 * time.Millisecond}

		Expect(backoff.Delay(3)).To(Equal(800 * time.Millisecond))
		for _, attempt := range []int{36, 40, 100, 5000} {
			Expect(backoff.Delay(attempt)).To(Equal(defaultRetryMax), "attempt %d", attempt)
		}
	})
})
