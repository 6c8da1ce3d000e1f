package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/localcompute/g4l/pkg/events"
	"github.com/localcompute/g4l/pkg/events/kafka"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	It("requires brokers", func() {
		_, err := kafka.NewPublisher(kafka.Config{}, nil)
		Expect(err).To(HaveOccurred())
	})

	It("builds a writer without connecting", func() {
		p, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Close()).To(Succeed())
	})

	It("writes the event as JSON keyed by completion ID", func() {
		w := &fakeWriter{}
		p := kafka.NewPublisherWithWriter(w, events.DefaultTopic, time.Second, nil)

		event := &events.CompletionEvent{
			SchemaVersion: events.SchemaVersionV1,
			EventType:     events.EventTypeCompletionFinished,
			CompletionID:  "chatcmpl-abc",
			Model:         "mistral-7b",
			Tokens:        3,
		}
		Expect(p.PublishCompletion(context.Background(), event)).To(Succeed())

		Expect(w.msgs).To(HaveLen(1))
		Expect(string(w.msgs[0].Key)).To(Equal("chatcmpl-abc"))

		var got events.CompletionEvent
		Expect(json.Unmarshal(w.msgs[0].Value, &got)).To(Succeed())
		Expect(got.Model).To(Equal("mistral-7b"))
		Expect(got.Tokens).To(Equal(3))
	})

	It("rejects nil events", func() {
		p := kafka.NewPublisherWithWriter(&fakeWriter{}, "t", 0, nil)
		Expect(p.PublishCompletion(context.Background(), nil)).To(MatchError(events.ErrNilCompletionEvent))
	})

	It("wraps writer failures", func() {
		boom := errors.New("broker down")
		p := kafka.NewPublisherWithWriter(&fakeWriter{err: boom}, "t", 0, nil)
		err := p.PublishCompletion(context.Background(), &events.CompletionEvent{})
		Expect(errors.Is(err, boom)).To(BeTrue())
	})

	It("closes the writer", func() {
		w := &fakeWriter{}
		p := kafka.NewPublisherWithWriter(w, "t", 0, nil)
		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})
})
