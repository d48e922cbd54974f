package streamevt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360studio/clausereview/metrics"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	streamName      = "CLAUSEREVIEW_EVENTS"
	subjectWildcard = "clausereview.events.*"
)

func subjectFor(taskID string) string {
	return "clausereview.events." + taskID
}

// Stream publishes and replays task-scoped events over one JetStream
// stream, subject-per-task.
type Stream struct {
	js      jetstream.JetStream
	stream  jetstream.Stream
	metrics *metrics.Metrics
}

// WithMetrics attaches a metrics.Metrics instance so Publish increments
// events_published_total and Replay tracks stream_active_subscribers.
// Returns s for chaining at construction time.
func (s *Stream) WithMetrics(m *metrics.Metrics) *Stream {
	s.metrics = m
	return s
}

// New provisions (or attaches to) the events stream.
func New(ctx context.Context, js jetstream.JetStream) (*Stream, error) {
	st, err := js.Stream(ctx, streamName)
	if err != nil {
		st, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:      streamName,
			Subjects:  []string{subjectWildcard},
			Retention: jetstream.LimitsPolicy,
			MaxAge:    30 * 24 * time.Hour,
		})
		if err != nil {
			return nil, fmt.Errorf("create events stream: %w", err)
		}
	}
	return &Stream{js: js, stream: st}, nil
}

// Publish emits one event for a task and returns it with Seq and
// Timestamp populated.
func (s *Stream) Publish(ctx context.Context, taskID string, kind Kind, payload any) (Event, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("marshal event payload: %w", err)
		}
		raw = data
	}

	ev := Event{TaskID: taskID, Kind: kind, Payload: raw, Timestamp: time.Now()}
	data, err := json.Marshal(ev)
	if err != nil {
		return Event{}, fmt.Errorf("marshal event: %w", err)
	}

	ack, err := s.js.Publish(ctx, subjectFor(taskID), data)
	if err != nil {
		return Event{}, fmt.Errorf("publish event: %w", err)
	}
	ev.Seq = ack.Sequence
	if s.metrics != nil {
		s.metrics.EventsPublished.WithLabelValues(string(kind)).Inc()
	}
	return ev, nil
}

// Replay creates an ephemeral ordered consumer starting at fromSeq
// (inclusive) for taskID and delivers every event from there forward to
// handler, blocking until ctx is cancelled or handler returns an error.
// fromSeq == 0 starts from the beginning of the task's history.
func (s *Stream) Replay(ctx context.Context, taskID string, fromSeq uint64, handler func(Event) error) error {
	startSeq := fromSeq
	if startSeq == 0 {
		startSeq = 1
	}

	consumer, err := s.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subjectFor(taskID)},
		DeliverPolicy:  jetstream.DeliverByStartSequencePolicy,
		OptStartSeq:    startSeq,
	})
	if err != nil {
		return fmt.Errorf("create replay consumer: %w", err)
	}

	if s.metrics != nil {
		s.metrics.StreamSubscribers.Inc()
		defer s.metrics.StreamSubscribers.Dec()
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			_ = msg.Nak()
			return
		}
		meta, err := msg.Metadata()
		if err == nil {
			ev.Seq = meta.Sequence.Stream
		}
		if err := handler(ev); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("start replay consume: %w", err)
	}
	defer consumeCtx.Stop()

	<-ctx.Done()
	return ctx.Err()
}
