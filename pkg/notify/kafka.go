package notify

import (
	"context"

	"tutorhub/pkg/kafka"
)

const eventSchemaVersion = "1"

type kafkaDispatcher struct {
	producer *kafka.Producer
	source   string
}

// NewKafkaDispatcher publishes events keyed by aggregate id, so all events
// of one booking or payment land on the same partition in order.
func NewKafkaDispatcher(producer *kafka.Producer, source string) Dispatcher {
	return &kafkaDispatcher{producer: producer, source: source}
}

func (d *kafkaDispatcher) Dispatch(ctx context.Context, evt Event) error {
	msg, err := kafka.NewMessage().
		WithKey(evt.Key).
		WithValue(evt).
		WithEventID(evt.ID).
		WithEventType(evt.Type).
		WithCorrelationID(evt.CorrelationID).
		WithSchemaVersion(eventSchemaVersion).
		WithSource(d.source).
		WithTimestamp(evt.OccurredAt).
		Build()
	if err != nil {
		return err
	}
	return d.producer.Publish(ctx, msg)
}

func (d *kafkaDispatcher) Close() error {
	return d.producer.Close()
}
