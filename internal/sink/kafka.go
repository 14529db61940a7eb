package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each row as JSON keyed by its URL. It has no memory of
// earlier rows, so every Append reports the row as new; consumers dedupe on
// the key.
type KafkaSink struct {
	writer messageWriter
	topic  string
}

// NewKafka creates a sink for broker and topic.
func NewKafka(broker, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(broker),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: false,
			WriteTimeout:           10 * time.Second,
		},
		topic: topic,
	}
}

// NewKafkaWithWriter builds a sink using a custom writer (tests).
func NewKafkaWithWriter(w messageWriter) *KafkaSink {
	return &KafkaSink{writer: w}
}

func (k *KafkaSink) Append(ctx context.Context, row Row) (bool, error) {
	payload, err := json.Marshal(row)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	msg := kafka.Message{
		Key:   []byte(row.URL),
		Value: payload,
		Time:  time.Now().UTC(),
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return false, fmt.Errorf("%w: kafka %s: %v", ErrWrite, k.topic, err)
	}
	return true, nil
}

func (k *KafkaSink) Close() error { return k.writer.Close() }
