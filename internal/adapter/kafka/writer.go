package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/pandemic-data-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Header keys attached to every published record.
const (
	HeaderContinent = "continent"
	HeaderRunID     = "run_id"
)

// Writer publishes cleaned records to a Kafka topic.
// It implements pipeline.Loader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the sink topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// Load serializes and publishes the whole dataset in a single WriteMessages
// call. Records are keyed by ID so a re-run lands each record on the same
// partition, which lets a compacted topic keep only the latest version.
func (w *Writer) Load(ctx context.Context, records []domain.CleanRecord) error {
	if len(records) == 0 {
		return nil
	}
	runID := domain.RunIDFromContext(ctx)
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i], runID)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d records to %s: %w", len(msgs), w.writer.Topic, err)
	}
	w.logger.Debug("records published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a CleanRecord into a Kafka message.
func serializeToMessage(rec domain.CleanRecord, runID string) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize record %s: %w", rec.ID, err)
	}
	headers := []kafkago.Header{
		{Key: HeaderContinent, Value: []byte(rec.Continent)},
	}
	if runID != "" {
		headers = append(headers, kafkago.Header{Key: HeaderRunID, Value: []byte(runID)})
	}
	return kafkago.Message{
		Key:     []byte(rec.ID),
		Value:   data,
		Headers: headers,
	}, nil
}
