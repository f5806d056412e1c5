package queue

import (
	"context"
	"errors"

	"github.com/IBM/sarama"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/uhyunpark/yesno/pkg/app/exchange"
)

// SnapshotPublisher writes every book update to the snapshot topic
type SnapshotPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func DialSnapshotPublisher(brokers []string, topic string) (*SnapshotPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return NewSnapshotPublisher(producer, topic), nil
}

func NewSnapshotPublisher(producer sarama.SyncProducer, topic string) *SnapshotPublisher {
	return &SnapshotPublisher{producer: producer, topic: topic}
}

// HandleEvent publishes the book carried by ev keyed by symbol
func (p *SnapshotPublisher) HandleEvent(_ context.Context, ev exchange.Event) error {
	if !ev.HasBook() {
		return nil
	}
	key, value, err := EncodeSnapshot(ev.Book)
	if err != nil {
		return err
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
	return err
}

func (p *SnapshotPublisher) Close() error {
	return p.producer.Close()
}

var _ exchange.Sink = (*SnapshotPublisher)(nil)

// Publisher is where a stream server forwards snapshots (the websocket hub)
type Publisher interface {
	Publish(orderbookID string, payload []byte)
}

// SnapshotReader tails the snapshot topic. Each stream server reads every
// partition from the latest offset, so it has no consumer group.
type SnapshotReader struct {
	reader messageReader
	logger *zap.SugaredLogger
}

func NewSnapshotReader(brokers []string, topic string, logger *zap.SugaredLogger) *SnapshotReader {
	return newSnapshotReader(kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	}), logger)
}

func newSnapshotReader(r messageReader, logger *zap.SugaredLogger) *SnapshotReader {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SnapshotReader{reader: r, logger: logger}
}

// Run forwards each snapshot verbatim to the channel named by its key
func (r *SnapshotReader) Run(ctx context.Context, out Publisher) error {
	defer r.reader.Close()

	for {
		msg, err := r.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if len(msg.Key) == 0 {
			r.logger.Warnw("snapshot_without_key", "partition", msg.Partition, "offset", msg.Offset)
			continue
		}
		out.Publish(string(msg.Key), msg.Value)
	}
}
