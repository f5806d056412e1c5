package queue

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/uhyunpark/yesno/pkg/app/exchange"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CommandWriter publishes commands to the orders topic. It is the gateway's
// commander: Submit returns once the broker has the command, without a result.
type CommandWriter struct {
	writer messageWriter
}

func NewCommandWriter(brokers []string, topic string) *CommandWriter {
	return &CommandWriter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Submit writes cmd to the orders topic. The nil Result means "queued".
func (w *CommandWriter) Submit(ctx context.Context, cmd exchange.Command) (*exchange.Result, error) {
	key, value, err := EncodeCommand(cmd)
	if err != nil {
		return nil, err
	}
	if err := w.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value}); err != nil {
		return nil, err
	}
	return nil, nil
}

func (w *CommandWriter) Close() error {
	return w.writer.Close()
}

// Enqueuer accepts commands without waiting for their result
type Enqueuer interface {
	Enqueue(ctx context.Context, cmd exchange.Command) error
}

// CommandReader consumes the orders topic into the engine
type CommandReader struct {
	reader messageReader
	logger *zap.SugaredLogger
}

func NewCommandReader(brokers []string, topic, group string, logger *zap.SugaredLogger) *CommandReader {
	return newCommandReader(kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  group,
		MinBytes: 1,
		MaxBytes: 10e6,
	}), logger)
}

func newCommandReader(r messageReader, logger *zap.SugaredLogger) *CommandReader {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &CommandReader{reader: r, logger: logger}
}

// Run feeds every command to engine until ctx is cancelled. An offset is
// committed once the engine has accepted the command; undecodable messages are
// logged and skipped.
func (r *CommandReader) Run(ctx context.Context, engine Enqueuer) error {
	defer r.reader.Close()

	for {
		msg, err := r.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		cmd, err := DecodeCommand(msg.Value)
		if err != nil {
			r.logger.Warnw("command_undecodable", "partition", msg.Partition, "offset", msg.Offset, "err", err)
		} else if err := engine.Enqueue(ctx, cmd); err != nil {
			if ctx.Err() != nil || errors.Is(err, exchange.ErrStopped) {
				return nil
			}
			return err
		}

		if err := r.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
