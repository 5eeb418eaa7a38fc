package event

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/vendoro/order-fanout/internal/core/domain"
	"github.com/vendoro/order-fanout/internal/core/service"
)

// PaymentConsumer reads payment-confirmation events from Kafka and
// hands them to the coordinator. At-least-once: offsets are committed
// only after the orchestration run returns, so a crash mid-run
// redelivers and the idempotent ledger absorbs the repeat.
type PaymentConsumer struct {
	reader      *kafka.Reader
	coordinator *service.Coordinator
	logger      *zap.Logger
}

type paymentConfirmedMessage struct {
	TransactionID    string    `json:"transaction_id"`
	PaymentReference string    `json:"payment_reference"`
	PaidAmount       int64     `json:"paid_amount"`
	PaidAt           time.Time `json:"paid_at"`
}

func NewPaymentConsumer(brokers []string, groupID, topic string, coordinator *service.Coordinator, logger *zap.Logger) *PaymentConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	return &PaymentConsumer{
		reader:      reader,
		coordinator: coordinator,
		logger:      logger,
	}
}

// Start blocks until ctx is cancelled.
func (c *PaymentConsumer) Start(ctx context.Context) error {
	c.logger.Info("starting payment confirmation consumer",
		zap.String("topic", c.reader.Config().Topic),
		zap.String("group_id", c.reader.Config().GroupID),
	)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping")
				return nil
			}
			c.logger.Error("failed to fetch message", zap.Error(err))
			continue
		}

		if c.processMessage(ctx, m) {
			if err := c.reader.CommitMessages(ctx, m); err != nil {
				c.logger.Error("failed to commit offset",
					zap.Error(err),
					zap.Int("partition", m.Partition),
					zap.Int64("offset", m.Offset),
				)
			}
		}
	}
}

// processMessage returns whether the offset should be committed.
// Validation failures are committed: they never succeed on redelivery
// and must not wedge the partition.
func (c *PaymentConsumer) processMessage(ctx context.Context, m kafka.Message) bool {
	var msg paymentConfirmedMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		c.logger.Error("dropping malformed payment confirmation",
			zap.Error(err),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
		return true
	}
	if msg.TransactionID == "" {
		c.logger.Error("dropping payment confirmation without transaction id",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
		return true
	}

	err := c.coordinator.HandlePaymentConfirmation(ctx, service.PaymentConfirmation{
		TransactionID:    msg.TransactionID,
		PaymentReference: msg.PaymentReference,
		PaidAmount:       msg.PaidAmount,
		PaidAt:           msg.PaidAt,
	})
	if err == nil {
		c.logger.Info("payment confirmation processed",
			zap.String("transaction_id", msg.TransactionID),
		)
		return true
	}

	if errors.Is(err, domain.ErrUnknownTransaction) || errors.Is(err, domain.ErrAmountMismatch) {
		c.logger.Error("rejecting invalid payment confirmation",
			zap.Error(err),
			zap.String("transaction_id", msg.TransactionID),
		)
		return true
	}

	// Infrastructure failure: leave the offset so Kafka redelivers.
	c.logger.Error("failed to process payment confirmation",
		zap.Error(err),
		zap.String("transaction_id", msg.TransactionID),
	)
	return false
}

func (c *PaymentConsumer) Close() error {
	return c.reader.Close()
}
