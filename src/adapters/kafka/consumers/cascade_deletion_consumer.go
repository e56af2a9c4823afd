package consumers

import (
	"context"
	"log/slog"

	"applicationservice/src/domain"
	"applicationservice/src/infra/kafka"

	"github.com/google/uuid"
)

// Estados de uma mensagem, só usados nos logs.
type messageState string

const (
	stateReceived     messageState = "RECEIVED"
	stateParseError   messageState = "PARSE_ERROR"
	stateValidated    messageState = "VALIDATED"
	stateApplied      messageState = "APPLIED"
	stateAcknowledged messageState = "ACKNOWLEDGED"
)

type Cascader interface {
	Apply(ctx context.Context, envelope domain.Envelope) (int64, error)
}

type ProcessedEventStore interface {
	IsProcessed(ctx context.Context, eventID uuid.UUID) (bool, error)
	MarkProcessed(ctx context.Context, eventID uuid.UUID) (bool, error)
}

type MessageSource interface {
	Consume(ctx context.Context, topics []string, handler kafka.Handler) error
}

// CascadeDeletionConsumer applies user.deleted and product.deleted envelopes.
// Malformed messages are dropped; a failed deletion is returned so the offset
// stays unmarked and the message is delivered again.
type CascadeDeletionConsumer struct {
	logger    *slog.Logger
	cascader  Cascader
	processed ProcessedEventStore
}

func NewCascadeDeletionConsumer(
	logger *slog.Logger,
	cascader Cascader,
	processed ProcessedEventStore,
) *CascadeDeletionConsumer {
	return &CascadeDeletionConsumer{
		logger:    logger,
		cascader:  cascader,
		processed: processed,
	}
}

func (c *CascadeDeletionConsumer) Start(ctx context.Context, source MessageSource, topics []string) error {
	c.logger.Info("Starting cascade deletion consumer", "topics", topics)
	return source.Consume(ctx, topics, c.HandleMessage)
}

func (c *CascadeDeletionConsumer) HandleMessage(ctx context.Context, msg kafka.Message) error {
	c.logger.Debug("Message received",
		"state", stateReceived,
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset)

	envelope, err := domain.DecodeEnvelope(msg.Value)
	if err != nil {
		// Reentregar não conserta uma mensagem malformada
		c.logger.Error("Dropping malformed message",
			"state", stateParseError,
			"error", err,
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", msg.Key)
		return nil
	}

	if !envelope.EventType.IsDeletion() {
		c.logger.Warn("Dropping unexpected event type",
			"state", stateValidated,
			"event_id", envelope.EventID,
			"event_type", envelope.EventType,
			"topic", msg.Topic)
		return nil
	}

	if c.alreadyProcessed(ctx, envelope) {
		return nil
	}

	deleted, err := c.cascader.Apply(ctx, envelope)
	if err != nil {
		return err
	}

	if _, err := c.processed.MarkProcessed(ctx, envelope.EventID); err != nil {
		c.logger.Warn("Failed to record processed event",
			"event_id", envelope.EventID,
			"error", err)
	}

	c.logger.Info("Message acknowledged",
		"state", stateAcknowledged,
		"previous_state", stateApplied,
		"event_id", envelope.EventID,
		"event_type", envelope.EventType,
		"subject_id", envelope.SubjectID,
		"deleted", deleted)

	return nil
}

// alreadyProcessed treats a store failure as "not processed": the deletion is idempotent.
func (c *CascadeDeletionConsumer) alreadyProcessed(ctx context.Context, envelope domain.Envelope) bool {
	processed, err := c.processed.IsProcessed(ctx, envelope.EventID)
	if err != nil {
		c.logger.Warn("Processed-event lookup failed, applying anyway",
			"event_id", envelope.EventID,
			"error", err)
		return false
	}

	if processed {
		c.logger.Info("Skipping duplicate event",
			"state", stateAcknowledged,
			"event_id", envelope.EventID,
			"event_type", envelope.EventType)
	}
	return processed
}
