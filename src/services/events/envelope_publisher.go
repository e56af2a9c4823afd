package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"applicationservice/src/domain"
	"applicationservice/src/infra/kafka"

	"github.com/google/uuid"
)

const sourceService = "application-service"

type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// Topics maps every publishable event type to its topic.
type Topics map[domain.EventType]string

// DefaultTopics uses the event type as topic name.
func DefaultTopics() Topics {
	return Topics{
		domain.EventUserDeleted:       string(domain.EventUserDeleted),
		domain.EventProductDeleted:    string(domain.EventProductDeleted),
		domain.EventTagCreateRequest:  string(domain.EventTagCreateRequest),
		domain.EventTagAttachRequest:  string(domain.EventTagAttachRequest),
		domain.EventFileAttachRequest: string(domain.EventFileAttachRequest),
	}
}

// EnvelopePublisher é fire-and-forget: Publish retorna assim que a mensagem
// entra no buffer do producer. O resultado da entrega só aparece nos logs.
type EnvelopePublisher struct {
	logger    *slog.Logger
	publisher MessagePublisher
	topics    Topics
}

func NewEnvelopePublisher(logger *slog.Logger, publisher MessagePublisher, topics Topics) *EnvelopePublisher {
	return &EnvelopePublisher{
		logger:    logger,
		publisher: publisher,
		topics:    topics,
	}
}

func (p *EnvelopePublisher) Publish(ctx context.Context, envelope domain.Envelope) error {
	topic, ok := p.topics[envelope.EventType]
	if !ok {
		return fmt.Errorf("EnvelopePublisher.Publish - no topic configured for event type %q", envelope.EventType)
	}

	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("EnvelopePublisher.Publish - failed to marshal envelope %s: %w", envelope.EventID, err)
	}

	msg := kafka.Message{
		Topic:   topic,
		Key:     envelope.Key(),
		Value:   value,
		Headers: p.createEventHeaders(envelope),
	}

	if err := p.publisher.Publish(ctx, msg); err != nil {
		return fmt.Errorf("EnvelopePublisher.Publish - topic %s: %w", topic, err)
	}

	p.logger.Debug("Envelope enqueued",
		"event_id", envelope.EventID,
		"event_type", envelope.EventType,
		"subject_id", envelope.SubjectID,
		"topic", topic)

	return nil
}

// createEventHeaders lets consumers filter without decoding the body
func (p *EnvelopePublisher) createEventHeaders(envelope domain.Envelope) map[string]string {
	return map[string]string{
		"event_type":     string(envelope.EventType),
		"event_id":       envelope.EventID.String(),
		"source_service": sourceService,
		"schema_version": "v1",
	}
}

// RequestTagCreate asks the tag service to create tags by name and attach them to the application.
func (p *EnvelopePublisher) RequestTagCreate(ctx context.Context, applicationID uuid.UUID, actorID uuid.UUID, names []string) error {
	return p.Publish(ctx, domain.NewEnvelope(domain.EventTagCreateRequest, applicationID, actorID, names))
}

func (p *EnvelopePublisher) RequestTagAttach(ctx context.Context, applicationID uuid.UUID, actorID uuid.UUID, tagIDs []uuid.UUID) error {
	return p.Publish(ctx, domain.NewEnvelope(domain.EventTagAttachRequest, applicationID, actorID, idStrings(tagIDs)))
}

func (p *EnvelopePublisher) RequestFileAttach(ctx context.Context, applicationID uuid.UUID, actorID uuid.UUID, fileIDs []uuid.UUID) error {
	return p.Publish(ctx, domain.NewEnvelope(domain.EventFileAttachRequest, applicationID, actorID, idStrings(fileIDs)))
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
