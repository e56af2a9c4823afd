package fakes

import (
	"context"
	"sync"

	"applicationservice/src/domain"

	"github.com/google/uuid"
)

// AttachmentPublisher records the envelopes the use cases would have published.
type AttachmentPublisher struct {
	mu        sync.Mutex
	envelopes []domain.Envelope
	err       error
}

func NewAttachmentPublisher() *AttachmentPublisher {
	return &AttachmentPublisher{}
}

// FailWith makes every publish return err.
func (p *AttachmentPublisher) FailWith(err error) *AttachmentPublisher {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
	return p
}

func (p *AttachmentPublisher) RequestTagCreate(ctx context.Context, applicationID uuid.UUID, actorID uuid.UUID, names []string) error {
	return p.record(domain.NewEnvelope(domain.EventTagCreateRequest, applicationID, actorID, names))
}

func (p *AttachmentPublisher) RequestTagAttach(ctx context.Context, applicationID uuid.UUID, actorID uuid.UUID, tagIDs []uuid.UUID) error {
	return p.record(domain.NewEnvelope(domain.EventTagAttachRequest, applicationID, actorID, idStrings(tagIDs)))
}

func (p *AttachmentPublisher) RequestFileAttach(ctx context.Context, applicationID uuid.UUID, actorID uuid.UUID, fileIDs []uuid.UUID) error {
	return p.record(domain.NewEnvelope(domain.EventFileAttachRequest, applicationID, actorID, idStrings(fileIDs)))
}

func (p *AttachmentPublisher) record(envelope domain.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.envelopes = append(p.envelopes, envelope)
	return nil
}

func (p *AttachmentPublisher) Envelopes() []domain.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Envelope{}, p.envelopes...)
}

func (p *AttachmentPublisher) EventTypes() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]domain.EventType, 0, len(p.envelopes))
	for _, envelope := range p.envelopes {
		types = append(types, envelope.EventType)
	}
	return types
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
