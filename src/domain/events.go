package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventUserDeleted       EventType = "user.deleted"
	EventProductDeleted    EventType = "product.deleted"
	EventTagCreateRequest  EventType = "tag.create.request"
	EventTagAttachRequest  EventType = "tag.attach.request"
	EventFileAttachRequest EventType = "file.attach.request"
)

func (t EventType) Valid() bool {
	switch t {
	case EventUserDeleted, EventProductDeleted, EventTagCreateRequest, EventTagAttachRequest, EventFileAttachRequest:
		return true
	}
	return false
}

// IsDeletion reports whether the event announces the removal of an upstream entity.
func (t EventType) IsDeletion() bool {
	return t == EventUserDeleted || t == EventProductDeleted
}

var ErrMalformedEnvelope = errors.New("malformed event envelope")

// Envelope is immutable once published. EventID is the idempotency key for
// consumers; EmittedAt is producer wall-clock and never used for ordering.
type Envelope struct {
	EventID   uuid.UUID
	EventType EventType
	SubjectID uuid.UUID
	ActorID   uuid.UUID
	Payload   []string
	EmittedAt time.Time
}

func NewEnvelope(eventType EventType, subjectID uuid.UUID, actorID uuid.UUID, payload []string) Envelope {
	if payload == nil {
		payload = []string{}
	}
	return Envelope{
		EventID:   uuid.New(),
		EventType: eventType,
		SubjectID: subjectID,
		ActorID:   actorID,
		Payload:   payload,
		EmittedAt: time.Now().UTC(),
	}
}

// Key is the partition key: per-subject ordering on the wire.
func (e Envelope) Key() string {
	return e.SubjectID.String()
}

// wireEnvelope is the JSON shape on the event channel.
type wireEnvelope struct {
	EventID   string     `json:"event_id"`
	EventType string     `json:"event_type"`
	SubjectID string     `json:"subject_id"`
	ActorID   string     `json:"actor_id,omitempty"`
	Payload   []string   `json:"payload"`
	EmittedAt *time.Time `json:"emitted_at,omitempty"`
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	w := wireEnvelope{
		EventID:   e.EventID.String(),
		EventType: string(e.EventType),
		SubjectID: e.SubjectID.String(),
		Payload:   e.Payload,
	}
	if w.Payload == nil {
		w.Payload = []string{}
	}
	if e.ActorID != uuid.Nil {
		w.ActorID = e.ActorID.String()
	}
	if !e.EmittedAt.IsZero() {
		emittedAt := e.EmittedAt
		w.EmittedAt = &emittedAt
	}
	return json.Marshal(w)
}

// DecodeEnvelope parses and validates a message body once, at the transport boundary.
// Every failure wraps ErrMalformedEnvelope: retrying can never fix it.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var w wireEnvelope

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if dec.More() {
		return Envelope{}, fmt.Errorf("%w: trailing data after envelope", ErrMalformedEnvelope)
	}

	eventID, err := uuid.Parse(w.EventID)
	if err != nil || eventID == uuid.Nil {
		return Envelope{}, fmt.Errorf("%w: invalid event_id %q", ErrMalformedEnvelope, w.EventID)
	}

	eventType := EventType(w.EventType)
	if !eventType.Valid() {
		return Envelope{}, fmt.Errorf("%w: unknown event_type %q", ErrMalformedEnvelope, w.EventType)
	}

	subjectID, err := uuid.Parse(w.SubjectID)
	if err != nil || subjectID == uuid.Nil {
		return Envelope{}, fmt.Errorf("%w: invalid subject_id %q", ErrMalformedEnvelope, w.SubjectID)
	}

	var actorID uuid.UUID
	if w.ActorID != "" {
		actorID, err = uuid.Parse(w.ActorID)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: invalid actor_id %q", ErrMalformedEnvelope, w.ActorID)
		}
	}

	envelope := Envelope{
		EventID:   eventID,
		EventType: eventType,
		SubjectID: subjectID,
		ActorID:   actorID,
		Payload:   w.Payload,
	}
	if envelope.Payload == nil {
		envelope.Payload = []string{}
	}
	if w.EmittedAt != nil {
		envelope.EmittedAt = *w.EmittedAt
	}

	return envelope, nil
}
