package stubs

import (
	"time"

	"applicationservice/src/domain"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

type EnvelopeStub struct {
	envelope domain.Envelope
}

func NewEnvelopeStub() EnvelopeStub {
	envelope := domain.Envelope{
		EventID:   uuid.New(),
		EventType: domain.EventUserDeleted,
		SubjectID: uuid.New(),
		ActorID:   uuid.New(),
		Payload:   []string{},
		EmittedAt: gofakeit.DateRange(time.Now().Add(-time.Hour), time.Now()).UTC().Truncate(time.Millisecond),
	}

	return EnvelopeStub{envelope: envelope}
}

func (es EnvelopeStub) WithEventID(eventID uuid.UUID) EnvelopeStub {
	es.envelope.EventID = eventID
	return es
}

func (es EnvelopeStub) WithEventType(eventType domain.EventType) EnvelopeStub {
	es.envelope.EventType = eventType
	return es
}

func (es EnvelopeStub) WithSubjectID(subjectID uuid.UUID) EnvelopeStub {
	es.envelope.SubjectID = subjectID
	return es
}

func (es EnvelopeStub) WithPayload(payload ...string) EnvelopeStub {
	es.envelope.Payload = payload
	return es
}

func (es EnvelopeStub) Get() domain.Envelope {
	return es.envelope
}
