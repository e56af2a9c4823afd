package stubs

import (
	"time"

	"applicationservice/src/domain/entities"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

type ApplicationStub struct {
	application entities.Application
}

func NewApplicationStub() ApplicationStub {
	now := time.Now().UTC().Truncate(time.Microsecond)
	comment := gofakeit.Sentence(8)

	application := entities.Application{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		ProductID: uuid.New(),
		Status:    entities.StatusSubmitted,
		Comment:   &comment,
		Files:     []uuid.UUID{},
		Tags:      []uuid.UUID{},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	return ApplicationStub{application: application}
}

func (as ApplicationStub) WithID(id uuid.UUID) ApplicationStub {
	as.application.ID = id
	return as
}

func (as ApplicationStub) WithUserID(userID uuid.UUID) ApplicationStub {
	as.application.UserID = userID
	return as
}

func (as ApplicationStub) WithProductID(productID uuid.UUID) ApplicationStub {
	as.application.ProductID = productID
	return as
}

func (as ApplicationStub) WithStatus(status entities.ApplicationStatus) ApplicationStub {
	as.application.Status = status
	return as
}

func (as ApplicationStub) WithFiles(files ...uuid.UUID) ApplicationStub {
	as.application.Files = append([]uuid.UUID{}, files...)
	entities.SortIDs(as.application.Files)
	return as
}

func (as ApplicationStub) WithTags(tags ...uuid.UUID) ApplicationStub {
	as.application.Tags = append([]uuid.UUID{}, tags...)
	entities.SortIDs(as.application.Tags)
	return as
}

func (as ApplicationStub) WithCreatedAt(createdAt time.Time) ApplicationStub {
	as.application.CreatedAt = createdAt.UTC().Truncate(time.Microsecond)
	as.application.UpdatedAt = as.application.CreatedAt
	return as
}

func (as ApplicationStub) Get() entities.Application {
	return as.application
}

// InitialHistory is the SUBMITTED row written together with the application.
func (as ApplicationStub) InitialHistory() entities.StatusHistory {
	return entities.StatusHistory{
		ID:            uuid.New(),
		ApplicationID: as.application.ID,
		ToStatus:      as.application.Status,
		ActorID:       as.application.UserID,
		CreatedAt:     as.application.CreatedAt,
	}
}
