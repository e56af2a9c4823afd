package http

import (
	"time"

	"applicationservice/src/domain/entities"
	"applicationservice/src/services/applications"

	"github.com/google/uuid"
)

type CreateApplicationDTO struct {
	UserID    uuid.UUID   `json:"user_id"`
	ProductID uuid.UUID   `json:"product_id"`
	Comment   *string     `json:"comment,omitempty"`
	Tags      []string    `json:"tags,omitempty"`
	TagIDs    []uuid.UUID `json:"tag_ids,omitempty"`
	FileIDs   []uuid.UUID `json:"file_ids,omitempty"`
}

func (dto CreateApplicationDTO) toRequest() applications.CreateApplicationRequest {
	return applications.CreateApplicationRequest{
		UserID:    dto.UserID,
		ProductID: dto.ProductID,
		Comment:   dto.Comment,
		TagNames:  dto.Tags,
		TagIDs:    dto.TagIDs,
		FileIDs:   dto.FileIDs,
	}
}

type ChangeStatusDTO struct {
	Status entities.ApplicationStatus `json:"status"`
	Reason *string                    `json:"reason,omitempty"`
}

type ApplicationDTO struct {
	ID        uuid.UUID                  `json:"id"`
	UserID    uuid.UUID                  `json:"user_id"`
	ProductID uuid.UUID                  `json:"product_id"`
	Status    entities.ApplicationStatus `json:"status"`
	Comment   *string                    `json:"comment,omitempty"`
	Files     []uuid.UUID                `json:"files"`
	Tags      []uuid.UUID                `json:"tags"`
	Version   int64                      `json:"version"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
	DecidedAt *time.Time                 `json:"decided_at,omitempty"`
}

type ApplicationPageDTO struct {
	Items      []ApplicationDTO `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

type StatusHistoryDTO struct {
	FromStatus *entities.ApplicationStatus `json:"from_status,omitempty"`
	ToStatus   entities.ApplicationStatus  `json:"to_status"`
	ActorID    uuid.UUID                   `json:"actor_id"`
	Reason     *string                     `json:"reason,omitempty"`
	CreatedAt  time.Time                   `json:"created_at"`
}

type ErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func MapApplicationToResponse(app *entities.Application) ApplicationDTO {
	files, tags := app.Files, app.Tags
	if files == nil {
		files = []uuid.UUID{}
	}
	if tags == nil {
		tags = []uuid.UUID{}
	}

	return ApplicationDTO{
		ID:        app.ID,
		UserID:    app.UserID,
		ProductID: app.ProductID,
		Status:    app.Status,
		Comment:   app.Comment,
		Files:     files,
		Tags:      tags,
		Version:   app.Version,
		CreatedAt: app.CreatedAt,
		UpdatedAt: app.UpdatedAt,
		DecidedAt: app.DecidedAt,
	}
}

func MapPageToResponse(page *applications.ApplicationPage) ApplicationPageDTO {
	dto := ApplicationPageDTO{Items: make([]ApplicationDTO, 0, len(page.Items))}
	for i := range page.Items {
		dto.Items = append(dto.Items, MapApplicationToResponse(&page.Items[i]))
	}
	if page.NextCursor != nil {
		dto.NextCursor = page.NextCursor.Encode()
	}
	return dto
}

func MapHistoryToResponse(history []entities.StatusHistory) []StatusHistoryDTO {
	out := make([]StatusHistoryDTO, 0, len(history))
	for _, h := range history {
		out = append(out, StatusHistoryDTO{
			FromStatus: h.FromStatus,
			ToStatus:   h.ToStatus,
			ActorID:    h.ActorID,
			Reason:     h.Reason,
			CreatedAt:  h.CreatedAt,
		})
	}
	return out
}
