package applications

import (
	"context"
	"fmt"

	"applicationservice/src/domain"
	"applicationservice/src/domain/entities"

	"github.com/google/uuid"
)

type ListApplicationsRequest struct {
	Cursor    string
	Limit     int
	UserID    *uuid.UUID
	ProductID *uuid.UUID
}

// ApplicationPage is one keyset page. NextCursor is nil at the end of the stream.
type ApplicationPage struct {
	Items      []entities.Application
	NextCursor *domain.CursorToken
}

func (s *ApplicationService) ListApplications(ctx context.Context, actor domain.Actor, request ListApplicationsRequest) (*ApplicationPage, error) {
	if err := requireActor(actor); err != nil {
		return nil, fmt.Errorf("ApplicationService.ListApplications - %w", err)
	}

	limit, err := domain.NormalizeLimit(request.Limit)
	if err != nil {
		return nil, fmt.Errorf("ApplicationService.ListApplications - %w", err)
	}

	cursor, err := domain.DecodeCursor(request.Cursor)
	if err != nil {
		return nil, fmt.Errorf("ApplicationService.ListApplications - %w", err)
	}

	filter := domain.ApplicationFilter{UserID: request.UserID, ProductID: request.ProductID}
	if !actor.CanReview() {
		if filter.UserID != nil && *filter.UserID != actor.ID {
			return nil, fmt.Errorf("ApplicationService.ListApplications - listing applications of user %s: %w", *filter.UserID, domain.ErrForbidden)
		}
		filter.UserID = &actor.ID
	}

	return s.Page(ctx, filter, cursor, limit)
}

// Page busca limit+1 linhas: a linha extra só diz se existe uma próxima página,
// assim a última página nunca devolve um cursor que leva a uma página vazia.
func (s *ApplicationService) Page(ctx context.Context, filter domain.ApplicationFilter, cursor *domain.CursorToken, limit int) (*ApplicationPage, error) {
	limit, err := domain.NormalizeLimit(limit)
	if err != nil {
		return nil, fmt.Errorf("ApplicationService.Page - %w", err)
	}

	rows, err := s.queryRepo.Page(ctx, filter, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("ApplicationService.Page - %w", err)
	}

	page := &ApplicationPage{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		last := page.Items[limit-1]
		page.NextCursor = domain.NewCursorToken(last.CreatedAt, last.ID)
	}
	if page.Items == nil {
		page.Items = []entities.Application{}
	}

	return page, nil
}
