package applications

import (
	"context"
	"fmt"

	"applicationservice/src/domain"
	"applicationservice/src/domain/entities"

	"github.com/google/uuid"
)

type ChangeStatusRequest struct {
	Status entities.ApplicationStatus
	Reason *string
}

// ChangeStatus moves the application through its workflow. Reviewers and admins
// may make any allowed transition; the owner may only cancel.
func (s *ApplicationService) ChangeStatus(ctx context.Context, actor domain.Actor, applicationID uuid.UUID, request ChangeStatusRequest) (*entities.Application, error) {
	if err := requireActor(actor); err != nil {
		return nil, fmt.Errorf("ApplicationService.ChangeStatus - %w", err)
	}
	if !request.Status.Valid() {
		return nil, fmt.Errorf("ApplicationService.ChangeStatus - %w", domain.Validationf("unknown status %q", request.Status))
	}
	if request.Reason != nil && len(*request.Reason) > maxCommentLength {
		return nil, fmt.Errorf("ApplicationService.ChangeStatus - %w", domain.Validationf("reason must have at most %d characters", maxCommentLength))
	}

	var result *entities.Application

	err := retryOnStaleVersion(func() error {
		app, err := s.writeRepo.GetByID(ctx, applicationID)
		if err != nil {
			return err
		}

		ownerCancelling := actor.ID == app.UserID && request.Status == entities.StatusCancelled
		if !actor.CanReview() && !ownerCancelling {
			return fmt.Errorf("moving application %s to %s: %w", applicationID, request.Status, domain.ErrForbidden)
		}
		if !app.Status.CanMoveTo(request.Status) {
			return fmt.Errorf("cannot move application %s from %s to %s: %w", applicationID, app.Status, request.Status, domain.ErrConflict)
		}

		now := s.timestamp()
		from := app.Status
		history := entities.StatusHistory{
			ID:            uuid.New(),
			ApplicationID: app.ID,
			FromStatus:    &from,
			ToStatus:      request.Status,
			ActorID:       actor.ID,
			Reason:        request.Reason,
			CreatedAt:     now,
		}

		app.Status = request.Status
		if request.Status.IsTerminal() {
			app.DecidedAt = &now
		}

		if err := s.writeRepo.UpdateStatus(ctx, app, history); err != nil {
			return err
		}

		result = app
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ApplicationService.ChangeStatus - %w", err)
	}

	s.logger.Info("Application status changed",
		"application_id", applicationID,
		"status", result.Status,
		"actor_id", actor.ID)

	return result, nil
}

func (s *ApplicationService) GetHistory(ctx context.Context, actor domain.Actor, applicationID uuid.UUID) ([]entities.StatusHistory, error) {
	if err := requireActor(actor); err != nil {
		return nil, fmt.Errorf("ApplicationService.GetHistory - %w", err)
	}

	app, err := s.queryRepo.GetByID(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("ApplicationService.GetHistory - %w", err)
	}
	if !canRead(actor, app) {
		return nil, fmt.Errorf("ApplicationService.GetHistory - application %s: %w", applicationID, domain.ErrForbidden)
	}

	history, err := s.queryRepo.ListHistory(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("ApplicationService.GetHistory - %w", err)
	}
	if history == nil {
		history = []entities.StatusHistory{}
	}

	return history, nil
}
