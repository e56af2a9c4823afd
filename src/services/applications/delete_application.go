package applications

import (
	"context"
	"fmt"

	"applicationservice/src/domain"

	"github.com/google/uuid"
)

func (s *ApplicationService) DeleteApplication(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	if err := requireActor(actor); err != nil {
		return fmt.Errorf("ApplicationService.DeleteApplication - %w", err)
	}

	app, err := s.writeRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ApplicationService.DeleteApplication - %w", err)
	}
	if !canModify(actor, app) {
		return fmt.Errorf("ApplicationService.DeleteApplication - application %s: %w", id, domain.ErrForbidden)
	}

	deleted, err := s.writeRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("ApplicationService.DeleteApplication - %w", err)
	}
	// removed between the read and the delete
	if deleted == 0 {
		return fmt.Errorf("ApplicationService.DeleteApplication - application %s: %w", id, domain.ErrNotFound)
	}

	s.logger.Info("Application deleted", "application_id", id, "actor_id", actor.ID)
	return nil
}
