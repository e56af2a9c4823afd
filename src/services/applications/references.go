package applications

import (
	"context"
	"fmt"

	"applicationservice/src/adapters/remote"
	"applicationservice/src/domain"
	"applicationservice/src/domain/entities"

	"github.com/google/uuid"
)

type setMutation func(app *entities.Application) bool

func (s *ApplicationService) AttachTag(ctx context.Context, actor domain.Actor, applicationID uuid.UUID, tagID uuid.UUID) (*entities.Application, error) {
	app, err := s.attach(ctx, actor, applicationID, domain.NewEntityRef(domain.KindTag, tagID), func(app *entities.Application) bool {
		var changed bool
		app.Tags, changed = entities.AddToSet(app.Tags, tagID)
		return changed
	})
	if err != nil {
		return nil, fmt.Errorf("ApplicationService.AttachTag - %w", err)
	}
	return app, nil
}

func (s *ApplicationService) DetachTag(ctx context.Context, actor domain.Actor, applicationID uuid.UUID, tagID uuid.UUID) (*entities.Application, error) {
	app, err := s.mutateReferences(ctx, actor, applicationID, func(app *entities.Application) bool {
		var changed bool
		app.Tags, changed = entities.RemoveFromSet(app.Tags, tagID)
		return changed
	})
	if err != nil {
		return nil, fmt.Errorf("ApplicationService.DetachTag - %w", err)
	}
	return app, nil
}

func (s *ApplicationService) AttachFile(ctx context.Context, actor domain.Actor, applicationID uuid.UUID, fileID uuid.UUID) (*entities.Application, error) {
	app, err := s.attach(ctx, actor, applicationID, domain.NewEntityRef(domain.KindFile, fileID), func(app *entities.Application) bool {
		var changed bool
		app.Files, changed = entities.AddToSet(app.Files, fileID)
		return changed
	})
	if err != nil {
		return nil, fmt.Errorf("ApplicationService.AttachFile - %w", err)
	}
	return app, nil
}

func (s *ApplicationService) DetachFile(ctx context.Context, actor domain.Actor, applicationID uuid.UUID, fileID uuid.UUID) (*entities.Application, error) {
	app, err := s.mutateReferences(ctx, actor, applicationID, func(app *entities.Application) bool {
		var changed bool
		app.Files, changed = entities.RemoveFromSet(app.Files, fileID)
		return changed
	})
	if err != nil {
		return nil, fmt.Errorf("ApplicationService.DetachFile - %w", err)
	}
	return app, nil
}

// attach re-validates the secondary entity before touching the application.
func (s *ApplicationService) attach(ctx context.Context, actor domain.Actor, applicationID uuid.UUID, ref domain.EntityRef, mutate setMutation) (*entities.Application, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if ref.ID == uuid.Nil {
		return nil, domain.Validationf("%s id is required", ref.Kind)
	}
	if err := remote.Require(ctx, s.gateway, ref); err != nil {
		return nil, err
	}
	return s.mutateReferences(ctx, actor, applicationID, mutate)
}

// mutateReferences é um read-modify-write otimista: relê a linha a cada tentativa
// e só grava se a versão não mudou. Uma mutação sem efeito não grava nada.
func (s *ApplicationService) mutateReferences(ctx context.Context, actor domain.Actor, applicationID uuid.UUID, mutate setMutation) (*entities.Application, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var result *entities.Application

	err := retryOnStaleVersion(func() error {
		app, err := s.writeRepo.GetByID(ctx, applicationID)
		if err != nil {
			return err
		}
		if !canModify(actor, app) {
			return fmt.Errorf("application %s: %w", applicationID, domain.ErrForbidden)
		}

		result = app
		if !mutate(app) {
			return nil
		}
		return s.writeRepo.UpdateReferences(ctx, app)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
