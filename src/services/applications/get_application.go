package applications

import (
	"context"
	"fmt"

	"applicationservice/src/adapters/remote"
	"applicationservice/src/domain"
	"applicationservice/src/domain/entities"

	"github.com/google/uuid"
)

// GetApplication returns the application with references confirmed absent filtered out.
// The filtered sets are written back best-effort; a failure there never fails the read.
func (s *ApplicationService) GetApplication(ctx context.Context, actor domain.Actor, id uuid.UUID) (*entities.Application, error) {
	if err := requireActor(actor); err != nil {
		return nil, fmt.Errorf("ApplicationService.GetApplication - %w", err)
	}

	app, err := s.queryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ApplicationService.GetApplication - %w", err)
	}
	if !canRead(actor, app) {
		return nil, fmt.Errorf("ApplicationService.GetApplication - application %s: %w", id, domain.ErrForbidden)
	}

	refs := make([]domain.EntityRef, 0, len(app.Files)+len(app.Tags))
	for _, fileID := range app.Files {
		refs = append(refs, domain.NewEntityRef(domain.KindFile, fileID))
	}
	for _, tagID := range app.Tags {
		refs = append(refs, domain.NewEntityRef(domain.KindTag, tagID))
	}
	if len(refs) == 0 {
		return app, nil
	}

	absent, err := remote.ExistsMany(ctx, s.logger, s.gateway, refs)
	if err != nil {
		s.logger.Warn("Could not resolve references, returning them unfiltered",
			"application_id", app.ID,
			"error", err)
		return app, nil
	}
	if len(absent) == 0 {
		return app, nil
	}

	app.Files = withoutAbsent(app.Files, domain.KindFile, absent)
	app.Tags = withoutAbsent(app.Tags, domain.KindTag, absent)

	if err := s.pruneReferences(ctx, app.ID, absent); err != nil {
		s.logger.Warn("Failed to prune broken references",
			"application_id", app.ID,
			"absent", len(absent),
			"error", err)
	}

	return app, nil
}

func (s *ApplicationService) pruneReferences(ctx context.Context, id uuid.UUID, absent map[domain.EntityRef]bool) error {
	return retryOnStaleVersion(func() error {
		app, err := s.writeRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		files := withoutAbsent(app.Files, domain.KindFile, absent)
		tags := withoutAbsent(app.Tags, domain.KindTag, absent)
		if len(files) == len(app.Files) && len(tags) == len(app.Tags) {
			return nil
		}

		app.Files, app.Tags = files, tags
		return s.writeRepo.UpdateReferences(ctx, app)
	})
}

func withoutAbsent(ids []uuid.UUID, kind domain.EntityKind, absent map[domain.EntityRef]bool) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !absent[domain.NewEntityRef(kind, id)] {
			out = append(out, id)
		}
	}
	return out
}
