package applications

import (
	"context"
	"fmt"
	"strings"

	"applicationservice/src/adapters/remote"
	"applicationservice/src/domain"
	"applicationservice/src/domain/entities"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	maxCommentLength = 2000
	maxTagNameLength = 64
)

type CreateApplicationRequest struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
	Comment   *string
	TagNames  []string
	TagIDs    []uuid.UUID
	FileIDs   []uuid.UUID
}

func (r CreateApplicationRequest) validate() error {
	if r.UserID == uuid.Nil {
		return domain.Validationf("user_id is required")
	}
	if r.ProductID == uuid.Nil {
		return domain.Validationf("product_id is required")
	}
	if r.Comment != nil && len(*r.Comment) > maxCommentLength {
		return domain.Validationf("comment must have at most %d characters", maxCommentLength)
	}
	for _, name := range r.TagNames {
		name = strings.TrimSpace(name)
		if name == "" || len(name) > maxTagNameLength {
			return domain.Validationf("tag names must have between 1 and %d characters", maxTagNameLength)
		}
	}
	for _, id := range append(append([]uuid.UUID{}, r.TagIDs...), r.FileIDs...) {
		if id == uuid.Nil {
			return domain.Validationf("tag_ids and file_ids must be valid ids")
		}
	}
	return nil
}

// references lists every foreign entity the request points at, duplicates removed.
func (r CreateApplicationRequest) references() []domain.EntityRef {
	refs := []domain.EntityRef{
		domain.NewEntityRef(domain.KindUser, r.UserID),
		domain.NewEntityRef(domain.KindProduct, r.ProductID),
	}
	for _, id := range uniqueIDs(r.FileIDs) {
		refs = append(refs, domain.NewEntityRef(domain.KindFile, id))
	}
	for _, id := range uniqueIDs(r.TagIDs) {
		refs = append(refs, domain.NewEntityRef(domain.KindTag, id))
	}
	return refs
}

// CreateApplication valida todas as referências antes de gravar qualquer coisa.
// Se algum serviço estiver fora, nada é persistido e nada é publicado.
func (s *ApplicationService) CreateApplication(ctx context.Context, actor domain.Actor, request CreateApplicationRequest) (*entities.Application, error) {
	if err := requireActor(actor); err != nil {
		return nil, fmt.Errorf("ApplicationService.CreateApplication - %w", err)
	}
	if err := request.validate(); err != nil {
		return nil, fmt.Errorf("ApplicationService.CreateApplication - %w", err)
	}
	if !actor.IsAdmin() && actor.ID != request.UserID {
		return nil, fmt.Errorf("ApplicationService.CreateApplication - actor %s cannot apply on behalf of user %s: %w", actor.ID, request.UserID, domain.ErrForbidden)
	}

	if err := s.verifyReferences(ctx, request.references()); err != nil {
		return nil, fmt.Errorf("ApplicationService.CreateApplication - %w", err)
	}

	now := s.timestamp()
	app := &entities.Application{
		ID:        uuid.New(),
		UserID:    request.UserID,
		ProductID: request.ProductID,
		Status:    entities.StatusSubmitted,
		Comment:   request.Comment,
		Files:     uniqueIDs(request.FileIDs),
		Tags:      uniqueIDs(request.TagIDs),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	history := entities.StatusHistory{
		ID:            uuid.New(),
		ApplicationID: app.ID,
		ToStatus:      entities.StatusSubmitted,
		ActorID:       actor.ID,
		CreatedAt:     now,
	}

	if err := s.writeRepo.Insert(ctx, app, history); err != nil {
		return nil, fmt.Errorf("ApplicationService.CreateApplication - %w", err)
	}

	s.requestAttachments(ctx, actor, app, uniqueNames(request.TagNames))

	return app, nil
}

// verifyReferences checks every ref in parallel; the first failure cancels the rest.
func (s *ApplicationService) verifyReferences(ctx context.Context, refs []domain.EntityRef) error {
	group, groupCtx := errgroup.WithContext(ctx)

	for _, ref := range refs {
		group.Go(func() error {
			return remote.Require(groupCtx, s.gateway, ref)
		})
	}

	return group.Wait()
}

// requestAttachments publica um envelope por tipo de anexo não vazio. Falhas são
// só logadas: a aplicação já foi gravada e o efeito secundário é best-effort.
func (s *ApplicationService) requestAttachments(ctx context.Context, actor domain.Actor, app *entities.Application, tagNames []string) {
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if len(tagNames) > 0 {
		if err := s.publisher.RequestTagCreate(publishCtx, app.ID, actor.ID, tagNames); err != nil {
			s.logPublishFailure(app, domain.EventTagCreateRequest, err)
		}
	}
	if len(app.Tags) > 0 {
		if err := s.publisher.RequestTagAttach(publishCtx, app.ID, actor.ID, app.Tags); err != nil {
			s.logPublishFailure(app, domain.EventTagAttachRequest, err)
		}
	}
	if len(app.Files) > 0 {
		if err := s.publisher.RequestFileAttach(publishCtx, app.ID, actor.ID, app.Files); err != nil {
			s.logPublishFailure(app, domain.EventFileAttachRequest, err)
		}
	}
}

func (s *ApplicationService) logPublishFailure(app *entities.Application, eventType domain.EventType, err error) {
	s.logger.Warn("Failed to publish attachment request, application kept",
		"application_id", app.ID,
		"event_type", eventType,
		"error", err)
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	entities.SortIDs(out)
	return out
}

func uniqueNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
