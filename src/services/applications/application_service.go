package applications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"applicationservice/src/adapters/remote"
	"applicationservice/src/domain"
	"applicationservice/src/domain/entities"

	"github.com/google/uuid"
)

const (
	// maxConflictRetries bounds the optimistic read-modify-write loop.
	maxConflictRetries = 3
	publishTimeout     = time.Second
)

type ApplicationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Application, error)
	Insert(ctx context.Context, app *entities.Application, history entities.StatusHistory) error
	UpdateReferences(ctx context.Context, app *entities.Application) error
	UpdateStatus(ctx context.Context, app *entities.Application, history entities.StatusHistory) error
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

type ApplicationReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Application, error)
	Page(ctx context.Context, filter domain.ApplicationFilter, cursor *domain.CursorToken, limit int) ([]entities.Application, error)
	ListHistory(ctx context.Context, applicationID uuid.UUID) ([]entities.StatusHistory, error)
}

type AttachmentPublisher interface {
	RequestTagCreate(ctx context.Context, applicationID uuid.UUID, actorID uuid.UUID, names []string) error
	RequestTagAttach(ctx context.Context, applicationID uuid.UUID, actorID uuid.UUID, tagIDs []uuid.UUID) error
	RequestFileAttach(ctx context.Context, applicationID uuid.UUID, actorID uuid.UUID, fileIDs []uuid.UUID) error
}

type ApplicationService struct {
	logger    *slog.Logger
	gateway   remote.Checker
	writeRepo ApplicationStore
	queryRepo ApplicationReader
	publisher AttachmentPublisher
	now       func() time.Time
}

func NewApplicationService(
	logger *slog.Logger,
	gateway remote.Checker,
	writeRepo ApplicationStore,
	queryRepo ApplicationReader,
	publisher AttachmentPublisher,
) *ApplicationService {
	return &ApplicationService{
		logger:    logger,
		gateway:   gateway,
		writeRepo: writeRepo,
		queryRepo: queryRepo,
		publisher: publisher,
		now:       time.Now,
	}
}

// timestamp is truncated to what Postgres stores, so cursors built from
// in-memory values match the rows.
func (s *ApplicationService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func requireActor(actor domain.Actor) error {
	if actor.ID == uuid.Nil || !actor.Role.Valid() {
		return fmt.Errorf("missing or invalid actor: %w", domain.ErrForbidden)
	}
	return nil
}

func canModify(actor domain.Actor, app *entities.Application) bool {
	return actor.IsAdmin() || actor.ID == app.UserID
}

func canRead(actor domain.Actor, app *entities.Application) bool {
	return actor.CanReview() || actor.ID == app.UserID
}

// retryOnStaleVersion reruns fn while the row changed under it, up to
// maxConflictRetries times, then gives up with domain.ErrConflict.
func retryOnStaleVersion(fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, domain.ErrVersionMismatch) {
			return err
		}
	}
	return fmt.Errorf("gave up after %d retries: %v: %w", maxConflictRetries, err, domain.ErrConflict)
}
