package cascade

import (
	"context"
	"fmt"
	"log/slog"

	"applicationservice/src/domain"

	"github.com/google/uuid"
)

type DependentDeleter interface {
	DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteByProductID(ctx context.Context, productID uuid.UUID) (int64, error)
}

// ExistenceInvalidator forgets cached "exists" answers for a deleted entity.
type ExistenceInvalidator interface {
	Invalidate(ctx context.Context, kind domain.EntityKind, id uuid.UUID) error
}

// CascadeService removes the applications that depend on a deleted upstream entity.
// Applying the same envelope twice deletes nothing the second time and is not an error.
type CascadeService struct {
	logger      *slog.Logger
	deleter     DependentDeleter
	invalidator ExistenceInvalidator
}

// NewCascadeService accepts a nil invalidator when no existence cache is deployed.
func NewCascadeService(logger *slog.Logger, deleter DependentDeleter, invalidator ExistenceInvalidator) *CascadeService {
	return &CascadeService{
		logger:      logger,
		deleter:     deleter,
		invalidator: invalidator,
	}
}

func (s *CascadeService) Apply(ctx context.Context, envelope domain.Envelope) (int64, error) {
	var (
		deleted int64
		kind    domain.EntityKind
		err     error
	)

	switch envelope.EventType {
	case domain.EventUserDeleted:
		kind = domain.KindUser
		deleted, err = s.deleter.DeleteByUserID(ctx, envelope.SubjectID)
	case domain.EventProductDeleted:
		kind = domain.KindProduct
		deleted, err = s.deleter.DeleteByProductID(ctx, envelope.SubjectID)
	default:
		return 0, fmt.Errorf("CascadeService.Apply - %s is not a deletion event: %w", envelope.EventType, domain.ErrValidation)
	}
	if err != nil {
		return 0, fmt.Errorf("CascadeService.Apply - %s %s: %w", envelope.EventType, envelope.SubjectID, err)
	}

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, kind, envelope.SubjectID); err != nil {
			s.logger.Warn("Failed to invalidate existence cache",
				"event_id", envelope.EventID,
				"error", err)
		}
	}

	s.logger.Info("Cascading deletion applied",
		"event_id", envelope.EventID,
		"event_type", envelope.EventType,
		"subject_id", envelope.SubjectID,
		"deleted", deleted)

	return deleted, nil
}
