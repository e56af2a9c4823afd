package entities

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
)

type ApplicationStatus string

const (
	StatusSubmitted   ApplicationStatus = "SUBMITTED"
	StatusUnderReview ApplicationStatus = "UNDER_REVIEW"
	StatusApproved    ApplicationStatus = "APPROVED"
	StatusRejected    ApplicationStatus = "REJECTED"
	StatusCancelled   ApplicationStatus = "CANCELLED"
)

var allowedTransitions = map[ApplicationStatus][]ApplicationStatus{
	StatusSubmitted:   {StatusUnderReview, StatusCancelled},
	StatusUnderReview: {StatusApproved, StatusRejected, StatusCancelled},
}

func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

func (s ApplicationStatus) CanMoveTo(next ApplicationStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// É a entidade primária do serviço. Files e Tags apontam para entidades de
// outros serviços; nada garante que ainda existam.
type Application struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	ProductID uuid.UUID         `json:"product_id"`
	Status    ApplicationStatus `json:"status"`
	Comment   *string           `json:"comment,omitempty"`
	Files     []uuid.UUID       `json:"files"`
	Tags      []uuid.UUID       `json:"tags"`

	// Version is bumped on every write; set mutations are checked against it.
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
}

// Linha do histórico de transições de status.
type StatusHistory struct {
	ID            uuid.UUID          `json:"id"`
	ApplicationID uuid.UUID          `json:"application_id"`
	FromStatus    *ApplicationStatus `json:"from_status,omitempty"`
	ToStatus      ApplicationStatus  `json:"to_status"`
	ActorID       uuid.UUID          `json:"actor_id"`
	Reason        *string            `json:"reason,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// AddToSet returns the set with id added and whether it changed.
func AddToSet(set []uuid.UUID, id uuid.UUID) ([]uuid.UUID, bool) {
	for _, existing := range set {
		if existing == id {
			return set, false
		}
	}
	out := append(append([]uuid.UUID{}, set...), id)
	SortIDs(out)
	return out, true
}

// RemoveFromSet returns the set without id and whether it changed.
func RemoveFromSet(set []uuid.UUID, id uuid.UUID) ([]uuid.UUID, bool) {
	out := make([]uuid.UUID, 0, len(set))
	for _, existing := range set {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out, len(out) != len(set)
}

func SortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
}
