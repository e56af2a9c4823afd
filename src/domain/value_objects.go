package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ############################################################
// ################### TAXONOMIA DE ERROS #####################
// ############################################################

// DomainError is the only error kind that crosses the gateway and transport
// boundaries. Everything above them matches on these values with errors.Is.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

var (
	ErrNotFound           = NewDomainError("NOT_FOUND", "referenced entity not found")
	ErrServiceUnavailable = NewDomainError("SERVICE_UNAVAILABLE", "dependency unavailable, try again later")
	ErrForbidden          = NewDomainError("FORBIDDEN", "actor is not allowed to perform this action")
	ErrValidation         = NewDomainError("VALIDATION_ERROR", "invalid request")
	ErrConflict           = NewDomainError("CONFLICT", "resource conflicts with its current state")

	// ErrVersionMismatch carries the CONFLICT code but is a distinct value:
	// callers retry it, they never retry ErrConflict.
	ErrVersionMismatch = NewDomainError("CONFLICT", "resource was modified concurrently")

	ErrUnavailableServer = errors.New("Oops, something unexpected happened. Please try again later.")
)

// CodeOf returns the DomainError code carried by err, or "" when err is not a domain error.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Validationf wraps ErrValidation with a field level detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

// ############################################################
// ################## ATORES E REFERENCIAS ####################
// ############################################################

type Role string

const (
	RoleUser     Role = "user"
	RoleReviewer Role = "reviewer"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleReviewer, RoleAdmin:
		return true
	}
	return false
}

// Actor is passed explicitly to every use case; there is no ambient auth state.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanReview reports whether the actor may see and move any application.
func (a Actor) CanReview() bool {
	return a.Role == RoleAdmin || a.Role == RoleReviewer
}

type EntityKind string

const (
	KindUser    EntityKind = "user"
	KindProduct EntityKind = "product"
	KindFile    EntityKind = "file"
	KindTag     EntityKind = "tag"
)

func (k EntityKind) Valid() bool {
	switch k {
	case KindUser, KindProduct, KindFile, KindTag:
		return true
	}
	return false
}

// EntityRef identifies an entity owned by another service.
type EntityRef struct {
	Kind EntityKind
	ID   uuid.UUID
}

func NewEntityRef(kind EntityKind, id uuid.UUID) EntityRef {
	return EntityRef{Kind: kind, ID: id}
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// ############################################################
// ####################### PAGINACAO ##########################
// ############################################################

// ApplicationFilter narrows a keyset page without changing its order.
type ApplicationFilter struct {
	UserID    *uuid.UUID
	ProductID *uuid.UUID
}
