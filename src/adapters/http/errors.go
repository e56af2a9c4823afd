package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"applicationservice/src/domain"

	"github.com/google/uuid"
)

const (
	actorIDHeader   = "X-Actor-Id"
	actorRoleHeader = "X-Actor-Role"

	retryAfterSeconds = "5"
)

var statusByCode = map[string]int{
	domain.ErrNotFound.Code:           http.StatusNotFound,
	domain.ErrServiceUnavailable.Code: http.StatusServiceUnavailable,
	domain.ErrForbidden.Code:          http.StatusForbidden,
	domain.ErrValidation.Code:         http.StatusBadRequest,
	domain.ErrConflict.Code:           http.StatusConflict,
}

// writeError maps domain errors to status codes. Anything else is a 500 with a
// generic message; the detail only goes to the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		status := statusByCode[domainErr.Code]
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", retryAfterSeconds)
		}
		s.logger.Info("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err)
		writeJSON(w, status, ErrorDTO{Code: domainErr.Code, Message: err.Error()})
		return
	}

	s.logger.Error("Unexpected error handling request",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err)
	writeJSON(w, http.StatusInternalServerError, ErrorDTO{
		Code:    "INTERNAL_ERROR",
		Message: domain.ErrUnavailableServer.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// actorFrom reads the already-authenticated actor forwarded by the gateway.
func actorFrom(r *http.Request) (domain.Actor, error) {
	id, err := uuid.Parse(r.Header.Get(actorIDHeader))
	if err != nil {
		return domain.Actor{}, fmt.Errorf("missing or invalid %s header: %w", actorIDHeader, domain.ErrForbidden)
	}

	role := domain.Role(r.Header.Get(actorRoleHeader))
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return domain.Actor{}, fmt.Errorf("invalid %s header: %w", actorRoleHeader, domain.ErrForbidden)
	}

	return domain.Actor{ID: id, Role: role}, nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, domain.Validationf("%s must be a valid id", name)
	}
	return id, nil
}

func queryID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, domain.Validationf("%s must be a valid id", name)
	}
	return &id, nil
}
