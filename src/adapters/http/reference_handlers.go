package http

import (
	"context"
	"net/http"

	"applicationservice/src/domain"
	"applicationservice/src/domain/entities"

	"github.com/google/uuid"
)

type referenceMutation func(ctx context.Context, actor domain.Actor, applicationID uuid.UUID, targetID uuid.UUID) (*entities.Application, error)

func (s *Server) AttachTag(w http.ResponseWriter, r *http.Request) {
	s.mutateReference(w, r, "tagId", s.applicationService.AttachTag)
}

func (s *Server) DetachTag(w http.ResponseWriter, r *http.Request) {
	s.mutateReference(w, r, "tagId", s.applicationService.DetachTag)
}

func (s *Server) AttachFile(w http.ResponseWriter, r *http.Request) {
	s.mutateReference(w, r, "fileId", s.applicationService.AttachFile)
}

func (s *Server) DetachFile(w http.ResponseWriter, r *http.Request) {
	s.mutateReference(w, r, "fileId", s.applicationService.DetachFile)
}

func (s *Server) mutateReference(w http.ResponseWriter, r *http.Request, targetParam string, mutate referenceMutation) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	applicationID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	targetID, err := pathID(r, targetParam)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	app, err := mutate(r.Context(), actor, applicationID, targetID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MapApplicationToResponse(app))
}
