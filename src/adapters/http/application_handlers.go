package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"applicationservice/src/domain"
	"applicationservice/src/services/applications"
)

const maxBodyBytes = 1 << 20

func (s *Server) CreateApplication(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body CreateApplicationDTO
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		s.writeError(w, r, domain.Validationf("invalid request body: %v", err))
		return
	}

	app, err := s.applicationService.CreateApplication(r.Context(), actor, body.toRequest())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/applications/"+app.ID.String())
	writeJSON(w, http.StatusCreated, MapApplicationToResponse(app))
}

func (s *Server) GetApplication(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	app, err := s.applicationService.GetApplication(r.Context(), actor, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MapApplicationToResponse(app))
}

func (s *Server) ListApplications(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	request := applications.ListApplicationsRequest{Cursor: query.Get("cursor")}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			s.writeError(w, r, domain.Validationf("limit must be between 1 and %d", domain.MaxPageLimit))
			return
		}
		request.Limit = limit
	}

	if request.UserID, err = queryID(r, "user_id"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if request.ProductID, err = queryID(r, "product_id"); err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := s.applicationService.ListApplications(r.Context(), actor, request)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MapPageToResponse(page))
}

func (s *Server) DeleteApplication(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.applicationService.DeleteApplication(r.Context(), actor, id); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body ChangeStatusDTO
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		s.writeError(w, r, domain.Validationf("invalid request body: %v", err))
		return
	}

	app, err := s.applicationService.ChangeStatus(r.Context(), actor, id, applications.ChangeStatusRequest{
		Status: body.Status,
		Reason: body.Reason,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MapApplicationToResponse(app))
}

func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	history, err := s.applicationService.GetHistory(r.Context(), actor, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MapHistoryToResponse(history))
}
