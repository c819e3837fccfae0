package rest

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sendloop/journey/logger"
	"github.com/sendloop/journey/model"
	"go.uber.org/zap"
)

func (s *Server) HandleCreateJourney(w http.ResponseWriter, r *http.Request) {
	var journey model.JourneyDefinition
	if err := json.NewDecoder(r.Body).Decode(&journey); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid journey definition")
		return
	}
	defer r.Body.Close()
	if len(journey.Id) == 0 {
		journey.Id = uuid.New().String()
	}
	if len(journey.Status) == 0 {
		journey.Status = model.JOURNEY_STATUS_DRAFT
	}
	report := s.validator.Validate(&journey)
	if err := s.storage.Journeys().Save(journey); err != nil {
		logger.Error("error saving journey", zap.String("journeyId", journey.Id), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error saving journey")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"id": journey.Id, "validation": report})
}

func (s *Server) HandleGetJourney(w http.ResponseWriter, r *http.Request) {
	journey, ok := s.loadJourney(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, journey)
}

func (s *Server) HandleValidateJourney(w http.ResponseWriter, r *http.Request) {
	journey, ok := s.loadJourney(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, s.validator.Validate(journey))
}

func (s *Server) HandleActivateJourney(w http.ResponseWriter, r *http.Request) {
	journey, ok := s.loadJourney(w, r)
	if !ok {
		return
	}
	report := s.validator.Validate(journey)
	if len(report.Errors) > 0 {
		respondWithJSON(w, http.StatusUnprocessableEntity, report)
		return
	}
	journey.Status = model.JOURNEY_STATUS_ACTIVE
	if err := s.storage.Journeys().Save(*journey); err != nil {
		logger.Error("error activating journey", zap.String("journeyId", journey.Id), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error activating journey")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"id": journey.Id, "status": journey.Status, "validation": report})
}

func (s *Server) HandleGetEnrollments(w http.ResponseWriter, r *http.Request) {
	journey, ok := s.loadJourney(w, r)
	if !ok {
		return
	}
	enrollments, err := s.storage.Enrollments().GetByJourney(journey.Id)
	if err != nil {
		logger.Error("error loading enrollments", zap.String("journeyId", journey.Id), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error loading enrollments")
		return
	}
	respondWithJSON(w, http.StatusOK, enrollments)
}

func (s *Server) loadJourney(w http.ResponseWriter, r *http.Request) (*model.JourneyDefinition, bool) {
	vars := mux.Vars(r)
	id, ok := vars["id"]
	if !ok {
		respondWithError(w, http.StatusBadRequest, "journey id is required")
		return nil, false
	}
	journey, err := s.storage.Journeys().Get(id)
	if err != nil {
		logger.Error("error loading journey", zap.String("journeyId", id), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error loading journey")
		return nil, false
	}
	if journey == nil {
		respondWithError(w, http.StatusNotFound, "journey not found")
		return nil, false
	}
	return journey, true
}
