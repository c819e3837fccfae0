package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sendloop/journey/logger"
	"go.uber.org/zap"
)

func (s *Server) HandleGetActivity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := vars["id"]
	if !ok {
		respondWithError(w, http.StatusBadRequest, "enrollment id is required")
		return
	}
	records, err := s.storage.Activities().GetByEnrollment(id)
	if err != nil {
		logger.Error("error loading activity", zap.String("enrollmentId", id), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error loading activity")
		return
	}
	respondWithJSON(w, http.StatusOK, records)
}

func (s *Server) HandleExitEnrollment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := vars["id"]
	if !ok {
		respondWithError(w, http.StatusBadRequest, "enrollment id is required")
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	json.NewDecoder(r.Body).Decode(&body)
	defer r.Body.Close()
	if err := s.engine.ExitJourney(id, body.Reason); err != nil {
		logger.Error("error exiting enrollment", zap.String("enrollmentId", id), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "error exiting enrollment")
		return
	}
	respondOKWithoutBody(w)
}

func (s *Server) HandleLinkClick(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := vars["id"]
	if !ok {
		respondWithError(w, http.StatusBadRequest, "enrollment id is required")
		return
	}
	var body struct {
		TrackingId string `json:"trackingId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.TrackingId) == 0 {
		respondWithError(w, http.StatusBadRequest, "trackingId is required")
		return
	}
	defer r.Body.Close()
	if err := s.engine.RecordLinkClick(id, body.TrackingId); err != nil {
		logger.Error("error recording click", zap.String("enrollmentId", id), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "error recording click")
		return
	}
	respondOKWithoutBody(w)
}
