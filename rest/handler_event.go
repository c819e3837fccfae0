package rest

import (
	"encoding/json"
	"net/http"

	"github.com/sendloop/journey/logger"
	"github.com/sendloop/journey/model"
	"go.uber.org/zap"
)

func (s *Server) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var eventReq model.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&eventReq); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid event payload")
		return
	}
	defer r.Body.Close()
	if len(eventReq.EventType) == 0 {
		respondWithError(w, http.StatusBadRequest, "eventType is required")
		return
	}
	event := model.TriggerEvent{
		Shop:    eventReq.Shop,
		Payload: eventReq.Payload,
	}
	if eventReq.ReceivedAt != nil {
		event.ReceivedAt = *eventReq.ReceivedAt
	}
	matched, err := s.engine.MatchAndExecute(eventReq.EventType, event)
	if err != nil {
		logger.Error("error processing event", zap.String("eventType", eventReq.EventType), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error processing event")
		return
	}
	respondOK(w, map[string]any{"enrolled": matched})
}
