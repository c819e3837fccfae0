package rest

import (
	"net/http"
	"time"
)

func (s *Server) HandleSchedulerRun(w http.ResponseWriter, r *http.Request) {
	result := s.engine.ProcessScheduledExecutions(time.Now())
	respondWithJSON(w, http.StatusOK, result)
}
