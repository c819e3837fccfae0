package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sendloop/journey/engine"
	"github.com/sendloop/journey/logger"
	"github.com/sendloop/journey/persistence"
	"github.com/sendloop/journey/validator"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port      int
	storage   persistence.Storage
	engine    *engine.Engine
	validator *validator.Validator
}

func NewServer(httpPort int, storage persistence.Storage, eng *engine.Engine, val *validator.Validator) (*Server, error) {

	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 2 * time.Second,
		},
		storage:   storage,
		engine:    eng,
		validator: val,
		Port:      httpPort,
	}

	router := mux.NewRouter()
	router.HandleFunc("/journey", s.HandleCreateJourney).Methods(http.MethodPost)
	router.HandleFunc("/journey/{id}", s.HandleGetJourney).Methods(http.MethodGet)
	router.HandleFunc("/journey/{id}/validate", s.HandleValidateJourney).Methods(http.MethodGet)
	router.HandleFunc("/journey/{id}/activate", s.HandleActivateJourney).Methods(http.MethodPost)
	router.HandleFunc("/journey/{id}/enrollments", s.HandleGetEnrollments).Methods(http.MethodGet)

	router.HandleFunc("/enrollment/{id}/activity", s.HandleGetActivity).Methods(http.MethodGet)
	router.HandleFunc("/enrollment/{id}/exit", s.HandleExitEnrollment).Methods(http.MethodPost)
	router.HandleFunc("/enrollment/{id}/click", s.HandleLinkClick).Methods(http.MethodPost)

	router.HandleFunc("/event", s.HandleEvent).Methods(http.MethodPost)
	router.HandleFunc("/scheduler/run", s.HandleSchedulerRun).Methods(http.MethodPost)

	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server")
	}
	return nil
}
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)
	res, _ := json.Marshal(message)
	w.Write(res)
}

func respondOKWithoutBody(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
