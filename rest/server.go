package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/parleyhq/parley/logger"
	"github.com/parleyhq/parley/service"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port            int
	executorService *service.FlowExecutionService
}

func NewServer(httpPort int, executorService *service.FlowExecutionService) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr: fmt.Sprintf(":%d", httpPort),
		},
		executorService: executorService,
		Port:            httpPort,
	}

	router := mux.NewRouter()
	router.HandleFunc("/flow", s.HandleStartFlow).Methods(http.MethodPost)
	router.HandleFunc("/flow/resume", s.HandleResumeFlow).Methods(http.MethodPost)
	router.HandleFunc("/flow/{agentId}/{flowId}", s.HandleGetFlow).Methods(http.MethodGet)
	router.HandleFunc("/flows/{agentId}", s.HandleListFlows).Methods(http.MethodGet)
	router.HandleFunc("/sweep", s.HandleSweep).Methods(http.MethodPost)
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

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
