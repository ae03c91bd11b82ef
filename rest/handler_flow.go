package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/parleyhq/parley/engine"
	"github.com/parleyhq/parley/logger"
	"github.com/parleyhq/parley/model"
	"go.uber.org/zap"
)

func (s *Server) HandleStartFlow(w http.ResponseWriter, r *http.Request) {
	var runReq model.FlowRunRequest
	if err := json.NewDecoder(r.Body).Decode(&runReq); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	defer r.Body.Close()
	if runReq.AgentId == "" {
		respondWithError(w, http.StatusBadRequest, "agentId is required")
		return
	}
	flow, err := s.executorService.StartFlow(r.Context(), runReq)
	if err != nil {
		logger.Error("error starting flow", zap.String("agentId", runReq.AgentId), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "error starting flow")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"flowId": flow.Id, "status": flow.Status})
}

func (s *Server) HandleResumeFlow(w http.ResponseWriter, r *http.Request) {
	var reply model.InboundReply
	if err := json.NewDecoder(r.Body).Decode(&reply); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	defer r.Body.Close()
	err := s.executorService.ResumeFlow(r.Context(), reply)
	if err != nil {
		logger.Info("flow resume rejected", zap.String("flowId", reply.FlowId), zap.Error(err))
		respondWithError(w, rejectionStatus(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "resumed"})
}

func (s *Server) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	flow, err := s.executorService.GetFlow(r.Context(), vars["flowId"], vars["agentId"])
	if err != nil {
		respondWithError(w, rejectionStatus(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, flow)
}

func (s *Server) HandleListFlows(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var statuses []model.FlowStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, err := model.ToFlowStatus(part)
			if err != nil {
				respondWithError(w, http.StatusBadRequest, err.Error())
				return
			}
			statuses = append(statuses, status)
		}
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}
	flows, err := s.executorService.ListAgentFlows(r.Context(), vars["agentId"], statuses, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "error listing flows")
		return
	}
	respondWithJSON(w, http.StatusOK, flows)
}

func (s *Server) HandleSweep(w http.ResponseWriter, r *http.Request) {
	result, err := s.executorService.ProcessTimeouts(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "error running timeout sweep")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func rejectionStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrFlowNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrFlowTerminal), errors.Is(err, engine.ErrNotWaiting), errors.Is(err, engine.ErrCorrelationMismatch):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
