package service

import (
	"context"

	"github.com/parleyhq/parley/engine"
	"github.com/parleyhq/parley/logger"
	"github.com/parleyhq/parley/model"
	"go.uber.org/zap"
)

// FlowExecutionService is the facade the REST layer talks to.
type FlowExecutionService struct {
	engine *engine.Engine
}

func NewFlowExecutionService(engine *engine.Engine) *FlowExecutionService {
	return &FlowExecutionService{
		engine: engine,
	}
}

func (s *FlowExecutionService) StartFlow(ctx context.Context, req model.FlowRunRequest) (*model.Flow, error) {
	logger.Info("starting flow", zap.String("agentId", req.AgentId), zap.String("trigger", req.Trigger.MessageId))
	return s.engine.StartFlow(ctx, req.AgentId, req.Trigger, req.Requester, req.MaxRounds, req.TimeoutMinutes)
}

func (s *FlowExecutionService) ResumeFlow(ctx context.Context, reply model.InboundReply) error {
	logger.Info("resuming flow", zap.String("agentId", reply.AgentId), zap.String("flowId", reply.FlowId))
	return s.engine.ResumeFlow(ctx, reply.FlowId, reply.AgentId, reply)
}

func (s *FlowExecutionService) GetFlow(ctx context.Context, flowId string, agentId string) (*model.Flow, error) {
	return s.engine.GetFlow(ctx, flowId, agentId)
}

func (s *FlowExecutionService) ListAgentFlows(ctx context.Context, agentId string, statuses []model.FlowStatus, limit int) ([]*model.Flow, error) {
	return s.engine.ListAgentFlows(ctx, agentId, statuses, limit)
}

func (s *FlowExecutionService) ProcessTimeouts(ctx context.Context) (engine.SweepResult, error) {
	return s.engine.ProcessTimeouts(ctx)
}
