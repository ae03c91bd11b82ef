package devmail

import (
	"context"

	"github.com/parleyhq/parley/logger"
	"github.com/parleyhq/parley/transport"
	"go.uber.org/zap"
)

var _ transport.MessageTransport = new(DevMailTransport)

// DevMailTransport logs every outbound message instead of delivering it.
// Meant for local development; production deployments plug in a real mail
// gateway behind the same interface.
type DevMailTransport struct{}

func New() *DevMailTransport {
	return &DevMailTransport{}
}

func (t *DevMailTransport) SendAgentToAgent(ctx context.Context, fromEmail string, toEmail string, subject string, body string, flowId string, correlationId string) error {
	logger.Info("agent-to-agent message", zap.String("from", fromEmail), zap.String("to", toEmail), zap.String("subject", subject), zap.String("flowId", flowId), zap.String("correlationId", correlationId))
	return nil
}

func (t *DevMailTransport) SendAgentToRequester(ctx context.Context, fromAgentId string, toEmail string, subject string, body string, flowId string) error {
	logger.Info("requester notification", zap.String("fromAgent", fromAgentId), zap.String("to", toEmail), zap.String("subject", subject), zap.String("flowId", flowId))
	return nil
}

func (t *DevMailTransport) SendToolInvocation(ctx context.Context, serverId string, method string, params map[string]any, flowId string, correlationId string) error {
	logger.Info("tool invocation", zap.String("serverId", serverId), zap.String("method", method), zap.String("flowId", flowId), zap.String("correlationId", correlationId))
	return nil
}
