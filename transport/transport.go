package transport

import "context"

// MessageTransport delivers outbound messages on behalf of the engine. All
// sends are fire and forget from the engine's perspective: a returned error is
// logged by the caller, never retried. Retry and backoff, if any, belong to
// the transport implementation.
type MessageTransport interface {
	// SendAgentToAgent fires another agent's inbound pipeline. The
	// correlation id must be recoverable from the delivered reply, so it is
	// embedded in the subject line by the engine before dispatch.
	SendAgentToAgent(ctx context.Context, fromEmail string, toEmail string, subject string, body string, flowId string, correlationId string) error
	// SendAgentToRequester delivers a human-facing notification.
	SendAgentToRequester(ctx context.Context, fromAgentId string, toEmail string, subject string, body string, flowId string) error
	// SendToolInvocation dispatches a method call to an external tool server.
	// The callback carrying the correlation id resumes the flow like any
	// other reply.
	SendToolInvocation(ctx context.Context, serverId string, method string, params map[string]any, flowId string, correlationId string) error
}
