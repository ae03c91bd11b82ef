package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parleyhq/parley/analytics"
	"github.com/parleyhq/parley/cache"
	"github.com/parleyhq/parley/directory"
	"github.com/parleyhq/parley/logger"
	"github.com/parleyhq/parley/model"
	"github.com/parleyhq/parley/persistence"
	"github.com/parleyhq/parley/policy"
	"github.com/parleyhq/parley/transport"
	"go.uber.org/zap"
)

const maxRoundsReachedReason = "maximum rounds reached"

type Options struct {
	DefaultMaxRounds int
	DefaultTimeout   time.Duration
	WaitDeadline     time.Duration
}

func (o Options) withDefaults() Options {
	if o.DefaultMaxRounds <= 0 {
		o.DefaultMaxRounds = 10
	}
	if o.DefaultTimeout <= 0 {
		o.DefaultTimeout = 60 * time.Minute
	}
	if o.WaitDeadline <= 0 {
		o.WaitDeadline = 30 * time.Minute
	}
	return o
}

// Engine owns the flow state machine. All mutations of a flow go through it,
// under a per-flow lock and a version-checked write, so a duplicated webhook
// or a race with the sweeper can not silently lose an update.
type Engine struct {
	store      persistence.FlowStore
	directory  directory.AgentDirectory
	policy     policy.DecisionPolicy
	transport  transport.MessageTransport
	stateCache *cache.FlowStateCache
	locks      *flowLocks
	options    Options
}

func New(store persistence.FlowStore, dir directory.AgentDirectory, pol policy.DecisionPolicy, tr transport.MessageTransport, options Options) *Engine {
	return &Engine{
		store:      store,
		directory:  dir,
		policy:     pol,
		transport:  tr,
		stateCache: cache.NewFlowStateCache(),
		locks:      newFlowLocks(),
		options:    options.withDefaults(),
	}
}

// StartFlow creates a flow for the inbound trigger and immediately runs its
// first round. MaxRounds and timeout fall back to the engine defaults when
// zero.
func (e *Engine) StartFlow(ctx context.Context, agentId string, trigger model.Trigger, requester model.Requester, maxRounds int, timeoutMinutes int) (*model.Flow, error) {
	profile, err := e.directory.GetProfile(ctx, agentId)
	if err != nil {
		return nil, fmt.Errorf("can not start flow: %w", err)
	}
	if maxRounds <= 0 {
		maxRounds = e.options.DefaultMaxRounds
	}
	timeout := e.options.DefaultTimeout
	if timeoutMinutes > 0 {
		timeout = time.Duration(timeoutMinutes) * time.Minute
	}
	now := time.Now()
	flow := &model.Flow{
		Id:        fmt.Sprintf("%s-%s", agentId, uuid.New().String()),
		AgentId:   agentId,
		Status:    model.ACTIVE,
		Trigger:   trigger,
		Requester: requester,
		Rounds:    make([]*model.Round, 0),
		MaxRounds: maxRounds,
		TimeoutAt: now.Add(timeout),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.Save(flow); err != nil {
		return nil, err
	}
	logger.Info("flow started", zap.String("agentId", agentId), zap.String("flowId", flow.Id), zap.Int("maxRounds", maxRounds))
	lock := e.locks.get(flow.Id)
	lock.Lock()
	defer lock.Unlock()
	if err := e.executeRounds(ctx, flow, profile); err != nil {
		return flow, err
	}
	return flow, nil
}

// ResumeFlow folds an awaited external reply into the flow and re-enters the
// round loop. It rejects without mutating state unless the flow is owned by
// the calling agent, is waiting, and the reply carries the awaited
// correlation id.
func (e *Engine) ResumeFlow(ctx context.Context, flowId string, agentId string, reply model.InboundReply) error {
	if status, ok := e.stateCache.GetTerminal(flowId); ok {
		logger.Debug("resume on terminal flow short-circuited", zap.String("flowId", flowId), zap.String("status", string(status)))
		return ErrFlowTerminal
	}
	lock := e.locks.get(flowId)
	lock.Lock()
	defer lock.Unlock()
	flow, err := e.loadOwned(agentId, flowId)
	if err != nil {
		return err
	}
	if flow.Status.IsTerminal() {
		e.stateCache.MarkTerminal(flow.Id, flow.Status)
		return ErrFlowTerminal
	}
	if flow.Status != model.WAITING || flow.WaitingFor == nil {
		return ErrNotWaiting
	}
	if reply.CorrelationId != flow.WaitingFor.RequestId {
		if flow.WaitingFor.Kind != model.WAIT_WEBHOOK || reply.CorrelationId != "" {
			logger.Info("rejecting reply with unknown correlation id", zap.String("flowId", flowId), zap.String("correlationId", reply.CorrelationId))
			return ErrCorrelationMismatch
		}
	}
	now := time.Now()
	if round := flow.LastRound(); round != nil {
		round.Messages = append(round.Messages, model.MessageRecord{
			Direction:     model.MESSAGE_RECEIVED,
			From:          reply.From,
			Subject:       reply.Subject,
			Body:          reply.Body,
			CorrelationId: reply.CorrelationId,
			At:            now,
		})
	}
	flow.WaitingFor = nil
	flow.Status = model.ACTIVE
	flow.UpdatedAt = now
	if err := e.save(flow); err != nil {
		return err
	}
	logger.Info("flow resumed", zap.String("agentId", agentId), zap.String("flowId", flowId))
	profile, err := e.directory.GetProfile(ctx, agentId)
	if err != nil {
		return e.failLocked(ctx, flow, fmt.Sprintf("agent profile lookup failed on resume: %s", err.Error()))
	}
	return e.executeRounds(ctx, flow, profile)
}

// CompleteFlow force-completes an active or waiting flow with the given final
// response.
func (e *Engine) CompleteFlow(ctx context.Context, flowId string, agentId string, finalResponse string) error {
	lock := e.locks.get(flowId)
	lock.Lock()
	defer lock.Unlock()
	flow, err := e.loadOwned(agentId, flowId)
	if err != nil {
		return err
	}
	if flow.Status.IsTerminal() {
		return ErrFlowTerminal
	}
	return e.completeLocked(ctx, flow, finalResponse)
}

// FailFlow force-fails an active or waiting flow; reason becomes the failure
// explanation sent to the requester.
func (e *Engine) FailFlow(ctx context.Context, flowId string, agentId string, reason string) error {
	lock := e.locks.get(flowId)
	lock.Lock()
	defer lock.Unlock()
	flow, err := e.loadOwned(agentId, flowId)
	if err != nil {
		return err
	}
	if flow.Status.IsTerminal() {
		return ErrFlowTerminal
	}
	return e.failLocked(ctx, flow, reason)
}

func (e *Engine) GetFlow(ctx context.Context, flowId string, agentId string) (*model.Flow, error) {
	return e.loadOwned(agentId, flowId)
}

// ListAgentFlows returns the agent's flows newest first, optionally filtered
// by status and truncated to limit.
func (e *Engine) ListAgentFlows(ctx context.Context, agentId string, statuses []model.FlowStatus, limit int) ([]*model.Flow, error) {
	flows, err := e.store.List(agentId, statuses...)
	if err != nil {
		return nil, err
	}
	sort.Slice(flows, func(i, j int) bool {
		return flows[i].CreatedAt.After(flows[j].CreatedAt)
	})
	if limit > 0 && len(flows) > limit {
		flows = flows[:limit]
	}
	return flows, nil
}

// executeRounds is the round loop: ask the policy for a decision, record it,
// act on it. Progression is an explicit loop bounded by MaxRounds, never
// recursion. Caller must hold the flow lock.
func (e *Engine) executeRounds(ctx context.Context, flow *model.Flow, profile *model.AgentProfile) error {
	for {
		if flow.Status != model.ACTIVE {
			return nil
		}
		if flow.CurrentRound >= flow.MaxRounds {
			return e.forceCompleteLocked(ctx, flow)
		}
		round := &model.Round{
			RoundNumber: flow.CurrentRound + 1,
			StartedAt:   time.Now(),
		}
		start := time.Now()
		decision, perr := e.policy.Decide(ctx, flow, profile)
		invocation := model.PolicyInvocation{At: start, DurationMillis: time.Since(start).Milliseconds()}
		if perr != nil {
			// the flow must always reach a decision
			invocation.Error = perr.Error()
			logger.Error("decision policy failed, downgrading to fail decision", zap.String("flowId", flow.Id), zap.Error(perr))
			decision = model.NewFailDecision(fmt.Sprintf("decision policy error: %s", perr.Error()))
		} else if verr := decision.Validate(); verr != nil {
			invocation.Error = verr.Error()
			logger.Error("decision policy returned an invalid decision", zap.String("flowId", flow.Id), zap.Error(verr))
			decision = model.NewFailDecision(fmt.Sprintf("invalid decision from policy: %s", verr.Error()))
		}
		round.PolicyInvocations = append(round.PolicyInvocations, invocation)
		round.Decision = decision
		round.CompletedAt = time.Now()
		round.Actions = append(round.Actions, model.ActionRecord{Type: string(decision.Type), Detail: decision.Reasoning, At: round.CompletedAt})
		flow.Rounds = append(flow.Rounds, round)
		flow.CurrentRound = flow.CurrentRound + 1
		flow.Metadata.PolicyInvocations = flow.Metadata.PolicyInvocations + 1
		flow.UpdatedAt = time.Now()
		if err := e.save(flow); err != nil {
			return err
		}
		analytics.RecordDecision(flow.AgentId, flow.Id, round.RoundNumber, string(decision.Type), decision.Reasoning)
		logger.Info("round decided", zap.String("flowId", flow.Id), zap.Int("round", round.RoundNumber), zap.String("decision", string(decision.Type)))

		switch decision.Type {
		case model.DECISION_CONTINUE:
			if flow.CurrentRound >= flow.MaxRounds {
				return e.forceCompleteLocked(ctx, flow)
			}
		case model.DECISION_WAIT_FOR_AGENT:
			return e.enterAgentWait(ctx, flow, profile, decision.WaitForAgent)
		case model.DECISION_WAIT_FOR_MCP:
			return e.enterToolWait(ctx, flow, decision.WaitForTool)
		case model.DECISION_COMPLETE:
			return e.completeLocked(ctx, flow, decision.Complete.FinalResponse)
		case model.DECISION_FAIL:
			return e.failLocked(ctx, flow, decision.Reasoning)
		}
	}
}

// enterAgentWait persists the waiting state before dispatching the message,
// so a reply that arrives unexpectedly fast still finds the flow waiting.
func (e *Engine) enterAgentWait(ctx context.Context, flow *model.Flow, profile *model.AgentProfile, target *model.WaitForAgent) error {
	toEmail := target.TargetAgentEmail
	if toEmail == "" {
		resolved, err := e.directory.ResolveEmail(ctx, target.TargetAgentId)
		if err != nil {
			return e.failLocked(ctx, flow, fmt.Sprintf("can not resolve target agent %s: %s", target.TargetAgentId, err.Error()))
		}
		toEmail = resolved
	}
	if !profile.MayContact(toEmail) {
		return e.failLocked(ctx, flow, fmt.Sprintf("agent %s is not allowed to message %s", flow.AgentId, toEmail))
	}
	requestId := uuid.New().String()
	now := time.Now()
	flow.WaitingFor = &model.WaitState{
		Kind:       model.WAIT_AGENT_REPLY,
		RequestId:  requestId,
		AgentEmail: toEmail,
		Question:   target.Question,
		ExpectedBy: now.Add(e.options.WaitDeadline),
	}
	flow.Status = model.WAITING
	flow.UpdatedAt = now
	subject := fmt.Sprintf("%s [req:%s]", target.Subject, requestId)
	if round := flow.LastRound(); round != nil {
		round.Messages = append(round.Messages, model.MessageRecord{
			Direction:     model.MESSAGE_SENT,
			From:          profile.Email,
			To:            toEmail,
			Subject:       subject,
			Body:          target.Body,
			CorrelationId: requestId,
			At:            now,
		})
	}
	flow.Metadata.AgentMessages = flow.Metadata.AgentMessages + 1
	if err := e.save(flow); err != nil {
		return err
	}
	logger.Info("flow waiting for agent reply", zap.String("flowId", flow.Id), zap.String("to", toEmail), zap.String("requestId", requestId))
	if err := e.transport.SendAgentToAgent(ctx, profile.Email, toEmail, subject, target.Body, flow.Id, requestId); err != nil {
		logger.Error("error dispatching agent-to-agent message", zap.String("flowId", flow.Id), zap.String("to", toEmail), zap.Error(err))
	}
	return nil
}

// enterToolWait mirrors enterAgentWait for tool servers: same persistence
// discipline, dispatch goes to the tool transport instead.
func (e *Engine) enterToolWait(ctx context.Context, flow *model.Flow, target *model.WaitForTool) error {
	requestId := uuid.New().String()
	now := time.Now()
	flow.WaitingFor = &model.WaitState{
		Kind:       model.WAIT_TOOL_CALLBACK,
		RequestId:  requestId,
		ServerId:   target.ServerId,
		Method:     target.Method,
		Params:     target.Params,
		ExpectedBy: now.Add(e.options.WaitDeadline),
	}
	flow.Status = model.WAITING
	flow.UpdatedAt = now
	if round := flow.LastRound(); round != nil {
		round.ToolCalls = append(round.ToolCalls, model.ToolCallRecord{
			ServerId: target.ServerId,
			Method:   target.Method,
			Params:   target.Params,
			At:       now,
		})
	}
	flow.Metadata.ToolCalls = flow.Metadata.ToolCalls + 1
	if err := e.save(flow); err != nil {
		return err
	}
	logger.Info("flow waiting for tool callback", zap.String("flowId", flow.Id), zap.String("serverId", target.ServerId), zap.String("method", target.Method), zap.String("requestId", requestId))
	if err := e.transport.SendToolInvocation(ctx, target.ServerId, target.Method, target.Params, flow.Id, requestId); err != nil {
		logger.Error("error dispatching tool invocation", zap.String("flowId", flow.Id), zap.String("serverId", target.ServerId), zap.Error(err))
	}
	return nil
}

func (e *Engine) forceCompleteLocked(ctx context.Context, flow *model.Flow) error {
	logger.Info("forcing completion, round ceiling hit", zap.String("flowId", flow.Id), zap.Int("maxRounds", flow.MaxRounds))
	if round := flow.LastRound(); round != nil {
		round.Actions = append(round.Actions, model.ActionRecord{Type: "forced_complete", Detail: maxRoundsReachedReason, At: time.Now()})
	}
	return e.completeLocked(ctx, flow, fmt.Sprintf("The conversation ended without a final answer: %s.", maxRoundsReachedReason))
}

// completeLocked persists the terminal transition first, then best-effort
// notifies the requester. A notification failure never blocks the
// transition.
func (e *Engine) completeLocked(ctx context.Context, flow *model.Flow, finalResponse string) error {
	e.markTerminal(flow, model.COMPLETED)
	if err := e.save(flow); err != nil {
		return err
	}
	e.stateCache.MarkTerminal(flow.Id, model.COMPLETED)
	logger.Info("flow completed", zap.String("agentId", flow.AgentId), zap.String("flowId", flow.Id), zap.Int("rounds", flow.CurrentRound))
	e.notifyRequester(ctx, flow, "completion", buildReplyBody(finalResponse, flow.Trigger))
	return nil
}

func (e *Engine) failLocked(ctx context.Context, flow *model.Flow, reason string) error {
	e.markTerminal(flow, model.FAILED)
	if err := e.save(flow); err != nil {
		return err
	}
	e.stateCache.MarkTerminal(flow.Id, model.FAILED)
	logger.Info("flow failed", zap.String("agentId", flow.AgentId), zap.String("flowId", flow.Id), zap.String("reason", reason))
	body := buildReplyBody(fmt.Sprintf("The request could not be completed: %s", reason), flow.Trigger)
	e.notifyRequester(ctx, flow, "failure", body)
	return nil
}

func (e *Engine) timeoutLocked(ctx context.Context, flow *model.Flow) error {
	e.markTerminal(flow, model.TIMEOUT)
	if err := e.save(flow); err != nil {
		return err
	}
	e.stateCache.MarkTerminal(flow.Id, model.TIMEOUT)
	logger.Info("flow timed out", zap.String("agentId", flow.AgentId), zap.String("flowId", flow.Id))
	body := buildReplyBody("The request timed out before it could be completed.", flow.Trigger)
	e.notifyRequester(ctx, flow, "timeout", body)
	return nil
}

func (e *Engine) markTerminal(flow *model.Flow, status model.FlowStatus) {
	now := time.Now()
	flow.Status = status
	flow.WaitingFor = nil
	flow.CompletedAt = now
	flow.UpdatedAt = now
	flow.Metadata.Notifications = flow.Metadata.Notifications + 1
}

func (e *Engine) notifyRequester(ctx context.Context, flow *model.Flow, kind string, body string) {
	subject := "Re: " + flow.Trigger.Subject
	failure := ""
	err := e.transport.SendAgentToRequester(ctx, flow.AgentId, flow.Requester.Email, subject, body, flow.Id)
	if err != nil {
		failure = err.Error()
		logger.Error("error notifying requester", zap.String("flowId", flow.Id), zap.String("kind", kind), zap.Error(err))
	}
	analytics.RecordNotification(flow.AgentId, flow.Id, kind, flow.Requester.Email, failure)
}

func (e *Engine) loadOwned(agentId string, flowId string) (*model.Flow, error) {
	flow, err := e.store.Load(agentId, flowId)
	if err != nil {
		var notFound persistence.NotFoundError
		if errors.As(err, &notFound) {
			return nil, ErrFlowNotFound
		}
		return nil, err
	}
	if flow.AgentId != agentId {
		return nil, ErrNotOwner
	}
	return flow, nil
}

func (e *Engine) save(flow *model.Flow) error {
	err := e.store.SaveIf(flow, flow.Version)
	if err != nil {
		logger.Error("error persisting flow", zap.String("agentId", flow.AgentId), zap.String("flowId", flow.Id), zap.Error(err))
	}
	return err
}

// buildReplyBody quotes the original trigger message under the response for
// context, the way a mail client replies.
func buildReplyBody(response string, trigger model.Trigger) string {
	quoted := "> " + strings.ReplaceAll(trigger.Body, "\n", "\n> ")
	return fmt.Sprintf("%s\n\nOn %s, %s wrote:\n%s", response, trigger.ReceivedAt.Format(time.RFC1123), trigger.From, quoted)
}
