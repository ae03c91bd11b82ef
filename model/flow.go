package model

import (
	"fmt"
	"time"
)

type FlowStatus string

const ACTIVE FlowStatus = "active"
const WAITING FlowStatus = "waiting"
const COMPLETED FlowStatus = "completed"
const FAILED FlowStatus = "failed"
const TIMEOUT FlowStatus = "timeout"

func (s FlowStatus) IsTerminal() bool {
	return s == COMPLETED || s == FAILED || s == TIMEOUT
}

func ToFlowStatus(s string) (FlowStatus, error) {
	switch FlowStatus(s) {
	case ACTIVE, WAITING, COMPLETED, FAILED, TIMEOUT:
		return FlowStatus(s), nil
	}
	return "", fmt.Errorf("unknown flow status %s", s)
}

type WaitKind string

const WAIT_AGENT_REPLY WaitKind = "agent_reply"
const WAIT_TOOL_CALLBACK WaitKind = "tool_callback"
const WAIT_WEBHOOK WaitKind = "webhook"

// Trigger is the immutable inbound event that started a flow.
type Trigger struct {
	MessageId  string    `json:"messageId"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type Requester struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// WaitState describes the external event a waiting flow resumes on. It is
// present exactly when the flow status is waiting.
type WaitState struct {
	Kind       WaitKind       `json:"kind"`
	RequestId  string         `json:"requestId"`
	AgentEmail string         `json:"agentEmail,omitempty"`
	ServerId   string         `json:"serverId,omitempty"`
	Method     string         `json:"method,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
	Question   string         `json:"question,omitempty"`
	ExpectedBy time.Time      `json:"expectedBy"`
}

type MessageDirection string

const MESSAGE_SENT MessageDirection = "sent"
const MESSAGE_RECEIVED MessageDirection = "received"

type MessageRecord struct {
	Direction     MessageDirection `json:"direction"`
	From          string           `json:"from"`
	To            string           `json:"to"`
	Subject       string           `json:"subject"`
	Body          string           `json:"body"`
	CorrelationId string           `json:"correlationId,omitempty"`
	At            time.Time        `json:"at"`
}

type PolicyInvocation struct {
	At             time.Time `json:"at"`
	DurationMillis int64     `json:"durationMillis"`
	Error          string    `json:"error,omitempty"`
}

type ToolCallRecord struct {
	ServerId string         `json:"serverId"`
	Method   string         `json:"method"`
	Params   map[string]any `json:"params,omitempty"`
	At       time.Time      `json:"at"`
}

type ActionRecord struct {
	Type   string    `json:"type"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Round is one decision cycle. The audit logs are append only and never drive
// control flow.
type Round struct {
	RoundNumber       int                `json:"roundNumber"`
	StartedAt         time.Time          `json:"startedAt"`
	CompletedAt       time.Time          `json:"completedAt,omitempty"`
	Decision          Decision           `json:"decision"`
	Actions           []ActionRecord     `json:"actions,omitempty"`
	PolicyInvocations []PolicyInvocation `json:"policyInvocations,omitempty"`
	ToolCalls         []ToolCallRecord   `json:"toolCalls,omitempty"`
	Messages          []MessageRecord    `json:"messages,omitempty"`
}

type FlowMetadata struct {
	PolicyInvocations int `json:"policyInvocations"`
	ToolCalls         int `json:"toolCalls"`
	AgentMessages     int `json:"agentMessages"`
	Notifications     int `json:"notifications"`
}

// Flow is one persisted orchestration instance. It is mutated only by the
// engine and becomes immutable once its status is terminal.
type Flow struct {
	Id           string       `json:"id"`
	AgentId      string       `json:"agentId"`
	Status       FlowStatus   `json:"status"`
	Trigger      Trigger      `json:"trigger"`
	Requester    Requester    `json:"requester"`
	Rounds       []*Round     `json:"rounds"`
	CurrentRound int          `json:"currentRound"`
	MaxRounds    int          `json:"maxRounds"`
	WaitingFor   *WaitState   `json:"waitingFor,omitempty"`
	TimeoutAt    time.Time    `json:"timeoutAt"`
	Metadata     FlowMetadata `json:"metadata"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	CompletedAt  time.Time    `json:"completedAt,omitempty"`
	Version      int64        `json:"version"`
}

func (f *Flow) LastRound() *Round {
	if len(f.Rounds) == 0 {
		return nil
	}
	return f.Rounds[len(f.Rounds)-1]
}

type FlowRunRequest struct {
	AgentId        string    `json:"agentId"`
	Trigger        Trigger   `json:"trigger"`
	Requester      Requester `json:"requester"`
	MaxRounds      int       `json:"maxRounds,omitempty"`
	TimeoutMinutes int       `json:"timeoutMinutes,omitempty"`
}

// InboundReply is a correlated external reply delivered by a trigger source to
// resume a waiting flow.
type InboundReply struct {
	FlowId        string         `json:"flowId"`
	AgentId       string         `json:"agentId"`
	CorrelationId string         `json:"correlationId"`
	From          string         `json:"from"`
	Subject       string         `json:"subject,omitempty"`
	Body          string         `json:"body"`
	Data          map[string]any `json:"data,omitempty"`
}
