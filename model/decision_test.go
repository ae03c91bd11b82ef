package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecisionValidate(t *testing.T) {
	scenarios := map[string]struct {
		decision Decision
		valid    bool
	}{
		"continue": {
			decision: Decision{Type: DECISION_CONTINUE, Reasoning: "more to do", Confidence: 0.5},
			valid:    true,
		},
		"continue with stray payload": {
			decision: Decision{Type: DECISION_CONTINUE, Complete: &Complete{FinalResponse: "x"}},
			valid:    false,
		},
		"wait for agent by email": {
			decision: Decision{Type: DECISION_WAIT_FOR_AGENT, WaitForAgent: &WaitForAgent{TargetAgentEmail: "bob@agents.test", Subject: "s", Body: "b"}},
			valid:    true,
		},
		"wait for agent by legacy id": {
			decision: Decision{Type: DECISION_WAIT_FOR_AGENT, WaitForAgent: &WaitForAgent{TargetAgentId: "bob", Subject: "s", Body: "b"}},
			valid:    true,
		},
		"wait for agent without target": {
			decision: Decision{Type: DECISION_WAIT_FOR_AGENT, WaitForAgent: &WaitForAgent{Subject: "s"}},
			valid:    false,
		},
		"wait for agent missing payload": {
			decision: Decision{Type: DECISION_WAIT_FOR_AGENT},
			valid:    false,
		},
		"wait for tool": {
			decision: Decision{Type: DECISION_WAIT_FOR_MCP, WaitForTool: &WaitForTool{ServerId: "reports", Method: "generate"}},
			valid:    true,
		},
		"wait for tool without method": {
			decision: Decision{Type: DECISION_WAIT_FOR_MCP, WaitForTool: &WaitForTool{ServerId: "reports"}},
			valid:    false,
		},
		"complete": {
			decision: Decision{Type: DECISION_COMPLETE, Complete: &Complete{FinalResponse: "done"}},
			valid:    true,
		},
		"complete without response payload": {
			decision: Decision{Type: DECISION_COMPLETE},
			valid:    false,
		},
		"complete with foreign payload": {
			decision: Decision{Type: DECISION_COMPLETE, Complete: &Complete{FinalResponse: "done"}, WaitForTool: &WaitForTool{ServerId: "x", Method: "y"}},
			valid:    false,
		},
		"fail": {
			decision: NewFailDecision("broken"),
			valid:    true,
		},
		"unknown type": {
			decision: Decision{Type: DecisionType("retry")},
			valid:    false,
		},
		"confidence above one": {
			decision: Decision{Type: DECISION_CONTINUE, Confidence: 1.5},
			valid:    false,
		},
		"confidence below zero": {
			decision: Decision{Type: DECISION_CONTINUE, Confidence: -0.1},
			valid:    false,
		},
	}
	for name, scenario := range scenarios {
		err := scenario.decision.Validate()
		if scenario.valid {
			require.NoError(t, err, name)
		} else {
			require.Error(t, err, name)
		}
	}
}

func TestFlowStatusParsing(t *testing.T) {
	status, err := ToFlowStatus("waiting")
	require.NoError(t, err)
	require.Equal(t, WAITING, status)

	_, err = ToFlowStatus("paused")
	require.Error(t, err)
}

func TestFlowStatusTerminal(t *testing.T) {
	require.False(t, ACTIVE.IsTerminal())
	require.False(t, WAITING.IsTerminal())
	require.True(t, COMPLETED.IsTerminal())
	require.True(t, FAILED.IsTerminal())
	require.True(t, TIMEOUT.IsTerminal())
}

func TestAgentProfileMayContact(t *testing.T) {
	open := AgentProfile{Id: "alice", Email: "alice@agents.test", CanMessageAgents: true}
	require.True(t, open.MayContact("anyone@agents.test"))

	restricted := AgentProfile{Id: "alice", CanMessageAgents: true, AllowedAgents: []string{"bob@agents.test"}}
	require.True(t, restricted.MayContact("bob@agents.test"))
	require.False(t, restricted.MayContact("carol@agents.test"))

	muted := AgentProfile{Id: "alice"}
	require.False(t, muted.MayContact("bob@agents.test"))
}
