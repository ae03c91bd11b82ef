package model

import "fmt"

type DecisionType string

const DECISION_CONTINUE DecisionType = "continue"
const DECISION_WAIT_FOR_AGENT DecisionType = "wait_for_agent"
const DECISION_WAIT_FOR_MCP DecisionType = "wait_for_mcp"
const DECISION_COMPLETE DecisionType = "complete"
const DECISION_FAIL DecisionType = "fail"

// WaitForAgent targets another agent, by email or by id as a legacy fallback
// resolved through the directory.
type WaitForAgent struct {
	TargetAgentEmail string `json:"targetAgentEmail,omitempty"`
	TargetAgentId    string `json:"targetAgentId,omitempty"`
	Subject          string `json:"subject"`
	Body             string `json:"body"`
	Question         string `json:"question,omitempty"`
}

type WaitForTool struct {
	ServerId string         `json:"serverId"`
	Method   string         `json:"method"`
	Params   map[string]any `json:"params,omitempty"`
}

type Complete struct {
	FinalResponse string `json:"finalResponse"`
}

// Decision is the tagged output of the decision policy for one round. Exactly
// the payload matching Type may be set.
type Decision struct {
	Type         DecisionType  `json:"type"`
	Reasoning    string        `json:"reasoning"`
	Confidence   float64       `json:"confidence"`
	WaitForAgent *WaitForAgent `json:"waitForAgent,omitempty"`
	WaitForTool  *WaitForTool  `json:"waitForTool,omitempty"`
	Complete     *Complete     `json:"complete,omitempty"`
}

func NewFailDecision(reason string) Decision {
	return Decision{
		Type:      DECISION_FAIL,
		Reasoning: reason,
	}
}

func NewForcedCompleteDecision(reason string, finalResponse string) Decision {
	return Decision{
		Type:      DECISION_COMPLETE,
		Reasoning: reason,
		Complete:  &Complete{FinalResponse: finalResponse},
	}
}

func (d Decision) Validate() error {
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("decision confidence %f out of range", d.Confidence)
	}
	switch d.Type {
	case DECISION_CONTINUE, DECISION_FAIL:
		if d.WaitForAgent != nil || d.WaitForTool != nil || d.Complete != nil {
			return fmt.Errorf("decision %s carries no payload", d.Type)
		}
	case DECISION_WAIT_FOR_AGENT:
		if d.WaitForAgent == nil {
			return fmt.Errorf("decision %s is missing its target", d.Type)
		}
		if d.WaitForAgent.TargetAgentEmail == "" && d.WaitForAgent.TargetAgentId == "" {
			return fmt.Errorf("decision %s has neither target email nor target id", d.Type)
		}
		if d.WaitForTool != nil || d.Complete != nil {
			return fmt.Errorf("decision %s carries a foreign payload", d.Type)
		}
	case DECISION_WAIT_FOR_MCP:
		if d.WaitForTool == nil {
			return fmt.Errorf("decision %s is missing its tool target", d.Type)
		}
		if d.WaitForTool.ServerId == "" || d.WaitForTool.Method == "" {
			return fmt.Errorf("decision %s requires server id and method", d.Type)
		}
		if d.WaitForAgent != nil || d.Complete != nil {
			return fmt.Errorf("decision %s carries a foreign payload", d.Type)
		}
	case DECISION_COMPLETE:
		if d.Complete == nil {
			return fmt.Errorf("decision %s is missing its final response", d.Type)
		}
		if d.WaitForAgent != nil || d.WaitForTool != nil {
			return fmt.Errorf("decision %s carries a foreign payload", d.Type)
		}
	default:
		return fmt.Errorf("unknown decision type %s", d.Type)
	}
	return nil
}
